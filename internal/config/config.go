// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Thresholds holds the externally tunable knobs of the anomaly classifier.
// Changing any of these requires no classifier redeploy; they are read from
// the config file or SPENDGUARD_ environment variables at startup.
type Thresholds struct {
	SuspiciousTokens    []string
	UnusualMultiplier   float64
	HighRiskMultiplier  float64
	OverspendMultiplier float64
	DefaultAverage      float64
	DuplicateWindow     time.Duration
}

// DefaultThresholds returns the classifier defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		UnusualMultiplier:   3.0,
		HighRiskMultiplier:  5.0,
		OverspendMultiplier: 2.5,
		DefaultAverage:      100.0,
		DuplicateWindow:     24 * time.Hour,
		SuspiciousTokens:    []string{"unknown", "suspicious", "test", "foreign", "crypto"},
	}
}

// LoadThresholds reads classifier thresholds from Viper, falling back to
// defaults for anything unset.
func LoadThresholds() Thresholds {
	t := DefaultThresholds()

	if v := viper.GetFloat64("classifier.unusual_multiplier"); v > 0 {
		t.UnusualMultiplier = v
	}
	if v := viper.GetFloat64("classifier.high_risk_multiplier"); v > 0 {
		t.HighRiskMultiplier = v
	}
	if v := viper.GetFloat64("classifier.overspend_multiplier"); v > 0 {
		t.OverspendMultiplier = v
	}
	if v := viper.GetFloat64("classifier.default_average"); v > 0 {
		t.DefaultAverage = v
	}
	if v := viper.GetDuration("classifier.duplicate_window"); v > 0 {
		t.DuplicateWindow = v
	}
	if v := viper.GetStringSlice("classifier.suspicious_tokens"); len(v) > 0 {
		t.SuspiciousTokens = v
	}

	return t
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	} else if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
