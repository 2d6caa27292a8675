package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/finwatch/spendguard/internal/config"
	"github.com/finwatch/spendguard/internal/storage"
)

// initStorage opens the database with proper path expansion and ensures
// the schema is current.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/spendguard/spendguard.db"
	}

	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
