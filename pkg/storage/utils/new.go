// Package storageutils picks a storage driver from configuration.
package storageutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/bpmnchat/pkg/storage"
	"github.com/papercomputeco/bpmnchat/pkg/storage/inmemory"
	"github.com/papercomputeco/bpmnchat/pkg/storage/postgres"
	"github.com/papercomputeco/bpmnchat/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	SQLitePath  string
	PostgresDSN string
	Logger      *slog.Logger
}

// NewDriver returns a PostgreSQL driver when a DSN is set, else a SQLite
// driver when a path is set, else an in-memory driver.
func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	switch {
	case o.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		o.Logger.Info("using PostgreSQL storage")
		return driver, nil

	case o.SQLitePath != "":
		driver, err := sqlite.NewDriver(ctx, o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		o.Logger.Info("using SQLite storage", "path", o.SQLitePath)
		return driver, nil

	default:
		o.Logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}
