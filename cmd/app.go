package cmd

import (
	"context"
	"errors"
	"fmt"

	"inventory-sync/core/config"
	"inventory-sync/core/database"
	"inventory-sync/core/logger"
	"inventory-sync/core/remote"
	"inventory-sync/core/storage"
	"inventory-sync/feature/inventory"

	"go.uber.org/zap"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *inventory.Service
}

// bootstrap loads configuration and wires the inventory service.
// The database and the bucket are optional: failures are logged and the service runs
// without run history or artifacts.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Remote.Endpoint == "" || cfg.Remote.AccessToken == "" {
		return nil, errors.New("REMOTE_ENDPOINT and REMOTE_ACCESS_TOKEN are required")
	}

	var store *inventory.Store
	if db, err := database.Connect(cfg.Database); err != nil {
		l.Warn("Optional database connection failed, run history disabled", zap.Error(err))
	} else {
		store = inventory.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate ledger: %w", err)
		}
		if err := store.Check(ctx); err != nil {
			return nil, fmt.Errorf("ledger schema check failed: %w", err)
		}
	}

	var archive *inventory.Archive
	if client, err := storage.NewClient(cfg.Storage); err != nil {
		l.Warn("Storage client unavailable, artifacts disabled", zap.Error(err))
	} else if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
		l.Warn("Storage bucket unavailable, artifacts disabled", zap.Error(err))
	} else {
		archive = inventory.NewArchive(client, cfg.Storage.Bucket, cfg.Reconcile.ArchivePrefix)
	}

	rc := remote.NewClient(cfg.Remote,
		remote.WithLogger(l),
		remote.WithQuantityName(cfg.Reconcile.QuantityName),
	)

	svc := inventory.NewService(rc, store, archive, inventory.Settings{
		Bulk:      cfg.Bulk,
		Reconcile: cfg.Reconcile,
	}, l)

	if _, err := svc.RestoreActive(ctx); err != nil {
		l.Warn("Failed to restore active bulk job", zap.Error(err))
	}

	return &app{cfg: cfg, logger: l, service: svc}, nil
}

func (a *app) Close() {
	a.service.Close()
	_ = a.logger.Sync()
}
