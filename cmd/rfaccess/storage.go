package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gregLibert/rfaccess/pkg/config"
	"github.com/gregLibert/rfaccess/pkg/emulation"
	"github.com/gregLibert/rfaccess/pkg/kv"
	"github.com/gregLibert/rfaccess/pkg/kv/badger"
	"github.com/gregLibert/rfaccess/pkg/kv/sqlite"
)

// openStore opens the configured key-value backend. The returned close
// function is never nil.
func openStore(cfg config.StorageConfig, logger *slog.Logger) (kv.Store, func() error, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return kv.NewMemory(), func() error { return nil }, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("storage opened", "driver", cfg.Driver, "path", db.Path())
		return sqlite.NewStore(db), db.Close, nil
	case config.DriverBadger:
		store, err := badger.Open(cfg.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening badger store: %w", err)
		}
		logger.Info("storage opened", "driver", cfg.Driver, "path", cfg.Path)
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// restoreState builds the emulation state from persisted settings, falling
// back to the built-in card image when the config asks for it.
func restoreState(ctx context.Context, cfg config.EmulationConfig, settings *emulation.SettingsStore) (*emulation.State, error) {
	var fallback []byte
	if cfg.DefaultImage {
		fallback = emulation.DefaultCardImage()
	}
	state := emulation.NewState()
	if err := settings.Restore(ctx, state, fallback); err != nil {
		return nil, fmt.Errorf("restoring emulation settings: %w", err)
	}
	return state, nil
}
