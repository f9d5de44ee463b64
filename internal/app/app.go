// Package app wires configuration, logging, the proposal store and the
// generator together for the command-line binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/generator"
	"github.com/lvillar/proposalgen/internal/config"
	"github.com/lvillar/proposalgen/internal/lock"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/store"
)

// App holds the long-lived components of a process.
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Store     *store.Store // nil when opened without a database
	Generator *generator.Generator

	redis *redis.Client
}

// Options control which components Open starts.
type Options struct {
	NoStore bool // skip the database; generation never creates records
	Quiet   bool // drop INFO and DEBUG lines
}

// Open builds an App from cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	var err error
	if cfg.LogFile != "" {
		if a.Log, err = logger.NewFile(cfg.LogFile); err != nil {
			return nil, err
		}
	} else {
		a.Log = logger.Default()
	}
	a.Log.SetDebug(cfg.Debug)
	a.Log.SetQuiet(opts.Quiet)

	if !opts.NoStore && cfg.Database.DSN != "" {
		var locker lock.Locker
		if cfg.Redis.Addr != "" {
			a.redis, err = lock.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				a.Close()
				return nil, err
			}
			locker = lock.NewRedis(a.redis, cfg.Redis.LockTTL)
			a.Log.Debugf("Using redis version lock at %s", cfg.Redis.Addr)
		}
		a.Store, err = store.Open(cfg.Database.DSN, store.Options{
			Debug:      cfg.Database.Debug,
			Migrations: cfg.Database.Migrations,
			Locker:     locker,
			Log:        a.Log,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Generator = generator.New(cfg, a.Store, a.Log)
	return a, nil
}

// RequireStore returns an error wrapping the persistence sentinel when the
// App has no database.
func (a *App) RequireStore() (*store.Store, error) {
	if a.Store == nil {
		return nil, fmt.Errorf("%w: no database configured (set database.dsn)", proposalgen.ErrPersistence)
	}
	return a.Store, nil
}

// Close releases the database, redis and log file.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warnf("Closing database: %v", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.Log.Close()
}
