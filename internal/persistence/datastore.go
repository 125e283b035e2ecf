package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Pinger is a backend the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Datastore is the ticket storage selected by DATASTORE_TYPE.
type Datastore struct {
	Type    string
	Tickets repository.TicketRepository
	// Checks holds the backends worth pinging, keyed by name.
	Checks  map[string]Pinger
	closers []func()
}

// OpenDatastore builds the configured ticket repository. Exactly one backend
// is opened per process.
func OpenDatastore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Datastore, error) {
	ds := &Datastore{Type: cfg.Store.Type, Checks: map[string]Pinger{}}

	switch cfg.Store.Type {
	case config.StoreMemory:
		ds.Tickets = repository.NewMemoryTicketRepository()
		logger.Warn("memory datastore selected; tickets are lost on restart")

	case config.StoreFile:
		repo, err := repository.NewFileTicketRepository(cfg.Store.DataFilePath, logger)
		if err != nil {
			return nil, err
		}
		ds.Tickets = repo

	case config.StoreSQLite:
		db, err := NewSQLite(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		ds.closers = append(ds.closers, db.Close)
		repo, err := repository.NewSQLiteTicketRepository(ctx, db.DB)
		if err != nil {
			ds.Close()
			return nil, err
		}
		ds.Tickets = repo
		ds.Checks["sqlite"] = db

	case config.StorePostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		ds.closers = append(ds.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				ds.Close()
				return nil, err
			}
		}
		ds.Tickets = repository.NewPostgresTicketRepository(pg.Pool)
		ds.Checks["postgres"] = pg

	default:
		return nil, fmt.Errorf("unknown datastore type %q", cfg.Store.Type)
	}

	logger.Info("datastore ready", zap.String("type", cfg.Store.Type))
	return ds, nil
}

// Close releases every backend handle in reverse order.
func (d *Datastore) Close() {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
