package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pooledbismuth/poolstats/internal/db"
	"github.com/pooledbismuth/poolstats/internal/sqlitestore"
	"github.com/pooledbismuth/poolstats/pkg/config"
	"github.com/pooledbismuth/poolstats/pkg/logging"
)

// Backend is an opened Store together with its lifecycle hooks.
type Backend struct {
	Store
	Name   string
	Health func(ctx context.Context) error
	Close  func() error
}

// OpenBackend picks the store for cfg.URL: sqlite URLs open the pool's own
// database file, anything else is treated as a postgres DSN.
func OpenBackend(cfg *config.DatabaseConfig, logLevel string) (*Backend, error) {
	logger := logging.WithComponent("backend")

	if path, ok := sqlitestore.PathFromURL(cfg.URL); ok {
		store, err := sqlitestore.Open(path, cfg.LookupBatchSize)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("Using sqlite store", zap.String("path", path))
		return &Backend{
			Store:  store,
			Name:   "sqlite",
			Health: store.Health,
			Close:  store.Close,
		}, nil
	}

	database, err := db.New(cfg, logLevel)
	if err != nil {
		return nil, err
	}
	logger.Info("Using postgres store")
	return &Backend{
		Store:  db.NewPoolRepository(database.DB, cfg.LookupBatchSize),
		Name:   "postgres",
		Health: database.Health,
		Close:  database.Close,
	}, nil
}
