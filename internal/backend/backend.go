// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeafMist/tweet-radar/internal/config"
	"github.com/DeafMist/tweet-radar/internal/elasticsearch"
	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/memstore"
	"github.com/DeafMist/tweet-radar/internal/mongodb"
	"github.com/DeafMist/tweet-radar/internal/postgres"
	"github.com/DeafMist/tweet-radar/internal/store"
)

// Open connects to the configured backend and pings it once. Any failure to
// reach the store within cfg.ConnectTimeout is wrapped in
// store.ErrUnavailable; there is no retry.
func Open(ctx context.Context, cfg config.Common, log *slog.Logger) (store.Store, error) {
	log = logger.OrDiscard(log)
	connCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	s, err := open(connCtx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrUnavailable, cfg.StoreBackend, err)
	}

	if err := s.Ping(connCtx); err != nil {
		_ = s.Close(context.Background())
		return nil, fmt.Errorf("%w: %s: %v", store.ErrUnavailable, cfg.StoreBackend, err)
	}

	log.Info("store connected", slog.String("backend", cfg.StoreBackend))
	return s, nil
}

func open(ctx context.Context, cfg config.Common, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendElasticsearch:
		return elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, cfg.ConnectTimeout, log)
	case config.BackendMongo:
		return mongodb.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, cfg.ConnectTimeout, log)
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresTable, cfg.ConnectTimeout, log)
	case config.BackendMemory:
		return memstore.New(cfg.MemoryPath)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.StoreBackend)
	}
}
