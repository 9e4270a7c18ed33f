package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/shopreports/internal/platform/cache"
	"github.com/odyssey-erp/shopreports/internal/platform/db"
	"github.com/odyssey-erp/shopreports/internal/reports"
	"github.com/odyssey-erp/shopreports/internal/reports/export"
	"github.com/odyssey-erp/shopreports/internal/shopapi"
	"github.com/odyssey-erp/shopreports/internal/shopdb"
)

// Reports bundles the report pipeline with its Redis backed collaborators.
type Reports struct {
	Service *reports.Service
	Cache   *reports.Cache
	// Store and Redis are nil when Redis is unreachable.
	Store *reports.ArtifactStore
	Redis *redis.Client

	closers []func()
}

// BuildReports wires the configured row source, cache and renderers. Redis is
// optional: without it rows are fetched on every call and asynchronous
// exports are unavailable.
func BuildReports(ctx context.Context, cfg *Config, logger *slog.Logger, registerer prometheus.Registerer) (*Reports, error) {
	r := &Reports{}
	source, err := r.source(ctx, cfg, logger)
	if err != nil {
		r.Close()
		return nil, err
	}

	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		r.Redis = client
		r.Store = reports.NewArtifactStore(client, cfg.ExportTTL)
		r.closers = append(r.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
	}
	r.Cache = reports.NewCache(r.Redis, cfg.ReportCacheTTL).WithLogger(logger)

	renderers := []reports.Renderer{
		export.NewXLSXRenderer(),
		export.NewPDFRenderer(cfg.CompanyName, cfg.ReportLocale),
	}
	r.Service = reports.NewService(source, r.Cache, renderers, reports.NewMetrics(registerer), logger)
	return r, nil
}

func (r *Reports) source(ctx context.Context, cfg *Config, logger *slog.Logger) (reports.Source, error) {
	switch cfg.ReportSource {
	case SourcePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, pool.Close)
		logger.Info("report source", slog.String("source", SourcePostgres))
		return shopdb.NewSource(pool, cfg.PGStatementTimeout), nil
	case SourceAPI, "":
		logger.Info("report source", slog.String("source", SourceAPI), slog.String("url", cfg.ShopAPIURL))
		return shopapi.NewClient(shopapi.Config{
			BaseURL:     cfg.ShopAPIURL,
			Token:       cfg.ShopAPIToken,
			Timeout:     cfg.ShopAPITimeout,
			PageSize:    cfg.ShopAPIPageSize,
			Concurrency: cfg.ShopAPIConcurrency,
		}, logger), nil
	}
	return nil, fmt.Errorf("unknown report source %q", cfg.ReportSource)
}

// Close releases the source and Redis connections.
func (r *Reports) Close() {
	if r == nil {
		return
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}
