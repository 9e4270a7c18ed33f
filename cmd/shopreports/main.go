package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/shopreports/cmd/shopreports/cli"
	"github.com/odyssey-erp/shopreports/internal/app"
	"github.com/odyssey-erp/shopreports/internal/observability"
	reporthttp "github.com/odyssey-erp/shopreports/internal/reports/http"
	"github.com/odyssey-erp/shopreports/jobs"
)

const usage = `usage: shopreports [serve | export [flags] | queue | cache-bump]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		os.Exit(serve(ctx, cfg, stop))
	case "export":
		os.Exit(runExport(ctx, cfg, args))
	case "queue", "cache-bump":
		os.Exit(runJobs(ctx, cfg, command))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(cli.ExitUsage)
	}
}

func serve(ctx context.Context, cfg *app.Config, stop context.CancelFunc) int {
	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	rep, err := app.BuildReports(ctx, cfg, logger, metrics.Registerer())
	if err != nil {
		logger.Error("build reports", slog.Any("error", err))
		return 1
	}
	defer rep.Close()

	if err := rep.Cache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("listen for cache invalidation", slog.Any("error", err))
	}

	var (
		queue      reporthttp.ExportQueue
		store      reporthttp.ExportStore
		jobHandler *jobs.Handler
	)
	if rep.Store != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		client, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			return 1
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		queue, store = client, rep.Store
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	reportHandler := reporthttp.NewHandler(logger, rep.Service, queue, store, rep.Cache, cfg.ExportRateLimit)
	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reportHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}

func runExport(ctx context.Context, cfg *app.Config, args []string) int {
	opts, err := cli.ParseExportFlags(args, os.Stderr)
	if err != nil {
		return cli.ExitUsage
	}
	logger := app.NewLoggerTo(os.Stderr, cfg)
	rep, err := app.BuildReports(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("build reports", slog.Any("error", err))
		return cli.ExitFailed
	}
	defer rep.Close()

	exporter, err := cli.NewExportCLI(rep.Service)
	if err != nil {
		logger.Error("init export cli", slog.Any("error", err))
		return cli.ExitFailed
	}
	return exporter.ExportCommand(ctx, opts)
}

func runJobs(ctx context.Context, cfg *app.Config, command string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	if command == "cache-bump" {
		info, err := jobsCLI.Trigger(ctx, jobs.TaskReportCacheBump)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cache-bump: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s (%s)\n", info.Type, info.ID)
		return 0
	}
	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queue: %v\n", err)
		return 1
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return 0
}
