package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/shopreports/internal/jobs"
	"github.com/odyssey-erp/shopreports/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportGenerator produces report artifacts.
type ReportGenerator interface {
	Generate(ctx context.Context, req reports.Request, allowEmpty bool) (reports.Artifact, error)
}

// ExportStore records export outcomes.
type ExportStore interface {
	Complete(ctx context.Context, id string, art reports.Artifact) error
	Fail(ctx context.Context, id string, message string) error
}

// ExportJob renders queued exports and hands the result to the store.
type ExportJob struct {
	Generator ReportGenerator
	Store     ExportStore
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewExportJob wires dependencies for the export handler.
func NewExportJob(generator ReportGenerator, store ExportStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExportJob {
	return &ExportJob{Generator: generator, Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskReportExport tasks. Requests that can never succeed
// are marked failed and not retried; other failures are retried and only
// marked failed on the last attempt.
func (j *ExportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Generator == nil || j.Store == nil {
		return errors.New("report export: handler not configured")
	}
	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ID == "" {
		j.metrics().Skip(TaskReportExport, "payload")
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportExport)
	logger := j.logger().With(
		slog.String("export_id", payload.ID),
		slog.String("kind", string(payload.Request.Kind)),
		slog.String("format", string(payload.Request.Format)),
	)

	art, err := j.Generator.Generate(ctx, payload.Request, payload.AllowEmpty)
	if err != nil {
		if reports.Permanent(err) {
			j.metrics().Skip(TaskReportExport, skipReason(err))
			j.fail(ctx, logger, payload.ID, err)
			logger.Warn("export dropped", slog.Any("error", err))
			_ = tracker.End(nil)
			return fmt.Errorf("report export %s: %v: %w", payload.ID, err, asynq.SkipRetry)
		}
		if lastAttempt(ctx) {
			j.fail(ctx, logger, payload.ID, err)
		}
		logger.Error("generate export", slog.Any("error", err))
		return tracker.End(err)
	}

	if err := j.Store.Complete(ctx, payload.ID, art); err != nil {
		logger.Error("store export", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().ObserveArtifact(string(art.Format), len(art.Data))
	logger.Info("export ready", slog.String("name", art.Name), slog.Int("bytes", len(art.Data)))
	return tracker.End(nil)
}

func (j *ExportJob) fail(ctx context.Context, logger *slog.Logger, id string, cause error) {
	if err := j.Store.Fail(ctx, id, reports.Message(cause)); err != nil {
		logger.Error("record export failure", slog.Any("error", err))
	}
}

func (j *ExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ExportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, reports.ErrEmptyResult):
		return "empty"
	case reports.IsMissingFilter(err):
		return "missing_filter"
	}
	return "invalid"
}

// lastAttempt is true outside a worker, where no retry will follow.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// CacheBumpJob invalidates the report row cache on a schedule, so edits made
// outside the invalidation endpoint are picked up.
type CacheBumpJob struct {
	Cache   *reports.Cache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskReportCacheBump tasks.
func (j *CacheBumpJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("cache bump: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskReportCacheBump)
	version, err := j.Cache.Bump(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("cache bump: %w", err))
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("report cache bumped", slog.Int64("version", version))
	return tracker.End(nil)
}
