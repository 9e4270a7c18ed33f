package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/shopreports/internal/jobs"
	"github.com/odyssey-erp/shopreports/internal/reports"
	_ "github.com/odyssey-erp/shopreports/testing"
)

type stubGenerator struct {
	art reports.Artifact
	err error
	got reports.Request
}

func (g *stubGenerator) Generate(_ context.Context, req reports.Request, _ bool) (reports.Artifact, error) {
	g.got = req
	return g.art, g.err
}

func newExportFixture(t *testing.T, gen ReportGenerator) (*ExportJob, *reports.ArtifactStore, *prometheus.Registry) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := reports.NewArtifactStore(client, time.Minute)
	registry := prometheus.NewRegistry()
	return NewExportJob(gen, store, nil, jobmetrics.NewMetrics(registry)), store, registry
}

func exportTask(t *testing.T, payload ExportPayload) *asynq.Task {
	t.Helper()
	task, err := NewExportTask(payload)
	require.NoError(t, err)
	return task
}

func stockRequest() reports.Request {
	return reports.Request{
		Kind:   reports.KindStock,
		Format: reports.OutputXLSX,
		Filter: reports.Filter{ShopID: 7},
	}
}

func TestExportJobStoresArtifact(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{art: reports.Artifact{
		Name:        "Stock_1.xlsx",
		Format:      reports.OutputXLSX,
		ContentType: reports.OutputXLSX.ContentType(),
		Data:        []byte("PK"),
	}}
	job, store, _ := newExportFixture(t, gen)

	payload := NewExportPayload(stockRequest())
	require.NoError(t, store.MarkPending(ctx, payload.ID, payload.Request))
	require.NoError(t, job.Handle(ctx, exportTask(t, payload)))

	assert.Equal(t, int64(7), gen.got.Filter.ShopID)
	record, data, err := store.Get(ctx, payload.ID)
	require.NoError(t, err)
	assert.Equal(t, reports.ExportReady, record.Status)
	assert.Equal(t, reports.KindStock, record.Kind)
	assert.Equal(t, []byte("PK"), data)
}

func TestExportJobSkipsRetryOnEmptyResult(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{err: reports.ErrEmptyResult}
	job, store, registry := newExportFixture(t, gen)

	payload := NewExportPayload(stockRequest())
	err := job.Handle(ctx, exportTask(t, payload))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	record, _, err := store.Get(ctx, payload.ID)
	require.NoError(t, err)
	assert.Equal(t, reports.ExportFailed, record.Status)
	assert.Equal(t, "No Data", record.Error)

	assert.Equal(t, 1, testutil.CollectAndCount(registry, "shopreports_jobs_skipped_total"))
}

func TestExportJobMissingFilterIsNotRetried(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{err: &reports.MissingFilterError{Field: "entity_id"}}
	job, store, _ := newExportFixture(t, gen)

	payload := NewExportPayload(reports.Request{Kind: reports.KindCustomerLedger, Format: reports.OutputPDF})
	err := job.Handle(ctx, exportTask(t, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	record, _, err := store.Get(ctx, payload.ID)
	require.NoError(t, err)
	assert.Equal(t, "missing required filter: entity_id", record.Error)
}

func TestExportJobRenderFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	cause := &reports.RenderError{Kind: reports.KindStock, Stage: reports.StageRender, Err: errors.New("boom")}
	job, store, _ := newExportFixture(t, &stubGenerator{err: cause})

	payload := NewExportPayload(stockRequest())
	err := job.Handle(ctx, exportTask(t, payload))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	// Outside a worker there is no retry left, so the export is marked failed.
	record, _, err := store.Get(ctx, payload.ID)
	require.NoError(t, err)
	assert.Equal(t, reports.ExportFailed, record.Status)
	assert.Equal(t, "failed to generate report, try again", record.Error)
}

func TestExportJobRejectsBadPayload(t *testing.T) {
	job, _, _ := newExportFixture(t, &stubGenerator{})
	err := job.Handle(context.Background(), asynq.NewTask(TaskReportExport, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewExportTask(t *testing.T) {
	_, err := NewExportTask(ExportPayload{})
	require.Error(t, err)

	payload := NewExportPayload(stockRequest())
	payload.AllowEmpty = true
	task, err := NewExportTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskReportExport, task.Type())

	var decoded ExportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload.ID, decoded.ID)
	assert.True(t, decoded.AllowEmpty)
	assert.Equal(t, reports.KindStock, decoded.Request.Kind)
}

func TestCacheBumpJob(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := reports.NewCache(client, time.Minute)

	before, err := cache.Version(ctx)
	require.NoError(t, err)

	job := &CacheBumpJob{Cache: cache, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	require.NoError(t, job.Handle(ctx, NewCacheBumpTask()))

	after, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}
