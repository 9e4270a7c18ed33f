package perf

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/odyssey-erp/shopreports/internal/jobs"
	"github.com/odyssey-erp/shopreports/internal/reports"
	"github.com/odyssey-erp/shopreports/jobs"
)

func TestExportJobThroughputAndReliability(t *testing.T) {
	if testing.Short() {
		t.Skip("throughput check skipped in short mode")
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reportReg := prometheus.NewRegistry()
	jobReg := prometheus.NewRegistry()
	store := reports.NewArtifactStore(client, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	job := jobs.NewExportJob(newService(500, reportReg), store, logger, jobmetrics.NewMetrics(jobReg))
	ctx := context.Background()

	requests := []reports.Request{
		{Kind: reports.KindStock, Format: reports.OutputXLSX, Filter: reports.Filter{ShopID: 1}},
		{Kind: reports.KindStockTrack, Format: reports.OutputPDF, Filter: reports.Filter{ShopID: 1}},
		{Kind: reports.KindExpenses, Format: reports.OutputXLSX, Filter: reports.Filter{ShopID: 1}},
	}
	for i := 0; i < 12; i++ {
		payload := jobs.NewExportPayload(requests[i%len(requests)])
		if err := store.MarkPending(ctx, payload.ID, payload.Request); err != nil {
			t.Fatalf("mark pending: %v", err)
		}
		task, err := jobs.NewExportTask(payload)
		if err != nil {
			t.Fatalf("build task: %v", err)
		}
		if err := job.Handle(ctx, task); err != nil {
			t.Fatalf("export %d failed: %v", i, err)
		}
	}

	// A customer ledger without a customer can never succeed and is skipped.
	bad := jobs.NewExportPayload(reports.Request{Kind: reports.KindCustomerLedger, Format: reports.OutputPDF, Filter: reports.Filter{ShopID: 1}})
	task, err := jobs.NewExportTask(bad)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(ctx, task); err == nil {
		t.Fatal("expected missing filter export to be dropped")
	}

	families, err := jobReg.Gather()
	if err != nil {
		t.Fatalf("failed to gather job metrics: %v", err)
	}
	success := metricValue(t, families, "shopreports_jobs_total", map[string]string{"job": jobs.TaskReportExport, "status": "success"})
	if success != 13 {
		t.Fatalf("expected 13 successful runs, got %f", success)
	}
	skipped := metricValue(t, families, "shopreports_jobs_skipped_total", map[string]string{"job": jobs.TaskReportExport, "reason": "missing_filter"})
	if skipped != 1 {
		t.Fatalf("expected one skipped export, got %f", skipped)
	}
	jobDuration := histogramMean(t, families, "shopreports_job_duration_seconds", map[string]string{"job": jobs.TaskReportExport})
	if jobDuration > 2.0 {
		t.Fatalf("export job duration above budget: %f", jobDuration)
	}

	reportFamilies, err := reportReg.Gather()
	if err != nil {
		t.Fatalf("failed to gather report metrics: %v", err)
	}
	pdfDuration := histogramMean(t, reportFamilies, "shopreports_render_duration_seconds", map[string]string{"kind": string(reports.KindStockTrack), "format": "pdf"})
	if pdfDuration > 2.0 {
		t.Fatalf("stock-track pdf render above budget: %f", pdfDuration)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
