package reporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/shopreports/internal/platform/httpx"
	"github.com/odyssey-erp/shopreports/internal/reports"
	"github.com/odyssey-erp/shopreports/jobs"
	_ "github.com/odyssey-erp/shopreports/testing"
)

type stubService struct {
	doc        reports.Document
	art        reports.Artifact
	err        error
	last       reports.Request
	allowEmpty bool
}

func (s *stubService) Preview(_ context.Context, req reports.Request) (reports.Document, error) {
	s.last = req
	if err := req.Validate(); err != nil {
		return reports.Document{}, err
	}
	return s.doc, s.err
}

func (s *stubService) Generate(_ context.Context, req reports.Request, allowEmpty bool) (reports.Artifact, error) {
	s.last = req
	s.allowEmpty = allowEmpty
	if err := req.Validate(); err != nil {
		return reports.Artifact{}, err
	}
	return s.art, s.err
}

type stubQueue struct {
	payloads []jobs.ExportPayload
	err      error
}

func (q *stubQueue) EnqueueExport(_ context.Context, payload jobs.ExportPayload) error {
	q.payloads = append(q.payloads, payload)
	return q.err
}

type fixture struct {
	router  http.Handler
	service *stubService
	queue   *stubQueue
	store   *reports.ArtifactStore
	cache   *reports.Cache
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		service: &stubService{},
		queue:   &stubQueue{},
		store:   reports.NewArtifactStore(client, time.Minute),
		cache:   reports.NewCache(client, time.Minute),
	}
	r := chi.NewRouter()
	NewHandler(nil, f.service, f.queue, f.store, f.cache, limit).MountRoutes(r)
	f.router = r
	return f
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestPreviewParsesFilters(t *testing.T) {
	f := newFixture(t, 10)
	f.service.doc = reports.Document{Kind: reports.KindCustomerLedger, Title: "Customer Ledger"}

	rr := f.do(http.MethodGet, "/reports/customer-ledger?shop_id=3&entity_id=9&start_date=2024-01-01&end_date=2024-01-31&search_by=rice&shop_name=Corner&entity_name=Ann")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := f.service.last
	assert.Equal(t, reports.KindCustomerLedger, got.Kind)
	assert.Equal(t, int64(3), got.Filter.ShopID)
	assert.Equal(t, int64(9), got.Filter.EntityID)
	assert.Equal(t, "rice", got.Filter.SearchBy)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), got.Filter.To)
	assert.Equal(t, "Corner", got.Meta.ShopName)
	assert.Equal(t, "Ann", got.Meta.EntityName)

	var doc reports.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "Customer Ledger", doc.Title)
}

func TestPreviewMissingEntityIs400(t *testing.T) {
	f := newFixture(t, 10)
	rr := f.do(http.MethodGet, "/reports/vendor-ledger?shop_id=3")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "Missing Filter", p.Title)
	assert.Equal(t, "missing required filter: entity_id", p.Detail)
}

func TestBadInputsAre400(t *testing.T) {
	f := newFixture(t, 10)
	for _, target := range []string{
		"/reports/payroll?shop_id=1",
		"/reports/stock?shop_id=abc",
		"/reports/stock?shop_id=1&start_date=01/02/2024",
		"/reports/stock-track?shop_id=1&ids=4,x",
		"/reports/stock/export?shop_id=1&format=csv",
	} {
		rr := f.do(http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestEmptyResultIsNoData(t *testing.T) {
	f := newFixture(t, 10)
	f.service.err = reports.ErrEmptyResult
	rr := f.do(http.MethodGet, "/reports/expenses/export?shop_id=1&format=pdf")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "No Data", decodeProblem(t, rr).Title)
}

func TestRenderFailureHidesCause(t *testing.T) {
	f := newFixture(t, 10)
	f.service.err = &reports.RenderError{Kind: reports.KindStock, Stage: reports.StageRender, Err: errors.New("font table corrupt")}
	rr := f.do(http.MethodGet, "/reports/stock/export?shop_id=1")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "failed to generate report, try again", p.Detail)
	assert.NotContains(t, rr.Body.String(), "font table")
}

func TestExportServesAttachment(t *testing.T) {
	f := newFixture(t, 10)
	f.service.art = reports.Artifact{
		Name:        "Stock_1700000000000.xlsx",
		Format:      reports.OutputXLSX,
		ContentType: reports.OutputXLSX.ContentType(),
		Data:        []byte("PK\x03\x04"),
	}
	rr := f.do(http.MethodGet, "/reports/stock/export?shop_id=1&allow_empty=true")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, reports.OutputXLSX, f.service.last.Format)
	assert.True(t, f.service.allowEmpty)
	assert.Equal(t, `attachment; filename="Stock_1700000000000.xlsx"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK\x03\x04", rr.Body.String())
}

func TestExportRateLimited(t *testing.T) {
	f := newFixture(t, 1)
	f.service.art = reports.Artifact{Name: "Stock_1.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/reports/stock/export?shop_id=1&format=pdf").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/reports/stock/export?shop_id=1&format=pdf").Code)
	// previews are not limited
	f.service.doc = reports.Document{Kind: reports.KindStock}
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/reports/stock?shop_id=1").Code)
}

func TestAsyncExportLifecycle(t *testing.T) {
	f := newFixture(t, 10)
	rr := f.do(http.MethodPost, "/reports/stock-track/exports?shop_id=2&ids=5,6&format=pdf")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp enqueueResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, "/reports/exports/"+resp.ID, rr.Header().Get("Location"))
	require.Len(t, f.queue.payloads, 1)
	assert.Equal(t, []int64{5, 6}, f.queue.payloads[0].Request.Filter.IDs)
	assert.Equal(t, reports.OutputPDF, f.queue.payloads[0].Request.Format)

	pending := f.do(http.MethodGet, resp.StatusURL)
	assert.Equal(t, http.StatusAccepted, pending.Code)

	ctx := context.Background()
	require.NoError(t, f.store.Complete(ctx, resp.ID, reports.Artifact{
		Name: "StockTrack_1.pdf", Format: reports.OutputPDF, ContentType: "application/pdf", Data: []byte("%PDF-1.3"),
	}))
	ready := f.do(http.MethodGet, resp.StatusURL)
	require.Equal(t, http.StatusOK, ready.Code)
	assert.Equal(t, "%PDF-1.3", ready.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/reports/exports/unknown").Code)
}

func TestAsyncExportValidatesBeforeEnqueue(t *testing.T) {
	f := newFixture(t, 10)
	rr := f.do(http.MethodPost, "/reports/customer-ledger/exports?shop_id=2")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, f.queue.payloads)
}

func TestAsyncExportQueueFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.queue.err = errors.New("redis down")
	rr := f.do(http.MethodPost, "/reports/stock/exports?shop_id=2")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Len(t, f.queue.payloads, 1)

	record, _, err := f.store.Get(context.Background(), f.queue.payloads[0].ID)
	require.NoError(t, err)
	assert.Equal(t, reports.ExportFailed, record.Status)

	failed := f.do(http.MethodGet, "/reports/exports/"+record.ID)
	assert.Equal(t, http.StatusUnprocessableEntity, failed.Code)
}

func TestInvalidateBumpsVersion(t *testing.T) {
	f := newFixture(t, 10)
	before, err := f.cache.Version(context.Background())
	require.NoError(t, err)

	rr := f.do(http.MethodPost, "/reports/cache/invalidate")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp invalidateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, before+1, resp.Version)
}
