// Package reporthttp exposes report previews and exports over HTTP.
package reporthttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/shopreports/internal/platform/httpx"
	"github.com/odyssey-erp/shopreports/internal/reports"
	"github.com/odyssey-erp/shopreports/jobs"
)

const defaultExportLimit = 10

// ReportService is the report pipeline used by the handler.
type ReportService interface {
	Preview(ctx context.Context, req reports.Request) (reports.Document, error)
	Generate(ctx context.Context, req reports.Request, allowEmpty bool) (reports.Artifact, error)
}

// ExportQueue submits asynchronous exports.
type ExportQueue interface {
	EnqueueExport(ctx context.Context, payload jobs.ExportPayload) error
}

// ExportStore tracks asynchronous exports.
type ExportStore interface {
	MarkPending(ctx context.Context, id string, req reports.Request) error
	Fail(ctx context.Context, id string, message string) error
	Get(ctx context.Context, id string) (reports.ExportRecord, []byte, error)
}

// CacheBumper invalidates cached row sets.
type CacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// Handler serves the report endpoints.
type Handler struct {
	logger      *slog.Logger
	service     ReportService
	queue       ExportQueue
	store       ExportStore
	cache       CacheBumper
	exportLimit int
}

// NewHandler constructs the report HTTP handler. queue and store may be nil,
// in which case asynchronous exports answer 503.
func NewHandler(logger *slog.Logger, service ReportService, queue ExportQueue, store ExportStore, cache CacheBumper, exportLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if exportLimit <= 0 {
		exportLimit = defaultExportLimit
	}
	return &Handler{
		logger:      logger,
		service:     service,
		queue:       queue,
		store:       store,
		cache:       cache,
		exportLimit: exportLimit,
	}
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Preview(r.Context(), req)
	if err != nil {
		h.respondError(w, "preview report", req, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	format, err := parseFormat(r)
	if err != nil {
		h.respondError(w, "export report", req, err)
		return
	}
	req.Format = format
	art, err := h.service.Generate(r.Context(), req, parseAllowEmpty(r))
	if err != nil {
		h.respondError(w, "export report", req, err)
		return
	}
	httpx.Attachment(w, art.Name, art.ContentType, art.Data)
}

type enqueueResponse struct {
	ID        string               `json:"id"`
	Status    reports.ExportStatus `json:"status"`
	StatusURL string               `json:"statusUrl"`
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil || h.store == nil {
		httpx.RespondError(w, fmt.Errorf("%w: export queue not configured", httpx.ErrUnavailable))
		return
	}
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	format, err := parseFormat(r)
	if err != nil {
		h.respondError(w, "enqueue export", req, err)
		return
	}
	req.Format = format
	if err := req.Validate(); err != nil {
		h.respondError(w, "enqueue export", req, err)
		return
	}

	payload := jobs.NewExportPayload(req)
	payload.AllowEmpty = parseAllowEmpty(r)
	ctx := r.Context()
	if err := h.store.MarkPending(ctx, payload.ID, req); err != nil {
		h.logger.Error("mark export pending", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.queue.EnqueueExport(ctx, payload); err != nil {
		h.logger.Error("enqueue export", slog.String("export_id", payload.ID), slog.Any("error", err))
		if ferr := h.store.Fail(ctx, payload.ID, "export queue unavailable"); ferr != nil {
			h.logger.Error("record export failure", slog.Any("error", ferr))
		}
		httpx.RespondError(w, fmt.Errorf("%w: export queue unavailable", httpx.ErrUnavailable))
		return
	}

	statusURL := "/reports/exports/" + payload.ID
	w.Header().Set("Location", statusURL)
	httpx.JSON(w, http.StatusAccepted, enqueueResponse{ID: payload.ID, Status: reports.ExportPending, StatusURL: statusURL})
}

func (h *Handler) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httpx.RespondError(w, fmt.Errorf("%w: export store not configured", httpx.ErrUnavailable))
		return
	}
	id := chi.URLParam(r, "id")
	record, data, err := h.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, reports.ErrExportNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: export %s", httpx.ErrNotFound, id))
		return
	case err != nil:
		h.logger.Error("load export", slog.String("export_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	switch record.Status {
	case reports.ExportReady:
		httpx.Attachment(w, record.Name, record.ContentType, data)
	case reports.ExportFailed:
		httpx.Problem(w, http.StatusUnprocessableEntity, "Export Failed", record.Error)
	default:
		httpx.JSON(w, http.StatusAccepted, record)
	}
}

type invalidateResponse struct {
	Version int64 `json:"version"`
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		httpx.JSON(w, http.StatusOK, invalidateResponse{})
		return
	}
	version, err := h.cache.Bump(r.Context())
	if err != nil {
		h.logger.Error("bump report cache", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invalidateResponse{Version: version})
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) (reports.Request, bool) {
	kind, err := reports.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.respondError(w, "parse report kind", reports.Request{}, err)
		return reports.Request{}, false
	}
	req, err := parseRequest(r, kind)
	if err != nil {
		h.respondError(w, "parse report filters", reports.Request{Kind: kind}, err)
		return reports.Request{}, false
	}
	return req, true
}

// respondError maps pipeline errors to problem responses. An empty result is
// a warning, not a failure.
func (h *Handler) respondError(w http.ResponseWriter, op string, req reports.Request, err error) {
	attrs := []any{
		slog.String("kind", string(req.Kind)),
		slog.Int64("shop_id", req.Filter.ShopID),
		slog.Any("error", err),
	}
	switch {
	case errors.Is(err, reports.ErrEmptyResult):
		h.logger.Warn(op, attrs...)
		httpx.Problem(w, http.StatusNotFound, "No Data", "no rows match the selected filters")
	case reports.IsMissingFilter(err):
		httpx.Problem(w, http.StatusBadRequest, "Missing Filter", reports.Message(err))
	case errors.Is(err, reports.ErrUnknownKind),
		errors.Is(err, reports.ErrUnknownFormat),
		errors.Is(err, reports.ErrInvalidFilter):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	default:
		h.logger.Error(op, attrs...)
		httpx.Problem(w, http.StatusInternalServerError, "Report Failed", reports.Message(err))
	}
}
