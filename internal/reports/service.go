package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/odyssey-erp/shopreports/internal/ledger"
)

// Source fetches the complete filtered row set for a query, across every
// page the upstream exposes.
type Source interface {
	Transactions(ctx context.Context, q Query) ([]ledger.RawTransaction, error)
	StockTrack(ctx context.Context, q Query) ([]ledger.RawStockTrack, error)
	Expenses(ctx context.Context, q Query) ([]ledger.RawExpense, error)
	Stock(ctx context.Context, q Query) ([]ledger.RawStock, error)
}

// Service is the single error boundary of the report pipeline:
// validate, fetch, normalize, build and render.
type Service struct {
	source    Source
	cache     *Cache
	renderers map[OutputFormat]Renderer
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires a Source with its cache, renderers and instrumentation.
func NewService(source Source, cache *Cache, renderers []Renderer, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	byFormat := make(map[OutputFormat]Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}
	return &Service{
		source:    source,
		cache:     cache,
		renderers: byFormat,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Cache exposes the row cache for invalidation.
func (s *Service) Cache() *Cache { return s.cache }

// Preview builds the document model for on-screen display. An empty row set
// yields ErrEmptyResult.
func (s *Service) Preview(ctx context.Context, req Request) (doc Document, err error) {
	req = req.normalized()
	start := time.Now()
	defer func() { s.metrics.observe(req.Kind, "", outcome(err), start) }()
	return s.document(ctx, req, false)
}

// Generate renders the requested report. Unless allowEmpty is set an empty
// row set yields ErrEmptyResult and nothing is rendered; otherwise a
// header-only document is produced.
func (s *Service) Generate(ctx context.Context, req Request, allowEmpty bool) (art Artifact, err error) {
	req = req.normalized()
	start := time.Now()
	defer func() { s.metrics.observe(req.Kind, req.Format, outcome(err), start) }()

	format, err := ParseOutputFormat(string(req.Format))
	if err != nil {
		return Artifact{}, err
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %q not configured", ErrUnknownFormat, format)
	}
	doc, err := s.document(ctx, req, allowEmpty)
	if err != nil {
		return Artifact{}, err
	}
	data, err := s.render(renderer, doc)
	if err != nil {
		s.logger.Error("render report", slog.String("kind", string(req.Kind)), slog.String("format", string(format)), slog.Any("error", err))
		return Artifact{}, err
	}
	return Artifact{
		Name:        doc.FileName(string(format), s.now()),
		Format:      format,
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

func (s *Service) render(renderer Renderer, doc Document) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("render panic", slog.Any("panic", rec), slog.String("stack", string(debug.Stack())))
			data, err = nil, &RenderError{Kind: doc.Kind, Stage: StageRender, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	data, err = renderer.Render(doc)
	if err != nil {
		return nil, &RenderError{Kind: doc.Kind, Stage: StageRender, Err: err}
	}
	return data, nil
}

func (s *Service) document(ctx context.Context, req Request, allowEmpty bool) (doc Document, err error) {
	if err := req.Validate(); err != nil {
		return Document{}, err
	}
	stage := StageFetch
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("build panic", slog.String("kind", string(req.Kind)), slog.Any("panic", rec), slog.String("stack", string(debug.Stack())))
			doc, err = Document{}, &RenderError{Kind: req.Kind, Stage: stage, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	q := QueryFor(req.Kind, req.Filter)
	now := s.now()
	var fallbacks []ledger.Coercion
	var rowCount int

	switch req.Kind {
	case KindCustomerLedger, KindVendorLedger, KindTransactions:
		raw, err := fetchCached(ctx, s.cache, "transactions", q, s.source.Transactions)
		if err != nil {
			return Document{}, s.fetchFailed(req.Kind, err)
		}
		stage = StageNormalize
		rows, c := ledger.NormalizeTransactions(raw)
		fallbacks, rowCount = c, len(rows)
		stage = StageBuild
		doc = BuildLedger(req, rows, now)
	case KindStockTrack:
		raw, err := fetchCached(ctx, s.cache, "stock-track", q, s.source.StockTrack)
		if err != nil {
			return Document{}, s.fetchFailed(req.Kind, err)
		}
		stage = StageNormalize
		rows, c := ledger.NormalizeStockTrack(raw)
		fallbacks, rowCount = c, len(rows)
		stage = StageBuild
		doc = BuildStockTrack(req, rows, now)
	case KindStock:
		raw, err := fetchCached(ctx, s.cache, "stock", q, s.source.Stock)
		if err != nil {
			return Document{}, s.fetchFailed(req.Kind, err)
		}
		stage = StageNormalize
		rows, c := ledger.NormalizeStock(raw)
		fallbacks, rowCount = c, len(rows)
		stage = StageBuild
		doc = BuildStock(req, rows, now)
	case KindExpenses:
		raw, err := fetchCached(ctx, s.cache, "expenses", q, s.source.Expenses)
		if err != nil {
			return Document{}, s.fetchFailed(req.Kind, err)
		}
		stage = StageNormalize
		rows, c := ledger.NormalizeExpenses(raw)
		fallbacks, rowCount = c, len(rows)
		stage = StageBuild
		doc = BuildExpenses(req, rows, now)
	case KindBalanceSheet:
		rawTx, err := fetchCached(ctx, s.cache, "transactions", q, s.source.Transactions)
		if err != nil {
			return Document{}, s.fetchFailed(req.Kind, err)
		}
		rawExp, err := fetchCached(ctx, s.cache, "expenses", q, s.source.Expenses)
		if err != nil {
			return Document{}, s.fetchFailed(req.Kind, err)
		}
		stage = StageNormalize
		tx, c1 := ledger.NormalizeTransactions(rawTx)
		exp, c2 := ledger.NormalizeExpenses(rawExp)
		fallbacks, rowCount = append(c1, c2...), len(tx)+len(exp)
		stage = StageBuild
		doc = BuildBalanceSheet(req, tx, exp, now)
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	s.logCoercions(req.Kind, fallbacks)
	doc.Coercions = fallbacks
	if rowCount == 0 {
		s.logger.Warn("report has no rows", slog.String("kind", string(req.Kind)), slog.Int64("shop_id", req.Filter.ShopID))
		if !allowEmpty {
			return Document{}, ErrEmptyResult
		}
	}
	s.metrics.rowCount(req.Kind, rowCount)
	return doc, nil
}

func (s *Service) fetchFailed(kind Kind, err error) error {
	s.logger.Error("fetch report rows", slog.String("kind", string(kind)), slog.Any("error", err))
	return &RenderError{Kind: kind, Stage: StageFetch, Err: err}
}

func (s *Service) logCoercions(kind Kind, fallbacks []ledger.Coercion) {
	for _, c := range fallbacks {
		s.logger.Warn("coerce malformed number",
			slog.String("kind", string(kind)),
			slog.String("field", c.Field),
			slog.Int("row", c.Row),
			slog.String("raw", c.Raw),
		)
		s.metrics.coercion(kind, c.Field)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyResult):
		return "empty"
	case IsMissingFilter(err):
		return "invalid"
	case IsRenderFailure(err):
		return "failed"
	}
	return "invalid"
}
