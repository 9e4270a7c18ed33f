package reports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/shopreports/internal/ledger"
)

type fakeSource struct {
	transactions []ledger.RawTransaction
	stockTrack   []ledger.RawStockTrack
	expenses     []ledger.RawExpense
	stock        []ledger.RawStock
	err          error
	calls        int
	lastQuery    Query
}

func (f *fakeSource) Transactions(ctx context.Context, q Query) ([]ledger.RawTransaction, error) {
	f.calls++
	f.lastQuery = q
	return f.transactions, f.err
}

func (f *fakeSource) StockTrack(ctx context.Context, q Query) ([]ledger.RawStockTrack, error) {
	f.calls++
	f.lastQuery = q
	return f.stockTrack, f.err
}

func (f *fakeSource) Expenses(ctx context.Context, q Query) ([]ledger.RawExpense, error) {
	f.calls++
	f.lastQuery = q
	return f.expenses, f.err
}

func (f *fakeSource) Stock(ctx context.Context, q Query) ([]ledger.RawStock, error) {
	f.calls++
	f.lastQuery = q
	return f.stock, f.err
}

type recordingRenderer struct {
	format OutputFormat
	docs   []Document
	panic  bool
}

func (r *recordingRenderer) Format() OutputFormat { return r.format }

func (r *recordingRenderer) Render(doc Document) ([]byte, error) {
	if r.panic {
		var cells []Cell
		_ = cells[3]
	}
	r.docs = append(r.docs, doc)
	return []byte("rendered"), nil
}

func newTestService(t *testing.T, source Source, renderers ...Renderer) (*Service, *Metrics, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(source, NewCache(client, time.Minute), renderers, metrics, logger)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, metrics, mr
}

func scenarioTransactions() []ledger.RawTransaction {
	return []ledger.RawTransaction{
		{TransactionNumber: "T1", Date: "2024-01-01", Quantity: ledger.Num(1), Price: ledger.Num(100), Total: ledger.Num(100), Paid: ledger.Num(100)},
		{TransactionNumber: "T2", Date: "2024-01-02", Quantity: ledger.Num(5), Price: ledger.Num(50), Total: ledger.ParseNumber("250"), Paid: ledger.Num(100)},
		{TransactionNumber: "T3", Date: "2024-01-03", Quantity: ledger.Num(2), Price: ledger.Num(25), Total: ledger.Num(50), Paid: ledger.Num(0)},
	}
}

func TestGenerateCustomerLedger(t *testing.T) {
	source := &fakeSource{transactions: scenarioTransactions()}
	renderer := &recordingRenderer{format: OutputXLSX}
	svc, _, _ := newTestService(t, source, renderer)

	art, err := svc.Generate(context.Background(), Request{
		Kind:   KindCustomerLedger,
		Format: OutputXLSX,
		Filter: Filter{ShopID: 3, EntityID: 8},
		Meta:   Meta{ShopName: "Corner", EntityName: "Acme"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "CustomerLedger_Acme_1700000000000.xlsx", art.Name)
	assert.Equal(t, OutputXLSX.ContentType(), art.ContentType)
	assert.Equal(t, []byte("rendered"), art.Data)

	require.Len(t, renderer.docs, 1)
	assert.Equal(t, 200.0, renderer.docs[0].GrandTotal())
	assert.Equal(t, int64(8), source.lastQuery.CustomerID)
}

func TestGenerateRejectsMissingFilterBeforeFetch(t *testing.T) {
	source := &fakeSource{transactions: scenarioTransactions()}
	svc, _, _ := newTestService(t, source, &recordingRenderer{format: OutputPDF})

	_, err := svc.Generate(context.Background(), Request{Kind: KindVendorLedger, Format: OutputPDF, Filter: Filter{ShopID: 1}}, false)
	require.True(t, IsMissingFilter(err))
	assert.Zero(t, source.calls)
}

func TestGenerateUnknownFormat(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeSource{}, &recordingRenderer{format: OutputXLSX})
	_, err := svc.Generate(context.Background(), Request{Kind: KindStock, Format: OutputPDF, Filter: Filter{ShopID: 1}}, false)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestGenerateEmptyResult(t *testing.T) {
	renderer := &recordingRenderer{format: OutputPDF}
	svc, _, _ := newTestService(t, &fakeSource{}, renderer)
	req := Request{Kind: KindExpenses, Format: OutputPDF, Filter: Filter{ShopID: 1}}

	_, err := svc.Generate(context.Background(), req, false)
	require.ErrorIs(t, err, ErrEmptyResult)
	assert.Empty(t, renderer.docs)

	art, err := svc.Generate(context.Background(), req, true)
	require.NoError(t, err)
	assert.NotEmpty(t, art.Data)
	require.Len(t, renderer.docs, 1)
	assert.Zero(t, renderer.docs[0].RowCount())
}

func TestGenerateRecoversRendererPanic(t *testing.T) {
	source := &fakeSource{stock: []ledger.RawStock{{Stock: ledger.Num(1), Price: ledger.Num(2)}}}
	svc, _, _ := newTestService(t, source, &recordingRenderer{format: OutputXLSX, panic: true})

	art, err := svc.Generate(context.Background(), Request{Kind: KindStock, Format: OutputXLSX, Filter: Filter{ShopID: 1}}, false)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, StageRender, renderErr.Stage)
	assert.Empty(t, art.Data)
}

func TestGenerateWrapsFetchFailure(t *testing.T) {
	upstream := errors.New("connection refused")
	svc, _, _ := newTestService(t, &fakeSource{err: upstream}, &recordingRenderer{format: OutputXLSX})

	_, err := svc.Generate(context.Background(), Request{Kind: KindStock, Format: OutputXLSX, Filter: Filter{ShopID: 1}}, false)
	require.True(t, IsRenderFailure(err))
	assert.ErrorIs(t, err, upstream)
}

func TestPreviewCachesRawRowsAndCountsCoercions(t *testing.T) {
	source := &fakeSource{stockTrack: []ledger.RawStockTrack{
		{Date: "2024-01-01", IsPurchased: true, Inventory: nil, Stock: ledger.Num(10), Price: ledger.ParseNumber("abc")},
		{Date: "2024-01-02", IsPurchased: false, Stock: ledger.Num(4), Price: ledger.Num(40)},
	}}
	svc, metrics, _ := newTestService(t, source)
	req := Request{Kind: KindStockTrack, Filter: Filter{ShopID: 1}}

	doc, err := svc.Preview(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, doc.Coercions, 1)
	assert.Equal(t, 40.0, doc.GrandTotal())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.coercions.WithLabelValues(string(KindStockTrack), "price")))

	again, err := svc.Preview(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "second preview must be served from cache")
	assert.Equal(t, doc.Sections, again.Sections)
	require.Len(t, again.Coercions, 1, "malformed values survive the cache")

	_, err = svc.Cache().Bump(context.Background())
	require.NoError(t, err)
	_, err = svc.Preview(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestBalanceSheetFetchesTransactionsAndExpenses(t *testing.T) {
	source := &fakeSource{
		transactions: scenarioTransactions(),
		expenses:     []ledger.RawExpense{{Title: "Rent", Type: "FIXED", Amount: ledger.Num(75)}},
	}
	svc, _, _ := newTestService(t, source)

	doc, err := svc.Preview(context.Background(), Request{Kind: KindBalanceSheet, Filter: Filter{ShopID: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, 325.0, doc.GrandTotal())
}

func TestGenerateFallsBackToSourceWhenRedisDrops(t *testing.T) {
	source := &fakeSource{transactions: scenarioTransactions()}
	svc, _, mr := newTestService(t, source, &recordingRenderer{format: OutputXLSX})
	req := Request{Kind: KindTransactions, Format: OutputXLSX, Filter: Filter{ShopID: 1}}
	ctx := context.Background()

	_, err := svc.Generate(ctx, req, false)
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	mr.Close()

	art, err := svc.Generate(ctx, req, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("rendered"), art.Data)
	assert.Equal(t, 2, source.calls)
}

func TestGenerateNormalizesKindCase(t *testing.T) {
	source := &fakeSource{transactions: scenarioTransactions()}
	renderer := &recordingRenderer{format: OutputXLSX}
	svc, _, _ := newTestService(t, source, renderer)

	_, err := svc.Generate(context.Background(), Request{Kind: "Customer-Ledger", Format: OutputXLSX, Filter: Filter{ShopID: 1}}, false)
	require.True(t, IsMissingFilter(err))
	assert.Zero(t, source.calls)

	_, err = svc.Generate(context.Background(), Request{Kind: " Customer-Ledger", Format: OutputXLSX, Filter: Filter{ShopID: 1, EntityID: 4}}, false)
	require.NoError(t, err)
	require.Len(t, renderer.docs, 1)
	assert.Equal(t, KindCustomerLedger, renderer.docs[0].Kind)
	assert.Equal(t, int64(4), source.lastQuery.CustomerID)
}
