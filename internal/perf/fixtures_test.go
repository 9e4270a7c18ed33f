package perf

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/shopreports/internal/ledger"
	"github.com/odyssey-erp/shopreports/internal/reports"
)

var baseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// syntheticSource serves deterministic row sets of a fixed size.
type syntheticSource struct {
	rows int
}

func str(s string) *string { return &s }

func (s syntheticSource) Transactions(_ context.Context, _ reports.Query) ([]ledger.RawTransaction, error) {
	out := make([]ledger.RawTransaction, 0, s.rows)
	for i := 0; i < s.rows; i++ {
		qty := float64(1 + i%9)
		price := float64(10 + i%40)
		out = append(out, ledger.RawTransaction{
			ID:                int64(i + 1),
			TransactionNumber: fmt.Sprintf("TX-%06d", i+1),
			Date:              baseDate.AddDate(0, 0, i%365).Format("2006-01-02"),
			Type:              []string{"SALE", "PURCHASE"}[i%2],
			Customer:          &ledger.RawNamed{ID: int64(i%25 + 1), Name: str(fmt.Sprintf("Customer %d", i%25))},
			Inventory: &ledger.RawInventory{
				ID:            int64(i%60 + 1),
				Name:          str(fmt.Sprintf("Item %d", i%60)),
				UnitOfMeasure: &ledger.RawNamed{Name: str("pcs")},
			},
			Quantity:    ledger.Num(qty),
			Price:       ledger.Num(price),
			Total:       ledger.Num(qty * price),
			Paid:        ledger.Num(qty * price / 2),
			PaymentType: "CASH",
		})
	}
	return out, nil
}

func (s syntheticSource) StockTrack(_ context.Context, _ reports.Query) ([]ledger.RawStockTrack, error) {
	out := make([]ledger.RawStockTrack, 0, s.rows)
	for i := 0; i < s.rows; i++ {
		qty := float64(1 + i%12)
		out = append(out, ledger.RawStockTrack{
			ID:          int64(i + 1),
			Reference:   fmt.Sprintf("ST-%06d", i+1),
			Date:        baseDate.AddDate(0, 0, (i*7)%365).Format("2006-01-02"),
			Inventory:   &ledger.RawInventory{ID: int64(i%40 + 1), Name: str(fmt.Sprintf("Item %d", i%40))},
			IsPurchased: i%3 != 0,
			Stock:       ledger.Num(qty),
			Price:       ledger.Num(qty * 4.5),
		})
	}
	return out, nil
}

func (s syntheticSource) Expenses(_ context.Context, _ reports.Query) ([]ledger.RawExpense, error) {
	out := make([]ledger.RawExpense, 0, s.rows)
	for i := 0; i < s.rows; i++ {
		out = append(out, ledger.RawExpense{
			ID:     int64(i + 1),
			Date:   baseDate.AddDate(0, 0, i%365).Format("2006-01-02"),
			Title:  fmt.Sprintf("Expense %d", i),
			Type:   "OPERATIONAL",
			Amount: ledger.Num(float64(100 + i%500)),
		})
	}
	return out, nil
}

func (s syntheticSource) Stock(_ context.Context, _ reports.Query) ([]ledger.RawStock, error) {
	out := make([]ledger.RawStock, 0, s.rows)
	for i := 0; i < s.rows; i++ {
		out = append(out, ledger.RawStock{
			ID:    int64(i + 1),
			Name:  str(fmt.Sprintf("Item %d", i)),
			Stock: ledger.Num(float64(i % 300)),
			Price: ledger.Num(2.25),
		})
	}
	return out, nil
}

func stockTrackRows(n int) []ledger.StockTrackRow {
	rows := make([]ledger.StockTrackRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, ledger.StockTrackRow{
			Reference:   fmt.Sprintf("ST-%06d", i),
			Inventory:   fmt.Sprintf("Item %d", i%40),
			Date:        baseDate.AddDate(0, 0, (i*7)%365),
			IsPurchased: i%3 != 0,
			Quantity:    float64(1 + i%12),
			Amount:      float64(1+i%12) * 4.5,
		})
	}
	return rows
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
