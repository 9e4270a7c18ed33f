package ledger

import "sort"

// Line is implemented by every row type that contributes to totals.
type Line interface {
	LineQuantity() float64
	LineAmount() float64
}

// Payer is implemented by rows that carry a paid amount.
type Payer interface {
	LinePaid() float64
}

// Summary holds the derived totals of a row set. It is recomputed for every
// render and never cached.
type Summary struct {
	Count    int     `json:"totalCount"`
	Quantity float64 `json:"totalQuantity"`
	Amount   float64 `json:"totalAmount"`
	Paid     float64 `json:"totalPaid"`
	Pending  float64 `json:"totalPending"`
}

// GrandTotal sums a row set. Sums are accumulated without intermediate rounding.
func GrandTotal[T Line](rows []T) Summary {
	var s Summary
	for _, row := range rows {
		s.Count++
		s.Quantity += row.LineQuantity()
		s.Amount += row.LineAmount()
		if p, ok := any(row).(Payer); ok {
			s.Paid += p.LinePaid()
		}
	}
	s.Pending = s.Amount - s.Paid
	return s
}

// Balance is the amount still owed on a ledger.
type Balance struct {
	BalanceDue float64 `json:"balanceDue"`
}

// LedgerBalance returns total amount minus total paid. Overpayment yields a
// negative balance and is kept as such.
func LedgerBalance(s Summary) Balance {
	return Balance{BalanceDue: s.Amount - s.Paid}
}

// Group is a set of rows sharing a key, in input order, with its subtotal.
type Group[T Line] struct {
	Key      string  `json:"key"`
	Rows     []T     `json:"rows"`
	Subtotal Summary `json:"subtotal"`
}

// GroupBy partitions rows by key. Groups keep the order in which their key
// was first seen.
func GroupBy[T Line](rows []T, key func(T) string) []Group[T] {
	index := make(map[string]int)
	groups := make([]Group[T], 0)
	for _, row := range rows {
		k := key(row)
		pos, ok := index[k]
		if !ok {
			pos = len(groups)
			index[k] = pos
			groups = append(groups, Group[T]{Key: k})
		}
		groups[pos].Rows = append(groups[pos].Rows, row)
	}
	for i := range groups {
		groups[i].Subtotal = GrandTotal(groups[i].Rows)
	}
	return groups
}

// ByInventory keys stock-track rows by inventory name.
func ByInventory(row StockTrackRow) string { return row.Inventory }

// ByCounterparty keys ledger rows by customer or vendor name.
func ByCounterparty(row LedgerRow) string { return row.Counterparty }

// SortByDate returns a copy of rows ordered ascending by date. Equal dates
// keep their input order.
func SortByDate(rows []StockTrackRow) []StockTrackRow {
	sorted := make([]StockTrackRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// StockBalanceRow is a stock movement with the balance after it.
type StockBalanceRow struct {
	StockTrackRow
	RunningBalance float64 `json:"runningBalance"`
}

// StockTrack is the result of a running stock computation.
type StockTrack struct {
	Rows           []StockBalanceRow `json:"rows"`
	TotalPurchased float64           `json:"totalPurchased"`
	TotalSold      float64           `json:"totalSold"`
	PurchaseAmount float64           `json:"purchaseAmount"`
	SaleAmount     float64           `json:"saleAmount"`
}

// Closing is the balance after the last movement.
func (t StockTrack) Closing() float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	return t.Rows[len(t.Rows)-1].RunningBalance
}

// RunningStock sorts rows by date and computes the running balance as a
// prefix sum of signed quantities. Purchased and sold totals are summed
// separately from the balance.
func RunningStock(rows []StockTrackRow) StockTrack {
	sorted := SortByDate(rows)
	track := StockTrack{Rows: make([]StockBalanceRow, 0, len(sorted))}
	var balance float64
	for _, row := range sorted {
		balance += row.Signed()
		if row.IsPurchased {
			track.TotalPurchased += row.Quantity
			track.PurchaseAmount += row.Amount
		} else {
			track.TotalSold += row.Quantity
			track.SaleAmount += row.Amount
		}
		track.Rows = append(track.Rows, StockBalanceRow{StockTrackRow: row, RunningBalance: balance})
	}
	return track
}
