// Package ledger turns raw shop records into typed report rows and aggregates them.
package ledger

import "time"

// NotAvailable is rendered in place of missing optional text fields.
const NotAvailable = "N/A"

// LedgerRow is one transaction-derived line of a customer, vendor or shop ledger.
// Total is carried from normalization and never recomputed by renderers.
type LedgerRow struct {
	TransactionNo   string    `json:"transactionNo"`
	Date            time.Time `json:"date"`
	Counterparty    string    `json:"counterparty"`
	Inventory       string    `json:"inventory"`
	Unit            string    `json:"unit"`
	Quantity        float64   `json:"quantity"`
	UnitPrice       float64   `json:"unitPrice"`
	Total           float64   `json:"total"`
	Paid            float64   `json:"paid"`
	PaymentType     string    `json:"paymentType"`
	TransactionType string    `json:"transactionType"`
}

// LineQuantity implements Line.
func (r LedgerRow) LineQuantity() float64 { return r.Quantity }

// LineAmount implements Line.
func (r LedgerRow) LineAmount() float64 { return r.Total }

// LinePaid implements Payer.
func (r LedgerRow) LinePaid() float64 { return r.Paid }

// StockTrackRow is one inventory movement. Quantity is never negative; the
// direction is carried by IsPurchased. UnitPrice is per unit, Amount is the
// line amount.
type StockTrackRow struct {
	Reference   string    `json:"reference"`
	Date        time.Time `json:"date"`
	Inventory   string    `json:"inventory"`
	Unit        string    `json:"unit"`
	IsPurchased bool      `json:"isPurchased"`
	Quantity    float64   `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	Amount      float64   `json:"amount"`
}

// LineQuantity implements Line.
func (r StockTrackRow) LineQuantity() float64 { return r.Quantity }

// LineAmount implements Line.
func (r StockTrackRow) LineAmount() float64 { return r.Amount }

// Signed returns the movement quantity signed by direction.
func (r StockTrackRow) Signed() float64 {
	if r.IsPurchased {
		return r.Quantity
	}
	return -r.Quantity
}

// Direction labels the movement for display.
func (r StockTrackRow) Direction() string {
	if r.IsPurchased {
		return "Purchase"
	}
	return "Sale"
}

// ExpenseRow is one shop expense.
type ExpenseRow struct {
	Date    time.Time `json:"date"`
	Title   string    `json:"title"`
	Type    string    `json:"type"`
	Amount  float64   `json:"amount"`
	Remarks string    `json:"remarks"`
}

// LineQuantity implements Line. Expenses carry no quantity.
func (r ExpenseRow) LineQuantity() float64 { return 0 }

// LineAmount implements Line.
func (r ExpenseRow) LineAmount() float64 { return r.Amount }

// StockRow is one line of the current stock list.
type StockRow struct {
	Inventory string  `json:"inventory"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Value     float64 `json:"value"`
}

// LineQuantity implements Line.
func (r StockRow) LineQuantity() float64 { return r.Quantity }

// LineAmount implements Line.
func (r StockRow) LineAmount() float64 { return r.Value }
