package ledger

import (
	"strings"
	"time"
)

// Coercion records a numeric field that could not be read and was replaced by zero.
type Coercion struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Raw   string `json:"raw"`
}

type coercions []Coercion

func (c *coercions) value(row int, field string, n Number) float64 {
	if n.Malformed {
		*c = append(*c, Coercion{Row: row, Field: field, Raw: n.Raw})
		return 0
	}
	return n.Value
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate reads the date formats the shop API emits. Unknown input yields the zero time.
func ParseDate(values ...string) time.Time {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func text(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotAvailable
	}
	return v
}

func textPtr(v *string) string {
	if v == nil {
		return NotAvailable
	}
	return text(*v)
}

func namedText(n *RawNamed) string {
	if n == nil {
		return NotAvailable
	}
	return textPtr(n.Name)
}

func inventoryText(inv *RawInventory) (name, unit string) {
	if inv == nil {
		return NotAvailable, NotAvailable
	}
	return textPtr(inv.Name), namedText(inv.UnitOfMeasure)
}

// NormalizeTransactions converts transaction ledger items into ledger rows.
// A missing total is derived once here as quantity * price.
func NormalizeTransactions(raw []RawTransaction) ([]LedgerRow, []Coercion) {
	var fallbacks coercions
	rows := make([]LedgerRow, 0, len(raw))
	for i, item := range raw {
		inventory, unit := inventoryText(item.Inventory)
		counterparty := NotAvailable
		switch {
		case item.Customer != nil:
			counterparty = namedText(item.Customer)
		case item.Vendor != nil:
			counterparty = namedText(item.Vendor)
		}
		qty := fallbacks.value(i, "quantity", item.Quantity)
		price := fallbacks.value(i, "price", item.Price)
		total := qty * price
		if item.Total.Set {
			total = fallbacks.value(i, "total", item.Total)
		}
		rows = append(rows, LedgerRow{
			TransactionNo:   text(item.TransactionNumber),
			Date:            ParseDate(item.Date, item.CreatedAt),
			Counterparty:    counterparty,
			Inventory:       inventory,
			Unit:            unit,
			Quantity:        qty,
			UnitPrice:       price,
			Total:           total,
			Paid:            fallbacks.value(i, "paid", item.Paid),
			PaymentType:     text(item.PaymentType),
			TransactionType: text(item.Type),
		})
	}
	return rows, fallbacks
}

// NormalizeStockTrack converts stock-track items. The API's price field is the
// line amount; the per-unit price is taken from unitPrice or, when absent,
// derived from amount and quantity.
func NormalizeStockTrack(raw []RawStockTrack) ([]StockTrackRow, []Coercion) {
	var fallbacks coercions
	rows := make([]StockTrackRow, 0, len(raw))
	for i, item := range raw {
		inventory, unit := inventoryText(item.Inventory)
		qty := fallbacks.value(i, "stock", item.Stock)
		if qty < 0 {
			qty = -qty
		}
		amount := fallbacks.value(i, "price", item.Price)
		unitPrice := fallbacks.value(i, "unitPrice", item.UnitPrice)
		if !item.UnitPrice.Set && qty != 0 {
			unitPrice = amount / qty
		}
		rows = append(rows, StockTrackRow{
			Reference:   text(item.Reference),
			Date:        ParseDate(item.Date, item.CreatedAt),
			Inventory:   inventory,
			Unit:        unit,
			IsPurchased: item.IsPurchased,
			Quantity:    qty,
			UnitPrice:   unitPrice,
			Amount:      amount,
		})
	}
	return rows, fallbacks
}

// NormalizeExpenses converts expense list items.
func NormalizeExpenses(raw []RawExpense) ([]ExpenseRow, []Coercion) {
	var fallbacks coercions
	rows := make([]ExpenseRow, 0, len(raw))
	for i, item := range raw {
		rows = append(rows, ExpenseRow{
			Date:    ParseDate(item.Date, item.CreatedAt),
			Title:   text(item.Title),
			Type:    text(item.Type),
			Amount:  fallbacks.value(i, "amount", item.Amount),
			Remarks: textPtr(item.Remarks),
		})
	}
	return rows, fallbacks
}

// NormalizeStock converts stock list items. Value is quantity * unit price.
func NormalizeStock(raw []RawStock) ([]StockRow, []Coercion) {
	var fallbacks coercions
	rows := make([]StockRow, 0, len(raw))
	for i, item := range raw {
		qty := fallbacks.value(i, "stock", item.Stock)
		price := fallbacks.value(i, "price", item.Price)
		rows = append(rows, StockRow{
			Inventory: textPtr(item.Name),
			Unit:      namedText(item.UnitOfMeasure),
			Quantity:  qty,
			UnitPrice: price,
			Value:     qty * price,
		})
	}
	return rows, fallbacks
}
