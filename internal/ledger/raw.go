package ledger

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric API field that may arrive as a JSON number, a numeric
// string, null or not at all. Values that cannot be read as a finite number
// decode to zero with Malformed set; decoding never fails because of them.
type Number struct {
	Value     float64
	Raw       string
	Set       bool
	Malformed bool
}

// ParseNumber coerces a textual value. Empty input is treated as absent.
func ParseNumber(s string) Number {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Number{}
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{Raw: s, Set: true, Malformed: true}
	}
	return Number{Value: v, Raw: s, Set: true}
}

// Num builds a set Number from a float, mostly for fixtures and adapters.
func Num(v float64) Number {
	return Number{Value: v, Raw: strconv.FormatFloat(v, 'f', -1, 64), Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = Number{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*n = ParseNumber(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		*n = Number{Raw: string(trimmed), Set: true, Malformed: true}
		return nil
	}
	*n = Number{Value: v, Raw: string(trimmed), Set: true}
	return nil
}

// MarshalJSON keeps malformed input as a string so a cached payload decodes
// to the same Number again.
func (n Number) MarshalJSON() ([]byte, error) {
	switch {
	case !n.Set:
		return []byte("null"), nil
	case n.Malformed:
		return json.Marshal(n.Raw)
	default:
		return json.Marshal(n.Value)
	}
}

// RawNamed is a nested reference carrying only an id and a display name.
type RawNamed struct {
	ID   int64   `json:"id"`
	Name *string `json:"name"`
}

// RawInventory is the inventory reference embedded in transaction and stock payloads.
type RawInventory struct {
	ID            int64     `json:"id"`
	Name          *string   `json:"name"`
	UnitOfMeasure *RawNamed `json:"unitOfMeasure"`
}

// RawTransaction is a transaction ledger item as returned by the shop API.
type RawTransaction struct {
	ID                int64         `json:"id"`
	TransactionNumber string        `json:"transactionNumber"`
	Date              string        `json:"date"`
	CreatedAt         string        `json:"createdAt"`
	Type              string        `json:"type"`
	Customer          *RawNamed     `json:"customer"`
	Vendor            *RawNamed     `json:"vendor"`
	Inventory         *RawInventory `json:"inventory"`
	Quantity          Number        `json:"quantity"`
	Price             Number        `json:"price"`
	Total             Number        `json:"total"`
	Paid              Number        `json:"paid"`
	PaymentType       string        `json:"paymentType"`
}

// RawStockTrack is a stock-track item. Stock is the moved quantity and Price
// the line amount; UnitPrice is optional.
type RawStockTrack struct {
	ID          int64         `json:"id"`
	Reference   string        `json:"reference"`
	Date        string        `json:"date"`
	CreatedAt   string        `json:"createdAt"`
	Inventory   *RawInventory `json:"inventory"`
	IsPurchased bool          `json:"isPurchased"`
	Stock       Number        `json:"stock"`
	UnitPrice   Number        `json:"unitPrice"`
	Price       Number        `json:"price"`
}

// RawExpense is an expense list item.
type RawExpense struct {
	ID        int64   `json:"id"`
	Date      string  `json:"date"`
	CreatedAt string  `json:"createdAt"`
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	Amount    Number  `json:"amount"`
	Remarks   *string `json:"remarks"`
}

// RawStock is a stock list item: an inventory with its current stock and unit price.
type RawStock struct {
	ID            int64     `json:"id"`
	Name          *string   `json:"name"`
	UnitOfMeasure *RawNamed `json:"unitOfMeasure"`
	Stock         Number    `json:"stock"`
	Price         Number    `json:"price"`
}
