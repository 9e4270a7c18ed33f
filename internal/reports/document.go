package reports

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/odyssey-erp/shopreports/internal/ledger"
)

// Kind identifies a report variant.
type Kind string

const (
	KindCustomerLedger Kind = "customer-ledger"
	KindVendorLedger   Kind = "vendor-ledger"
	KindTransactions   Kind = "transactions"
	KindStockTrack     Kind = "stock-track"
	KindStock          Kind = "stock"
	KindExpenses       Kind = "expenses"
	KindBalanceSheet   Kind = "balance-sheet"
)

// Kinds lists every supported report kind.
var Kinds = []Kind{
	KindCustomerLedger,
	KindVendorLedger,
	KindTransactions,
	KindStockTrack,
	KindStock,
	KindExpenses,
	KindBalanceSheet,
}

// ParseKind resolves a kind from its slug.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// NeedsEntity reports whether the kind is scoped to one customer or vendor.
func (k Kind) NeedsEntity() bool {
	return k == KindCustomerLedger || k == KindVendorLedger
}

// FilePrefix is the report kind part of exported file names, e.g. CustomerLedger.
func (k Kind) FilePrefix() string {
	var b strings.Builder
	for _, part := range strings.Split(string(k), "-") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// Align is the horizontal alignment of a column.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Format selects how a numeric value is displayed.
type Format int

const (
	FormatText Format = iota
	FormatAmount
	FormatQuantity
	FormatCount
)

// GridSize is the number of PDF grid units a table row spans.
const GridSize = 24

// Column describes one table column for both renderers. Width is a character
// width hint for spreadsheets, Span the PDF grid share.
type Column struct {
	Header string  `json:"header"`
	Width  float64 `json:"width"`
	Span   int     `json:"span"`
	Align  Align   `json:"align"`
	Format Format  `json:"format"`
}

// Cell is one table value. Numeric cells keep the aggregated float so every
// renderer formats the same number.
type Cell struct {
	Text    string  `json:"text,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Numeric bool    `json:"numeric,omitempty"`
}

// TextCell builds a text cell.
func TextCell(s string) Cell { return Cell{Text: s} }

// NumberCell builds a numeric cell.
func NumberCell(v float64) Cell { return Cell{Value: v, Numeric: true} }

// Section is one table. Grouped reports produce one section per group.
type Section struct {
	Title    string   `json:"title,omitempty"`
	Rows     [][]Cell `json:"rows"`
	Subtotal []Cell   `json:"subtotal,omitempty"`
}

// SummaryLine is one line of the summary block. The last line is the
// emphasised grand total or balance.
type SummaryLine struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Format Format  `json:"format"`
}

// Period is the reporting date range. A zero period means all time.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero reports whether no range was given.
func (p Period) IsZero() bool {
	return p.From.IsZero() && p.To.IsZero()
}

// Label renders the period as "{from} to {to}" or "All Time".
func (p Period) Label() string {
	if p.IsZero() {
		return "All Time"
	}
	from, to := "Beginning", "Today"
	if !p.From.IsZero() {
		from = p.From.Format(ledger.DateLayout)
	}
	if !p.To.IsZero() {
		to = p.To.Format(ledger.DateLayout)
	}
	return from + " to " + to
}

// Document is the render-ready report consumed by every renderer.
type Document struct {
	Kind          Kind              `json:"kind"`
	Title         string            `json:"title"`
	ShopName      string            `json:"shopName"`
	EntityLabel   string            `json:"entityLabel,omitempty"`
	EntityName    string            `json:"entityName,omitempty"`
	Period        Period            `json:"period"`
	GeneratedOn   time.Time         `json:"generatedOn"`
	Discriminator string            `json:"discriminator,omitempty"`
	Columns       []Column          `json:"columns"`
	Sections      []Section         `json:"sections"`
	Summary       []SummaryLine     `json:"summary"`
	Coercions     []ledger.Coercion `json:"coercions,omitempty"`
}

// Grouped reports whether the document renders one titled table per group.
func (d Document) Grouped() bool {
	return len(d.Sections) > 0 && d.Sections[0].Title != ""
}

// RowCount is the number of body rows across sections, subtotals excluded.
func (d Document) RowCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Rows)
	}
	return n
}

// GrandTotal is the value of the final summary line.
func (d Document) GrandTotal() float64 {
	if len(d.Summary) == 0 {
		return 0
	}
	return d.Summary[len(d.Summary)-1].Value
}

// FileName builds "{ReportKind}_{Discriminator}_{epochMillis}.{ext}". The
// discriminator is omitted when empty.
func (d Document) FileName(ext string, now time.Time) string {
	parts := []string{d.Kind.FilePrefix()}
	if disc := sanitizeFilePart(d.Discriminator); disc != "" {
		parts = append(parts, disc)
	}
	parts = append(parts, fmt.Sprintf("%d", now.UnixMilli()))
	return strings.Join(parts, "_") + "." + strings.TrimPrefix(ext, ".")
}

func sanitizeFilePart(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
