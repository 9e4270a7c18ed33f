package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DateLayout is the display layout for dates in every report output.
const DateLayout = "02 Jan 2006"

// Round2 rounds half away from zero to two decimals. It is only applied when
// a value is displayed.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Formatter renders numbers and dates for display. A Formatter is not safe for
// concurrent use; build one per render call.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a formatter for a BCP 47 locale, falling back to English.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Amount formats a monetary value with two decimals and grouping.
func (f *Formatter) Amount(v float64) string {
	return f.printer.Sprintf("%.2f", Round2(v))
}

// Quantity formats a quantity, dropping the fraction for whole numbers.
func (f *Formatter) Quantity(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsInteger() {
		return f.printer.Sprintf("%d", d.IntPart())
	}
	return f.printer.Sprintf("%.2f", d.InexactFloat64())
}

// Count formats a row count.
func (f *Formatter) Count(n int) string {
	return f.printer.Sprintf("%d", n)
}

// Date formats a date, or NotAvailable for the zero time.
func (f *Formatter) Date(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format(DateLayout)
}
