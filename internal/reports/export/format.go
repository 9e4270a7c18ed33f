package export

import (
	"github.com/odyssey-erp/shopreports/internal/ledger"
	"github.com/odyssey-erp/shopreports/internal/reports"
)

// cellText renders one table cell for display.
func cellText(f *ledger.Formatter, format reports.Format, cell reports.Cell) string {
	if !cell.Numeric {
		return cell.Text
	}
	return numberText(f, format, cell.Value)
}

func numberText(f *ledger.Formatter, format reports.Format, v float64) string {
	switch format {
	case reports.FormatAmount:
		return f.Amount(v)
	case reports.FormatQuantity:
		return f.Quantity(v)
	case reports.FormatCount:
		return f.Count(int(v))
	}
	return f.Amount(v)
}

// summaryText splits a summary line into its label and display value.
func summaryText(f *ledger.Formatter, line reports.SummaryLine) (string, string) {
	return line.Label + ":", numberText(f, line.Format, line.Value)
}
