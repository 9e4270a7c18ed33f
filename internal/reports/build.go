package reports

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/shopreports/internal/ledger"
)

var (
	ledgerColumns = []Column{
		{Header: "Date", Width: 14, Span: 3},
		{Header: "Transaction No", Width: 18, Span: 3},
		{Header: "Inventory", Width: 26, Span: 4},
		{Header: "Unit", Width: 10, Span: 2, Align: AlignCenter},
		{Header: "Qty", Width: 10, Span: 2, Align: AlignRight, Format: FormatQuantity},
		{Header: "Unit Price", Width: 14, Span: 2, Align: AlignRight, Format: FormatAmount},
		{Header: "Total", Width: 16, Span: 3, Align: AlignRight, Format: FormatAmount},
		{Header: "Paid", Width: 16, Span: 3, Align: AlignRight, Format: FormatAmount},
		{Header: "Payment", Width: 12, Span: 2, Align: AlignCenter},
	}
	transactionColumns = []Column{
		{Header: "Date", Width: 14, Span: 2},
		{Header: "Transaction No", Width: 18, Span: 3},
		{Header: "Customer / Vendor", Width: 24, Span: 3},
		{Header: "Inventory", Width: 24, Span: 3},
		{Header: "Unit", Width: 10, Span: 2, Align: AlignCenter},
		{Header: "Qty", Width: 10, Span: 2, Align: AlignRight, Format: FormatQuantity},
		{Header: "Unit Price", Width: 14, Span: 2, Align: AlignRight, Format: FormatAmount},
		{Header: "Total", Width: 16, Span: 3, Align: AlignRight, Format: FormatAmount},
		{Header: "Paid", Width: 16, Span: 2, Align: AlignRight, Format: FormatAmount},
		{Header: "Payment", Width: 12, Span: 2, Align: AlignCenter},
	}
	stockTrackColumns = []Column{
		{Header: "Date", Width: 14, Span: 3},
		{Header: "Reference", Width: 20, Span: 4},
		{Header: "Type", Width: 12, Span: 3, Align: AlignCenter},
		{Header: "Unit", Width: 10, Span: 2, Align: AlignCenter},
		{Header: "Qty", Width: 10, Span: 3, Align: AlignRight, Format: FormatQuantity},
		{Header: "Unit Price", Width: 14, Span: 3, Align: AlignRight, Format: FormatAmount},
		{Header: "Amount", Width: 16, Span: 3, Align: AlignRight, Format: FormatAmount},
		{Header: "Balance", Width: 12, Span: 3, Align: AlignRight, Format: FormatQuantity},
	}
	stockColumns = []Column{
		{Header: "Inventory", Width: 32, Span: 8},
		{Header: "Unit", Width: 12, Span: 4, Align: AlignCenter},
		{Header: "Qty", Width: 12, Span: 4, Align: AlignRight, Format: FormatQuantity},
		{Header: "Unit Price", Width: 14, Span: 4, Align: AlignRight, Format: FormatAmount},
		{Header: "Value", Width: 18, Span: 4, Align: AlignRight, Format: FormatAmount},
	}
	expenseColumns = []Column{
		{Header: "Date", Width: 14, Span: 4},
		{Header: "Title", Width: 30, Span: 7},
		{Header: "Type", Width: 14, Span: 4, Align: AlignCenter},
		{Header: "Amount", Width: 16, Span: 4, Align: AlignRight, Format: FormatAmount},
		{Header: "Remarks", Width: 30, Span: 5},
	}
	balanceColumns = []Column{
		{Header: "Name", Width: 32, Span: 8},
		{Header: "Entries", Width: 10, Span: 4, Align: AlignCenter, Format: FormatCount},
		{Header: "Amount", Width: 16, Span: 4, Align: AlignRight, Format: FormatAmount},
		{Header: "Paid", Width: 16, Span: 4, Align: AlignRight, Format: FormatAmount},
		{Header: "Pending", Width: 16, Span: 4, Align: AlignRight, Format: FormatAmount},
	}
)

// Columns returns the fixed column set for a kind.
func Columns(kind Kind) []Column {
	switch kind {
	case KindCustomerLedger, KindVendorLedger:
		return ledgerColumns
	case KindTransactions:
		return transactionColumns
	case KindStockTrack:
		return stockTrackColumns
	case KindStock:
		return stockColumns
	case KindExpenses:
		return expenseColumns
	case KindBalanceSheet:
		return balanceColumns
	}
	return nil
}

func newDocument(req Request, now time.Time) Document {
	doc := Document{
		Kind:        req.Kind,
		ShopName:    strings.TrimSpace(req.Meta.ShopName),
		Period:      req.Filter.Period(),
		GeneratedOn: now,
		Columns:     Columns(req.Kind),
	}
	if doc.ShopName == "" {
		doc.ShopName = fmt.Sprintf("Shop #%d", req.Filter.ShopID)
	}
	entity := strings.TrimSpace(req.Meta.EntityName)
	switch req.Kind {
	case KindCustomerLedger:
		doc.Title = "Customer Ledger"
		doc.EntityLabel = "Customer"
	case KindVendorLedger:
		doc.Title = "Vendor Ledger"
		doc.EntityLabel = "Vendor"
	case KindTransactions:
		doc.Title = "Transaction Report"
		doc.EntityLabel = "Transaction Type"
		entity = "All"
		if len(req.Filter.TransactionTypes) > 0 {
			entity = strings.Join(req.Filter.TransactionTypes, ", ")
			doc.Discriminator = strings.Join(req.Filter.TransactionTypes, "-")
		}
	case KindStockTrack:
		doc.Title = "Stock Track Report"
	case KindStock:
		doc.Title = "Stock Report"
	case KindExpenses:
		doc.Title = "Expense Report"
	case KindBalanceSheet:
		doc.Title = "Balance Sheet"
	}
	if req.Kind.NeedsEntity() {
		if entity == "" {
			entity = fmt.Sprintf("#%d", req.Filter.EntityID)
		}
		doc.Discriminator = entity
	}
	if doc.EntityLabel != "" {
		doc.EntityName = entity
	}
	return doc
}

func dateCell(t time.Time) Cell {
	if t.IsZero() {
		return TextCell(ledger.NotAvailable)
	}
	return TextCell(t.Format(ledger.DateLayout))
}

func blank() Cell { return TextCell("") }

// BuildLedger lays out customer, vendor and shop transaction ledgers. The
// final summary line is the balance due (pending for shop-wide reports).
func BuildLedger(req Request, rows []ledger.LedgerRow, now time.Time) Document {
	doc := newDocument(req, now)
	shopWide := req.Kind == KindTransactions

	section := Section{Rows: make([][]Cell, 0, len(rows))}
	for _, row := range rows {
		cells := []Cell{dateCell(row.Date), TextCell(row.TransactionNo)}
		if shopWide {
			cells = append(cells, TextCell(row.Counterparty))
		}
		cells = append(cells,
			TextCell(row.Inventory),
			TextCell(row.Unit),
			NumberCell(row.Quantity),
			NumberCell(row.UnitPrice),
			NumberCell(row.Total),
			NumberCell(row.Paid),
			TextCell(row.PaymentType),
		)
		section.Rows = append(section.Rows, cells)
	}

	total := ledger.GrandTotal(rows)
	sub := []Cell{TextCell("Total"), blank()}
	if shopWide {
		sub = append(sub, blank())
	}
	sub = append(sub, blank(), blank(), NumberCell(total.Quantity), blank(),
		NumberCell(total.Amount), NumberCell(total.Paid), blank())
	section.Subtotal = sub
	doc.Sections = []Section{section}

	last := "Balance Due"
	if shopWide {
		last = "Total Pending"
	}
	doc.Summary = []SummaryLine{
		{Label: "Total Transactions", Value: float64(total.Count), Format: FormatCount},
		{Label: "Total Quantity", Value: total.Quantity, Format: FormatQuantity},
		{Label: "Total Amount", Value: total.Amount, Format: FormatAmount},
		{Label: "Total Paid", Value: total.Paid, Format: FormatAmount},
		{Label: last, Value: ledger.LedgerBalance(total).BalanceDue, Format: FormatAmount},
	}
	return doc
}

// BuildStockTrack emits one section per inventory item. Rows are sorted by
// date before grouping so groups appear in chronological first-seen order and
// each running balance is computed over a sorted group.
func BuildStockTrack(req Request, rows []ledger.StockTrackRow, now time.Time) Document {
	doc := newDocument(req, now)
	sorted := ledger.SortByDate(rows)
	groups := ledger.GroupBy(sorted, ledger.ByInventory)

	var purchased, sold float64
	doc.Sections = make([]Section, 0, len(groups))
	for _, g := range groups {
		track := ledger.RunningStock(g.Rows)
		purchased += track.TotalPurchased
		sold += track.TotalSold

		section := Section{Title: g.Key, Rows: make([][]Cell, 0, len(track.Rows))}
		for _, row := range track.Rows {
			section.Rows = append(section.Rows, []Cell{
				dateCell(row.Date),
				TextCell(row.Reference),
				TextCell(row.Direction()),
				TextCell(row.Unit),
				NumberCell(row.Quantity),
				NumberCell(row.UnitPrice),
				NumberCell(row.Amount),
				NumberCell(row.RunningBalance),
			})
		}
		section.Subtotal = []Cell{
			TextCell("Subtotal"), blank(), blank(), blank(),
			NumberCell(g.Subtotal.Quantity), blank(),
			NumberCell(g.Subtotal.Amount),
			NumberCell(track.Closing()),
		}
		doc.Sections = append(doc.Sections, section)
	}
	if len(doc.Sections) == 0 {
		doc.Sections = []Section{{Subtotal: []Cell{
			TextCell("Subtotal"), blank(), blank(), blank(),
			NumberCell(0), blank(), NumberCell(0), NumberCell(0),
		}}}
	}

	total := ledger.GrandTotal(sorted)
	doc.Summary = []SummaryLine{
		{Label: "Total Movements", Value: float64(total.Count), Format: FormatCount},
		{Label: "Total Purchased", Value: purchased, Format: FormatQuantity},
		{Label: "Total Sold", Value: sold, Format: FormatQuantity},
		{Label: "Net Stock", Value: purchased - sold, Format: FormatQuantity},
		{Label: "Total Amount", Value: total.Amount, Format: FormatAmount},
	}
	return doc
}

// BuildStock lays out the current stock list valued at unit price.
func BuildStock(req Request, rows []ledger.StockRow, now time.Time) Document {
	doc := newDocument(req, now)
	section := Section{Rows: make([][]Cell, 0, len(rows))}
	for _, row := range rows {
		section.Rows = append(section.Rows, []Cell{
			TextCell(row.Inventory),
			TextCell(row.Unit),
			NumberCell(row.Quantity),
			NumberCell(row.UnitPrice),
			NumberCell(row.Value),
		})
	}
	total := ledger.GrandTotal(rows)
	section.Subtotal = []Cell{TextCell("Total"), blank(), NumberCell(total.Quantity), blank(), NumberCell(total.Amount)}
	doc.Sections = []Section{section}
	doc.Summary = []SummaryLine{
		{Label: "Total Items", Value: float64(total.Count), Format: FormatCount},
		{Label: "Total Quantity", Value: total.Quantity, Format: FormatQuantity},
		{Label: "Total Stock Value", Value: total.Amount, Format: FormatAmount},
	}
	return doc
}

// BuildExpenses lays out the expense list.
func BuildExpenses(req Request, rows []ledger.ExpenseRow, now time.Time) Document {
	doc := newDocument(req, now)
	section := Section{Rows: make([][]Cell, 0, len(rows))}
	for _, row := range rows {
		section.Rows = append(section.Rows, []Cell{
			dateCell(row.Date),
			TextCell(row.Title),
			TextCell(row.Type),
			NumberCell(row.Amount),
			TextCell(row.Remarks),
		})
	}
	total := ledger.GrandTotal(rows)
	section.Subtotal = []Cell{TextCell("Total"), blank(), blank(), NumberCell(total.Amount), blank()}
	doc.Sections = []Section{section}
	doc.Summary = []SummaryLine{
		{Label: "Total Expenses", Value: float64(total.Count), Format: FormatCount},
		{Label: "Total Amount", Value: total.Amount, Format: FormatAmount},
	}
	return doc
}

// IsPurchase classifies a transaction type. Anything that is not a purchase
// counts as a sale.
func IsPurchase(row ledger.LedgerRow) bool {
	return strings.Contains(strings.ToUpper(row.TransactionType), "PURCHASE")
}

// BuildBalanceSheet summarises sales per customer, purchases per vendor and
// expenses per type. Net position is sales minus purchases minus expenses.
func BuildBalanceSheet(req Request, transactions []ledger.LedgerRow, expenses []ledger.ExpenseRow, now time.Time) Document {
	doc := newDocument(req, now)

	var sales, purchases []ledger.LedgerRow
	for _, row := range transactions {
		if IsPurchase(row) {
			purchases = append(purchases, row)
		} else {
			sales = append(sales, row)
		}
	}

	salesTotal := ledger.GrandTotal(sales)
	purchaseTotal := ledger.GrandTotal(purchases)
	expenseTotal := ledger.GrandTotal(expenses)

	doc.Sections = []Section{
		ledgerSection("Sales", sales, salesTotal),
		ledgerSection("Purchases", purchases, purchaseTotal),
		expenseSection(expenses, expenseTotal),
	}
	doc.Summary = []SummaryLine{
		{Label: "Total Sales", Value: salesTotal.Amount, Format: FormatAmount},
		{Label: "Total Purchases", Value: purchaseTotal.Amount, Format: FormatAmount},
		{Label: "Total Expenses", Value: expenseTotal.Amount, Format: FormatAmount},
		{Label: "Receivable", Value: salesTotal.Pending, Format: FormatAmount},
		{Label: "Payable", Value: purchaseTotal.Pending, Format: FormatAmount},
		{Label: "Net Position", Value: salesTotal.Amount - purchaseTotal.Amount - expenseTotal.Amount, Format: FormatAmount},
	}
	return doc
}

func ledgerSection(title string, rows []ledger.LedgerRow, total ledger.Summary) Section {
	groups := ledger.GroupBy(rows, ledger.ByCounterparty)
	section := Section{Title: title, Rows: make([][]Cell, 0, len(groups))}
	for _, g := range groups {
		section.Rows = append(section.Rows, []Cell{
			TextCell(g.Key),
			NumberCell(float64(g.Subtotal.Count)),
			NumberCell(g.Subtotal.Amount),
			NumberCell(g.Subtotal.Paid),
			NumberCell(g.Subtotal.Pending),
		})
	}
	section.Subtotal = []Cell{
		TextCell("Subtotal"),
		NumberCell(float64(total.Count)),
		NumberCell(total.Amount),
		NumberCell(total.Paid),
		NumberCell(total.Pending),
	}
	return section
}

func expenseSection(rows []ledger.ExpenseRow, total ledger.Summary) Section {
	groups := ledger.GroupBy(rows, func(r ledger.ExpenseRow) string { return r.Type })
	section := Section{Title: "Expenses", Rows: make([][]Cell, 0, len(groups))}
	for _, g := range groups {
		section.Rows = append(section.Rows, []Cell{
			TextCell(g.Key),
			NumberCell(float64(g.Subtotal.Count)),
			NumberCell(g.Subtotal.Amount),
			NumberCell(g.Subtotal.Amount),
			NumberCell(0),
		})
	}
	section.Subtotal = []Cell{
		TextCell("Subtotal"),
		NumberCell(float64(total.Count)),
		NumberCell(total.Amount),
		NumberCell(total.Amount),
		NumberCell(0),
	}
	return section
}
