// Package export renders report documents into downloadable files.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/shopreports/internal/ledger"
	"github.com/odyssey-erp/shopreports/internal/reports"
)

const (
	amountNumFmt   = 4 // #,##0.00
	quantityNumFmt = "#,##0.##"
	sheetMaxName   = 31
)

// XLSXRenderer writes a single sheet workbook per document.
type XLSXRenderer struct{}

// NewXLSXRenderer returns the spreadsheet renderer.
func NewXLSXRenderer() *XLSXRenderer { return &XLSXRenderer{} }

// Format implements reports.Renderer.
func (r *XLSXRenderer) Format() reports.OutputFormat { return reports.OutputXLSX }

type sheetStyles struct {
	shop     int
	bold     int
	amount   int
	quantity int
	boldAmt  int
	boldQty  int
}

// Render lays the document out top to bottom: shop name, title, optional
// entity, period, generated on, blank, then one header plus body per
// section, a blank row and the summary block.
func (r *XLSXRenderer) Render(doc reports.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(doc.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("export: xlsx sheet: %w", err)
	}
	styles, err := newSheetStyles(f)
	if err != nil {
		return nil, err
	}
	w := &sheetWriter{file: f, sheet: sheet, styles: styles, row: 1}

	w.text(doc.ShopName, styles.shop)
	w.text(doc.Title, styles.bold)
	if doc.EntityLabel != "" {
		w.text(doc.EntityLabel+": "+doc.EntityName, 0)
	}
	w.text("Report Period: "+doc.Period.Label(), 0)
	w.text("Generated On: "+doc.GeneratedOn.Format(ledger.DateLayout), 0)
	w.blank()

	grouped := doc.Grouped()
	for i, section := range doc.Sections {
		if grouped {
			if i > 0 {
				w.blank()
			}
			w.text(section.Title, styles.bold)
		}
		w.header(doc.Columns)
		for _, cells := range section.Rows {
			w.cells(doc.Columns, cells, false)
		}
		if grouped && len(section.Subtotal) > 0 && len(section.Rows) > 0 {
			w.cells(doc.Columns, section.Subtotal, true)
		}
	}
	w.blank()
	for _, line := range doc.Summary {
		w.summary(line)
	}
	if w.err != nil {
		return nil, fmt.Errorf("export: xlsx write: %w", w.err)
	}

	for i, col := range doc.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, col.Width); err != nil {
			return nil, fmt.Errorf("export: xlsx width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: xlsx buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func sheetName(title string) string {
	if title == "" {
		return "Report"
	}
	if len(title) > sheetMaxName {
		return title[:sheetMaxName]
	}
	return title
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	qtyFmt := quantityNumFmt
	defs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 14}},
		{Font: &excelize.Font{Bold: true}},
		{NumFmt: amountNumFmt},
		{CustomNumFmt: &qtyFmt},
		{Font: &excelize.Font{Bold: true}, NumFmt: amountNumFmt},
		{Font: &excelize.Font{Bold: true}, CustomNumFmt: &qtyFmt},
	}
	ids := make([]int, len(defs))
	for i, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return sheetStyles{}, fmt.Errorf("export: xlsx style: %w", err)
		}
		ids[i] = id
	}
	return sheetStyles{shop: ids[0], bold: ids[1], amount: ids[2], quantity: ids[3], boldAmt: ids[4], boldQty: ids[5]}, nil
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	file   *excelize.File
	sheet  string
	styles sheetStyles
	row    int
	err    error
}

func (w *sheetWriter) set(col int, value any, style int) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, w.row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.file.SetCellValue(w.sheet, cell, value); err != nil {
		w.err = err
		return
	}
	if style != 0 {
		w.err = w.file.SetCellStyle(w.sheet, cell, cell, style)
	}
}

func (w *sheetWriter) text(value string, style int) {
	w.set(1, value, style)
	w.row++
}

func (w *sheetWriter) blank() { w.row++ }

func (w *sheetWriter) header(cols []reports.Column) {
	for i, col := range cols {
		w.set(i+1, col.Header, w.styles.bold)
	}
	w.row++
}

func (w *sheetWriter) cells(cols []reports.Column, cells []reports.Cell, bold bool) {
	for i, cell := range cells {
		if i >= len(cols) {
			break
		}
		if !cell.Numeric {
			style := 0
			if bold && cell.Text != "" {
				style = w.styles.bold
			}
			if cell.Text != "" {
				w.set(i+1, cell.Text, style)
			}
			continue
		}
		w.set(i+1, w.value(cols[i].Format, cell.Value), w.numberStyle(cols[i].Format, bold))
	}
	w.row++
}

func (w *sheetWriter) summary(line reports.SummaryLine) {
	w.set(1, line.Label, w.styles.bold)
	w.set(2, w.value(line.Format, line.Value), w.numberStyle(line.Format, true))
	w.row++
}

func (w *sheetWriter) value(format reports.Format, v float64) any {
	if format == reports.FormatCount {
		return int64(v)
	}
	return v
}

func (w *sheetWriter) numberStyle(format reports.Format, bold bool) int {
	switch format {
	case reports.FormatAmount:
		if bold {
			return w.styles.boldAmt
		}
		return w.styles.amount
	case reports.FormatQuantity:
		if bold {
			return w.styles.boldQty
		}
		return w.styles.quantity
	}
	if bold {
		return w.styles.bold
	}
	return 0
}
