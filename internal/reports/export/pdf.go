package export

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/odyssey-erp/shopreports/internal/ledger"
	"github.com/odyssey-erp/shopreports/internal/reports"
)

// DefaultCompanyName is printed in the footer when no company is configured.
const DefaultCompanyName = "Company Name"

// summaryBoxSpan is the grid width of the summary box, anchored right.
const summaryBoxSpan = 10

var (
	headerFill   = &props.Color{Red: 45, Green: 55, Blue: 72}
	headerText   = &props.Color{Red: 255, Green: 255, Blue: 255}
	stripeFill   = &props.Color{Red: 244, Green: 246, Blue: 248}
	subtotalFill = &props.Color{Red: 226, Green: 232, Blue: 240}
	summaryFill  = &props.Color{Red: 247, Green: 250, Blue: 252}
	borderColor  = &props.Color{Red: 160, Green: 174, Blue: 192}
)

// PDFRenderer paints documents onto A4 pages.
type PDFRenderer struct {
	company string
	locale  string
}

// NewPDFRenderer builds a renderer. An empty company degrades to
// DefaultCompanyName.
func NewPDFRenderer(company, locale string) *PDFRenderer {
	company = strings.TrimSpace(company)
	if company == "" {
		company = DefaultCompanyName
	}
	return &PDFRenderer{company: company, locale: locale}
}

// Format implements reports.Renderer.
func (r *PDFRenderer) Format() reports.OutputFormat { return reports.OutputPDF }

// Render plans the pages first and then paints each planned page.
func (r *PDFRenderer) Render(doc reports.Document) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(marginSide).
		WithRightMargin(marginSide).
		WithTopMargin(marginTop).
		WithBottomMargin(marginBottom).
		WithMaxGridSize(reports.GridSize).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    8,
		}).
		Build()

	m := maroto.New(cfg)
	if err := m.RegisterFooter(r.footer()); err != nil {
		return nil, fmt.Errorf("export: pdf footer: %w", err)
	}

	p := painter{doc: doc, numbers: ledger.NewFormatter(r.locale)}
	for _, planned := range planPages(doc) {
		rows := make([]core.Row, 0, len(planned.blocks))
		for _, b := range planned.blocks {
			rows = append(rows, p.paint(b)...)
		}
		m.AddPages(page.New().Add(rows...))
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("export: pdf generate: %w", err)
	}
	return out.GetBytes(), nil
}

func (r *PDFRenderer) footer() core.Row {
	return row.New(footerHeight).Add(
		text.NewCol(reports.GridSize, "Powered by "+r.company, props.Text{
			Size:  8,
			Top:   3,
			Align: align.Center,
		}),
	)
}

type painter struct {
	doc     reports.Document
	numbers *ledger.Formatter
}

func (p painter) paint(b block) []core.Row {
	switch b.kind {
	case blockTitle:
		return []core.Row{row.New(b.height).Add(
			text.NewCol(reports.GridSize, p.doc.ShopName, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}),
		)}
	case blockSubtitle:
		return []core.Row{row.New(b.height).Add(
			text.NewCol(reports.GridSize, p.doc.Title, props.Text{Size: 11, Align: align.Center, Top: 1}),
		)}
	case blockRule:
		return []core.Row{row.New(b.height).Add(line.NewCol(reports.GridSize))}
	case blockInfo:
		return []core.Row{p.info(b)}
	case blockGroupTitle:
		return []core.Row{row.New(b.height).Add(
			text.NewCol(reports.GridSize, p.doc.Sections[b.section].Title, props.Text{Size: 10, Style: fontstyle.Bold, Top: 2}),
		)}
	case blockTableHeader:
		return []core.Row{p.tableHeader(b.height)}
	case blockRow:
		r := p.tableRow(b.height, p.doc.Sections[b.section].Rows[b.row], false)
		if b.row%2 == 1 {
			r = r.WithStyle(&props.Cell{BackgroundColor: stripeFill})
		}
		return []core.Row{r}
	case blockSubtotal:
		r := p.tableRow(b.height, p.doc.Sections[b.section].Subtotal, true)
		return []core.Row{r.WithStyle(&props.Cell{BackgroundColor: subtotalFill})}
	case blockSummary:
		return p.summary()
	}
	return []core.Row{row.New(b.height).Add(col.New(reports.GridSize))}
}

func (p painter) info(b block) core.Row {
	label := props.Text{Size: 9, Style: fontstyle.Bold, Top: 1.5}
	value := props.Text{Size: 9, Top: 1.5}
	if b.row == 1 {
		return row.New(b.height).Add(
			text.NewCol(4, p.doc.EntityLabel+":", label),
			text.NewCol(reports.GridSize-4, p.doc.EntityName, value),
		)
	}
	generated := props.Text{Size: 9, Top: 1.5, Align: align.Right}
	return row.New(b.height).Add(
		text.NewCol(4, "Report Period:", label),
		text.NewCol(10, p.doc.Period.Label(), value),
		text.NewCol(reports.GridSize-14, "Generated On: "+p.numbers.Date(p.doc.GeneratedOn), generated),
	)
}

func (p painter) tableHeader(height float64) core.Row {
	cols := make([]core.Col, 0, len(p.doc.Columns))
	for _, c := range p.doc.Columns {
		cols = append(cols, text.NewCol(c.Span, c.Header, props.Text{
			Size:  8,
			Style: fontstyle.Bold,
			Align: pdfAlign(c.Align),
			Color: headerText,
			Top:   2,
			Left:  1,
			Right: 1,
		}))
	}
	return row.New(height).Add(cols...).WithStyle(&props.Cell{BackgroundColor: headerFill})
}

func (p painter) tableRow(height float64, cells []reports.Cell, bold bool) core.Row {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	cols := make([]core.Col, 0, len(p.doc.Columns))
	for i, c := range p.doc.Columns {
		value := ""
		if i < len(cells) {
			value = cellText(p.numbers, c.Format, cells[i])
		}
		cols = append(cols, text.NewCol(c.Span, value, props.Text{
			Size:  8,
			Style: style,
			Align: pdfAlign(c.Align),
			Top:   1.5,
			Left:  1,
			Right: 1,
		}))
	}
	return row.New(height).Add(cols...)
}

func (p painter) summary() []core.Row {
	offset := reports.GridSize - summaryBoxSpan
	labelSpan := summaryBoxSpan * 6 / 10
	box := &props.Cell{BackgroundColor: summaryFill, BorderType: border.Full, BorderColor: borderColor, BorderThickness: 0.2}

	rows := make([]core.Row, 0, len(p.doc.Summary)+1)
	for i, sl := range p.doc.Summary {
		last := i == len(p.doc.Summary)-1
		if last && i > 0 {
			rows = append(rows, row.New(summaryRuleHeight).Add(
				col.New(offset),
				lineCol(summaryBoxSpan),
			))
		}
		style := fontstyle.Normal
		if last {
			style = fontstyle.Bold
		}
		label, value := summaryText(p.numbers, sl)
		rows = append(rows, row.New(summaryLineHeight).Add(
			col.New(offset),
			col.New(labelSpan).Add(text.New(label, props.Text{Size: 9, Style: style, Top: 2, Left: 2})).WithStyle(box),
			col.New(summaryBoxSpan-labelSpan).Add(text.New(value, props.Text{Size: 9, Style: style, Top: 2, Right: 2, Align: align.Right})).WithStyle(box),
		))
	}
	return rows
}

func lineCol(span int) core.Col {
	return line.NewCol(span, props.Line{Thickness: 0.4})
}

func pdfAlign(a reports.Align) align.Type {
	switch a {
	case reports.AlignCenter:
		return align.Center
	case reports.AlignRight:
		return align.Right
	}
	return align.Left
}
