package export

import "github.com/odyssey-erp/shopreports/internal/reports"

// Page geometry in millimetres for A4 portrait.
const (
	pageHeight   = 297.0
	marginTop    = 15.0
	marginBottom = 10.0
	marginSide   = 10.0
	footerHeight = 8.0
	// breakThreshold is the cursor position past which a new group table or
	// the summary box starts on a fresh page.
	breakThreshold = pageHeight - 40
)

// Block heights in millimetres.
const (
	titleHeight       = 10.0
	subtitleHeight    = 7.0
	ruleHeight        = 4.0
	infoHeight        = 7.0
	spacerHeight      = 4.0
	groupTitleHeight  = 8.0
	tableHeaderHeight = 7.0
	rowHeight         = 6.0
	subtotalHeight    = 7.0
	summaryLineHeight = 7.0
	summaryRuleHeight = 2.0
)

type blockKind int

const (
	blockTitle blockKind = iota
	blockSubtitle
	blockRule
	blockInfo
	blockSpacer
	blockGroupTitle
	blockTableHeader
	blockRow
	blockSubtotal
	blockSummary
)

// block is one laid out unit. Section and Row index into the document for
// table blocks.
type block struct {
	kind    blockKind
	section int
	row     int
	top     float64
	height  float64
}

type plannedPage struct {
	blocks []block
}

// pageLayout assigns blocks to pages. It never splits a block, so the
// summary box always lands on a single page.
type pageLayout struct {
	pages  []plannedPage
	cursor float64
}

func newPageLayout() *pageLayout {
	l := &pageLayout{}
	l.newPage()
	return l
}

func (l *pageLayout) newPage() {
	l.pages = append(l.pages, plannedPage{})
	l.cursor = marginTop
}

func (l *pageLayout) bottom() float64 {
	return pageHeight - marginBottom - footerHeight
}

func (l *pageLayout) fits(height float64) bool {
	return l.cursor+height <= l.bottom()
}

func (l *pageLayout) onFreshPage() bool {
	return len(l.pages[len(l.pages)-1].blocks) == 0
}

// place appends b, breaking first when it would overflow the page. It
// reports whether a break happened.
func (l *pageLayout) place(b block) bool {
	broke := false
	if !l.fits(b.height) && !l.onFreshPage() {
		l.newPage()
		broke = true
	}
	b.top = l.cursor
	last := &l.pages[len(l.pages)-1]
	last.blocks = append(last.blocks, b)
	l.cursor += b.height
	return broke
}

// startGuarded applies the group start rule: when the cursor is already past
// the break threshold, or the lead height does not fit, start a new page.
func (l *pageLayout) startGuarded(lead float64) {
	if l.onFreshPage() {
		return
	}
	if l.cursor > breakThreshold || !l.fits(lead) {
		l.newPage()
	}
}

// space adds a spacer unless it would open a new page.
func (l *pageLayout) space() {
	if l.fits(spacerHeight) {
		l.place(block{kind: blockSpacer, height: spacerHeight})
	}
}

func summaryBoxHeight(lines int) float64 {
	if lines == 0 {
		return 0
	}
	h := float64(lines) * summaryLineHeight
	if lines > 1 {
		h += summaryRuleHeight
	}
	return h
}

// planPages lays out a document. The header appears on the first page only;
// the table header is repeated whenever a table continues on a new page. An
// empty section renders its header alone.
func planPages(doc reports.Document) []plannedPage {
	l := newPageLayout()
	l.place(block{kind: blockTitle, height: titleHeight})
	l.place(block{kind: blockSubtitle, height: subtitleHeight})
	l.place(block{kind: blockRule, height: ruleHeight})
	l.place(block{kind: blockInfo, height: infoHeight})
	if doc.EntityLabel != "" {
		l.place(block{kind: blockInfo, row: 1, height: infoHeight})
	}
	l.space()

	grouped := doc.Grouped()
	for si, section := range doc.Sections {
		lead := tableHeaderHeight + rowHeight
		if grouped {
			lead += groupTitleHeight
		}
		l.startGuarded(lead)
		if grouped {
			l.place(block{kind: blockGroupTitle, section: si, height: groupTitleHeight})
		}
		l.place(block{kind: blockTableHeader, section: si, height: tableHeaderHeight})
		for ri := range section.Rows {
			if l.place(block{kind: blockRow, section: si, row: ri, height: rowHeight}) {
				l.repeatHeader(si)
			}
		}
		if len(section.Subtotal) > 0 && len(section.Rows) > 0 {
			if l.place(block{kind: blockSubtotal, section: si, height: subtotalHeight}) {
				l.repeatHeader(si)
			}
		}
		l.space()
	}

	if h := summaryBoxHeight(len(doc.Summary)); h > 0 {
		l.startGuarded(h)
		l.place(block{kind: blockSummary, height: h})
	}
	return l.pages
}

// repeatHeader inserts a table header before the block that just opened a
// new page.
func (l *pageLayout) repeatHeader(section int) {
	last := &l.pages[len(l.pages)-1]
	moved := last.blocks[len(last.blocks)-1]
	header := block{kind: blockTableHeader, section: section, top: marginTop, height: tableHeaderHeight}
	moved.top = marginTop + tableHeaderHeight
	last.blocks = append(last.blocks[:len(last.blocks)-1], header, moved)
	l.cursor = moved.top + moved.height
}
