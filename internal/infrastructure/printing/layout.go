package printing

import (
	"fmt"
	"math"
	"strings"

	"github.com/invoicing/backend/internal/domain/printing"
	"github.com/invoicing/backend/internal/domain/shared/valueobject"
)

const (
	// columnGutterPt separates a column's text from the next column
	columnGutterPt = 8
	// logoGapPt separates the logo from the header text block
	logoGapPt = 12
	// footerClearancePt separates body content from the footer rule
	footerClearancePt = 4
	// ascentRatio approximates the core fonts' ascender as a share of the size
	ascentRatio = 0.8
)

// layout is the state of one render. It is created per document and
// discarded after the pages are sealed.
type layout struct {
	theme  LayoutTheme
	geom   PageGeometry
	m      TextMeasurer
	cur    *PageCursor
	spec   *printing.DocumentSpec
	brand  Color
	accent Color
	body   Font
	bold   Font

	inTable    bool
	rowsOnPage int
}

// paginate places every section of spec onto pages and seals them.
// It performs no I/O: assets must already be resolved.
func (r *Renderer) paginate(spec *printing.DocumentSpec, assets documentAssets) []*Page {
	geom := r.theme.Geometry()
	l := &layout{
		theme:  r.theme,
		geom:   geom,
		m:      r.measurer,
		cur:    NewPageCursor(geom),
		spec:   spec,
		brand:  ResolveColor(spec.Tenant.BrandColor, DefaultBrandColor),
		accent: ResolveColor(spec.Tenant.AccentColor, DefaultAccentColor),
		body:   Font{Family: r.theme.FontFamily},
		bold:   Font{Family: r.theme.FontFamily, Bold: true},
	}
	l.cur.OnNewPage(l.pageStarted)
	if r.theme.PageNumbers || strings.TrimSpace(spec.Tenant.FooterText) != "" {
		l.cur.ReserveBottom(l.footerBandTop() + footerClearancePt)
	}

	l.header(assets.logo)
	l.accentRule()
	l.metadata()
	l.party()
	l.itemTable()
	l.totals()
	l.notes()
	l.qrBlock(assets.qr)
	l.footer()

	var stamps []PageStamp
	if r.theme.PageNumbers {
		stamps = append(stamps, l.pageNumber)
	}
	return l.cur.Seal(stamps...)
}

func (l *layout) right() float64 {
	return l.geom.Width - l.geom.Margin
}

// baseline returns the text baseline for a line of the given size
// vertically centered in a band of height h starting at top
func (l *layout) baseline(top, h, size float64) float64 {
	return top - (h-size)/2 - size*ascentRatio
}

func (l *layout) text(x, y float64, s string, font Font, size float64, color Color) {
	if s == "" {
		return
	}
	l.cur.Draw(TextOp{X: x, Y: y, Text: s, Font: font, Size: size, Color: color})
}

func (l *layout) textRight(right, y float64, s string, font Font, size float64, color Color) {
	l.text(right-l.m.WidthOf(s, font, size), y, s, font, size, color)
}

func (l *layout) textCenter(center, y float64, s string, font Font, size float64, color Color) {
	l.text(center-l.m.WidthOf(s, font, size)/2, y, s, font, size, color)
}

func (l *layout) rule(y, x1, x2, width float64, color Color) {
	l.cur.Draw(LineOp{X1: x1, Y1: y, X2: x2, Y2: y, Width: width, Color: color})
}

func (l *layout) pageStarted() {
	l.rowsOnPage = 0
	if l.inTable && l.theme.RepeatTableHeader {
		l.tableHeader()
	}
}

// header draws the logo on the left and the business block right-aligned
func (l *layout) header(logo *Asset) {
	t := l.theme
	top := l.cur.Y()
	bottom := top
	textLeft := l.geom.Margin
	if logo != nil {
		l.cur.Draw(ImageOp{
			X:     l.geom.Margin,
			Y:     top - logo.TargetHeight,
			W:     logo.TargetWidth,
			H:     logo.TargetHeight,
			Asset: logo,
		})
		bottom = top - logo.TargetHeight
		textLeft += logo.TargetWidth + logoGapPt
	}
	maxWidth := l.right() - textLeft

	nameBand := t.HeaderFontPt * 1.25
	name := Truncate(l.m, strings.TrimSpace(l.spec.Tenant.BusinessName), l.bold, t.HeaderFontPt, maxWidth)
	l.textRight(l.right(), l.baseline(top, nameBand, t.HeaderFontPt), name, l.bold, t.HeaderFontPt, l.brand)

	y := top - nameBand
	for _, line := range l.spec.Tenant.ContactLines() {
		line = Truncate(l.m, line, l.body, t.BodyFontPt, maxWidth)
		l.textRight(l.right(), l.baseline(y, t.LineHeightPt, t.BodyFontPt), line, l.body, t.BodyFontPt, MutedColor)
		y -= t.LineHeightPt
	}
	bottom = math.Min(bottom, y)
	l.cur.Advance(top - bottom)
}

func (l *layout) accentRule() {
	gap := l.theme.SectionGapPt / 2
	l.cur.EnsureSpace(2 * gap)
	l.cur.Advance(gap)
	l.rule(l.cur.Y(), l.geom.Margin, l.right(), 1.5, l.accent)
	l.cur.Advance(gap + l.theme.SectionGapPt/2)
}

// metadata draws the right-aligned record block: kind, number, then one line per field
func (l *layout) metadata() {
	t := l.theme
	rec := l.spec.Record
	fields := rec.MetadataFields()

	titleBand := t.TitleFontPt * 1.25
	h := t.LineHeightPt + titleBand + float64(len(fields))*t.LineHeightPt
	l.cur.EnsureSpace(h)

	y := l.cur.Y()
	kind := strings.ToUpper(rec.Kind().DisplayName())
	l.textRight(l.right(), l.baseline(y, t.LineHeightPt, t.BodyFontPt), kind, l.bold, t.BodyFontPt, l.accent)
	y -= t.LineHeightPt

	number := strings.TrimSpace(rec.Number)
	l.textRight(l.right(), l.baseline(y, titleBand, t.TitleFontPt), number, l.bold, t.TitleFontPt, l.brand)
	y -= titleBand

	for _, f := range fields {
		value := f.Text
		if f.Key.IsDate() {
			value = f.Date.Format(t.DateLayout)
		}
		line := t.Labels.MetadataLabel(f.Key) + ": " + value
		l.textRight(l.right(), l.baseline(y, t.LineHeightPt, t.BodyFontPt), line, l.body, t.BodyFontPt, TextColor)
		y -= t.LineHeightPt
	}
	l.cur.Advance(h + t.SectionGapPt)
}

// party draws the addressee block on the left. An empty party prints nothing.
func (l *layout) party() {
	t := l.theme
	lines := l.spec.Party.Lines()
	if len(lines) == 0 {
		return
	}
	h := float64(len(lines)+1) * t.LineHeightPt
	l.cur.EnsureSpace(h)

	y := l.cur.Y()
	label := t.Labels.PartyLabel(l.spec.Record.Kind())
	l.text(l.geom.Margin, l.baseline(y, t.LineHeightPt, t.BodyFontPt), label, l.bold, t.BodyFontPt, l.brand)
	y -= t.LineHeightPt

	maxWidth := l.geom.ContentWidth() * 0.6
	for _, line := range lines {
		line = Truncate(l.m, line, l.body, t.BodyFontPt, maxWidth)
		l.text(l.geom.Margin, l.baseline(y, t.LineHeightPt, t.BodyFontPt), line, l.body, t.BodyFontPt, TextColor)
		y -= t.LineHeightPt
	}
	l.cur.Advance(h + t.SectionGapPt)
}

func (l *layout) tableHeaderHeight() float64 {
	return l.theme.RowHeightPt + 2
}

func (l *layout) tableHeader() {
	t := l.theme
	c := t.Columns
	y := l.cur.Y()
	base := l.baseline(y, t.RowHeightPt, t.BodyFontPt)
	l.text(c.Description, base, t.Labels.Description, l.bold, t.BodyFontPt, l.brand)
	l.text(c.Quantity, base, t.Labels.Quantity, l.bold, t.BodyFontPt, l.brand)
	l.text(c.UnitPrice, base, t.Labels.UnitPrice, l.bold, t.BodyFontPt, l.brand)
	l.text(c.Total, base, t.Labels.LineTotal, l.bold, t.BodyFontPt, l.brand)
	l.rule(y-t.RowHeightPt, l.geom.Margin, l.right(), 0.75, RuleColor)
	l.cur.Advance(l.tableHeaderHeight())
}

func (l *layout) descriptionWidth() float64 {
	return l.theme.Columns.Quantity - l.theme.Columns.Description - columnGutterPt
}

// descriptionLines applies the overflow policy to one description
func (l *layout) descriptionLines(description string) []string {
	t := l.theme
	description = strings.TrimSpace(description)
	if t.DescriptionOverflow == OverflowWrap {
		if lines := Wrap(l.m, description, l.body, t.BodyFontPt, l.descriptionWidth()); len(lines) > 0 {
			return lines
		}
		return []string{""}
	}
	return []string{Truncate(l.m, description, l.body, t.BodyFontPt, l.descriptionWidth())}
}

// itemTable draws the header row and one row per item, breaking pages
// between rows so that no row is ever split. A wrapped row taller than a
// whole page is the exception: its remaining lines continue on the next page.
func (l *layout) itemTable() {
	t := l.theme
	l.cur.EnsureSpace(l.tableHeaderHeight() + t.RowHeightPt)
	l.tableHeader()

	l.inTable = true
	for _, item := range l.spec.LineItems {
		lines := l.descriptionLines(item.Description)
		if t.MaxRowsPerPage > 0 && l.rowsOnPage >= t.MaxRowsPerPage {
			l.cur.NewPage()
		}
		l.cur.EnsureSpace(l.rowHeight(len(lines)))

		first := true
		for {
			n := l.linesThatFit(len(lines))
			l.row(item, lines[:n], first)
			lines = lines[n:]
			if len(lines) == 0 {
				break
			}
			first = false
			l.cur.NewPage()
		}
		l.rowsOnPage++
	}
	l.inTable = false
	l.cur.Advance(t.SectionGapPt)
}

func (l *layout) rowHeight(lines int) float64 {
	return l.theme.RowHeightPt + float64(lines-1)*l.theme.LineHeightPt
}

// linesThatFit returns how many of n description lines fit above the
// bottom of the current page, never less than one
func (l *layout) linesThatFit(n int) int {
	if l.cur.Remaining() >= l.rowHeight(n) {
		return n
	}
	fit := int((l.cur.Remaining()-l.theme.RowHeightPt)/l.theme.LineHeightPt) + 1
	return min(max(fit, 1), n)
}

// row draws one table row. Continuation parts of a split row carry only
// description lines.
func (l *layout) row(item printing.LineItem, lines []string, withAmounts bool) {
	t := l.theme
	c := t.Columns
	top := l.cur.Y()
	base := l.baseline(top, t.RowHeightPt, t.BodyFontPt)
	for i, line := range lines {
		l.text(c.Description, base-float64(i)*t.LineHeightPt, line, l.body, t.BodyFontPt, TextColor)
	}
	if withAmounts {
		l.text(c.Quantity, base, valueobject.FormatQuantity(item.Quantity), l.body, t.BodyFontPt, TextColor)
		l.text(c.UnitPrice, base, valueobject.FormatAmount(item.UnitPrice), l.body, t.BodyFontPt, TextColor)
		l.text(c.Total, base, valueobject.FormatAmount(item.LineTotal), l.body, t.BodyFontPt, TextColor)
	}
	l.cur.Advance(l.rowHeight(len(lines)))
}

// totals draws Subtotal, Tax and Total with labels and values right-aligned
// in two independent columns
func (l *layout) totals() {
	t := l.theme
	rec := l.spec.Record
	rows := []struct {
		label string
		value valueobject.Money
		font  Font
	}{
		{t.Labels.Subtotal, rec.Amount(rec.Totals.Subtotal), l.body},
		{t.Labels.Tax, rec.Amount(rec.Totals.Tax), l.body},
		{t.Labels.Total, rec.Amount(rec.Totals.Total), l.bold},
	}

	totalGap := 4.0
	h := float64(len(rows))*t.LineHeightPt + totalGap
	l.cur.EnsureSpace(h)

	y := l.cur.Y()
	for i, row := range rows {
		if i == len(rows)-1 {
			y -= totalGap / 2
			l.rule(y, t.Columns.UnitPrice, l.right(), 0.75, l.accent)
			y -= totalGap / 2
		}
		base := l.baseline(y, t.LineHeightPt, t.BodyFontPt)
		l.textRight(t.TotalsLabelRightPt, base, row.label, row.font, t.BodyFontPt, TextColor)
		l.textRight(l.right(), base, row.value.String(), row.font, t.BodyFontPt, TextColor)
		y -= t.LineHeightPt
	}
	l.cur.Advance(h + t.SectionGapPt)
}

// notes draws a centered title and the word-wrapped notes, one line at a time
func (l *layout) notes() {
	t := l.theme
	text := strings.TrimSpace(l.spec.Record.Notes)
	if text == "" {
		return
	}
	lines := WrapParagraphs(l.m, text, l.body, t.BodyFontPt, l.geom.ContentWidth())
	center := l.geom.Width / 2

	// keep the title with the first line
	l.cur.EnsureSpace(2 * t.LineHeightPt)
	l.textCenter(center, l.baseline(l.cur.Y(), t.LineHeightPt, t.BodyFontPt), t.Labels.Notes, l.bold, t.BodyFontPt, l.brand)
	l.cur.Advance(t.LineHeightPt)

	for _, line := range lines {
		l.cur.EnsureSpace(t.LineHeightPt)
		l.textCenter(center, l.baseline(l.cur.Y(), t.LineHeightPt, t.BodyFontPt), line, l.body, t.BodyFontPt, TextColor)
		l.cur.Advance(t.LineHeightPt)
	}
	l.cur.Advance(t.SectionGapPt)
}

// qrBlock draws the centered QR image and its caption
func (l *layout) qrBlock(qr *Asset) {
	if qr == nil {
		return
	}
	t := l.theme
	captionGap := 4.0
	h := qr.TargetHeight + captionGap + t.LineHeightPt
	l.cur.EnsureSpace(h)

	top := l.cur.Y()
	l.cur.Draw(ImageOp{
		X:     (l.geom.Width - qr.TargetWidth) / 2,
		Y:     top - qr.TargetHeight,
		W:     qr.TargetWidth,
		H:     qr.TargetHeight,
		Asset: qr,
	})
	captionTop := top - qr.TargetHeight - captionGap
	l.textCenter(l.geom.Width/2, l.baseline(captionTop, t.LineHeightPt, t.SmallFontPt), t.Labels.QRCaption, l.body, t.SmallFontPt, MutedColor)
	l.cur.Advance(h + t.SectionGapPt)
}

func (l *layout) pageNumberText(n, count int) string {
	return fmt.Sprintf(l.theme.Labels.PageFormat, n, count)
}

// footer draws a rule and the footer text in the bottom margin of the last page
func (l *layout) footer() {
	t := l.theme
	text := strings.TrimSpace(l.spec.Tenant.FooterText)
	if text == "" {
		return
	}
	maxWidth := l.geom.ContentWidth()
	if t.PageNumbers {
		widest := l.pageNumberText(l.cur.PageCount()+99, l.cur.PageCount()+99)
		maxWidth -= l.m.WidthOf(widest, l.body, t.SmallFontPt) + logoGapPt
	}
	l.rule(l.footerBandTop(), l.geom.Margin, l.right(), 0.5, RuleColor)
	text = Truncate(l.m, text, l.body, t.SmallFontPt, maxWidth)
	l.text(l.geom.Margin, t.FooterOffsetPt, text, l.body, t.SmallFontPt, MutedColor)
}

// footerBandTop is the y of the footer rule, the top of the footer band
func (l *layout) footerBandTop() float64 {
	return l.theme.FooterOffsetPt + l.theme.SmallFontPt + 4
}

// pageNumber is the PageStamp writing "Page n of m" on every page
func (l *layout) pageNumber(page *Page, count int) []DrawOp {
	t := l.theme
	s := l.pageNumberText(page.Number, count)
	return []DrawOp{TextOp{
		X:     l.right() - l.m.WidthOf(s, l.body, t.SmallFontPt),
		Y:     t.FooterOffsetPt,
		Text:  s,
		Font:  l.body,
		Size:  t.SmallFontPt,
		Color: MutedColor,
	}}
}
