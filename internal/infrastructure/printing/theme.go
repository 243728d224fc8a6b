package printing

import (
	"github.com/invoicing/backend/internal/domain/printing"
)

// OverflowPolicy decides what happens to descriptions wider than their column
type OverflowPolicy string

const (
	// OverflowTruncate cuts the description and appends an ellipsis
	OverflowTruncate OverflowPolicy = "TRUNCATE"
	// OverflowWrap wraps the description over several lines, growing the row
	OverflowWrap OverflowPolicy = "WRAP"
)

// IsValid checks if the OverflowPolicy is a valid value
func (p OverflowPolicy) IsValid() bool {
	return p == OverflowTruncate || p == OverflowWrap
}

// ColumnOffsets are the x positions of the item table columns, in points
type ColumnOffsets struct {
	Description float64
	Quantity    float64
	UnitPrice   float64
	Total       float64
}

// Labels holds every fixed string printed on a document
type Labels struct {
	BillTo        string
	QuoteFor      string
	ReceivedFrom  string
	Description   string
	Quantity      string
	UnitPrice     string
	LineTotal     string
	Subtotal      string
	Tax           string
	Total         string
	Notes         string
	QRCaption     string
	IssueDate     string
	DueDate       string
	ValidUntil    string
	PaidAt        string
	PaymentMethod string
	Reference     string
	// PageFormat receives the page number and the page count
	PageFormat string
}

// DefaultLabels returns the English labels
func DefaultLabels() Labels {
	return Labels{
		BillTo:        "Bill To",
		QuoteFor:      "Quote For",
		ReceivedFrom:  "Received From",
		Description:   "Description",
		Quantity:      "Qty",
		UnitPrice:     "Unit",
		LineTotal:     "Total",
		Subtotal:      "Subtotal",
		Tax:           "Tax",
		Total:         "Total",
		Notes:         "Notes",
		QRCaption:     "Scan to pay",
		IssueDate:     "Issued",
		DueDate:       "Due",
		ValidUntil:    "Valid until",
		PaidAt:        "Paid",
		PaymentMethod: "Payment method",
		Reference:     "Reference",
		PageFormat:    "Page %d of %d",
	}
}

// PartyLabel returns the party block heading for a record kind
func (l Labels) PartyLabel(kind printing.RecordKind) string {
	switch kind {
	case printing.RecordKindQuote:
		return l.QuoteFor
	case printing.RecordKindReceipt:
		return l.ReceivedFrom
	default:
		return l.BillTo
	}
}

// MetadataLabel returns the label printed before a metadata value
func (l Labels) MetadataLabel(key printing.MetadataKey) string {
	switch key {
	case printing.MetadataIssueDate:
		return l.IssueDate
	case printing.MetadataDueDate:
		return l.DueDate
	case printing.MetadataValidUntil:
		return l.ValidUntil
	case printing.MetadataPaidAt:
		return l.PaidAt
	case printing.MetadataPaymentMethod:
		return l.PaymentMethod
	case printing.MetadataReference:
		return l.Reference
	default:
		return string(key)
	}
}

// LayoutTheme holds every geometric and typographic constant of the layout.
// Zero fields take the DefaultTheme values.
type LayoutTheme struct {
	PaperSize printing.PaperSize
	// PageWidth and PageHeight override the paper size when both are set
	PageWidth  float64
	PageHeight float64

	MarginPt     float64
	LineHeightPt float64
	RowHeightPt  float64
	SectionGapPt float64

	FontFamily   string
	HeaderFontPt float64
	TitleFontPt  float64
	BodyFontPt   float64
	SmallFontPt  float64

	Columns ColumnOffsets
	// TotalsLabelRightPt is the right edge of the totals label column
	TotalsLabelRightPt float64

	LogoMaxWidthPt  float64
	LogoMaxHeightPt float64
	QRSizePt        float64
	// FooterOffsetPt is the footer baseline distance from the page bottom
	FooterOffsetPt float64

	DescriptionOverflow OverflowPolicy
	// MaxRowsPerPage forces a page break after that many item rows; 0 disables it
	MaxRowsPerPage    int
	RepeatTableHeader bool
	PageNumbers       bool
	DateLayout        string

	Labels Labels
}

// DefaultTheme returns the standard A4 layout
func DefaultTheme() LayoutTheme {
	t := LayoutTheme{
		PaperSize:           printing.PaperSizeA4,
		MarginPt:            40,
		LineHeightPt:        14,
		RowHeightPt:         18,
		SectionGapPt:        16,
		FontFamily:          "Helvetica",
		HeaderFontPt:        18,
		TitleFontPt:         16,
		BodyFontPt:          10,
		SmallFontPt:         8,
		LogoMaxWidthPt:      140,
		LogoMaxHeightPt:     60,
		QRSizePt:            96,
		FooterOffsetPt:      24,
		DescriptionOverflow: OverflowTruncate,
		RepeatTableHeader:   true,
		DateLayout:          "2006-01-02",
		Labels:              DefaultLabels(),
	}
	return t.WithDefaults()
}

// Geometry returns the page geometry of the theme
func (t LayoutTheme) Geometry() PageGeometry {
	w, h := t.PaperSize.Dimensions()
	if t.PageWidth > 0 && t.PageHeight > 0 {
		w, h = t.PageWidth, t.PageHeight
	}
	return PageGeometry{Width: w, Height: h, Margin: t.MarginPt}
}

// WithDefaults returns a copy with every zero field filled in.
// Column offsets default to fixed fractions of the content width.
func (t LayoutTheme) WithDefaults() LayoutTheme {
	setDefault(&t.MarginPt, 40)
	setDefault(&t.LineHeightPt, 14)
	setDefault(&t.RowHeightPt, 18)
	setDefault(&t.SectionGapPt, 16)
	setDefault(&t.HeaderFontPt, 18)
	setDefault(&t.TitleFontPt, 16)
	setDefault(&t.BodyFontPt, 10)
	setDefault(&t.SmallFontPt, 8)
	setDefault(&t.LogoMaxWidthPt, 140)
	setDefault(&t.LogoMaxHeightPt, 60)
	setDefault(&t.QRSizePt, 96)
	setDefault(&t.FooterOffsetPt, 24)
	if !t.PaperSize.IsValid() {
		t.PaperSize = printing.PaperSizeA4
	}
	if t.FontFamily == "" {
		t.FontFamily = "Helvetica"
	}
	if !t.DescriptionOverflow.IsValid() {
		t.DescriptionOverflow = OverflowTruncate
	}
	if t.MaxRowsPerPage < 0 {
		t.MaxRowsPerPage = 0
	}
	if t.DateLayout == "" {
		t.DateLayout = "2006-01-02"
	}
	t.Labels = t.Labels.withDefaults()

	g := t.Geometry()
	if t.Columns == (ColumnOffsets{}) {
		cw := g.ContentWidth()
		t.Columns = ColumnOffsets{
			Description: g.Margin,
			Quantity:    g.Margin + cw*0.54,
			UnitPrice:   g.Margin + cw*0.66,
			Total:       g.Margin + cw*0.82,
		}
	}
	setDefault(&t.TotalsLabelRightPt, t.Columns.Total-12)
	return t
}

func (l Labels) withDefaults() Labels {
	d := DefaultLabels()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&l.BillTo, d.BillTo)
	fill(&l.QuoteFor, d.QuoteFor)
	fill(&l.ReceivedFrom, d.ReceivedFrom)
	fill(&l.Description, d.Description)
	fill(&l.Quantity, d.Quantity)
	fill(&l.UnitPrice, d.UnitPrice)
	fill(&l.LineTotal, d.LineTotal)
	fill(&l.Subtotal, d.Subtotal)
	fill(&l.Tax, d.Tax)
	fill(&l.Total, d.Total)
	fill(&l.Notes, d.Notes)
	fill(&l.QRCaption, d.QRCaption)
	fill(&l.IssueDate, d.IssueDate)
	fill(&l.DueDate, d.DueDate)
	fill(&l.ValidUntil, d.ValidUntil)
	fill(&l.PaidAt, d.PaidAt)
	fill(&l.PaymentMethod, d.PaymentMethod)
	fill(&l.Reference, d.Reference)
	fill(&l.PageFormat, d.PageFormat)
	return l
}

func setDefault(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}
