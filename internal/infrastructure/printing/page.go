package printing

// PageGeometry is the fixed size of every page of a document, in points
type PageGeometry struct {
	Width  float64
	Height float64
	Margin float64
}

// ContentWidth is the printable width between the side margins
func (g PageGeometry) ContentWidth() float64 {
	return g.Width - 2*g.Margin
}

// Top is the y coordinate of the top of the content area
func (g PageGeometry) Top() float64 {
	return g.Height - g.Margin
}

// DrawOp is one drawing instruction recorded on a page.
// Coordinates use a bottom-left origin with y growing upwards.
type DrawOp interface {
	drawOp()
}

// TextOp draws a single line of text with its baseline at (X, Y)
type TextOp struct {
	X, Y  float64
	Text  string
	Font  Font
	Size  float64
	Color Color
}

// LineOp draws a straight rule
type LineOp struct {
	X1, Y1, X2, Y2 float64
	Width          float64
	Color          Color
}

// ImageOp places an asset with its bottom-left corner at (X, Y)
type ImageOp struct {
	X, Y  float64
	W, H  float64
	Asset *Asset
}

func (TextOp) drawOp()  {}
func (LineOp) drawOp()  {}
func (ImageOp) drawOp() {}

// Page is one laid out page. Once sealed it no longer accepts drawing.
type Page struct {
	Number   int
	Geometry PageGeometry
	ops      []DrawOp
	sealed   bool
}

func newPage(number int, geom PageGeometry) *Page {
	return &Page{Number: number, Geometry: geom}
}

func (p *Page) add(op DrawOp) {
	if p.sealed {
		return
	}
	p.ops = append(p.ops, op)
}

// Ops returns a copy of the recorded drawing instructions
func (p *Page) Ops() []DrawOp {
	out := make([]DrawOp, len(p.ops))
	copy(out, p.ops)
	return out
}

// IsEmpty reports whether nothing was drawn on the page
func (p *Page) IsEmpty() bool {
	return len(p.ops) == 0
}

// IsSealed reports whether the page was finalized
func (p *Page) IsSealed() bool {
	return p.sealed
}

// Texts returns the text of every TextOp in drawing order
func (p *Page) Texts() []string {
	var texts []string
	for _, op := range p.ops {
		if t, ok := op.(TextOp); ok {
			texts = append(texts, t.Text)
		}
	}
	return texts
}

// TextOps returns every TextOp in drawing order
func (p *Page) TextOps() []TextOp {
	var out []TextOp
	for _, op := range p.ops {
		if t, ok := op.(TextOp); ok {
			out = append(out, t)
		}
	}
	return out
}

// Images returns every ImageOp in drawing order
func (p *Page) Images() []ImageOp {
	var out []ImageOp
	for _, op := range p.ops {
		if img, ok := op.(ImageOp); ok {
			out = append(out, img)
		}
	}
	return out
}
