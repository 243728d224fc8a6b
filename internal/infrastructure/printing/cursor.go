package printing

// PageCursor owns the pages of one render and the vertical write position.
// y starts at the top of the content area and decreases as content is added.
type PageCursor struct {
	geom    PageGeometry
	pages   []*Page
	current int
	y       float64
	sealed  bool
	// floor is a reserved band above the page bottom, such as a footer
	floor float64
	// onNewPage runs after a page break, before any caller content
	onNewPage func()
}

// NewPageCursor creates a cursor positioned at the top of a first page
func NewPageCursor(geom PageGeometry) *PageCursor {
	c := &PageCursor{geom: geom}
	c.pages = []*Page{newPage(1, geom)}
	c.y = geom.Top()
	return c
}

// Geometry returns the page geometry shared by all pages
func (c *PageCursor) Geometry() PageGeometry {
	return c.geom
}

// Y returns the current write position
func (c *PageCursor) Y() float64 {
	return c.y
}

// Remaining returns the space left above the bottom margin, or above the
// reserved footer band when that is taller
func (c *PageCursor) Remaining() float64 {
	return c.y - max(c.geom.Margin, c.floor)
}

// ReserveBottom keeps body content above height points from the page bottom
func (c *PageCursor) ReserveBottom(height float64) {
	c.floor = height
}

// Page returns the page currently being written
func (c *PageCursor) Page() *Page {
	return c.pages[c.current]
}

// PageCount returns the number of pages allocated so far
func (c *PageCursor) PageCount() int {
	return len(c.pages)
}

// Advance moves the write position down by amount
func (c *PageCursor) Advance(amount float64) {
	c.y -= amount
}

// EnsureSpace starts a new page when less than minRemaining is left above
// the bottom margin. It reports whether a break happened. A page that is
// still empty is never broken, so an oversized unit cannot produce blank pages.
func (c *PageCursor) EnsureSpace(minRemaining float64) bool {
	if c.Remaining() >= minRemaining {
		return false
	}
	if c.Page().IsEmpty() {
		return false
	}
	c.NewPage()
	return true
}

// NewPage seals the current page and continues on a fresh one
func (c *PageCursor) NewPage() {
	if c.sealed {
		return
	}
	c.Page().sealed = true
	c.pages = append(c.pages, newPage(len(c.pages)+1, c.geom))
	c.current = len(c.pages) - 1
	c.y = c.geom.Top()
	if c.onNewPage != nil {
		c.onNewPage()
	}
}

// OnNewPage registers a callback run right after every page break
func (c *PageCursor) OnNewPage(fn func()) {
	c.onNewPage = fn
}

// Draw records op on the current page
func (c *PageCursor) Draw(op DrawOp) {
	c.Page().add(op)
}

// PageStamp returns furniture drawn on a page at seal time, such as
// "Page n of m" markers that need the final page count.
type PageStamp func(page *Page, pageCount int) []DrawOp

// Seal finalizes every page and returns them in order. Each stamp runs once
// per page before it is sealed. The cursor accepts no content afterwards.
func (c *PageCursor) Seal(stamps ...PageStamp) []*Page {
	for _, p := range c.pages {
		for _, stamp := range stamps {
			p.ops = append(p.ops, stamp(p, len(c.pages))...)
		}
		p.sealed = true
	}
	c.sealed = true
	out := make([]*Page, len(c.pages))
	copy(out, c.pages)
	return out
}
