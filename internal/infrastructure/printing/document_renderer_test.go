package printing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/domain/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRenderer(t *testing.T, theme *LayoutTheme, opts ...func(*RendererConfig)) *Renderer {
	t.Helper()
	cfg := &RendererConfig{
		Theme:      theme,
		Serializer: uncompressed(),
		Logger:     zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewRenderer(cfg)
}

// assetServer serves a 400x100 logo at /logo.png and a QR image at /qr;
// every other path is a 404
func assetServer(t *testing.T) *httptest.Server {
	t.Helper()
	logo := pngBytes(t, 400, 100)
	qr := pngBytes(t, 240, 240)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(logo)
		case "/qr":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(qr)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func withRemoteAssets(t *testing.T, srv *httptest.Server, qrPath string) func(*RendererConfig) {
	return func(cfg *RendererConfig) {
		loader := NewAssetLoader(NewHTTPFetcher(&HTTPFetcherConfig{Timeout: 2 * time.Second}), nil, zaptest.NewLogger(t))
		cfg.Loader = loader
		cfg.QR = NewRemoteQRProvider(loader, srv.URL+qrPath+"?data={data}", DefaultQRSize)
	}
}

func TestRenderer_Render_MinimalInvoice(t *testing.T) {
	r := newTestRenderer(t, nil)

	result, err := r.Render(context.Background(), sampleInvoice())
	require.NoError(t, err)
	require.NotNil(t, result)

	pdf := string(result.PDFData)
	assert.True(t, strings.HasPrefix(pdf, "%PDF-"))
	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, 1, countPDFPages(result.PDFData))
	assert.Empty(t, result.Warnings)
	assert.Greater(t, result.RenderDuration, time.Duration(0))

	for _, want := range []string{"Acme Co", "INV-0001", "Widget", "100.00 EUR", "20.00 EUR", "120.00 EUR", "Bill To", "Bob"} {
		assert.Contains(t, pdf, "("+want+") Tj", "missing %q", want)
	}
}

func TestRenderer_Render_NilSpec(t *testing.T) {
	r := newTestRenderer(t, nil)
	_, err := r.Render(context.Background(), nil)

	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, ErrCodeInvalidDocument, renderErr.Code)
}

func TestRenderer_SectionOrder(t *testing.T) {
	spec := sampleInvoice()
	spec.Record.Notes = "Thank you for your business"
	spec.Tenant.FooterText = "Acme Co - Registered in Nowhere"
	r := newTestRenderer(t, nil)

	pages := r.paginate(spec, documentAssets{})
	require.Len(t, pages, 1)
	texts := pages[0].Texts()

	order := []string{"Acme Co", "INVOICE", "INV-0001", "Issued: 2024-03-01", "Due: 2024-03-31",
		"Bill To", "Bob", "Description", "Widget", "Subtotal", "Tax", "Total", "Notes",
		"Thank you for your business", "Acme Co - Registered in Nowhere"}
	last := -1
	for _, want := range order {
		idx := -1
		for i := last + 1; i < len(texts); i++ {
			if texts[i] == want {
				idx = i
				break
			}
		}
		require.NotEqual(t, -1, idx, "%q not found after position %d in %v", want, last, texts)
		last = idx
	}
}

func TestRenderer_ContentStaysAboveBottomMargin(t *testing.T) {
	r := newTestRenderer(t, nil)
	spec := invoiceWithItems(90)
	spec.Record.Notes = strings.Repeat("Please include the invoice number with your payment. ", 30)

	pages := r.paginate(spec, documentAssets{})
	require.Greater(t, len(pages), 1)
	margin := r.Theme().MarginPt
	for _, p := range pages {
		for _, op := range p.TextOps() {
			if op.Size == r.Theme().SmallFontPt {
				continue // footer band
			}
			assert.GreaterOrEqual(t, op.Y-0.25*op.Size, margin-1e-6, "%q on page %d", op.Text, p.Number)
		}
	}
}

func TestRenderer_OversizedWrappedRowContinuesOnNextPage(t *testing.T) {
	theme := DefaultTheme()
	theme.DescriptionOverflow = OverflowWrap
	r := newTestRenderer(t, &theme, func(cfg *RendererConfig) { cfg.Measurer = fixedWidthMeasurer{charWidth: 5} })

	spec := invoiceWithItems(3)
	long := strings.Repeat("lorem ipsum dolor ", 400)
	spec.LineItems[1].Description = long
	pages := r.paginate(spec, documentAssets{})
	require.Greater(t, len(pages), 2)

	var words []string
	amounts := 0
	for _, p := range pages {
		for _, op := range p.TextOps() {
			assert.GreaterOrEqual(t, op.Y-0.25*op.Size, theme.MarginPt-1e-6, "%q on page %d", op.Text, p.Number)
			if strings.HasPrefix(op.Text, "lorem") {
				words = append(words, strings.Fields(op.Text)...)
			}
			if op.Text == "10.00" {
				amounts++
			}
		}
	}
	assert.Equal(t, strings.Fields(long), words, "every wrapped line printed once, in order")
	// unit price and line total once per item, never repeated on continuation parts
	assert.Equal(t, 6, amounts)
	assert.Less(t, pageIndexOf(pages, "Item 01"), pageIndexOf(pages, "Item 03"))
}

func TestRenderer_BodyStaysAboveFooterBand(t *testing.T) {
	theme := DefaultTheme()
	theme.MarginPt = 12
	theme.PageNumbers = true
	r := newTestRenderer(t, &theme)

	spec := invoiceWithItems(200)
	spec.Tenant.FooterText = "Thank you"
	pages := r.paginate(spec, documentAssets{})
	require.Greater(t, len(pages), 1)

	ruleY := theme.FooterOffsetPt + theme.SmallFontPt + 4
	for _, p := range pages {
		for _, op := range p.TextOps() {
			if op.Size == theme.SmallFontPt {
				continue
			}
			assert.Greater(t, op.Y-0.25*op.Size, ruleY, "%q on page %d", op.Text, p.Number)
		}
	}
}

func TestRenderer_Pagination_FixedRowsPerPage(t *testing.T) {
	theme := DefaultTheme()
	theme.MaxRowsPerPage = 25
	r := newTestRenderer(t, &theme)

	spec := invoiceWithItems(60)
	result, err := r.Render(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, 3, countPDFPages(result.PDFData))

	pages := r.paginate(spec, documentAssets{})
	require.Len(t, pages, 3)
	for i := 1; i <= 60; i++ {
		want := (i - 1) / 25
		assert.Equal(t, want, pageIndexOf(pages, fmt.Sprintf("Item %02d", i)), "Item %02d", i)
	}

	// header row repeated on continuation pages
	for _, p := range pages {
		assert.Equal(t, 1, strings.Count(strings.Join(p.Texts(), "|"), "Description"), "page %d", p.Number)
	}
	// totals after the last row
	assert.Equal(t, 2, pageIndexOf(pages, "120.00 EUR"))
}

func TestRenderer_Pagination_PageCountProperty(t *testing.T) {
	theme := DefaultTheme()
	theme.MaxRowsPerPage = 25
	r := newTestRenderer(t, &theme)

	for _, n := range []int{0, 1, 24, 25, 26, 50, 51, 60, 75} {
		t.Run(fmt.Sprintf("%d items", n), func(t *testing.T) {
			pages := r.paginate(invoiceWithItems(n), documentAssets{})
			expected := (n + 24) / 25
			if expected == 0 {
				expected = 1
			}
			assert.Len(t, pages, expected)
		})
	}
}

func TestRenderer_Pagination_SpaceDriven(t *testing.T) {
	r := newTestRenderer(t, nil)
	spec := invoiceWithItems(150)
	pages := r.paginate(spec, documentAssets{})
	require.Greater(t, len(pages), 2)

	// every item exactly once, in order
	var items []string
	for _, p := range pages {
		for _, s := range p.Texts() {
			if strings.HasPrefix(s, "Item ") {
				items = append(items, s)
			}
		}
	}
	require.Len(t, items, 150)
	for i, s := range items {
		assert.Equal(t, fmt.Sprintf("Item %02d", i+1), s)
	}
}

func TestRenderer_Pagination_WithoutHeaderRepeat(t *testing.T) {
	theme := DefaultTheme()
	theme.MaxRowsPerPage = 10
	theme.RepeatTableHeader = false
	r := newTestRenderer(t, &theme)

	pages := r.paginate(invoiceWithItems(30), documentAssets{})
	require.Len(t, pages, 3)
	assert.Equal(t, 0, pageIndexOf(pages, "Description"))
	assert.NotContains(t, pages[1].Texts(), "Description")
}

func TestRenderer_SoftFailureDeterminism(t *testing.T) {
	srv := assetServer(t)
	var reported []AssetWarning
	var mu sync.Mutex
	r := newTestRenderer(t, nil, withRemoteAssets(t, srv, "/missing-qr"), func(cfg *RendererConfig) {
		cfg.OnAssetFailure = func(w AssetWarning) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, w)
		}
	})

	broken := sampleInvoice()
	broken.Tenant.LogoURL = srv.URL + "/missing-logo.png"
	broken.QRTarget = "https://pay.example.com/INV-0001"

	result, err := r.Render(context.Background(), broken)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, AssetKindLogo, result.Warnings[0].Kind)
	assert.Equal(t, AssetKindQR, result.Warnings[1].Kind)
	assert.Len(t, reported, 2)

	// identical layout to a document that never referenced the assets
	assets, _ := r.prefetch(context.Background(), broken)
	got := r.paginate(broken, assets)
	want := r.paginate(sampleInvoice(), documentAssets{})
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Ops(), got[i].Ops())
	}
}

func TestRenderer_AssetsDisabled(t *testing.T) {
	r := newTestRenderer(t, nil)
	spec := sampleInvoice()
	spec.Tenant.LogoURL = "https://cdn.example.com/logo.png"
	spec.QRTarget = "https://pay.example.com/x"

	result, err := r.Render(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0].Message, ErrAssetLoadingDisabled.Error())
}

func TestRenderer_AssetFailureLogLevel(t *testing.T) {
	srv := assetServer(t)

	t.Run("fetch failure warns", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		r := newTestRenderer(t, nil, withRemoteAssets(t, srv, "/qr"), func(cfg *RendererConfig) { cfg.Logger = zap.New(core) })
		spec := sampleInvoice()
		spec.Tenant.LogoURL = srv.URL + "/missing.png"

		_, err := r.Render(context.Background(), spec)
		require.NoError(t, err)
		entries := logs.FilterMessage("Asset unavailable, continuing without it").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("disabled loading is debug only", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		r := newTestRenderer(t, nil, func(cfg *RendererConfig) { cfg.Logger = zap.New(core) })
		spec := sampleInvoice()
		spec.Tenant.LogoURL = "https://cdn.example.com/logo.png"

		_, err := r.Render(context.Background(), spec)
		require.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("Asset skipped").Len())
		assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	})
}

func TestRenderer_LogoAndQR(t *testing.T) {
	srv := assetServer(t)
	r := newTestRenderer(t, nil, withRemoteAssets(t, srv, "/qr"))

	spec := sampleInvoice()
	spec.Tenant.LogoURL = srv.URL + "/logo.png"
	spec.QRTarget = "https://pay.example.com/INV-0001"

	assets, warnings := r.prefetch(context.Background(), spec)
	require.Empty(t, warnings)
	require.NotNil(t, assets.logo)
	require.NotNil(t, assets.qr)

	pages := r.paginate(spec, assets)
	require.Len(t, pages, 1)
	images := pages[0].Images()
	require.Len(t, images, 2)

	theme := r.Theme()
	logo := images[0]
	assert.Equal(t, theme.MarginPt, logo.X)
	assert.InDelta(t, 140, logo.W, 1e-9)
	assert.InDelta(t, 35, logo.H, 1e-9)
	assert.InDelta(t, theme.Geometry().Top()-35, logo.Y, 1e-9)

	qr := images[1]
	assert.InDelta(t, theme.QRSizePt, qr.W, 1e-9)
	assert.InDelta(t, theme.QRSizePt, qr.H, 1e-9)
	assert.InDelta(t, theme.Geometry().Width/2, qr.X+qr.W/2, 1e-9)
	assert.Contains(t, pages[0].Texts(), theme.Labels.QRCaption)

	result, err := r.Render(context.Background(), spec)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 2, strings.Count(string(result.PDFData), "/Subtype /Image"))
}

func TestRenderer_LocalQR(t *testing.T) {
	r := newTestRenderer(t, nil, func(cfg *RendererConfig) {
		cfg.QR = NewLocalQRProvider(NewAssetLoader(nil, nil, nil), DefaultQRSize)
	})
	spec := sampleInvoice()
	spec.QRTarget = "https://pay.example.com/INV-0001"

	result, err := r.Render(context.Background(), spec)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Contains(t, string(result.PDFData), "(Scan to pay) Tj")
}

func TestRenderer_FooterOnLastPageOnly(t *testing.T) {
	theme := DefaultTheme()
	theme.MaxRowsPerPage = 20
	r := newTestRenderer(t, &theme)

	spec := invoiceWithItems(50)
	spec.Tenant.FooterText = "Thank you"
	pages := r.paginate(spec, documentAssets{})
	require.Len(t, pages, 3)

	for i, p := range pages {
		if i == len(pages)-1 {
			assert.Contains(t, p.Texts(), "Thank you")
			continue
		}
		assert.NotContains(t, p.Texts(), "Thank you")
	}

	var footer TextOp
	for _, op := range pages[2].TextOps() {
		if op.Text == "Thank you" {
			footer = op
		}
	}
	assert.Equal(t, theme.FooterOffsetPt, footer.Y)
	assert.Equal(t, theme.MarginPt, footer.X)
}

func TestRenderer_PageNumbers(t *testing.T) {
	theme := DefaultTheme()
	theme.MaxRowsPerPage = 20
	theme.PageNumbers = true
	r := newTestRenderer(t, &theme)

	pages := r.paginate(invoiceWithItems(50), documentAssets{})
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Contains(t, p.Texts(), fmt.Sprintf("Page %d of 3", i+1))
	}
}

func TestRenderer_NoFooterWithoutText(t *testing.T) {
	r := newTestRenderer(t, nil)
	pages := r.paginate(sampleInvoice(), documentAssets{})
	for _, op := range pages[0].Ops() {
		if line, ok := op.(LineOp); ok {
			assert.Greater(t, line.Y1, r.Theme().MarginPt, "unexpected rule in the footer band")
		}
	}
}

func TestRenderer_Notes(t *testing.T) {
	m := fixedWidthMeasurer{charWidth: 6}
	r := newTestRenderer(t, nil, func(cfg *RendererConfig) { cfg.Measurer = m })

	spec := sampleInvoice()
	spec.Record.Notes = strings.Repeat("lorem ", 150)
	pages := r.paginate(spec, documentAssets{})

	theme := r.Theme()
	contentWidth := theme.Geometry().ContentWidth()
	center := theme.Geometry().Width / 2
	var noteLines int
	for _, op := range pages[0].TextOps() {
		if !strings.HasPrefix(op.Text, "lorem") {
			continue
		}
		noteLines++
		w := m.WidthOf(op.Text, op.Font, op.Size)
		assert.LessOrEqual(t, w, contentWidth)
		assert.InDelta(t, center, op.X+w/2, 1e-9, "line not centered")
	}
	assert.Greater(t, noteLines, 1)
}

func TestRenderer_EmptyNotesSkipped(t *testing.T) {
	r := newTestRenderer(t, nil)
	spec := sampleInvoice()
	spec.Record.Notes = "   \n "
	pages := r.paginate(spec, documentAssets{})
	assert.NotContains(t, pages[0].Texts(), "Notes")
}

func TestRenderer_DescriptionOverflow(t *testing.T) {
	long := strings.Repeat("very long description ", 10)

	t.Run("truncate", func(t *testing.T) {
		r := newTestRenderer(t, nil, func(cfg *RendererConfig) { cfg.Measurer = fixedWidthMeasurer{charWidth: 5} })
		spec := sampleInvoice()
		spec.LineItems[0].Description = long
		pages := r.paginate(spec, documentAssets{})

		var found bool
		for _, s := range pages[0].Texts() {
			if strings.HasPrefix(s, "very long") {
				found = true
				assert.True(t, strings.HasSuffix(s, Ellipsis))
			}
		}
		assert.True(t, found)
	})

	t.Run("wrap", func(t *testing.T) {
		theme := DefaultTheme()
		theme.DescriptionOverflow = OverflowWrap
		r := newTestRenderer(t, &theme, func(cfg *RendererConfig) { cfg.Measurer = fixedWidthMeasurer{charWidth: 5} })
		spec := sampleInvoice()
		spec.LineItems[0].Description = long
		pages := r.paginate(spec, documentAssets{})

		var lines []string
		for _, s := range pages[0].Texts() {
			if strings.Contains(s, "description") || strings.HasPrefix(s, "very") || strings.HasPrefix(s, "long") {
				lines = append(lines, s)
			}
		}
		require.Greater(t, len(lines), 1)
		assert.Equal(t, strings.Fields(long), strings.Fields(strings.Join(lines, " ")))
	})
}

func TestRenderer_BrandColors(t *testing.T) {
	r := newTestRenderer(t, nil)

	find := func(t *testing.T, pages []*Page, text string) TextOp {
		t.Helper()
		for _, op := range pages[0].TextOps() {
			if op.Text == text {
				return op
			}
		}
		t.Fatalf("%q not drawn", text)
		return TextOp{}
	}

	t.Run("malformed token falls back", func(t *testing.T) {
		spec := sampleInvoice()
		spec.Tenant.BrandColor = strPtr("#12345")
		pages := r.paginate(spec, documentAssets{})
		assert.Equal(t, DefaultBrandColor, find(t, pages, "Acme Co").Color)
	})

	t.Run("valid token is used", func(t *testing.T) {
		spec := sampleInvoice()
		spec.Tenant.BrandColor = strPtr("#f00")
		pages := r.paginate(spec, documentAssets{})
		assert.Equal(t, Color{R: 1}, find(t, pages, "Acme Co").Color)
		assert.Equal(t, Color{R: 1}, find(t, pages, "INV-0001").Color)
		assert.True(t, find(t, pages, "INV-0001").Font.Bold)
	})
}

func TestRenderer_RecordKinds(t *testing.T) {
	r := newTestRenderer(t, nil)

	t.Run("quote", func(t *testing.T) {
		spec := sampleInvoice()
		spec.Record.Details = printing.QuoteDetails{ValidUntil: day(2024, time.April, 1)}
		texts := r.paginate(spec, documentAssets{})[0].Texts()
		assert.Contains(t, texts, "QUOTE")
		assert.Contains(t, texts, "Quote For")
		assert.Contains(t, texts, "Valid until: 2024-04-01")
		assert.NotContains(t, texts, "Bill To")
	})

	t.Run("receipt", func(t *testing.T) {
		spec := sampleInvoice()
		spec.Record.Details = printing.ReceiptDetails{PaidAt: day(2024, time.March, 2), PaymentMethod: "Card"}
		texts := r.paginate(spec, documentAssets{})[0].Texts()
		assert.Contains(t, texts, "RECEIPT")
		assert.Contains(t, texts, "Received From")
		assert.Contains(t, texts, "Paid: 2024-03-02")
		assert.Contains(t, texts, "Payment method: Card")
	})
}

func TestRenderer_EmptyPartyAndItems(t *testing.T) {
	r := newTestRenderer(t, nil)
	spec := sampleInvoice()
	spec.Party = printing.Party{}
	spec.LineItems = nil

	result, err := r.Render(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
	assert.NotContains(t, string(result.PDFData), "(Bill To) Tj")
	assert.Contains(t, string(result.PDFData), "(Description) Tj")
}

func TestRenderer_ConcurrentRendersAreIndependent(t *testing.T) {
	r := newTestRenderer(t, nil)
	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := r.Render(context.Background(), invoiceWithItems(10*(i+1)))
			if assert.NoError(t, err) {
				counts[i] = result.PageCount
			}
		}(i)
	}
	wg.Wait()

	for i, got := range counts {
		want := len(r.paginate(invoiceWithItems(10*(i+1)), documentAssets{}))
		assert.Equal(t, want, got)
	}
}
