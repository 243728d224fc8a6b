package printing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/invoicing/backend/internal/domain/printing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fixedWidthMeasurer treats every rune as charWidth points at size 10
type fixedWidthMeasurer struct {
	charWidth float64
}

func (m fixedWidthMeasurer) WidthOf(text string, _ Font, size float64) float64 {
	return float64(utf8.RuneCountInString(text)) * m.charWidth * size / 10
}

func strPtr(s string) *string {
	return &s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sampleInvoice is the one-item EUR invoice used across tests
func sampleInvoice() *printing.DocumentSpec {
	return &printing.DocumentSpec{
		Tenant: printing.Tenant{
			BusinessName: "Acme Co",
			Email:        "billing@acme.test",
		},
		Record: printing.Record{
			Number:    "INV-0001",
			Currency:  "EUR",
			IssueDate: day(2024, time.March, 1),
			Totals:    printing.NewTotals(decimal.NewFromInt(100), decimal.NewFromInt(20)),
			Details:   printing.InvoiceDetails{DueDate: day(2024, time.March, 31)},
		},
		Party: printing.Party{Name: "Bob"},
		LineItems: []printing.LineItem{{
			Description: "Widget",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(100),
			LineTotal:   decimal.NewFromInt(100),
		}},
	}
}

// invoiceWithItems returns sampleInvoice with n items named "Item 01".."Item n"
func invoiceWithItems(n int) *printing.DocumentSpec {
	spec := sampleInvoice()
	spec.LineItems = make([]printing.LineItem, 0, n)
	for i := 1; i <= n; i++ {
		spec.LineItems = append(spec.LineItems, printing.LineItem{
			Description: fmt.Sprintf("Item %02d", i),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(10),
			LineTotal:   decimal.NewFromInt(10),
		})
	}
	return spec
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: 80, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// uncompressed returns a serializer whose output keeps text operators readable
func uncompressed() *Serializer {
	return NewSerializer(&SerializerConfig{Compress: false})
}

// pageIndexOf returns the index of the first page containing text, or -1
func pageIndexOf(pages []*Page, text string) int {
	for i, p := range pages {
		for _, s := range p.Texts() {
			if s == text {
				return i
			}
		}
	}
	return -1
}
