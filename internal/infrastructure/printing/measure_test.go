package printing

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	m := fixedWidthMeasurer{charWidth: 1}
	font := Font{Family: "Helvetica"}

	tests := []struct {
		name     string
		text     string
		maxWidth float64
		expected []string
	}{
		{"empty", "", 20, []string{}},
		{"whitespace only", "  \t\n ", 20, []string{}},
		{"fits on one line", "hello world", 20, []string{"hello world"}},
		{"exact fit", "hello world", 11, []string{"hello world"}},
		{"breaks between words", "the quick brown fox", 10, []string{"the quick", "brown fox"}},
		{"long word alone", "a supercalifragilistic word", 10, []string{"a", "supercalifragilistic", "word"}},
		{"collapses whitespace", "one   two\tthree", 9, []string{"one two", "three"}},
		{"zero width still terminates", "a b c", 0, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(m, tt.text, font, 10, tt.maxWidth)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWrap_Properties(t *testing.T) {
	m := fixedWidthMeasurer{charWidth: 1}
	font := Font{}
	text := "Payment is due within thirty days of the invoice date. Late payments " +
		"incur a fee of one and a half percent per month. Thank you for your business " +
		"and extraordinarilylongunbreakabletoken at the end."

	for _, maxWidth := range []float64{5, 12, 25, 40, 80, 1000} {
		lines := Wrap(m, text, font, 10, maxWidth)

		// no words lost, none split, order kept
		assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(lines, " ")))

		for _, line := range lines {
			if strings.Contains(line, " ") {
				assert.LessOrEqual(t, m.WidthOf(line, font, 10), maxWidth, "line %q", line)
			}
		}

		// replayable
		assert.Equal(t, lines, Wrap(m, text, font, 10, maxWidth))
	}
}

func TestWrapParagraphs(t *testing.T) {
	m := fixedWidthMeasurer{charWidth: 1}
	got := WrapParagraphs(m, "first line\n\nsecond paragraph here", Font{}, 10, 12)
	assert.Equal(t, []string{"first line", "second", "paragraph", "here"}, got)
	assert.Equal(t, []string{}, WrapParagraphs(m, "", Font{}, 10, 12))
}

func TestTruncate(t *testing.T) {
	m := fixedWidthMeasurer{charWidth: 1}
	font := Font{}

	tests := []struct {
		name     string
		text     string
		maxWidth float64
		expected string
	}{
		{"fits", "Widget", 10, "Widget"},
		{"exact", "Widget", 6, "Widget"},
		{"truncated", "Professional services", 10, "Profess..."},
		{"trailing space trimmed", "Hello world wide", 9, "Hello..."},
		{"only ellipsis fits", "Widget", 3, "..."},
		{"nothing fits", "Widget", 2, ""},
		{"empty", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(m, tt.text, font, 10, tt.maxWidth)
			assert.Equal(t, tt.expected, got)
			assert.LessOrEqual(t, m.WidthOf(got, font, 10), tt.maxWidth)
		})
	}
}

func TestCoreFontMeasurer(t *testing.T) {
	m := NewCoreFontMeasurer()
	regular := Font{Family: "Helvetica"}
	bold := Font{Family: "Helvetica", Bold: true}

	t.Run("empty text has no width", func(t *testing.T) {
		assert.Equal(t, 0.0, m.WidthOf("", regular, 10))
	})

	t.Run("width scales with size", func(t *testing.T) {
		w10 := m.WidthOf("Invoice", regular, 10)
		w20 := m.WidthOf("Invoice", regular, 20)
		require.Greater(t, w10, 0.0)
		assert.InDelta(t, 2*w10, w20, 1e-6)
	})

	t.Run("bold is at least as wide", func(t *testing.T) {
		assert.GreaterOrEqual(t, m.WidthOf("Invoice", bold, 10), m.WidthOf("Invoice", regular, 10))
	})

	t.Run("unknown family falls back to helvetica", func(t *testing.T) {
		assert.Equal(t, m.WidthOf("abc", regular, 10), m.WidthOf("abc", Font{Family: "Comic"}, 10))
	})

	t.Run("non latin text does not fail", func(t *testing.T) {
		assert.GreaterOrEqual(t, m.WidthOf("Café € 日本", regular, 10), 0.0)
	})

	t.Run("concurrent use is deterministic", func(t *testing.T) {
		want := m.WidthOf("Acme Co", bold, 18)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.Equal(t, want, m.WidthOf("Acme Co", bold, 18))
			}()
		}
		wg.Wait()
	})
}

func TestFont_Style(t *testing.T) {
	assert.Equal(t, "", Font{}.Style())
	assert.Equal(t, "B", Font{Bold: true}.Style())
	assert.Equal(t, "Courier", coreFamily("courier"))
	assert.Equal(t, "Helvetica", coreFamily(""))
}
