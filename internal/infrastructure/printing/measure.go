package printing

import (
	"strings"
	"sync"

	"github.com/go-pdf/fpdf"
)

// Font selects one of the PDF core fonts
type Font struct {
	Family string
	Bold   bool
}

// Style returns the fpdf style string for the font
func (f Font) Style() string {
	if f.Bold {
		return "B"
	}
	return ""
}

// Ellipsis is appended to truncated text
const Ellipsis = "..."

// TextMeasurer reports the rendered width of a string in points.
// Implementations must be deterministic.
type TextMeasurer interface {
	WidthOf(text string, font Font, size float64) float64
}

// CoreFontMeasurer measures text with the metrics of the PDF core fonts,
// which are the same metrics the Serializer embeds.
type CoreFontMeasurer struct {
	mu        sync.Mutex
	pdf       *fpdf.Fpdf
	translate func(string) string
}

// NewCoreFontMeasurer creates a measurer backed by a private fpdf instance
func NewCoreFontMeasurer() *CoreFontMeasurer {
	pdf := fpdf.New("P", "pt", "A4", "")
	return &CoreFontMeasurer{
		pdf:       pdf,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// WidthOf implements TextMeasurer
func (m *CoreFontMeasurer) WidthOf(text string, font Font, size float64) float64 {
	if text == "" {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pdf.SetFont(coreFamily(font.Family), font.Style(), size)
	if m.pdf.Err() {
		m.pdf.ClearError()
		return 0
	}
	return m.pdf.GetStringWidth(m.translate(text))
}

var _ TextMeasurer = (*CoreFontMeasurer)(nil)

// coreFamily maps a configured family onto a core font fpdf can always load
func coreFamily(family string) string {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "courier":
		return "Courier"
	case "times":
		return "Times"
	case "arial":
		return "Arial"
	default:
		return "Helvetica"
	}
}

// Wrap splits text into lines no wider than maxWidth.
// Words are accumulated greedily and never split: a word wider than
// maxWidth is placed alone on its own line. Empty input returns no lines.
func Wrap(m TextMeasurer, text string, font Font, size, maxWidth float64) []string {
	words := strings.Fields(text)
	lines := make([]string, 0, len(words))
	current := ""
	for _, word := range words {
		if current == "" {
			current = word
			continue
		}
		candidate := current + " " + word
		if m.WidthOf(candidate, font, size) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// Truncate shortens text to fit maxWidth, ending it with an ellipsis.
// Text that already fits is returned unchanged. If not even the ellipsis
// fits, the empty string is returned.
func Truncate(m TextMeasurer, text string, font Font, size, maxWidth float64) string {
	if m.WidthOf(text, font, size) <= maxWidth {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	// largest prefix length whose truncated form fits
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.WidthOf(strings.TrimRight(string(runes[:mid]), " ")+Ellipsis, font, size) <= maxWidth {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		if m.WidthOf(Ellipsis, font, size) <= maxWidth {
			return Ellipsis
		}
		return ""
	}
	return strings.TrimRight(string(runes[:lo]), " ") + Ellipsis
}

// WrapParagraphs wraps each line of text separately so explicit line
// breaks survive. Blank lines are dropped.
func WrapParagraphs(m TextMeasurer, text string, font Font, size, maxWidth float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		lines = append(lines, Wrap(m, paragraph, font, size, maxWidth)...)
	}
	if lines == nil {
		return []string{}
	}
	return lines
}
