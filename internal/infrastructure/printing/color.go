package printing

import (
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an RGB color with channels in [0,1]
type Color struct {
	R, G, B float64
}

// Default brand colors used when a tenant token is missing or malformed
var (
	DefaultBrandColor  = Color{R: 0.12, G: 0.23, B: 0.54}
	DefaultAccentColor = Color{R: 0.85, G: 0.47, B: 0.02}
	TextColor          = Color{R: 0.13, G: 0.13, B: 0.13}
	MutedColor         = Color{R: 0.45, G: 0.45, B: 0.45}
	RuleColor          = Color{R: 0.75, G: 0.75, B: 0.75}
)

// RGB255 returns the channels scaled to 0..255
func (c Color) RGB255() (r, g, b int) {
	return to255(c.R), to255(c.G), to255(c.B)
}

// Hex returns the color as "#rrggbb"
func (c Color) Hex() string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}

func to255(v float64) int {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return int(v*255 + 0.5)
	}
}

// ResolveColor parses a tenant color token such as "#1f6feb", "1F6FEB" or "#abc".
// It never fails: nil, empty or malformed tokens return fallback.
func ResolveColor(token *string, fallback Color) Color {
	if token == nil {
		return fallback
	}
	hex := strings.TrimPrefix(strings.TrimSpace(*token), "#")
	if !isHex(hex) {
		return fallback
	}
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return fallback
	}
	c, err := colorful.Hex("#" + strings.ToLower(hex))
	if err != nil {
		return fallback
	}
	return Color{R: c.R, G: c.G, B: c.B}
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
