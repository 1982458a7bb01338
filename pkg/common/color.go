package common

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Color is an sRGB base hue with an alpha channel in [0, 1].
type Color struct {
	R, G, B uint8
	Alpha   float64
}

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, Alpha: 1}
}

// Hex parses "#rrggbb" into an opaque color. Invalid input yields black.
func Hex(s string) Color {
	if len(s) != 7 || s[0] != '#' {
		return RGB(0, 0, 0)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return RGB(0, 0, 0)
	}
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v))
}

// WithAlpha returns the same hue at the given opacity, clamped to [0, 1].
func (c Color) WithAlpha(alpha float64) Color {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	c.Alpha = alpha
	return c
}

// Hex returns "#rrggbb", ignoring alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// RGBA returns the CSS form renderers expect, e.g. "rgba(255,0,0,0.4)".
func (c Color) RGBA() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, strconv.FormatFloat(c.Alpha, 'f', -1, 64))
}

// MarshalJSON encodes the color as its CSS rgba string.
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.RGBA())
}

// UnmarshalJSON reads the rgba string written by MarshalJSON.
func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var v Color
	if _, err := fmt.Sscanf(s, "rgba(%d,%d,%d,%g)", &v.R, &v.G, &v.B, &v.Alpha); err != nil {
		return fmt.Errorf("invalid color %q: %w", s, err)
	}
	*c = v
	return nil
}

// Named colors used by the palettes.
var (
	ColorRed    = RGB(255, 0, 0)
	ColorBlue   = RGB(0, 0, 255)
	ColorPurple = RGB(128, 0, 128)
	ColorGrey   = RGB(128, 128, 128)
	ColorSilver = RGB(192, 192, 192)
)
