package render

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Palette is the fixed, ordered gbuf color table addressed by setcolor and
// setbackground. Its order is part of the wire format.
var Palette = [15]color.RGBA{
	{R: 0x00, G: 0x00, B: 0x00, A: 0xff}, // black
	{R: 0x00, G: 0x00, B: 0xff, A: 0xff}, // blue
	{R: 0x00, G: 0x80, B: 0x00, A: 0xff}, // green
	{R: 0x00, G: 0xff, B: 0xff, A: 0xff}, // cyan
	{R: 0xff, G: 0x00, B: 0x00, A: 0xff}, // red
	{R: 0xff, G: 0x00, B: 0xff, A: 0xff}, // magenta
	{R: 0xa5, G: 0x2a, B: 0x2a, A: 0xff}, // brown
	{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, // white
	{R: 0x80, G: 0x80, B: 0x80, A: 0xff}, // gray
	{R: 0xad, G: 0xd8, B: 0xe6, A: 0xff}, // lightblue
	{R: 0x00, G: 0xff, B: 0x00, A: 0xff}, // lime
	{R: 0xe0, G: 0xff, B: 0xff, A: 0xff}, // lightcyan
	{R: 0xff, G: 0x14, B: 0x93, A: 0xff}, // deeppink
	{R: 0x93, G: 0x70, B: 0xdb, A: 0xff}, // mediumpurple
	{R: 0xff, G: 0xff, B: 0x00, A: 0xff}, // yellow
}

// paletteNames lets configuration files name palette entries.
var paletteNames = map[string]int{
	"black":        0,
	"blue":         1,
	"green":        2,
	"cyan":         3,
	"red":          4,
	"magenta":      5,
	"brown":        6,
	"white":        7,
	"gray":         8,
	"grey":         8,
	"lightblue":    9,
	"lime":         10,
	"lightcyan":    11,
	"deeppink":     12,
	"mediumpurple": 13,
	"yellow":       14,
}

var (
	// Black is palette entry 0 and the color of every out-of-range index.
	Black = Palette[0]
	// White is the default background.
	White = Palette[7]
)

// PaletteColor resolves a palette index. Anything that is not an integer
// in [0, 14] resolves to black.
func PaletteColor(idx float64) color.RGBA {
	if math.IsNaN(idx) || idx != math.Trunc(idx) || idx < 0 || idx >= float64(len(Palette)) {
		return Black
	}
	return Palette[int(idx)]
}

// ParseColor parses a configuration color value. Supported forms:
//   - a palette index of one or two digits: "7"
//   - a palette entry name: "white", "lightblue"
//   - hex: "#RGB", "#RRGGBB", "#RRGGBBAA", with or without the '#'
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if idx, ok := paletteNames[strings.ToLower(s)]; ok {
		return Palette[idx], nil
	}
	// Palette indices are at most two characters; longer digit runs are hex.
	if len(s) <= 2 {
		if n, err := strconv.Atoi(s); err == nil {
			if n < 0 || n >= len(Palette) {
				return color.RGBA{}, fmt.Errorf("palette index %d out of range", n)
			}
			return Palette[n], nil
		}
	}
	if strings.HasPrefix(s, "#") || isHexString(s) {
		return parseHexColor(s)
	}
	return color.RGBA{}, fmt.Errorf("unrecognized color format: %q", s)
}

func isHexString(s string) bool {
	if len(s) != 3 && len(s) != 6 && len(s) != 8 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color length: %d", len(s))
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ToHex formats a color as #RRGGBB, or #RRGGBBAA when it is not opaque.
func ToHex(c color.RGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}
