//go:build !noebiten

package render

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	etext "github.com/hajimehoshi/ebiten/v2/text/v2"
)

// lineSpacingFactor is the line height multiplier used for measuring.
const lineSpacingFactor = 1.2

// TextRenderer draws anchored, rotated single-line text with Ebiten.
type TextRenderer struct {
	fonts *FontManager
}

// NewTextRenderer creates a TextRenderer over fonts.
func NewTextRenderer(fonts *FontManager) *TextRenderer {
	if fonts == nil {
		fonts = NewFontManager(nil)
	}
	return &TextRenderer{fonts: fonts}
}

// DrawText renders s on dst. (x, y) is the anchor: align picks which end
// of the text sits on it, and the line is vertically centered on it. The
// text is rotated clockwise by angle degrees about the anchor.
func (tr *TextRenderer) DrawText(dst *ebiten.Image, s, family string, size float64, x, y float64, align Justification, angle float64, clr color.Color) error {
	face, err := tr.fonts.Face(family, size)
	if err != nil {
		return err
	}

	op := &etext.DrawOptions{}
	op.LayoutOptions.PrimaryAlign = primaryAlign(align)
	op.LayoutOptions.SecondaryAlign = etext.AlignCenter
	op.LayoutOptions.LineSpacing = size * lineSpacingFactor
	if angle != 0 {
		op.GeoM.Rotate(angle * math.Pi / 180)
	}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)

	etext.Draw(dst, s, face, op)
	return nil
}

// MeasureText returns the width and height of s.
func (tr *TextRenderer) MeasureText(s, family string, size float64) (width, height float64) {
	face, err := tr.fonts.Face(family, size)
	if err != nil {
		return 0, 0
	}
	return etext.Measure(s, face, size*lineSpacingFactor)
}

func primaryAlign(j Justification) etext.Align {
	switch j {
	case JustifyCenter:
		return etext.AlignCenter
	case JustifyRight:
		return etext.AlignEnd
	default:
		return etext.AlignStart
	}
}
