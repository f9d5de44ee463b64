package pageops

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phpdave11/gofpdf"
)

// Color is an sRGB colour.
type Color struct {
	R, G, B int
}

// ParseColor reads "#rrggbb" or "rrggbb".
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("pageops: color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("pageops: color %q: %w", s, err)
	}
	return Color{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}, nil
}

// TextWatermark is a diagonal label such as "DRAFT" laid over every page of
// an unsubmitted proposal. Zero values take the defaults noted below.
type TextWatermark struct {
	Text     string
	FontSize float64 // 60
	Color    Color   // #c8c8c8
	Opacity  float64 // 0.3
	Angle    float64 // 45 degrees, counter-clockwise
}

// PageNumberStyle is the appearance of content page labels.
type PageNumberStyle struct {
	Format   string   // receives the page number and page count; "Page %d of %d"
	Position Position // BottomCenter
	FontSize float64  // 10
	Color    Color
	Margin   float64 // baseline distance from the page edge; 20
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// stamp draws on the current page and restores the text state afterwards,
// so imported content drawn later keeps the black opaque defaults.
type stamp struct {
	pdf *gofpdf.Fpdf
}

func (s stamp) text(style string, size float64, c Color, f func(width func(string) float64)) {
	s.pdf.SetFont("Helvetica", style, size)
	s.pdf.SetTextColor(c.R, c.G, c.B)
	f(s.pdf.GetStringWidth)
	s.pdf.SetTextColor(0, 0, 0)
}

func (s stamp) watermark(wm TextWatermark, tr func(string) string, pageW, pageH float64) {
	size := orDefault(wm.FontSize, 60)
	c := wm.Color
	if c == (Color{}) {
		c = Color{200, 200, 200}
	}
	label := tr(wm.Text)

	s.pdf.SetAlpha(orDefault(wm.Opacity, 0.3), "Normal")
	defer s.pdf.SetAlpha(1, "Normal")

	s.text("B", size, c, func(width func(string) float64) {
		cx, cy := pageW/2, pageH/2
		s.pdf.TransformBegin()
		s.pdf.TransformRotate(orDefault(wm.Angle, 45), cx, cy)
		// The baseline sits a third of the size below the centre so the
		// cap height straddles it.
		s.pdf.Text(cx-width(label)/2, cy+size/3, label)
		s.pdf.TransformEnd()
	})
}

func (s stamp) pageNumber(st PageNumberStyle, num, total int, pageW, pageH float64) {
	format := st.Format
	if format == "" {
		format = "Page %d of %d"
	}
	size := orDefault(st.FontSize, 10)
	label := fmt.Sprintf(format, num, total)

	s.text("", size, st.Color, func(width func(string) float64) {
		x, y := calculatePosition(st.Position, pageW, pageH, width(label), size, orDefault(st.Margin, 20))
		s.pdf.Text(x, y, label)
	})
}
