package form

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/phpdave11/gofpdf"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/pageops"
)

// Text is a field value drawn into its widget box when a template is
// flattened. Coordinates are in points from the top-left page corner.
type Text struct {
	Field     string
	Page      int // 0-based
	X, Y      float64
	W, H      float64
	Value     string
	FontSize  float64 // 0 picks a size from the box height
	MultiLine bool
}

// PendingDraw is an image placed after the template pages have been
// flattened. The box is already fitted to the image's aspect ratio.
type PendingDraw struct {
	Field string
	Page  int // 0-based
	X, Y  float64
	W, H  float64
	Image *Image
}

// Overlay is everything Render puts on top of the template pages.
type Overlay struct {
	Texts  []Text
	Images []PendingDraw

	// MaxPages limits the output to the first pages of the template; 0
	// keeps them all.
	MaxPages int

	// BottomBand paints a white band of this height, in points, across the
	// bottom of every page before anything else is drawn.
	BottomBand float64

	// Decorate, when set, is called last on every page.
	Decorate func(pdf *gofpdf.Fpdf, page int, w, h float64)
}

var daFontSize = regexp.MustCompile(`([0-9]*\.?[0-9]+)\s+Tf`)

// fontSizeFromDA extracts the font size of a default appearance string such
// as "/Helv 10 Tf 0 g". Zero means auto size.
func fontSizeFromDA(da string) float64 {
	m := daFontSize.FindStringSubmatch(da)
	if m == nil {
		return 0
	}
	size, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return size
}

// Render copies the pages of templatePath into outputPath as static content
// and draws the overlay onto them. Interactive fields do not survive the
// copy, so the result is flat. It returns the number of pages written.
func Render(templatePath, outputPath string, ov Overlay) (int, error) {
	c := pageops.NewCanvas()
	n, err := c.ImportFile(templatePath, ov.MaxPages, func(page int, w, h float64) {
		c.BlankBand(w, h, ov.BottomBand)
		for _, t := range ov.Texts {
			if t.Page == page {
				drawText(c, t)
			}
		}
		for _, d := range ov.Images {
			if d.Page == page {
				drawImage(c.PDF, d)
			}
		}
		if ov.Decorate != nil {
			ov.Decorate(c.PDF, page, w, h)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("form: rendering %s: %w", templatePath, err)
	}
	if err := c.Save(outputPath); err != nil {
		return 0, fmt.Errorf("form: %w: %s: %v", proposalgen.ErrWriteOutput, outputPath, err)
	}
	return n, nil
}

// drawText writes a value inside its box, clipped to the box. Single-line
// values are vertically centered; multi-line values wrap from the top.
func drawText(c *pageops.Canvas, t Text) {
	if t.Value == "" || t.W <= 0 || t.H <= 0 {
		return
	}
	pdf := c.PDF
	size := t.FontSize
	if size <= 0 {
		size = autoFontSize(t.H, t.MultiLine)
	}
	value := c.Translate(t.Value)

	pdf.SetFont("Helvetica", "", size)
	pdf.SetTextColor(0, 0, 0)
	pdf.ClipRect(t.X, t.Y, t.W, t.H, false)
	if t.MultiLine {
		pdf.SetXY(t.X, t.Y+1)
		pdf.MultiCell(t.W, size*1.15, value, "", "L", false)
	} else {
		pdf.Text(t.X+2, t.Y+t.H/2+size*0.35, value)
	}
	pdf.ClipEnd()
}

func autoFontSize(boxH float64, multiLine bool) float64 {
	if multiLine {
		return 10
	}
	size := boxH * 0.7
	switch {
	case size > 12:
		return 12
	case size < 6:
		return 6
	}
	return size
}

func drawImage(pdf *gofpdf.Fpdf, d PendingDraw) {
	if d.Image == nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: d.Image.Type}
	name := d.Image.Path
	if info := pdf.GetImageInfo(name); info == nil {
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(d.Image.data))
	}
	pdf.ImageOptions(name, d.X, d.Y, d.W, d.H, false, opts, 0, "")
}
