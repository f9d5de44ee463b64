package frontpage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/reader"
)

// Layout is the element list of a drawn cover page. Positions are in points
// from the top-left corner of an A4 portrait page. Elements without a Y
// flow below the previous one.
//
// Text may use the placeholders {company}, {subtitle}, {date}, {year} and
// {reference}.
//
// Example JSON:
//
//	{
//	  "margin": 60,
//	  "elements": [
//	    {"type": "heading", "text": "{company}", "y": 200, "align": "C"},
//	    {"type": "text", "text": "{subtitle}", "align": "C"},
//	    {"type": "hr"},
//	    {"type": "code", "x": 450, "y": 700, "width": 90, "height": 90}
//	  ]
//	}
type Layout struct {
	Margin   float64   `json:"margin,omitempty"` // default: 50
	Font     *Font     `json:"font,omitempty"`   // default: Helvetica 12
	Elements []Element `json:"elements"`
}

// Font specifies a core font face.
type Font struct {
	Family string  `json:"family"` // Helvetica, Courier, Times
	Style  string  `json:"style"`  // "" (regular), "B" (bold), "I" (italic), "BI"
	Size   float64 `json:"size"`
}

// Color is an RGB color.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Element is a single visual element of the cover.
// The Type field determines which other fields are relevant.
type Element struct {
	Type string `json:"type"` // heading, text, hr, line, rect, spacer, image, code

	// Text content (heading, text)
	Text  string `json:"text,omitempty"`
	Level int    `json:"level,omitempty"` // heading level 1-3
	Align string `json:"align,omitempty"` // L, C, R (default: L)

	Font  *Font  `json:"font,omitempty"`
	Color *Color `json:"color,omitempty"`

	// Position and box. Rects are absolute; for other elements Y moves the
	// flow cursor.
	Src    string  `json:"src,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// Line
	X1 float64 `json:"x1,omitempty"`
	Y1 float64 `json:"y1,omitempty"`
	X2 float64 `json:"x2,omitempty"`
	Y2 float64 `json:"y2,omitempty"`

	SpacerHeight float64 `json:"spacerHeight,omitempty"`
	LineWidth    float64 `json:"lineWidth,omitempty"`

	FillColor *Color `json:"fillColor,omitempty"`
	Border    bool   `json:"border,omitempty"`
}

// Vars are the values substituted into element text.
type Vars struct {
	Company   string
	Subtitle  string
	Date      string
	Year      string
	Reference string
}

func (v Vars) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{company}", v.Company,
		"{subtitle}", v.Subtitle,
		"{date}", v.Date,
		"{year}", v.Year,
		"{reference}", v.Reference,
	)
}

// DefaultLayout is the built-in cover: company name large at the top, the
// subtitle, a rule, the generation date and the reference code.
func DefaultLayout() *Layout {
	return &Layout{
		Margin: 50,
		Elements: []Element{
			{Type: "heading", Text: "{company}", Level: 1, Align: "C", Y: 200},
			{Type: "spacer", SpacerHeight: 10},
			{Type: "text", Text: "{subtitle}", Align: "C", Font: &Font{Size: 18}},
			{Type: "hr"},
			{Type: "text", Text: "{date}", Align: "C", Color: &Color{R: 90, G: 90, B: 90}},
			{Type: "code", X: reader.A4Width - 50 - 90, Y: reader.A4Height - 200, Width: 90, Height: 90},
		},
	}
}

var elementTypes = map[string]bool{
	"heading": true, "text": true, "paragraph": true, "hr": true, "line": true,
	"rect": true, "spacer": true, "image": true, "code": true,
}

// ParseLayout decodes a JSON layout and checks its element types.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("frontpage: parsing layout: %w", err)
	}
	if len(l.Elements) == 0 {
		return nil, fmt.Errorf("frontpage: layout has no elements")
	}
	for i, e := range l.Elements {
		if !elementTypes[e.Type] {
			return nil, fmt.Errorf("frontpage: element %d: unknown element type %q", i+1, e.Type)
		}
	}
	return &l, nil
}

// LoadLayout reads a JSON layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("frontpage: reading layout: %w", err)
	}
	return ParseLayout(data)
}

type renderer struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	vars   *strings.Replacer
	font   Font
	margin float64
	code   func(pdf *gofpdf.Fpdf, x, y, w, h float64) error
}

// Render draws the layout on a single A4 page and writes it to w. code
// draws the reference code for "code" elements; nil leaves them out.
func (l *Layout) Render(w io.Writer, vars Vars, code func(pdf *gofpdf.Fpdf, x, y, w, h float64) error) error {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("proposalgen", true)
	if vars.Company != "" {
		pdf.SetTitle(vars.Company, true)
	}

	r := &renderer{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		vars:   vars.replacer(),
		font:   Font{Family: "Helvetica", Size: 12},
		margin: 50,
		code:   code,
	}
	if l.Margin > 0 {
		r.margin = l.Margin
	}
	if l.Font != nil {
		if l.Font.Family != "" {
			r.font.Family = l.Font.Family
		}
		if l.Font.Size > 0 {
			r.font.Size = l.Font.Size
		}
		r.font.Style = l.Font.Style
	}

	pdf.SetMargins(r.margin, r.margin, r.margin)
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: reader.A4Width, Ht: reader.A4Height})
	pdf.SetFont(r.font.Family, r.font.Style, r.font.Size)

	for i, e := range l.Elements {
		if err := r.element(e); err != nil {
			return fmt.Errorf("frontpage: element %d: %w", i+1, err)
		}
	}

	if pdf.Err() {
		return fmt.Errorf("frontpage: %w", pdf.Error())
	}
	return pdf.Output(w)
}

func (r *renderer) element(e Element) error {
	if e.Y > 0 && e.Type != "line" && e.Type != "rect" {
		r.pdf.SetY(e.Y)
	}
	switch e.Type {
	case "heading":
		r.heading(e)
	case "text", "paragraph":
		r.text(e)
	case "hr":
		r.hr(e)
	case "line":
		r.line(e)
	case "rect":
		r.rect(e)
	case "spacer":
		h := e.SpacerHeight
		if h == 0 {
			h = 20
		}
		r.pdf.Ln(h)
	case "image":
		return r.image(e)
	case "code":
		if r.code == nil || e.Width <= 0 || e.Height <= 0 {
			return nil
		}
		return r.code(r.pdf, e.X, r.pdf.GetY(), e.Width, e.Height)
	default:
		return fmt.Errorf("unknown element type %q", e.Type)
	}
	return nil
}

// resolve returns the element font with the given defaults applied.
func (r *renderer) resolve(f *Font, style string, size float64) Font {
	out := Font{Family: r.font.Family, Style: style, Size: size}
	if f != nil {
		if f.Family != "" {
			out.Family = f.Family
		}
		if f.Style != "" {
			out.Style = f.Style
		}
		if f.Size > 0 {
			out.Size = f.Size
		}
	}
	return out
}

func (r *renderer) block(e Element, f Font) {
	if e.Color != nil {
		r.pdf.SetTextColor(e.Color.R, e.Color.G, e.Color.B)
	}
	r.pdf.SetFont(f.Family, f.Style, f.Size)

	align := "L"
	if e.Align != "" {
		align = strings.ToUpper(e.Align)
	}
	pageW, _ := r.pdf.GetPageSize()
	r.pdf.SetX(r.margin)
	r.pdf.MultiCell(pageW-2*r.margin, f.Size*1.25, r.tr(r.vars.Replace(e.Text)), "", align, false)

	r.pdf.SetFont(r.font.Family, r.font.Style, r.font.Size)
	if e.Color != nil {
		r.pdf.SetTextColor(0, 0, 0)
	}
}

func (r *renderer) heading(e Element) {
	sizes := []float64{36, 24, 18}
	level := e.Level
	if level < 1 {
		level = 1
	}
	if level > len(sizes) {
		level = len(sizes)
	}
	r.block(e, r.resolve(e.Font, "B", sizes[level-1]))
}

func (r *renderer) text(e Element) {
	r.block(e, r.resolve(e.Font, r.font.Style, r.font.Size))
	r.pdf.Ln(r.font.Size * 0.3)
}

func (r *renderer) hr(e Element) {
	pageW, _ := r.pdf.GetPageSize()
	r.pdf.Ln(8)
	y := r.pdf.GetY()

	lw := e.LineWidth
	if lw == 0 {
		lw = 0.8
	}
	r.pdf.SetLineWidth(lw)
	if e.Color != nil {
		r.pdf.SetDrawColor(e.Color.R, e.Color.G, e.Color.B)
	} else {
		r.pdf.SetDrawColor(180, 180, 180)
	}
	r.pdf.Line(r.margin, y, pageW-r.margin, y)
	r.pdf.SetDrawColor(0, 0, 0)
	r.pdf.SetLineWidth(0.6)
	r.pdf.Ln(12)
}

func (r *renderer) line(e Element) {
	if e.LineWidth > 0 {
		r.pdf.SetLineWidth(e.LineWidth)
	}
	if e.Color != nil {
		r.pdf.SetDrawColor(e.Color.R, e.Color.G, e.Color.B)
	}
	r.pdf.Line(e.X1, e.Y1, e.X2, e.Y2)
	r.pdf.SetDrawColor(0, 0, 0)
	r.pdf.SetLineWidth(0.6)
}

func (r *renderer) rect(e Element) {
	style := "D"
	if e.FillColor != nil {
		r.pdf.SetFillColor(e.FillColor.R, e.FillColor.G, e.FillColor.B)
		style = "F"
		if e.Border {
			style = "FD"
		}
	}
	r.pdf.Rect(e.X, e.Y, e.Width, e.Height, style)
	r.pdf.SetFillColor(255, 255, 255)
}

// image draws a logo or picture. A missing file is skipped so a drawn cover
// never depends on a file being present.
func (r *renderer) image(e Element) error {
	if e.Src == "" {
		return fmt.Errorf("image element requires 'src' field")
	}
	if !fileutil.FileExists(e.Src) || !fileutil.HasImageExt(e.Src) {
		return nil
	}
	x := e.X
	if x == 0 {
		x = r.margin
	}
	y := r.pdf.GetY()
	r.pdf.ImageOptions(e.Src, x, y, e.Width, e.Height, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
	if e.Height > 0 {
		r.pdf.SetY(y + e.Height + 4)
	}
	return nil
}
