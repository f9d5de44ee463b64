// Package form fills PDF templates: named text fields receive values, named
// placeholder fields receive images, and the result is flattened into static
// page content.
//
// It also provides TemplateBuilder, which writes templates with AcroForm
// fields from scratch. The CLI uses it to scaffold sample templates.
package form

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lvillar/proposalgen/reader"
)

// FieldType specifies the type of form field.
type FieldType int

const (
	TypeText  FieldType = iota // single or multi-line text input
	TypeImage                  // push button used as an image placeholder
)

// Field defines a form field to be added to a template page.
type Field struct {
	Name      string    // field name (must be unique within the form)
	Type      FieldType // field type
	Page      int       // page number (1-based)
	X, Y      float64   // top-left corner in points, origin at the top-left of the page
	W, H      float64   // width and height in points
	Value     string    // default value
	FontSize  float64   // font size for text display (0 = auto)
	ReadOnly  bool      // whether the field is read-only
	Required  bool      // whether the field is required
	MultiLine bool      // for text fields: allow multi-line input
}

// SetValue sets the field's default value.
func (f *Field) SetValue(v string) *Field {
	f.Value = v
	return f
}

// SetFontSize sets the font size used to display the field value.
func (f *Field) SetFontSize(size float64) *Field {
	f.FontSize = size
	return f
}

// SetRequired marks the field as required.
func (f *Field) SetRequired(required bool) *Field {
	f.Required = required
	return f
}

// SetReadOnly marks the field as read-only.
func (f *Field) SetReadOnly(readOnly bool) *Field {
	f.ReadOnly = readOnly
	return f
}

// SetMultiLine enables multi-line input for text fields.
func (f *Field) SetMultiLine(multiLine bool) *Field {
	f.MultiLine = multiLine
	return f
}

type pageText struct {
	x, y, size float64
	text       string
}

type templatePage struct {
	w, h  float64
	texts []pageText
}

// TemplateBuilder assembles a PDF template with static text and AcroForm
// fields.
type TemplateBuilder struct {
	pages  []*templatePage
	fields []*Field
}

// NewTemplateBuilder creates an empty TemplateBuilder.
func NewTemplateBuilder() *TemplateBuilder {
	return &TemplateBuilder{}
}

// AddPage appends a page of the given size in points and returns its
// 1-based number. A zero size means A4 portrait.
func (tb *TemplateBuilder) AddPage(w, h float64) int {
	if w <= 0 || h <= 0 {
		w, h = reader.A4Width, reader.A4Height
	}
	tb.pages = append(tb.pages, &templatePage{w: w, h: h})
	return len(tb.pages)
}

// Text draws s in Helvetica at (x, y), y being the baseline measured from
// the top of the page.
func (tb *TemplateBuilder) Text(page int, x, y, size float64, s string) {
	if page < 1 || page > len(tb.pages) {
		return
	}
	p := tb.pages[page-1]
	p.texts = append(p.texts, pageText{x: x, y: y, size: size, text: s})
}

// AddTextField adds a text input field to the form.
func (tb *TemplateBuilder) AddTextField(name string, page int, x, y, w, h float64) *Field {
	f := &Field{Name: name, Type: TypeText, Page: page, X: x, Y: y, W: w, H: h}
	tb.fields = append(tb.fields, f)
	return f
}

// AddImageField adds a push button that marks where an image goes.
func (tb *TemplateBuilder) AddImageField(name string, page int, x, y, w, h float64) *Field {
	f := &Field{Name: name, Type: TypeImage, Page: page, X: x, Y: y, W: w, H: h}
	tb.fields = append(tb.fields, f)
	return f
}

// Build writes the template to w.
func (tb *TemplateBuilder) Build(w io.Writer) error {
	if len(tb.pages) == 0 {
		return fmt.Errorf("form: template has no pages")
	}
	for _, f := range tb.fields {
		if f.Page < 1 || f.Page > len(tb.pages) {
			return fmt.Errorf("form: field %q is on page %d, template has %d pages", f.Name, f.Page, len(tb.pages))
		}
	}

	// Object layout: 1 catalog, 2 page tree, 3 font, then two objects per
	// page (page, content), then one per field. The AcroForm dictionary is
	// last.
	const (
		catalogObj = 1
		pagesObj   = 2
		fontObj    = 3
	)
	pageObj := func(i int) int { return 4 + 2*i }
	contentObj := func(i int) int { return 5 + 2*i }
	fieldObj := func(i int) int { return 4 + 2*len(tb.pages) + i }
	acroObj := 4 + 2*len(tb.pages) + len(tb.fields)

	objects := make([]string, acroObj+1)

	objects[catalogObj] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R /AcroForm %d 0 R >>", pagesObj, acroObj)

	kids := make([]string, len(tb.pages))
	for i := range tb.pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageObj(i))
	}
	objects[pagesObj] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(tb.pages))
	objects[fontObj] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	annots := make([][]string, len(tb.pages))
	fieldRefs := make([]string, len(tb.fields))
	for i, f := range tb.fields {
		p := tb.pages[f.Page-1]
		objects[fieldObj(i)] = buildFieldAnnotation(f, p.h, pageObj(f.Page-1))
		ref := fmt.Sprintf("%d 0 R", fieldObj(i))
		fieldRefs[i] = ref
		annots[f.Page-1] = append(annots[f.Page-1], ref)
	}

	for i, p := range tb.pages {
		dict := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %.2f %.2f] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R",
			pagesObj, p.w, p.h, fontObj, contentObj(i))
		if len(annots[i]) > 0 {
			dict += fmt.Sprintf(" /Annots [%s]", strings.Join(annots[i], " "))
		}
		objects[pageObj(i)] = dict + " >>"

		content := pageContent(p, tb.fieldsOn(i+1))
		objects[contentObj(i)] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
	}

	objects[acroObj] = fmt.Sprintf("<< /Fields [%s] /DR << /Font << /Helv %d 0 R >> >> /DA (/Helv 0 Tf 0 g) /NeedAppearances true >>",
		strings.Join(fieldRefs, " "), fontObj)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for num := 1; num < len(objects); num++ {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, objects[num])
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects))
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < len(objects); num++ {
		fmt.Fprintf(&buf, "%010d %05d n \n", offsets[num], 0)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects), catalogObj, xrefOffset)

	_, err := w.Write(buf.Bytes())
	return err
}

// BuildFile writes the template to path.
func (tb *TemplateBuilder) BuildFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("form: creating %s: %w", path, err)
	}
	if err := tb.Build(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (tb *TemplateBuilder) fieldsOn(page int) []*Field {
	var out []*Field
	for _, f := range tb.fields {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// pageContent renders the static text of a page and a light outline for
// every field so the template is readable when opened directly.
func pageContent(p *templatePage, fields []*Field) string {
	var b strings.Builder
	for _, t := range p.texts {
		fmt.Fprintf(&b, "BT /F1 %.2f Tf %.2f %.2f Td (%s) Tj ET\n", t.size, t.x, p.h-t.y, escapePDFString(t.text))
	}
	if len(fields) > 0 {
		b.WriteString("q 0.8 G 0.5 w\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "%.2f %.2f %.2f %.2f re S\n", f.X, p.h-f.Y-f.H, f.W, f.H)
		}
		b.WriteString("Q\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildFieldAnnotation constructs the merged field and widget dictionary.
func buildFieldAnnotation(f *Field, pageH float64, pageRef int) string {
	llx, lly := f.X, pageH-f.Y-f.H
	urx, ury := f.X+f.W, pageH-f.Y

	var ff int
	if f.ReadOnly {
		ff |= 1 // Bit 1: ReadOnly
	}
	if f.Required {
		ff |= 2 // Bit 2: Required
	}

	dict := fmt.Sprintf("<< /Type /Annot /Subtype /Widget /F 4 /T (%s) /Rect [%.2f %.2f %.2f %.2f] /P %d 0 R",
		escapePDFString(f.Name), llx, lly, urx, ury, pageRef)

	switch f.Type {
	case TypeText:
		dict += fmt.Sprintf(" /FT /Tx /DA (/Helv %.1f Tf 0 g)", f.FontSize)
		if f.Value != "" {
			dict += fmt.Sprintf(" /V (%s)", escapePDFString(f.Value))
		}
		if f.MultiLine {
			ff |= 1 << 12 // Bit 13: Multiline
		}
	case TypeImage:
		dict += " /FT /Btn /DA (/Helv 0 Tf 0 g)"
		ff |= 1 << 16 // Bit 17: Pushbutton
		dict += fmt.Sprintf(" /MK << /CA (%s) >>", escapePDFString(f.Name))
	}

	if ff != 0 {
		dict += fmt.Sprintf(" /Ff %d", ff)
	}
	return dict + " >>"
}

// escapePDFString escapes special characters in a PDF string.
func escapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `(`, `\(`)
	s = strings.ReplaceAll(s, `)`, `\)`)
	return s
}
