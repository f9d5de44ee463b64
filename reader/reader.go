// Package reader inspects existing PDF files: page count, page sizes and
// AcroForm fields with their widget geometry and owning page.
//
// Parsing is delegated to pdfcpu. Coordinates are reported in points with
// the PDF origin at the bottom-left corner of the page.
package reader

import (
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// Keep pdfcpu from creating a configuration directory in $HOME.
	model.ConfigPath = "disable"
}

// A4 page size in points, used when a page carries no usable MediaBox.
const (
	A4Width  = 595.28
	A4Height = 841.89
)

// Rectangle represents a PDF rectangle (typically [llx lly urx ury]).
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the width of the rectangle.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height returns the height of the rectangle.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Page represents a single page in a PDF document.
type Page struct {
	Number   int // 1-based
	MediaBox Rectangle
	objNum   int
	annots   []int // object numbers of the page's annotations
}

// Width returns the page width in points.
func (p *Page) Width() float64 { return p.MediaBox.Width() }

// Height returns the page height in points.
func (p *Page) Height() float64 { return p.MediaBox.Height() }

// Document represents a parsed PDF document.
type Document struct {
	Path  string
	ctx   *model.Context
	pages []*Page
}

// Open opens and parses a PDF file from disk.
func Open(filename string) (*Document, error) {
	ctx, err := api.ReadContextFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reader: opening %s: %w", filename, err)
	}
	doc := &Document{Path: filename, ctx: ctx}
	if err := doc.buildPageList(); err != nil {
		return nil, fmt.Errorf("reader: reading pages of %s: %w", filename, err)
	}
	return doc, nil
}

// ReadFrom parses a PDF from rs.
func ReadFrom(rs io.ReadSeeker) (*Document, error) {
	ctx, err := api.ReadContext(rs, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("reader: parsing PDF: %w", err)
	}
	// ReadContext leaves the page count unset; validation fills it in.
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("reader: parsing PDF: %w", err)
	}
	doc := &Document{ctx: ctx}
	if err := doc.buildPageList(); err != nil {
		return nil, fmt.Errorf("reader: reading pages: %w", err)
	}
	return doc, nil
}

// PageCount opens filename and returns its number of pages.
func PageCount(filename string) (int, error) {
	doc, err := Open(filename)
	if err != nil {
		return 0, err
	}
	return doc.NumPages(), nil
}

// Validate checks filename against the PDF specification in pdfcpu's
// relaxed mode.
func Validate(filename string) error {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(filename, conf); err != nil {
		return fmt.Errorf("reader: validating %s: %w", filename, err)
	}
	return nil
}

// NumPages returns the number of pages in the document.
func (d *Document) NumPages() int {
	return len(d.pages)
}

// Page returns page n (1-based).
func (d *Document) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("reader: page %d out of range (1-%d)", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// PageSize returns the width and height in points of page n (1-based).
func (d *Document) PageSize(n int) (w, h float64, err error) {
	p, err := d.Page(n)
	if err != nil {
		return 0, 0, err
	}
	return p.Width(), p.Height(), nil
}

// buildPageList walks every page once, recording geometry and the object
// numbers needed to attribute widgets to pages.
func (d *Document) buildPageList() error {
	for i := 1; i <= d.ctx.PageCount; i++ {
		dict, ref, _, err := d.ctx.PageDict(i, false)
		if err != nil {
			return err
		}
		page := &Page{Number: i, MediaBox: d.mediaBox(dict)}
		if ref != nil {
			page.objNum = ref.ObjectNumber.Value()
		}
		if obj, ok := dict.Find("Annots"); ok {
			if arr, err := d.ctx.DereferenceArray(obj); err == nil {
				for _, a := range arr {
					if r, ok := a.(types.IndirectRef); ok {
						page.annots = append(page.annots, r.ObjectNumber.Value())
					}
				}
			}
		}
		d.pages = append(d.pages, page)
	}
	return nil
}

// mediaBox resolves /MediaBox, following /Parent for inherited values.
func (d *Document) mediaBox(dict types.Dict) Rectangle {
	for depth := 0; dict != nil && depth < 32; depth++ {
		if obj, ok := dict.Find("MediaBox"); ok {
			if rect, ok := d.rectangle(obj); ok && rect.Width() > 0 && rect.Height() > 0 {
				return rect
			}
		}
		parent, ok := dict.Find("Parent")
		if !ok {
			break
		}
		next, err := d.ctx.DereferenceDict(parent)
		if err != nil {
			break
		}
		dict = next
	}
	return Rectangle{URX: A4Width, URY: A4Height}
}

// rectangle parses a PDF rectangle array [llx lly urx ury], normalizing the
// corner order.
func (d *Document) rectangle(obj types.Object) (Rectangle, bool) {
	arr, err := d.ctx.DereferenceArray(obj)
	if err != nil || len(arr) != 4 {
		return Rectangle{}, false
	}
	vals := make([]float64, 4)
	for i, v := range arr {
		n, ok := d.number(v)
		if !ok {
			return Rectangle{}, false
		}
		vals[i] = n
	}
	r := Rectangle{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r, true
}

func (d *Document) number(obj types.Object) (float64, bool) {
	resolved, err := d.ctx.Dereference(obj)
	if err != nil {
		return 0, false
	}
	switch n := resolved.(type) {
	case types.Integer:
		return float64(n), true
	case types.Float:
		return float64(n), true
	}
	return 0, false
}
