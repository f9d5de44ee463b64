// Package pageops copies pages of existing PDF documents onto new ones. It
// merges proposal sections into the final document, blanks footer bands,
// numbers content pages and stamps watermarks.
//
// Pages are imported as templates through the gofpdi contrib package, and
// page geometry comes from the reader package. Imported pages keep their
// content streams but lose annotations and form fields, which is what makes
// an imported form page flat.
package pageops

import (
	"fmt"
	"io"
	"os"

	"github.com/phpdave11/gofpdf"
	"github.com/phpdave11/gofpdf/contrib/gofpdi"

	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/reader"
)

// Position specifies where to place an element on a page.
type Position int

const (
	BottomCenter Position = iota
	BottomLeft
	BottomRight
	TopLeft
	TopCenter
	TopRight
	Center
)

// Canvas is a gofpdf document measured in points onto which pages of
// existing PDFs are imported and drawn over.
type Canvas struct {
	PDF *gofpdf.Fpdf
	imp *gofpdi.Importer
	tr  func(string) string
}

// NewCanvas returns an empty canvas with automatic page breaks and margins
// disabled.
func NewCanvas() *Canvas {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator("proposalgen", true)
	return &Canvas{
		PDF: pdf,
		imp: gofpdi.NewImporter(),
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// Translate converts UTF-8 text to the code page of the core fonts.
func (c *Canvas) Translate(s string) string {
	return c.tr(s)
}

// ImportPage appends a page of size w x h and draws page n (1-based) of
// sourceFile on it. A zero size takes the source page's MediaBox. The
// importer panics on malformed input; that is reported as an error and no
// page is added.
func (c *Canvas) ImportPage(sourceFile string, n int, w, h float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pageops: importing page %d of %s: %v", n, sourceFile, r)
		}
	}()

	tplID, iw, ih := importPage(c.PDF, c.imp, sourceFile, n)
	if w <= 0 || h <= 0 {
		w, h = iw, ih
	}
	if w <= 0 || h <= 0 {
		w, h = reader.A4Width, reader.A4Height
	}

	c.PDF.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
	c.imp.UseImportedTemplate(c.PDF, tplID, 0, 0, w, h)
	return c.PDF.Error()
}

// ImportFile imports the pages of path, at most limit of them when limit is
// positive. After each page, draw (if not nil) is called with the 0-based
// page index and the page size so the caller can paint over it. It returns
// the number of pages imported.
func (c *Canvas) ImportFile(path string, limit int, draw func(page int, w, h float64)) (int, error) {
	doc, err := reader.Open(path)
	if err != nil {
		return 0, err
	}
	n := doc.NumPages()
	if limit > 0 && n > limit {
		n = limit
	}
	for i := 1; i <= n; i++ {
		w, h, err := doc.PageSize(i)
		if err != nil {
			return i - 1, err
		}
		if err := c.ImportPage(path, i, w, h); err != nil {
			return i - 1, err
		}
		if draw != nil {
			draw(i-1, w, h)
		}
	}
	return n, nil
}

// BlankBand paints an opaque white band of the given height across the
// bottom of the current page.
func (c *Canvas) BlankBand(pageW, pageH, height float64) {
	if height <= 0 {
		return
	}
	c.PDF.SetFillColor(255, 255, 255)
	c.PDF.Rect(0, pageH-height, pageW, height, "F")
}

// Write writes the document to w.
func (c *Canvas) Write(w io.Writer) error {
	return writePDF(c.PDF, w)
}

// Save writes the document to path through a temp file and rename, so an
// interrupted save never leaves a truncated PDF behind.
func (c *Canvas) Save(path string) error {
	if c.PDF.Err() {
		return c.PDF.Error()
	}
	return fileutil.WriteFileAtomic(path, func(f *os.File) error {
		return writePDF(c.PDF, f)
	})
}

// importPage imports a single page from a source file into the target PDF.
// Returns the template ID and page dimensions.
func importPage(pdf *gofpdf.Fpdf, imp *gofpdi.Importer, sourceFile string, pageNum int) (tplID int, w, h float64) {
	tplID = imp.ImportPage(pdf, sourceFile, pageNum, "/MediaBox")
	sizes := imp.GetPageSizes()
	if dims, ok := sizes[pageNum]; ok {
		if mb, ok := dims["/MediaBox"]; ok {
			w = mb["w"]
			h = mb["h"]
		}
	}
	return
}

// writePDF writes the PDF to a writer.
func writePDF(pdf *gofpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pageops: writing PDF: %w", err)
	}
	return nil
}

// calculatePosition returns x, y coordinates for text placement.
func calculatePosition(pos Position, pageW, pageH, textW, textH, margin float64) (x, y float64) {
	switch pos {
	case TopLeft:
		return margin, margin + textH
	case TopCenter:
		return (pageW - textW) / 2, margin + textH
	case TopRight:
		return pageW - textW - margin, margin + textH
	case BottomLeft:
		return margin, pageH - margin
	case BottomRight:
		return pageW - textW - margin, pageH - margin
	case Center:
		return (pageW - textW) / 2, pageH / 2
	default: // BottomCenter
		return (pageW - textW) / 2, pageH - margin
	}
}
