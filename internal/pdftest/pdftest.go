// Package pdftest writes the PDF and image fixtures used by tests across the
// module.
package pdftest

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/phpdave11/gofpdf"

	"github.com/lvillar/proposalgen/form"
)

// Plain writes an A4 PDF with n labeled pages to path.
func Plain(t testing.TB, path string, n int) string {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 14)
	for i := 1; i <= n; i++ {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 14)
		pdf.Text(60, 80, fmt.Sprintf("%s page %d of %d", filepath.Base(path), i, n))
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("creating test PDF %s: %v", path, err)
	}
	return path
}

// FormTemplate writes a one-page A4 template with a text field for every
// name in texts and a push-button image placeholder for every name in
// images, stacked down the page.
func FormTemplate(t testing.TB, path string, texts, images []string) string {
	t.Helper()
	tb := form.NewTemplateBuilder()
	page := tb.AddPage(0, 0)
	tb.Text(page, 50, 60, 16, filepath.Base(path))
	y := 90.0
	for _, name := range texts {
		tb.Text(page, 50, y+14, 10, name)
		tb.AddTextField(name, page, 160, y, 300, 20)
		y += 30
	}
	for _, name := range images {
		tb.AddImageField(name, page, 160, y, 200, 100)
		y += 110
	}
	if err := tb.BuildFile(path); err != nil {
		t.Fatalf("creating test template %s: %v", path, err)
	}
	return path
}

// PNG writes a w x h PNG filled with c.
func PNG(t testing.TB, path string, w, h int, c color.Color) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, solid(w, h, c)); err != nil {
		t.Fatalf("encoding %s: %v", path, err)
	}
	return path
}

// JPEG writes a w x h JPEG filled with c.
func JPEG(t testing.TB, path string, w, h int, c color.Color) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, solid(w, h, c), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encoding %s: %v", path, err)
	}
	return path
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
