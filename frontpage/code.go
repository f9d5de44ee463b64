package frontpage

import (
	"fmt"
	"strings"

	bc "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/phpdave11/gofpdf"
	"github.com/phpdave11/gofpdf/contrib/barcode"
	pdf417 "github.com/ruudk/golang-pdf417"
)

// Code selects the machine-readable reference printed on the cover.
type Code string

const (
	CodeNone   Code = "none"
	CodeQR     Code = "qr"
	CodePDF417 Code = "pdf417"
)

// ParseCode converts a configuration value to a Code. The empty string is
// CodeNone.
func ParseCode(s string) (Code, error) {
	switch c := Code(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CodeNone:
		return CodeNone, nil
	case CodeQR, CodePDF417:
		return c, nil
	default:
		return CodeNone, fmt.Errorf("frontpage: unknown cover code %q (want none, qr or pdf417)", s)
	}
}

// encode builds the barcode for ref.
func (c Code) encode(ref string) (bc.Barcode, error) {
	switch c {
	case CodeQR:
		code, err := qr.Encode(ref, qr.M, qr.Auto)
		if err != nil {
			return nil, fmt.Errorf("frontpage: encoding QR code: %w", err)
		}
		return code, nil
	case CodePDF417:
		return pdf417.Encode(ref, 6, 2), nil
	default:
		return nil, fmt.Errorf("frontpage: cover code %q cannot be encoded", string(c))
	}
}

// drawer returns a function drawing ref as code into a box, or nil when no
// code is configured. PDF417 symbols are wide, so they keep the box width
// and take a third of its height.
func (c Code) drawer(ref string) func(pdf *gofpdf.Fpdf, x, y, w, h float64) error {
	if c == CodeNone || c == "" || ref == "" {
		return nil
	}
	return func(pdf *gofpdf.Fpdf, x, y, w, h float64) error {
		code, err := c.encode(ref)
		if err != nil {
			return err
		}
		if c == CodePDF417 {
			y += h * 2 / 3
			h /= 3
		}
		barcode.Barcode(pdf, barcode.Register(code), x, y, w, h, false)
		if err := pdf.Error(); err != nil {
			pdf.ClearError()
			return fmt.Errorf("frontpage: drawing %s code: %w", string(c), err)
		}
		return nil
	}
}
