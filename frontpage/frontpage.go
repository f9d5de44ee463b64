// Package frontpage builds the one-page cover of a proposal.
//
// The cover is normally the first page of a fixed template whose company
// and year fields are filled before the page is flattened. When that
// template is absent or unreadable, a cover is drawn from an element layout
// instead, using only the core fonts, so the drawn cover does not depend on
// any file being present.
package frontpage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/form"
	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/pageops"
	"github.com/lvillar/proposalgen/reader"
)

// Field names filled on the cover template.
const (
	CompanyField = "CompanyName"
	YearField    = "Year"
)

// DefaultSubtitle is printed under the company name on a drawn cover.
const DefaultSubtitle = "Business Proposal"

// Builder produces cover pages. The zero value draws every cover from the
// default layout.
type Builder struct {
	TemplatesDir string
	Template     string // cover template file name inside TemplatesDir
	Subtitle     string
	LayoutFile   string // optional JSON layout for drawn covers
	Code         Code
	Reference    string // encoded by Code, e.g. "Acme_v3"
	Log          *logger.Logger
	Now          func() time.Time
}

// Result tells how the cover was produced.
type Result struct {
	Path     string
	Drawn    bool // true when the template could not be used
	Warnings []form.Warning
}

// Build writes the cover for cfg to outPath and returns outPath.
func (b *Builder) Build(cfg *proposalgen.ProposalConfig, outPath string) (string, error) {
	res, err := b.BuildResult(cfg, outPath)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// BuildResult is Build with details about how the cover was made.
func (b *Builder) BuildResult(cfg *proposalgen.ProposalConfig, outPath string) (*Result, error) {
	now := b.now()
	res := &Result{Path: outPath}

	if b.Template != "" {
		tpl := filepath.Join(b.TemplatesDir, b.Template)
		if fileutil.FileExists(tpl) {
			warnings, err := b.fromTemplate(tpl, cfg.Company, now, outPath)
			if err == nil {
				for _, w := range warnings {
					b.Log.Warnf("front page: %s", w)
				}
				res.Warnings = warnings
				return res, nil
			}
			b.Log.Warnf("front page template %s unusable, drawing the cover: %v", tpl, err)
		} else {
			b.Log.Warnf("front page template %s not found, drawing the cover", tpl)
		}
	}

	res.Drawn = true
	if err := b.draw(cfg.Company, now, outPath); err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// fromTemplate fills the company and year fields of the template's first
// page, blanks its footer band and flattens it into outPath.
func (b *Builder) fromTemplate(tpl, company string, now time.Time, outPath string) ([]form.Warning, error) {
	doc, err := reader.Open(tpl)
	if err != nil {
		return nil, err
	}
	all, err := doc.AllFields()
	if err != nil {
		return nil, err
	}

	texts, warnings := form.PlanTexts(doc, all, map[string]string{
		CompanyField: company,
		YearField:    strconv.Itoa(now.Year()),
	}, nil)

	drawCode := b.Code.drawer(b.Reference)
	ov := form.Overlay{
		Texts:      texts,
		MaxPages:   1,
		BottomBand: pageops.FooterBand,
	}
	if drawCode != nil {
		ov.Decorate = func(pdf *gofpdf.Fpdf, page int, w, h float64) {
			const size = 80
			if err := drawCode(pdf, w-40-size, h-pageops.FooterBand-10-size, size, size); err != nil {
				b.Log.Warnf("front page: %v", err)
			}
		}
	}

	if _, err := form.Render(tpl, outPath, ov); err != nil {
		return nil, err
	}
	return warnings, nil
}

// draw renders the configured layout, falling back to the built-in one when
// the layout file cannot be used.
func (b *Builder) draw(company string, now time.Time, outPath string) error {
	subtitle := b.Subtitle
	if subtitle == "" {
		subtitle = DefaultSubtitle
	}
	vars := Vars{
		Company:   company,
		Subtitle:  subtitle,
		Date:      now.Format("January 2, 2006"),
		Year:      strconv.Itoa(now.Year()),
		Reference: b.Reference,
	}

	var code func(pdf *gofpdf.Fpdf, x, y, w, h float64) error
	if draw := b.Code.drawer(b.Reference); draw != nil {
		code = func(pdf *gofpdf.Fpdf, x, y, w, h float64) error {
			if err := draw(pdf, x, y, w, h); err != nil {
				b.Log.Warnf("front page: %v", err)
			}
			return nil
		}
	}

	var buf bytes.Buffer
	rendered := false
	if b.LayoutFile != "" {
		layout, err := LoadLayout(b.LayoutFile)
		if err == nil {
			err = layout.Render(&buf, vars, code)
		}
		if err != nil {
			b.Log.Warnf("cover layout %s unusable, using the built-in layout: %v", b.LayoutFile, err)
			buf.Reset()
		} else {
			rendered = true
		}
	}
	if !rendered {
		if err := DefaultLayout().Render(&buf, vars, code); err != nil {
			return fmt.Errorf("frontpage: drawing cover: %w", err)
		}
	}

	err := fileutil.WriteFileAtomic(outPath, func(f *os.File) error {
		_, err := f.Write(buf.Bytes())
		return err
	})
	if err != nil {
		return fmt.Errorf("frontpage: %w: %s: %v", proposalgen.ErrWriteOutput, outPath, err)
	}
	return nil
}
