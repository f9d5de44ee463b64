package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/form"
	"github.com/lvillar/proposalgen/frontpage"
	"github.com/lvillar/proposalgen/internal/fileutil"
)

const sampleProposal = `company: Acme Corp
templates:
  - name: Introduction
    fileName: Intro.pdf
    editable: false
  - name: Cover Letter
    fileName: Cover Letter.pdf
    editable: true
    fieldValues:
      client_name: Acme Corp
      date: March 2025
      body: We are pleased to present our proposal.
  - name: Gallery
    fileName: Gallery.pdf
    editable: true
    hasImages: true
    imagePaths:
      - gallery/one.png
      - gallery/two.png
  - name: Member Association
    fileName: Members.pdf
    editable: true
    members:
      - Jane Doe
      - John Roe
`

const sampleSettings = `templates_dir: templates
output_dir: output
members_dir: images/members
images_dir: images
database:
  dsn: proposals.db
cover:
  code: qr
`

func runScaffold(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	var force bool
	fs := newFlagSet("scaffold", stderr, "scaffold [flags] <dir>")
	addCommonFlags(fs, &common)
	fs.BoolVarP(&force, "force", "f", false, "overwrite existing files")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one directory", ErrUsage)
	}

	written, err := scaffold(fs.Arg(0), force)
	for _, p := range written {
		fmt.Fprintf(stdout, "wrote %s\n", p)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nTry: cd %s && proposalgen generate -c proposalgen.yaml proposal.yaml\n", fs.Arg(0))
	return nil
}

// scaffold writes a runnable example project under dir and returns the
// files it created.
func scaffold(dir string, force bool) ([]string, error) {
	var written []string
	write := func(rel string, fn func(path string) error) error {
		path := filepath.Join(dir, rel)
		if !force && fileutil.FileExists(path) {
			return fmt.Errorf("%s already exists (use --force)", path)
		}
		if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
			return err
		}
		if err := fn(path); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}
	text := func(s string) func(string) error {
		return func(path string) error { return os.WriteFile(path, []byte(s), 0o644) }
	}

	steps := []struct {
		rel string
		fn  func(string) error
	}{
		{"proposal.yaml", text(sampleProposal)},
		{"proposalgen.yaml", text(sampleSettings)},
		{"templates/front_page.pdf", frontPageTemplate().BuildFile},
		{"templates/Intro.pdf", introTemplate().BuildFile},
		{"templates/Cover Letter.pdf", letterTemplate().BuildFile},
		{"templates/Gallery.pdf", galleryTemplate().BuildFile},
		{"templates/Members.pdf", membersTemplate().BuildFile},
		{"images/gallery/one.png", samplePNG(color.RGBA{R: 0x2c, G: 0x5f, B: 0x8a, A: 0xff})},
		{"images/gallery/two.png", samplePNG(color.RGBA{R: 0x8a, G: 0x2c, B: 0x4f, A: 0xff})},
		{"images/members/Jane Doe.png", samplePNG(color.RGBA{R: 0x3a, G: 0x8a, B: 0x2c, A: 0xff})},
		{"images/members/John Roe.png", samplePNG(color.RGBA{R: 0x8a, G: 0x7a, B: 0x2c, A: 0xff})},
	}
	for _, s := range steps {
		if err := write(s.rel, s.fn); err != nil {
			return written, err
		}
	}
	return written, nil
}

func frontPageTemplate() *form.TemplateBuilder {
	tb := form.NewTemplateBuilder()
	p := tb.AddPage(0, 0)
	tb.Text(p, 72, 200, 14, "Business Proposal")
	tb.AddTextField(frontpage.CompanyField, p, 72, 300, 450, 40).SetFontSize(28)
	tb.AddTextField(frontpage.YearField, p, 72, 350, 120, 24).SetFontSize(16)
	return tb
}

func introTemplate() *form.TemplateBuilder {
	tb := form.NewTemplateBuilder()
	p := tb.AddPage(0, 0)
	tb.Text(p, 72, 96, 22, "Introduction")
	tb.Text(p, 72, 140, 11, "Replace this page with your own introduction.")
	return tb
}

func letterTemplate() *form.TemplateBuilder {
	tb := form.NewTemplateBuilder()
	p := tb.AddPage(0, 0)
	tb.Text(p, 72, 96, 22, "Cover Letter")
	tb.Text(p, 72, 140, 10, "Prepared for")
	tb.AddTextField("client_name", p, 150, 126, 300, 18)
	tb.Text(p, 72, 170, 10, "Date")
	tb.AddTextField("date", p, 150, 156, 200, 18)
	tb.AddTextField("body", p, 72, 200, 450, 300).SetMultiLine(true).SetFontSize(11)
	return tb
}

func galleryTemplate() *form.TemplateBuilder {
	tb := form.NewTemplateBuilder()
	p := tb.AddPage(0, 0)
	tb.Text(p, 72, 96, 22, "Gallery")
	for i := 0; i < 2; i++ {
		name := proposalgen.ImageFieldName(proposalgen.ImageFieldPrefix, i+1, proposalgen.ImageFieldSuffix)
		tb.AddImageField(name, p, 72+float64(i)*230, 140, 210, 160)
	}
	return tb
}

func membersTemplate() *form.TemplateBuilder {
	tb := form.NewTemplateBuilder()
	p := tb.AddPage(0, 0)
	tb.Text(p, 72, 96, 22, "Member Association")
	for i := 0; i < proposalgen.MaxMemberImages; i++ {
		name := proposalgen.ImageFieldName(proposalgen.ImageFieldPrefix, i+1, proposalgen.ImageFieldSuffix)
		col, row := i%4, i/4
		tb.AddImageField(name, p, 72+float64(col)*115, 140+float64(row)*130, 100, 110)
	}
	return tb
}

// samplePNG writes a flat colour placeholder image.
func samplePNG(c color.Color) func(string) error {
	return func(path string) error {
		img := image.NewRGBA(image.Rect(0, 0, 320, 240))
		for y := 0; y < 240; y++ {
			for x := 0; x < 320; x++ {
				img.Set(x, y, c)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}
