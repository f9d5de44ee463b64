package form_test

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/form"
	"github.com/lvillar/proposalgen/internal/pdftest"
	"github.com/lvillar/proposalgen/reader"
)

func near(a, b float64) bool { return math.Abs(a-b) < 0.01 }

func TestTemplateBuilder(t *testing.T) {
	tb := form.NewTemplateBuilder()
	page := tb.AddPage(0, 0)
	tb.Text(page, 50, 60, 12, "Name (required):")
	tb.AddTextField("name", page, 160, 50, 200, 18).SetRequired(true)
	tb.AddImageField("logo", page, 160, 100, 120, 80)

	var buf bytes.Buffer
	if err := tb.Build(&buf); err != nil {
		t.Fatalf("Build: %v", err)
	}
	pdfBytes := buf.Bytes()
	for _, want := range []string{"/AcroForm", "/FT /Tx", "/FT /Btn", "/Ff 65536", `Name \(required\):`} {
		if !bytes.Contains(pdfBytes, []byte(want)) {
			t.Errorf("expected %q in template output", want)
		}
	}

	doc, err := reader.ReadFrom(bytes.NewReader(pdfBytes))
	if err != nil {
		t.Fatalf("reading template: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Errorf("expected 1 page, got %d", doc.NumPages())
	}
	f, err := doc.LookupField("name")
	if err != nil {
		t.Fatal(err)
	}
	if f.Flags&2 == 0 {
		t.Error("name should be required")
	}
}

func TestTemplateBuilderErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := form.NewTemplateBuilder().Build(&buf); err == nil {
		t.Error("expected error for template without pages")
	}

	tb := form.NewTemplateBuilder()
	tb.AddPage(0, 0)
	tb.AddTextField("x", 3, 0, 0, 10, 10)
	if err := tb.Build(&buf); err == nil {
		t.Error("expected error for field on a missing page")
	}
}

func TestProcessTemplateFlattens(t *testing.T) {
	dir := t.TempDir()
	tpl := pdftest.FormTemplate(t, filepath.Join(dir, "Pricing.pdf"), []string{"company", "price"}, nil)
	out := filepath.Join(dir, "temp_Pricing.pdf")

	path, warnings, err := form.ProcessTemplate(tpl, map[string]string{
		"company": "Acme Corp",
		"price":   "€ 1.200",
		"missing": "ignored",
	}, out)
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	if path != out {
		t.Errorf("path = %q, want %q", path, out)
	}
	if len(warnings) != 1 || warnings[0].Field != "missing" || !errors.Is(warnings[0].Err, proposalgen.ErrFieldNotFound) {
		t.Errorf("warnings = %v", warnings)
	}

	doc, err := reader.Open(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Errorf("expected 1 page, got %d", doc.NumPages())
	}
	fields, err := doc.AllFields()
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 0 {
		t.Errorf("flattened output still has %d fields", len(fields))
	}
}

func TestProcessTextPlacement(t *testing.T) {
	dir := t.TempDir()
	tb := form.NewTemplateBuilder()
	page := tb.AddPage(0, 0)
	tb.AddTextField("title", page, 100, 200, 300, 24).SetFontSize(16)
	tb.AddTextField("body", page, 100, 300, 300, 120).SetMultiLine(true)
	tb.AddTextField("kept", page, 100, 500, 300, 20).SetValue("from template")
	tpl := filepath.Join(dir, "tpl.pdf")
	if err := tb.BuildFile(tpl); err != nil {
		t.Fatal(err)
	}

	res, err := form.Process(form.Job{
		Template: tpl,
		Output:   filepath.Join(dir, "out.pdf"),
		Values:   map[string]string{"title": "Proposal", "body": "Line one\nLine two"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Texts) != 3 {
		t.Fatalf("expected 3 texts, got %d: %+v", len(res.Texts), res.Texts)
	}
	byField := make(map[string]form.Text)
	for _, tx := range res.Texts {
		byField[tx.Field] = tx
	}
	title := byField["title"]
	if !near(title.X, 100) || !near(title.Y, 200) || !near(title.W, 300) || !near(title.H, 24) {
		t.Errorf("title box = %+v", title)
	}
	if title.FontSize != 16 {
		t.Errorf("title font size = %v", title.FontSize)
	}
	if !byField["body"].MultiLine {
		t.Error("body should be multi-line")
	}
	if byField["kept"].Value != "from template" {
		t.Errorf("kept value = %q", byField["kept"].Value)
	}
}

func TestProcessTemplateWithImages(t *testing.T) {
	dir := t.TempDir()
	tpl := pdftest.FormTemplate(t, filepath.Join(dir, "Team.pdf"), nil,
		[]string{"Image1_af_image", "Image2_af_image"})
	wide := pdftest.PNG(t, filepath.Join(dir, "wide.png"), 400, 100, color.RGBA{200, 0, 0, 255})
	tall := pdftest.JPEG(t, filepath.Join(dir, "tall.jpg"), 50, 200, color.RGBA{0, 0, 200, 255})
	gif := filepath.Join(dir, "anim.gif")
	if err := os.WriteFile(gif, []byte("GIF89a...."), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := form.Process(form.Job{
		Template: tpl,
		Output:   filepath.Join(dir, "out.pdf"),
		Images: []proposalgen.ImageMapping{
			{FieldName: "Image1_af_image", ImagePath: wide},
			{FieldName: "Image2_af_image", ImagePath: tall},
			{FieldName: "Image3_af_image", ImagePath: wide},
			{FieldName: "Image1_af_image", ImagePath: gif},
			{FieldName: "Image2_af_image", ImagePath: filepath.Join(dir, "nope.png")},
		},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Images) != 2 {
		t.Fatalf("expected 2 image draws, got %d", len(res.Images))
	}
	if len(res.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", res.Warnings)
	}
	if !errors.Is(res.Warnings[0].Err, proposalgen.ErrFieldNotFound) {
		t.Errorf("warning 0 = %v", res.Warnings[0])
	}
	if !errors.Is(res.Warnings[1].Err, proposalgen.ErrUnsupportedImageFormat) {
		t.Errorf("warning 1 = %v", res.Warnings[1])
	}
	if !errors.Is(res.Warnings[2].Err, proposalgen.ErrImageNotFound) {
		t.Errorf("warning 2 = %v", res.Warnings[2])
	}

	// Placeholder boxes are 200 x 100; the 4:1 image fills the width and
	// the 1:4 image fills the height, both centered.
	first := res.Images[0]
	if !near(first.W, 200) || !near(first.H, 50) || first.Page != 0 {
		t.Errorf("wide image box = %+v", first)
	}
	second := res.Images[1]
	if !near(second.H, 100) || !near(second.W, 25) {
		t.Errorf("tall image box = %+v", second)
	}
	if !near(second.X, 160+(200-25)/2.0) {
		t.Errorf("tall image not centered: x = %v", second.X)
	}

	if n, err := reader.PageCount(res.Path); err != nil || n != 1 {
		t.Errorf("output pages = %d, %v", n, err)
	}
}

func TestProcessMissingTemplate(t *testing.T) {
	_, _, err := form.ProcessTemplate(filepath.Join(t.TempDir(), "none.pdf"), nil, filepath.Join(t.TempDir(), "out.pdf"))
	if !errors.Is(err, proposalgen.ErrTemplateMissing) {
		t.Errorf("expected ErrTemplateMissing, got %v", err)
	}
}

func TestRenderMaxPagesAndBand(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Plain(t, filepath.Join(dir, "three.pdf"), 3)
	out := filepath.Join(dir, "first.pdf")
	n, err := form.Render(src, out, form.Overlay{MaxPages: 1, BottomBand: 40})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if n != 1 {
		t.Errorf("Render returned %d pages", n)
	}
	if got, _ := reader.PageCount(out); got != 1 {
		t.Errorf("output has %d pages", got)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name           string
		iw, ih         float64
		x, y, w, h     float64
		fx, fy, fw, fh float64
	}{
		{"wider", 400, 100, 0, 0, 200, 100, 0, 25, 200, 50},
		{"taller", 100, 400, 0, 0, 200, 100, 87.5, 0, 25, 100},
		{"same ratio", 50, 25, 10, 10, 200, 100, 10, 10, 200, 100},
		{"degenerate", 0, 10, 5, 5, 20, 20, 5, 5, 20, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx, fy, fw, fh := form.Fit(tt.iw, tt.ih, tt.x, tt.y, tt.w, tt.h)
			if !near(fx, tt.fx) || !near(fy, tt.fy) || !near(fw, tt.fw) || !near(fh, tt.fh) {
				t.Errorf("Fit = (%v, %v, %v, %v), want (%v, %v, %v, %v)", fx, fy, fw, fh, tt.fx, tt.fy, tt.fw, tt.fh)
			}
		})
	}
}

func TestLoadImageDownsamples(t *testing.T) {
	path := pdftest.PNG(t, filepath.Join(t.TempDir(), "big.png"), 3000, 1500, color.White)
	img, err := form.LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.Width != form.MaxImageDimension || img.Height != form.MaxImageDimension/2 {
		t.Errorf("size = %dx%d", img.Width, img.Height)
	}
	if img.Type != form.ImagePNG {
		t.Errorf("type = %q", img.Type)
	}
}

func TestLoadImageDetectsContent(t *testing.T) {
	dir := t.TempDir()
	// A JPEG with a .png name is still a JPEG.
	path := pdftest.JPEG(t, filepath.Join(dir, "photo.png"), 10, 10, color.Black)
	img, err := form.LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.Type != form.ImageJPEG {
		t.Errorf("type = %q, want JPG", img.Type)
	}
}

func TestLoadImageRequiresImageExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"photo.bmp", "photo", "photo.png.txt"} {
		path := pdftest.PNG(t, filepath.Join(dir, name), 10, 10, color.White)
		if _, err := form.LoadImage(path); !errors.Is(err, proposalgen.ErrUnsupportedImageFormat) {
			t.Errorf("LoadImage(%s): expected ErrUnsupportedImageFormat, got %v", name, err)
		}
	}
	path := pdftest.PNG(t, filepath.Join(dir, "PHOTO.PNG"), 10, 10, color.White)
	if _, err := form.LoadImage(path); err != nil {
		t.Errorf("LoadImage(PHOTO.PNG): %v", err)
	}
}

func TestAutoMapImages(t *testing.T) {
	dir := t.TempDir()
	pdftest.PNG(t, filepath.Join(dir, "Bob.png"), 4, 4, color.White)
	pdftest.JPEG(t, filepath.Join(dir, "Alice.jpg"), 4, 4, color.White)
	pdftest.PNG(t, filepath.Join(dir, "Carol.jpeg"), 4, 4, color.White)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	mappings, err := form.AutoMapImages(dir, "Image", 2, "_af_image")
	if err != nil {
		t.Fatalf("AutoMapImages: %v", err)
	}
	want := []proposalgen.ImageMapping{
		{FieldName: "Image1_af_image", ImagePath: filepath.Join(dir, "Alice.jpg")},
		{FieldName: "Image2_af_image", ImagePath: filepath.Join(dir, "Bob.png")},
	}
	if len(mappings) != len(want) {
		t.Fatalf("got %d mappings, want %d", len(mappings), len(want))
	}
	for i := range want {
		if mappings[i] != want[i] {
			t.Errorf("mapping %d = %+v, want %+v", i, mappings[i], want[i])
		}
	}

	all, err := form.AutoMapImages(dir, "Photo", 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].FieldName != "Photo3" {
		t.Errorf("unbounded mapping = %+v", all)
	}

	if _, err := form.AutoMapImages(filepath.Join(dir, "missing"), "Image", 7, ""); !errors.Is(err, proposalgen.ErrImageNotFound) {
		t.Errorf("expected ErrImageNotFound, got %v", err)
	}
}
