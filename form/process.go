package form

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/reader"
)

// Warning is a per-field or per-image problem that did not stop processing.
type Warning struct {
	Field string
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Field, w.Err)
}

// Job describes one template to fill and flatten.
type Job struct {
	Template string
	Output   string
	Values   map[string]string          // text field values
	Images   []proposalgen.ImageMapping // image placements
}

// Result describes a filled and flattened template.
type Result struct {
	Path     string
	Pages    int
	Texts    []Text
	Images   []PendingDraw
	Warnings []Warning
}

// Process fills the text fields and image placeholders named in job, then
// writes a flattened copy of the template to job.Output. Missing fields and
// unusable images are reported as warnings; only an unreadable template or
// a failed write is an error.
func Process(job Job) (*Result, error) {
	if !fileutil.FileExists(job.Template) {
		return nil, fmt.Errorf("form: %w: %s", proposalgen.ErrTemplateMissing, job.Template)
	}
	doc, err := reader.Open(job.Template)
	if err != nil {
		return nil, fmt.Errorf("form: %w", err)
	}
	all, err := doc.AllFields()
	if err != nil {
		return nil, fmt.Errorf("form: reading form fields of %s: %w", job.Template, err)
	}

	res := &Result{Path: job.Output}

	var warnings []Warning
	res.Images, warnings = PlanImages(doc, all, job.Images)
	res.Warnings = append(res.Warnings, warnings...)

	skip := make(map[string]bool, len(job.Images))
	for _, m := range job.Images {
		skip[m.FieldName] = true
	}
	res.Texts, warnings = PlanTexts(doc, all, job.Values, skip)
	res.Warnings = append(res.Warnings, warnings...)

	res.Pages, err = Render(job.Template, job.Output, Overlay{Texts: res.Texts, Images: res.Images})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ProcessTemplate fills text fields and flattens the template into
// outputPath.
func ProcessTemplate(templatePath string, values map[string]string, outputPath string) (string, []Warning, error) {
	res, err := Process(Job{Template: templatePath, Output: outputPath, Values: values})
	if err != nil {
		return "", nil, err
	}
	return res.Path, res.Warnings, nil
}

// ProcessTemplateWithImages places each mapped image into the widget of its
// field and flattens the template into outputPath.
func ProcessTemplateWithImages(templatePath string, mappings []proposalgen.ImageMapping, outputPath string) (string, []Warning, error) {
	res, err := Process(Job{Template: templatePath, Output: outputPath, Images: mappings})
	if err != nil {
		return "", nil, err
	}
	return res.Path, res.Warnings, nil
}

// PlanImages resolves every mapping to a draw operation: the field is looked
// up (text kind first, then button, then any name match), its first widget
// gives the box and the owning page, and the image is fitted into the box.
// Mappings that cannot be resolved become warnings.
func PlanImages(doc *reader.Document, all []*reader.FormField, mappings []proposalgen.ImageMapping) ([]PendingDraw, []Warning) {
	var draws []PendingDraw
	var warnings []Warning
	for _, m := range mappings {
		x, y, w, h, page, err := widgetBox(doc, all, m.FieldName)
		if err != nil {
			warnings = append(warnings, Warning{Field: m.FieldName, Err: err})
			continue
		}
		img, err := LoadImage(m.ImagePath)
		if err != nil {
			warnings = append(warnings, Warning{Field: m.FieldName, Err: err})
			continue
		}
		fx, fy, fw, fh := Fit(float64(img.Width), float64(img.Height), x, y, w, h)
		draws = append(draws, PendingDraw{Field: m.FieldName, Page: page, X: fx, Y: fy, W: fw, H: fh, Image: img})
	}
	return draws, warnings
}

// PlanTexts lays out text for the flattened page. Values override what the
// template holds; other text fields keep their current value. Fields in skip
// stand in for images and are drawn empty.
func PlanTexts(doc *reader.Document, all []*reader.FormField, values map[string]string, skip map[string]bool) ([]Text, []Warning) {
	var texts []Text
	var warnings []Warning
	done := make(map[string]bool)

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if skip[name] {
			continue
		}
		f := reader.FindField(all, name)
		if f == nil {
			warnings = append(warnings, Warning{Field: name, Err: proposalgen.ErrFieldNotFound})
			continue
		}
		done[f.FullName] = true
		value := values[name]
		if f.Type == reader.TypeButton {
			if f.IsPushButton() {
				warnings = append(warnings, Warning{Field: name, Err: errors.New("push button cannot hold text")})
				continue
			}
			if !isOn(value) {
				continue
			}
			value = "X"
		}
		t, err := textFor(doc, f, value)
		if err != nil {
			warnings = append(warnings, Warning{Field: name, Err: err})
			continue
		}
		texts = append(texts, t)
	}

	for _, f := range all {
		if f.Name == "" || f.Type != reader.TypeText || f.Value == "" || done[f.FullName] || skip[f.FullName] || skip[f.Name] {
			continue
		}
		done[f.FullName] = true
		if t, err := textFor(doc, f, f.Value); err == nil {
			texts = append(texts, t)
		}
	}
	return texts, warnings
}

func textFor(doc *reader.Document, f *reader.FormField, value string) (Text, error) {
	x, y, w, h, page, err := widgetBox(doc, []*reader.FormField{f}, f.FullName)
	if err != nil {
		return Text{}, err
	}
	da := f.DA
	if wdg := f.Widget(); wdg != nil && wdg.DA != "" {
		da = wdg.DA
	}
	return Text{
		Field:     f.FullName,
		Page:      page,
		X:         x,
		Y:         y,
		W:         w,
		H:         h,
		Value:     value,
		FontSize:  fontSizeFromDA(da),
		MultiLine: f.Flags&(1<<12) != 0,
	}, nil
}

// widgetBox returns the top-left box of a field's first widget on its page.
func widgetBox(doc *reader.Document, all []*reader.FormField, name string) (x, y, w, h float64, page int, err error) {
	f := reader.FindField(all, name)
	if f == nil {
		return 0, 0, 0, 0, 0, proposalgen.ErrFieldNotFound
	}
	wdg := f.Widget()
	if wdg == nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("field %q has no widget", name)
	}
	p, err := doc.Page(wdg.Page + 1)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	r := wdg.Rect
	mb := p.MediaBox
	return r.LLX - mb.LLX, mb.URY - r.URY, r.Width(), r.Height(), wdg.Page, nil
}

func isOn(v string) bool {
	switch strings.ToLower(v) {
	case "true", "yes", "on", "1", "x":
		return true
	}
	return false
}

// AutoMapImages maps the JPEG and PNG files of imagesDir, sorted by name, to
// the fields prefix1suffix, prefix2suffix, ... At most maxCount files are
// mapped when maxCount is positive.
func AutoMapImages(imagesDir, prefix string, maxCount int, suffix string) ([]proposalgen.ImageMapping, error) {
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("form: %w: directory %s", proposalgen.ErrImageNotFound, imagesDir)
		}
		return nil, fmt.Errorf("form: reading %s: %w", imagesDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !fileutil.HasImageExt(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if maxCount > 0 && len(names) > maxCount {
		names = names[:maxCount]
	}

	mappings := make([]proposalgen.ImageMapping, 0, len(names))
	for i, name := range names {
		mappings = append(mappings, proposalgen.ImageMapping{
			FieldName: proposalgen.ImageFieldName(prefix, i+1, suffix),
			ImagePath: filepath.Join(imagesDir, name),
		})
	}
	return mappings, nil
}
