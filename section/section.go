// Package section turns the template sections of a proposal into the PDFs
// that follow the front page and table of contents.
//
// Sections are processed strictly in order, because each table-of-contents
// entry points at the running content page count. A section that fails is
// logged, recorded in Result.Skipped and left out; it never aborts the run.
package section

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/form"
	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/internal/workdir"
	"github.com/lvillar/proposalgen/reader"
)

// Processor resolves sections against the template, member and image
// directories. Filled sections are written into Work.
type Processor struct {
	TemplatesDir string
	MembersDir   string // <MembersDir>/<member name>.{jpg,jpeg,png}
	ImagesDir    string // <ImagesDir>/<section name>/ for auto-mapped images
	Work         *workdir.Dir
	Log          *logger.Logger
}

// SkippedSection is a section left out of the document.
type SkippedSection struct {
	Name     string `json:"name"`
	FileName string `json:"fileName"`
	Err      error  `json:"-"`
	Reason   string `json:"reason"`
}

func (s SkippedSection) Error() string {
	return fmt.Sprintf("section %q (%s): %v", s.Name, s.FileName, s.Err)
}

func (s SkippedSection) Unwrap() error {
	return s.Err
}

// Result is the ordered output of Process.
type Result struct {
	Paths   []string               // section PDFs in document order
	Entries []proposalgen.TOCEntry // one per section, Staff Profiles collapsed
	Temps   []string               // the subset of Paths written into the work dir
	Skipped []SkippedSection
	Pages   int // content pages across Paths
}

// output is what one section contributes.
type output struct {
	paths []string
	temps []string
	pages int
}

// Process walks cfg.Templates in order. It only returns an error when ctx is
// done or the processor has no work directory.
func (p *Processor) Process(ctx context.Context, cfg *proposalgen.ProposalConfig) (*Result, error) {
	if p.Work == nil {
		return nil, fmt.Errorf("section: no work directory")
	}
	res := &Result{}
	counter := 1

	for i, t := range cfg.Templates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out, err := p.process(i, t)
		if err != nil {
			if errors.Is(err, proposalgen.ErrTemplateMissing) {
				p.Log.Warnf("Skipping section %q: %v", t.Name, err)
			} else {
				p.Log.Errorf("Skipping section %q: %v", t.Name, err)
			}
			res.Skipped = append(res.Skipped, SkippedSection{Name: t.Name, FileName: t.FileName, Err: err, Reason: err.Error()})
			continue
		}

		res.Paths = append(res.Paths, out.paths...)
		res.Temps = append(res.Temps, out.temps...)
		res.Entries = append(res.Entries, proposalgen.TOCEntry{Title: t.Name, Page: counter})
		counter += out.pages
		p.Log.Debugf("Section %q (%s): %d page(s), next page %d", t.Name, t.Kind, out.pages, counter)
	}

	res.Pages = counter - 1
	return res, nil
}

// process dispatches one section on its kind. Panics raised by the PDF
// libraries are turned into errors so one bad file only costs its section.
func (p *Processor) process(index int, t proposalgen.TemplateSpec) (out output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("section: %v", r)
		}
	}()

	switch t.Kind {
	case proposalgen.KindPlain:
		return p.plain(t)
	case proposalgen.KindFormFill:
		return p.fill(index, t, t.FieldValues, nil)
	case proposalgen.KindImageFill:
		return p.fill(index, t, t.FieldValues, p.imageMappings(t))
	case proposalgen.KindMemberAssociation:
		return p.members(index, t)
	case proposalgen.KindStaffProfiles:
		return p.staff(t)
	default:
		return output{}, fmt.Errorf("section: unknown kind %s", t.Kind)
	}
}

// templatePath joins fileName to the templates directory. Names that would
// leave the directory are refused.
func (p *Processor) templatePath(fileName string) (string, error) {
	if !proposalgen.LocalFileName(fileName) {
		return "", fmt.Errorf("%w: %q", proposalgen.ErrInvalidFileName, fileName)
	}
	return filepath.Join(p.TemplatesDir, fileName), nil
}

// pageCount counts the pages of path; an unreadable file counts as one page.
func (p *Processor) pageCount(path string) int {
	n, err := reader.PageCount(path)
	if err != nil || n < 1 {
		p.Log.Warnf("Could not count pages of %s, assuming 1: %v", path, err)
		return 1
	}
	return n
}

func (p *Processor) plain(t proposalgen.TemplateSpec) (output, error) {
	path, err := p.templatePath(t.FileName)
	if err != nil {
		return output{}, err
	}
	if !fileutil.FileExists(path) {
		return output{}, fmt.Errorf("%w: %s", proposalgen.ErrTemplateMissing, path)
	}
	return output{paths: []string{path}, pages: p.pageCount(path)}, nil
}

// fill writes a filled and flattened copy of the section template into the
// work directory.
func (p *Processor) fill(index int, t proposalgen.TemplateSpec, values map[string]string, images []proposalgen.ImageMapping) (output, error) {
	path, err := p.templatePath(t.FileName)
	if err != nil {
		return output{}, err
	}
	if !fileutil.FileExists(path) {
		return output{}, fmt.Errorf("%w: %s", proposalgen.ErrTemplateMissing, path)
	}

	tmp := p.Work.Temp(fmt.Sprintf("%02d_%s", index+1, t.FileName))
	res, err := form.Process(form.Job{Template: path, Output: tmp, Values: values, Images: images})
	if err != nil {
		return output{}, err
	}
	for _, w := range res.Warnings {
		p.Log.Warnf("Section %q: %s", t.Name, w)
	}
	return output{paths: []string{tmp}, temps: []string{tmp}, pages: res.Pages}, nil
}

// members maps up to MaxMemberImages member photos to Image1_af_image ...
// and fills the template with them. Without any photo the template is used
// as it is.
func (p *Processor) members(index int, t proposalgen.TemplateSpec) (output, error) {
	var paths []string
	for _, name := range t.Members {
		if len(paths) == proposalgen.MaxMemberImages {
			p.Log.Warnf("Section %q: more than %d members, ignoring the rest", t.Name, proposalgen.MaxMemberImages)
			break
		}
		img, ok := p.memberImage(name)
		if !ok {
			p.Log.Warnf("Section %q: no image for member %q in %s", t.Name, name, p.MembersDir)
			continue
		}
		paths = append(paths, img)
	}

	if len(paths) == 0 {
		p.Log.Warnf("Section %q: no member images resolved, using the template as is", t.Name)
		return p.plain(t)
	}
	return p.fill(index, t, nil, proposalgen.PositionalMappings(paths))
}

// staff concatenates the intro template, when present, and every staff
// member's file. The whole block gets a single table-of-contents entry.
func (p *Processor) staff(t proposalgen.TemplateSpec) (output, error) {
	var out output
	files := make([]string, 0, len(t.Staffs)+1)
	if t.FileName != "" {
		files = append(files, t.FileName)
	}
	for _, s := range t.Staffs {
		files = append(files, s.FileName)
	}

	for _, f := range files {
		path, err := p.templatePath(f)
		if err != nil {
			p.Log.Warnf("Section %q: %v", t.Name, err)
			continue
		}
		if !fileutil.FileExists(path) {
			p.Log.Warnf("Section %q: %v: %s", t.Name, proposalgen.ErrTemplateMissing, path)
			continue
		}
		out.paths = append(out.paths, path)
		out.pages += p.pageCount(path)
	}

	if len(out.paths) == 0 {
		return output{}, fmt.Errorf("%w: no staff profile file found", proposalgen.ErrTemplateMissing)
	}
	return out, nil
}
