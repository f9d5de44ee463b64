package pageops

import (
	"errors"
	"fmt"
	"os"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/internal/workdir"
	"github.com/lvillar/proposalgen/reader"
)

// FooterBand is the default height in points of the white band painted over
// the bottom of every merged page.
const FooterBand = 40

// LeadingPages is the number of pages at the start of a proposal, the front
// page and the table of contents, that are not numbered.
const LeadingPages = 2

// InputError records a merge input whose pages were left out of the output.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() []error {
	return []error{proposalgen.ErrMergeRead, e.Err}
}

// MergeResult describes a completed merge.
type MergeResult struct {
	Output       string
	Pages        int           // physical pages written
	ContentPages int           // pages after the leading pages
	Skipped      []*InputError // inputs that could not be read
	Removed      []string      // temp inputs deleted after the save
}

// Merger concatenates PDF files into one document. Every page gets a white
// footer band; pages after the leading ones are labeled with their content
// page number.
type Merger struct {
	Log        *logger.Logger
	FooterBand float64         // band height in points; 0 disables the band
	Numbered   bool            // label content pages
	Leading    int             // unnumbered pages at the start
	Numbering  PageNumberStyle // label style for content pages
	Watermark  TextWatermark   // stamped on every page when Text is set
	Verify     bool            // validate the output with pdfcpu; failures are logged
	Cleanup    bool            // delete temp-artifact inputs after a successful save
}

// NewMerger returns a Merger with the proposal defaults.
func NewMerger(log *logger.Logger) *Merger {
	return &Merger{
		Log:        log,
		FooterBand: FooterBand,
		Numbered:   true,
		Leading:    LeadingPages,
		Verify:     true,
		Cleanup:    true,
	}
}

type mergeInput struct {
	path  string
	sizes [][2]float64
}

// Merge copies every page of every input, in order, into output. An input
// that cannot be read is logged, recorded in the result and left out; the
// merge still succeeds. The output is written atomically and a failed save
// returns an error wrapping proposalgen.ErrWriteOutput. After a successful
// save, inputs recognised as temp artifacts are deleted.
func (m *Merger) Merge(output string, inputs []string) (*MergeResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("pageops: no input files provided")
	}

	result := &MergeResult{Output: output}
	excluded := make(map[int]bool)

	var canvas *Canvas
	var total int
	// An input that pdfcpu reads but the page importer rejects is excluded
	// and the merge restarts, so page totals always match the output.
	for attempt := 0; attempt <= len(inputs); attempt++ {
		plan := make(map[int]*mergeInput)
		total = 0
		for i, path := range inputs {
			if excluded[i] {
				continue
			}
			in, err := planInput(path)
			if err != nil {
				excluded[i] = true
				result.Skipped = append(result.Skipped, m.skip(path, err))
				continue
			}
			plan[i] = in
			total += len(in.sizes)
		}
		if total == 0 {
			return nil, fmt.Errorf("pageops: %w: no readable pages in %d inputs", proposalgen.ErrMergeRead, len(inputs))
		}

		canvas = NewCanvas()
		failed := -1
		index := 0
		for i := range inputs {
			in, ok := plan[i]
			if !ok {
				continue
			}
			for p, size := range in.sizes {
				if err := canvas.ImportPage(in.path, p+1, size[0], size[1]); err != nil {
					failed = i
					excluded[i] = true
					result.Skipped = append(result.Skipped, m.skip(in.path, err))
					break
				}
				m.decorate(canvas, index, total, size[0], size[1])
				index++
			}
			if failed >= 0 {
				break
			}
		}
		if failed < 0 {
			break
		}
	}

	if err := canvas.Save(output); err != nil {
		return nil, fmt.Errorf("pageops: %w: %s: %v", proposalgen.ErrWriteOutput, output, err)
	}
	result.Pages = total
	if m.Numbered && total > m.Leading {
		result.ContentPages = total - m.Leading
	}
	m.Log.Printf("Merged %d pages from %d files into %s", total, len(inputs)-len(excluded), output)

	if m.Verify {
		if err := reader.Validate(output); err != nil {
			m.Log.Warnf("Output verification failed: %v", err)
		}
	}

	for _, path := range inputs {
		if !m.Cleanup || !workdir.IsTemp(path) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.Log.Warnf("Could not remove temp file %s: %v", path, err)
			continue
		}
		result.Removed = append(result.Removed, path)
		m.Log.Debugf("Removed temp file %s", path)
	}
	return result, nil
}

func (m *Merger) skip(path string, err error) *InputError {
	m.Log.Errorf("Error merging %s: %v", path, err)
	return &InputError{Path: path, Err: err}
}

// decorate paints the footer band, the content page label and the watermark
// on the page just imported. index is the 0-based physical page index.
func (m *Merger) decorate(c *Canvas, index, total int, w, h float64) {
	c.BlankBand(w, h, m.FooterBand)
	st := stamp{pdf: c.PDF}
	if m.Numbered && index >= m.Leading {
		st.pageNumber(m.Numbering, index-m.Leading+1, total-m.Leading, w, h)
	}
	if m.Watermark.Text != "" {
		st.watermark(m.Watermark, c.Translate, w, h)
	}
}

func planInput(path string) (*mergeInput, error) {
	doc, err := reader.Open(path)
	if err != nil {
		return nil, err
	}
	in := &mergeInput{path: path}
	for p := 1; p <= doc.NumPages(); p++ {
		w, h, err := doc.PageSize(p)
		if err != nil {
			return nil, err
		}
		in.sizes = append(in.sizes, [2]float64{w, h})
	}
	if len(in.sizes) == 0 {
		return nil, fmt.Errorf("no pages")
	}
	return in, nil
}

// MergeFiles concatenates inputs into outputPath without bands, numbering or
// temp cleanup.
func MergeFiles(outputPath string, inputPaths ...string) error {
	m := &Merger{Log: logger.Discard()}
	res, err := m.Merge(outputPath, inputPaths)
	if err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		return res.Skipped[0]
	}
	return nil
}
