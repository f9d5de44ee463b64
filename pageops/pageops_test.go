package pageops_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/internal/pdftest"
	"github.com/lvillar/proposalgen/pageops"
	"github.com/lvillar/proposalgen/reader"
)

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	file1 := pdftest.Plain(t, filepath.Join(dir, "doc1.pdf"), 2)
	file2 := pdftest.Plain(t, filepath.Join(dir, "doc2.pdf"), 3)
	output := filepath.Join(dir, "merged.pdf")

	if err := pageops.MergeFiles(output, file1, file2); err != nil {
		t.Fatalf("merge: %v", err)
	}

	doc, err := reader.Open(output)
	if err != nil {
		t.Fatalf("reading merged PDF: %v", err)
	}
	if doc.NumPages() != 5 {
		t.Errorf("expected 5 pages, got %d", doc.NumPages())
	}
}

func TestMergeProposal(t *testing.T) {
	dir := t.TempDir()
	front := pdftest.Plain(t, filepath.Join(dir, "temp_front_page.pdf"), 1)
	toc := pdftest.Plain(t, filepath.Join(dir, "temp_toc.pdf"), 1)
	intro := pdftest.Plain(t, filepath.Join(dir, "Intro.pdf"), 1)
	output := filepath.Join(dir, "Acme_v1.pdf")

	m := pageops.NewMerger(logger.Discard())
	res, err := m.Merge(output, []string{front, toc, intro})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Pages != 3 || res.ContentPages != 1 {
		t.Errorf("pages = %d, content = %d", res.Pages, res.ContentPages)
	}
	if n, _ := reader.PageCount(output); n != 3 {
		t.Errorf("output has %d pages, want 3", n)
	}

	// Temp artifacts are removed, originals are kept.
	if fileutil.FileExists(front) || fileutil.FileExists(toc) {
		t.Error("temp inputs should be removed after merge")
	}
	if !fileutil.FileExists(intro) {
		t.Error("original template must not be removed")
	}
	if len(res.Removed) != 2 {
		t.Errorf("removed = %v", res.Removed)
	}
}

func TestMergeLeadingPagesOnly(t *testing.T) {
	dir := t.TempDir()
	front := pdftest.Plain(t, filepath.Join(dir, "front.pdf"), 1)
	toc := pdftest.Plain(t, filepath.Join(dir, "toc.pdf"), 1)
	output := filepath.Join(dir, "out.pdf")

	res, err := pageops.NewMerger(logger.Discard()).Merge(output, []string{front, toc})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Pages != 2 || res.ContentPages != 0 {
		t.Errorf("pages = %d, content = %d", res.Pages, res.ContentPages)
	}
}

func TestMergeSkipsUnreadableInput(t *testing.T) {
	dir := t.TempDir()
	good := pdftest.Plain(t, filepath.Join(dir, "good.pdf"), 2)
	bad := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(bad, []byte("%PDF-1.4\ngarbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.pdf")
	output := filepath.Join(dir, "out.pdf")

	var logs bytes.Buffer
	m := pageops.NewMerger(logger.New(&logs))
	m.Verify = false
	res, err := m.Merge(output, []string{good, bad, missing})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Pages != 2 {
		t.Errorf("pages = %d, want 2", res.Pages)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped = %v", res.Skipped)
	}
	for _, s := range res.Skipped {
		if !errors.Is(s, proposalgen.ErrMergeRead) {
			t.Errorf("skipped input %s does not wrap ErrMergeRead", s.Path)
		}
	}
	if !bytes.Contains(logs.Bytes(), []byte("[ERROR]")) {
		t.Errorf("expected an ERROR log line, got %q", logs.String())
	}
}

func TestMergeNothingReadable(t *testing.T) {
	dir := t.TempDir()
	_, err := pageops.NewMerger(logger.Discard()).Merge(filepath.Join(dir, "out.pdf"), []string{filepath.Join(dir, "none.pdf")})
	if !errors.Is(err, proposalgen.ErrMergeRead) {
		t.Errorf("expected ErrMergeRead, got %v", err)
	}
	if _, err := pageops.NewMerger(logger.Discard()).Merge(filepath.Join(dir, "out.pdf"), nil); err == nil {
		t.Error("expected error for no inputs")
	}
}

func TestMergeWriteFailure(t *testing.T) {
	dir := t.TempDir()
	in := pdftest.Plain(t, filepath.Join(dir, "in.pdf"), 1)
	output := filepath.Join(dir, "no-such-dir", "out.pdf")

	_, err := pageops.NewMerger(logger.Discard()).Merge(output, []string{in})
	if !errors.Is(err, proposalgen.ErrWriteOutput) {
		t.Errorf("expected ErrWriteOutput, got %v", err)
	}
}

func TestMergeWithWatermark(t *testing.T) {
	dir := t.TempDir()
	in := pdftest.Plain(t, filepath.Join(dir, "in.pdf"), 3)
	output := filepath.Join(dir, "draft.pdf")

	m := pageops.NewMerger(logger.Discard())
	red, err := pageops.ParseColor("#cc2200")
	if err != nil {
		t.Fatal(err)
	}
	m.Watermark = pageops.TextWatermark{Text: "DRAFT", Color: red, Opacity: 0.2}
	m.Numbering = pageops.PageNumberStyle{Format: "%d / %d", Position: pageops.BottomRight}
	if _, err := m.Merge(output, []string{in}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if n, _ := reader.PageCount(output); n != 3 {
		t.Errorf("expected 3 pages, got %d", n)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    pageops.Color
		wantErr bool
	}{
		{"#c8c8c8", pageops.Color{R: 200, G: 200, B: 200}, false},
		{"0a0b0c", pageops.Color{R: 10, G: 11, B: 12}, false},
		{" #FF0000 ", pageops.Color{R: 255}, false},
		{"#fff", pageops.Color{}, true},
		{"#gg0000", pageops.Color{}, true},
	}
	for _, tt := range tests {
		got, err := pageops.ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestCanvasImportFile(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Plain(t, filepath.Join(dir, "src.pdf"), 3)

	c := pageops.NewCanvas()
	var seen []int
	n, err := c.ImportFile(src, 2, func(page int, w, h float64) {
		seen = append(seen, page)
		c.BlankBand(w, h, 40)
	})
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if n != 2 || len(seen) != 2 || seen[1] != 1 {
		t.Errorf("n = %d, seen = %v", n, seen)
	}

	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc, err := reader.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if doc.NumPages() != 2 {
		t.Errorf("expected 2 pages, got %d", doc.NumPages())
	}
}
