package toc_test

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/reader"
	"github.com/lvillar/proposalgen/toc"
)

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp_toc.pdf")
	entries := []proposalgen.TOCEntry{
		{Title: "Introduction", Page: 1},
		{Title: "Staff Profiles", Page: 3},
		{Title: "A rather long section title that cannot possibly fit in one column", Page: 7},
	}

	layout, err := toc.RenderFile(path, entries, toc.Options{})
	if err != nil {
		t.Fatalf("RenderFile: %v", err)
	}
	if len(layout.Placed) != 3 || len(layout.Dropped) != 0 {
		t.Fatalf("placed %d, dropped %d", len(layout.Placed), len(layout.Dropped))
	}
	long := layout.Placed[2].Title
	if !strings.HasSuffix(long, "...") || len(long) >= len(entries[2].Title) {
		t.Errorf("long title not truncated: %q", long)
	}

	doc, err := reader.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Errorf("pages = %d, want 1", doc.NumPages())
	}
	w, h, err := doc.PageSize(1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(w-toc.PageWidth) > 0.5 || math.Abs(h-toc.PageHeight) > 0.5 {
		t.Errorf("page size = %.2f x %.2f", w, h)
	}
}

func TestRenderDropsOverflow(t *testing.T) {
	var entries []proposalgen.TOCEntry
	for i := 1; i <= 80; i++ {
		entries = append(entries, proposalgen.TOCEntry{Title: fmt.Sprintf("Section %d", i), Page: i})
	}

	var logs bytes.Buffer
	var out bytes.Buffer
	layout, err := toc.Render(&out, entries, toc.Options{Log: logger.New(&logs)})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(layout.Dropped) == 0 {
		t.Fatal("expected dropped entries")
	}
	if len(layout.Placed)+len(layout.Dropped) != len(entries) {
		t.Errorf("placed %d + dropped %d != %d", len(layout.Placed), len(layout.Dropped), len(entries))
	}
	if !strings.Contains(logs.String(), "[WARN]") {
		t.Errorf("expected a WARN line, got %q", logs.String())
	}

	doc, err := reader.ReadFrom(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Errorf("overflow must not paginate, got %d pages", doc.NumPages())
	}
}

func TestRenderEmpty(t *testing.T) {
	var out bytes.Buffer
	layout, err := toc.Render(&out, nil, toc.Options{Heading: "Contents"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(layout.Placed) != 0 {
		t.Errorf("placed = %v", layout.Placed)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestRenderFileWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "toc.pdf")
	_, err := toc.RenderFile(path, []proposalgen.TOCEntry{{Title: "Intro", Page: 1}}, toc.Options{})
	if !errors.Is(err, proposalgen.ErrWriteOutput) {
		t.Errorf("expected ErrWriteOutput, got %v", err)
	}
}
