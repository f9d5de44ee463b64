// Package toc renders the single table-of-contents page of a proposal.
//
// Entries are laid out in two columns, alternating left and right in list
// order, one row per increment. Titles that do not fit their column are
// shortened with an ellipsis, a dot leader fills the gap up to the
// right-aligned page number, and rendering stops once both columns pass the
// bottom floor. There is no pagination: entries that do not fit are dropped
// and reported in the Layout.
package toc

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/reader"
)

// Page geometry in points, A4 portrait.
const (
	PageWidth  = reader.A4Width
	PageHeight = reader.A4Height

	LeftX       = 50.0
	RightX      = 310.0
	ColumnWidth = 235.0
	StartY      = 140.0
	RowHeight   = 24.0
	Floor       = PageHeight - 80

	TitleY       = 80.0
	TitleSize    = 20.0
	EntrySize    = 11.0
	MinTitleLen  = 10
	leaderGap    = 4.0
	minLeaderDot = 3
	ellipsis     = "..."
)

// Column identifies the left or right column.
type Column int

const (
	Left Column = iota
	Right
)

func (c Column) String() string {
	if c == Right {
		return "right"
	}
	return "left"
}

// Placement is where one entry was drawn. X and Y are the baseline origin
// of the title.
type Placement struct {
	Entry  proposalgen.TOCEntry
	Column Column
	X, Y   float64
	Title  string // displayed title, possibly truncated
	Dots   int    // length of the dot leader
}

// Layout reports what Render drew.
type Layout struct {
	Placed  []Placement
	Dropped []proposalgen.TOCEntry
}

// Options configure the page. The zero value is usable.
type Options struct {
	Heading string         // page heading, "Table of Contents" when empty
	Log     *logger.Logger // receives a warning when entries are dropped
}

// Render writes the table-of-contents page for entries to w.
func Render(w io.Writer, entries []proposalgen.TOCEntry, opts Options) (Layout, error) {
	heading := opts.Heading
	if heading == "" {
		heading = "Table of Contents"
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator("proposalgen", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: PageWidth, Ht: PageHeight})

	pdf.SetFont("Helvetica", "B", TitleSize)
	pdf.SetTextColor(0, 0, 0)
	hw := pdf.GetStringWidth(tr(heading))
	pdf.Text((PageWidth-hw)/2, TitleY, tr(heading))

	pdf.SetFont("Helvetica", "", EntrySize)
	layout := place(entries, func(s string) float64 { return pdf.GetStringWidth(tr(s)) })
	for _, p := range layout.Placed {
		drawEntry(pdf, tr, p)
	}

	if len(layout.Dropped) > 0 {
		opts.Log.Warnf("table of contents full: %d of %d entries dropped", len(layout.Dropped), len(entries))
	}

	if pdf.Err() {
		return layout, fmt.Errorf("toc: %w", pdf.Error())
	}
	if err := pdf.Output(w); err != nil {
		return layout, fmt.Errorf("toc: writing PDF: %w", err)
	}
	return layout, nil
}

// RenderFile renders the page to path.
func RenderFile(path string, entries []proposalgen.TOCEntry, opts Options) (Layout, error) {
	var layout Layout
	err := fileutil.WriteFileAtomic(path, func(f *os.File) error {
		var err error
		layout, err = Render(f, entries, opts)
		return err
	})
	if err != nil {
		return layout, fmt.Errorf("%w: %w", proposalgen.ErrWriteOutput, err)
	}
	return layout, nil
}

// place computes the placement of every entry. width measures a string at
// the entry font size.
func place(entries []proposalgen.TOCEntry, width func(string) float64) Layout {
	var layout Layout
	y := [2]float64{StartY, StartY}
	leftOpen := true
	next := Left
	dotW := width(".")

	for i, e := range entries {
		col := next
		if col == Left && y[Left] > Floor {
			leftOpen = false
			col = Right
		}
		if col == Right && y[Right] > Floor {
			if leftOpen && y[Left] <= Floor {
				col = Left
			} else {
				layout.Dropped = append(layout.Dropped, entries[i:]...)
				break
			}
		}

		x := LeftX
		if col == Right {
			x = RightX
		}
		num := strconv.Itoa(e.Page)
		numW := width(num)
		title := fitTitle(e.Title, ColumnWidth-numW-2*leaderGap-minLeaderDot*dotW, width)
		space := ColumnWidth - width(title) - numW - 2*leaderGap
		dots := 0
		if space > 0 && dotW > 0 {
			dots = int(space / dotW)
		}

		layout.Placed = append(layout.Placed, Placement{
			Entry:  e,
			Column: col,
			X:      x,
			Y:      y[col],
			Title:  title,
			Dots:   dots,
		})
		y[col] += RowHeight

		if leftOpen {
			next = 1 - col
		} else {
			next = Right
		}
	}
	return layout
}

// fitTitle shortens title one rune at a time, appending an ellipsis, until
// it fits avail. At least MinTitleLen runes are kept.
func fitTitle(title string, avail float64, width func(string) float64) string {
	if width(title) <= avail {
		return title
	}
	runes := []rune(title)
	for n := len(runes) - 1; n >= MinTitleLen; n-- {
		s := string(runes[:n]) + ellipsis
		if width(s) <= avail || n == MinTitleLen {
			return s
		}
	}
	return title
}

func drawEntry(pdf *gofpdf.Fpdf, tr func(string) string, p Placement) {
	num := strconv.Itoa(p.Entry.Page)
	title := tr(p.Title)
	pdf.Text(p.X, p.Y, title)

	if p.Dots > 0 {
		pdf.SetTextColor(120, 120, 120)
		pdf.Text(p.X+pdf.GetStringWidth(title)+leaderGap, p.Y, strings.Repeat(".", p.Dots))
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.Text(p.X+ColumnWidth-pdf.GetStringWidth(num), p.Y, num)
}
