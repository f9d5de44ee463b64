package toc

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lvillar/proposalgen"
)

// runeWidth measures every rune as 5pt wide.
func runeWidth(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * 5
}

func entries(n int) []proposalgen.TOCEntry {
	out := make([]proposalgen.TOCEntry, n)
	for i := range out {
		out[i] = proposalgen.TOCEntry{Title: fmt.Sprintf("Section %d", i+1), Page: i + 1}
	}
	return out
}

func TestPlaceInterleaves(t *testing.T) {
	layout := place(entries(5), runeWidth)
	if len(layout.Placed) != 5 || len(layout.Dropped) != 0 {
		t.Fatalf("placed %d, dropped %d", len(layout.Placed), len(layout.Dropped))
	}

	want := []struct {
		col Column
		y   float64
	}{
		{Left, StartY},
		{Right, StartY},
		{Left, StartY + RowHeight},
		{Right, StartY + RowHeight},
		{Left, StartY + 2*RowHeight},
	}
	for i, w := range want {
		p := layout.Placed[i]
		if p.Column != w.col || p.Y != w.y {
			t.Errorf("entry %d: %s at %.1f, want %s at %.1f", i, p.Column, p.Y, w.col, w.y)
		}
		if p.Entry.Page != i+1 {
			t.Errorf("entry %d page = %d", i, p.Entry.Page)
		}
	}
	if layout.Placed[1].X != RightX || layout.Placed[0].X != LeftX {
		t.Errorf("column x = %.1f / %.1f", layout.Placed[0].X, layout.Placed[1].X)
	}
}

func TestPlaceStopsAtFloor(t *testing.T) {
	rows := 0
	for y := StartY; y <= Floor; y += RowHeight {
		rows++
	}
	capacity := 2 * rows

	layout := place(entries(capacity+8), runeWidth)
	if len(layout.Placed) != capacity {
		t.Errorf("placed %d, want %d", len(layout.Placed), capacity)
	}
	if len(layout.Dropped) != 8 {
		t.Fatalf("dropped %d, want 8", len(layout.Dropped))
	}
	if layout.Dropped[0].Page != capacity+1 {
		t.Errorf("first dropped entry = %+v", layout.Dropped[0])
	}
	for _, p := range layout.Placed {
		if p.Y > Floor {
			t.Errorf("entry %q placed below the floor at %.1f", p.Entry.Title, p.Y)
		}
	}
}

func TestPlaceDotLeader(t *testing.T) {
	layout := place([]proposalgen.TOCEntry{{Title: "Intro", Page: 12}}, runeWidth)
	p := layout.Placed[0]
	// 235 - 25 (title) - 10 (number) - 8 (gaps) = 192, 38 dots of 5pt.
	if p.Dots != 38 {
		t.Errorf("dots = %d, want 38", p.Dots)
	}
	if p.Title != "Intro" {
		t.Errorf("title = %q", p.Title)
	}
}

func TestFitTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		avail float64
		want  string
	}{
		{"fits", "Executive Summary", 200, "Executive Summary"},
		{"shrinks", "Executive Summary And Overview", 100, "Executive Summary..."},
		{"minimum length", strings.Repeat("x", 40), 20, strings.Repeat("x", MinTitleLen) + "..."},
		{"short title kept", "Short", 10, "Short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fitTitle(tt.title, tt.avail, runeWidth)
			if got != tt.want {
				t.Errorf("fitTitle(%q, %.0f) = %q, want %q", tt.title, tt.avail, got, tt.want)
			}
		})
	}
}
