package form

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/reader"
)

var (
	// currentValue matches a /V entry: a literal string (escapes allowed)
	// or a name, optionally followed by the /AS appearance state.
	currentValue = regexp.MustCompile(`/V\s*(?:\((?:\\.|[^\\)])*\)|/[A-Za-z0-9#]+(?:\s*/AS\s*/[A-Za-z0-9#]+)?)`)
	objectHeader = regexp.MustCompile(`(?m)^(\d+)\s+(\d+)\s+obj\b`)
	xrefKeyword  = regexp.MustCompile(`(?m)^xref\s*$`)
)

// Fill sets the /V entry of the named fields and writes the PDF to output.
// Unlike ProcessTemplate the form stays interactive, which suits documents
// a client completes later. Every name must match a field's full or
// partial name; an unknown name fails the fill with ErrFieldNotFound.
func Fill(input io.ReadSeeker, output io.Writer, values map[string]string) error {
	if len(values) == 0 {
		if _, err := input.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("form: seeking input: %w", err)
		}
		_, err := io.Copy(output, input)
		return err
	}

	data, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("form: reading input: %w", err)
	}
	doc, err := reader.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("form: parsing PDF: %w", err)
	}
	all, err := doc.AllFields()
	if err != nil {
		return fmt.Errorf("form: reading form fields: %w", err)
	}
	if len(all) == 0 {
		return fmt.Errorf("form: %w: the PDF has no form", proposalgen.ErrFieldNotFound)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make([]*reader.FormField, len(names))
	for i, name := range names {
		if targets[i] = reader.FindField(all, name); targets[i] == nil {
			return fmt.Errorf("form: %w: %q", proposalgen.ErrFieldNotFound, name)
		}
	}

	p := &patch{data: append([]byte(nil), data...)}
	for i, f := range targets {
		if !p.setValue(f, values[names[i]]) {
			return fmt.Errorf("form: field %q is not stored as a plain object", names[i])
		}
	}
	p.reindex()

	_, err = output.Write(p.data)
	return err
}

// FillFile is Fill between two files. The output is replaced atomically.
func FillFile(inputPath, outputPath string, values map[string]string) error {
	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("form: opening %s: %w", inputPath, err)
	}
	defer input.Close()

	return fileutil.WriteFileAtomic(outputPath, func(out *os.File) error {
		return Fill(input, out, values)
	})
}

// patch edits the bytes of an uncompressed PDF. Edits shift object offsets,
// so reindex must run once all of them are done.
type patch struct {
	data []byte
}

// setValue writes value into the dictionary of f, replacing any current
// value. It reports false when the dictionary cannot be located.
func (p *patch) setValue(f *reader.FormField, value string) bool {
	start, end, ok := p.fieldDict(f)
	if !ok {
		return false
	}

	var entry string
	if f.Type == reader.TypeButton {
		state := "Off"
		if isOn(value) {
			state = "Yes"
		}
		entry = fmt.Sprintf("/V /%s /AS /%s", state, state)
	} else {
		entry = fmt.Sprintf("/V (%s)", escapePDFString(value))
	}

	if loc := currentValue.FindIndex(p.data[start:end]); loc != nil {
		p.data = splice(p.data, start+loc[0], start+loc[1], []byte(entry))
	} else {
		p.data = splice(p.data, end-2, end-2, []byte(" "+entry+" "))
	}
	return true
}

// fieldDict returns the byte range of the dictionary defining f, ">>"
// included. The latest definition of its indirect object wins; direct
// objects are found by their /T entry.
func (p *patch) fieldDict(f *reader.FormField) (start, end int, ok bool) {
	if f.ObjNum > 0 {
		header := regexp.MustCompile(fmt.Sprintf(`(?m)^%d\s+\d+\s+obj\b`, f.ObjNum))
		if locs := header.FindAllIndex(p.data, -1); len(locs) > 0 {
			body := locs[len(locs)-1][1]
			if open := bytes.Index(p.data[body:], []byte("<<")); open >= 0 {
				start = body + open
				if closing := findDictEnd(p.data, start+2); closing >= 0 {
					return start, closing + 2, true
				}
			}
		}
	}

	name := escapePDFString(f.Name)
	for _, key := range []string{"/T (" + name + ")", "/T(" + name + ")"} {
		at := bytes.Index(p.data, []byte(key))
		if at < 0 {
			continue
		}
		start, closing := findDictStart(p.data, at), findDictEnd(p.data, at)
		if start >= 0 && closing >= 0 {
			return start, closing + 2, true
		}
	}
	return 0, 0, false
}

// reindex rewrites the classic cross-reference table from the object
// headers found in the body. Files without one are left as they are.
func (p *patch) reindex() {
	xrefs := xrefKeyword.FindAllIndex(p.data, -1)
	if len(xrefs) == 0 {
		return
	}
	xrefAt := xrefs[len(xrefs)-1][0]

	rel := bytes.Index(p.data[xrefAt:], []byte("trailer"))
	if rel < 0 {
		return
	}
	open := bytes.Index(p.data[xrefAt+rel:], []byte("<<"))
	if open < 0 {
		return
	}
	dictStart := xrefAt + rel + open
	dictEnd := findDictEnd(p.data, dictStart+2)
	if dictEnd < 0 {
		return
	}
	trailer := append([]byte(nil), p.data[dictStart:dictEnd+2]...)

	type entry struct{ offset, gen int }
	entries := map[int]entry{}
	maxNum := 0
	for _, m := range objectHeader.FindAllSubmatchIndex(p.data[:xrefAt], -1) {
		num, _ := strconv.Atoi(string(p.data[m[2]:m[3]]))
		gen, _ := strconv.Atoi(string(p.data[m[4]:m[5]]))
		entries[num] = entry{offset: m[0], gen: gen}
		maxNum = max(maxNum, num)
	}

	var out bytes.Buffer
	out.Grow(xrefAt + 20*(maxNum+1) + len(trailer) + 64)
	out.Write(p.data[:xrefAt])
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", maxNum+1)
	for num := 1; num <= maxNum; num++ {
		if e, ok := entries[num]; ok {
			fmt.Fprintf(&out, "%010d %05d n \n", e.offset, e.gen)
		} else {
			out.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&out, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xrefAt)
	p.data = out.Bytes()
}

func splice(data []byte, from, to int, repl []byte) []byte {
	out := make([]byte, 0, len(data)-(to-from)+len(repl))
	out = append(out, data[:from]...)
	out = append(out, repl...)
	return append(out, data[to:]...)
}

// findDictStart searches backward from pos for the "<<" opening the
// dictionary that contains pos.
func findDictStart(data []byte, pos int) int {
	depth := 0
	for i := pos - 1; i > 0; i-- {
		switch {
		case data[i] == '>' && i+1 < len(data) && data[i+1] == '>':
			depth++
		case data[i] == '<' && data[i-1] == '<':
			if depth == 0 {
				return i - 1
			}
			depth--
			i--
		}
	}
	return -1
}

// findDictEnd searches forward from pos, which lies inside a dictionary, for
// the ">>" that closes it.
func findDictEnd(data []byte, pos int) int {
	depth := 0
	for i := pos; i < len(data)-1; i++ {
		switch {
		case data[i] == '<' && data[i+1] == '<':
			depth++
			i++
		case data[i] == '>' && data[i+1] == '>':
			if depth == 0 {
				return i
			}
			depth--
			i++
		}
	}
	return -1
}
