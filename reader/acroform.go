package reader

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/lvillar/proposalgen"
)

// Field types as they appear in /FT.
const (
	TypeText   = "Tx"
	TypeButton = "Btn"
	TypeChoice = "Ch"
)

// FormField represents a form field parsed from a PDF's AcroForm dictionary.
type FormField struct {
	Name     string       // partial field name (/T)
	FullName string       // fully qualified dotted name
	Type     string       // field type: "Tx", "Btn", "Ch", "Sig"
	Value    string       // current value (/V)
	Flags    int          // field flags (/Ff)
	Rect     Rectangle    // widget annotation rectangle, zero if the field has no widget of its own
	Page     int          // 0-based index of the page holding the widget
	Kids     []*FormField // child fields and widgets
	ObjNum   int          // object number if from an indirect object
	DA       string       // default appearance string
}

// IsReadOnly returns true if the field has the ReadOnly flag set (bit 1).
func (f *FormField) IsReadOnly() bool { return f.Flags&1 != 0 }

// IsPushButton returns true for button fields with the Pushbutton flag (bit 17).
func (f *FormField) IsPushButton() bool { return f.Type == TypeButton && f.Flags&(1<<16) != 0 }

// Widget returns the first widget of the field: the field itself when it
// carries a rectangle, otherwise the first descendant that does.
func (f *FormField) Widget() *FormField {
	if f.Rect.Width() > 0 && f.Rect.Height() > 0 {
		return f
	}
	for _, k := range f.Kids {
		if w := k.Widget(); w != nil {
			return w
		}
	}
	return nil
}

// FormFields returns all top-level form fields of the document's AcroForm.
// Returns an empty slice (not nil) if no AcroForm is present.
func (d *Document) FormFields() ([]*FormField, error) {
	catalog := d.ctx.RootDict
	if catalog == nil {
		return []*FormField{}, nil
	}
	acroObj, ok := catalog.Find("AcroForm")
	if !ok {
		return []*FormField{}, nil
	}
	acroDict, err := d.ctx.DereferenceDict(acroObj)
	if err != nil {
		return nil, fmt.Errorf("reader: resolving AcroForm: %w", err)
	}
	if acroDict == nil {
		return []*FormField{}, nil
	}
	fieldsObj, ok := acroDict.Find("Fields")
	if !ok {
		return []*FormField{}, nil
	}
	fieldsArr, err := d.ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("reader: resolving AcroForm /Fields: %w", err)
	}

	pageByObj, pageByAnnot := d.pageIndex()
	fields := make([]*FormField, 0, len(fieldsArr))
	for _, obj := range fieldsArr {
		f, err := d.parseFormField(obj, "", "", pageByObj, pageByAnnot, 0)
		if err != nil {
			continue
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// AllFields returns every field and widget in the document, parents before
// their kids.
func (d *Document) AllFields() ([]*FormField, error) {
	fields, err := d.FormFields()
	if err != nil {
		return nil, err
	}
	return Flatten(fields), nil
}

// Flatten returns a flat list of all form fields, recursing into kids.
func Flatten(fields []*FormField) []*FormField {
	var result []*FormField
	for _, f := range fields {
		result = append(result, f)
		if len(f.Kids) > 0 {
			result = append(result, Flatten(f.Kids)...)
		}
	}
	return result
}

// LookupField finds a field by name. Text fields are preferred, then
// buttons, then any field whose full or partial name matches. The error
// wraps proposalgen.ErrFieldNotFound when nothing matches.
func (d *Document) LookupField(name string) (*FormField, error) {
	all, err := d.AllFields()
	if err != nil {
		return nil, err
	}
	if f := FindField(all, name); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q", proposalgen.ErrFieldNotFound, name)
}

// FindField applies the LookupField search order to an already flattened
// field list.
func FindField(all []*FormField, name string) *FormField {
	for _, kind := range []string{TypeText, TypeButton} {
		for _, f := range all {
			if f.FullName == name && f.Type == kind {
				return f
			}
		}
	}
	for _, f := range all {
		if f.FullName == name || f.Name == name {
			return f
		}
	}
	return nil
}

// pageIndex maps page object numbers and annotation object numbers to
// 0-based page indexes.
func (d *Document) pageIndex() (byObj, byAnnot map[int]int) {
	byObj = make(map[int]int, len(d.pages))
	byAnnot = make(map[int]int)
	for i, p := range d.pages {
		if p.objNum > 0 {
			byObj[p.objNum] = i
		}
		for _, a := range p.annots {
			byAnnot[a] = i
		}
	}
	return byObj, byAnnot
}

// parseFormField parses a single form field dictionary.
func (d *Document) parseFormField(obj types.Object, parentName, parentType string, byObj, byAnnot map[int]int, depth int) (*FormField, error) {
	if depth > 32 {
		return nil, fmt.Errorf("reader: form field tree too deep")
	}

	field := &FormField{Type: parentType}
	if ref, ok := obj.(types.IndirectRef); ok {
		field.ObjNum = ref.ObjectNumber.Value()
	}

	dict, err := d.ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return nil, fmt.Errorf("reader: form field is not a dictionary")
	}

	if t, ok := dict.Find("T"); ok {
		field.Name = d.text(t)
	}
	switch {
	case parentName != "" && field.Name != "":
		field.FullName = parentName + "." + field.Name
	case field.Name != "":
		field.FullName = field.Name
	default:
		field.FullName = parentName
	}

	if ft := dict.NameEntry("FT"); ft != nil {
		field.Type = *ft
	}
	if v, ok := dict.Find("V"); ok {
		field.Value = d.valueString(v)
	}
	if da, ok := dict.Find("DA"); ok {
		field.DA = d.text(da)
	}
	if ff, ok := dict.Find("Ff"); ok {
		if n, ok := d.number(ff); ok {
			field.Flags = int(n)
		}
	}
	if rectObj, ok := dict.Find("Rect"); ok {
		if rect, ok := d.rectangle(rectObj); ok {
			field.Rect = rect
		}
	}

	field.Page = d.owningPage(dict, field.ObjNum, byObj, byAnnot)

	if kidsObj, ok := dict.Find("Kids"); ok {
		if kids, err := d.ctx.DereferenceArray(kidsObj); err == nil {
			for _, kidObj := range kids {
				kid, err := d.parseFormField(kidObj, field.FullName, field.Type, byObj, byAnnot, depth+1)
				if err != nil {
					continue
				}
				field.Kids = append(field.Kids, kid)
			}
		}
	}
	return field, nil
}

// owningPage resolves the page of a widget by its /P reference, then by
// scanning page /Annots arrays, and finally falls back to the first page.
func (d *Document) owningPage(dict types.Dict, objNum int, byObj, byAnnot map[int]int) int {
	if p, ok := dict.Find("P"); ok {
		if ref, ok := p.(types.IndirectRef); ok {
			if idx, ok := byObj[ref.ObjectNumber.Value()]; ok {
				return idx
			}
		}
	}
	if objNum > 0 {
		if idx, ok := byAnnot[objNum]; ok {
			return idx
		}
	}
	return 0
}

// valueString converts a field value object to its display string.
func (d *Document) valueString(obj types.Object) string {
	resolved, err := d.ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	switch v := resolved.(type) {
	case types.StringLiteral, types.HexLiteral:
		return d.text(v)
	case types.Name:
		return string(v)
	case types.Integer:
		return fmt.Sprintf("%d", int(v))
	case types.Float:
		return fmt.Sprintf("%g", float64(v))
	case types.Boolean:
		if v {
			return "true"
		}
		return "false"
	}
	return ""
}

// text decodes a string object, resolving references first.
func (d *Document) text(obj types.Object) string {
	resolved, err := d.ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	switch s := resolved.(type) {
	case types.StringLiteral:
		return decodePDFString(unescapeLiteral(string(s)))
	case types.HexLiteral:
		return decodePDFString(unhexLiteral(string(s)))
	}
	return ""
}
