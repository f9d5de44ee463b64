package proposalgen

import (
	"fmt"
	"strings"
)

// Validate checks the structure of a proposal configuration and returns
// every problem found. An empty result means the configuration is valid.
//
// The input is normalized first, so any of the wrapper shapes accepted by
// Normalize may be passed. Validate never touches the filesystem.
func Validate(v any) []string {
	cfg := Normalize(v)
	if cfg == nil {
		return []string{"configuration must be an object"}
	}

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	company, ok := lookup(cfg, "company").(string)
	if !ok || strings.TrimSpace(company) == "" {
		add("company is required and must be a non-empty string")
	}

	templates, ok := lookup(cfg, "templates").([]any)
	if !ok || len(templates) == 0 {
		add("templates is required and must be a non-empty array")
		return problems
	}

	for i, raw := range templates {
		t, ok := raw.(map[string]any)
		if !ok {
			add("templates[%d] must be an object", i)
			continue
		}
		problems = append(problems, validateTemplate(i, t)...)
	}
	return problems
}

func validateTemplate(i int, t map[string]any) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("templates[%d]", i)+fmt.Sprintf(format, args...))
	}

	name, nameOK := lookup(t, "name").(string)
	if !nameOK || name == "" {
		add(".name is required and must be a string")
	}
	if fn, ok := lookup(t, "fileName").(string); !ok || fn == "" {
		add(".fileName is required and must be a string")
	} else if !LocalFileName(fn) {
		add(".fileName %q must be a file name without directories", fn)
	}

	editable, editableOK := lookup(t, "editable").(bool)
	if !editableOK {
		add(".editable is required and must be a boolean")
	}

	hasImages := false
	if raw, present := lookupOK(t, "hasImages"); present {
		b, ok := raw.(bool)
		if !ok {
			add(".hasImages must be a boolean")
		}
		hasImages = b
	}

	fieldValues, fvPresent := lookupOK(t, "fieldValues")
	switch fv := fieldValues.(type) {
	case nil:
		_, hasMembers := lookupOK(t, "members")
		if editable && !hasImages && !hasMembers {
			add(".fieldValues is required when editable is true")
		}
	case map[string]any:
		for k, val := range fv {
			if !isScalar(val) {
				add(".fieldValues[%q] must be a string, number or boolean", k)
			}
		}
	case []any:
		for j, val := range fv {
			if _, ok := val.(string); !ok {
				add(".fieldValues[%d] must be a string", j)
			}
		}
	default:
		add(".fieldValues must be an object or an array")
	}

	if raw, present := lookupOK(t, "imageMapping"); present {
		m, ok := raw.(map[string]any)
		if !ok {
			add(".imageMapping must be an object")
		}
		for k, val := range m {
			if _, ok := val.(string); !ok {
				add(".imageMapping[%q] must be a string", k)
			}
		}
	}

	_, staffsPresent := lookupOK(t, "staffs")
	if staffsPresent {
		staffs, ok := lookup(t, "staffs").([]any)
		if !ok {
			add(".staffs must be an array")
		}
		for j, raw := range staffs {
			s, ok := raw.(map[string]any)
			if !ok {
				add(".staffs[%d] must be an object", j)
				continue
			}
			if n, ok := lookup(s, "name").(string); !ok || n == "" {
				add(".staffs[%d].name is required", j)
			}
			if fn, ok := lookup(s, "fileName").(string); !ok || fn == "" {
				add(".staffs[%d].fileName is required", j)
			} else if !LocalFileName(fn) {
				add(".staffs[%d].fileName %q must be a file name without directories", j, fn)
			}
		}
	}

	_, membersPresent := lookupOK(t, "members")
	if membersPresent {
		members, ok := lookup(t, "members").([]any)
		if !ok {
			add(".members must be an array")
		}
		for j, raw := range members {
			if _, ok := raw.(string); !ok {
				add(".members[%d] must be a string", j)
			}
		}
	}
	_, fvIsList := fieldValues.([]any)
	if name == MemberAssociationName && fvPresent && fvIsList {
		membersPresent = true
	}

	tags := 0
	for _, present := range []bool{staffsPresent, membersPresent, hasImages} {
		if present {
			tags++
		}
	}
	if tags > 1 {
		add(" is ambiguous: only one of staffs, members and hasImages may be set")
	}
	if hasImages && editableOK && !editable {
		add(".hasImages requires editable to be true")
	}
	if staffsPresent && editable {
		add(".staffs cannot be used on an editable section")
	}
	return problems
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int64, uint64, int32, uint32:
		return true
	}
	return false
}

// Check validates a configuration that was built in code rather than
// parsed. It applies the same rules as Validate to the typed fields.
func (c *ProposalConfig) Check() error {
	var problems []string
	if c == nil {
		return &ValidationError{Problems: []string{"configuration is nil"}}
	}
	if strings.TrimSpace(c.Company) == "" {
		problems = append(problems, "company is required and must be a non-empty string")
	}
	if len(c.Templates) == 0 {
		problems = append(problems, "templates is required and must be a non-empty array")
	}
	for i, t := range c.Templates {
		if t.Name == "" {
			problems = append(problems, fmt.Sprintf("templates[%d].name is required and must be a string", i))
		}
		if t.FileName == "" {
			problems = append(problems, fmt.Sprintf("templates[%d].fileName is required and must be a string", i))
		} else if !LocalFileName(t.FileName) {
			problems = append(problems, fmt.Sprintf("templates[%d].fileName %q must be a file name without directories", i, t.FileName))
		}
		if t.HasImages && !t.Editable {
			problems = append(problems, fmt.Sprintf("templates[%d].hasImages requires editable to be true", i))
		}
		if len(t.Staffs) > 0 && t.Editable {
			problems = append(problems, fmt.Sprintf("templates[%d].staffs cannot be used on an editable section", i))
		}
		for j, s := range t.Staffs {
			if s.Name == "" || s.FileName == "" {
				problems = append(problems, fmt.Sprintf("templates[%d].staffs[%d] requires name and fileName", i, j))
			} else if !LocalFileName(s.FileName) {
				problems = append(problems, fmt.Sprintf("templates[%d].staffs[%d].fileName %q must be a file name without directories", i, j, s.FileName))
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
