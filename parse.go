package proposalgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// Parse decodes a proposal configuration from JSON or YAML. Input starting
// with '{' or '[' is treated as JSON. The decoded value is normalized and
// validated; validation failures are returned as *ValidationError.
func Parse(data []byte) (*ProposalConfig, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidConfig)
	}

	var v any
	if trimmed[0] == '{' || trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("%w: decoding JSON: %v", ErrInvalidConfig, err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("%w: decoding YAML: %v", ErrInvalidConfig, err)
		}
	}
	return FromValue(v)
}

// ParseFile reads and parses a proposal configuration file.
func ParseFile(path string) (*ProposalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("proposalgen: reading %s: %w", path, err)
	}
	return Parse(data)
}

// FromValue builds a ProposalConfig from an already decoded value, such as
// the result of json.Unmarshal into an any. Each section's Kind is decided
// here.
func FromValue(v any) (*ProposalConfig, error) {
	if problems := Validate(v); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	m := Normalize(v)
	company, _ := lookup(m, "company").(string)
	cfg := &ProposalConfig{Company: strings.TrimSpace(company)}

	templates, _ := lookup(m, "templates").([]any)
	for _, raw := range templates {
		t, _ := raw.(map[string]any)
		cfg.Templates = append(cfg.Templates, decodeTemplate(t))
	}
	return cfg, nil
}

func decodeTemplate(m map[string]any) TemplateSpec {
	var t TemplateSpec
	t.Name, _ = lookup(m, "name").(string)
	t.FileName, _ = lookup(m, "fileName").(string)
	t.Editable, _ = lookup(m, "editable").(bool)
	t.HasImages, _ = lookup(m, "hasImages").(bool)

	switch fv := lookup(m, "fieldValues").(type) {
	case map[string]any:
		t.FieldValues = make(map[string]string, len(fv))
		for k, val := range fv {
			t.FieldValues[k] = fmt.Sprint(val)
		}
	case []any:
		list := stringList(fv)
		if t.Name == MemberAssociationName {
			t.Members = list
		} else {
			t.ImagePaths = list
		}
	}

	if mapping, ok := lookup(m, "imageMapping").(map[string]any); ok {
		t.ImageMapping = make(map[string]string, len(mapping))
		for k, val := range mapping {
			t.ImageMapping[k], _ = val.(string)
		}
	}
	if members, ok := lookup(m, "members").([]any); ok {
		t.Members = append(t.Members, stringList(members)...)
	}
	if staffs, ok := lookup(m, "staffs").([]any); ok {
		for _, raw := range staffs {
			s, _ := raw.(map[string]any)
			var staff Staff
			staff.Name, _ = lookup(s, "name").(string)
			staff.FileName, _ = lookup(s, "fileName").(string)
			t.Staffs = append(t.Staffs, staff)
		}
	}

	t.Kind = t.Classify()
	return t
}

func stringList(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Classify derives the section Kind from the populated fields. Parsed
// configurations are classified already; configurations built in code can
// call ProposalConfig.Classify.
func (t *TemplateSpec) Classify() Kind {
	switch {
	case len(t.Staffs) > 0 || (t.Name == StaffProfilesName && !t.Editable):
		return KindStaffProfiles
	case len(t.Members) > 0 || (t.Name == MemberAssociationName && len(t.FieldValues) == 0 && !t.HasImages):
		return KindMemberAssociation
	case t.Editable && (t.HasImages || len(t.ImageMapping) > 0 || len(t.ImagePaths) > 0):
		return KindImageFill
	case t.Editable:
		return KindFormFill
	default:
		return KindPlain
	}
}

// Classify sets Kind on every section.
func (c *ProposalConfig) Classify() {
	for i := range c.Templates {
		c.Templates[i].Kind = c.Templates[i].Classify()
	}
}

// ResolvedImageMappings returns the image assignments of an image section in
// a stable order: explicit mappings sorted by field name, or positional
// Image{i}_af_image mappings when the section lists image paths.
func (t *TemplateSpec) ResolvedImageMappings() []ImageMapping {
	if len(t.ImageMapping) > 0 {
		names := make([]string, 0, len(t.ImageMapping))
		for name := range t.ImageMapping {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]ImageMapping, 0, len(names))
		for _, name := range names {
			out = append(out, ImageMapping{FieldName: name, ImagePath: t.ImageMapping[name]})
		}
		return out
	}
	return PositionalMappings(t.ImagePaths)
}
