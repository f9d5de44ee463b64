package proposalgen

import (
	"maps"
	"slices"
	"strings"
)

// Normalize unwraps the shapes a proposal configuration arrives in and
// returns the configuration object itself. Recognized wrappers are
// [{config:{...}}], {JSON:{config:{...}}}, {config:{...}} and the bare
// object. When none match, the value is searched recursively for an object
// carrying Company or Templates keys. Returns nil if nothing was found.
func Normalize(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		if len(t) > 0 {
			if first, ok := t[0].(map[string]any); ok {
				if cfg, ok := lookup(first, "config").(map[string]any); ok {
					return cfg
				}
			}
		}
	case map[string]any:
		if wrapper, ok := lookup(t, "JSON").(map[string]any); ok {
			if cfg, ok := lookup(wrapper, "config").(map[string]any); ok {
				return cfg
			}
		}
		if cfg, ok := lookup(t, "config").(map[string]any); ok {
			return cfg
		}
		if isConfigObject(t) {
			return t
		}
	}

	if found := findConfigObject(v); found != nil {
		return found
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// findConfigObject walks maps and arrays depth-first looking for an object
// that carries Company or Templates. Object keys are visited in sorted order
// so the same input always yields the same object.
func findConfigObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if isConfigObject(t) {
			return t
		}
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if found := findConfigObject(t[k]); found != nil {
				return found
			}
		}
	case []any:
		for _, child := range t {
			if found := findConfigObject(child); found != nil {
				return found
			}
		}
	}
	return nil
}

func isConfigObject(m map[string]any) bool {
	_, hasCompany := lookupOK(m, "company")
	_, hasTemplates := lookupOK(m, "templates")
	return hasCompany || hasTemplates
}

// lookup returns the value for key, matching key names case-insensitively
// when there is no exact match.
func lookup(m map[string]any, key string) any {
	v, _ := lookupOK(m, key)
	return v
}

func lookupOK(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if strings.EqualFold(k, key) {
			return m[k], true
		}
	}
	return nil, false
}
