package proposalgen

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MaxFileNameBase is the longest base name, without extension, that
// SanitizeFilename produces.
const MaxFileNameBase = 96

const defaultFileNameBase = "proposal"

var validOutputName = regexp.MustCompile(`^[A-Za-z0-9._-]+\.pdf$`)

// SanitizeFilename turns an arbitrary string into a safe output file name.
// Spaces become underscores, characters outside [A-Za-z0-9._-] are dropped,
// leading dots, dashes and underscores are trimmed, the base is capped at
// MaxFileNameBase characters and the result always ends in ".pdf".
// Applying it twice gives the same result as applying it once.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(strings.ToLower(s), ".pdf") {
		s = s[:len(s)-len(".pdf")]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	base := strings.TrimLeft(b.String(), "._-")
	if len(base) > MaxFileNameBase {
		base = base[:MaxFileNameBase]
	}
	base = strings.TrimRight(base, ".")
	if base == "" {
		base = defaultFileNameBase
	}
	return base + ".pdf"
}

// ValidOutputFileName reports whether name can be used verbatim as an
// output file name: a single path element made of safe characters with a
// ".pdf" extension.
func ValidOutputFileName(name string) bool {
	if strings.HasPrefix(name, ".") || strings.Contains(name, "..") {
		return false
	}
	return validOutputName.MatchString(name)
}

// LocalFileName reports whether name is a bare file name that stays inside
// the directory it is joined to. Template and staff file names must be.
func LocalFileName(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return false
	}
	return filepath.IsLocal(name) && filepath.Base(name) == name
}
