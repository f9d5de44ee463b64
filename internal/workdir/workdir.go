// Package workdir manages the run-scoped directory that holds intermediate
// PDFs of one generation run. Every run gets its own directory named after a
// fresh run id, so concurrent runs never share temp files.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// TempPrefix marks intermediate artifacts inside a run directory.
const TempPrefix = "temp_"

// Dir is one run's temp namespace.
type Dir struct {
	RunID string
	Path  string
}

// New creates <base>/<runID> with a new random run id.
func New(base string) (*Dir, error) {
	if base == "" {
		base = os.TempDir()
	}
	runID := uuid.New().String()
	path := filepath.Join(base, runID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("workdir: creating %s: %w", path, err)
	}
	return &Dir{RunID: runID, Path: path}, nil
}

// Temp returns the path of a temp artifact named after name. The file is not
// created.
func (d *Dir) Temp(name string) string {
	name = strings.ReplaceAll(filepath.Base(name), " ", "_")
	return filepath.Join(d.Path, TempPrefix+name)
}

// Owns reports whether path is a temp artifact of this run.
func (d *Dir) Owns(path string) bool {
	rel, err := filepath.Rel(d.Path, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return IsTemp(path)
}

// Cleanup removes the run directory and everything in it.
func (d *Dir) Cleanup() error {
	if d == nil || d.Path == "" {
		return nil
	}
	return os.RemoveAll(d.Path)
}

// IsTemp reports whether path names an intermediate artifact.
func IsTemp(path string) bool {
	return strings.HasPrefix(filepath.Base(path), TempPrefix)
}
