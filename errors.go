package proposalgen

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for proposal generation failure conditions.
var (
	ErrInvalidConfig          = errors.New("proposalgen: invalid proposal configuration")
	ErrTemplateMissing        = errors.New("proposalgen: template file not found")
	ErrFieldNotFound          = errors.New("proposalgen: form field not found")
	ErrImageNotFound          = errors.New("proposalgen: image file not found")
	ErrUnsupportedImageFormat = errors.New("proposalgen: unsupported image format")
	ErrMergeRead              = errors.New("proposalgen: could not read merge input")
	ErrPersistence            = errors.New("proposalgen: persistence failure")
	ErrWriteOutput            = errors.New("proposalgen: could not write output")
	ErrInvalidFileName        = errors.New("proposalgen: invalid file name")
	ErrLeadingPageCount       = errors.New("proposalgen: front page and table of contents must be one page each")
	ErrNotFound               = errors.New("proposalgen: record not found")
)

// GenerationError represents an error that occurred during a specific pipeline step.
// It wraps an underlying error and includes the step name for context.
type GenerationError struct {
	Op  string // pipeline step, e.g. "frontpage", "merge", "store"
	Err error  // underlying error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("proposalgen.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("proposalgen.%s: unknown error", e.Op)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError creates a GenerationError wrapping err with step context.
func NewGenerationError(op string, err error) *GenerationError {
	return &GenerationError{Op: op, Err: err}
}

// ValidationError lists every structural problem found in a proposal configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("proposalgen: invalid proposal configuration: %s", strings.Join(e.Problems, "; "))
}

// Is reports ErrInvalidConfig so callers can match with errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}
