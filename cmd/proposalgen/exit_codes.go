package main

import (
	"errors"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/config"
	"github.com/lvillar/proposalgen/store"
)

// Exit codes for the proposalgen CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess     = 0 // Successful run
	ExitGeneral     = 1 // General/unexpected error
	ExitUsage       = 2 // Invalid flags, config, or validation
	ExitIO          = 3 // Missing templates, unreadable inputs, failed writes
	ExitPersistence = 4 // Database errors
)

// ErrUsage marks command-line mistakes.
var ErrUsage = errors.New("usage error")

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}

	// Persistence errors (exit 4)
	if errors.Is(err, proposalgen.ErrPersistence) ||
		errors.Is(err, proposalgen.ErrNotFound) {
		return ExitPersistence
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, proposalgen.ErrInvalidConfig) ||
		errors.Is(err, proposalgen.ErrInvalidFileName) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, store.ErrInvalidStatus) {
		return ExitUsage
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, proposalgen.ErrTemplateMissing) ||
		errors.Is(err, proposalgen.ErrImageNotFound) ||
		errors.Is(err, proposalgen.ErrMergeRead) ||
		errors.Is(err, proposalgen.ErrWriteOutput) {
		return ExitIO
	}

	return ExitGeneral
}
