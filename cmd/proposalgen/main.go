// Command proposalgen builds proposal PDFs from a proposal configuration and
// keeps track of their versions.
//
//	proposalgen generate proposal.yaml
//	proposalgen refine --id 3 [proposal.yaml]
//	proposalgen validate proposal.yaml
//	proposalgen check-templates proposal.yaml
//	proposalgen versions --id 3
//	proposalgen status --version 7 approved
//	proposalgen automap images/Gallery
//	proposalgen watch proposal.yaml
//	proposalgen scaffold ./example
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// maxprocs.Set only fails on an invalid GOMAXPROCS, where runtime defaults apply.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// command runs one subcommand.
type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = map[string]command{
	"generate":        {"generate [flags] <config>", "build a proposal and record version 1", runGenerate},
	"refine":          {"refine [flags] --id N [config]", "build the next version of a proposal", runRefine},
	"validate":        {"validate [flags] <config>", "check a proposal configuration", runValidate},
	"check-templates": {"check-templates [flags] <config>", "list template files the configuration needs but lacks", runCheckTemplates},
	"versions":        {"versions [flags] [--id N]", "list proposals, or the versions of one proposal", runVersions},
	"status":          {"status [flags] --version N <status>", "change the review status of a version", runStatus},
	"automap":         {"automap [flags] <dir>", "show how the images of a directory map to image fields", runAutomap},
	"watch":           {"watch [flags] <config>", "regenerate whenever the configuration or a template changes", runWatch},
	"scaffold":        {"scaffold [flags] <dir>", "write sample templates and configuration", runScaffold},
}

var commandOrder = []string{"generate", "refine", "validate", "check-templates", "versions", "status", "automap", "watch", "scaffold"}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return ExitUsage
	}

	name, rest := args[0], args[1:]
	switch name {
	case "help", "-h", "--help":
		printUsage(stdout)
		return ExitSuccess
	case "version", "--version":
		fmt.Fprintf(stdout, "proposalgen %s\n", Version)
		return ExitSuccess
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "proposalgen: unknown command %q\n\n", name)
		printUsage(stderr)
		return ExitUsage
	}

	err := cmd.run(ctx, rest, stdout, stderr)
	code := exitCodeFor(err)
	if code != ExitSuccess {
		fmt.Fprintf(stderr, "proposalgen %s: %v\n", name, err)
	}
	return code
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: proposalgen <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands[name].help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'proposalgen <command> --help' for the flags of a command.")
}
