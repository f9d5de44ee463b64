// Command proposal-mcp is an MCP (Model Context Protocol) server that exposes
// proposal generation to AI assistants over stdio.
//
// # Configuration for an MCP client
//
//	{
//	  "mcpServers": {
//	    "proposals": {
//	      "command": "proposal-mcp",
//	      "args": ["--config", "/path/to/proposalgen.yaml"]
//	    }
//	  }
//	}
//
// # Available Tools
//
//   - generate_proposal: Build a proposal and record version 1
//   - refine_proposal: Build the next version of a proposal
//   - validate_config: Check a proposal configuration
//   - check_templates: Report template files a configuration lacks
//   - auto_map_images: Map the images of a directory to image fields
//   - list_versions: List the versions of a proposal
//   - update_status: Change the review status of a version
//   - pdf_form_fields: List the form fields of a PDF template
//   - fill_form: Fill the text fields of a PDF template
//
// # Available Resources
//
//   - proposal://versions?id=... : Versions of a proposal
//   - pdf://form-fields?path=... : Form fields of a PDF
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/lvillar/proposalgen/internal/app"
	"github.com/lvillar/proposalgen/internal/config"
	"github.com/lvillar/proposalgen/mcp"
)

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	fs := flag.NewFlagSet("proposal-mcp", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "settings file (YAML)")
	noDB := fs.Bool("no-db", false, "do not open the database")
	fs.String("db", "", "database DSN (SQLite path or PostgreSQL DSN)")
	fs.String("templates", "", "templates directory")
	fs.String("output-dir", "", "output directory")
	fs.BoolP("debug", "v", false, "log debug lines to stderr")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.LoadFlags(*configPath, fs, map[string]string{
		"db":         "database.dsn",
		"templates":  "templates_dir",
		"output-dir": "output_dir",
		"debug":      "debug",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "proposal-mcp: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, app.Options{NoStore: *noDB})
	if err != nil {
		fmt.Fprintf(os.Stderr, "proposal-mcp: %v\n", err)
		os.Exit(4)
	}

	server := mcp.NewServer(a.Log)
	mcp.RegisterTools(server, a.Generator)
	mcp.RegisterResources(server, a.Generator)

	err = server.Run(ctx)
	a.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "proposal-mcp: %v\n", err)
		os.Exit(1)
	}
}
