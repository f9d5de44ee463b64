package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/lvillar/proposalgen/internal/config"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config string
	quiet  bool
	json   bool
	noDB   bool
}

// configKeys maps flag names to the config keys they override.
var configKeys = map[string]string{
	"templates":   "templates_dir",
	"output-dir":  "output_dir",
	"work-dir":    "work_dir",
	"members-dir": "members_dir",
	"images-dir":  "images_dir",
	"db":          "database.dsn",
	"redis":       "redis.addr",
	"log-file":    "log_file",
	"debug":       "debug",
	"watermark":   "watermark.text",
	"cover-code":  "cover.code",
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "settings file (YAML)")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only log warnings and errors")
	fs.BoolVar(&f.json, "json", false, "print results as JSON")
	fs.BoolVar(&f.noDB, "no-db", false, "do not open the database")

	fs.String("templates", "", "templates directory")
	fs.String("output-dir", "", "output directory")
	fs.String("work-dir", "", "directory for intermediate files (default: system temp)")
	fs.String("members-dir", "", "member images directory")
	fs.String("images-dir", "", "section images directory")
	fs.String("db", "", "database DSN (SQLite path or PostgreSQL DSN)")
	fs.String("redis", "", "redis address for the cross-process version lock")
	fs.String("log-file", "", "append logs to this file")
	fs.BoolP("debug", "v", false, "log debug lines")
	fs.String("watermark", "", "diagonal text stamped on every page, e.g. DRAFT")
	fs.String("cover-code", "", "code on the cover: none, qr or pdf417")
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, stderr io.Writer, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: proposalgen %s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and wraps flag errors as usage errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func loadSettings(fs *flag.FlagSet, f *commonFlags) (*config.Config, error) {
	return config.LoadFlags(f.config, fs, configKeys)
}
