package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/form"
	"github.com/lvillar/proposalgen/generator"
	"github.com/lvillar/proposalgen/internal/app"
	"github.com/lvillar/proposalgen/store"
)

// session is the parsed state shared by commands that need the App.
type session struct {
	common commonFlags
	args   []string
	app    *app.App
}

func (s *session) close() {
	if s.app != nil {
		s.app.Close()
	}
}

// open parses args with the common flags plus those added by extra, loads
// the settings and starts the App.
func open(ctx context.Context, args []string, stderr io.Writer, usage string, extra func(fs *flag.FlagSet)) (*session, error) {
	s := &session{}
	fs := newFlagSet(strings.Fields(usage)[0], stderr, usage)
	addCommonFlags(fs, &s.common)
	if extra != nil {
		extra(fs)
	}
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	s.args = fs.Args()

	cfg, err := loadSettings(fs, &s.common)
	if err != nil {
		return nil, err
	}
	s.app, err = app.Open(ctx, cfg, app.Options{NoStore: s.common.noDB, Quiet: s.common.quiet})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) configArg() (*proposalgen.ProposalConfig, error) {
	if len(s.args) != 1 {
		return nil, fmt.Errorf("%w: expected one configuration file, got %d arguments", ErrUsage, len(s.args))
	}
	return proposalgen.ParseFile(s.args[0])
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var outputName, createdBy string
	s, err := open(ctx, args, stderr, "generate [flags] <config>", func(fs *flag.FlagSet) {
		fs.StringVarP(&outputName, "output", "o", "", "output file name; no version record is created")
		fs.StringVar(&createdBy, "created-by", "", "author stored on the version record")
	})
	if err != nil {
		return err
	}
	defer s.close()

	cfg, err := s.configArg()
	if err != nil {
		return err
	}
	sum, err := s.app.Generator.Generate(ctx, cfg, generator.GenerateOptions{OutputFileName: outputName, CreatedBy: createdBy})
	if err != nil {
		return err
	}
	return printSummary(stdout, sum, s.common.json)
}

func runRefine(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var id uint
	var createdBy string
	s, err := open(ctx, args, stderr, "refine [flags] --id N [config]", func(fs *flag.FlagSet) {
		fs.UintVar(&id, "id", 0, "proposal id")
		fs.StringVar(&createdBy, "created-by", "", "author stored on the version record")
	})
	if err != nil {
		return err
	}
	defer s.close()

	if id == 0 {
		return fmt.Errorf("%w: --id is required", ErrUsage)
	}
	var cfg *proposalgen.ProposalConfig
	switch len(s.args) {
	case 0:
	case 1:
		if cfg, err = proposalgen.ParseFile(s.args[0]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: at most one configuration file", ErrUsage)
	}

	sum, err := s.app.Generator.Refine(ctx, id, cfg, createdBy)
	if err != nil {
		return err
	}
	return printSummary(stdout, sum, s.common.json)
}

func runValidate(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	fs := newFlagSet("validate", stderr, "validate [flags] <config>")
	addCommonFlags(fs, &common)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one configuration file", ErrUsage)
	}

	cfg, err := proposalgen.ParseFile(fs.Arg(0))
	var verr *proposalgen.ValidationError
	if errors.As(err, &verr) {
		if common.json {
			_ = writeJSON(stdout, map[string]any{"valid": false, "problems": verr.Problems})
		} else {
			for _, p := range verr.Problems {
				fmt.Fprintf(stdout, "  - %s\n", p)
			}
		}
		return err
	}
	if err != nil {
		return err
	}

	if common.json {
		return writeJSON(stdout, map[string]any{"valid": true, "company": cfg.Company, "sections": len(cfg.Templates)})
	}
	fmt.Fprintf(stdout, "%s: valid (%s, %d sections)\n", fs.Arg(0), cfg.Company, len(cfg.Templates))
	for _, t := range cfg.Templates {
		fmt.Fprintf(stdout, "  %-24s %-20s %s\n", t.Name, t.Kind, t.FileName)
	}
	return nil
}

func runCheckTemplates(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s, err := open(ctx, append([]string{"--no-db"}, args...), stderr, "check-templates [flags] <config>", nil)
	if err != nil {
		return err
	}
	defer s.close()

	cfg, err := s.configArg()
	if err != nil {
		return err
	}
	check := s.app.Generator.ValidateTemplates(cfg)
	if s.common.json {
		if err := writeJSON(stdout, check); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(stdout, "Checked %d files in %s\n", len(check.Checked), check.TemplatesDir)
		for _, m := range check.Missing {
			fmt.Fprintf(stdout, "  missing: %s\n", m)
		}
	}
	if !check.Valid {
		return fmt.Errorf("%w: %s", proposalgen.ErrTemplateMissing, strings.Join(check.Missing, ", "))
	}
	return nil
}

func runVersions(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var id uint
	var limit int
	s, err := open(ctx, args, stderr, "versions [flags] [--id N]", func(fs *flag.FlagSet) {
		fs.UintVar(&id, "id", 0, "proposal id; lists proposals when omitted")
		fs.IntVar(&limit, "limit", 20, "maximum number of proposals to list")
	})
	if err != nil {
		return err
	}
	defer s.close()

	st, err := s.app.RequireStore()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if id == 0 {
		proposals, err := st.ListProposals(ctx, limit)
		if err != nil {
			return err
		}
		if s.common.json {
			return writeJSON(stdout, proposals)
		}
		fmt.Fprintln(tw, "ID\tTITLE\tCREATED BY\tUPDATED")
		for _, p := range proposals {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Title, p.CreatedBy, p.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}

	versions, err := st.ListVersions(ctx, id)
	if err != nil {
		return err
	}
	if s.common.json {
		return writeJSON(stdout, versions)
	}
	fmt.Fprintln(tw, "ID\tVERSION\tSTATUS\tCREATED BY\tCREATED\tDOCUMENT")
	for _, v := range versions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", v.ID, v.VersionLabel, v.Status, v.CreatedBy, v.CreatedAt.Format("2006-01-02 15:04"), v.DocumentPath)
	}
	return nil
}

func runStatus(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var versionID uint
	s, err := open(ctx, args, stderr, "status [flags] --version N <status>", func(fs *flag.FlagSet) {
		fs.UintVar(&versionID, "version", 0, "version id")
	})
	if err != nil {
		return err
	}
	defer s.close()

	if versionID == 0 || len(s.args) != 1 {
		return fmt.Errorf("%w: --version and one status (%s) are required", ErrUsage, statusList())
	}
	status, err := store.ParseStatus(s.args[0])
	if err != nil {
		return err
	}
	st, err := s.app.RequireStore()
	if err != nil {
		return err
	}
	if err := st.UpdateStatus(ctx, versionID, status); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Version %d is now %s\n", versionID, status)
	return nil
}

func runAutomap(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	var prefix, suffix string
	var maxCount int
	fs := newFlagSet("automap", stderr, "automap [flags] <dir>")
	addCommonFlags(fs, &common)
	fs.StringVar(&prefix, "prefix", proposalgen.ImageFieldPrefix, "field name prefix")
	fs.StringVar(&suffix, "suffix", proposalgen.ImageFieldSuffix, "field name suffix")
	fs.IntVar(&maxCount, "max", 0, "maximum number of images (0 = all)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one directory", ErrUsage)
	}

	mappings, err := form.AutoMapImages(fs.Arg(0), prefix, maxCount, suffix)
	if err != nil {
		return err
	}
	if common.json {
		return writeJSON(stdout, mappings)
	}
	for _, m := range mappings {
		fmt.Fprintf(stdout, "%s -> %s\n", m.FieldName, m.ImagePath)
	}
	return nil
}

func printSummary(w io.Writer, sum *generator.Summary, asJSON bool) error {
	if asJSON {
		return writeJSON(w, sum)
	}
	fmt.Fprintf(w, "Generated %s\n", sum.OutputPath)
	fmt.Fprintf(w, "  company:   %s\n", sum.Company)
	fmt.Fprintf(w, "  sections:  %d of %d templates\n", sum.SectionCount, sum.TemplateCount)
	fmt.Fprintf(w, "  pages:     %d\n", sum.Pages)
	fmt.Fprintf(w, "  size:      %s\n", sum.Size)
	fmt.Fprintf(w, "  download:  %s\n", sum.DownloadURL)
	if sum.VersionID != 0 {
		fmt.Fprintf(w, "  proposal:  %d, version %d (id %d)\n", sum.ProposalID, sum.VersionNumber, sum.VersionID)
	}
	for _, sk := range sum.Skipped {
		fmt.Fprintf(w, "  skipped:   %s (%s)\n", sk.Name, sk.Reason)
	}
	for _, e := range sum.TOCDropped {
		fmt.Fprintf(w, "  not in table of contents: %s (page %d)\n", e.Title, e.Page)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusList() string {
	names := make([]string, len(store.Statuses))
	for i, st := range store.Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
