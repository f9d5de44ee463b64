// Package generator runs the proposal pipeline: validate the configuration,
// reserve a version record, build the cover, process the sections, render
// the table of contents, merge everything and record where the document
// was written.
//
// Every run works in its own directory under the configured work dir, so two
// generations running at the same time never share intermediate files.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/frontpage"
	"github.com/lvillar/proposalgen/internal/config"
	"github.com/lvillar/proposalgen/internal/fileutil"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/internal/workdir"
	"github.com/lvillar/proposalgen/pageops"
	"github.com/lvillar/proposalgen/reader"
	"github.com/lvillar/proposalgen/section"
	"github.com/lvillar/proposalgen/store"
	"github.com/lvillar/proposalgen/toc"
)

// Generator builds proposal documents. Store may be nil, in which case no
// records are written and versioned names always use version 1.
type Generator struct {
	Config *config.Config
	Store  *store.Store
	Log    *logger.Logger
	Now    func() time.Time
}

// New returns a Generator for cfg.
func New(cfg *config.Config, st *store.Store, log *logger.Logger) *Generator {
	return &Generator{Config: cfg, Store: st, Log: log}
}

// GenerateOptions adjust a single run.
type GenerateOptions struct {
	// OutputFileName is used verbatim when set and no record is created.
	// It must pass proposalgen.ValidOutputFileName.
	OutputFileName string
	// CreatedBy is stored on new records; the configured default is used
	// when empty.
	CreatedBy string
}

// Summary describes a generated document.
type Summary struct {
	OutputPath    string                   `json:"outputPath"`
	FileName      string                   `json:"fileName"`
	DownloadURL   string                   `json:"downloadUrl"`
	Size          string                   `json:"size"`
	SizeBytes     int64                    `json:"sizeBytes"`
	Company       string                   `json:"company"`
	SectionCount  int                      `json:"sectionCount"`
	TemplateCount int                      `json:"templateCount"`
	Pages         int                      `json:"pages"`
	GeneratedAt   time.Time                `json:"generatedAt"`
	RunID         string                   `json:"runId"`
	ProposalID    uint                     `json:"proposalId,omitempty"`
	VersionID     uint                     `json:"versionId,omitempty"`
	VersionNumber int                      `json:"versionNumber,omitempty"`
	Skipped       []section.SkippedSection `json:"skipped,omitempty"`
	TOCDropped    []proposalgen.TOCEntry   `json:"tocDropped,omitempty"`
}

// Generate builds the document for cfg. Without an explicit file name a
// proposal record with version 1 is created first and the file is named
// after it.
func (g *Generator) Generate(ctx context.Context, cfg *proposalgen.ProposalConfig, opts GenerateOptions) (*Summary, error) {
	if err := cfg.Check(); err != nil {
		return nil, proposalgen.NewGenerationError("validate", err)
	}
	now := g.now()

	if opts.OutputFileName != "" {
		if !proposalgen.ValidOutputFileName(opts.OutputFileName) {
			return nil, proposalgen.NewGenerationError("output",
				fmt.Errorf("%w: %q", proposalgen.ErrInvalidFileName, opts.OutputFileName))
		}
		return g.run(ctx, cfg, opts.OutputFileName, now, nil)
	}

	if g.Store == nil {
		return g.run(ctx, cfg, store.VersionedFilename(cfg.Company, 1, now), now, nil)
	}

	_, v, err := g.Store.CreateProposal(ctx, cfg, g.createdBy(opts.CreatedBy))
	if err != nil {
		return nil, proposalgen.NewGenerationError("store", err)
	}
	return g.runVersion(ctx, cfg, v, now)
}

// Refine generates the next version of an existing proposal. A nil cfg
// regenerates from the configuration stored with the latest version.
func (g *Generator) Refine(ctx context.Context, proposalID uint, cfg *proposalgen.ProposalConfig, createdBy string) (*Summary, error) {
	if g.Store == nil {
		return nil, proposalgen.NewGenerationError("store",
			fmt.Errorf("%w: refining needs a database", proposalgen.ErrPersistence))
	}
	if cfg != nil {
		if err := cfg.Check(); err != nil {
			return nil, proposalgen.NewGenerationError("validate", err)
		}
	}

	v, err := g.Store.CreateVersion(ctx, proposalID, cfg, g.createdBy(createdBy))
	if err != nil {
		return nil, proposalgen.NewGenerationError("store", err)
	}
	if cfg == nil {
		if cfg, err = v.Config(); err != nil {
			return nil, proposalgen.NewGenerationError("store", err)
		}
		if err := cfg.Check(); err != nil {
			return nil, proposalgen.NewGenerationError("validate", err)
		}
	}
	return g.runVersion(ctx, cfg, v, g.now())
}

func (g *Generator) runVersion(ctx context.Context, cfg *proposalgen.ProposalConfig, v *store.ProposalVersion, now time.Time) (*Summary, error) {
	name := store.VersionedFilename(cfg.Company, v.VersionNumber, now)
	sum, err := g.run(ctx, cfg, name, now, v)
	if err != nil {
		return nil, err
	}
	if err := g.Store.SetDocumentPath(ctx, v.ID, sum.OutputPath); err != nil {
		// A document the store does not know about is not left behind.
		if rmErr := os.Remove(sum.OutputPath); rmErr != nil {
			g.Log.Warnf("Removing %s: %v", sum.OutputPath, rmErr)
		}
		return nil, proposalgen.NewGenerationError("store", err)
	}
	sum.ProposalID = v.ProposalID
	sum.VersionID = v.ID
	sum.VersionNumber = v.VersionNumber
	return sum, nil
}

// run builds the document into <OutputDir>/<name>.
func (g *Generator) run(ctx context.Context, cfg *proposalgen.ProposalConfig, name string, now time.Time, v *store.ProposalVersion) (*Summary, error) {
	c := g.Config
	if err := fileutil.EnsureDir(c.OutputDir); err != nil {
		return nil, proposalgen.NewGenerationError("output", fmt.Errorf("%w: %w", proposalgen.ErrWriteOutput, err))
	}
	outPath := filepath.Join(c.OutputDir, name)

	work, err := workdir.New(c.WorkDir)
	if err != nil {
		return nil, proposalgen.NewGenerationError("workdir", fmt.Errorf("%w: %w", proposalgen.ErrWriteOutput, err))
	}
	defer func() {
		if err := work.Cleanup(); err != nil {
			g.Log.Warnf("Could not remove work dir %s: %v", work.Path, err)
		}
	}()
	g.Log.Printf("Generating proposal for %s (run %s, %d sections)", cfg.Company, work.RunID, len(cfg.Templates))

	code, err := frontpage.ParseCode(c.Cover.Code)
	if err != nil {
		g.Log.Warnf("%v; no code on the cover", err)
	}
	cover := &frontpage.Builder{
		TemplatesDir: c.TemplatesDir,
		Template:     c.FrontPageTemplate,
		Subtitle:     c.Cover.Subtitle,
		LayoutFile:   c.Cover.Layout,
		Code:         code,
		Reference:    strings.TrimSuffix(name, ".pdf"),
		Log:          g.Log,
		Now:          func() time.Time { return now },
	}
	if v != nil {
		cover.Reference = fmt.Sprintf("%s %s", cfg.Company, v.VersionLabel)
	}
	frontPath, err := cover.Build(cfg, work.Temp("front_page.pdf"))
	if err != nil {
		return nil, proposalgen.NewGenerationError("frontpage", err)
	}

	proc := &section.Processor{
		TemplatesDir: c.TemplatesDir,
		MembersDir:   c.MembersDir,
		ImagesDir:    c.ImagesDir,
		Work:         work,
		Log:          g.Log,
	}
	sections, err := proc.Process(ctx, cfg)
	if err != nil {
		return nil, proposalgen.NewGenerationError("sections", err)
	}

	tocPath := work.Temp("toc.pdf")
	layout, err := toc.RenderFile(tocPath, sections.Entries, toc.Options{Log: g.Log})
	if err != nil {
		return nil, proposalgen.NewGenerationError("toc", err)
	}

	if err := checkLeading(frontPath, tocPath); err != nil {
		return nil, proposalgen.NewGenerationError("merge", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, proposalgen.NewGenerationError("merge", err)
	}

	merger := pageops.NewMerger(g.Log)
	merger.Watermark = watermark(g.Log, c.Watermark)
	inputs := append([]string{frontPath, tocPath}, sections.Paths...)
	merged, err := merger.Merge(outPath, inputs)
	if err != nil {
		return nil, proposalgen.NewGenerationError("merge", err)
	}

	size, err := fileutil.FileSize(outPath)
	if err != nil {
		return nil, proposalgen.NewGenerationError("merge", fmt.Errorf("%w: %w", proposalgen.ErrWriteOutput, err))
	}
	sum := &Summary{
		OutputPath:    outPath,
		FileName:      name,
		DownloadURL:   downloadURL(c.BaseURL, name),
		Size:          fileutil.FormatSize(size),
		SizeBytes:     size,
		Company:       cfg.Company,
		SectionCount:  len(sections.Entries),
		TemplateCount: len(cfg.Templates),
		Pages:         merged.Pages,
		GeneratedAt:   now,
		RunID:         work.RunID,
		Skipped:       sections.Skipped,
		TOCDropped:    layout.Dropped,
	}
	g.Log.Printf("Proposal written to %s (%s, %d pages, %d sections)", outPath, sum.Size, sum.Pages, sum.SectionCount)
	return sum, nil
}

// checkLeading enforces the one-page front page and table of contents that
// content numbering relies on.
func checkLeading(front, tocPath string) error {
	for _, p := range []string{front, tocPath} {
		n, err := reader.PageCount(p)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", proposalgen.ErrLeadingPageCount, filepath.Base(p), err)
		}
		if n != 1 {
			return fmt.Errorf("%w: %s has %d pages", proposalgen.ErrLeadingPageCount, filepath.Base(p), n)
		}
	}
	return nil
}

// watermark converts the configured stamp. A bad colour keeps the default
// grey rather than failing the run.
func watermark(log *logger.Logger, c config.WatermarkConfig) pageops.TextWatermark {
	wm := pageops.TextWatermark{Text: c.Text, Opacity: c.Opacity}
	if c.Text == "" || c.Color == "" {
		return wm
	}
	col, err := pageops.ParseColor(c.Color)
	if err != nil {
		log.Warnf("%v; using the default watermark color", err)
		return wm
	}
	wm.Color = col
	return wm
}

func downloadURL(base, name string) string {
	if base == "" {
		return name
	}
	if strings.Contains(base, "://") {
		return strings.TrimRight(base, "/") + "/" + name
	}
	return path.Join("/", base, name)
}

func (g *Generator) createdBy(s string) string {
	if s != "" {
		return s
	}
	if g.Config != nil && g.Config.CreatedBy != "" {
		return g.Config.CreatedBy
	}
	return "system"
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// IsPersistence reports whether err came from the proposal store.
func IsPersistence(err error) bool {
	return errors.Is(err, proposalgen.ErrPersistence) || errors.Is(err, proposalgen.ErrNotFound)
}
