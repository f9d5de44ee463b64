package generator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/generator"
	"github.com/lvillar/proposalgen/internal/config"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/internal/pdftest"
	"github.com/lvillar/proposalgen/reader"
	"github.com/lvillar/proposalgen/store"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newGenerator(t *testing.T, withStore bool) (*generator.Generator, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		TemplatesDir:      filepath.Join(root, "templates"),
		OutputDir:         filepath.Join(root, "output"),
		WorkDir:           filepath.Join(root, "work"),
		MembersDir:        filepath.Join(root, "members"),
		ImagesDir:         filepath.Join(root, "images"),
		FrontPageTemplate: "front_page.pdf",
		BaseURL:           "/downloads",
		CreatedBy:         "tester",
	}
	if err := os.MkdirAll(cfg.TemplatesDir, 0o755); err != nil {
		t.Fatal(err)
	}

	var st *store.Store
	if withStore {
		var err error
		st, err = store.Open("file:"+t.Name()+"?mode=memory&cache=shared", store.Options{Log: logger.Discard()})
		if err != nil {
			t.Fatalf("store.Open: %v", err)
		}
		sqlDB, _ := st.DB().DB()
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = st.Close() })
	}

	g := generator.New(cfg, st, logger.Discard())
	g.Now = func() time.Time { return fixedNow }
	return g, cfg
}

func introConfig() *proposalgen.ProposalConfig {
	cfg := &proposalgen.ProposalConfig{
		Company:   "Acme",
		Templates: []proposalgen.TemplateSpec{{Name: "Intro", FileName: "Intro.pdf"}},
	}
	cfg.Classify()
	return cfg
}

func pages(t *testing.T, path string) int {
	t.Helper()
	n, err := reader.PageCount(path)
	if err != nil {
		t.Fatalf("PageCount(%s): %v", path, err)
	}
	return n
}

func TestGenerateIntro(t *testing.T) {
	g, cfg := newGenerator(t, false)
	pdftest.Plain(t, filepath.Join(cfg.TemplatesDir, "Intro.pdf"), 1)

	sum, err := g.Generate(context.Background(), introConfig(), generator.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sum.FileName != "Acme_v1_20250314_100000.pdf" {
		t.Errorf("FileName = %s", sum.FileName)
	}
	if sum.DownloadURL != "/downloads/Acme_v1_20250314_100000.pdf" {
		t.Errorf("DownloadURL = %s", sum.DownloadURL)
	}
	if got := pages(t, sum.OutputPath); got != 3 {
		t.Errorf("output has %d pages, want 3", got)
	}
	if sum.SectionCount != 1 || sum.TemplateCount != 1 || sum.Pages != 3 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.SizeBytes <= 0 || sum.Size == "" {
		t.Errorf("size not reported: %+v", sum)
	}
	if sum.ProposalID != 0 || sum.VersionID != 0 {
		t.Errorf("record ids set without a store: %+v", sum)
	}

	entries, err := os.ReadDir(cfg.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not cleaned up: %d entries", len(entries))
	}
	if _, err := os.Stat(filepath.Join(cfg.TemplatesDir, "Intro.pdf")); err != nil {
		t.Errorf("original template removed: %v", err)
	}
}

func TestGenerateMissingTemplate(t *testing.T) {
	g, _ := newGenerator(t, false)

	sum, err := g.Generate(context.Background(), introConfig(), generator.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := pages(t, sum.OutputPath); got != 2 {
		t.Errorf("output has %d pages, want 2", got)
	}
	if sum.SectionCount != 0 || len(sum.Skipped) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !errors.Is(sum.Skipped[0], proposalgen.ErrTemplateMissing) {
		t.Errorf("skip reason = %v", sum.Skipped[0].Err)
	}
}

func TestGenerateExplicitFileName(t *testing.T) {
	g, cfg := newGenerator(t, true)
	pdftest.Plain(t, filepath.Join(cfg.TemplatesDir, "Intro.pdf"), 2)

	sum, err := g.Generate(context.Background(), introConfig(), generator.GenerateOptions{OutputFileName: "Acme_v7.pdf"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sum.OutputPath != filepath.Join(cfg.OutputDir, "Acme_v7.pdf") || sum.VersionID != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if got := pages(t, sum.OutputPath); got != 4 {
		t.Errorf("output has %d pages, want 4", got)
	}

	list, err := g.Store.ListProposals(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("explicit file name created %d records", len(list))
	}
}

func TestGenerateInvalidFileName(t *testing.T) {
	g, _ := newGenerator(t, false)
	for _, name := range []string{"../escape.pdf", "report.docx", "a b.pdf"} {
		_, err := g.Generate(context.Background(), introConfig(), generator.GenerateOptions{OutputFileName: name})
		if !errors.Is(err, proposalgen.ErrInvalidFileName) {
			t.Errorf("%q: expected ErrInvalidFileName, got %v", name, err)
		}
	}
}

func TestGenerateInvalidConfig(t *testing.T) {
	g, _ := newGenerator(t, false)
	_, err := g.Generate(context.Background(), &proposalgen.ProposalConfig{}, generator.GenerateOptions{})
	if !errors.Is(err, proposalgen.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	var ge *proposalgen.GenerationError
	if !errors.As(err, &ge) || ge.Op != "validate" {
		t.Errorf("expected a validate GenerationError, got %v", err)
	}
}

func TestGenerateRecordsVersion(t *testing.T) {
	g, cfg := newGenerator(t, true)
	pdftest.Plain(t, filepath.Join(cfg.TemplatesDir, "Intro.pdf"), 1)
	ctx := context.Background()

	sum, err := g.Generate(ctx, introConfig(), generator.GenerateOptions{CreatedBy: "alice"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sum.ProposalID == 0 || sum.VersionID == 0 || sum.VersionNumber != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	v, err := g.Store.GetVersion(ctx, sum.VersionID)
	if err != nil {
		t.Fatal(err)
	}
	if v.DocumentPath != sum.OutputPath || v.CreatedBy != "alice" {
		t.Errorf("version = %+v", v)
	}

	refined, err := g.Refine(ctx, sum.ProposalID, nil, "")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if refined.VersionNumber != 2 || !strings.Contains(refined.FileName, "_v2_") {
		t.Errorf("refined = %+v", refined)
	}
	v2, err := g.Store.GetVersion(ctx, refined.VersionID)
	if err != nil {
		t.Fatal(err)
	}
	if v2.CreatedBy != "tester" || v2.DocumentPath != refined.OutputPath {
		t.Errorf("version 2 = %+v", v2)
	}
}

func TestRefineUnknownProposal(t *testing.T) {
	g, _ := newGenerator(t, true)
	_, err := g.Refine(context.Background(), 42, introConfig(), "bob")
	if !errors.Is(err, proposalgen.ErrNotFound) || !generator.IsPersistence(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefineWithoutStore(t *testing.T) {
	g, _ := newGenerator(t, false)
	if _, err := g.Refine(context.Background(), 1, introConfig(), ""); !errors.Is(err, proposalgen.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestValidateTemplates(t *testing.T) {
	g, cfg := newGenerator(t, false)
	pdftest.Plain(t, filepath.Join(cfg.TemplatesDir, "Intro.pdf"), 1)

	pc := introConfig()
	pc.Templates = append(pc.Templates, proposalgen.TemplateSpec{
		Name:     proposalgen.StaffProfilesName,
		FileName: "Staff.pdf",
		Staffs:   []proposalgen.Staff{{Name: "Ann", FileName: "Ann.pdf"}},
	})

	check := g.ValidateTemplates(pc)
	if check.Valid || check.FrontPageFound {
		t.Errorf("check = %+v", check)
	}
	want := []string{"front_page.pdf", "Staff.pdf", "Ann.pdf"}
	if strings.Join(check.Missing, ",") != strings.Join(want, ",") {
		t.Errorf("Missing = %v, want %v", check.Missing, want)
	}

	pdftest.Plain(t, filepath.Join(cfg.TemplatesDir, "front_page.pdf"), 1)
	pdftest.Plain(t, filepath.Join(cfg.TemplatesDir, "Staff.pdf"), 1)
	pdftest.Plain(t, filepath.Join(cfg.TemplatesDir, "Ann.pdf"), 1)
	if check := g.ValidateTemplates(pc); !check.Valid || !check.FrontPageFound {
		t.Errorf("check = %+v", check)
	}
}
