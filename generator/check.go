package generator

import (
	"path/filepath"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/fileutil"
)

// TemplateCheck is the outcome of a template pre-flight.
type TemplateCheck struct {
	Valid          bool     `json:"valid"`
	TemplatesDir   string   `json:"templatesDir"`
	Checked        []string `json:"checked"`
	Missing        []string `json:"missing,omitempty"`
	FrontPage      string   `json:"frontPage"`
	FrontPageFound bool     `json:"frontPageFound"`
}

// ValidateTemplates reports which of the files cfg needs are absent from
// the templates directory: the front page template followed by every
// section and staff file. Nothing is generated.
func (g *Generator) ValidateTemplates(cfg *proposalgen.ProposalConfig) TemplateCheck {
	dir := g.Config.TemplatesDir
	check := TemplateCheck{TemplatesDir: dir, FrontPage: g.Config.FrontPageTemplate}

	files := cfg.Files()
	if check.FrontPage != "" {
		files = append([]string{check.FrontPage}, files...)
	}
	seen := make(map[string]bool)
	for _, name := range files {
		if seen[name] {
			continue
		}
		seen[name] = true
		check.Checked = append(check.Checked, name)
		if !proposalgen.LocalFileName(name) || !fileutil.FileExists(filepath.Join(dir, name)) {
			check.Missing = append(check.Missing, name)
			continue
		}
		if name == check.FrontPage {
			check.FrontPageFound = true
		}
	}
	check.Valid = len(check.Missing) == 0
	if !check.Valid {
		g.Log.Warnf("%d of %d template files missing from %s: %v", len(check.Missing), len(check.Checked), dir, check.Missing)
	}
	return check
}
