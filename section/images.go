package section

import (
	"errors"
	"path/filepath"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/form"
	"github.com/lvillar/proposalgen/internal/fileutil"
)

var memberExts = []string{".jpg", ".jpeg", ".png"}

// memberImage finds <MembersDir>/<name>.{jpg,jpeg,png}.
func (p *Processor) memberImage(name string) (string, bool) {
	if name == "" || filepath.Base(name) != name {
		return "", false
	}
	for _, ext := range memberExts {
		path := filepath.Join(p.MembersDir, name+ext)
		if fileutil.FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// imageMappings returns the image assignments of an image section. Sections
// that name no images get the files of <ImagesDir>/<section name>. Relative
// image paths that do not exist as given are looked up in ImagesDir.
func (p *Processor) imageMappings(t proposalgen.TemplateSpec) []proposalgen.ImageMapping {
	mappings := t.ResolvedImageMappings()
	if len(mappings) == 0 {
		dir := filepath.Join(p.ImagesDir, t.Name)
		auto, err := form.AutoMapImages(dir, proposalgen.ImageFieldPrefix, 0, proposalgen.ImageFieldSuffix)
		if err != nil {
			if errors.Is(err, proposalgen.ErrImageNotFound) {
				p.Log.Warnf("Section %q: no image directory %s", t.Name, dir)
			} else {
				p.Log.Warnf("Section %q: %v", t.Name, err)
			}
			return nil
		}
		p.Log.Debugf("Section %q: auto-mapped %d image(s) from %s", t.Name, len(auto), dir)
		return auto
	}

	for i, m := range mappings {
		if filepath.IsAbs(m.ImagePath) || fileutil.FileExists(m.ImagePath) || p.ImagesDir == "" {
			continue
		}
		if alt := filepath.Join(p.ImagesDir, m.ImagePath); fileutil.FileExists(alt) {
			mappings[i].ImagePath = alt
		}
	}
	return mappings
}
