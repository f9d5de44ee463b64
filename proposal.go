// Package proposalgen assembles multi-section PDF proposals from a company
// name and an ordered list of template sections.
//
// This package holds the configuration model shared by the pipeline
// packages: normalization of wrapped inputs, structural validation, variant
// classification of each section and the filename rules used for output
// documents. The PDF work itself lives in the reader, form, frontpage, toc,
// section and pageops packages, and the generator package sequences them.
package proposalgen

import "fmt"

// Section names that select dedicated handling.
const (
	StaffProfilesName     = "Staff Profiles"
	MemberAssociationName = "Member Association"
)

// Image placeholder naming used for image-by-position and member sections.
const (
	ImageFieldPrefix = "Image"
	ImageFieldSuffix = "_af_image"
	MaxMemberImages  = 7
)

// Kind identifies how a template section is processed. It is decided once,
// when the configuration is parsed.
type Kind int

const (
	KindPlain             Kind = iota // copy the template verbatim
	KindFormFill                      // fill named text fields
	KindImageFill                     // replace named fields with images
	KindMemberAssociation             // resolve member names to images
	KindStaffProfiles                 // intro page plus one file per staff member
)

var kindNames = [...]string{"plain", "form-fill", "image-fill", "member-association", "staff-profiles"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ProposalConfig describes one proposal document.
type ProposalConfig struct {
	Company   string         `json:"company" yaml:"company"`
	Templates []TemplateSpec `json:"templates" yaml:"templates"`
}

// Staff is one entry of a Staff Profiles section.
type Staff struct {
	Name     string `json:"name" yaml:"name"`
	FileName string `json:"fileName" yaml:"fileName"`
}

// ImageMapping assigns an image file to a form field.
type ImageMapping struct {
	FieldName string `json:"fieldName" yaml:"fieldName"`
	ImagePath string `json:"imagePath" yaml:"imagePath"`
}

// TemplateSpec is one section of the proposal. Only the fields relevant to
// Kind are populated.
type TemplateSpec struct {
	Name      string `json:"name" yaml:"name"`
	FileName  string `json:"fileName" yaml:"fileName"`
	Editable  bool   `json:"editable" yaml:"editable"`
	HasImages bool   `json:"hasImages,omitempty" yaml:"hasImages,omitempty"`

	FieldValues  map[string]string `json:"fieldValues,omitempty" yaml:"fieldValues,omitempty"`
	ImagePaths   []string          `json:"imagePaths,omitempty" yaml:"imagePaths,omitempty"` // positional images
	ImageMapping map[string]string `json:"imageMapping,omitempty" yaml:"imageMapping,omitempty"`
	Members      []string          `json:"members,omitempty" yaml:"members,omitempty"`
	Staffs       []Staff           `json:"staffs,omitempty" yaml:"staffs,omitempty"`

	Kind Kind `json:"-" yaml:"-"`
}

// TOCEntry is one line of the table of contents. Page is the first content
// page of the section, counted from 1 after the front page and TOC.
type TOCEntry struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// ImageFieldName returns the placeholder field name for the i-th (1-based) image.
func ImageFieldName(prefix string, i int, suffix string) string {
	return fmt.Sprintf("%s%d%s", prefix, i, suffix)
}

// PositionalMappings turns an ordered list of image paths into mappings for
// Image1_af_image, Image2_af_image, ...
func PositionalMappings(paths []string) []ImageMapping {
	out := make([]ImageMapping, 0, len(paths))
	for i, p := range paths {
		out = append(out, ImageMapping{
			FieldName: ImageFieldName(ImageFieldPrefix, i+1, ImageFieldSuffix),
			ImagePath: p,
		})
	}
	return out
}

// Files returns every template file name referenced by the configuration,
// including staff profile files, in configuration order.
func (c *ProposalConfig) Files() []string {
	var files []string
	for _, t := range c.Templates {
		if t.FileName != "" {
			files = append(files, t.FileName)
		}
		for _, s := range t.Staffs {
			if s.FileName != "" {
				files = append(files, s.FileName)
			}
		}
	}
	return files
}
