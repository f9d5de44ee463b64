package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lvillar/proposalgen"
)

// Status is the review state of a proposal version.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// ErrInvalidStatus is returned for a status outside Statuses.
var ErrInvalidStatus = errors.New("store: invalid status")

// Statuses lists every valid status.
var Statuses = []Status{StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected}

// ParseStatus validates s. Dashes and case are tolerated, so "Under-Review"
// is StatusUnderReview.
func ParseStatus(s string) (Status, error) {
	norm := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, st := range Statuses {
		if norm == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w %q (want one of draft, submitted, under_review, approved, rejected)", ErrInvalidStatus, s)
}

// Proposal is one proposal document across all of its versions.
type Proposal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedBy string    `gorm:"size:255;not null;default:''" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Versions []ProposalVersion `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"versions,omitempty"`
}

// ProposalVersion is one generated document. VersionNumber starts at 1 and
// is unique per proposal.
type ProposalVersion struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProposalID    uint      `gorm:"not null;uniqueIndex:idx_proposal_version,priority:1" json:"proposal_id"`
	VersionNumber int       `gorm:"not null;uniqueIndex:idx_proposal_version,priority:2" json:"version_number"`
	VersionLabel  string    `gorm:"size:20;not null" json:"version_label"`
	DocumentPath  string    `gorm:"type:text;not null;default:''" json:"document_path"`
	Status        Status    `gorm:"size:20;not null;default:draft;index:idx_proposal_versions_status" json:"status"`
	CreatedBy     string    `gorm:"size:255;not null;default:''" json:"created_by"`
	ProposalData  string    `gorm:"type:text;not null;default:''" json:"proposal_data"` // JSON snapshot of the configuration
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VersionLabel formats a version number as "v{n}".
func VersionLabel(n int) string {
	return fmt.Sprintf("v%d", n)
}

// Config decodes the configuration snapshot stored with the version.
func (v *ProposalVersion) Config() (*proposalgen.ProposalConfig, error) {
	if v.ProposalData == "" {
		return nil, fmt.Errorf("store: version %d has no configuration snapshot", v.ID)
	}
	return proposalgen.Parse([]byte(v.ProposalData))
}

func snapshot(cfg *proposalgen.ProposalConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("store: encoding configuration: %w", err)
	}
	return string(data), nil
}

// VersionedFilename derives the output file name of a version:
// <Company>_v<n>_<YYYYMMDD_HHMMSS>.pdf with the company sanitized.
func VersionedFilename(company string, n int, t time.Time) string {
	base := strings.TrimSuffix(proposalgen.SanitizeFilename(company), ".pdf")
	return proposalgen.SanitizeFilename(fmt.Sprintf("%s_%s_%s", base, VersionLabel(n), t.Format("20060102_150405")))
}
