// Package store records proposals and their versions in a relational
// database through gorm. PostgreSQL and SQLite are supported; the driver is
// picked from the DSN.
//
// Version numbers are allocated as max+1 inside a transaction while a
// per-proposal lock is held, and a unique index on (proposal_id,
// version_number) backs that up.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/internal/lock"
	"github.com/lvillar/proposalgen/internal/logger"
)

// Options configure Open and New.
type Options struct {
	Debug      bool           // log SQL statements
	Migrations bool           // run the embedded SQL migrations (PostgreSQL) instead of AutoMigrate
	Locker     lock.Locker    // version lock, in-process when nil
	Log        *logger.Logger // nil discards
}

// Store is the proposal repository.
type Store struct {
	db     *gorm.DB
	locker lock.Locker
	log    *logger.Logger
}

// Open connects to dsn and prepares the schema.
func Open(dsn string, opts Options) (*Store, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store: %w: empty database DSN", proposalgen.ErrPersistence)
	}

	level := gormlogger.Silent
	if opts.Debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(dialector(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("store: %w: connecting: %w", proposalgen.ErrPersistence, err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("store: %w: ping: %w", proposalgen.ErrPersistence, err)
	}
	opts.Log.Debugf("Connected to %s database at %s", driverName(dsn), MaskDSN(dsn))

	if opts.Migrations && IsPostgres(dsn) {
		if err := runMigrations(dsn); err != nil {
			return nil, fmt.Errorf("store: %w: sql migrations: %w", proposalgen.ErrPersistence, err)
		}
		return newStore(db, opts), nil
	}
	return New(db, opts)
}

// New wraps an open gorm connection and auto-migrates the schema.
func New(db *gorm.DB, opts Options) (*Store, error) {
	if err := db.AutoMigrate(&Proposal{}, &ProposalVersion{}); err != nil {
		return nil, fmt.Errorf("store: %w: automigrate: %w", proposalgen.ErrPersistence, err)
	}
	return newStore(db, opts), nil
}

func newStore(db *gorm.DB, opts Options) *Store {
	locker := opts.Locker
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Store{db: db, locker: locker, log: opts.Log}
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// wrap classifies a gorm error.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("store: %s: %w", op, proposalgen.ErrNotFound)
	}
	if errors.Is(err, proposalgen.ErrNotFound) || errors.Is(err, proposalgen.ErrPersistence) {
		return err
	}
	return fmt.Errorf("store: %s: %w: %w", op, proposalgen.ErrPersistence, err)
}

// CreateProposal inserts a proposal titled after the company together with
// its first version, in draft status.
func (s *Store) CreateProposal(ctx context.Context, cfg *proposalgen.ProposalConfig, createdBy string) (*Proposal, *ProposalVersion, error) {
	data, err := snapshot(cfg)
	if err != nil {
		return nil, nil, err
	}

	p := &Proposal{Title: cfg.Company, CreatedBy: createdBy}
	v := &ProposalVersion{
		VersionNumber: 1,
		VersionLabel:  VersionLabel(1),
		Status:        StatusDraft,
		CreatedBy:     createdBy,
		ProposalData:  data,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		v.ProposalID = p.ID
		return tx.Create(v).Error
	})
	if err != nil {
		return nil, nil, wrap("create proposal", err)
	}
	s.log.Printf("Created proposal %d (%s) version %s", p.ID, p.Title, v.VersionLabel)
	return p, v, nil
}

// CreateVersion adds the next version of a proposal. A nil cfg copies the
// configuration of the latest version.
func (s *Store) CreateVersion(ctx context.Context, proposalID uint, cfg *proposalgen.ProposalConfig, createdBy string) (*ProposalVersion, error) {
	release, err := s.locker.Lock(ctx, "proposal:"+strconv.FormatUint(uint64(proposalID), 10))
	if err != nil {
		return nil, fmt.Errorf("store: %w: locking proposal %d: %w", proposalgen.ErrPersistence, proposalID, err)
	}
	defer release()

	data, err := snapshot(cfg)
	if err != nil {
		return nil, err
	}

	v := &ProposalVersion{ProposalID: proposalID, Status: StatusDraft, CreatedBy: createdBy, ProposalData: data}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Proposal
		if err := tx.First(&p, proposalID).Error; err != nil {
			return err
		}
		n, err := maxVersion(tx, proposalID)
		if err != nil {
			return err
		}
		if v.ProposalData == "" {
			var latest ProposalVersion
			if err := tx.Where("proposal_id = ? AND version_number = ?", proposalID, n).First(&latest).Error; err == nil {
				v.ProposalData = latest.ProposalData
			}
		}
		v.VersionNumber = n + 1
		v.VersionLabel = VersionLabel(n + 1)
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		return tx.Model(&p).Update("updated_at", v.CreatedAt).Error
	})
	if err != nil {
		return nil, wrap("create version", err)
	}
	s.log.Printf("Created proposal %d version %s", proposalID, v.VersionLabel)
	return v, nil
}

func maxVersion(tx *gorm.DB, proposalID uint) (int, error) {
	var n int
	err := tx.Model(&ProposalVersion{}).
		Where("proposal_id = ?", proposalID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&n).Error
	return n, err
}

// NextVersionNumber returns the number the next version of a proposal will
// get.
func (s *Store) NextVersionNumber(ctx context.Context, proposalID uint) (int, error) {
	if _, err := s.GetProposal(ctx, proposalID); err != nil {
		return 0, err
	}
	n, err := maxVersion(s.db.WithContext(ctx), proposalID)
	if err != nil {
		return 0, wrap("next version number", err)
	}
	return n + 1, nil
}

// GetProposal loads a proposal with its versions in version order.
func (s *Store) GetProposal(ctx context.Context, id uint) (*Proposal, error) {
	var p Proposal
	err := s.db.WithContext(ctx).
		Preload("Versions", func(db *gorm.DB) *gorm.DB { return db.Order("version_number ASC") }).
		First(&p, id).Error
	if err != nil {
		return nil, wrap(fmt.Sprintf("get proposal %d", id), err)
	}
	return &p, nil
}

// ListProposals returns the most recently updated proposals first. A
// non-positive limit returns all of them.
func (s *Store) ListProposals(ctx context.Context, limit int) ([]Proposal, error) {
	var out []Proposal
	q := s.db.WithContext(ctx).Order("updated_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, wrap("list proposals", err)
	}
	return out, nil
}

// GetVersion loads one version.
func (s *Store) GetVersion(ctx context.Context, id uint) (*ProposalVersion, error) {
	var v ProposalVersion
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, wrap(fmt.Sprintf("get version %d", id), err)
	}
	return &v, nil
}

// ListVersions returns the versions of a proposal, oldest first.
func (s *Store) ListVersions(ctx context.Context, proposalID uint) ([]ProposalVersion, error) {
	if _, err := s.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	var out []ProposalVersion
	err := s.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("version_number ASC").
		Find(&out).Error
	if err != nil {
		return nil, wrap("list versions", err)
	}
	return out, nil
}

// SetDocumentPath records where the document of a version was written.
func (s *Store) SetDocumentPath(ctx context.Context, versionID uint, path string) error {
	return s.update(ctx, versionID, "document_path", path)
}

// UpdateStatus moves a version to status.
func (s *Store) UpdateStatus(ctx context.Context, versionID uint, status Status) error {
	st, err := ParseStatus(string(status))
	if err != nil {
		return err
	}
	if err := s.update(ctx, versionID, "status", st); err != nil {
		return err
	}
	s.log.Printf("Version %d is now %s", versionID, st)
	return nil
}

func (s *Store) update(ctx context.Context, versionID uint, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&ProposalVersion{ID: versionID}).Update(column, value)
	if res.Error != nil {
		return wrap("update "+column, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: update %s of version %d: %w", column, versionID, proposalgen.ErrNotFound)
	}
	return nil
}
