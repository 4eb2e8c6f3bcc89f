// Package split previews and commits N-way splits of a ledger entry.
package split

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/domain/money"
	"github.com/mamadbah2/sitecost/internal/repository"
	"github.com/mamadbah2/sitecost/internal/service/audit"
)

// Commit is the confirmed split: the source entry and one draft per new entry.
type Commit struct {
	SourceID int64                `json:"source_id"`
	Drafts   []models.EntryFields `json:"drafts"`
}

// Preview is the proposed split of an entry.
type Preview struct {
	Source models.Entry         `json:"source"`
	Parts  int                  `json:"parts"`
	Drafts []models.EntryFields `json:"drafts"`
}

// Service orchestrates entry splits.
type Service struct {
	store    repository.Store
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewService wires a new split service.
func NewService(store repository.Store, recorder *audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, recorder: recorder, logger: logger}
}

// Preview builds n drafts copying every non-monetary field of the source and dividing
// each monetary field with money.Allocate. Nothing is persisted.
func (s *Service) Preview(ctx context.Context, sourceID int64, n int) (Preview, error) {
	if err := money.CheckParts(n); err != nil {
		return Preview{}, err
	}

	source, err := s.store.GetEntry(ctx, sourceID)
	if err != nil {
		return Preview{}, err
	}

	drafts, err := Drafts(source.EntryFields, n)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Source: source, Parts: n, Drafts: drafts}, nil
}

// Drafts divides fields into n drafts.
func Drafts(fields models.EntryFields, n int) ([]models.EntryFields, error) {
	if err := money.CheckParts(n); err != nil {
		return nil, err
	}
	drafts := make([]models.EntryFields, n)
	for i := range drafts {
		drafts[i] = fields
		drafts[i].SupplierID = copyRef(fields.SupplierID)
		drafts[i].TypeID = copyRef(fields.TypeID)
	}

	for f, amount := range fields.Money() {
		parts, err := money.Allocate(*amount, n)
		if err != nil {
			return nil, fmt.Errorf("divide %s: %w", models.MoneyFieldNames[f], err)
		}
		for i := range drafts {
			*drafts[i].Money()[f] = parts[i]
		}
	}
	return drafts, nil
}

// Commit validates every draft and, in one transaction, inserts them, appends a split
// audit record and deletes the source. Invalid drafts yield a SplitValidationError and
// leave the store untouched. The created entries are returned in draft order.
func (s *Service) Commit(ctx context.Context, commit Commit, actor *models.Principal) ([]models.Entry, error) {
	n := len(commit.Drafts)
	if err := money.CheckParts(n); err != nil {
		return nil, err
	}

	drafts := make([]models.EntryFields, n)
	verr := &models.SplitValidationError{Drafts: make([]*models.ValidationError, n)}
	failed := false
	for i, d := range commit.Drafts {
		if v := d.Validate(); !v.Empty() {
			verr.Drafts[i] = v
			failed = true
			continue
		}
		d.Normalize()
		drafts[i] = d
	}
	if failed {
		return nil, verr
	}

	var (
		created []models.Entry
		record  *models.AuditRecord
	)
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		if _, err := q.GetEntry(ctx, commit.SourceID); err != nil {
			return err
		}

		created = make([]models.Entry, 0, n)
		for i, d := range drafts {
			e, err := q.CreateEntry(ctx, d)
			if err != nil {
				var fieldErr *models.ValidationError
				if errors.As(err, &fieldErr) {
					verr.Drafts[i] = fieldErr
					return verr
				}
				return err
			}
			created = append(created, e)
		}

		var err error
		record, err = s.recorder.Record(ctx, q, models.AuditSplit, commit.SourceID, actor, nil, splitNotes(created))
		if err != nil {
			return err
		}

		return q.DeleteEntry(ctx, commit.SourceID)
	})
	if err != nil {
		s.logger.Warn("Split rejected", zap.Int64("source_id", commit.SourceID), zap.Int("parts", n), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Entry split", zap.Int64("source_id", commit.SourceID), zap.Int("parts", n))
	s.recorder.AfterCommit(ctx, record)
	return created, nil
}

func splitNotes(created []models.Entry) string {
	ids := make([]string, len(created))
	for i, e := range created {
		ids[i] = fmt.Sprintf("#%d", e.ID)
	}
	return fmt.Sprintf("Split into %d parts: %s", len(created), strings.Join(ids, ", "))
}

func copyRef(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
