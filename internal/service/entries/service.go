// Package entries implements ledger entry and type category management.
package entries

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/repository"
	"github.com/mamadbah2/sitecost/internal/service/audit"
)

// Service exposes entry CRUD with auditing.
type Service struct {
	store    repository.Store
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewService wires a new entry service.
func NewService(store repository.Store, recorder *audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, recorder: recorder, logger: logger}
}

// List returns one page of entries matching filter, default order by date ascending.
func (s *Service) List(ctx context.Context, filter models.EntryFilter) (models.EntryPage, error) {
	filter.Normalize("date", models.SortAsc)
	return s.store.ListEntries(ctx, filter)
}

// Detail returns an entry and its audit history.
func (s *Service) Detail(ctx context.Context, id int64) (models.EntryDetail, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return models.EntryDetail{}, err
	}
	history, err := s.store.EntryAudit(ctx, id)
	if err != nil {
		return models.EntryDetail{}, err
	}
	return models.EntryDetail{Entry: entry, History: history}, nil
}

// Create validates and stores a new entry with a create audit record.
func (s *Service) Create(ctx context.Context, fields models.EntryFields, actor *models.Principal) (models.Entry, error) {
	if verr := fields.Validate(); !verr.Empty() {
		return models.Entry{}, verr
	}
	fields.Normalize()

	var (
		created models.Entry
		record  *models.AuditRecord
	)
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		var err error
		if created, err = q.CreateEntry(ctx, fields); err != nil {
			return err
		}
		record, err = s.recorder.Record(ctx, q, models.AuditCreate, created.ID, actor, nil, "")
		return err
	})
	if err != nil {
		return models.Entry{}, err
	}

	s.logger.Info("Entry created", zap.Int64("entry_id", created.ID))
	s.recorder.AfterCommit(ctx, record)
	return created, nil
}

// Update replaces the fields of entry id. An edit record is written only when at least
// one field actually changed.
func (s *Service) Update(ctx context.Context, id int64, fields models.EntryFields, actor *models.Principal) (models.Entry, error) {
	if verr := fields.Validate(); !verr.Empty() {
		return models.Entry{}, verr
	}
	fields.Normalize()

	var (
		updated models.Entry
		record  *models.AuditRecord
	)
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		old, err := q.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if updated, err = q.UpdateEntry(ctx, id, fields); err != nil {
			return err
		}
		record, err = s.recorder.Record(ctx, q, models.AuditEdit, id, actor, audit.Diff(old.EntryFields, updated.EntryFields), "")
		return err
	})
	if err != nil {
		return models.Entry{}, err
	}

	if record != nil {
		s.logger.Info("Entry updated", zap.Int64("entry_id", id), zap.Int("changed_fields", len(record.Changes)))
	}
	s.recorder.AfterCommit(ctx, record)
	return updated, nil
}

// Delete removes entry id and writes a delete audit record keeping its id snapshot.
func (s *Service) Delete(ctx context.Context, id int64, actor *models.Principal) error {
	var record *models.AuditRecord
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		entry, err := q.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		notes := entry.Description
		record, err = s.recorder.Record(ctx, q, models.AuditDelete, id, actor, nil, notes)
		if err != nil {
			return err
		}
		return q.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Entry deleted", zap.Int64("entry_id", id))
	s.recorder.AfterCommit(ctx, record)
	return nil
}

// Types lists every type category ordered by code.
func (s *Service) Types(ctx context.Context) ([]models.TypeCategory, error) {
	return s.store.ListTypeCategories(ctx)
}

// CreateType validates and stores a type category.
func (s *Service) CreateType(ctx context.Context, code, description string) (models.TypeCategory, error) {
	code = strings.TrimSpace(code)
	description = strings.TrimSpace(description)

	verr := models.NewValidationError()
	switch {
	case code == "":
		verr.Add("code", "this field is required")
	case utf8.RuneCountInString(code) > models.MaxTypeCodeLen:
		verr.Add("code", fmt.Sprintf("ensure this value has at most %d characters", models.MaxTypeCodeLen))
	}
	if utf8.RuneCountInString(description) > models.MaxTypeDescriptionLen {
		verr.Add("description", fmt.Sprintf("ensure this value has at most %d characters", models.MaxTypeDescriptionLen))
	}
	if !verr.Empty() {
		return models.TypeCategory{}, verr
	}

	t, err := s.store.CreateTypeCategory(ctx, code, description)
	if err != nil {
		return models.TypeCategory{}, err
	}
	s.recorder.AfterCommit(ctx)
	return t, nil
}

// DeleteType removes a type category; its entries become untyped.
func (s *Service) DeleteType(ctx context.Context, id int64) error {
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		return q.DeleteTypeCategory(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recorder.AfterCommit(ctx)
	return nil
}
