// Package suppliers implements supplier listing, detail and rename/merge.
package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/repository"
	"github.com/mamadbah2/sitecost/internal/service/audit"
)

// ListSortKeys are the sort keys accepted by List.
var ListSortKeys = []string{"name", "entry_count", "total_cost"}

// RenameResult describes what a rename did.
type RenameResult struct {
	Supplier models.Supplier `json:"supplier"`
	Merged   bool            `json:"merged"`
	Moved    int64           `json:"moved_entries"`
}

// Service exposes supplier operations.
type Service struct {
	store    repository.Store
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewService wires a new supplier service.
func NewService(store repository.Store, recorder *audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, recorder: recorder, logger: logger}
}

// List returns every supplier with entry count and total cost. Unknown sort keys
// fall back to name ascending.
func (s *Service) List(ctx context.Context, sortKey string, dir models.SortDir) ([]models.SupplierSummary, error) {
	if !contains(ListSortKeys, sortKey) {
		sortKey = "name"
	}
	if dir != models.SortDesc {
		dir = models.SortAsc
	}
	return s.store.ListSuppliers(ctx, sortKey, dir)
}

// Detail returns a supplier with its entries (default date descending), totals and
// labor code subtotals.
func (s *Service) Detail(ctx context.Context, id int64, sortKey string, dir models.SortDir) (models.SupplierDetail, error) {
	if !contains(models.EntrySortKeys, sortKey) {
		sortKey = "date"
		dir = models.SortDesc
	}
	if dir != models.SortAsc && dir != models.SortDesc {
		dir = models.SortDesc
	}

	supplier, err := s.store.GetSupplier(ctx, id)
	if err != nil {
		return models.SupplierDetail{}, err
	}
	entries, err := s.store.SupplierEntries(ctx, id, sortKey, dir)
	if err != nil {
		return models.SupplierDetail{}, err
	}
	subtotals, err := s.store.LMSubtotals(ctx, models.EntryFilter{SupplierID: &id})
	if err != nil {
		return models.SupplierDetail{}, err
	}

	total := decimal.New(0, -models.MoneyPlaces)
	for _, e := range entries {
		if e.Cost.Valid {
			total = total.Add(e.Cost.Decimal)
		}
	}

	return models.SupplierDetail{
		Supplier:  supplier,
		Entries:   entries,
		TotalCost: models.NewMoney(total),
		Count:     int64(len(entries)),
		Subtotals: subtotals,
	}, nil
}

// Create stores a new supplier with a unique, trimmed name.
func (s *Service) Create(ctx context.Context, name string) (models.Supplier, error) {
	name = strings.TrimSpace(name)
	if verr := validateName(name); verr != nil {
		return models.Supplier{}, verr
	}

	var created models.Supplier
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		if existing, err := q.FindSupplierByName(ctx, name); err == nil {
			verr := models.NewValidationError()
			verr.Add("name", fmt.Sprintf("supplier %q already exists (id %d)", existing.Name, existing.ID))
			return verr
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		var err error
		created, err = q.CreateSupplier(ctx, name)
		return err
	})
	if err != nil {
		return models.Supplier{}, err
	}
	s.recorder.AfterCommit(ctx)
	return created, nil
}

// Rename renames supplier id. When another supplier already carries newName the call
// fails with a ConflictError unless confirm is set, in which case every entry moves to
// the existing supplier and the renamed one is deleted, in one transaction.
func (s *Service) Rename(ctx context.Context, id int64, newName string, confirm bool) (RenameResult, error) {
	newName = strings.TrimSpace(newName)
	if verr := validateName(newName); verr != nil {
		return RenameResult{}, verr
	}

	var result RenameResult
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		supplier, err := q.GetSupplier(ctx, id)
		if err != nil {
			return err
		}

		existing, err := q.FindSupplierByName(ctx, newName)
		switch {
		case errors.Is(err, models.ErrNotFound):
		case err != nil:
			return err
		case existing.ID == supplier.ID:
			result = RenameResult{Supplier: supplier}
			return nil
		case !confirm:
			return &models.ConflictError{Existing: existing, NewName: newName}
		default:
			moved, err := q.ReassignSupplier(ctx, supplier.ID, existing.ID)
			if err != nil {
				return err
			}
			if err := q.DeleteSupplier(ctx, supplier.ID); err != nil {
				return err
			}
			result = RenameResult{Supplier: existing, Merged: true, Moved: moved}
			return nil
		}

		if err := q.RenameSupplier(ctx, supplier.ID, newName); err != nil {
			return err
		}
		supplier.Name = newName
		result = RenameResult{Supplier: supplier}
		return nil
	})
	if err != nil {
		return RenameResult{}, err
	}

	if result.Merged {
		s.logger.Info("Supplier merged", zap.Int64("from_id", id), zap.Int64("into_id", result.Supplier.ID), zap.Int64("moved_entries", result.Moved))
	} else {
		s.logger.Info("Supplier renamed", zap.Int64("supplier_id", id), zap.String("name", newName))
	}
	s.recorder.AfterCommit(ctx)
	return result, nil
}

// Delete removes a supplier; its entries keep existing without supplier.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		return q.DeleteSupplier(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recorder.AfterCommit(ctx)
	return nil
}

func validateName(name string) *models.ValidationError {
	verr := models.NewValidationError()
	switch {
	case name == "":
		verr.Add("name", "supplier name cannot be empty")
	case utf8.RuneCountInString(name) > models.MaxSupplierNameLen:
		verr.Add("name", fmt.Sprintf("ensure this value has at most %d characters", models.MaxSupplierNameLen))
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
