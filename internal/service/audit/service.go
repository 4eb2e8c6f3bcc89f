package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/repository"
)

// Service exposes the audit log for browsing.
type Service struct {
	store  repository.Queries
	logger *zap.Logger
}

// NewService wires a new audit log service.
func NewService(store repository.Queries, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// List returns one page of the log, newest first. Out of range pages clamp.
func (s *Service) List(ctx context.Context, page int) (models.AuditPage, error) {
	result, err := s.store.ListAudit(ctx, page, models.AuditPageSize)
	if err != nil {
		return models.AuditPage{}, fmt.Errorf("list audit log: %w", err)
	}
	return result, nil
}
