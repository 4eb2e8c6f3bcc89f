// Package repository declares the persistence contract shared by the services.
package repository

import (
	"context"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

// Queries are the operations available both on the store and inside a transaction.
type Queries interface {
	GetEntry(ctx context.Context, id int64) (models.Entry, error)
	ListEntries(ctx context.Context, filter models.EntryFilter) (models.EntryPage, error)
	AllEntries(ctx context.Context) ([]models.Entry, error)
	RecentEntries(ctx context.Context, limit int) ([]models.Entry, error)
	CreateEntry(ctx context.Context, fields models.EntryFields) (models.Entry, error)
	UpdateEntry(ctx context.Context, id int64, fields models.EntryFields) (models.Entry, error)
	DeleteEntry(ctx context.Context, id int64) error

	GetSupplier(ctx context.Context, id int64) (models.Supplier, error)
	FindSupplierByName(ctx context.Context, name string) (models.Supplier, error)
	ListSuppliers(ctx context.Context, sort string, dir models.SortDir) ([]models.SupplierSummary, error)
	SupplierEntries(ctx context.Context, supplierID int64, sort string, dir models.SortDir) ([]models.Entry, error)
	LMSubtotals(ctx context.Context, filter models.EntryFilter) ([]models.LMSubtotal, error)
	CreateSupplier(ctx context.Context, name string) (models.Supplier, error)
	RenameSupplier(ctx context.Context, id int64, name string) error
	ReassignSupplier(ctx context.Context, fromID, toID int64) (int64, error)
	DeleteSupplier(ctx context.Context, id int64) error

	GetTypeCategory(ctx context.Context, id int64) (models.TypeCategory, error)
	ListTypeCategories(ctx context.Context) ([]models.TypeCategory, error)
	CreateTypeCategory(ctx context.Context, code, description string) (models.TypeCategory, error)
	DeleteTypeCategory(ctx context.Context, id int64) error

	AppendAudit(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error)
	ListAudit(ctx context.Context, page, size int) (models.AuditPage, error)
	EntryAudit(ctx context.Context, entryID int64) ([]models.AuditRecord, error)

	GetUser(ctx context.Context, id int64) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	DeleteUser(ctx context.Context, id int64) error
	UserCapabilities(ctx context.Context, userID int64) ([]models.Capability, error)

	GetGroup(ctx context.Context, id int64) (models.Group, error)
	FindGroupByName(ctx context.Context, name string) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	CreateGroup(ctx context.Context, name string) (models.Group, error)
	RenameGroup(ctx context.Context, id int64, name string) error
	SetGroupCapabilities(ctx context.Context, id int64, caps []models.Capability) error
	DeleteGroup(ctx context.Context, id int64) error

	Dashboard(ctx context.Context) (models.Dashboard, error)
}

// Store is the root persistence handle.
type Store interface {
	Queries
	// WithinTx runs fn inside one transaction. The transaction commits when fn returns
	// nil and rolls back otherwise; fn must only use the Queries it receives.
	WithinTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}
