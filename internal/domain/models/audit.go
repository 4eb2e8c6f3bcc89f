package models

import "time"

// AuditAction enumerates the recorded entry actions.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditEdit   AuditAction = "edit"
	AuditDelete AuditAction = "delete"
	AuditSplit  AuditAction = "split"
)

// MaxAuditNotesLen bounds audit notes.
const MaxAuditNotesLen = 500

// FieldChange is the stringified before/after value of one field.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Changes maps field names to their change.
type Changes map[string]FieldChange

// AuditRecord is an immutable log entry describing a create/edit/delete/split action.
// EntryID and UserID are weak references and become nil once their target is removed.
type AuditRecord struct {
	ID              int64       `json:"id"`
	Timestamp       time.Time   `json:"timestamp"`
	Action          AuditAction `json:"action"`
	EntryID         *int64      `json:"entry_id"`
	EntryIDSnapshot int64       `json:"entry_id_snapshot"`
	UserID          *int64      `json:"user_id"`
	Username        string      `json:"username,omitempty"`
	Changes         Changes     `json:"changes"`
	Notes           string      `json:"notes"`
}

// AuditPage is one page of the audit log, newest first.
type AuditPage struct {
	Records    []AuditRecord `json:"records"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	TotalCount int64         `json:"total_count"`
}

// EntryDetail is an entry with its audit history, newest first.
type EntryDetail struct {
	Entry   Entry         `json:"entry"`
	History []AuditRecord `json:"history"`
}
