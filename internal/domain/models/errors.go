package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the referenced entry, supplier, type, user or group is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates malformed input rejected before any computation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrValidation indicates one or more fields violate the record constraints.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness collision that needs explicit confirmation.
	ErrConflict = errors.New("conflict")
	// ErrPersistence wraps storage failures surfaced from a transaction.
	ErrPersistence = errors.New("persistence failed")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the principal lacks the required capability.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError maps field names to human readable messages.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError returns an empty ValidationError ready to collect messages.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for field, keeping the first message reported.
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns nil when nothing was collected so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SplitValidationError carries per-draft field errors. Drafts that passed have a nil slot.
type SplitValidationError struct {
	Drafts []*ValidationError `json:"drafts"`
}

func (e *SplitValidationError) Error() string {
	var parts []string
	for i, d := range e.Drafts {
		if d.Empty() {
			continue
		}
		parts = append(parts, fmt.Sprintf("draft %d: %s", i+1, strings.TrimPrefix(d.Error(), "validation failed: ")))
	}
	return "split rejected: " + strings.Join(parts, " | ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *SplitValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError reports a supplier rename that collides with an existing supplier.
type ConflictError struct {
	Existing Supplier
	NewName  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("supplier %q already exists (id %d)", e.NewName, e.Existing.ID)
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
