// Package audit records entry changes and serves the audit log.
package audit

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/repository"
)

// Sink receives audit records once their transaction committed.
type Sink interface {
	PublishAudit(ctx context.Context, records ...models.AuditRecord) error
}

// Recorder writes audit records inside the caller's transaction and fans committed
// changes out to the sink and change listeners.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners []func(context.Context)
}

// NewRecorder wires a recorder. A nil sink disables publishing.
func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// Diff returns the fields whose stringified value differs between old and updated.
func Diff(old, updated models.EntryFields) models.Changes {
	changes := models.Changes{}
	before := old.FieldStrings()
	after := updated.FieldStrings()
	for i := range before {
		if before[i].Value != after[i].Value {
			changes[before[i].Name] = models.FieldChange{Old: before[i].Value, New: after[i].Value}
		}
	}
	return changes
}

// Record appends one audit record through q. An edit without changes writes nothing
// and returns nil. Create and edit keep a live reference to the entry; delete and split
// only keep the id snapshot since the entry is about to disappear.
func (r *Recorder) Record(ctx context.Context, q repository.Queries, action models.AuditAction, entryID int64, actor *models.Principal, changes models.Changes, notes string) (*models.AuditRecord, error) {
	if action == models.AuditEdit && len(changes) == 0 {
		return nil, nil
	}
	if changes == nil {
		changes = models.Changes{}
	}

	record := models.AuditRecord{
		Timestamp:       r.now().UTC(),
		Action:          action,
		EntryIDSnapshot: entryID,
		Changes:         changes,
		Notes:           truncate(notes, models.MaxAuditNotesLen),
	}
	if action == models.AuditCreate || action == models.AuditEdit {
		id := entryID
		record.EntryID = &id
	}
	if actor != nil {
		uid := actor.UserID
		record.UserID = &uid
		record.Username = actor.Username
	}

	stored, err := q.AppendAudit(ctx, record)
	if err != nil {
		return nil, err
	}
	stored.Username = record.Username
	return &stored, nil
}

// OnChange registers fn to run after every committed mutation.
func (r *Recorder) OnChange(fn func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// AfterCommit publishes records (nil ones are skipped) and notifies change listeners.
// Failures are logged only: the mutation already committed.
func (r *Recorder) AfterCommit(ctx context.Context, records ...*models.AuditRecord) {
	var out []models.AuditRecord
	for _, rec := range records {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	if len(out) > 0 && r.sink != nil {
		if err := r.sink.PublishAudit(ctx, out...); err != nil {
			r.logger.Warn("Failed to publish audit records", zap.Int("count", len(out)), zap.Error(err))
		}
	}

	r.mu.RLock()
	listeners := make([]func(context.Context), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx)
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
