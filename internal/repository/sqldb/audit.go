package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

const auditSelect = `SELECT a.id, a.created_at, a.action, a.entry_id, a.entry_id_snapshot, a.user_id,
	COALESCE(u.username, ''), a.changes, a.notes
FROM audit_records a
LEFT JOIN users u ON u.id = a.user_id`

// timestamp scans TIMESTAMPTZ values from PostgreSQL and RFC 3339 text from SQLite.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", value)
	}
}

func (t *timestamp) parse(v string) error {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	t.Time = parsed.UTC()
	return nil
}

func scanAudit(row rowScanner) (models.AuditRecord, error) {
	var (
		r             models.AuditRecord
		ts            timestamp
		action        string
		entryID, user sql.NullInt64
		changes       string
	)
	if err := row.Scan(&r.ID, &ts, &action, &entryID, &r.EntryIDSnapshot, &user, &r.Username, &changes, &r.Notes); err != nil {
		return models.AuditRecord{}, err
	}
	r.Timestamp = ts.Time
	r.Action = models.AuditAction(action)
	r.EntryID = idPtr(entryID)
	r.UserID = idPtr(user)
	r.Changes = models.Changes{}
	if changes != "" {
		if err := json.Unmarshal([]byte(changes), &r.Changes); err != nil {
			return models.AuditRecord{}, fmt.Errorf("decode audit changes: %w", err)
		}
	}
	return r, nil
}

// AppendAudit stores a new audit record. A zero timestamp is set to now.
func (q *queries) AppendAudit(ctx context.Context, record models.AuditRecord) (models.AuditRecord, error) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.Timestamp = record.Timestamp.UTC()
	if record.Changes == nil {
		record.Changes = models.Changes{}
	}
	changes, err := json.Marshal(record.Changes)
	if err != nil {
		return models.AuditRecord{}, fmt.Errorf("encode audit changes: %w", err)
	}

	id, err := q.insertID(ctx, `INSERT INTO audit_records (created_at, action, entry_id, entry_id_snapshot, user_id, changes, notes)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.Format(time.RFC3339Nano), string(record.Action), nullID(record.EntryID),
		record.EntryIDSnapshot, nullID(record.UserID), string(changes), record.Notes)
	if err != nil {
		return models.AuditRecord{}, storageErr("append audit record", err)
	}
	record.ID = id
	return record, nil
}

// ListAudit returns one page of the log, newest first.
func (q *queries) ListAudit(ctx context.Context, page, size int) (models.AuditPage, error) {
	if size <= 0 {
		size = models.AuditPageSize
	}

	var count int64
	if err := q.queryRow(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&count); err != nil {
		return models.AuditPage{}, storageErr("count audit records", err)
	}
	pages := models.PageCount(count, size)
	page = models.ClampPage(page, pages)

	records, err := q.scanAuditRows(ctx, "list audit records",
		auditSelect+" ORDER BY a.id DESC LIMIT ? OFFSET ?", size, (page-1)*size)
	if err != nil {
		return models.AuditPage{}, err
	}
	return models.AuditPage{Records: records, Page: page, TotalPages: pages, TotalCount: count}, nil
}

// EntryAudit returns the history of one live entry, newest first.
func (q *queries) EntryAudit(ctx context.Context, entryID int64) ([]models.AuditRecord, error) {
	return q.scanAuditRows(ctx, "entry audit records", auditSelect+" WHERE a.entry_id = ? ORDER BY a.id DESC", entryID)
}

func (q *queries) scanAuditRows(ctx context.Context, op, query string, args ...interface{}) ([]models.AuditRecord, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := make([]models.AuditRecord, 0)
	for rows.Next() {
		r, err := scanAudit(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}
