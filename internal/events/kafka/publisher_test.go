package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishAuditEncodesRecords(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, nil)

	err := p.PublishAudit(context.Background(),
		models.AuditRecord{ID: 1, Action: models.AuditSplit, EntryIDSnapshot: 42, Notes: "Split into 2 parts"},
		models.AuditRecord{ID: 2, Action: models.AuditDelete, EntryIDSnapshot: 7},
	)
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Equal(t, "split", string(w.msgs[0].Headers[0].Value))

	var decoded models.AuditRecord
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "Split into 2 parts", decoded.Notes)
	assert.EqualValues(t, 42, decoded.EntryIDSnapshot)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishAuditSurfacesWriterErrors(t *testing.T) {
	p := newPublisher(&fakeWriter{err: errors.New("leader not available")}, nil)
	err := p.PublishAudit(context.Background(), models.AuditRecord{ID: 3})
	assert.ErrorContains(t, err, "leader not available")
}

func TestPublishAuditNothingToSend(t *testing.T) {
	w := &fakeWriter{err: errors.New("unused")}
	assert.NoError(t, newPublisher(w, nil).PublishAudit(context.Background()))
	assert.NoError(t, Nop{}.PublishAudit(context.Background(), models.AuditRecord{}))
}
