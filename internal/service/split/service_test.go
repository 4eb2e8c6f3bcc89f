package split

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/domain/money"
	"github.com/mamadbah2/sitecost/internal/repository"
	"github.com/mamadbah2/sitecost/internal/repository/sqldb"
	"github.com/mamadbah2/sitecost/internal/repository/sqldb/sqldbtest"
	"github.com/mamadbah2/sitecost/internal/service/audit"
)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

type fixture struct {
	store    *sqldb.Store
	svc      *Service
	source   models.Entry
	supplier models.Supplier
	changes  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := sqldbtest.Open(t)

	supplier, err := store.CreateSupplier(ctx, "Builders Supply")
	require.NoError(t, err)
	typ, err := store.CreateTypeCategory(ctx, "CON", "Concrete")
	require.NoError(t, err)

	source, err := store.CreateEntry(ctx, models.EntryFields{
		Date:         models.NewDate(2024, time.July, 4),
		Description:  "Foundation pour",
		SupplierID:   &supplier.ID,
		TypeID:       &typ.ID,
		Estimate:     dec("1000.00"),
		Qty:          dec("3.00"),
		SuppliesCost: dec("-0.05"),
		Cost:         dec("10.00"),
		Posted:       models.PostedInvoice,
		LM:           models.LaborMaterials,
		Notes:        "pour day",
	})
	require.NoError(t, err)

	f := &fixture{store: store, source: source, supplier: supplier}
	recorder := audit.NewRecorder(nil, nil)
	recorder.OnChange(func(context.Context) { f.changes++ })
	f.svc = NewService(store, recorder, nil)
	return f
}

func TestPreviewDividesMoneyAndCopiesTheRest(t *testing.T) {
	f := newFixture(t)

	preview, err := f.svc.Preview(context.Background(), f.source.ID, 3)
	require.NoError(t, err)
	require.Len(t, preview.Drafts, 3)

	costs := []string{}
	for _, d := range preview.Drafts {
		costs = append(costs, models.MoneyString(d.Cost))
		assert.Equal(t, "Foundation pour", d.Description)
		assert.Equal(t, f.source.Date, d.Date)
		assert.Equal(t, f.supplier.ID, *d.SupplierID)
		assert.Equal(t, models.PostedInvoice, d.Posted)
		assert.False(t, d.TaxFees.Valid, "absent amounts stay absent")
	}
	assert.Equal(t, []string{"3.34", "3.33", "3.33"}, costs)
	assert.Equal(t, "1.00", models.MoneyString(preview.Drafts[2].Qty))
	assert.Equal(t, "-0.01", models.MoneyString(preview.Drafts[0].SuppliesCost))
	assert.Equal(t, "-0.02", models.MoneyString(preview.Drafts[1].SuppliesCost))

	// drafts must not share reference pointers with each other
	*preview.Drafts[0].SupplierID = 999
	assert.Equal(t, f.supplier.ID, *preview.Drafts[1].SupplierID)
}

func TestPreviewRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Preview(context.Background(), f.source.ID, 1)
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))

	_, err = f.svc.Preview(context.Background(), f.source.ID+100, 2)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestPreviewRejectsOversizedSplit(t *testing.T) {
	f := newFixture(t)

	assert.NotPanics(t, func() {
		_, err := f.svc.Preview(context.Background(), f.source.ID, 1<<40)
		assert.True(t, errors.Is(err, models.ErrInvalidArgument))
	})
	_, err := f.svc.Preview(context.Background(), f.source.ID, money.MaxParts+1)
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))

	_, err = Drafts(f.source.EntryFields, 1<<40)
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))
}

func TestCommitReplacesSourceAtomically(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	preview, err := f.svc.Preview(ctx, f.source.ID, 3)
	require.NoError(t, err)
	preview.Drafts[2].Description = "Foundation pour, east wing"

	created, err := f.svc.Commit(ctx, Commit{SourceID: f.source.ID, Drafts: preview.Drafts}, nil)
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, "Foundation pour, east wing", created[2].Description)
	assert.Equal(t, 1, f.changes)

	_, err = f.store.GetEntry(ctx, f.source.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	for i, name := range models.MoneyFieldNames {
		parts := make([]decimal.NullDecimal, len(created))
		for j := range created {
			parts[j] = *created[j].Money()[i]
		}
		original := *f.source.Money()[i]
		total, ok := money.Sum(parts)
		assert.Equal(t, original.Valid, ok, name)
		if ok {
			assert.True(t, total.Equal(original.Decimal), "%s: %s != %s", name, total, original.Decimal)
		}
	}

	log, err := f.store.ListAudit(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, log.Records, 1)
	rec := log.Records[0]
	assert.Equal(t, models.AuditSplit, rec.Action)
	assert.Equal(t, f.source.ID, rec.EntryIDSnapshot)
	assert.Nil(t, rec.EntryID)
	assert.Contains(t, rec.Notes, "Split into 3 parts")
	assert.Contains(t, rec.Notes, fmt.Sprintf("#%d", created[0].ID))
}

func TestCommitRejectsInvalidDraftWithoutWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	preview, err := f.svc.Preview(ctx, f.source.ID, 2)
	require.NoError(t, err)
	preview.Drafts[1].LM = "Q"
	preview.Drafts[1].Cost = dec("1.001")

	_, err = f.svc.Commit(ctx, Commit{SourceID: f.source.ID, Drafts: preview.Drafts}, nil)
	var verr *models.SplitValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Nil(t, verr.Drafts[0])
	assert.Contains(t, verr.Drafts[1].Fields, "lm")
	assert.Contains(t, verr.Drafts[1].Fields, "cost")

	assertUntouched(t, f)
}

func TestCommitRejectsDanglingSupplier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	preview, err := f.svc.Preview(ctx, f.source.ID, 2)
	require.NoError(t, err)
	preview.Drafts[0].SupplierID = models.Int64Ptr(f.supplier.ID + 50)

	_, err = f.svc.Commit(ctx, Commit{SourceID: f.source.ID, Drafts: preview.Drafts}, nil)
	var verr *models.SplitValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Drafts[0].Fields, "supplier_id")

	assertUntouched(t, f)
}

func TestCommitNeedsTwoDrafts(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Commit(context.Background(), Commit{SourceID: f.source.ID, Drafts: []models.EntryFields{{}}}, nil)
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))
	assertUntouched(t, f)

	_, err = f.svc.Commit(context.Background(), Commit{SourceID: f.source.ID, Drafts: make([]models.EntryFields, money.MaxParts+1)}, nil)
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))
	assertUntouched(t, f)
}

func TestSecondCommitOfSameSourceIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	preview, err := f.svc.Preview(ctx, f.source.ID, 2)
	require.NoError(t, err)
	commit := Commit{SourceID: f.source.ID, Drafts: preview.Drafts}

	_, err = f.svc.Commit(ctx, commit, nil)
	require.NoError(t, err)
	_, err = f.svc.Commit(ctx, commit, nil)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	page, err := f.store.ListEntries(ctx, models.EntryFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalCount)
}

type failingDelete struct {
	repository.Queries
}

func (failingDelete) DeleteEntry(context.Context, int64) error {
	return fmt.Errorf("delete entry: %w", models.ErrPersistence)
}

type flakyStore struct {
	*sqldb.Store
}

func (s flakyStore) WithinTx(ctx context.Context, fn func(q repository.Queries) error) error {
	return s.Store.WithinTx(ctx, func(q repository.Queries) error {
		return fn(failingDelete{q})
	})
}

func TestCommitRollsBackOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(flakyStore{f.store}, audit.NewRecorder(nil, nil), nil)

	preview, err := svc.Preview(ctx, f.source.ID, 4)
	require.NoError(t, err)
	_, err = svc.Commit(ctx, Commit{SourceID: f.source.ID, Drafts: preview.Drafts}, nil)
	assert.True(t, errors.Is(err, models.ErrPersistence))

	assertUntouched(t, f)
}

func assertUntouched(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	page, err := f.store.ListEntries(ctx, models.EntryFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.TotalCount)
	assert.Equal(t, f.source.ID, page.Entries[0].ID)

	log, err := f.store.ListAudit(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, log.TotalCount)
	assert.Zero(t, f.changes)
}
