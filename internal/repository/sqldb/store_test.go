package sqldb

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
	"github.com/mamadbah2/sitecost/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	supplier, err := store.CreateSupplier(ctx, "Home Depot")
	require.NoError(t, err)
	typ, err := store.CreateTypeCategory(ctx, "FRM", "Framing")
	require.NoError(t, err)

	created, err := store.CreateEntry(ctx, models.EntryFields{
		Date:        models.NewDate(2024, time.February, 29),
		Description: "Studs",
		SupplierID:  &supplier.ID,
		TypeID:      &typ.ID,
		Qty:         dec("12.00"),
		Cost:        dec("-45.67"),
		Posted:      models.PostedYes,
		LM:          models.LaborMaterials,
	})
	require.NoError(t, err)

	got, err := store.GetEntry(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", got.Date.String())
	assert.Equal(t, "Studs", got.Description)
	assert.Equal(t, "-45.67", models.MoneyString(got.Cost))
	assert.Equal(t, "12.00", models.MoneyString(got.Qty))
	assert.False(t, got.Estimate.Valid)
	assert.Equal(t, "Home Depot", got.SupplierName)
	assert.Equal(t, "FRM - Framing", got.TypeLabel)
	assert.Equal(t, models.PostedYes, got.Posted)

	fields := got.EntryFields
	fields.Cost = dec("1.00")
	fields.SupplierID = nil
	updated, err := store.UpdateEntry(ctx, got.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, "1.00", models.MoneyString(updated.Cost))
	assert.Nil(t, updated.SupplierID)
	assert.Empty(t, updated.SupplierName)

	_, err = store.GetEntry(ctx, 9999)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestCreateEntryRejectsDanglingReferences(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateEntry(context.Background(), models.EntryFields{SupplierID: models.Int64Ptr(42), TypeID: models.Int64Ptr(7)})

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "supplier_id")
	assert.Contains(t, verr.Fields, "type_id")
}

func TestListEntriesPaginatesAndTotals(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 1; i <= 30; i++ {
		lm := models.LaborLabor
		if i%3 == 0 {
			lm = models.LaborMaterials
		}
		_, err := store.CreateEntry(ctx, models.EntryFields{
			Date:        models.NewDate(2024, time.January, i),
			Description: fmt.Sprintf("item %02d", i),
			Cost:        dec("1.10"),
			LM:          lm,
		})
		require.NoError(t, err)
	}
	undated, err := store.CreateEntry(ctx, models.EntryFields{Description: "undated", Cost: dec("0.05")})
	require.NoError(t, err)

	page, err := store.ListEntries(ctx, models.EntryFilter{Page: 9})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.EqualValues(t, 31, page.TotalCount)
	assert.Equal(t, "33.05", page.TotalCost.StringFixed(2))
	require.Len(t, page.Entries, 6)
	assert.Equal(t, undated.ID, page.Entries[5].ID, "undated entries sort last")

	require.Len(t, page.Subtotals, 2)
	assert.Equal(t, models.LaborLabor, page.Subtotals[0].Code)
	assert.EqualValues(t, 20, page.Subtotals[0].Count)
	assert.Equal(t, "22.00", page.Subtotals[0].Total.StringFixed(2))
	assert.Equal(t, "Materials", page.Subtotals[1].Label)

	filtered, err := store.ListEntries(ctx, models.EntryFilter{
		LM:       models.LaborMaterials,
		DateFrom: models.NewDate(2024, time.January, 10),
		DateTo:   models.NewDate(2024, time.January, 20),
		Sort:     "date",
		Dir:      models.SortDesc,
	})
	require.NoError(t, err)
	require.Len(t, filtered.Entries, 3)
	assert.Equal(t, "item 18", filtered.Entries[0].Description)
	assert.Equal(t, "item 12", filtered.Entries[2].Description)
}

func TestListEntriesSearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.CreateEntry(ctx, models.EntryFields{Description: "Tile 50% off"})
	require.NoError(t, err)
	_, err = store.CreateEntry(ctx, models.EntryFields{Description: "Tile", Notes: "full price"})
	require.NoError(t, err)

	page, err := store.ListEntries(ctx, models.EntryFilter{Search: "50%"})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "Tile 50% off", page.Entries[0].Description)

	page, err = store.ListEntries(ctx, models.EntryFilter{Search: "FULL"})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 1)
}

func TestDeleteEntryDetachesAudit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	e, err := store.CreateEntry(ctx, models.EntryFields{Description: "Nails"})
	require.NoError(t, err)
	_, err = store.AppendAudit(ctx, models.AuditRecord{Action: models.AuditCreate, EntryID: &e.ID, EntryIDSnapshot: e.ID})
	require.NoError(t, err)

	require.NoError(t, store.DeleteEntry(ctx, e.ID))
	assert.True(t, errors.Is(store.DeleteEntry(ctx, e.ID), models.ErrNotFound))

	page, err := store.ListAudit(ctx, 1, models.AuditPageSize)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Nil(t, page.Records[0].EntryID)
	assert.Equal(t, e.ID, page.Records[0].EntryIDSnapshot)
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(q repository.Queries) error {
		if _, err := q.CreateEntry(ctx, models.EntryFields{Description: "ghost"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	page, err := store.ListEntries(ctx, models.EntryFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
}

func TestSuppliersReassignAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a, err := store.CreateSupplier(ctx, "Lowes")
	require.NoError(t, err)
	b, err := store.CreateSupplier(ctx, "Lowe's")
	require.NoError(t, err)
	for _, cost := range []string{"10.00", "5.25"} {
		_, err := store.CreateEntry(ctx, models.EntryFields{SupplierID: &a.ID, Cost: dec(cost)})
		require.NoError(t, err)
	}

	list, err := store.ListSuppliers(ctx, "total_cost", models.SortDesc)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.EqualValues(t, 2, list[0].EntryCount)
	assert.Equal(t, "15.25", list[0].TotalCost.StringFixed(2))
	assert.Equal(t, "0.00", list[1].TotalCost.StringFixed(2))

	moved, err := store.ReassignSupplier(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, moved)

	entries, err := store.SupplierEntries(ctx, b.ID, "cost", models.SortAsc)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "5.25", models.MoneyString(entries[0].Cost))

	require.NoError(t, store.DeleteSupplier(ctx, b.ID))
	got, err := store.GetEntry(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got.SupplierID)

	_, err = store.FindSupplierByName(ctx, "Lowe's")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestAuditChangesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user, err := store.CreateUser(ctx, models.User{Username: "sam", PasswordHash: "x", IsActive: true})
	require.NoError(t, err)

	first, err := store.AppendAudit(ctx, models.AuditRecord{
		Action:          models.AuditEdit,
		EntryIDSnapshot: 3,
		UserID:          &user.ID,
		Changes:         models.Changes{"cost": {Old: "1.00", New: "2.00"}},
	})
	require.NoError(t, err)
	_, err = store.AppendAudit(ctx, models.AuditRecord{Action: models.AuditSplit, EntryIDSnapshot: 3, Notes: "Split into 2 parts"})
	require.NoError(t, err)

	page, err := store.ListAudit(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Records, 1)
	assert.Equal(t, models.AuditSplit, page.Records[0].Action)
	assert.Empty(t, page.Records[0].Changes)

	page, err = store.ListAudit(ctx, 2, 1)
	require.NoError(t, err)
	rec := page.Records[0]
	assert.Equal(t, first.ID, rec.ID)
	assert.Equal(t, "sam", rec.Username)
	assert.Equal(t, models.FieldChange{Old: "1.00", New: "2.00"}, rec.Changes["cost"])
	assert.WithinDuration(t, first.Timestamp, rec.Timestamp, time.Millisecond)

	require.NoError(t, store.DeleteUser(ctx, user.ID))
	page, err = store.ListAudit(ctx, 2, 1)
	require.NoError(t, err)
	assert.Nil(t, page.Records[0].UserID)
	assert.Empty(t, page.Records[0].Username)
}

func TestGroupsAndCapabilities(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	viewer, err := store.CreateGroup(ctx, models.GroupViewer)
	require.NoError(t, err)
	require.NoError(t, store.SetGroupCapabilities(ctx, viewer.ID, models.ViewerCapabilities))
	editor, err := store.CreateGroup(ctx, models.GroupEditor)
	require.NoError(t, err)
	require.NoError(t, store.SetGroupCapabilities(ctx, editor.ID, []models.Capability{models.CapAddEntry, models.CapViewEntry}))

	user, err := store.CreateUser(ctx, models.User{Username: "kim", PasswordHash: "h", IsActive: true, GroupIDs: []int64{viewer.ID, editor.ID}})
	require.NoError(t, err)

	caps, err := store.UserCapabilities(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Capability{
		models.CapAddEntry, models.CapViewAudit, models.CapViewEntry, models.CapViewSupplier, models.CapViewType,
	}, caps)

	groups, err := store.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, models.GroupEditor, groups[0].Name)
	assert.EqualValues(t, 1, groups[0].MemberCount)
	assert.Len(t, groups[1].Capabilities, len(models.ViewerCapabilities))

	user.GroupIDs = []int64{viewer.ID}
	user.IsStaff = true
	require.NoError(t, store.UpdateUser(ctx, user))
	got, err := store.FindUserByUsername(ctx, "kim")
	require.NoError(t, err)
	assert.True(t, got.IsStaff)
	assert.Equal(t, []int64{viewer.ID}, got.GroupIDs)

	require.NoError(t, store.DeleteGroup(ctx, viewer.ID))
	caps, err = store.UserCapabilities(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, caps)
	_, err = store.GetGroup(ctx, viewer.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestDashboardSeparatesTransfers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	s, err := store.CreateSupplier(ctx, "Bank")
	require.NoError(t, err)
	typ, err := store.CreateTypeCategory(ctx, "EL", "Electrical")
	require.NoError(t, err)

	seed := []models.EntryFields{
		{Date: models.NewDate(2023, time.May, 1), Cost: dec("100.00"), LM: models.LaborLabor, TypeID: &typ.ID, SupplierID: &s.ID},
		{Date: models.NewDate(2023, time.June, 9), Cost: dec("40.50"), LM: models.LaborMaterials, TypeID: &typ.ID},
		{Cost: dec("500.00"), LM: models.LaborTransfer, SupplierID: &s.ID},
	}
	for _, f := range seed {
		_, err := store.CreateEntry(ctx, f)
		require.NoError(t, err)
	}

	d, err := store.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, d.TotalEntries)
	assert.EqualValues(t, 1, d.TotalSuppliers)
	assert.Equal(t, "140.50", d.TotalCost.StringFixed(2))
	assert.Equal(t, "500.00", d.TotalTransfers.StringFixed(2))
	assert.Equal(t, "2023-05-01", d.MinDate.String())
	assert.Equal(t, "2023-06-09", d.MaxDate.String())

	require.Len(t, d.ByType, 1)
	assert.Equal(t, "EL - Electrical", d.ByType[0].Label)
	assert.Equal(t, "140.50", d.ByType[0].Total.StringFixed(2))

	require.Len(t, d.ByLM, 2)
	assert.Equal(t, "Labor", d.ByLM[0].Label)
	assert.Nil(t, d.ByLM[0].ID)

	require.Len(t, d.TransfersBySupplier, 1)
	assert.Equal(t, "500.00", d.TransfersBySupplier[0].Total.StringFixed(2))
	require.Len(t, d.BySupplier, 1)
	assert.Equal(t, "100.00", d.BySupplier[0].Total.StringFixed(2))
	assert.Len(t, d.Recent, 3)
}
