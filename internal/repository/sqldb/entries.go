package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/domain/money"
)

const entrySelect = `SELECT e.id, e.entry_date, e.description, e.stage, e.lc_stage, e.supplier_id,
	e.estimate_cents, e.qty_cents, e.supplies_cost_cents, e.tax_fees_cents, e.cost_cents, e.invoiced_amt_cents,
	e.posted, e.lm, e.supervisor, e.invoice_number, e.delivery_type, e.materials, e.book_number, e.notes, e.type_id,
	COALESCE(s.name, ''), COALESCE(t.code, ''), COALESCE(t.description, '')
FROM entries e
LEFT JOIN suppliers s ON s.id = e.supplier_id
LEFT JOIN type_categories t ON t.id = e.type_id`

const entryInsert = `INSERT INTO entries (entry_date, description, stage, lc_stage, supplier_id,
	estimate_cents, qty_cents, supplies_cost_cents, tax_fees_cents, cost_cents, invoiced_amt_cents,
	posted, lm, supervisor, invoice_number, delivery_type, materials, book_number, notes, type_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const entryUpdate = `UPDATE entries SET entry_date = ?, description = ?, stage = ?, lc_stage = ?, supplier_id = ?,
	estimate_cents = ?, qty_cents = ?, supplies_cost_cents = ?, tax_fees_cents = ?, cost_cents = ?, invoiced_amt_cents = ?,
	posted = ?, lm = ?, supervisor = ?, invoice_number = ?, delivery_type = ?, materials = ?, book_number = ?, notes = ?, type_id = ?
WHERE id = ?`

// entrySortColumns maps public sort keys to SQL expressions.
var entrySortColumns = map[string]string{
	"date":        "e.entry_date",
	"description": "e.description",
	"supplier":    "s.name",
	"cost":        "e.cost_cents",
	"lm":          "e.lm",
	"type":        "t.code",
	"posted":      "e.posted",
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (models.Entry, error) {
	var (
		e                                       models.Entry
		supplierID, typeID                      sql.NullInt64
		estimate, qty, supplies, tax, cost, inv sql.NullInt64
		posted, lm, delivery                    string
		typeCode, typeDesc                      string
	)
	err := row.Scan(
		&e.ID, &e.Date, &e.Description, &e.Stage, &e.LCStage, &supplierID,
		&estimate, &qty, &supplies, &tax, &cost, &inv,
		&posted, &lm, &e.Supervisor, &e.InvoiceNumber, &delivery, &e.Materials, &e.BookNumber, &e.Notes, &typeID,
		&e.SupplierName, &typeCode, &typeDesc,
	)
	if err != nil {
		return models.Entry{}, err
	}

	e.SupplierID = idPtr(supplierID)
	e.TypeID = idPtr(typeID)
	e.Estimate = money.FromCents(estimate)
	e.Qty = money.FromCents(qty)
	e.SuppliesCost = money.FromCents(supplies)
	e.TaxFees = money.FromCents(tax)
	e.Cost = money.FromCents(cost)
	e.InvoicedAmt = money.FromCents(inv)
	e.Posted = models.Posted(posted)
	e.LM = models.LaborCode(lm)
	e.DeliveryType = models.DeliveryMethod(delivery)
	if typeID.Valid {
		e.TypeLabel = models.TypeCategory{Code: typeCode, Description: typeDesc}.Label()
	}
	return e, nil
}

func (q *queries) scanEntries(ctx context.Context, op, query string, args ...interface{}) ([]models.Entry, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	entries := make([]models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return entries, nil
}

func entryArgs(f models.EntryFields) []interface{} {
	return []interface{}{
		f.Date, f.Description, f.Stage, f.LCStage, nullID(f.SupplierID),
		money.ToCents(f.Estimate), money.ToCents(f.Qty), money.ToCents(f.SuppliesCost),
		money.ToCents(f.TaxFees), money.ToCents(f.Cost), money.ToCents(f.InvoicedAmt),
		string(f.Posted), string(f.LM), f.Supervisor, f.InvoiceNumber, string(f.DeliveryType),
		f.Materials, f.BookNumber, f.Notes, nullID(f.TypeID),
	}
}

// entryOrder builds an ORDER BY clause; undated rows sort last and id breaks ties.
func entryOrder(sortKey string, dir models.SortDir) string {
	col, ok := entrySortColumns[sortKey]
	if !ok {
		col = entrySortColumns["date"]
	}
	direction := "ASC"
	if dir == models.SortDesc {
		direction = "DESC"
	}
	if sortKey == "date" || !ok {
		return fmt.Sprintf(" ORDER BY (e.entry_date IS NULL), e.entry_date %s, e.id %s", direction, direction)
	}
	return fmt.Sprintf(" ORDER BY %s %s, e.id ASC", col, direction)
}

// entryWhere turns a filter into a WHERE clause over the entries alias e.
func entryWhere(f models.EntryFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if f.SupplierID != nil {
		clauses = append(clauses, "e.supplier_id = ?")
		args = append(args, *f.SupplierID)
	}
	if f.TypeID != nil {
		clauses = append(clauses, "e.type_id = ?")
		args = append(args, *f.TypeID)
	}
	if f.LM != "" {
		clauses = append(clauses, "e.lm = ?")
		args = append(args, string(f.LM))
	}
	if f.Posted != "" {
		clauses = append(clauses, "e.posted = ?")
		args = append(args, string(f.Posted))
	}
	if f.DateFrom.Valid {
		clauses = append(clauses, "e.entry_date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo.Valid {
		clauses = append(clauses, "e.entry_date <= ?")
		args = append(args, f.DateTo)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		var or []string
		for _, col := range []string{"e.description", "e.notes", "e.invoice_number"} {
			or = append(or, "LOWER("+col+") LIKE ? ESCAPE '\\'")
			args = append(args, pattern)
		}
		clauses = append(clauses, "("+strings.Join(or, " OR ")+")")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetEntry loads one entry with its reference labels.
func (q *queries) GetEntry(ctx context.Context, id int64) (models.Entry, error) {
	e, err := scanEntry(q.queryRow(ctx, entrySelect+" WHERE e.id = ?", id))
	if err != nil {
		return models.Entry{}, storageErr(fmt.Sprintf("get entry %d", id), err)
	}
	return e, nil
}

// ListEntries returns the requested page plus count, cost total and labor code subtotals
// over the whole filter. Out of range pages clamp to the last page.
func (q *queries) ListEntries(ctx context.Context, filter models.EntryFilter) (models.EntryPage, error) {
	filter.Normalize("date", models.SortAsc)
	where, args := entryWhere(filter)

	var (
		count int64
		total sql.NullInt64
	)
	err := q.queryRow(ctx, "SELECT COUNT(*), SUM(e.cost_cents) FROM entries e"+where, args...).Scan(&count, &total)
	if err != nil {
		return models.EntryPage{}, storageErr("count entries", err)
	}

	pages := models.PageCount(count, filter.PageSize)
	page := models.ClampPage(filter.Page, pages)

	listArgs := append(append([]interface{}{}, args...), filter.PageSize, (page-1)*filter.PageSize)
	entries, err := q.scanEntries(ctx, "list entries",
		entrySelect+where+entryOrder(filter.Sort, filter.Dir)+" LIMIT ? OFFSET ?", listArgs...)
	if err != nil {
		return models.EntryPage{}, err
	}

	subtotals, err := q.LMSubtotals(ctx, filter)
	if err != nil {
		return models.EntryPage{}, err
	}

	return models.EntryPage{
		Entries:    entries,
		Page:       page,
		PageSize:   filter.PageSize,
		TotalPages: pages,
		TotalCount: count,
		TotalCost:  money.CentsTotal(total),
		Subtotals:  subtotals,
	}, nil
}

// AllEntries returns every entry in ledger order, used by exports.
func (q *queries) AllEntries(ctx context.Context) ([]models.Entry, error) {
	return q.scanEntries(ctx, "all entries", entrySelect+entryOrder("date", models.SortAsc))
}

// RecentEntries returns the latest dated entries first.
func (q *queries) RecentEntries(ctx context.Context, limit int) ([]models.Entry, error) {
	return q.scanEntries(ctx, "recent entries",
		entrySelect+" ORDER BY (e.entry_date IS NULL), e.entry_date DESC, e.id DESC LIMIT ?", limit)
}

// CreateEntry inserts fields and returns the stored entry.
func (q *queries) CreateEntry(ctx context.Context, fields models.EntryFields) (models.Entry, error) {
	if err := q.checkRefs(ctx, fields); err != nil {
		return models.Entry{}, err
	}
	id, err := q.insertID(ctx, entryInsert, entryArgs(fields)...)
	if err != nil {
		return models.Entry{}, storageErr("insert entry", err)
	}
	return q.GetEntry(ctx, id)
}

// UpdateEntry replaces every field of entry id.
func (q *queries) UpdateEntry(ctx context.Context, id int64, fields models.EntryFields) (models.Entry, error) {
	if err := q.checkRefs(ctx, fields); err != nil {
		return models.Entry{}, err
	}
	args := append(entryArgs(fields), id)
	if err := q.execAffecting(ctx, fmt.Sprintf("update entry %d", id), entryUpdate, args...); err != nil {
		return models.Entry{}, err
	}
	return q.GetEntry(ctx, id)
}

// DeleteEntry removes entry id and detaches audit records pointing at it.
func (q *queries) DeleteEntry(ctx context.Context, id int64) error {
	op := fmt.Sprintf("delete entry %d", id)
	if _, err := q.exec(ctx, "UPDATE audit_records SET entry_id = NULL WHERE entry_id = ?", id); err != nil {
		return storageErr(op, err)
	}
	return q.execAffecting(ctx, op, "DELETE FROM entries WHERE id = ?", id)
}

// checkRefs reports dangling supplier or type references as field errors.
func (q *queries) checkRefs(ctx context.Context, fields models.EntryFields) error {
	verr := models.NewValidationError()
	if fields.SupplierID != nil {
		ok, err := q.exists(ctx, "SELECT COUNT(*) FROM suppliers WHERE id = ?", *fields.SupplierID)
		if err != nil {
			return err
		}
		if !ok {
			verr.Add("supplier_id", "select a valid choice")
		}
	}
	if fields.TypeID != nil {
		ok, err := q.exists(ctx, "SELECT COUNT(*) FROM type_categories WHERE id = ?", *fields.TypeID)
		if err != nil {
			return err
		}
		if !ok {
			verr.Add("type_id", "select a valid choice")
		}
	}
	return verr.OrNil()
}

func (q *queries) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var n int64
	if err := q.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, storageErr("check reference", err)
	}
	return n > 0, nil
}

// LMSubtotals aggregates cost and count per labor code over filter, in code order.
func (q *queries) LMSubtotals(ctx context.Context, filter models.EntryFilter) ([]models.LMSubtotal, error) {
	where, args := entryWhere(filter)
	if where == "" {
		where = " WHERE e.lm <> ''"
	} else {
		where += " AND e.lm <> ''"
	}

	rows, err := q.query(ctx, "SELECT e.lm, SUM(e.cost_cents), COUNT(*) FROM entries e"+where+" GROUP BY e.lm ORDER BY e.lm", args...)
	if err != nil {
		return nil, storageErr("lm subtotals", err)
	}
	defer rows.Close()

	out := make([]models.LMSubtotal, 0, 4)
	for rows.Next() {
		var (
			code  string
			total sql.NullInt64
			count int64
		)
		if err := rows.Scan(&code, &total, &count); err != nil {
			return nil, storageErr("lm subtotals", err)
		}
		lm := models.LaborCode(code)
		out = append(out, models.LMSubtotal{Code: lm, Label: lm.Label(), Total: money.CentsTotal(total), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("lm subtotals", err)
	}
	return out, nil
}
