package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/domain/money"
)

var supplierSortColumns = map[string]string{
	"name":        "s.name",
	"entry_count": "COUNT(e.id)",
	"total_cost":  "COALESCE(SUM(e.cost_cents), 0)",
}

// GetSupplier loads one supplier.
func (q *queries) GetSupplier(ctx context.Context, id int64) (models.Supplier, error) {
	var s models.Supplier
	if err := q.queryRow(ctx, "SELECT id, name FROM suppliers WHERE id = ?", id).Scan(&s.ID, &s.Name); err != nil {
		return models.Supplier{}, storageErr(fmt.Sprintf("get supplier %d", id), err)
	}
	return s, nil
}

// FindSupplierByName looks a supplier up by exact name.
func (q *queries) FindSupplierByName(ctx context.Context, name string) (models.Supplier, error) {
	var s models.Supplier
	if err := q.queryRow(ctx, "SELECT id, name FROM suppliers WHERE name = ?", name).Scan(&s.ID, &s.Name); err != nil {
		return models.Supplier{}, storageErr(fmt.Sprintf("find supplier %q", name), err)
	}
	return s, nil
}

// ListSuppliers returns every supplier with entry count and total cost.
func (q *queries) ListSuppliers(ctx context.Context, sortKey string, dir models.SortDir) ([]models.SupplierSummary, error) {
	col, ok := supplierSortColumns[sortKey]
	if !ok {
		col = supplierSortColumns["name"]
	}
	direction := "ASC"
	if dir == models.SortDesc {
		direction = "DESC"
	}

	rows, err := q.query(ctx, `SELECT s.id, s.name, COUNT(e.id), SUM(e.cost_cents)
FROM suppliers s
LEFT JOIN entries e ON e.supplier_id = s.id
GROUP BY s.id, s.name
ORDER BY `+col+" "+direction+", s.id ASC")
	if err != nil {
		return nil, storageErr("list suppliers", err)
	}
	defer rows.Close()

	out := make([]models.SupplierSummary, 0)
	for rows.Next() {
		var (
			s     models.SupplierSummary
			total sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.EntryCount, &total); err != nil {
			return nil, storageErr("list suppliers", err)
		}
		s.TotalCost = money.CentsTotal(total)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list suppliers", err)
	}
	return out, nil
}

// SupplierEntries returns every entry referencing supplierID.
func (q *queries) SupplierEntries(ctx context.Context, supplierID int64, sortKey string, dir models.SortDir) ([]models.Entry, error) {
	return q.scanEntries(ctx, "supplier entries",
		entrySelect+" WHERE e.supplier_id = ?"+entryOrder(sortKey, dir), supplierID)
}

// CreateSupplier inserts a supplier.
func (q *queries) CreateSupplier(ctx context.Context, name string) (models.Supplier, error) {
	id, err := q.insertID(ctx, "INSERT INTO suppliers (name) VALUES (?)", name)
	if err != nil {
		return models.Supplier{}, storageErr("insert supplier", err)
	}
	return models.Supplier{ID: id, Name: name}, nil
}

// RenameSupplier changes the name of supplier id.
func (q *queries) RenameSupplier(ctx context.Context, id int64, name string) error {
	return q.execAffecting(ctx, fmt.Sprintf("rename supplier %d", id), "UPDATE suppliers SET name = ? WHERE id = ?", name, id)
}

// ReassignSupplier moves every entry of fromID onto toID and returns how many moved.
func (q *queries) ReassignSupplier(ctx context.Context, fromID, toID int64) (int64, error) {
	res, err := q.exec(ctx, "UPDATE entries SET supplier_id = ? WHERE supplier_id = ?", toID, fromID)
	if err != nil {
		return 0, storageErr("reassign supplier entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("reassign supplier entries", err)
	}
	return n, nil
}

// DeleteSupplier removes supplier id, leaving its entries without supplier.
func (q *queries) DeleteSupplier(ctx context.Context, id int64) error {
	op := fmt.Sprintf("delete supplier %d", id)
	if _, err := q.exec(ctx, "UPDATE entries SET supplier_id = NULL WHERE supplier_id = ?", id); err != nil {
		return storageErr(op, err)
	}
	return q.execAffecting(ctx, op, "DELETE FROM suppliers WHERE id = ?", id)
}

// GetTypeCategory loads one type category.
func (q *queries) GetTypeCategory(ctx context.Context, id int64) (models.TypeCategory, error) {
	var t models.TypeCategory
	err := q.queryRow(ctx, "SELECT id, code, description FROM type_categories WHERE id = ?", id).Scan(&t.ID, &t.Code, &t.Description)
	if err != nil {
		return models.TypeCategory{}, storageErr(fmt.Sprintf("get type %d", id), err)
	}
	return t, nil
}

// ListTypeCategories returns every type ordered by code.
func (q *queries) ListTypeCategories(ctx context.Context) ([]models.TypeCategory, error) {
	rows, err := q.query(ctx, "SELECT id, code, description FROM type_categories ORDER BY code, id")
	if err != nil {
		return nil, storageErr("list types", err)
	}
	defer rows.Close()

	out := make([]models.TypeCategory, 0)
	for rows.Next() {
		var t models.TypeCategory
		if err := rows.Scan(&t.ID, &t.Code, &t.Description); err != nil {
			return nil, storageErr("list types", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list types", err)
	}
	return out, nil
}

// CreateTypeCategory inserts a type category.
func (q *queries) CreateTypeCategory(ctx context.Context, code, description string) (models.TypeCategory, error) {
	id, err := q.insertID(ctx, "INSERT INTO type_categories (code, description) VALUES (?, ?)", code, description)
	if err != nil {
		return models.TypeCategory{}, storageErr("insert type", err)
	}
	return models.TypeCategory{ID: id, Code: code, Description: description}, nil
}

// DeleteTypeCategory removes a type, leaving its entries untyped.
func (q *queries) DeleteTypeCategory(ctx context.Context, id int64) error {
	op := fmt.Sprintf("delete type %d", id)
	if _, err := q.exec(ctx, "UPDATE entries SET type_id = NULL WHERE type_id = ?", id); err != nil {
		return storageErr(op, err)
	}
	return q.execAffecting(ctx, op, "DELETE FROM type_categories WHERE id = ?", id)
}
