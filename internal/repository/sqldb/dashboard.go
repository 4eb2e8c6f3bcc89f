package sqldb

import (
	"context"
	"database/sql"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/domain/money"
)

// RecentLimit is the number of entries shown on the dashboard.
const RecentLimit = 10

// Dashboard aggregates the whole ledger. Transfers (lm = X) are reported apart from costs.
func (q *queries) Dashboard(ctx context.Context) (models.Dashboard, error) {
	var (
		d               models.Dashboard
		cost, transfers sql.NullInt64
	)
	err := q.queryRow(ctx, `SELECT COUNT(*), MIN(e.entry_date), MAX(e.entry_date),
	SUM(CASE WHEN e.lm = 'X' THEN NULL ELSE e.cost_cents END),
	SUM(CASE WHEN e.lm = 'X' THEN e.cost_cents ELSE NULL END)
FROM entries e`).Scan(&d.TotalEntries, &d.MinDate, &d.MaxDate, &cost, &transfers)
	if err != nil {
		return models.Dashboard{}, storageErr("dashboard totals", err)
	}
	d.TotalCost = money.CentsTotal(cost)
	d.TotalTransfers = money.CentsTotal(transfers)

	if err := q.queryRow(ctx, "SELECT COUNT(*) FROM suppliers").Scan(&d.TotalSuppliers); err != nil {
		return models.Dashboard{}, storageErr("dashboard supplier count", err)
	}

	if d.ByType, err = q.breakdown(ctx, "dashboard by type", `SELECT t.id, t.code, t.description, SUM(e.cost_cents)
FROM entries e
JOIN type_categories t ON t.id = e.type_id
WHERE e.lm <> 'X'
GROUP BY t.id, t.code, t.description
ORDER BY t.code`, func(_ int64, code, desc string) (string, string) {
		return code, models.TypeCategory{Code: code, Description: desc}.Label()
	}); err != nil {
		return models.Dashboard{}, err
	}

	if d.ByLM, err = q.breakdown(ctx, "dashboard by labor code", `SELECT 0, e.lm, '', SUM(e.cost_cents)
FROM entries e
WHERE e.lm IN ('L', 'M', 'U')
GROUP BY e.lm
ORDER BY e.lm`, func(_ int64, code, _ string) (string, string) {
		return code, models.LaborCode(code).Label()
	}); err != nil {
		return models.Dashboard{}, err
	}
	for i := range d.ByLM {
		d.ByLM[i].ID = nil
	}

	supplierLabel := func(_ int64, name, _ string) (string, string) { return "", name }

	if d.TransfersBySupplier, err = q.breakdown(ctx, "dashboard transfers by supplier", `SELECT s.id, s.name, '', COALESCE(SUM(e.cost_cents), 0) AS total
FROM entries e
JOIN suppliers s ON s.id = e.supplier_id
WHERE e.lm = 'X'
GROUP BY s.id, s.name
ORDER BY total DESC, s.name`, supplierLabel); err != nil {
		return models.Dashboard{}, err
	}

	if d.BySupplier, err = q.breakdown(ctx, "dashboard by supplier", `SELECT s.id, s.name, '', COALESCE(SUM(e.cost_cents), 0) AS total
FROM entries e
JOIN suppliers s ON s.id = e.supplier_id
WHERE e.lm <> 'X'
GROUP BY s.id, s.name
ORDER BY total DESC, s.name`, supplierLabel); err != nil {
		return models.Dashboard{}, err
	}

	if d.Recent, err = q.RecentEntries(ctx, RecentLimit); err != nil {
		return models.Dashboard{}, err
	}
	return d, nil
}

// breakdown scans rows of (id, code, description, cents) into labelled totals.
func (q *queries) breakdown(ctx context.Context, op, query string, label func(id int64, code, desc string) (string, string)) ([]models.Breakdown, error) {
	rows, err := q.query(ctx, query)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := make([]models.Breakdown, 0)
	for rows.Next() {
		var (
			id         int64
			code, desc string
			total      sql.NullInt64
		)
		if err := rows.Scan(&id, &code, &desc, &total); err != nil {
			return nil, storageErr(op, err)
		}
		key, text := label(id, code, desc)
		ref := id
		out = append(out, models.Breakdown{ID: &ref, Code: key, Label: text, Total: money.CentsTotal(total)})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}
