package sqldb

import "strings"

// Monetary columns hold integer cents so SUM stays exact on both engines.
const entryColumnsDDL = `
	entry_date {{date}} NULL,
	description VARCHAR(500) NOT NULL DEFAULT '',
	stage VARCHAR(20) NOT NULL DEFAULT '',
	lc_stage VARCHAR(20) NOT NULL DEFAULT '',
	supplier_id BIGINT NULL REFERENCES suppliers(id) ON DELETE SET NULL,
	estimate_cents BIGINT NULL,
	qty_cents BIGINT NULL,
	supplies_cost_cents BIGINT NULL,
	tax_fees_cents BIGINT NULL,
	cost_cents BIGINT NULL,
	invoiced_amt_cents BIGINT NULL,
	posted VARCHAR(10) NOT NULL DEFAULT '',
	lm VARCHAR(5) NOT NULL DEFAULT '',
	supervisor VARCHAR(200) NOT NULL DEFAULT '',
	invoice_number VARCHAR(50) NOT NULL DEFAULT '',
	delivery_type VARCHAR(20) NOT NULL DEFAULT '',
	materials VARCHAR(200) NOT NULL DEFAULT '',
	book_number VARCHAR(20) NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	type_id BIGINT NULL REFERENCES type_categories(id) ON DELETE SET NULL`

var schemaTemplate = []string{
	`CREATE TABLE IF NOT EXISTS suppliers (
	id {{pk}},
	name VARCHAR(200) NOT NULL UNIQUE
)`,
	`CREATE TABLE IF NOT EXISTS type_categories (
	id {{pk}},
	code VARCHAR(10) NOT NULL,
	description VARCHAR(100) NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS entries (
	id {{pk}},` + entryColumnsDDL + `
)`,
	`CREATE INDEX IF NOT EXISTS entries_date_idx ON entries (entry_date, id)`,
	`CREATE INDEX IF NOT EXISTS entries_supplier_idx ON entries (supplier_id)`,
	`CREATE INDEX IF NOT EXISTS entries_type_idx ON entries (type_id)`,
	`CREATE TABLE IF NOT EXISTS users (
	id {{pk}},
	username VARCHAR(150) NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_staff BOOLEAN NOT NULL DEFAULT FALSE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS user_groups (
	id {{pk}},
	name VARCHAR(150) NOT NULL UNIQUE
)`,
	`CREATE TABLE IF NOT EXISTS group_capabilities (
	group_id BIGINT NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
	capability VARCHAR(50) NOT NULL,
	PRIMARY KEY (group_id, capability)
)`,
	`CREATE TABLE IF NOT EXISTS user_group_members (
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	group_id BIGINT NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, group_id)
)`,
	`CREATE TABLE IF NOT EXISTS audit_records (
	id {{pk}},
	created_at {{timestamp}} NOT NULL,
	action VARCHAR(10) NOT NULL,
	entry_id BIGINT NULL REFERENCES entries(id) ON DELETE SET NULL,
	entry_id_snapshot BIGINT NOT NULL,
	user_id BIGINT NULL REFERENCES users(id) ON DELETE SET NULL,
	changes TEXT NOT NULL DEFAULT '{}',
	notes VARCHAR(500) NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS audit_entry_idx ON audit_records (entry_id)`,
}

func schemaFor(dialect Dialect) []string {
	var r *strings.Replacer
	switch dialect {
	case DialectPostgres:
		r = strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{date}}", "DATE",
			"{{timestamp}}", "TIMESTAMPTZ",
		)
	default:
		r = strings.NewReplacer(
			"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{date}}", "TEXT",
			"{{timestamp}}", "TEXT",
		)
	}

	out := make([]string, len(schemaTemplate))
	for i, stmt := range schemaTemplate {
		out[i] = r.Replace(stmt)
	}
	return out
}
