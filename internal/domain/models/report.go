package models

import "time"

// Breakdown is one labelled total of a dashboard chart. ID is the supplier or type id
// when the breakdown is keyed by a reference, Code when keyed by labor code.
type Breakdown struct {
	ID    *int64 `json:"id,omitempty"`
	Code  string `json:"code,omitempty"`
	Label string `json:"label"`
	Total Money  `json:"total"`
}

// Dashboard aggregates the whole ledger.
type Dashboard struct {
	TotalEntries        int64       `json:"total_entries"`
	TotalCost           Money       `json:"total_cost"`
	TotalTransfers      Money       `json:"total_transfers"`
	TotalSuppliers      int64       `json:"total_suppliers"`
	MinDate             NullDate    `json:"min_date"`
	MaxDate             NullDate    `json:"max_date"`
	ByType              []Breakdown `json:"by_type"`
	ByLM                []Breakdown `json:"by_lm"`
	TransfersBySupplier []Breakdown `json:"transfers_by_supplier"`
	BySupplier          []Breakdown `json:"by_supplier"`
	Recent              []Entry     `json:"recent"`
}

// DashboardSnapshot is the archived daily summary stored in MongoDB.
type DashboardSnapshot struct {
	Date           time.Time `bson:"date" json:"date"`
	TotalEntries   int64     `bson:"total_entries" json:"total_entries"`
	TotalCost      string    `bson:"total_cost" json:"total_cost"`
	TotalTransfers string    `bson:"total_transfers" json:"total_transfers"`
	TotalSuppliers int64     `bson:"total_suppliers" json:"total_suppliers"`
	TopSuppliers   []string  `bson:"top_suppliers" json:"top_suppliers"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}
