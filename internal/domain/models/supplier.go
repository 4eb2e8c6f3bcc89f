package models

// MaxSupplierNameLen bounds supplier names.
const MaxSupplierNameLen = 200

// Supplier is a vendor referenced weakly by entries.
type Supplier struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SupplierSummary is a supplier annotated with its entry totals.
type SupplierSummary struct {
	Supplier
	EntryCount int64 `json:"entry_count"`
	TotalCost  Money `json:"total_cost"`
}

// SupplierDetail is a supplier with its entries and subtotals.
type SupplierDetail struct {
	Supplier  Supplier     `json:"supplier"`
	Entries   []Entry      `json:"entries"`
	TotalCost Money        `json:"total_cost"`
	Count     int64        `json:"entry_count"`
	Subtotals []LMSubtotal `json:"lm_subtotals"`
}

// TypeCategory classifies entries by a short code.
type TypeCategory struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Label renders "code - description".
func (t TypeCategory) Label() string {
	return t.Code + " - " + t.Description
}

// Type category length limits.
const (
	MaxTypeCodeLen        = 10
	MaxTypeDescriptionLen = 100
)

// LMSubtotal aggregates cost and count per labor code.
type LMSubtotal struct {
	Code  LaborCode `json:"code"`
	Label string    `json:"label"`
	Total Money     `json:"total"`
	Count int64     `json:"count"`
}
