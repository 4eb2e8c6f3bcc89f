package models

// Page sizes used by list views.
const (
	EntryPageSize = 25
	AuditPageSize = 50
	MaxPageSize   = 100
)

// SortDir is asc or desc.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// EntryFilter describes the entry list query. Zero values mean "no filter".
type EntryFilter struct {
	SupplierID *int64
	TypeID     *int64
	LM         LaborCode
	Posted     Posted
	DateFrom   NullDate
	DateTo     NullDate
	Search     string
	Sort       string
	Dir        SortDir
	Page       int
	PageSize   int
}

// EntrySortKeys lists the accepted entry sort keys.
var EntrySortKeys = []string{"date", "description", "supplier", "cost", "lm", "type", "posted"}

// Normalize clamps sort, direction and page values into their accepted ranges.
func (f *EntryFilter) Normalize(defaultSort string, defaultDir SortDir) {
	valid := false
	for _, k := range EntrySortKeys {
		if f.Sort == k {
			valid = true
			break
		}
	}
	if !valid {
		f.Sort = defaultSort
	}
	if f.Dir != SortAsc && f.Dir != SortDesc {
		f.Dir = defaultDir
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	switch {
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	case f.PageSize <= 0:
		f.PageSize = EntryPageSize
	}
}

// EntryPage is one page of the filtered entry list plus totals over the whole filter.
type EntryPage struct {
	Entries    []Entry      `json:"entries"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
	TotalCount int64        `json:"total_count"`
	TotalCost  Money        `json:"total_cost"`
	Subtotals  []LMSubtotal `json:"lm_subtotals"`
}

// PageCount returns the number of pages needed for total rows, at least one.
func PageCount(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

// ClampPage keeps a 1-based page inside [1, pages].
func ClampPage(page, pages int) int {
	if page < 1 {
		return 1
	}
	if page > pages {
		return pages
	}
	return page
}
