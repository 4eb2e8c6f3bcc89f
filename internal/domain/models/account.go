package models

import "sort"

// Capability is a named permission checked by the HTTP boundary.
type Capability string

const (
	CapViewEntry      Capability = "view_entry"
	CapAddEntry       Capability = "add_entry"
	CapChangeEntry    Capability = "change_entry"
	CapDeleteEntry    Capability = "delete_entry"
	CapViewSupplier   Capability = "view_supplier"
	CapAddSupplier    Capability = "add_supplier"
	CapChangeSupplier Capability = "change_supplier"
	CapDeleteSupplier Capability = "delete_supplier"
	CapViewType       Capability = "view_type"
	CapAddType        Capability = "add_type"
	CapChangeType     Capability = "change_type"
	CapViewAudit      Capability = "view_audit"
)

// CapabilityInfo describes a capability for group editing screens.
type CapabilityInfo struct {
	Code     Capability `json:"code"`
	Label    string     `json:"label"`
	Category string     `json:"category"`
}

// CapabilityCatalog lists every known capability grouped by category.
var CapabilityCatalog = []CapabilityInfo{
	{CapViewEntry, "View entries", "Entries"},
	{CapAddEntry, "Add entries", "Entries"},
	{CapChangeEntry, "Edit and split entries", "Entries"},
	{CapDeleteEntry, "Delete entries", "Entries"},
	{CapViewSupplier, "View suppliers", "Suppliers"},
	{CapAddSupplier, "Add suppliers", "Suppliers"},
	{CapChangeSupplier, "Rename and merge suppliers", "Suppliers"},
	{CapDeleteSupplier, "Delete suppliers", "Suppliers"},
	{CapViewType, "View types", "Types"},
	{CapAddType, "Add types", "Types"},
	{CapChangeType, "Edit and delete types", "Types"},
	{CapViewAudit, "View audit log", "Audit"},
}

// KnownCapability reports whether code is in the catalog.
func KnownCapability(code Capability) bool {
	for _, c := range CapabilityCatalog {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Default group names seeded at startup.
const (
	GroupViewer = "Viewer"
	GroupEditor = "Editor"
)

// ViewerCapabilities is the capability set of the Viewer group.
var ViewerCapabilities = []Capability{CapViewEntry, CapViewSupplier, CapViewType, CapViewAudit}

// EditorCapabilities is the capability set of the Editor group.
var EditorCapabilities = []Capability{
	CapViewEntry, CapViewSupplier, CapViewType, CapViewAudit,
	CapAddEntry, CapChangeEntry, CapDeleteEntry,
	CapAddSupplier, CapChangeSupplier, CapDeleteSupplier,
	CapAddType, CapChangeType,
}

// User is an account able to sign in.
type User struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	PasswordHash string  `json:"-"`
	IsStaff      bool    `json:"is_staff"`
	IsActive     bool    `json:"is_active"`
	GroupIDs     []int64 `json:"group_ids"`
}

// MaxUsernameLen bounds usernames.
const MaxUsernameLen = 150

// Group bundles capabilities assigned to users.
type Group struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
	MemberCount  int64        `json:"member_count"`
}

// Principal is the authenticated actor of a request.
type Principal struct {
	UserID       int64        `json:"user_id"`
	Username     string       `json:"username"`
	IsStaff      bool         `json:"is_staff"`
	Capabilities []Capability `json:"capabilities"`
}

// Can reports whether the principal holds capability. Staff holds every capability.
func (p Principal) Can(capability Capability) bool {
	if p.IsStaff {
		return true
	}
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// SortCapabilities orders and deduplicates a capability list.
func SortCapabilities(caps []Capability) []Capability {
	seen := make(map[Capability]struct{}, len(caps))
	out := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
