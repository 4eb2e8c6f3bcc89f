package models

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Posted is the invoicing status of an entry.
type Posted string

const (
	PostedNone    Posted = ""
	PostedYes     Posted = "Yes"
	PostedInvoice Posted = "Inv"
)

// LaborCode classifies an entry as labor, materials, utility or a transfer.
type LaborCode string

const (
	LaborNone      LaborCode = ""
	LaborLabor     LaborCode = "L"
	LaborMaterials LaborCode = "M"
	LaborUtility   LaborCode = "U"
	LaborTransfer  LaborCode = "X"
)

// Label returns the display name for the code.
func (c LaborCode) Label() string {
	switch c {
	case LaborLabor:
		return "Labor"
	case LaborMaterials:
		return "Materials"
	case LaborUtility:
		return "Utility"
	case LaborTransfer:
		return "Transfer"
	default:
		return string(c)
	}
}

// DeliveryMethod records how materials reached the site.
type DeliveryMethod string

const (
	DeliveryNone     DeliveryMethod = ""
	DeliveryDelivery DeliveryMethod = "Delivery"
	DeliveryPickup   DeliveryMethod = "Pickup"
	DeliveryInStore  DeliveryMethod = "SR In Store"
)

// Field length limits.
const (
	MaxDescriptionLen   = 500
	MaxStageLen         = 20
	MaxSupervisorLen    = 200
	MaxInvoiceNumberLen = 50
	MaxMaterialsLen     = 200
	MaxBookNumberLen    = 20

	// MoneyPlaces is the fixed number of fraction digits of every monetary field.
	MoneyPlaces = 2
	// MaxMoneyDigits bounds the significant digits so amounts fit int64 cents.
	MaxMoneyDigits = 18
)

// MoneyFieldNames lists the monetary fields in form order.
var MoneyFieldNames = []string{"estimate", "qty", "supplies_cost", "tax_fees", "cost", "invoiced_amt"}

// EntryFields holds every user-editable attribute of a ledger entry.
type EntryFields struct {
	Date          NullDate            `json:"date"`
	Description   string              `json:"description"`
	Stage         string              `json:"stage"`
	LCStage       string              `json:"lc_stage"`
	SupplierID    *int64              `json:"supplier_id"`
	Estimate      decimal.NullDecimal `json:"estimate"`
	Qty           decimal.NullDecimal `json:"qty"`
	SuppliesCost  decimal.NullDecimal `json:"supplies_cost"`
	TaxFees       decimal.NullDecimal `json:"tax_fees"`
	Cost          decimal.NullDecimal `json:"cost"`
	InvoicedAmt   decimal.NullDecimal `json:"invoiced_amt"`
	Posted        Posted              `json:"posted"`
	LM            LaborCode           `json:"lm"`
	Supervisor    string              `json:"supervisor"`
	InvoiceNumber string              `json:"invoice_number"`
	DeliveryType  DeliveryMethod      `json:"delivery_type"`
	Materials     string              `json:"materials"`
	BookNumber    string              `json:"book_number"`
	Notes         string              `json:"notes"`
	TypeID        *int64              `json:"type_id"`
}

// Entry is a persisted construction cost line item.
type Entry struct {
	ID int64 `json:"id"`
	EntryFields
	SupplierName string `json:"supplier_name,omitempty"`
	TypeLabel    string `json:"type_label,omitempty"`
}

// Money returns pointers to the monetary fields in MoneyFieldNames order.
func (f *EntryFields) Money() []*decimal.NullDecimal {
	return []*decimal.NullDecimal{&f.Estimate, &f.Qty, &f.SuppliesCost, &f.TaxFees, &f.Cost, &f.InvoicedAmt}
}

// Normalize trims free text and fixes monetary values to two fraction digits.
// It should run after Validate succeeded.
func (f *EntryFields) Normalize() {
	f.Description = strings.TrimSpace(f.Description)
	f.Stage = strings.TrimSpace(f.Stage)
	f.LCStage = strings.TrimSpace(f.LCStage)
	f.Supervisor = strings.TrimSpace(f.Supervisor)
	f.InvoiceNumber = strings.TrimSpace(f.InvoiceNumber)
	f.Materials = strings.TrimSpace(f.Materials)
	f.BookNumber = strings.TrimSpace(f.BookNumber)
	f.Notes = strings.TrimSpace(f.Notes)
	for _, m := range f.Money() {
		if m.Valid {
			m.Decimal = m.Decimal.Round(MoneyPlaces)
		}
	}
}

// Validate applies the entry field rules. Reference existence is checked by the store.
func (f EntryFields) Validate() *ValidationError {
	verr := NewValidationError()

	checkLen := func(field, value string, max int) {
		if utf8.RuneCountInString(strings.TrimSpace(value)) > max {
			verr.Add(field, "ensure this value has at most "+strconv.Itoa(max)+" characters")
		}
	}
	checkLen("description", f.Description, MaxDescriptionLen)
	checkLen("stage", f.Stage, MaxStageLen)
	checkLen("lc_stage", f.LCStage, MaxStageLen)
	checkLen("supervisor", f.Supervisor, MaxSupervisorLen)
	checkLen("invoice_number", f.InvoiceNumber, MaxInvoiceNumberLen)
	checkLen("materials", f.Materials, MaxMaterialsLen)
	checkLen("book_number", f.BookNumber, MaxBookNumberLen)

	switch f.Posted {
	case PostedNone, PostedYes, PostedInvoice:
	default:
		verr.Add("posted", "select a valid choice")
	}
	switch f.LM {
	case LaborNone, LaborLabor, LaborMaterials, LaborUtility, LaborTransfer:
	default:
		verr.Add("lm", "select a valid choice")
	}
	switch f.DeliveryType {
	case DeliveryNone, DeliveryDelivery, DeliveryPickup, DeliveryInStore:
	default:
		verr.Add("delivery_type", "select a valid choice")
	}

	for i, m := range f.Money() {
		if msg := CheckMoney(*m); msg != "" {
			verr.Add(MoneyFieldNames[i], msg)
		}
	}

	if f.SupplierID != nil && *f.SupplierID <= 0 {
		verr.Add("supplier_id", "select a valid choice")
	}
	if f.TypeID != nil && *f.TypeID <= 0 {
		verr.Add("type_id", "select a valid choice")
	}

	return verr
}

// CheckMoney returns a validation message for an out of range monetary value, or "".
func CheckMoney(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	if !v.Decimal.Equal(v.Decimal.Round(MoneyPlaces)) {
		return "ensure that there are no more than 2 decimal places"
	}
	if digits := len(v.Decimal.Round(MoneyPlaces).Abs().Shift(MoneyPlaces).BigInt().String()); digits > MaxMoneyDigits {
		return "ensure that there are no more than " + strconv.Itoa(MaxMoneyDigits) + " digits in total"
	}
	return ""
}

// FieldStrings returns every field stringified in form order, as used by the audit diff.
// Absent values render as "", decimals with two fraction digits and references by id.
func (f EntryFields) FieldStrings() []FieldValue {
	return []FieldValue{
		{"date", f.Date.String()},
		{"description", f.Description},
		{"stage", f.Stage},
		{"lc_stage", f.LCStage},
		{"supplier_id", refString(f.SupplierID)},
		{"estimate", MoneyString(f.Estimate)},
		{"qty", MoneyString(f.Qty)},
		{"supplies_cost", MoneyString(f.SuppliesCost)},
		{"tax_fees", MoneyString(f.TaxFees)},
		{"cost", MoneyString(f.Cost)},
		{"invoiced_amt", MoneyString(f.InvoicedAmt)},
		{"posted", string(f.Posted)},
		{"lm", string(f.LM)},
		{"supervisor", f.Supervisor},
		{"invoice_number", f.InvoiceNumber},
		{"delivery_type", string(f.DeliveryType)},
		{"materials", f.Materials},
		{"book_number", f.BookNumber},
		{"notes", f.Notes},
		{"type_id", refString(f.TypeID)},
	}
}

// FieldValue is one named, stringified field.
type FieldValue struct {
	Name  string
	Value string
}

// MoneyString renders a monetary value with two fraction digits, or "" when absent.
func MoneyString(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.StringFixed(MoneyPlaces)
}

func refString(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

// Int64Ptr is a small helper for optional references.
func Int64Ptr(v int64) *int64 {
	return &v
}
