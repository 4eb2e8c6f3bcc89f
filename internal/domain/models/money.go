package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money is an aggregate amount. It renders with exactly MoneyPlaces fraction digits.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MarshalJSON renders the amount like decimal.Decimal does but keeps trailing zeros.
func (m Money) MarshalJSON() ([]byte, error) {
	return fixedJSON(m.Decimal), nil
}

// nullMoney renders an optional entry amount; absent is null.
type nullMoney decimal.NullDecimal

func (m nullMoney) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return fixedJSON(m.Decimal), nil
}

func fixedJSON(d decimal.Decimal) []byte {
	s := d.StringFixed(MoneyPlaces)
	if decimal.MarshalJSONWithoutQuotes {
		return []byte(s)
	}
	return []byte(`"` + s + `"`)
}

type entryFieldsJSON EntryFields

// entryFieldsWire shadows the monetary fields of entryFieldsJSON.
type entryFieldsWire struct {
	entryFieldsJSON
	Estimate     nullMoney `json:"estimate"`
	Qty          nullMoney `json:"qty"`
	SuppliesCost nullMoney `json:"supplies_cost"`
	TaxFees      nullMoney `json:"tax_fees"`
	Cost         nullMoney `json:"cost"`
	InvoicedAmt  nullMoney `json:"invoiced_amt"`
}

func (f EntryFields) wire() entryFieldsWire {
	return entryFieldsWire{
		entryFieldsJSON: entryFieldsJSON(f),
		Estimate:        nullMoney(f.Estimate),
		Qty:             nullMoney(f.Qty),
		SuppliesCost:    nullMoney(f.SuppliesCost),
		TaxFees:         nullMoney(f.TaxFees),
		Cost:            nullMoney(f.Cost),
		InvoicedAmt:     nullMoney(f.InvoicedAmt),
	}
}

// MarshalJSON renders amounts with two fraction digits.
func (f EntryFields) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.wire())
}

// MarshalJSON is declared on Entry so the promoted EntryFields method does not drop
// the id and labels.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID int64 `json:"id"`
		entryFieldsWire
		SupplierName string `json:"supplier_name,omitempty"`
		TypeLabel    string `json:"type_label,omitempty"`
	}{
		ID:              e.ID,
		entryFieldsWire: e.EntryFields.wire(),
		SupplierName:    e.SupplierName,
		TypeLabel:       e.TypeLabel,
	})
}
