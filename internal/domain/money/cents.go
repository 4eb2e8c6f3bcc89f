package money

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

// ToCents converts a validated amount into integer minor units for storage.
func ToCents(v decimal.NullDecimal) sql.NullInt64 {
	if !v.Valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v.Decimal.Round(models.MoneyPlaces).Shift(models.MoneyPlaces).IntPart(), Valid: true}
}

// FromCents converts stored minor units back into a two-place decimal.
func FromCents(v sql.NullInt64) decimal.NullDecimal {
	if !v.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.New(v.Int64, -models.MoneyPlaces))
}

// CentsTotal converts an aggregate sum of cents; NULL sums become zero.
func CentsTotal(v sql.NullInt64) models.Money {
	if !v.Valid {
		return models.NewMoney(decimal.New(0, -models.MoneyPlaces))
	}
	return models.NewMoney(decimal.New(v.Int64, -models.MoneyPlaces))
}
