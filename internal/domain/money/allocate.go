// Package money holds exact decimal arithmetic on ledger amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/sitecost/internal/domain/models"
)

// Split factor bounds.
const (
	MinParts = 2
	MaxParts = 100
)

// CheckParts rejects split factors outside [MinParts, MaxParts].
func CheckParts(n int) error {
	if n < MinParts || n > MaxParts {
		return fmt.Errorf("split into %d parts: need between %d and %d: %w", n, MinParts, MaxParts, models.ErrInvalidArgument)
	}
	return nil
}

// Allocate divides amount into n parts whose sum is exactly amount. Each part is
// amount/n rounded half away from zero to two places; the first part absorbs the
// remainder, which can be negative. An absent amount yields n absent parts.
func Allocate(amount decimal.NullDecimal, n int) ([]decimal.NullDecimal, error) {
	if err := CheckParts(n); err != nil {
		return nil, err
	}

	parts := make([]decimal.NullDecimal, n)
	if !amount.Valid {
		return parts, nil
	}

	if msg := models.CheckMoney(amount); msg != "" {
		return nil, fmt.Errorf("amount %s: %s: %w", amount.Decimal, msg, models.ErrInvalidArgument)
	}

	total := amount.Decimal.Round(models.MoneyPlaces)
	count := decimal.NewFromInt(int64(n))
	base := total.DivRound(count, models.MoneyPlaces)
	remainder := total.Sub(base.Mul(count))

	for i := range parts {
		parts[i] = decimal.NewNullDecimal(base)
	}
	parts[0] = decimal.NewNullDecimal(base.Add(remainder).Round(models.MoneyPlaces))

	return parts, nil
}

// Sum adds the present values of parts. The second result is false when every part is absent.
func Sum(parts []decimal.NullDecimal) (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for _, p := range parts {
		if !p.Valid {
			continue
		}
		total = total.Add(p.Decimal)
		found = true
	}
	return total, found
}
