package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// NullDate is an optional calendar date without time of day.
type NullDate struct {
	Time  time.Time
	Valid bool
}

// NewDate builds a valid NullDate truncated to the day.
func NewDate(year int, month time.Month, day int) NullDate {
	return NullDate{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// ParseDate parses exactly YYYY-MM-DD. An empty string yields an invalid (absent) date.
func ParseDate(value string) (NullDate, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return NullDate{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return NullDate{}, fmt.Errorf("parse date %q: %w", value, ErrInvalidArgument)
	}
	return NullDate{Time: t, Valid: true}, nil
}

// String renders the date as YYYY-MM-DD or "" when absent.
func (d NullDate) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// Scan implements sql.Scanner. Drivers hand back time.Time for DATE columns in
// PostgreSQL and text for SQLite.
func (d *NullDate) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = NullDate{}
		return nil
	case time.Time:
		*d = NullDate{Time: time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("cannot scan %T into NullDate", value)
	}
}

// scanText accepts stored dates that carry a time suffix, e.g. "2024-01-15T00:00:00Z".
func (d *NullDate) scanText(v string) error {
	v = strings.TrimSpace(v)
	if len(v) > len(DateLayout) {
		v = v[:len(DateLayout)]
	}
	parsed, err := ParseDate(v)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d NullDate) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.String(), nil
}

// MarshalJSON renders null or "YYYY-MM-DD".
func (d NullDate) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts null, "" or "YYYY-MM-DD".
func (d *NullDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = NullDate{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", ErrInvalidArgument)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
