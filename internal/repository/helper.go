package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ParseTime parses a date string in "2006-01-02" or RFC3339 format.
func ParseTime(str string) (time.Time, error) {
	returnTime, err := time.Parse("2006-01-02", str)
	if err != nil {
		returnTime, err = time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date: %w", err)
		}
	}
	return returnTime.UTC(), nil
}

// ParseDecimal parses a stored decimal column. Monetary and share columns are
// persisted as text to keep exact values across round-trips.
func ParseDecimal(str string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse decimal: %w", err)
	}
	return d, nil
}

// ParseNullDecimal parses an optional decimal column.
func ParseNullDecimal(str sql.NullString) (decimal.NullDecimal, error) {
	if !str.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseDecimal(str.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// NullDecimalArg converts an optional decimal into a driver argument.
func NullDecimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// NullString converts an optional string into a driver argument.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
