// Package types provides common type aliases and utilities.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4).
//
// Rationale:
// - Matches Postgres NUMERIC(15,4) semantics without floating point errors
// - Easy to store as BIGINT in DB (scaled integer)
// - JSON remains a number with up to 4 decimals
type Quantity int64

const QuantityScale int64 = 10_000

var (
	// ErrInvalidQuantity is returned for NaN, infinite or out-of-range input.
	ErrInvalidQuantity = errors.New("quantity is not a finite number in range")

	// ErrQuantityPrecision is returned for more than 4 fractional digits.
	ErrQuantityPrecision = errors.New("quantity has more than 4 fractional digits")
)

// QuantityLimit is the largest magnitude a single quantity may hold:
// NUMERIC(15,4), i.e. 1e11 units. Sums of up to ~92000 such values fit in
// int64; folds beyond that saturate (see AddQuantity).
const QuantityLimit Quantity = 100_000_000_000 * Quantity(QuantityScale)

const maxQuantity = float64(QuantityLimit / Quantity(QuantityScale))

func NewQuantityFromFloat64(v float64) Quantity {
	return Quantity(math.Round(v * float64(QuantityScale)))
}

// QuantityFromFloat64 is the checked form of NewQuantityFromFloat64.
func QuantityFromFloat64(v float64) (Quantity, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxQuantity {
		return 0, ErrInvalidQuantity
	}
	return NewQuantityFromFloat64(v), nil
}

// InRange reports whether |q| <= QuantityLimit.
func (q Quantity) InRange() bool { return q >= -QuantityLimit && q <= QuantityLimit }

// AddQuantity returns a+b, saturating at the int64 bounds instead of wrapping.
func AddQuantity(a, b Quantity) Quantity {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// NewQuantityFromInt creates a whole-unit quantity.
func NewQuantityFromInt(v int64) Quantity { return Quantity(v * QuantityScale) }

// ParseQuantity parses a decimal string ("12", "12.5", "-0.0001").
func ParseQuantity(s string) (Quantity, error) { return parseQuantityString(s) }

// MaxQuantity returns the larger of a and b.
func MaxQuantity(a, b Quantity) Quantity {
	if a > b {
		return a
	}
	return b
}

// MinQuantity returns the smaller of a and b.
func MinQuantity(a, b Quantity) Quantity {
	if a < b {
		return a
	}
	return b
}

// Decimal converts the quantity to an exact decimal.
func (q Quantity) Decimal() decimal.Decimal { return decimal.New(int64(q), -4) }

// MulPrice returns quantity × unit price, rounded to 4 places.
func (q Quantity) MulPrice(price Money) Money { return q.Decimal().Mul(price).Round(4) }

func NewQuantityFromInt64Scaled(v int64) Quantity { return Quantity(v) }

func (q Quantity) Int64Scaled() int64 { return int64(q) }

func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	neg := q < 0
	v := q
	if neg {
		v = -v
	}
	intPart := int64(v) / QuantityScale
	frac := int64(v) % QuantityScale
	if neg {
		return fmt.Sprintf("-%d.%04d", intPart, frac)
	}
	return fmt.Sprintf("%d.%04d", intPart, frac)
}

// MarshalJSON encodes Quantity as JSON number (not string), preserving 4 digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string and parses to fixed-point (4 digits).
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	// If string, unquote first.
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseQuantityString(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}

	// Otherwise treat as number token.
	parsed, err := parseQuantityString(string(data))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func parseQuantityString(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	if strings.EqualFold(s, "nan") || strings.Contains(strings.ToLower(s), "inf") {
		return 0, ErrInvalidQuantity
	}

	// Exponent form is parsed exactly as a decimal.
	if strings.ContainsAny(s, "eE") {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("parse quantity: %w", err)
		}
		if d.Abs().GreaterThan(decimal.NewFromInt(int64(maxQuantity))) {
			return 0, ErrInvalidQuantity
		}
		if !d.Equal(d.Truncate(4)) {
			return 0, ErrQuantityPrecision
		}
		return Quantity(d.Shift(4).IntPart()), nil
	}

	sign := int64(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimPrefix(s, "+")
	}

	parts := strings.SplitN(s, ".", 2)
	intPartStr := parts[0]
	fracStr := ""
	if len(parts) == 2 {
		fracStr = parts[1]
	}

	if intPartStr == "" {
		intPartStr = "0"
	}
	intPart, err := strconv.ParseInt(intPartStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity integer part: %w", err)
	}
	if intPart < 0 || float64(intPart) > maxQuantity {
		return 0, ErrInvalidQuantity
	}

	// Normalize fractional part to 4 digits; only zeros may follow the 4th.
	if len(fracStr) > 4 {
		if strings.Trim(fracStr[4:], "0") != "" {
			return 0, ErrQuantityPrecision
		}
		fracStr = fracStr[:4]
	}
	for len(fracStr) < 4 {
		fracStr += "0"
	}
	frac := int64(0)
	if fracStr != "" {
		frac, err = strconv.ParseInt(fracStr, 10, 64)
		if err != nil || frac < 0 || strings.ContainsAny(fracStr, "+-") {
			return 0, fmt.Errorf("parse quantity fractional part: %q", fracStr)
		}
	}

	q := Quantity(sign * (intPart*QuantityScale + frac))
	if !q.InRange() {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}
