package shop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (cents).
//
// All sums over prices are computed on Money so that no floating-point
// accumulation error can reach a displayed or submitted total.
type Money int64

// MaxMoney bounds the whole-unit part of parsed amounts so that adding
// cents and rounding cannot overflow.
const MaxMoney = Money(math.MaxInt64 / 100)

// ParseMoney parses a decimal amount such as "19.99" exactly.
// Fraction digits beyond the second are rounded half away from zero.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse money: empty amount")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("parse money: no digits in %q", s)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("parse money: invalid amount %q", s)
	}

	var units int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || Money(n) >= MaxMoney {
			return 0, fmt.Errorf("parse money: amount out of range %q", s)
		}
		units = n * 100
	}

	// First two fraction digits are cents; the third decides rounding.
	padded := frac + "000"
	cents, _ := strconv.ParseInt(padded[:2], 10, 64)
	units += cents
	if padded[2] >= '5' {
		units++
	}

	if neg {
		units = -units
	}
	return Money(units), nil
}

// MoneyFromFloat converts a float amount with round(price × 100).
// Prefer ParseMoney when the textual form is available.
func MoneyFromFloat(f float64) Money {
	return Money(math.Round(f * 100))
}

// Times returns m multiplied by a quantity, saturating at ±math.MaxInt64.
func (m Money) Times(qty int) Money {
	if m == 0 || qty == 0 {
		return 0
	}
	p := m * Money(qty)
	if p/Money(qty) != m || (qty == -1 && m == math.MinInt64) {
		return saturate((m < 0) != (qty < 0))
	}
	return clampMin(p)
}

// Plus returns m+n, saturating at ±math.MaxInt64.
func (m Money) Plus(n Money) Money {
	s := m + n
	if (n > 0 && s < m) || (n < 0 && s > m) {
		return saturate(n < 0)
	}
	return clampMin(s)
}

func saturate(neg bool) Money {
	if neg {
		return -math.MaxInt64
	}
	return math.MaxInt64
}

// clampMin keeps results off math.MinInt64, which has no positive twin.
func clampMin(m Money) Money {
	if m == math.MinInt64 {
		return -math.MaxInt64
	}
	return m
}

// String formats the amount with exactly two decimal places.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float64 returns the amount in major units. Display only.
func (m Money) Float64() float64 {
	return float64(m) / 100
}

// MarshalJSON emits the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string or null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	var text string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("money: %w", err)
		}
	} else {
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("money: %w", err)
		}
		text = num.String()
	}

	parsed, err := ParseMoney(text)
	if err == nil {
		*m = parsed
		return nil
	}

	// Exponent forms such as 1.999e1 fall back to float rounding.
	f, ferr := strconv.ParseFloat(text, 64)
	if ferr != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = MoneyFromFloat(f)
	return nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
