// Package money is the exact decimal arithmetic layer for the economy.
// Every amount crossing a package boundary is a canonical decimal string
// at scale 4; no monetary value ever touches a float64.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale = 4

// Zero is the canonical zero amount.
const Zero = "0.0000"

var (
	ErrInvalidAmount  = errors.New("invalid decimal amount")
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvalidRate    = errors.New("rate must be within [0,1]")
)

// amountRE rejects anything but plain decimal notation at the fixed
// scale. Scientific notation, thousands separators, stray whitespace and
// sub-cent precision beyond four fractional digits are all malformed;
// silent coercion is exactly what this package exists to prevent. A value
// like 0.00001 would otherwise round to a zero-value movement downstream.
var amountRE = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]{1,4})?$`)

// Parse validates s as a canonical decimal string and returns its value.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !amountRE.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// MustParse is for constants and tests only.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format rounds half-up to the fixed scale and renders with exactly
// four fractional digits.
func Format(d decimal.Decimal) string {
	return d.Round(Scale).StringFixed(Scale)
}

func Add(a, b string) (string, error) {
	da, err := Parse(a)
	if err != nil {
		return "", err
	}
	db, err := Parse(b)
	if err != nil {
		return "", err
	}
	return Format(da.Add(db)), nil
}

func Sub(a, b string) (string, error) {
	da, err := Parse(a)
	if err != nil {
		return "", err
	}
	db, err := Parse(b)
	if err != nil {
		return "", err
	}
	return Format(da.Sub(db)), nil
}

func Mul(a, b string) (string, error) {
	da, err := Parse(a)
	if err != nil {
		return "", err
	}
	db, err := Parse(b)
	if err != nil {
		return "", err
	}
	return Format(da.Mul(db)), nil
}

func Div(a, b string) (string, error) {
	da, err := Parse(a)
	if err != nil {
		return "", err
	}
	db, err := Parse(b)
	if err != nil {
		return "", err
	}
	if db.IsZero() {
		return "", ErrDivisionByZero
	}
	// Round once, directly at the ledger scale. Rounding to a finer
	// scale first and again in Format can push a sub-half remainder
	// over the half mark and inflate the quotient by a cent.
	return Format(da.DivRound(db, Scale)), nil
}

func cmp(a, b string) (int, error) {
	da, err := Parse(a)
	if err != nil {
		return 0, err
	}
	db, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return da.Cmp(db), nil
}

func GT(a, b string) (bool, error) {
	c, err := cmp(a, b)
	return c > 0, err
}

func LT(a, b string) (bool, error) {
	c, err := cmp(a, b)
	return c < 0, err
}

func EQ(a, b string) (bool, error) {
	c, err := cmp(a, b)
	return c == 0, err
}

func GTE(a, b string) (bool, error) {
	c, err := cmp(a, b)
	return c >= 0, err
}

func LTE(a, b string) (bool, error) {
	c, err := cmp(a, b)
	return c <= 0, err
}

func IsPositive(a string) (bool, error) {
	d, err := Parse(a)
	if err != nil {
		return false, err
	}
	return d.IsPositive(), nil
}

func IsNegative(a string) (bool, error) {
	d, err := Parse(a)
	if err != nil {
		return false, err
	}
	return d.IsNegative(), nil
}

func IsZero(a string) (bool, error) {
	d, err := Parse(a)
	if err != nil {
		return false, err
	}
	return d.IsZero(), nil
}

// TaxSplit breaks gross into a withheld tax portion and the net remainder.
// The rate is itself a decimal string in [0,1]. tax is rounded at the fixed
// scale first and net is derived as gross - tax, so the three amounts always
// reconcile exactly: net + tax == gross.
func TaxSplit(gross, rate string) (g, tax, net string, err error) {
	dg, err := Parse(gross)
	if err != nil {
		return "", "", "", err
	}
	dr, err := Parse(rate)
	if err != nil {
		return "", "", "", err
	}
	if dr.IsNegative() || dr.GreaterThan(decimal.NewFromInt(1)) {
		return "", "", "", fmt.Errorf("%w: %s", ErrInvalidRate, rate)
	}
	dg = dg.Round(Scale)
	dt := dg.Mul(dr).Round(Scale)
	dn := dg.Sub(dt)
	return Format(dg), Format(dt), Format(dn), nil
}
