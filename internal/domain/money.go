package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in integer hundredths. Every amount inside the service is Cents;
// decimals only appear at the JSON and SQL boundaries.
type Cents int64

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// CentsFromDecimal converts an exact decimal amount. More than two fractional digits is rejected
// rather than rounded.
func CentsFromDecimal(d decimal.Decimal) (Cents, error) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, ErrInvalidPrecision.Withf("amount %s has more than two decimal places", d.String())
	}
	if shifted.GreaterThan(maxCents) || shifted.LessThan(minCents) {
		return 0, ErrInvalidAmount.Withf("amount %s is out of range", d.String())
	}
	return Cents(shifted.IntPart()), nil
}

// ParseCents parses a decimal string such as "1234.5".
func ParseCents(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount.Withf("amount %q is not a number", s)
	}
	return CentsFromDecimal(d)
}

// roundCents rounds half away from zero.
func roundCents(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON accepts both "12.50" and 12.5.
func (c *Cents) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(b), err)
	}
	v, err := CentsFromDecimal(d)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Sum adds amounts.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}
