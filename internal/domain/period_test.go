package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-09")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2025, Month: time.September}, p)
	assert.Equal(t, "2025-09", p.String())

	for _, s := range []string{"", "2025-9", "2025-00", "2025-13", "25-01", "2025-01-01", "abcd-ef"} {
		_, err := ParsePeriod(s)
		assert.ErrorIs(t, err, ErrInvalidPeriod, s)
	}
}

func TestPeriod_AddMonths(t *testing.T) {
	p := Period{Year: 2025, Month: time.November}
	assert.Equal(t, "2025-12", p.AddMonths(1).String())
	assert.Equal(t, "2026-01", p.AddMonths(2).String())
	assert.Equal(t, "2027-11", p.AddMonths(24).String())
	assert.Equal(t, "2024-11", p.AddMonths(-12).String())
	assert.Equal(t, "2024-12", p.AddMonths(-11).String())
	assert.True(t, p.Before(p.Next()))
	assert.False(t, p.Next().Before(p))
}

func TestPeriod_JSON(t *testing.T) {
	var v struct {
		P Period `json:"p"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"p":"2026-02"}`), &v))
	assert.Equal(t, Period{Year: 2026, Month: time.February}, v.P)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"2026-02"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"p":"2026-2"}`), &v))
}

func TestPeriod_Scan(t *testing.T) {
	var p Period
	require.NoError(t, p.Scan([]byte("2024-04")))
	assert.Equal(t, "2024-04", p.String())
	assert.Error(t, p.Scan(42))
}

func TestCents(t *testing.T) {
	c, err := ParseCents("1234.5")
	require.NoError(t, err)
	assert.Equal(t, Cents(123450), c)
	assert.Equal(t, "1234.50", c.String())

	_, err = ParseCents("1.234")
	assert.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = ParseCents("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	for _, s := range []string{"184467440737095516.17", "92233720368547758.08", "-92233720368547758.09"} {
		_, err = ParseCents(s)
		assert.ErrorIs(t, err, ErrInvalidAmount, s)
	}
	c, err = ParseCents("92233720368547758.07")
	require.NoError(t, err)
	assert.Equal(t, Cents(math.MaxInt64), c)

	assert.Equal(t, Cents(-150), must(CentsFromDecimal(decimal.RequireFromString("-1.5"))))
	assert.Equal(t, Cents(5), Cents(-5).Abs())
	assert.Equal(t, Cents(6), Sum(1, 2, 3))
}

func TestCents_JSON(t *testing.T) {
	var v struct {
		A Cents `json:"a"`
		B Cents `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"10.25","b":7.1}`), &v))
	assert.Equal(t, Cents(1025), v.A)
	assert.Equal(t, Cents(710), v.B)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"10.25","b":"7.10"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"0.001"}`), &v))

	err = json.Unmarshal([]byte(`{"a":"184467440737095516.17"}`), &v)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	err = json.Unmarshal([]byte(`{"b":92233720368547758.08}`), &v)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
