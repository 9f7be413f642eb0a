package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityString(t *testing.T) {
	tests := []struct {
		name     string
		quantity Quantity
		expected string
	}{
		{"whole units", NewQuantity(100), "100.0000"},
		{"zero", Quantity(0), "0.0000"},
		{"fractional", NewQuantityFromFloat64(2.5), "2.5000"},
		{"four decimals", NewQuantityFromInt64Scaled(12345), "1.2345"},
		{"negative", NewQuantity(-3), "-3.0000"},
		{"negative fractional", NewQuantityFromInt64Scaled(-105000), "-10.5000"},
		{"sub-unit", NewQuantityFromInt64Scaled(1), "0.0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.quantity.String())
		})
	}
}

func TestQuantityParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Quantity
	}{
		{"integer", "100", NewQuantity(100)},
		{"decimal", "2.5", NewQuantityFromInt64Scaled(25000)},
		{"four decimals", "1.2345", NewQuantityFromInt64Scaled(12345)},
		{"extra digits truncated", "1.23456789", NewQuantityFromInt64Scaled(12345)},
		{"negative", "-10.5", NewQuantityFromInt64Scaled(-105000)},
		{"leading plus", "+3", NewQuantity(3)},
		{"bare fraction", ".5", NewQuantityFromInt64Scaled(5000)},
		{"exponent form", "1e2", NewQuantity(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuantityString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuantityParseInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "12x"} {
		t.Run(input, func(t *testing.T) {
			_, err := parseQuantityString(input)
			assert.Error(t, err)
		})
	}
}

func TestQuantityJSONMarshal(t *testing.T) {
	data, err := json.Marshal(NewQuantityFromInt64Scaled(25000))
	require.NoError(t, err)

	// Number, not string.
	assert.Equal(t, "2.5000", string(data))
}

func TestQuantityJSONUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Quantity
	}{
		{"number", `2.5`, NewQuantityFromInt64Scaled(25000)},
		{"quoted string", `"2.5"`, NewQuantityFromInt64Scaled(25000)},
		{"integer number", `100`, NewQuantity(100)},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			require.NoError(t, json.Unmarshal([]byte(tt.input), &q))
			assert.Equal(t, tt.expected, q)
		})
	}
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	original := NewQuantityFromInt64Scaled(987654321)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Quantity
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestQuantityArithmeticHelpers(t *testing.T) {
	q := NewQuantityFromInt64Scaled(-25000)

	assert.True(t, q.IsNegative())
	assert.False(t, q.IsZero())
	assert.Equal(t, NewQuantityFromInt64Scaled(25000), q.Abs())
	assert.Equal(t, NewQuantityFromInt64Scaled(25000), q.Neg())
	assert.InDelta(t, -2.5, q.Float64(), 1e-9)
}

func TestQuantityDecimal(t *testing.T) {
	q := NewQuantityFromInt64Scaled(12345)
	assert.Equal(t, "1.2345", q.Decimal().String())
}

func TestMoneyFromString(t *testing.T) {
	m, err := NewMoneyFromString("19.99")
	require.NoError(t, err)
	assert.Equal(t, "19.99", m.String())

	_, err = NewMoneyFromString("not-a-number")
	assert.Error(t, err)
}

func TestMinorUnitsConversion(t *testing.T) {
	m := NewMinorUnitsFromMajor(19.99, 2)
	assert.Equal(t, MinorUnits(1999), m)
	assert.InDelta(t, 19.99, m.ToMajor(2), 1e-9)
}
