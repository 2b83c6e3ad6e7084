package ledger

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"2.5", 2500},
		{"3", 3000},
		{"0.001", 1},
		{"-0.125", -125},
		{" 12 ", 12000},
		{"2.5000", 2500},
		{"1e2", 100000},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuantity_Errors(t *testing.T) {
	for _, in := range []string{"", "abc", "1.0001", "NaN", "Infinity", "99999999999999999999", "5000000000000000", "-1000000000000.001"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseQuantity(in)
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrCodeValidation), "got %v", err)
		})
	}
}

func TestQuantityString(t *testing.T) {
	tests := []struct {
		q    Quantity
		want string
	}{
		{2500, "2.5"},
		{3000, "3"},
		{100000, "100"},
		{1, "0.001"},
		{-125, "-0.125"},
		{0, "0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.q.String())
	}
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	type payload struct {
		Qty Quantity `json:"qty"`
	}
	data, err := json.Marshal(payload{Qty: 1250})
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":"1.25"}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"qty":"0.75"}`), &p))
	assert.Equal(t, Quantity(750), p.Qty)
}

func TestQuantityValue(t *testing.T) {
	// 2.5 kg at 180 cents/kg = 450 cents
	assert.Equal(t, Money(450), Quantity(2500).Value(180))
	// 0.333 units at 100 cents rounds to 33
	assert.Equal(t, Money(33), Quantity(333).Value(100))
	// halves round away from zero
	assert.Equal(t, Money(1), Quantity(5).Value(100))
	assert.Equal(t, Money(-1), Quantity(-5).Value(100))
}

func TestParseQuantity_Limit(t *testing.T) {
	got, err := ParseQuantity("1000000000000")
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, got)

	got, err = ParseQuantity("-1000000000000")
	require.NoError(t, err)
	assert.Equal(t, -MaxQuantity, got)
}

func TestQuantityValue_NoWrap(t *testing.T) {
	// The intermediate product overflows int64; the result does not.
	assert.Equal(t, Money(100_000_000_000_000), MaxQuantity.Value(100))
	assert.Equal(t, Money(-100_000_000_000_000), (-MaxQuantity).Value(100))
	// Results beyond int64 saturate instead of changing sign.
	assert.Equal(t, Money(math.MaxInt64), MaxQuantity.Value(math.MaxInt64))
	assert.Equal(t, Money(math.MinInt64), (-MaxQuantity).Value(math.MaxInt64))
}

func TestQuantityScale(t *testing.T) {
	// 500 g flour per 10 loaves, scaled to 3 loaves = 150 g
	assert.Equal(t, Quantity(150000), Units(500).Scale(Units(3), Units(10)))
	// 1 egg per 3 muffins, 1 muffin = 0.333
	assert.Equal(t, Quantity(333), Units(1).Scale(Units(1), Units(3)))
	assert.Equal(t, Quantity(0), Units(1).Scale(Units(1), 0))
	// A full-size batch of a full-size ingredient does not wrap.
	assert.Equal(t, MaxQuantity, MaxQuantity.Scale(MaxQuantity, MaxQuantity))
}

func TestBasisPoints(t *testing.T) {
	assert.Equal(t, int64(-1000), BasisPoints(Units(-1), Units(10)))
	assert.Equal(t, int64(333), BasisPoints(Units(1), Units(30)))
	assert.Equal(t, int64(10000), BasisPoints(Units(5), Units(5)))
	assert.Equal(t, int64(-5), BasisPoints(-1, 2000))

	// part*10000 overflows int64 for large variances.
	assert.Equal(t, int64(10000), BasisPoints(MaxQuantity, MaxQuantity))
	assert.Equal(t, int64(-20000), BasisPoints(-2*MaxQuantity, MaxQuantity))
	assert.Equal(t, int64(math.MaxInt64), BasisPoints(2*MaxQuantity, 1))
}
