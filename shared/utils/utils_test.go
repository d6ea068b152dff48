package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnique(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"drops empty", []string{"", "b", ""}, []string{"b"}},
		{"dedupes and sorts", []string{"c", "a", "c", "b", "a"}, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unique(tt.in))
		})
	}
}

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("2026-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, "2026-10", MonthKey(got))

	_, err = ParseMonth("2026-13")
	assert.Error(t, err)
	_, err = ParseMonth("October")
	assert.Error(t, err)
}

func TestMonthStart(t *testing.T) {
	in := time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), MonthStart(in))
}

func TestHasCents(t *testing.T) {
	assert.True(t, HasCents(decimal.RequireFromString("10")))
	assert.True(t, HasCents(decimal.RequireFromString("10.25")))
	assert.True(t, HasCents(decimal.RequireFromString("10.250")))
	assert.False(t, HasCents(decimal.RequireFromString("10.255")))
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"9999999999999999.99", true},
		{"-9999999999999999.99", true},
		{"10000000000000000", false},
		{"-10000000000000000", false},
		{"1e20", false},
		{"1.001", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidAmount(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret-pass", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestValidateID(t *testing.T) {
	assert.True(t, ValidateID(GenerateID()))
	assert.False(t, ValidateID("usr-abc"))
}
