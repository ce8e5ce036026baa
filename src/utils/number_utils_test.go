package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"1234,56", 1234.56},
		{"--abc", 0},
		{"", 0},
		{"   ", 0},
		{"5000", 5000},
		{"-1,234.50", -1234.5},
		{"-150,25", -150.25},
		{"USD 2,500.00", 2500},
		{"1.234.567", 1.234},
		{"12.", 12},
		{".5", 0.5},
		{"5-3", 5},
		{"-", 0},
		{"-0", 0},
		{"1.234.567,89", 1234567.89},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.InDelta(t, tc.want, CleanNumber(tc.in), 1e-9)
		})
	}
}

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 10.13, RoundFloat(10.125, 2))
	assert.Equal(t, -10.13, RoundFloat(-10.125, 2))
	assert.Equal(t, 50000.0, RoundFloat(50000, 2))
}

func TestSumFloats(t *testing.T) {
	assert.Equal(t, 0.3, SumFloats(0.1, 0.2))
	assert.Equal(t, 0.0, SumFloats())
}
