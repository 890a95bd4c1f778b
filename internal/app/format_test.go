package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0", want: "0"},
		{in: "12", want: "12"},
		{in: "123", want: "123"},
		{in: "1234", want: "1,234"},
		{in: "1234567.5", want: "1,234,567.5"},
		{in: "1000000", want: "1,000,000"},
		{in: "0.0000001", want: "0.0000001"},
		{in: "-98765.4321", want: "-98,765.4321"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}

func TestFormatAmount_TrimsTrailingZeros(t *testing.T) {
	assert.Equal(t, "1,000", formatAmount(decimal.New(10_000_000_000, -7)))
	assert.Equal(t, "1.5", formatAmount(decimal.New(15_000_000, -7)))
	assert.Equal(t, "0.0000001", formatAmount(decimal.New(1, -7)))
}
