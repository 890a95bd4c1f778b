package app

import (
	"testing"

	"stellar_notification_bot/internal/domain/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTinyPaymentFilter(t *testing.T) {
	aqua := ledger.Asset{Code: "AQUA", Issuer: aquaIssuer}
	usdc := ledger.Asset{Code: "USDC", Issuer: usdcIssuer}
	fakeUSDC := ledger.Asset{Code: "USDC", Issuer: "GDUKMGUGDZQK6YHYA5Z6AY2G4XDSZPSZ3SW5UN3ARVMO6QSRDWP5YLEX"}

	tests := []struct {
		name   string
		asset  ledger.Asset
		amount string
		tiny   bool
	}{
		{name: "xlm below", asset: ledger.NativeAsset, amount: "0.001", tiny: true},
		{name: "xlm at threshold", asset: ledger.NativeAsset, amount: "0.01", tiny: false},
		{name: "xlm above", asset: ledger.NativeAsset, amount: "0.02", tiny: false},
		{name: "aqua below", asset: aqua, amount: "99.9999999", tiny: true},
		{name: "aqua at threshold", asset: aqua, amount: "100", tiny: false},
		{name: "usdc below", asset: usdc, amount: "0.0099999", tiny: true},
		{name: "usdc at threshold", asset: usdc, amount: "0.01", tiny: false},
		{name: "same code other issuer", asset: fakeUSDC, amount: "0.0000001", tiny: false},
	}

	filter := NewTinyPaymentFilter(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tiny, filter.IsTiny(tt.asset, decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestTinyPaymentFilter_Disabled(t *testing.T) {
	filter := NewTinyPaymentFilter(false)
	assert.False(t, filter.IsTiny(ledger.NativeAsset, decimal.RequireFromString("0.0000001")))
}
