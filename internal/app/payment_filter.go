package app

import (
	"stellar_notification_bot/internal/domain/ledger"

	"github.com/shopspring/decimal"
)

const (
	aquaIssuer = "GBNZILSTVQZ4R7IKQDGHYGY2QXL5QOFJYQMXPKWRRM5PAV7Y4M67AQUA"
	usdcIssuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
)

// TinyPaymentFilter drops payments below a per-asset threshold. Assets without a
// threshold always pass.
type TinyPaymentFilter struct {
	enabled    bool
	thresholds map[ledger.Asset]decimal.Decimal
}

func NewTinyPaymentFilter(enabled bool) *TinyPaymentFilter {
	return &TinyPaymentFilter{
		enabled: enabled,
		thresholds: map[ledger.Asset]decimal.Decimal{
			ledger.NativeAsset:                 decimal.RequireFromString("0.01"),
			{Code: "AQUA", Issuer: aquaIssuer}: decimal.NewFromInt(100),
			{Code: "USDC", Issuer: usdcIssuer}: decimal.RequireFromString("0.01"),
		},
	}
}

// IsTiny reports whether a payment of amount in asset should be suppressed.
// The threshold itself is not tiny.
func (f *TinyPaymentFilter) IsTiny(asset ledger.Asset, amount decimal.Decimal) bool {
	if !f.enabled {
		return false
	}
	threshold, ok := f.thresholds[asset]
	if !ok {
		return false
	}
	return amount.LessThan(threshold)
}
