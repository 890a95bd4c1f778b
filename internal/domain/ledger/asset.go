// internal/domain/ledger/asset.go
package ledger

import "fmt"

// Asset identifies a Stellar asset. The native asset (XLM) has no issuer.
type Asset struct {
	Code   string
	Issuer string
}

// NativeAsset is the lumen.
var NativeAsset = Asset{Code: "XLM"}

func (a Asset) IsNative() bool {
	return a.Issuer == ""
}

// String renders the asset as shown in notifications: "XLM" or "CODE(GABC...WXYZ)".
func (a Asset) String() string {
	if a.IsNative() {
		return NativeAsset.Code
	}
	if len(a.Issuer) <= 8 {
		return fmt.Sprintf("%s(%s)", a.Code, a.Issuer)
	}
	return fmt.Sprintf("%s(%s...%s)", a.Code, a.Issuer[:4], a.Issuer[len(a.Issuer)-4:])
}
