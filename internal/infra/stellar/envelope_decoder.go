package stellar

import (
	"encoding/hex"
	"fmt"
	"strings"

	"stellar_notification_bot/internal/domain/ledger"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
)

// EnvelopeDecoder turns base64 transaction envelopes into ledger.Transaction values.
type EnvelopeDecoder struct {
	passphrase string
}

func NewEnvelopeDecoder(networkPassphrase string) *EnvelopeDecoder {
	return &EnvelopeDecoder{passphrase: networkPassphrase}
}

// Decode parses envelopeXDR. Every failure is reported as *ledger.DecodeError.
// For fee-bump envelopes the inner transaction's source and operations are
// returned, the hash is the outer one.
func (d *EnvelopeDecoder) Decode(envelopeXDR string) (*ledger.Transaction, error) {
	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(envelopeXDR, &env); err != nil {
		return nil, &ledger.DecodeError{Err: err}
	}

	hash, err := network.HashTransactionInEnvelope(env, d.passphrase)
	if err != nil {
		return nil, &ledger.DecodeError{Err: fmt.Errorf("hash: %w", err)}
	}

	txSource := env.SourceAccount().ToAccountId().Address()
	xdrOps := env.Operations()

	tx := &ledger.Transaction{
		Hash:       hex.EncodeToString(hash[:]),
		Source:     txSource,
		FeeBump:    env.IsFeeBump(),
		Operations: make([]ledger.Operation, 0, len(xdrOps)),
	}
	for i, op := range xdrOps {
		decoded, err := decodeOperation(op, txSource)
		if err != nil {
			return nil, &ledger.DecodeError{Err: fmt.Errorf("operation %d: %w", i, err)}
		}
		tx.Operations = append(tx.Operations, decoded)
	}
	return tx, nil
}

func decodeOperation(op xdr.Operation, txSource string) (ledger.Operation, error) {
	source := txSource
	if op.SourceAccount != nil {
		source = op.SourceAccount.ToAccountId().Address()
	}

	switch op.Body.Type {
	case xdr.OperationTypeCreateAccount:
		body, ok := op.Body.GetCreateAccountOp()
		if !ok {
			return nil, fmt.Errorf("missing create account body")
		}
		return ledger.CreateAccount{
			Funder:          source,
			Account:         body.Destination.Address(),
			StartingBalance: stroops(body.StartingBalance),
		}, nil

	case xdr.OperationTypeAccountMerge:
		dest, ok := op.Body.GetDestination()
		if !ok {
			return nil, fmt.Errorf("missing account merge destination")
		}
		return ledger.AccountMerge{
			Account: source,
			Into:    dest.ToAccountId().Address(),
		}, nil

	case xdr.OperationTypePayment:
		body, ok := op.Body.GetPaymentOp()
		if !ok {
			return nil, fmt.Errorf("missing payment body")
		}
		asset, err := convertAsset(body.Asset)
		if err != nil {
			return nil, err
		}
		return ledger.Payment{
			From:   source,
			To:     body.Destination.ToAccountId().Address(),
			Asset:  asset,
			Amount: stroops(body.Amount),
		}, nil

	case xdr.OperationTypePathPaymentStrictSend:
		body, ok := op.Body.GetPathPaymentStrictSendOp()
		if !ok {
			return nil, fmt.Errorf("missing path payment strict send body")
		}
		sendAsset, err := convertAsset(body.SendAsset)
		if err != nil {
			return nil, err
		}
		destAsset, err := convertAsset(body.DestAsset)
		if err != nil {
			return nil, err
		}
		return ledger.PathPaymentStrictSend{
			From:       source,
			To:         body.Destination.ToAccountId().Address(),
			SendAsset:  sendAsset,
			SendAmount: stroops(body.SendAmount),
			DestAsset:  destAsset,
			DestMin:    stroops(body.DestMin),
		}, nil

	case xdr.OperationTypePathPaymentStrictReceive:
		body, ok := op.Body.GetPathPaymentStrictReceiveOp()
		if !ok {
			return nil, fmt.Errorf("missing path payment strict receive body")
		}
		sendAsset, err := convertAsset(body.SendAsset)
		if err != nil {
			return nil, err
		}
		destAsset, err := convertAsset(body.DestAsset)
		if err != nil {
			return nil, err
		}
		return ledger.PathPaymentStrictReceive{
			From:       source,
			To:         body.Destination.ToAccountId().Address(),
			SendAsset:  sendAsset,
			SendMax:    stroops(body.SendMax),
			DestAsset:  destAsset,
			DestAmount: stroops(body.DestAmount),
		}, nil
	}

	return ledger.Unrecognized{Type: op.Body.Type.String()}, nil
}

func convertAsset(asset xdr.Asset) (ledger.Asset, error) {
	switch asset.Type {
	case xdr.AssetTypeAssetTypeNative:
		return ledger.NativeAsset, nil
	case xdr.AssetTypeAssetTypeCreditAlphanum4:
		a4 := asset.MustAlphaNum4()
		return ledger.Asset{
			Code:   strings.TrimRight(string(a4.AssetCode[:]), "\x00"),
			Issuer: a4.Issuer.Address(),
		}, nil
	case xdr.AssetTypeAssetTypeCreditAlphanum12:
		a12 := asset.MustAlphaNum12()
		return ledger.Asset{
			Code:   strings.TrimRight(string(a12.AssetCode[:]), "\x00"),
			Issuer: a12.Issuer.Address(),
		}, nil
	}
	return ledger.Asset{}, fmt.Errorf("unsupported asset type %s", asset.Type)
}

// stroops converts an on-chain amount (1e-7 units) to its decimal value.
func stroops(v xdr.Int64) decimal.Decimal {
	return decimal.New(int64(v), -7)
}
