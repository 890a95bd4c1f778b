// internal/domain/ledger/operation.go
package ledger

import "github.com/shopspring/decimal"

// Operation is the closed set of operation kinds the notifier understands.
// Every kind is dispatched through OperationVisitor, so a new kind cannot be
// added without every visitor implementing it.
type Operation interface {
	Accept(v OperationVisitor)
	// Parties returns the paying (source) and receiving (destination) accounts.
	Parties() (source, destination string)
}

// OperationVisitor has one method per operation kind.
type OperationVisitor interface {
	VisitCreateAccount(op CreateAccount)
	VisitAccountMerge(op AccountMerge)
	VisitPayment(op Payment)
	VisitPathPaymentStrictSend(op PathPaymentStrictSend)
	VisitPathPaymentStrictReceive(op PathPaymentStrictReceive)
	VisitUnrecognized(op Unrecognized)
}

type CreateAccount struct {
	Funder          string
	Account         string
	StartingBalance decimal.Decimal
}

func (op CreateAccount) Accept(v OperationVisitor) { v.VisitCreateAccount(op) }
func (op CreateAccount) Parties() (string, string) { return op.Funder, op.Account }

type AccountMerge struct {
	Account string
	Into    string
}

func (op AccountMerge) Accept(v OperationVisitor) { v.VisitAccountMerge(op) }
func (op AccountMerge) Parties() (string, string) { return op.Account, op.Into }

type Payment struct {
	From   string
	To     string
	Asset  Asset
	Amount decimal.Decimal
}

func (op Payment) Accept(v OperationVisitor) { v.VisitPayment(op) }
func (op Payment) Parties() (string, string) { return op.From, op.To }

type PathPaymentStrictSend struct {
	From       string
	To         string
	SendAsset  Asset
	SendAmount decimal.Decimal
	DestAsset  Asset
	DestMin    decimal.Decimal
}

func (op PathPaymentStrictSend) Accept(v OperationVisitor) { v.VisitPathPaymentStrictSend(op) }
func (op PathPaymentStrictSend) Parties() (string, string) { return op.From, op.To }

type PathPaymentStrictReceive struct {
	From       string
	To         string
	SendAsset  Asset
	SendMax    decimal.Decimal
	DestAsset  Asset
	DestAmount decimal.Decimal
}

func (op PathPaymentStrictReceive) Accept(v OperationVisitor) { v.VisitPathPaymentStrictReceive(op) }
func (op PathPaymentStrictReceive) Parties() (string, string) { return op.From, op.To }

// Unrecognized stands in for every operation kind the notifier ignores.
type Unrecognized struct {
	Type string
}

func (op Unrecognized) Accept(v OperationVisitor) { v.VisitUnrecognized(op) }
func (op Unrecognized) Parties() (string, string) { return "", "" }
