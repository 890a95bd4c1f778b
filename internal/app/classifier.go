package app

import (
	"context"
	"errors"
	"fmt"

	"stellar_notification_bot/internal/domain/ledger"
	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/infra/metrics"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// FeeBumpPolicy decides what happens to fee-bump envelopes.
type FeeBumpPolicy string

const (
	FeeBumpSkip   FeeBumpPolicy = "skip"   // ignore the envelope entirely
	FeeBumpUnwrap FeeBumpPolicy = "unwrap" // classify the inner transaction
)

// EnvelopeDecoder turns a base64 envelope into a transaction. Malformed input
// must be reported as *ledger.DecodeError.
type EnvelopeDecoder interface {
	Decode(envelopeXDR string) (*ledger.Transaction, error)
}

// ChatFinder resolves which chats follow a set of accounts.
type ChatFinder interface {
	FindEnabledChatsWatching(ctx context.Context, accountIDs []string) ([]int64, error)
}

type Classifier struct {
	decoder EnvelopeDecoder
	chats   ChatFinder
	filter  *TinyPaymentFilter
	feeBump FeeBumpPolicy
	metrics *metrics.PipelineMetrics
	log     *logrus.Entry
}

func NewClassifier(
	decoder EnvelopeDecoder,
	chats ChatFinder,
	filter *TinyPaymentFilter,
	feeBump FeeBumpPolicy,
	m *metrics.PipelineMetrics,
	log *logrus.Entry,
) *Classifier {
	return &Classifier{
		decoder: decoder,
		chats:   chats,
		filter:  filter,
		feeBump: feeBump,
		metrics: m,
		log:     log,
	}
}

// Classify builds the notifications produced by one envelope, in operation order.
func (c *Classifier) Classify(ctx context.Context, envelopeXDR string) ([]*outbox.PendingNotification, error) {
	tx, err := c.decoder.Decode(envelopeXDR)
	if err != nil {
		return nil, err
	}
	if tx.FeeBump && c.feeBump != FeeBumpUnwrap {
		c.log.WithField("tx_hash", tx.Hash).Debug("Skipping fee-bump transaction")
		return nil, nil
	}

	var notifications []*outbox.PendingNotification
	for _, op := range tx.Operations {
		builder := &messageBuilder{filter: c.filter}
		op.Accept(builder)
		if !builder.ok {
			continue
		}

		source, destination := op.Parties()
		chatIDs, err := c.chats.FindEnabledChatsWatching(ctx, partyIDs(source, destination))
		if err != nil {
			return nil, fmt.Errorf("finding chats for tx %s: %w", tx.Hash, err)
		}

		seen := mapset.NewThreadUnsafeSet[int64]()
		for _, chatID := range chatIDs {
			if !seen.Add(chatID) {
				continue
			}
			notifications = append(notifications, &outbox.PendingNotification{
				ChatID: chatID,
				Body:   builder.body,
				TxHash: tx.Hash,
			})
		}
	}
	return notifications, nil
}

// ClassifyAll classifies a ledger's envelopes in order. Undecodable envelopes are
// logged and skipped; any other failure aborts the ledger.
func (c *Classifier) ClassifyAll(ctx context.Context, envelopes []string) ([]*outbox.PendingNotification, error) {
	var all []*outbox.PendingNotification
	for i, envelope := range envelopes {
		notifications, err := c.Classify(ctx, envelope)
		var decodeErr *ledger.DecodeError
		if errors.As(err, &decodeErr) {
			c.metrics.IncDecodeErrors()
			c.log.WithError(err).WithField("index", i).Error("Skipping undecodable transaction")
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, notifications...)
	}
	return all, nil
}

func partyIDs(source, destination string) []string {
	ids := make([]string, 0, 2)
	if source != "" {
		ids = append(ids, source)
	}
	if destination != "" && destination != source {
		ids = append(ids, destination)
	}
	return ids
}

// messageBuilder renders the Markdown body of a single operation.
type messageBuilder struct {
	filter *TinyPaymentFilter
	body   string
	ok     bool
}

func (b *messageBuilder) set(body string) {
	b.body, b.ok = body, true
}

func (b *messageBuilder) VisitCreateAccount(op ledger.CreateAccount) {
	b.set(fmt.Sprintf("*Create Account*\nFrom: `%s`\nTo: `%s`\nAmount: `%s XLM`\n",
		op.Funder, op.Account, formatAmount(op.StartingBalance)))
}

func (b *messageBuilder) VisitAccountMerge(op ledger.AccountMerge) {
	b.set(fmt.Sprintf("*Account Merge*\nAccount: `%s`\nMerge to: `%s`\n", op.Account, op.Into))
}

func (b *messageBuilder) VisitPayment(op ledger.Payment) {
	if b.filter != nil && b.filter.IsTiny(op.Asset, op.Amount) {
		return
	}
	b.set(fmt.Sprintf("*Payment*\nFrom: `%s`\nTo: `%s`\nAmount: `%s %s`\n",
		op.From, op.To, formatAmount(op.Amount), op.Asset))
}

func (b *messageBuilder) VisitPathPaymentStrictSend(op ledger.PathPaymentStrictSend) {
	b.set(fmt.Sprintf("*Path Payment Strict Send*\nFrom: `%s`\nDestination: `%s`\n"+
		"Send Amount: `%s %s`\nDestination Min Receive Amount: `%s %s`\n",
		op.From, op.To,
		formatAmount(op.SendAmount), op.SendAsset,
		formatAmount(op.DestMin), op.DestAsset))
}

func (b *messageBuilder) VisitPathPaymentStrictReceive(op ledger.PathPaymentStrictReceive) {
	b.set(fmt.Sprintf("*Path Payment Strict Receive*\nFrom: `%s`\nDestination: `%s`\n"+
		"Send Max Amount: `%s %s`\nDestination Receive: `%s %s`\n",
		op.From, op.To,
		formatAmount(op.SendMax), op.SendAsset,
		formatAmount(op.DestAmount), op.DestAsset))
}

func (b *messageBuilder) VisitUnrecognized(ledger.Unrecognized) {}
