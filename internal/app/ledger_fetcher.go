package app

import (
	"context"
	"fmt"
)

// LedgerAPI is the read side of the chain data service.
type LedgerAPI interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	// ListTransactions returns one page of successful transaction envelopes of a ledger.
	// An empty nextToken means the ledger is exhausted.
	ListTransactions(ctx context.Context, height uint64, pageToken string) (envelopes []string, nextToken string, err error)
}

// LedgerFetcher collects every transaction envelope of a ledger.
// It does not retry; callers own the retry policy.
type LedgerFetcher struct {
	api LedgerAPI
}

func NewLedgerFetcher(api LedgerAPI) *LedgerFetcher {
	return &LedgerFetcher{api: api}
}

func (f *LedgerFetcher) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := f.api.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting current ledger height: %w", err)
	}
	return height, nil
}

// TransactionsFor returns the envelopes of ledger height in ledger order.
func (f *LedgerFetcher) TransactionsFor(ctx context.Context, height uint64) ([]string, error) {
	var all []string
	token := ""
	for {
		envelopes, next, err := f.api.ListTransactions(ctx, height, token)
		if err != nil {
			return nil, fmt.Errorf("listing transactions of ledger %d: %w", height, err)
		}
		all = append(all, envelopes...)

		if next == "" {
			return all, nil
		}
		if next == token {
			return nil, fmt.Errorf("listing transactions of ledger %d: page token %q repeated", height, next)
		}
		token = next
	}
}
