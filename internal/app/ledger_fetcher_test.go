package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerFetcher_TransactionsForFollowsPages(t *testing.T) {
	api := &FakeLedgerAPI{pages: map[uint64][][]string{
		10: {{"a", "b"}, {"c"}, {"d", "e"}},
	}}

	envelopes, err := NewLedgerFetcher(api).TransactionsFor(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, envelopes)
	assert.Equal(t, []uint64{10, 10, 10}, api.calls)
}

func TestLedgerFetcher_EmptyLedger(t *testing.T) {
	api := &FakeLedgerAPI{}

	envelopes, err := NewLedgerFetcher(api).TransactionsFor(context.Background(), 11)
	require.NoError(t, err)
	assert.Empty(t, envelopes)
}

func TestLedgerFetcher_PropagatesErrors(t *testing.T) {
	api := &FakeLedgerAPI{
		tipErr:   errors.New("horizon down"),
		failures: map[uint64]int{12: 1},
	}
	fetcher := NewLedgerFetcher(api)

	_, err := fetcher.TransactionsFor(context.Background(), 12)
	assert.ErrorContains(t, err, "ledger 12 unavailable")

	_, err = fetcher.CurrentHeight(context.Background())
	assert.ErrorContains(t, err, "horizon down")
}

type repeatingTokenAPI struct{ FakeLedgerAPI }

func (r *repeatingTokenAPI) ListTransactions(context.Context, uint64, string) ([]string, string, error) {
	return []string{"x"}, "same", nil
}

func TestLedgerFetcher_RepeatedTokenIsAnError(t *testing.T) {
	_, err := NewLedgerFetcher(&repeatingTokenAPI{}).TransactionsFor(context.Background(), 1)
	assert.ErrorContains(t, err, "repeated")
}
