package stellar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
)

// PageSize is the number of transactions requested per Horizon page.
const PageSize = 200

// horizonAPI is the subset of horizonclient.ClientInterface used here.
type horizonAPI interface {
	Root() (hProtocol.Root, error)
	Transactions(request horizonclient.TransactionRequest) (hProtocol.TransactionsPage, error)
}

// HorizonClient reads the chain tip and per-ledger transactions from Horizon.
type HorizonClient struct {
	api horizonAPI
}

func NewHorizonClient(horizonURL string, timeout time.Duration) *HorizonClient {
	return &HorizonClient{
		api: &horizonclient.Client{
			HorizonURL: horizonURL,
			HTTP:       &http.Client{Timeout: timeout},
			AppName:    "stellar_notification_bot",
		},
	}
}

// CurrentHeight returns the latest ledger ingested by Horizon.
func (c *HorizonClient) CurrentHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	root, err := c.api.Root()
	if err != nil {
		return 0, fmt.Errorf("fetching horizon root: %w", err)
	}
	if root.HorizonSequence < 0 {
		return 0, fmt.Errorf("horizon reported negative ledger %d", root.HorizonSequence)
	}
	return uint64(root.HorizonSequence), nil
}

// ListTransactions returns one page of successful transaction envelopes of a ledger.
// nextToken is empty when no further page exists.
func (c *HorizonClient) ListTransactions(ctx context.Context, height uint64, pageToken string) ([]string, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	page, err := c.api.Transactions(horizonclient.TransactionRequest{
		ForLedger:     uint(height),
		IncludeFailed: false,
		Order:         horizonclient.OrderAsc,
		Limit:         PageSize,
		Cursor:        pageToken,
	})
	if err != nil {
		return nil, "", fmt.Errorf("fetching transactions of ledger %d: %w", height, err)
	}

	records := page.Embedded.Records
	envelopes := make([]string, 0, len(records))
	for _, tx := range records {
		envelopes = append(envelopes, tx.EnvelopeXdr)
	}

	var next string
	if len(records) == PageSize {
		next = records[len(records)-1].PagingToken()
	}
	return envelopes, next, nil
}
