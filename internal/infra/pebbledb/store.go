// Package pebbledb implements the cursor, outbox and subscription stores on an
// embedded Pebble database.
package pebbledb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"
)

// Key layout:
//
//	lpt                         processed ledger, big-endian uint64
//	o<seq>                      outbox entry, seq big-endian uint64
//	s<chat_id>                  subscription record
//	a<account_id>\x00<chat_id>  account -> chat index entry
const (
	lastProcessedLedgerKey = "lpt"
	outboxPrefix           = 'o'
	subscriptionPrefix     = 's'
	accountIndexPrefix     = 'a'
)

// Store owns the Pebble handle shared by the three repositories.
type Store struct {
	db *pebble.DB

	// mu serializes sequence allocation and subscription read-modify-write.
	mu      sync.Mutex
	nextSeq uint64
}

func Open(storeDir string) (*Store, error) {
	return open(filepath.Join(storeDir, "notification-bot-store"), &pebble.Options{})
}

func open(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %w", err)
	}
	s := &Store{db: db}
	last, err := s.lastOutboxSeq()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.nextSeq = last + 1
	return s, nil
}

func (s *Store) Cursor() *CursorRepository {
	return &CursorRepository{store: s}
}

func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{store: s}
}

func (s *Store) Subscriptions() *SubscriptionRepository {
	return &SubscriptionRepository{store: s}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lastOutboxSeq() (uint64, error) {
	iter, err := s.db.NewIter(prefixOptions([]byte{outboxPrefix}))
	if err != nil {
		return 0, fmt.Errorf("creating iterator: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, nil
	}
	return binary.BigEndian.Uint64(iter.Key()[1:]), nil
}

// get copies the value of key; found is false when the key does not exist.
func (s *Store) get(key []byte) (value []byte, found bool, err error) {
	raw, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting key [%s]: %w", key, err)
	}
	defer closer.Close()
	return append([]byte(nil), raw...), true, nil
}

func outboxKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{outboxPrefix}, seq)
}

func subscriptionKey(chatID int64) []byte {
	return binary.BigEndian.AppendUint64([]byte{subscriptionPrefix}, uint64(chatID))
}

func accountIndexPrefixKey(accountID string) []byte {
	key := append([]byte{accountIndexPrefix}, accountID...)
	return append(key, 0x00)
}

func accountIndexKey(accountID string, chatID int64) []byte {
	return binary.BigEndian.AppendUint64(accountIndexPrefixKey(accountID), uint64(chatID))
}

// prefixOptions bounds an iterator to keys starting with prefix.
func prefixOptions(prefix []byte) *pebble.IterOptions {
	upper := append([]byte(nil), prefix...)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: prefix, UpperBound: upper}
}
