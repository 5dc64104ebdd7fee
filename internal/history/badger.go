package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/justestif/go-mood-recommender/internal/emotion"
)

// BadgerStore persists windows in BadgerDB. Each user window is a single
// JSON-encoded entry whose TTL is reset on every push.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadger opens a BadgerDB at path. An empty path opens an in-memory
// database.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return db, nil
}

// NewBadgerStore creates a store on an open database.
func NewBadgerStore(db *badger.DB, ttl time.Duration) *BadgerStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BadgerStore{db: db, ttl: ttl}
}

// Push appends an observation to the user's window.
func (s *BadgerStore) Push(_ context.Context, userID string, obs emotion.Observation, windowSize int) error {
	if userID == "" {
		return ErrInvalidUser
	}
	key := []byte(windowKey(userID))

	err := s.db.Update(func(txn *badger.Txn) error {
		window, err := readWindow(txn, key)
		if err != nil {
			return err
		}

		window = trim(append(window, obs), windowSize)
		data, err := json.Marshal(window)
		if err != nil {
			return fmt.Errorf("encoding window: %w", err)
		}

		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("pushing observation: %w", err)
	}
	return nil
}

// Recent returns the user's most recent observations, oldest first.
func (s *BadgerStore) Recent(_ context.Context, userID string, limit int) ([]emotion.Observation, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	key := []byte(windowKey(userID))

	var window []emotion.Observation
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		window, err = readWindow(txn, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading window: %w", err)
	}
	return tail(window, limit), nil
}

func readWindow(txn *badger.Txn, key []byte) ([]emotion.Observation, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var window []emotion.Observation
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &window)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding window: %w", err)
	}
	return window, nil
}

var _ Store = (*BadgerStore)(nil)
