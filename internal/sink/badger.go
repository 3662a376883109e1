// Package sink stores finalized stream records. The stores double as the
// stream client handed to hooks, so a plugin can load any indexed stream.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/ports"
)

const (
	streamPrefix  = "stream/"
	contextPrefix = "context/"
)

// Store is a persistence sink that can also read records back.
type Store interface {
	ports.Sink
	ports.StreamClient
	// List returns records indexed under contextID, all records when it is
	// empty, ordered by stream id. limit <= 0 means no limit.
	List(ctx context.Context, contextID string, limit int) ([]model.StreamRecord, error)
	Close() error
}

// BadgerStore keeps records in a Badger database. A stream id maps to its
// latest record; a secondary key per context supports listing.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens or creates a store in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func streamKey(id string) []byte {
	return []byte(streamPrefix + id)
}

func contextKey(contextID, id string) []byte {
	return []byte(contextPrefix + contextID + "/" + id)
}

// Persist stores record, replacing a previous record for the same stream.
// Moving a stream to another context drops the old context entry.
func (s *BadgerStore) Persist(ctx context.Context, record model.StreamRecord) error {
	if record.StreamID == "" {
		return errors.New("record has no stream id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(streamKey(record.StreamID))
		switch {
		case err == nil:
			var previous model.StreamRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &previous)
			}); err != nil {
				return err
			}
			if previous.Context != record.Context {
				if err := txn.Delete(contextKey(previous.Context, record.StreamID)); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(streamKey(record.StreamID), data); err != nil {
			return err
		}
		return txn.Set(contextKey(record.Context, record.StreamID), nil)
	})
}

// Load returns the latest record of a stream or ports.ErrStreamNotFound.
func (s *BadgerStore) Load(ctx context.Context, streamID string) (*model.StreamRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record model.StreamRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(streamKey(streamID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ports.ErrStreamNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List implements Store.
func (s *BadgerStore) List(ctx context.Context, contextID string, limit int) ([]model.StreamRecord, error) {
	var records []model.StreamRecord
	err := s.db.View(func(txn *badger.Txn) error {
		if contextID == "" {
			return s.scanStreams(ctx, txn, limit, &records)
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(contextPrefix + contextID + "/")
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			item, err := txn.Get(streamKey(id))
			if err != nil {
				return err
			}
			var record model.StreamRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			records = append(records, record)
			if limit > 0 && len(records) >= limit {
				return nil
			}
		}
		return nil
	})
	return records, err
}

func (s *BadgerStore) scanStreams(ctx context.Context, txn *badger.Txn, limit int, records *[]model.StreamRecord) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 10
	prefix := []byte(streamPrefix)
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var record model.StreamRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}
		*records = append(*records, record)
		if limit > 0 && len(*records) >= limit {
			return nil
		}
	}
	return nil
}

var _ Store = (*BadgerStore)(nil)
