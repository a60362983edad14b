package lmdbm

// iterator.go implements forward iteration over a store.
//
// Every Iterator, and every pass over Keys, Values or Items, reads one
// engine snapshot: entries committed after the pass began are not seen.

import (
	"iter"
	"sync"

	"github.com/aalhour/lmdbm/internal/engine"
	"github.com/pkg/errors"
)

// Iterator walks a store in ascending key order inside one read
// transaction. It is not safe for concurrent use, and must be closed.
// Closing the store releases it: Next then returns false and Err returns
// ErrClosed.
//
// Example:
//
//	it, err := store.NewIterator()
//	if err != nil {
//		return err
//	}
//	defer it.Close()
//	for it.Next() {
//		fmt.Printf("%s = %s\n", it.Key(), it.Value())
//	}
//	return it.Err()
type Iterator struct {
	mu     sync.Mutex // Serializes use with release by Store.Close.
	s      *Store
	txn    engine.ReadTxn
	cur    engine.Cursor
	values bool
	key    []byte
	value  []byte
	err    error
	done   bool
	closed bool
}

// NewIterator returns an Iterator positioned before the first entry.
func (s *Store) NewIterator() (*Iterator, error) {
	return s.newIterator(true)
}

func (s *Store) newIterator(values bool) (*Iterator, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	txn, err := s.env.BeginRead()
	if err != nil {
		return nil, toStoreError(err)
	}
	cur, err := txn.OpenCursor()
	if err != nil {
		txn.Abort()
		return nil, toStoreError(err)
	}
	var it = &Iterator{s: s, txn: txn, cur: cur, values: values}
	if err = s.track(it); err != nil {
		cur.Close()
		txn.Abort()
		return nil, err
	}
	return it, nil
}

// Next advances to the next entry, returning false at the end or on error.
func (it *Iterator) Next() bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.done {
		return false
	}
	k, raw, err := it.cur.Next()
	if errors.Is(err, engine.ErrNotFound) {
		it.done = true
		return false
	} else if err != nil {
		it.err, it.done = toStoreError(err), true
		return false
	}

	it.key, it.value = it.s.pipeline.PostKey(k), nil
	if it.values {
		if it.value, err = it.s.decode(it.key, raw); err != nil {
			it.err, it.done = err, true
			return false
		}
	}
	it.s.stats.RecordTick(TickerIterNext, 1)
	it.s.stats.RecordTick(TickerBytesRead, uint64(len(k)+len(raw)))
	return true
}

// Key returns the key of the current entry.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the decoded value of the current entry.
func (it *Iterator) Value() []byte { return it.value }

// Err returns the error that ended iteration, if any.
func (it *Iterator) Err() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.err
}

// Close releases the read transaction. It is safe to call more than once.
func (it *Iterator) Close() error {
	it.release(nil)
	it.s.untrack(it)
	return nil
}

// release ends iteration and aborts the read transaction. A non-nil err
// becomes the iterator's error unless it already has one.
func (it *Iterator) release(err error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return
	}
	if it.err == nil && !it.done {
		it.err = err
	}
	it.closed, it.done = true, true
	it.cur.Close()
	it.txn.Abort()
}

// Keys ranges over all keys in ascending order. Values are not decoded.
// An error is yielded once, with a nil key, and ends the sequence.
func (s *Store) Keys() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for e, err := range s.entries(false) {
			if !yield(e.Key, err) {
				return
			}
		}
	}
}

// Values ranges over all decoded values in ascending key order.
// An error is yielded once, with a nil value, and ends the sequence.
func (s *Store) Values() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for e, err := range s.entries(true) {
			if !yield(e.Value, err) {
				return
			}
		}
	}
}

// Items ranges over all entries in ascending key order.
// An error is yielded once, with a zero Entry, and ends the sequence.
func (s *Store) Items() iter.Seq2[Entry, error] {
	return s.entries(true)
}

func (s *Store) entries(values bool) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		it, err := s.newIterator(values)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		defer it.Close()

		for it.Next() {
			if !yield(Entry{Key: it.Key(), Value: it.Value()}, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Entry{}, err)
		}
	}
}
