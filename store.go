package lmdbm

// store.go implements the Store mapping over an engine environment.

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalhour/lmdbm/internal/engine"
	"github.com/aalhour/lmdbm/internal/logging"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Entry is a key/value pair.
type Entry struct {
	Key   []byte
	Value []byte
}

// Mapping is the associative-container view of a store.
type Mapping interface {
	// Get returns the value of key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Put sets the value of key.
	Put(key, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error
	// Has reports whether key is present.
	Has(key []byte) (bool, error)
	// Len returns the number of entries.
	Len() (int, error)
	// Keys ranges over all keys in ascending order.
	Keys() iter.Seq2[[]byte, error]
	// Values ranges over all values in ascending key order.
	Values() iter.Seq2[[]byte, error]
	// Items ranges over all entries in ascending key order.
	Items() iter.Seq2[Entry, error]
	// Pop removes key and returns its value, or def if key is absent.
	Pop(key, def []byte) ([]byte, error)
	// Update writes all pairs in one transaction.
	Update(pairs iter.Seq2[[]byte, []byte]) error
	// Sync flushes durable state to disk.
	Sync() error
	// Close releases the store.
	Close() error
}

// Store is a Mapping over an LMDB environment.
type Store struct {
	env      engine.Env
	path     string
	opts     *Options
	pipeline Pipeline
	logger   Logger
	stats    Statistics
	grow     *grower
	closed   atomic.Bool

	// Open iterators, aborted by Close.
	mu    sync.Mutex
	iters map[*Iterator]struct{}
}

var _ Mapping = (*Store)(nil)

// Open opens the store in directory path.
//
// Under ModeReadOnly and ModeReadWrite the directory must exist; a missing
// one yields an error matching os.ErrNotExist. ModeCreate creates the
// directory if needed. ModeRecreate removes any existing store files first.
// A nil opts selects DefaultOptions.
func Open(path string, opts *Options) (*Store, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := prepareDir(opts.FS, path, opts); err != nil {
		return nil, err
	}

	env, err := engine.OpenLMDB(path, engine.Config{
		MapSize:    opts.MapSize,
		ReadOnly:   !opts.Mode.Writable(),
		Perm:       opts.Perm,
		Name:       opts.SubDatabase,
		NoSync:     opts.NoSync,
		ResizeWait: opts.ResizeWait,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "lmdbm: open %s", path)
	}

	var s = newStore(env, path, opts)
	if info, err := env.Info(); err == nil {
		s.logger.Infof(logging.NSOpen+"%s mode=%s map=%s pipeline=%s",
			path, opts.Mode, humanize.IBytes(uint64(info.MapSize)), s.pipeline)
	}
	return s, nil
}

// OpenCompressed opens the store at path with the gzip level 9 pipeline.
func OpenCompressed(path string, mode OpenMode) (*Store, error) {
	return Open(path, CompressedOptions(mode))
}

// prepareDir applies the directory side of the open mode.
func prepareDir(fs afero.Fs, path string, opts *Options) error {
	switch opts.Mode {
	case ModeReadOnly, ModeReadWrite:
		fi, err := fs.Stat(path)
		if err != nil {
			return errors.WithMessagef(err, "lmdbm: open %s", path)
		}
		if !fi.IsDir() {
			return errors.Errorf("lmdbm: open %s: not a directory", path)
		}
		return nil
	case ModeRecreate:
		if err := removeStore(fs, path, true); err != nil {
			return err
		}
		fallthrough
	case ModeCreate:
		if err := fs.MkdirAll(path, opts.Perm|0o700); err != nil {
			return errors.WithMessagef(err, "lmdbm: create %s", path)
		}
		return nil
	default:
		return errors.WithMessagef(ErrInvalidMode, "mode %d", int(opts.Mode))
	}
}

// newStore wraps an open environment. opts must have defaults applied.
func newStore(env engine.Env, path string, opts *Options) *Store {
	var stats = opts.Statistics
	if stats == nil {
		stats = NewStatistics()
	}
	return &Store{
		env:      env,
		path:     path,
		opts:     opts,
		pipeline: opts.Pipeline,
		logger:   opts.Logger,
		stats:    stats,
		grow: &grower{
			env:         env,
			maxAttempts: opts.MaxGrowAttempts,
			logger:      opts.Logger,
			stats:       stats,
		},
	}
}

// Path returns the directory of the store.
func (s *Store) Path() string { return s.path }

// Statistics returns the store's statistics.
func (s *Store) Statistics() Statistics { return s.stats }

// Pipeline returns the store's transform pipeline.
func (s *Store) Pipeline() Pipeline { return s.pipeline }

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var start = time.Now()
	defer s.since(HistogramGetMicros, start)

	s.stats.RecordTick(TickerKeysRead, 1)
	var raw []byte
	var err = s.env.View(func(txn engine.Txn) (err error) {
		raw, err = txn.Get(s.pipeline.PreKey(key))
		return err
	})
	if errors.Is(err, engine.ErrNotFound) {
		s.stats.RecordTick(TickerKeysNotFound, 1)
		return nil, ErrNotFound
	} else if err != nil {
		return nil, toStoreError(err)
	}
	s.stats.RecordTick(TickerKeysFound, 1)
	s.stats.RecordTick(TickerBytesRead, uint64(len(raw)))
	return s.decode(key, raw)
}

// Put stores value under key, growing the map as needed.
func (s *Store) Put(key, value []byte) error {
	var k = s.pipeline.PreKey(key)
	v, err := s.encode(value)
	if err != nil {
		return err
	}
	err = s.write(len(k)+len(v), func(txn engine.Txn) error {
		return txn.Put(k, v)
	})
	if err == nil {
		s.stats.RecordTick(TickerKeysWritten, 1)
	}
	return err
}

// PutText stores a text value under a text key, normalized by the
// pipeline's text entry points.
func (s *Store) PutText(key, value string) error {
	k, err := s.pipeline.KeyText(key)
	if err != nil {
		return err
	}
	v, err := s.pipeline.ValueText(value)
	if err != nil {
		return err
	}
	return s.Put(k, v)
}

// TextKey normalizes a text key for use with the other operations.
func (s *Store) TextKey(key string) ([]byte, error) {
	return s.pipeline.KeyText(key)
}

// KeyString renders a stored key as text.
func (s *Store) KeyString(key []byte) string {
	return s.pipeline.KeyString(key)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key []byte) error {
	var k = s.pipeline.PreKey(key)
	var err = s.write(len(k), func(txn engine.Txn) error {
		if err := txn.Del(k); err != nil && !errors.Is(err, engine.ErrNotFound) {
			return err
		}
		return nil
	})
	if err == nil {
		s.stats.RecordTick(TickerKeysDeleted, 1)
	}
	return err
}

// Has reports whether key is present. The value is not decoded.
func (s *Store) Has(key []byte) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	s.stats.RecordTick(TickerKeysRead, 1)
	var err = s.env.View(func(txn engine.Txn) error {
		_, err := txn.Get(s.pipeline.PreKey(key))
		return err
	})
	switch {
	case err == nil:
		s.stats.RecordTick(TickerKeysFound, 1)
		return true, nil
	case errors.Is(err, engine.ErrNotFound):
		s.stats.RecordTick(TickerKeysNotFound, 1)
		return false, nil
	default:
		return false, toStoreError(err)
	}
}

// Len returns the number of entries.
func (s *Store) Len() (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var st engine.Stat
	var err = s.env.View(func(txn engine.Txn) (err error) {
		st, err = txn.Stat()
		return err
	})
	if err != nil {
		return 0, toStoreError(err)
	}
	return int(st.Entries), nil
}

// Pop removes key and returns its prior value. If key is absent, def is
// returned without error. The value is decoded before the delete commits,
// so an undecodable value is left in place.
func (s *Store) Pop(key, def []byte) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.stats.RecordTick(TickerKeysRead, 1)

	var k = s.pipeline.PreKey(key)
	var out []byte
	var found bool

	var err = s.write(len(k), func(txn engine.Txn) error {
		out, found = nil, false

		raw, err := txn.Get(k)
		if errors.Is(err, engine.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		if out, err = s.decode(key, raw); err != nil {
			return err
		}
		found = true
		return txn.Del(k)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		s.stats.RecordTick(TickerKeysNotFound, 1)
		return def, nil
	}
	s.stats.RecordTick(TickerKeysFound, 1)
	s.stats.RecordTick(TickerKeysDeleted, 1)
	return out, nil
}

// Update writes every pair in one transaction, growing the map as needed.
// Later pairs overwrite earlier pairs with the same key.
func (s *Store) Update(pairs iter.Seq2[[]byte, []byte]) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var b = NewBatch()
	for k, v := range pairs {
		b.Put(k, v)
	}
	return s.Write(b)
}

// Write applies the batch atomically, growing the map as needed.
func (s *Store) Write(b *Batch) error {
	if b == nil || b.Count() == 0 {
		return s.checkOpen()
	}
	ops, size, err := b.encode(s)
	if err != nil {
		return err
	}
	err = s.write(size, func(txn engine.Txn) error {
		for _, op := range ops {
			var err error
			if op.del {
				if err = txn.Del(op.key); errors.Is(err, engine.ErrNotFound) {
					err = nil
				}
			} else {
				err = txn.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		s.stats.RecordTick(TickerKeysWritten, uint64(b.puts))
		s.stats.RecordTick(TickerKeysDeleted, uint64(b.dels))
	}
	return err
}

// Sync forces a flush of durable state to disk.
func (s *Store) Sync() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.stats.RecordTick(TickerSyncs, 1)
	return toStoreError(s.env.Sync(true))
}

// MapSize returns the current map size in bytes.
func (s *Store) MapSize() (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	info, err := s.env.Info()
	if err != nil {
		return 0, toStoreError(err)
	}
	return info.MapSize, nil
}

// Close releases the environment. A second Close returns ErrClosed.
//
// Iterators still open are released first; their Next then returns false
// and their Err returns ErrClosed. Close waits up to Options.ResizeWait for
// operations running in other goroutines.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	s.logger.Debugf(logging.NSStore+"closing %s", s.path)

	s.mu.Lock()
	var open = s.iters
	s.iters = nil
	s.mu.Unlock()

	for it := range open {
		it.release(ErrClosed)
	}
	return toStoreError(s.env.Close())
}

// track registers an open iterator, failing if the store is closed.
func (s *Store) track(it *Iterator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}
	if s.iters == nil {
		s.iters = make(map[*Iterator]struct{})
	}
	s.iters[it] = struct{}{}
	return nil
}

func (s *Store) untrack(it *Iterator) {
	s.mu.Lock()
	delete(s.iters, it)
	s.mu.Unlock()
}

// write runs op through the grower and records write statistics.
func (s *Store) write(size int, op engine.TxnOp) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var start = time.Now()
	defer s.since(HistogramWriteMicros, start)

	attempts, err := s.grow.run(op)
	s.stats.MeasureTime(HistogramAttemptsPerWrite, uint64(attempts))
	if err != nil {
		return toStoreError(err)
	}
	s.stats.RecordTick(TickerBytesWritten, uint64(size))
	s.stats.MeasureTime(HistogramBytesPerWrite, uint64(size))
	return nil
}

func (s *Store) encode(value []byte) ([]byte, error) {
	v, err := s.pipeline.PreValue(value)
	if err != nil {
		return nil, err
	}
	s.stats.MeasureTime(HistogramValueBytes, uint64(len(value)))
	s.stats.MeasureTime(HistogramStoredValueBytes, uint64(len(v)))
	return v, nil
}

func (s *Store) decode(key, raw []byte) ([]byte, error) {
	v, err := s.pipeline.PostValue(raw)
	if err != nil {
		s.stats.RecordTick(TickerCorruptValues, 1)
		return nil, errors.WithMessagef(err, "key %q", s.pipeline.KeyString(key))
	}
	return v, nil
}

func (s *Store) since(h HistogramType, start time.Time) {
	s.stats.MeasureTime(h, uint64(time.Since(start).Microseconds()))
}
