package engine

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// memEntryOverhead approximates the per-entry page bookkeeping charged
// against the reservation, on top of key and value bytes.
const memEntryOverhead = 16

// Memory is an ordered in-memory Env. Each committed write transaction
// publishes a new immutable snapshot, so readers see a stable view for the
// lifetime of their transaction. Key and value bytes are charged against a
// map size reservation exactly as a memory-mapped engine would refuse a
// write that outgrows its mapping.
//
// Memory also supports fault injection: InjectMapFull fails the next n
// write commits with ErrMapFull, and InjectResizeError fails SetMapSize.
type Memory struct {
	writeMu sync.Mutex

	state   atomic.Pointer[memState]
	mapSize atomic.Int64
	readers atomic.Int32
	closed  atomic.Bool

	injectedMapFull atomic.Int32
	commits         atomic.Int64
	syncs           atomic.Int64

	mu        sync.Mutex
	resizes   []int64
	resizeErr error
}

var _ Env = (*Memory)(nil)

// NewMemory returns an empty Memory environment reserving mapSize bytes.
func NewMemory(mapSize int64) *Memory {
	var m = &Memory{}
	m.mapSize.Store(mapSize)
	m.state.Store(&memState{data: map[string][]byte{}})
	return m
}

// InjectMapFull makes the next n write transactions fail with ErrMapFull at
// commit, regardless of the reservation.
func (m *Memory) InjectMapFull(n int) { m.injectedMapFull.Store(int32(n)) }

// InjectResizeError makes every following SetMapSize fail with err.
// A nil err clears the fault.
func (m *Memory) InjectResizeError(err error) {
	m.mu.Lock()
	m.resizeErr = err
	m.mu.Unlock()
}

// Resizes returns every map size applied by SetMapSize, in order.
func (m *Memory) Resizes() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.resizes)
}

// Commits returns the number of committed write transactions.
func (m *Memory) Commits() int64 { return m.commits.Load() }

// Syncs returns the number of Sync calls.
func (m *Memory) Syncs() int64 { return m.syncs.Load() }

// Used returns the bytes currently charged against the reservation.
func (m *Memory) Used() int64 { return m.state.Load().used }

// View implements Env.
func (m *Memory) View(op TxnOp) error {
	txn, err := m.BeginRead()
	if err != nil {
		return err
	}
	defer txn.Abort()
	return op(txn)
}

// Update implements Env.
func (m *Memory) Update(op TxnOp) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	var txn = &memTxn{base: m.state.Load(), pending: map[string][]byte{}, deleted: map[string]struct{}{}}
	if err := op(txn); err != nil {
		return err
	}
	if !txn.dirty {
		return nil
	}

	var next = txn.materialize()
	if n := m.injectedMapFull.Load(); n > 0 {
		m.injectedMapFull.Add(-1)
		return errors.WithMessage(ErrMapFull, "memory: injected fault")
	}
	if size := m.mapSize.Load(); next.used > size {
		return errors.WithMessagef(ErrMapFull, "memory: %d bytes needed, %d reserved", next.used, size)
	}
	m.state.Store(next)
	m.commits.Add(1)
	return nil
}

// BeginRead implements Env.
func (m *Memory) BeginRead() (ReadTxn, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	m.readers.Add(1)
	return &memTxn{base: m.state.Load(), readOnly: true, env: m}, nil
}

// Info implements Env.
func (m *Memory) Info() (Info, error) {
	if m.closed.Load() {
		return Info{}, ErrClosed
	}
	return Info{MapSize: m.mapSize.Load(), NumReaders: int(m.readers.Load())}, nil
}

// SetMapSize implements Env. A size of zero keeps the current size.
func (m *Memory) SetMapSize(size int64) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resizeErr != nil {
		return m.resizeErr
	} else if m.readers.Load() != 0 {
		return ErrTxnActive
	} else if size == 0 {
		return nil
	}
	m.resizes = append(m.resizes, size)
	m.mapSize.Store(size)
	return nil
}

// Sync implements Env.
func (m *Memory) Sync(bool) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.syncs.Add(1)
	return nil
}

// Copy implements Env. Memory environments have no on-disk form.
func (m *Memory) Copy(dst string, _ bool) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return errors.Errorf("memory: cannot copy an in-memory environment to %s", dst)
}

// Close implements Env.
func (m *Memory) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}

// memState is an immutable committed snapshot.
type memState struct {
	keys []string // Sorted.
	data map[string][]byte
	used int64
}

type memTxn struct {
	base     *memState
	readOnly bool
	env      *Memory // Set for caller-managed read transactions.
	aborted  bool

	pending map[string][]byte
	deleted map[string]struct{}
	dirty   bool
}

func (t *memTxn) lookup(key string) ([]byte, bool) {
	if !t.readOnly {
		if v, ok := t.pending[key]; ok {
			return v, true
		} else if _, ok := t.deleted[key]; ok {
			return nil, false
		}
	}
	v, ok := t.base.data[key]
	return v, ok
}

func (t *memTxn) Get(key []byte) ([]byte, error) {
	if v, ok := t.lookup(string(key)); ok {
		return slices.Clone(v), nil
	}
	return nil, ErrNotFound
}

func (t *memTxn) Put(key, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	} else if len(key) == 0 {
		return errors.New("memory: empty key")
	}
	var k = string(key)
	delete(t.deleted, k)
	t.pending[k] = slices.Clone(value)
	t.dirty = true
	return nil
}

func (t *memTxn) Del(key []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	var k = string(key)
	if _, ok := t.lookup(k); !ok {
		return ErrNotFound
	}
	delete(t.pending, k)
	t.deleted[k] = struct{}{}
	t.dirty = true
	return nil
}

func (t *memTxn) Stat() (Stat, error) {
	if t.readOnly || !t.dirty {
		return Stat{Entries: uint64(len(t.base.keys)), Depth: 1}, nil
	}
	return Stat{Entries: uint64(len(t.materialize().keys)), Depth: 1}, nil
}

func (t *memTxn) OpenCursor() (Cursor, error) {
	var st = t.base
	if !t.readOnly && t.dirty {
		st = t.materialize()
	}
	return &memCursor{st: st, pos: -1}, nil
}

func (t *memTxn) Abort() {
	if t.env != nil && !t.aborted {
		t.aborted = true
		t.env.readers.Add(-1)
	}
}

// materialize applies pending writes over the base snapshot, producing the
// snapshot a commit would publish.
func (t *memTxn) materialize() *memState {
	var next = &memState{data: make(map[string][]byte, len(t.base.data)+len(t.pending))}
	for k, v := range t.base.data {
		if _, ok := t.deleted[k]; !ok {
			next.data[k] = v
		}
	}
	for k, v := range t.pending {
		next.data[k] = v
	}
	next.keys = make([]string, 0, len(next.data))
	for k, v := range next.data {
		next.keys = append(next.keys, k)
		next.used += int64(len(k)+len(v)) + memEntryOverhead
	}
	slices.Sort(next.keys)
	return next
}

type memCursor struct {
	st  *memState
	pos int
}

func (c *memCursor) Next() ([]byte, []byte, error) {
	if c.pos+1 >= len(c.st.keys) {
		c.pos = len(c.st.keys)
		return nil, nil, ErrNotFound
	}
	c.pos++
	var k = c.st.keys[c.pos]
	return []byte(k), slices.Clone(c.st.data[k]), nil
}

func (c *memCursor) Close() {}
