// Package engine defines the contract lmdbm requires from its embedded
// transactional key-value engine, and provides two implementations: an
// LMDB-backed environment (OpenLMDB) and an ordered in-memory environment
// with fault injection (NewMemory) used for tests and benchmarks.
//
// The contract is deliberately narrow. An Env is bound to exactly one
// key space (sub-database). Writers are serialized by the engine itself;
// readers run concurrently against a stable snapshot for the lifetime of
// their transaction.
package engine

import "errors"

var (
	// ErrNotFound is returned by Txn.Get and Txn.Del for absent keys, and by
	// Cursor.Next once the cursor is exhausted.
	ErrNotFound = errors.New("engine: key not found")

	// ErrMapFull is the engine's reservation-exhausted signal: the pending
	// write does not fit in the current map size. It is distinguishable from
	// every other failure, and a transaction failing with it has been aborted.
	ErrMapFull = errors.New("engine: map size reservation exhausted")

	// ErrClosed is returned by any operation on a closed Env.
	ErrClosed = errors.New("engine: environment is closed")

	// ErrReadOnly is returned by write operations on a read-only Env.
	ErrReadOnly = errors.New("engine: environment is read-only")

	// ErrTxnActive is returned by SetMapSize and Close when transactions of
	// this process stay open.
	ErrTxnActive = errors.New("engine: cannot resize while transactions are active")
)

// TxnOp is a function run inside a transaction. Returning a non-nil error
// aborts the transaction.
type TxnOp func(txn Txn) error

// Info is the engine introspection snapshot of an environment.
type Info struct {
	// MapSize is the current size of the address-space reservation, in bytes.
	MapSize int64
	// NumReaders is the number of reader slots in use.
	NumReaders int
}

// Stat describes the bound key space.
type Stat struct {
	// Entries is the number of live key/value pairs.
	Entries uint64
	// Depth is the depth of the engine's tree, where applicable.
	Depth uint
}

// Env is an open engine environment bound to a single key space.
type Env interface {
	// View runs op in a read-only transaction.
	View(op TxnOp) error

	// Update runs op in a write transaction, committing if op returns nil.
	// A write that does not fit the reservation fails with ErrMapFull and
	// is not applied.
	Update(op TxnOp) error

	// BeginRead starts a read-only transaction whose lifetime is managed by
	// the caller. It must be aborted.
	BeginRead() (ReadTxn, error)

	// Info returns engine introspection.
	Info() (Info, error)

	// SetMapSize resizes the reservation. It fails with ErrTxnActive if
	// transactions of this process are active and do not finish in time.
	SetMapSize(size int64) error

	// Sync flushes durable state to disk. With force, the flush is
	// synchronous even if the environment was opened without sync.
	Sync(force bool) error

	// Copy writes a consistent copy of the environment into directory dst.
	// With compact, free pages are omitted.
	Copy(dst string, compact bool) error

	// Close releases the environment. Like SetMapSize, it fails with
	// ErrTxnActive if transactions stay open.
	Close() error
}

// Txn is a transaction over the bound key space. Slices returned by a Txn
// are owned by the caller.
type Txn interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Del(key []byte) error
	Stat() (Stat, error)
	OpenCursor() (Cursor, error)
}

// ReadTxn is a caller-managed read-only transaction.
type ReadTxn interface {
	Txn
	Abort()
}

// Cursor iterates the key space in ascending key order.
type Cursor interface {
	// Next advances the cursor and returns the entry at its new position.
	// The first call positions on the first entry. ErrNotFound marks the end.
	Next() (key, value []byte, err error)
	Close()
}
