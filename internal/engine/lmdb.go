package engine

import (
	"os"
	"sync"
	"time"

	"github.com/bmatsuo/lmdb-go/lmdb"
	"github.com/pkg/errors"
)

// DefaultResizeWait bounds the wait of SetMapSize and Close for open
// transactions when Config.ResizeWait is zero.
const DefaultResizeWait = 5 * time.Second

// Config configures an LMDB environment.
type Config struct {
	// MapSize is the initial reservation, in bytes.
	MapSize int64
	// ReadOnly opens the environment without write access.
	ReadOnly bool
	// Perm is the file mode of the data and lock files.
	Perm os.FileMode
	// Name selects a named sub-database. Empty binds the unnamed root database.
	Name string
	// NoSync skips the flush at commit; durability then relies on Sync.
	NoSync bool
	// ResizeWait bounds how long SetMapSize and Close wait for open
	// transactions of this process.
	ResizeWait time.Duration
}

// LMDB is an Env backed by an LMDB environment, opened with NoTLS so that
// read transactions are not bound to an OS thread. Write transactions run
// through lmdb.Env.Update, which locks the calling goroutine to its thread
// for the duration of the transaction.
//
// Resizing remaps the file, which invalidates every live transaction of the
// process, so all transactions pass through a gate which SetMapSize and
// Close take exclusively.
type LMDB struct {
	env        *lmdb.Env
	dbi        lmdb.DBI
	readOnly   bool
	resizeWait time.Duration
	gate       txnGate
}

var _ Env = (*LMDB)(nil)

// OpenLMDB opens the LMDB environment in directory path, which must exist.
func OpenLMDB(path string, cfg Config) (*LMDB, error) {
	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, errors.WithMessage(translate(err), "lmdb: creating environment")
	}
	if err = env.SetMaxDBs(1); err != nil {
		_ = env.Close()
		return nil, errors.WithMessage(translate(err), "lmdb: setting max dbs")
	}
	if err = env.SetMapSize(cfg.MapSize); err != nil {
		_ = env.Close()
		return nil, errors.WithMessagef(translate(err), "lmdb: setting map size %d", cfg.MapSize)
	}

	var flags uint = lmdb.NoTLS
	if cfg.ReadOnly {
		flags |= lmdb.Readonly
	}
	if cfg.NoSync {
		flags |= lmdb.NoSync
	}
	if err = env.Open(path, flags, cfg.Perm); err != nil {
		_ = env.Close()
		return nil, errors.WithMessagef(translate(err), "lmdb: opening %s", path)
	}

	var e = &LMDB{env: env, readOnly: cfg.ReadOnly, resizeWait: cfg.ResizeWait}
	if e.resizeWait <= 0 {
		e.resizeWait = DefaultResizeWait
	}
	var openDBI = func(txn *lmdb.Txn) (err error) {
		if cfg.Name == "" {
			e.dbi, err = txn.OpenRoot(0)
		} else if cfg.ReadOnly {
			e.dbi, err = txn.OpenDBI(cfg.Name, 0)
		} else {
			e.dbi, err = txn.OpenDBI(cfg.Name, lmdb.Create)
		}
		return err
	}
	if cfg.ReadOnly {
		err = env.View(openDBI)
	} else {
		err = env.Update(openDBI)
	}
	if err != nil {
		_ = env.Close()
		return nil, errors.WithMessagef(translate(err), "lmdb: opening database %q", cfg.Name)
	}
	return e, nil
}

// View implements Env.
func (e *LMDB) View(op TxnOp) error {
	return translate(e.run(func() error {
		return e.env.View(func(txn *lmdb.Txn) error {
			return op(&lmdbTxn{txn: txn, dbi: e.dbi})
		})
	}))
}

// Update implements Env.
func (e *LMDB) Update(op TxnOp) error {
	if e.readOnly {
		return ErrReadOnly
	}
	return translate(e.run(func() error {
		return e.env.Update(func(txn *lmdb.Txn) error {
			return op(&lmdbTxn{txn: txn, dbi: e.dbi})
		})
	}))
}

// BeginRead implements Env. The returned transaction holds the gate until
// it is aborted.
func (e *LMDB) BeginRead() (ReadTxn, error) {
	for adopted := false; ; adopted = true {
		if err := e.gate.enter(); err != nil {
			return nil, err
		}
		txn, err := e.env.BeginTxn(nil, lmdb.Readonly)
		if err == nil {
			return &lmdbReadTxn{lmdbTxn: lmdbTxn{txn: txn, dbi: e.dbi}, gate: &e.gate}, nil
		}
		e.gate.leave()

		if adopted || !lmdb.IsMapResized(err) {
			return nil, translate(err)
		} else if err = e.adoptResize(); err != nil {
			return nil, translate(err)
		}
	}
}

// run runs fn inside the gate. If another process grew the map since this
// environment last looked, it adopts the new size and runs fn once more.
func (e *LMDB) run(fn func() error) error {
	var once = func() error {
		if err := e.gate.enter(); err != nil {
			return err
		}
		defer e.gate.leave()
		return fn()
	}
	var err = once()
	if lmdb.IsMapResized(err) {
		if err = e.adoptResize(); err != nil {
			return err
		}
		err = once()
	}
	return err
}

func (e *LMDB) adoptResize() error {
	return e.gate.exclusive(e.resizeWait, false, func() error {
		return e.env.SetMapSize(0)
	})
}

// Info implements Env.
func (e *LMDB) Info() (Info, error) {
	if err := e.gate.enter(); err != nil {
		return Info{}, err
	}
	defer e.gate.leave()

	info, err := e.env.Info()
	if err != nil {
		return Info{}, translate(err)
	}
	return Info{MapSize: info.MapSize, NumReaders: int(info.NumReaders)}, nil
}

// SetMapSize implements Env. It holds back new transactions and waits up
// to the configured ResizeWait for active ones to finish.
func (e *LMDB) SetMapSize(size int64) error {
	return translate(e.gate.exclusive(e.resizeWait, false, func() error {
		return e.env.SetMapSize(size)
	}))
}

// Sync implements Env.
func (e *LMDB) Sync(force bool) error {
	if err := e.gate.enter(); err != nil {
		return err
	}
	defer e.gate.leave()
	return translate(e.env.Sync(force))
}

// Copy implements Env.
func (e *LMDB) Copy(dst string, compact bool) error {
	if err := e.gate.enter(); err != nil {
		return err
	}
	defer e.gate.leave()

	if compact {
		return translate(e.env.CopyFlag(dst, lmdb.CopyCompact))
	}
	return translate(e.env.Copy(dst))
}

// Close implements Env. A second Close returns ErrClosed.
func (e *LMDB) Close() error {
	return translate(e.gate.exclusive(e.resizeWait, true, e.env.Close))
}

type lmdbTxn struct {
	txn *lmdb.Txn
	dbi lmdb.DBI
}

func (t *lmdbTxn) Get(key []byte) ([]byte, error) {
	v, err := t.txn.Get(t.dbi, key)
	return v, translate(err)
}

func (t *lmdbTxn) Put(key, value []byte) error {
	return translate(t.txn.Put(t.dbi, key, value, 0))
}

func (t *lmdbTxn) Del(key []byte) error {
	return translate(t.txn.Del(t.dbi, key, nil))
}

func (t *lmdbTxn) Stat() (Stat, error) {
	st, err := t.txn.Stat(t.dbi)
	if err != nil {
		return Stat{}, translate(err)
	}
	return Stat{Entries: st.Entries, Depth: st.Depth}, nil
}

func (t *lmdbTxn) OpenCursor() (Cursor, error) {
	cur, err := t.txn.OpenCursor(t.dbi)
	if err != nil {
		return nil, translate(err)
	}
	return &lmdbCursor{cur: cur}, nil
}

// lmdbReadTxn is a caller-managed read transaction holding the gate.
type lmdbReadTxn struct {
	lmdbTxn
	gate *txnGate
	once sync.Once
}

func (t *lmdbReadTxn) Abort() {
	t.once.Do(func() {
		t.txn.Abort()
		t.gate.leave()
	})
}

type lmdbCursor struct {
	cur *lmdb.Cursor
}

func (c *lmdbCursor) Next() ([]byte, []byte, error) {
	k, v, err := c.cur.Get(nil, nil, lmdb.Next)
	return k, v, translate(err)
}

func (c *lmdbCursor) Close() { c.cur.Close() }

// translate maps LMDB errors onto the engine sentinels, keeping the LMDB
// message. Errors which are not LMDB errors pass through unchanged.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case lmdb.IsNotFound(err):
		return errors.WithMessage(ErrNotFound, err.Error())
	case lmdb.IsMapFull(err):
		return errors.WithMessage(ErrMapFull, err.Error())
	default:
		return err
	}
}
