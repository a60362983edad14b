package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestLMDB(t *testing.T, cfg Config) (*LMDB, string) {
	t.Helper()
	var dir = t.TempDir()
	if cfg.MapSize == 0 {
		cfg.MapSize = 1 << 20
	}
	if cfg.Perm == 0 {
		cfg.Perm = 0o644
	}
	env, err := OpenLMDB(dir, cfg)
	require.NoError(t, err)
	return env, dir
}

func TestLMDBReadWrite(t *testing.T) {
	var env, dir = openTestLMDB(t, Config{})
	defer env.Close()

	putAll(t, env, "b", "2", "a", "1")
	require.Equal(t, []string{"a=1", "b=2"}, scan(t, env))

	require.NoError(t, env.Update(func(txn Txn) error {
		require.ErrorIs(t, txn.Del([]byte("missing")), ErrNotFound)
		return txn.Del([]byte("a"))
	}))
	require.NoError(t, env.View(func(txn Txn) error {
		_, err := txn.Get([]byte("a"))
		require.ErrorIs(t, err, ErrNotFound)
		st, err := txn.Stat()
		require.NoError(t, err)
		require.Equal(t, uint64(1), st.Entries)
		return nil
	}))
	require.NoError(t, env.Sync(true))

	_, err := os.Stat(filepath.Join(dir, "data.mdb"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "lock.mdb"))
	require.NoError(t, err)
}

func TestLMDBNamedDatabase(t *testing.T) {
	var env, _ = openTestLMDB(t, Config{Name: "entries"})
	defer env.Close()

	putAll(t, env, "k", "v")
	require.Equal(t, []string{"k=v"}, scan(t, env))
}

func TestLMDBMapFullAndGrow(t *testing.T) {
	var env, _ = openTestLMDB(t, Config{MapSize: 64 << 10})
	defer env.Close()

	var value = make([]byte, 1<<10)
	var write = func() error {
		return env.Update(func(txn Txn) error {
			for i := range 256 {
				if err := txn.Put(fmt.Appendf(nil, "key-%04d", i), value); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.ErrorIs(t, write(), ErrMapFull)
	require.Empty(t, scan(t, env))

	info, err := env.Info()
	require.NoError(t, err)
	require.NoError(t, env.SetMapSize(info.MapSize*16))
	require.NoError(t, write())

	info2, err := env.Info()
	require.NoError(t, err)
	require.Equal(t, info.MapSize*16, info2.MapSize)
}

func TestLMDBReadOnly(t *testing.T) {
	var env, dir = openTestLMDB(t, Config{})
	putAll(t, env, "k", "v")
	require.NoError(t, env.Close())

	ro, err := OpenLMDB(dir, Config{MapSize: 1 << 20, ReadOnly: true, Perm: 0o644})
	require.NoError(t, err)
	defer ro.Close()

	require.Equal(t, []string{"k=v"}, scan(t, ro))
	require.ErrorIs(t, ro.Update(func(txn Txn) error { return nil }), ErrReadOnly)
}

func TestLMDBBeginReadAndCopy(t *testing.T) {
	var env, _ = openTestLMDB(t, Config{})
	defer env.Close()
	putAll(t, env, "a", "1", "b", "2")

	txn, err := env.BeginRead()
	require.NoError(t, err)
	v, err := txn.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
	txn.Abort()

	var dst = t.TempDir()
	require.NoError(t, env.Copy(dst, true))

	cp, err := OpenLMDB(dst, Config{MapSize: 1 << 20, ReadOnly: true, Perm: 0o644})
	require.NoError(t, err)
	defer cp.Close()
	require.Equal(t, []string{"a=1", "b=2"}, scan(t, cp))
}

func TestLMDBClosed(t *testing.T) {
	var env, _ = openTestLMDB(t, Config{})
	require.NoError(t, env.Close())
	require.ErrorIs(t, env.Close(), ErrClosed)
	require.ErrorIs(t, env.Update(func(Txn) error { return nil }), ErrClosed)
	_, err := env.BeginRead()
	require.ErrorIs(t, err, ErrClosed)
}

func TestLMDBResizeWaitsForReaders(t *testing.T) {
	var env, _ = openTestLMDB(t, Config{ResizeWait: 20 * time.Millisecond})
	defer env.Close()
	putAll(t, env, "k", "v")

	txn, err := env.BeginRead()
	require.NoError(t, err)

	// The reader's snapshot must not be remapped under it.
	require.ErrorIs(t, env.SetMapSize(2<<20), ErrTxnActive)
	require.ErrorIs(t, env.Close(), ErrTxnActive)

	v, err := txn.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
	txn.Abort()
	txn.Abort() // Idempotent.

	require.NoError(t, env.SetMapSize(2<<20))
	info, err := env.Info()
	require.NoError(t, err)
	require.Equal(t, int64(2<<20), info.MapSize)
}

func TestLMDBResizeProceedsOnceReadersFinish(t *testing.T) {
	var env, _ = openTestLMDB(t, Config{ResizeWait: time.Minute})
	defer env.Close()
	putAll(t, env, "k", "v")

	txn, err := env.BeginRead()
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		txn.Abort()
	}()
	require.NoError(t, env.SetMapSize(4<<20))
	require.Equal(t, []string{"k=v"}, scan(t, env))
}
