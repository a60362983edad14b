/*
Package lmdbm presents an LMDB environment as an ordinary key/value
mapping: get, put, delete, contains, length, iteration, pop and bulk
update over a persistent, memory-mapped store.

LMDB reserves a fixed-size address range (the map size) when an
environment is opened, and refuses writes that do not fit. A Store hides
that limit: every write that fails with the engine's map-full signal is
retried after doubling the map size, up to Options.MaxGrowAttempts
attempts. Values may also pass through a transform pipeline, most commonly
gzip compression (see OpenCompressed).

# Usage

	store, err := lmdbm.Open("/var/lib/app/cache", &lmdbm.Options{Mode: lmdbm.ModeCreate})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put([]byte("key"), []byte("value")); err != nil {
		return err
	}
	for key, err := range store.Keys() {
		...
	}

For runnable examples, see the repository's examples directory.

# Concurrency

A Store is safe for concurrent use by multiple goroutines. Writers are
serialized by the engine; readers run concurrently, each against the
snapshot current when its read transaction began. An Iterator is not safe
for concurrent use.

Growing the map requires that no transaction of this process is active.
A growing write holds back new transactions and waits up to
Options.ResizeWait for active ones to finish. If the writing goroutine
itself holds an open Iterator the wait cannot succeed, and the write fails
with ErrTxnActive. Close releases any Iterator still open.

# Compatibility

Stores written with OpenCompressed use standard gzip at level 9 with
Latin-1 text keys, and are readable by other gzip-based lmdbm
implementations.
*/
package lmdbm
