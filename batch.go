// batch.go implements Batch for atomic multi-key writes.
package lmdbm

import "bytes"

// Batch holds a collection of writes to be applied atomically by
// Store.Write. Keys and values are copied, so you can modify them after
// calling Put/Delete.
//
// A Batch can be reused by calling Clear() after Write().
//
// Example:
//
//	b := lmdbm.NewBatch()
//	b.Put([]byte("key1"), []byte("value1"))
//	b.Put([]byte("key2"), []byte("value2"))
//	b.Delete([]byte("key3"))
//	err := store.Write(b)
//	b.Clear() // Reuse the batch
type Batch struct {
	ops  []batchOp
	puts int
	dels int
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// NewBatch creates a new empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put adds a key-value pair to the batch.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), value: bytes.Clone(value)})
	b.puts++
}

// Delete adds a deletion for the key to the batch. Deleting an absent key
// is not an error.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), del: true})
	b.dels++
}

// Clear resets the batch to empty, allowing it to be reused.
func (b *Batch) Clear() {
	clear(b.ops)
	b.ops = b.ops[:0]
	b.puts, b.dels = 0, 0
}

// Count returns the number of operations in the batch.
func (b *Batch) Count() int { return len(b.ops) }

// encode runs the batch through the store's pipeline, returning the engine
// operations and their total stored size.
func (b *Batch) encode(s *Store) ([]batchOp, int, error) {
	var out = make([]batchOp, len(b.ops))
	var size int
	for i, op := range b.ops {
		out[i] = batchOp{key: s.pipeline.PreKey(op.key), del: op.del}
		if !op.del {
			v, err := s.encode(op.value)
			if err != nil {
				return nil, 0, err
			}
			out[i].value = v
		}
		size += len(out[i].key) + len(out[i].value)
	}
	return out, size, nil
}
