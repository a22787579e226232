// Package kvstore defines the key-value storage abstraction used by
// blockstore and txstore, and a concrete implementation backed by
// goleveldb. Any store that implements KeyValueStore can sit underneath
// those sibling indexes without changing their code.
package kvstore

import "io"

// KeyValueReader exposes a read-only interface to the store.
type KeyValueReader interface {
	// Has reports whether key exists.
	Has(key []byte) (bool, error)
	// Get returns the value for key, or ErrNotFound if absent.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter exposes a write-only interface to the store.
type KeyValueWriter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// KeyValueRangeDeleter exposes range deletion, start inclusive, end exclusive.
type KeyValueRangeDeleter interface {
	DeleteRange(start, end []byte) error
}

// Batch is a write-only staging area: changes accumulate in memory and
// commit atomically on Write. A Batch must not be used concurrently.
type Batch interface {
	KeyValueWriter
	KeyValueRangeDeleter
	// Len returns the number of staged operations.
	Len() int
	// Write flushes the staged operations to the underlying store.
	Write() error
	// Reset discards all staged operations.
	Reset()
}

// Batcher produces Batch instances.
type Batcher interface {
	NewBatch() Batch
}

// Iterator walks a key range in ascending key order. Callers must Close it.
type Iterator interface {
	io.Closer
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
}

// Iterable produces iterators over a key prefix.
type Iterable interface {
	// NewIterator iterates keys with the given prefix; a nil prefix
	// iterates the entire keyspace.
	NewIterator(prefix []byte) Iterator
}

// Snapshot is a read-only, point-in-time view of the store.
type Snapshot interface {
	KeyValueReader
	Iterable
	Release()
}

// Snapshotter produces a consistent read-only Snapshot.
type Snapshotter interface {
	NewSnapshot() (Snapshot, error)
}

// KeyValueStore is the full storage surface used by blockstore and txstore.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	KeyValueRangeDeleter
	Batcher
	Iterable
	Snapshotter
	io.Closer
}
