package kvstore

import (
	"errors"
	"fmt"

	"github.com/btcsuite/goleveldb/leveldb"
	ldberrors "github.com/btcsuite/goleveldb/leveldb/errors"
	"github.com/btcsuite/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get and KeyValueReader implementations when a
// key is absent.
var ErrNotFound = errors.New("kvstore: key not found")

// LevelStore is a KeyValueStore backed by a goleveldb database directory.
// It backs blockstore and txstore's sibling indexes (spec §4.6, §4.7).
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (creating if absent) a goleveldb database at dir.
func OpenLevelStore(dir string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", dir, err)
	}
	return &LevelStore{db: db}, nil
}

func (s *LevelStore) Has(key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, fmt.Errorf("kvstore: has: %w", err)
	}
	return ok, nil
}

func (s *LevelStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, ldberrors.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kvstore: get: %w", err)
	}
	return v, nil
}

func (s *LevelStore) Put(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("kvstore: put: %w", err)
	}
	return nil
}

func (s *LevelStore) Delete(key []byte) error {
	if err := s.db.Delete(key, nil); err != nil {
		return fmt.Errorf("kvstore: delete: %w", err)
	}
	return nil
}

func (s *LevelStore) DeleteRange(start, end []byte) error {
	it := s.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	defer it.Release()
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("kvstore: delete range scan: %w", err)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("kvstore: delete range write: %w", err)
	}
	return nil
}

func (s *LevelStore) NewIterator(prefix []byte) Iterator {
	var r *util.Range
	if prefix != nil {
		r = util.BytesPrefix(prefix)
	}
	return &levelIterator{it: s.db.NewIterator(r, nil)}
}

func (s *LevelStore) NewBatch() Batch {
	return &levelBatch{db: s.db, batch: new(leveldb.Batch)}
}

func (s *LevelStore) NewSnapshot() (Snapshot, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("kvstore: snapshot: %w", err)
	}
	return &levelSnapshot{snap: snap}, nil
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

type levelIterator struct {
	it iterator
}

// iterator narrows goleveldb's iterator.Iterator to the methods used here,
// letting levelSnapshot's iterator (a different concrete type) satisfy it too.
type iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

func (i *levelIterator) Next() bool    { return i.it.Next() }
func (i *levelIterator) Key() []byte   { return i.it.Key() }
func (i *levelIterator) Value() []byte { return i.it.Value() }
func (i *levelIterator) Err() error    { return i.it.Error() }
func (i *levelIterator) Close() error  { i.it.Release(); return nil }

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Put(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *levelBatch) DeleteRange(start, end []byte) error {
	return fmt.Errorf("kvstore: DeleteRange not supported on a batch")
}

func (b *levelBatch) Len() int {
	return b.batch.Len()
}

func (b *levelBatch) Write() error {
	if err := b.db.Write(b.batch, nil); err != nil {
		return fmt.Errorf("kvstore: batch write: %w", err)
	}
	return nil
}

func (b *levelBatch) Reset() {
	b.batch.Reset()
}

type levelSnapshot struct {
	snap *leveldb.Snapshot
}

func (s *levelSnapshot) Has(key []byte) (bool, error) {
	ok, err := s.snap.Has(key, nil)
	if err != nil {
		return false, fmt.Errorf("kvstore: snapshot has: %w", err)
	}
	return ok, nil
}

func (s *levelSnapshot) Get(key []byte) ([]byte, error) {
	v, err := s.snap.Get(key, nil)
	if err != nil {
		if errors.Is(err, ldberrors.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kvstore: snapshot get: %w", err)
	}
	return v, nil
}

func (s *levelSnapshot) NewIterator(prefix []byte) Iterator {
	var r *util.Range
	if prefix != nil {
		r = util.BytesPrefix(prefix)
	}
	return &levelIterator{it: s.snap.NewIterator(r, nil)}
}

func (s *levelSnapshot) Release() {
	s.snap.Release()
}
