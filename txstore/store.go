// Package txstore implements the transaction-side sibling index described
// in spec §4: transactions addressable by hash, each carrying the height
// and in-block index of its confirming block. The height is what the
// organizer's prevout lookup reports for coinbase-maturity checks;
// rollback reads blocks from the organizer's recent-block cache instead.
package txstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
	"github.com/dario-ramos/bitprim-blockchain/kvstore"
)

type bucket byte

const bucketTxByHash bucket = 0

func (b bucket) key(rest []byte) []byte {
	return append([]byte{byte(b)}, rest...)
}

// Position locates a confirmed transaction within the chain.
type Position struct {
	Height int32
	Index  uint32 // index of the transaction within its block
}

// Store is the persisted transaction index.
type Store struct {
	kv kvstore.KeyValueStore
}

// New wraps kv as a transaction store.
func New(kv kvstore.KeyValueStore) *Store {
	return &Store{kv: kv}
}

// Put records tx at pos, confirmed by the block stored in blockstore.
func (s *Store) Put(tx *core.MsgTx, pos Position) error {
	var buf bytes.Buffer
	var posBuf [8]byte
	binary.LittleEndian.PutUint32(posBuf[0:4], uint32(pos.Height))
	binary.LittleEndian.PutUint32(posBuf[4:8], pos.Index)
	buf.Write(posBuf[:])
	if err := tx.Serialize(&buf); err != nil {
		return fmt.Errorf("txstore: put: serialize: %w", err)
	}

	hash := tx.TxHash()
	if err := s.kv.Put(bucketTxByHash.key(hash[:]), buf.Bytes()); err != nil {
		return fmt.Errorf("txstore: put: %w", err)
	}
	return nil
}

// Delete removes tx's record, used when a block disconnects during
// reorganization (spec §4.7).
func (s *Store) Delete(hash chainhash.Hash) error {
	if err := s.kv.Delete(bucketTxByHash.key(hash[:])); err != nil {
		return fmt.Errorf("txstore: delete: %w", err)
	}
	return nil
}

// Get returns the transaction and its confirming position.
func (s *Store) Get(hash chainhash.Hash) (*core.MsgTx, Position, error) {
	v, err := s.kv.Get(bucketTxByHash.key(hash[:]))
	if err != nil {
		return nil, Position{}, err
	}
	if len(v) < 8 {
		return nil, Position{}, fmt.Errorf("txstore: malformed entry for %s", hash)
	}
	pos := Position{
		Height: int32(binary.LittleEndian.Uint32(v[0:4])),
		Index:  binary.LittleEndian.Uint32(v[4:8]),
	}
	tx := new(core.MsgTx)
	if err := tx.Deserialize(bytes.NewReader(v[8:])); err != nil {
		return nil, Position{}, fmt.Errorf("txstore: deserialize %s: %w", hash, err)
	}
	return tx, pos, nil
}

// Position returns just the confirming position for hash, without paying
// the cost of deserializing the transaction body.
func (s *Store) Position(hash chainhash.Hash) (Position, error) {
	v, err := s.kv.Get(bucketTxByHash.key(hash[:]))
	if err != nil {
		return Position{}, err
	}
	if len(v) < 8 {
		return Position{}, fmt.Errorf("txstore: malformed entry for %s", hash)
	}
	return Position{
		Height: int32(binary.LittleEndian.Uint32(v[0:4])),
		Index:  binary.LittleEndian.Uint32(v[4:8]),
	}, nil
}

// Has reports whether hash has a confirmed transaction recorded.
func (s *Store) Has(hash chainhash.Hash) (bool, error) {
	return s.kv.Has(bucketTxByHash.key(hash[:]))
}
