// Package blockstore implements the block-side sibling index described in
// spec §4: persisted block headers addressable by height and by hash, plus
// the chain's last-known height. It sits atop kvstore.KeyValueStore, the
// same way the teacher's db package partitions a single store into
// logical buckets by key prefix.
package blockstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
	"github.com/dario-ramos/bitprim-blockchain/kvstore"
)

// bucket prefixes partition a single KeyValueStore into independent
// namespaces, matching the teacher's Bucket byte-prefix convention.
type bucket byte

const (
	bucketHeaderByHash  bucket = iota // hash -> encoded header + height
	bucketHashByHeight                // height -> hash
	bucketLastHeight                  // singleton -> height
)

var errNoLastHeight = errors.New("blockstore: no blocks stored yet")

func (b bucket) key(rest []byte) []byte {
	return append([]byte{byte(b)}, rest...)
}

func heightKey(height int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(height))
	return buf
}

// Store is the persisted block-header index.
type Store struct {
	kv kvstore.KeyValueStore
}

// New wraps kv as a block store.
func New(kv kvstore.KeyValueStore) *Store {
	return &Store{kv: kv}
}

// entry is the value stored under bucketHeaderByHash: header followed by
// its 4-byte big-endian height, so a hash lookup never needs a second read.
const entryHeightOffset = 80 // core.BlockHeader's fixed wire size

func encodeEntry(header *core.BlockHeader, height int32) ([]byte, error) {
	var headerBuf [entryHeightOffset]byte
	if err := writeHeader(headerBuf[:], header); err != nil {
		return nil, err
	}
	buf := make([]byte, entryHeightOffset+4)
	copy(buf, headerBuf[:])
	binary.BigEndian.PutUint32(buf[entryHeightOffset:], uint32(height))
	return buf, nil
}

func decodeEntry(buf []byte) (*core.BlockHeader, int32, error) {
	if len(buf) != entryHeightOffset+4 {
		return nil, 0, fmt.Errorf("blockstore: malformed header entry (%d bytes)", len(buf))
	}
	header, err := readHeader(buf[:entryHeightOffset])
	if err != nil {
		return nil, 0, err
	}
	height := int32(binary.BigEndian.Uint32(buf[entryHeightOffset:]))
	return header, height, nil
}

// Put persists header at height, indexed by both its hash and its height.
func (s *Store) Put(header *core.BlockHeader, height int32) error {
	hash := header.BlockHash()
	entry, err := encodeEntry(header, height)
	if err != nil {
		return fmt.Errorf("blockstore: put: %w", err)
	}

	batch := s.kv.NewBatch()
	if err := batch.Put(bucketHeaderByHash.key(hash[:]), entry); err != nil {
		return err
	}
	if err := batch.Put(bucketHashByHeight.key(heightKey(height)), hash[:]); err != nil {
		return err
	}
	if err := batch.Put([]byte{byte(bucketLastHeight)}, heightKey(height)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("blockstore: put: %w", err)
	}
	return nil
}

// Delete removes the header stored at height, used when rolling a block
// back during reorganization (spec §4.7).
func (s *Store) Delete(hash chainhash.Hash, height int32) error {
	batch := s.kv.NewBatch()
	if err := batch.Delete(bucketHeaderByHash.key(hash[:])); err != nil {
		return err
	}
	if err := batch.Delete(bucketHashByHeight.key(heightKey(height))); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("blockstore: delete: %w", err)
	}
	return nil
}

// HeaderByHash returns the header and height stored for hash.
func (s *Store) HeaderByHash(hash chainhash.Hash) (*core.BlockHeader, int32, error) {
	v, err := s.kv.Get(bucketHeaderByHash.key(hash[:]))
	if err != nil {
		return nil, 0, err
	}
	return decodeEntry(v)
}

// HeaderByHeight returns the header stored at height.
func (s *Store) HeaderByHeight(height int32) (*core.BlockHeader, error) {
	hash, err := s.kv.Get(bucketHashByHeight.key(heightKey(height)))
	if err != nil {
		return nil, err
	}
	var h chainhash.Hash
	copy(h[:], hash)
	header, _, err := s.HeaderByHash(h)
	return header, err
}

// HashAtHeight returns the hash of the block at height.
func (s *Store) HashAtHeight(height int32) (chainhash.Hash, error) {
	v, err := s.kv.Get(bucketHashByHeight.key(heightKey(height)))
	if err != nil {
		return chainhash.Hash{}, err
	}
	var h chainhash.Hash
	copy(h[:], v)
	return h, nil
}

// LastHeight returns the height of the most recently stored block.
func (s *Store) LastHeight() (int32, error) {
	v, err := s.kv.Get([]byte{byte(bucketLastHeight)})
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return 0, errNoLastHeight
		}
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(v)), nil
}

// SetLastHeight overrides the recorded last height. The organizer's
// disconnectTip calls it right after deleting the tip's entries, to lower
// the main chain tip by one.
func (s *Store) SetLastHeight(height int32) error {
	return s.kv.Put([]byte{byte(bucketLastHeight)}, heightKey(height))
}

func writeHeader(dst []byte, header *core.BlockHeader) error {
	if len(dst) != entryHeightOffset {
		return fmt.Errorf("blockstore: header buffer must be %d bytes", entryHeightOffset)
	}
	binary.LittleEndian.PutUint32(dst[0:4], uint32(header.Version))
	copy(dst[4:36], header.PrevBlock[:])
	copy(dst[36:68], header.MerkleRoot[:])
	binary.LittleEndian.PutUint32(dst[68:72], uint32(header.Timestamp))
	binary.LittleEndian.PutUint32(dst[72:76], header.Bits)
	binary.LittleEndian.PutUint32(dst[76:80], header.Nonce)
	return nil
}

func readHeader(src []byte) (*core.BlockHeader, error) {
	if len(src) != entryHeightOffset {
		return nil, fmt.Errorf("blockstore: header buffer must be %d bytes", entryHeightOffset)
	}
	header := &core.BlockHeader{
		Version:   int32(binary.LittleEndian.Uint32(src[0:4])),
		Timestamp: int64(binary.LittleEndian.Uint32(src[68:72])),
		Bits:      binary.LittleEndian.Uint32(src[72:76]),
		Nonce:     binary.LittleEndian.Uint32(src[76:80]),
	}
	copy(header.PrevBlock[:], src[4:36])
	copy(header.MerkleRoot[:], src[36:68])
	return header, nil
}
