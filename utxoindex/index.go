// Package utxoindex implements the UTXO index described in spec §4.4: a
// disk-backed mapping from transaction outpoint to spending input point,
// built on top of htr's hash-table-on-records.
package utxoindex

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
	"github.com/dario-ramos/bitprim-blockchain/htr"
	"github.com/dario-ramos/bitprim-blockchain/mmapfile"
)

// Buckets is the fixed bucket count mandated by spec §4.4, matched to the
// original implementation's tuning for mainnet UTXO set cardinality.
const Buckets = 228110589

// valueSize is [spender_tx_hash:32][spender_input_index:4].
const valueSize = chainhash.HashSize + 4

// Index is the on-disk spend index: outpoint -> spending input point.
// A record is inserted only when an outpoint is spent, and its value is
// the spender; an unspent outpoint and one that never existed both have
// no record, so absence from Get does not tell those two apart.
type Index struct {
	file  *mmapfile.File
	table *htr.Table
}

// Create initializes a fresh UTXO index file.
func Create(path string) (*Index, error) {
	file, err := mmapfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("utxoindex: create: %w", err)
	}
	table, err := htr.Create(file, Buckets, valueSize)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("utxoindex: create table: %w", err)
	}
	return &Index{file: file, table: table}, nil
}

// Open attaches to an existing UTXO index file.
func Open(path string) (*Index, error) {
	file, err := mmapfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("utxoindex: open: %w", err)
	}
	table, err := htr.Open(file, Buckets, valueSize)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("utxoindex: open table: %w", err)
	}
	return &Index{file: file, table: table}, nil
}

// Close unmaps the underlying file.
func (idx *Index) Close() error {
	return idx.file.Close()
}

// digest computes the table key for outpoint, per spec §4.4:
// SHA256(tx_hash || little_endian(index)). This hash identity is a fixed
// on-disk format, not a swappable concern, so it always uses crypto/sha256
// directly rather than the package's blake3 auxiliary hash.
func digest(outpoint core.OutPoint) [32]byte {
	var buf [36]byte
	copy(buf[:32], outpoint.Hash[:])
	binary.LittleEndian.PutUint32(buf[32:], outpoint.Index)
	return sha256.Sum256(buf[:])
}

// Get reports whether outpoint has a recorded spend, returning the input
// point that spent it. The second return is false if outpoint is not
// present in the index at all.
func (idx *Index) Get(outpoint core.OutPoint) (core.InputPoint, bool) {
	v := idx.table.Get(digest(outpoint))
	if v == nil {
		return core.InputPoint{}, false
	}
	var ip core.InputPoint
	copy(ip.Hash[:], v[:chainhash.HashSize])
	ip.Index = binary.LittleEndian.Uint32(v[chainhash.HashSize:])
	return ip, true
}

// Store records that outpoint was spent by spender.
func (idx *Index) Store(outpoint core.OutPoint, spender core.InputPoint) error {
	key := digest(outpoint)
	return idx.table.Store(key, func(v []byte) {
		copy(v[:chainhash.HashSize], spender.Hash[:])
		binary.LittleEndian.PutUint32(v[chainhash.HashSize:], spender.Index)
	})
}

// Remove deletes outpoint's spend record, undoing a Store (used when a
// block disconnecting rolls back a spend during reorganization). It
// reports whether outpoint was present.
func (idx *Index) Remove(outpoint core.OutPoint) bool {
	return idx.table.Unlink(digest(outpoint))
}

// Sync flushes the index to durable storage.
func (idx *Index) Sync() error {
	return idx.table.Sync()
}

// Statinfo reports the index's bucket count and total allocated row count,
// matching spec §4.4's statinfo operation.
func (idx *Index) Statinfo() (buckets uint32, rows uint64) {
	return idx.table.Buckets(), idx.table.Rows()
}
