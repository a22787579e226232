// Package htr implements the open-addressing hash-table-on-records
// described in spec §4.3: a fixed bucket array of record indices, chained
// through the intrusive next-links of allocator records.
package htr

import (
	"encoding/binary"
	"fmt"

	"github.com/dario-ramos/bitprim-blockchain/mmapfile"
	"github.com/dario-ramos/bitprim-blockchain/recordstore"
)

// Sentinel marks an empty bucket or the tail of a chain.
const Sentinel = 0xFFFFFFFF

// KeySize is the fixed digest width used as the table's key, per spec §4.3.
const KeySize = 32

const nextFieldSize = 4

// Table is a fixed-bucket-count, open-addressing hash table whose values
// live in fixed-size records allocated from a recordstore.Allocator. The
// bucket count B is fixed for the life of the file: there is no resize.
type Table struct {
	file      *mmapfile.File
	buckets   uint32
	valueSize int
	recordLen int
	alloc     *recordstore.Allocator
}

func headerLen(buckets uint32) int {
	return int(buckets) * 4
}

// Create initializes a fresh table with the given bucket count and value
// size at the start of file, zeroing every bucket to Sentinel.
func Create(file *mmapfile.File, buckets uint32, valueSize int) (*Table, error) {
	hdrLen := headerLen(buckets)
	if file.Len() < hdrLen {
		if err := file.Resize(hdrLen); err != nil {
			return nil, fmt.Errorf("htr: create: %w", err)
		}
	}
	data := file.Data()
	for i := 0; i < int(buckets); i++ {
		binary.LittleEndian.PutUint32(data[i*4:i*4+4], Sentinel)
	}

	recordLen := KeySize + nextFieldSize + valueSize
	alloc, err := recordstore.Create(file, hdrLen, recordLen)
	if err != nil {
		return nil, fmt.Errorf("htr: create allocator: %w", err)
	}

	return &Table{
		file:      file,
		buckets:   buckets,
		valueSize: valueSize,
		recordLen: recordLen,
		alloc:     alloc,
	}, nil
}

// Open attaches a Table to an existing file created with the same bucket
// count and value size.
func Open(file *mmapfile.File, buckets uint32, valueSize int) (*Table, error) {
	hdrLen := headerLen(buckets)
	recordLen := KeySize + nextFieldSize + valueSize
	alloc, err := recordstore.Open(file, hdrLen, recordLen)
	if err != nil {
		return nil, fmt.Errorf("htr: open allocator: %w", err)
	}
	return &Table{
		file:      file,
		buckets:   buckets,
		valueSize: valueSize,
		recordLen: recordLen,
		alloc:     alloc,
	}, nil
}

// Buckets returns the fixed bucket count.
func (t *Table) Buckets() uint32 {
	return t.buckets
}

// Rows returns the total number of allocated rows (including any unlinked,
// leaked ones — spec §4.3 never reclaims freed slots).
func (t *Table) Rows() uint64 {
	return t.alloc.Count()
}

func (t *Table) bucketOf(key [KeySize]byte) uint32 {
	var folded uint32
	for i := 0; i+4 <= KeySize; i += 4 {
		folded ^= binary.LittleEndian.Uint32(key[i : i+4])
	}
	return folded % t.buckets
}

func (t *Table) bucketSlot(b uint32) []byte {
	return t.file.Data()[b*4 : b*4+4]
}

func (t *Table) bucketHead(b uint32) uint32 {
	return binary.LittleEndian.Uint32(t.bucketSlot(b))
}

func (t *Table) setBucketHead(b, idx uint32) {
	binary.LittleEndian.PutUint32(t.bucketSlot(b), idx)
}

func recordKey(rec []byte) []byte {
	return rec[0:KeySize]
}

func recordNext(rec []byte) uint32 {
	return binary.LittleEndian.Uint32(rec[KeySize : KeySize+nextFieldSize])
}

func setRecordNext(rec []byte, next uint32) {
	binary.LittleEndian.PutUint32(rec[KeySize:KeySize+nextFieldSize], next)
}

func recordValue(rec []byte) []byte {
	return rec[KeySize+nextFieldSize:]
}

// Get walks the bucket chain for key and returns the value bytes of the
// first exact match, or nil if absent. The returned slice aliases the
// mapped file and is only valid until the next Resize (via Store or
// Allocate on this table).
func (t *Table) Get(key [KeySize]byte) []byte {
	b := t.bucketOf(key)
	idx := t.bucketHead(b)
	for idx != Sentinel {
		rec := t.alloc.Get(idx)
		if [KeySize]byte(recordKey(rec)) == key {
			return recordValue(rec)
		}
		idx = recordNext(rec)
	}
	return nil
}

// Store allocates a new record for key, threads it onto the head of its
// bucket's chain, and invokes writer on the value bytes. Store does not
// check for duplicates: per spec §4.3, callers must Unlink first if they
// require key uniqueness.
func (t *Table) Store(key [KeySize]byte, writer func(value []byte)) error {
	b := t.bucketOf(key)
	idx, err := t.alloc.Allocate()
	if err != nil {
		return fmt.Errorf("htr: store: %w", err)
	}
	rec := t.alloc.Get(idx)
	copy(recordKey(rec), key[:])
	setRecordNext(rec, t.bucketHead(b))
	writer(recordValue(rec))
	t.setBucketHead(b, idx)
	return nil
}

// Unlink removes the first record matching key from its bucket chain by
// re-threading its predecessor's next pointer. The freed slot itself is
// leaked, per spec §4.3 ("no free list"). Returns false if key was absent.
func (t *Table) Unlink(key [KeySize]byte) bool {
	b := t.bucketOf(key)
	idx := t.bucketHead(b)
	var prevRec []byte
	for idx != Sentinel {
		rec := t.alloc.Get(idx)
		if [KeySize]byte(recordKey(rec)) == key {
			next := recordNext(rec)
			if prevRec == nil {
				t.setBucketHead(b, next)
			} else {
				setRecordNext(prevRec, next)
			}
			return true
		}
		prevRec = rec
		idx = recordNext(rec)
	}
	return false
}

// Sync flushes the table's header and allocator region to durable storage.
func (t *Table) Sync() error {
	return t.alloc.Sync()
}
