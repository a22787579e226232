// Package recordstore implements the fixed-size record allocator described
// in spec §4.2: it appends fixed-size records to an mmapfile.File past a
// header offset, tracking a persisted count.
package recordstore

import (
	"encoding/binary"
	"fmt"

	"github.com/dario-ramos/bitprim-blockchain/mmapfile"
)

// countFieldSize is the width of the persisted record count: an 8-byte
// little-endian counter, per spec §4.2's "[count: u64][records...]" layout.
const countFieldSize = 8

// growthFactor is the amortized growth multiplier applied to the mapped
// region whenever an allocation would exceed it, per spec §4.2 ("≥1.5x").
const growthFactor = 1.5

// Allocator appends fixed-size records of size RecordSize to an mmapfile.File,
// starting at byte offset Offset within it.
type Allocator struct {
	file       *mmapfile.File
	offset     int
	recordSize int
	count      uint64
}

// Create initializes a fresh allocator region at offset within file: the
// count is zeroed and the mapped size is grown to at least fit the header.
func Create(file *mmapfile.File, offset, recordSize int) (*Allocator, error) {
	a := &Allocator{file: file, offset: offset, recordSize: recordSize}
	if file.Len() < offset+countFieldSize {
		if err := file.Resize(offset + countFieldSize); err != nil {
			return nil, fmt.Errorf("recordstore: create: %w", err)
		}
	}
	a.putCount(0)
	return a, nil
}

// Open attaches an allocator to an existing region, reading the persisted
// count.
func Open(file *mmapfile.File, offset, recordSize int) (*Allocator, error) {
	if file.Len() < offset+countFieldSize {
		return nil, fmt.Errorf("recordstore: open: region too small for header at offset %d", offset)
	}
	a := &Allocator{file: file, offset: offset, recordSize: recordSize}
	a.count = binary.LittleEndian.Uint64(file.Data()[offset : offset+countFieldSize])
	return a, nil
}

func (a *Allocator) putCount(n uint64) {
	binary.LittleEndian.PutUint64(a.file.Data()[a.offset:a.offset+countFieldSize], n)
	a.count = n
}

// Count returns the number of allocated records.
func (a *Allocator) Count() uint64 {
	return a.count
}

func (a *Allocator) recordsStart() int {
	return a.offset + countFieldSize
}

func (a *Allocator) requiredLen(count uint64) int {
	return a.recordsStart() + int(count)*a.recordSize
}

// Allocate returns the index of a newly appended, zeroed record, growing
// the underlying mapping by growthFactor if the new record would not fit.
func (a *Allocator) Allocate() (uint32, error) {
	idx := a.count
	need := a.requiredLen(idx + 1)
	if need > a.file.Len() {
		newLen := int(float64(a.file.Len()) * growthFactor)
		if newLen < need {
			newLen = need
		}
		if err := a.file.Resize(newLen); err != nil {
			return 0, fmt.Errorf("recordstore: allocate: grow: %w", err)
		}
	}
	rec := a.Get(uint32(idx))
	for i := range rec {
		rec[i] = 0
	}
	a.putCount(idx + 1)
	return uint32(idx), nil
}

// Get returns the raw bytes of record i. It is unchecked: callers must only
// pass indices returned by Allocate or read from the HTR's own chains, per
// spec §4.2 ("get(i) is unchecked").
func (a *Allocator) Get(i uint32) []byte {
	start := a.recordsStart() + int(i)*a.recordSize
	return a.file.Data()[start : start+a.recordSize]
}

// RecordSize returns the fixed size of each record.
func (a *Allocator) RecordSize() int {
	return a.recordSize
}

// Sync flushes the allocator's header and records to durable storage.
// Counts are persisted only here — a crash between Allocate and Sync may
// leave unreferenced slots, which is tolerable per spec §4.2 since the HTR
// will never reach them unless linked.
func (a *Allocator) Sync() error {
	return a.file.Sync()
}
