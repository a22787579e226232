// Package mmapfile provides a fixed-path, growable memory-mapped file
// region (spec §4.1). It is the leaf storage primitive underneath
// recordstore and htr: everything above it works against the contiguous
// byte slice returned by Data, never against the *os.File directly.
package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a memory-mapped, growable file region. All callers of Resize or
// Sync must be the sole writer strand; concurrent readers must not hold a
// slice returned by Data across a Resize call, since the underlying mapping
// is replaced.
type File struct {
	path string
	fd   *os.File
	data []byte
}

// Open maps the file at path read/write, creating it if it does not exist.
// A freshly created file starts at size 0; callers that need a header
// region present must Resize immediately after Open.
func Open(path string) (*File, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}

	f := &File{path: path, fd: fd}
	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}
	if info.Size() > 0 {
		if err := f.mmap(int(info.Size())); err != nil {
			fd.Close()
			return nil, err
		}
	}
	return f, nil
}

// mmap replaces the current mapping (if any) with a fresh one covering
// [0, size). Callers must already hold the write strand.
func (f *File) mmap(size int) error {
	if f.data != nil {
		if err := unix.Munmap(f.data); err != nil {
			return fmt.Errorf("mmapfile: munmap %s: %w", f.path, err)
		}
		f.data = nil
	}
	if size == 0 {
		return nil
	}
	data, err := unix.Mmap(int(f.fd.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmapfile: mmap %s (%d bytes): %w", f.path, size, err)
	}
	f.data = data
	return nil
}

// Resize grows (or shrinks) the backing file to newLen bytes and remaps it,
// preserving existing bytes. Growing is the only direction the allocator
// and HTR ever exercise; a fatal error here is unrecoverable, matching
// spec §4.1 ("Failure to map or extend is fatal").
func (f *File) Resize(newLen int) error {
	if err := f.fd.Truncate(int64(newLen)); err != nil {
		return fmt.Errorf("mmapfile: truncate %s to %d: %w", f.path, newLen, err)
	}
	return f.mmap(newLen)
}

// Len returns the current mapped length in bytes.
func (f *File) Len() int {
	return len(f.data)
}

// Data returns the mapped byte slice. The slice is valid until the next
// call to Resize, which replaces the mapping outright.
func (f *File) Data() []byte {
	return f.data
}

// Sync flushes dirty pages to durable storage.
func (f *File) Sync() error {
	if f.data == nil {
		return nil
	}
	if err := unix.Msync(f.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("mmapfile: msync %s: %w", f.path, err)
	}
	return f.fd.Sync()
}

// Close unmaps and closes the underlying file.
func (f *File) Close() error {
	if f.data != nil {
		if err := unix.Munmap(f.data); err != nil {
			return err
		}
		f.data = nil
	}
	return f.fd.Close()
}
