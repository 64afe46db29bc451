// Package membackend implements the memory-backend file: the guest's RAM,
// exposed by the hypervisor as an ordinary file whose bytes are the
// concatenation of the guest's RAM regions, mapped read-only and presented
// as a flat, randomly readable byte array.
package membackend

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
)

// Backend owns one read-only mmap of a memory-backend file. The zero value
// is unmapped; use New.
type Backend struct {
	mu   sync.RWMutex
	file *os.File
	data []byte
	path string
}

// New returns an unmapped Backend.
func New() *Backend { return &Backend{} }

// Map unmaps any existing mapping, opens path, mmaps the whole file
// read-only, and advises the kernel that access will be random — the same
// sequence the teacher's UFFD memory-backend setup follows
// (unix.Mmap with PROT_READ, then unix.Madvise), adapted from
// MADV_HUGEPAGE (write-side, used for guest-RAM population) to
// MADV_RANDOM (read-side, appropriate for a file we scan and translate
// sparsely rather than sequentially).
func (b *Backend) Map(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data != nil {
		b.unmapLocked()
	}

	f, err := os.Open(path)
	if err != nil {
		return apperr.Wrap(apperr.NotConfigured, "open memory-backend file", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return apperr.Wrap(apperr.NotConfigured, "stat memory-backend file", err)
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return apperr.New(apperr.NotConfigured, "memory-backend file is empty")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return apperr.Wrap(apperr.NotConfigured, "mmap memory-backend file", err)
	}
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil {
		// Advisory only; a failure here does not make the mapping unusable.
		_ = err
	}

	b.file = f
	b.data = data
	b.path = path
	return nil
}

// Unmap releases the current mapping. After Unmap, every read method
// returns an error until Map is called again.
func (b *Backend) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unmapLocked()
}

func (b *Backend) unmapLocked() error {
	if b.data == nil {
		return nil
	}
	err := unix.Munmap(b.data)
	b.data = nil
	if b.file != nil {
		b.file.Close()
		b.file = nil
	}
	return err
}

// MappedSize returns the size of the current mapping, or 0 if unmapped.
func (b *Backend) MappedSize() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(len(b.data))
}

// Path returns the file path of the current mapping, or "" if unmapped.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

// ReadOffset returns size bytes starting at offset, clamped to the
// mapping's end. It satisfies address.OffsetReader.
func (b *Backend) ReadOffset(offset uint64, size int) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.data == nil {
		return nil, apperr.New(apperr.NotConfigured, "memory-backend file not mapped")
	}
	if size < 0 {
		return nil, apperr.New(apperr.OutOfRange, "negative read size")
	}
	end := offset + uint64(size)
	if end > uint64(len(b.data)) || end < offset {
		return nil, apperr.New(apperr.OutOfRange, "read past end of memory-backend mapping")
	}

	out := make([]byte, size)
	copy(out, b.data[offset:end])
	return out, nil
}

// DirectPointer returns a zero-copy slice view into the mapping at offset,
// valid only until the next Unmap. Callers that need the bytes to outlive
// the mapping must copy them.
func (b *Backend) DirectPointer(offset uint64, size int) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.data == nil {
		return nil, apperr.New(apperr.NotConfigured, "memory-backend file not mapped")
	}
	end := offset + uint64(size)
	if end > uint64(len(b.data)) || end < offset {
		return nil, apperr.New(apperr.OutOfRange, "direct pointer past end of memory-backend mapping")
	}
	return b.data[offset:end], nil
}
