package address

import (
	"context"
	"errors"
)

// ErrCrunchedUnsupported is returned by the default Fallback when no
// CrunchedReader has been wired in. The Crunched space is specified as an
// external contract (see the glossary entry); engines that do not implement
// a process's linear VMA catalog can still satisfy every other space.
var ErrCrunchedUnsupported = errors.New("address: crunched space has no reader configured")

// ErrUnmapped is returned when an address translates to nothing in any
// backing store reachable by the fallback chain.
var ErrUnmapped = errors.New("address: unmapped")

// OffsetReader services SharedFileOffset reads directly against the
// memory-backend file.
type OffsetReader interface {
	ReadOffset(offset uint64, size int) ([]byte, error)
	MappedSize() uint64
}

// PhysicalReader services GuestPhysical reads once a file offset is known.
type PhysicalReader interface {
	Read(gpa uint64, size int) ([]byte, error)
}

// GPATranslator converts a guest physical address to a memory-backend file
// offset, the way the region mapper does.
type GPATranslator interface {
	TranslateGPAToFileOffset(gpa uint64) int64
}

// MonitorReader is the read path of last resort: asking the hypervisor
// monitor to read physical memory on our behalf, for addresses the local
// memory-backend file cannot service (e.g. device memory, or a region not
// yet discovered).
type MonitorReader interface {
	ReadPhysical(ctx context.Context, gpa uint64, size int) ([]byte, error)
}

// CrunchedReader resolves a process's gap-free linear VMA catalog. It is an
// external contract: most engines will not wire one in, and Fallback
// reports ErrCrunchedUnsupported for Crunched addresses when absent.
type CrunchedReader interface {
	ReadCrunched(ctx context.Context, addr TypedAddress, size int) ([]byte, error)
}

// Fallback implements spec.md's unified read path: it picks the cheapest
// reader able to service a given TypedAddress, escalating through
// increasingly expensive backends only as each one proves unable to help.
// Any field may be nil; a nil reader is simply skipped (or, for the
// terminal reader in a chain, turns into an error).
type Fallback struct {
	Offset   OffsetReader
	Physical PhysicalReader
	Region   GPATranslator
	Monitor  MonitorReader
	Crunched CrunchedReader
}

// ReadWithFallback reads size bytes starting at addr, trying the cheapest
// capable backend first:
//
//  1. Crunched space (or GuestVirtual qualified by a PID, which is resolved
//     through the same external contract) goes straight to CrunchedReader.
//  2. SharedFileOffset within the backend's mapped size reads directly off
//     the memory-backend file.
//  3. A GuestPhysical address is read from the memory-backend file via the
//     region mapper; on failure (the GPA isn't in any known region, or the
//     file read errors) the request escalates to the monitor client. A
//     SharedFileOffset that overruns the mapped size, or arrives with no
//     Offset reader, is not converted to a GPA and returns ErrUnmapped.
func (f *Fallback) ReadWithFallback(ctx context.Context, addr TypedAddress, size int) ([]byte, error) {
	if !addr.Readable() {
		return nil, ErrUnmapped
	}

	if addr.Space == Crunched || (addr.Space == GuestVirtual && addr.PID != nil) {
		if f.Crunched == nil {
			return nil, ErrCrunchedUnsupported
		}
		return f.Crunched.ReadCrunched(ctx, addr, size)
	}

	if addr.Space == SharedFileOffset && f.Offset != nil && addr.Value+uint64(size) <= f.Offset.MappedSize() {
		return f.Offset.ReadOffset(addr.Value, size)
	}

	gpa, ok := f.toGuestPhysical(addr)
	if !ok {
		return nil, ErrUnmapped
	}

	if f.Physical != nil && f.Region != nil {
		if offset := f.Region.TranslateGPAToFileOffset(gpa); offset >= 0 {
			if data, err := f.Physical.Read(gpa, size); err == nil {
				return data, nil
			}
		}
	}

	if f.Monitor != nil {
		return f.Monitor.ReadPhysical(ctx, gpa, size)
	}

	return nil, ErrUnmapped
}

// toGuestPhysical reduces a GuestPhysical address to a guest physical
// address. SharedFileOffset has no offset-to-GPA reduction here and is
// rejected. GuestVirtual without a PID has no well-defined
// reduction here (the caller is expected to have resolved it via a page
// walker before reaching the fallback chain), so it is rejected.
func (f *Fallback) toGuestPhysical(addr TypedAddress) (uint64, bool) {
	switch addr.Space {
	case GuestPhysical:
		return addr.Value, true
	case SharedFileOffset:
		if f.Region == nil {
			return 0, false
		}
		// SharedFileOffset reads that overran the mapped window, or that
		// were routed here because no Offset reader was configured, still
		// need a GPA. The region mapper is keyed by GPA -> offset, so an
		// offset -> GPA reduction isn't available through GPATranslator;
		// without it we cannot proceed past the direct-read path above.
		return 0, false
	default:
		return 0, false
	}
}
