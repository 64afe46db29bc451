// Package address implements the typed-address model used throughout the
// introspection engine: a small tagged union over the four spaces a byte of
// guest state can be addressed in, a string-expression parser for it, and a
// unified read path that picks the cheapest reader able to service a given
// address.
package address

import "fmt"

// Space identifies which address space a TypedAddress value lives in.
type Space int

const (
	// None is the zero value; a TypedAddress in this space is not readable.
	None Space = iota
	// SharedFileOffset addresses a byte offset into the memory-backend file.
	SharedFileOffset
	// GuestPhysical addresses guest physical memory (a GPA).
	GuestPhysical
	// GuestVirtual addresses guest virtual memory (a GVA), optionally
	// qualified by the PID whose address space it should be resolved in.
	GuestVirtual
	// Crunched addresses a process's gap-free, linearly indexed catalog of
	// mapped virtual-memory regions (see the Crunched address space in the
	// glossary). Resolving it is an external contract — see CrunchedReader.
	Crunched
)

func (s Space) String() string {
	switch s {
	case SharedFileOffset:
		return "shared-file-offset"
	case GuestPhysical:
		return "guest-physical"
	case GuestVirtual:
		return "guest-virtual"
	case Crunched:
		return "crunched"
	default:
		return "none"
	}
}

// Prefix returns the single-letter address-space prefix used in the
// expression syntax ("s", "p", "v", "c"), or "" for None.
func (s Space) Prefix() string {
	switch s {
	case SharedFileOffset:
		return "s"
	case GuestPhysical:
		return "p"
	case GuestVirtual:
		return "v"
	case Crunched:
		return "c"
	default:
		return ""
	}
}

// TypedAddress is a tagged union over the four address spaces. The zero
// value (Space == None) is not readable.
type TypedAddress struct {
	Value uint64
	Space Space
	// PID optionally qualifies a GuestVirtual address with the owning
	// process. Nil means "current" or "unspecified" context.
	PID *int
}

// Readable reports whether a is in a space that can be read at all. None
// addresses are never readable — they exist only as a parse failure marker
// or an explicit "no address" sentinel.
func (a TypedAddress) Readable() bool { return a.Space != None }

// SharedFileOffsetAddr builds a TypedAddress in the SharedFileOffset space.
func SharedFileOffsetAddr(v uint64) TypedAddress { return TypedAddress{Value: v, Space: SharedFileOffset} }

// GuestPhysicalAddr builds a TypedAddress in the GuestPhysical space.
func GuestPhysicalAddr(v uint64) TypedAddress { return TypedAddress{Value: v, Space: GuestPhysical} }

// GuestVirtualAddr builds a TypedAddress in the GuestVirtual space, with an
// optional owning PID qualifier.
func GuestVirtualAddr(v uint64, pid *int) TypedAddress {
	return TypedAddress{Value: v, Space: GuestVirtual, PID: pid}
}

// CrunchedAddr builds a TypedAddress in the Crunched space.
func CrunchedAddr(v uint64) TypedAddress { return TypedAddress{Value: v, Space: Crunched} }

// String renders a in its prefixed expression form, e.g. "p:0x4000" or
// "v:1234:0x7fff0000".
func (a TypedAddress) String() string {
	if !a.Readable() {
		return fmt.Sprintf("none:0x%x", a.Value)
	}
	if a.Space == GuestVirtual && a.PID != nil {
		return fmt.Sprintf("v:%d:0x%x", *a.PID, a.Value)
	}
	return fmt.Sprintf("%s:0x%x", a.Space.Prefix(), a.Value)
}
