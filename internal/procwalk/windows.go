package procwalk

import "errors"

// ErrNotImplemented is returned by Windows.EnumerateProcesses. Per spec.md
// §4.4: "Not required to be implemented in the initial port, but the
// abstraction boundary must accommodate it." Windows satisfies the Walker
// interface so callers can hold either OS's walker behind the same type;
// it walks no EPROCESS list, FindProcess reports not found and
// FindProcessesByName returns nil.
var ErrNotImplemented = errors.New("procwalk: windows process walker not implemented")

// WindowsOffsets names the EPROCESS/KPROCESS fields a future
// implementation would need: UniqueProcessId, ImageFileName,
// ActiveProcessLinks, DirectoryTableBase — the same shape
// original_source/include/platform/process_walker.h documents for the
// Windows variant.
type WindowsOffsets struct {
	UniqueProcessId    uint64
	ImageFileName      uint64
	ActiveProcessLinks uint64
	DirectoryTableBase uint64
}

// Windows is the interface-only Windows process walker. It satisfies
// Walker so the engine can select a walker by OS without a type switch at
// every call site.
type Windows struct {
	mem     MemReader
	offsets WindowsOffsets
}

// NewWindows returns a Windows walker. EnumerateProcesses returns
// ErrNotImplemented; the lookup methods find nothing.
func NewWindows(mem MemReader, offsets WindowsOffsets) *Windows {
	return &Windows{mem: mem, offsets: offsets}
}

func (w *Windows) EnumerateProcesses() ([]ProcessRecord, error) {
	return nil, ErrNotImplemented
}

func (w *Windows) FindProcess(pid int) (ProcessRecord, bool) {
	return ProcessRecord{}, false
}

func (w *Windows) FindProcessesByName(substring string) []ProcessRecord {
	return nil
}
