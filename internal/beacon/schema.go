package beacon

import (
	"bytes"
	"encoding/binary"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
)

// These are the category-page payload schemas spec.md §6 calls out by
// name: "Category-page payload schemas (process-entry, section-entry,
// pid-list page) are fixed-size records whose on-wire sizes are part of
// the contract and MUST NOT change without a protocol-version bump."
// internal/beacon/writer builds pages out of these; internal/beacon/scanner
// decodes them back. Living here, rather than in either of those packages,
// is what lets both depend on the same wire shape without one depending on
// the other.

// PIDEntry is one row of a PID-list page: a snapshot of one process's
// identity, nothing more (spec.md §4.5's "PID list" category: "Snapshot of
// all PIDs each cycle").
type PIDEntry struct {
	PID       uint32
	ParentPID uint32
}

const pidEntrySize = 8

// PIDListPayload is the decoded body of a ClassPIDList page: one
// generation's worth of PID snapshots.
type PIDListPayload struct {
	Generation uint32
	Entries    []PIDEntry
}

// MaxPIDEntriesPerPage bounds how many PIDEntry records fit in one page's
// payload area (PageSize - HeaderSize - footer, minus the generation and
// count fields).
const MaxPIDEntriesPerPage = (PageSize - HeaderSize - 4 - 8) / pidEntrySize

// EncodePIDListPayload packs generation and entries into a page payload.
// It returns an error if entries would overflow a single page.
func EncodePIDListPayload(generation uint32, entries []PIDEntry) ([]byte, error) {
	if len(entries) > MaxPIDEntriesPerPage {
		return nil, apperr.New(apperr.Malformed, "pid-list page: too many entries for one page")
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, generation)
	binary.Write(buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		binary.Write(buf, binary.LittleEndian, e)
	}
	return buf.Bytes(), nil
}

// DecodePIDListPayload is the inverse of EncodePIDListPayload.
func DecodePIDListPayload(payload []byte) (PIDListPayload, error) {
	r := bytes.NewReader(payload)
	var p PIDListPayload
	if err := binary.Read(r, binary.LittleEndian, &p.Generation); err != nil {
		return PIDListPayload{}, apperr.Wrap(apperr.Malformed, "decode pid-list generation", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return PIDListPayload{}, apperr.Wrap(apperr.Malformed, "decode pid-list count", err)
	}
	if count > MaxPIDEntriesPerPage {
		return PIDListPayload{}, apperr.New(apperr.Malformed, "pid-list count exceeds page capacity")
	}
	p.Entries = make([]PIDEntry, count)
	for i := range p.Entries {
		if err := binary.Read(r, binary.LittleEndian, &p.Entries[i]); err != nil {
			return PIDListPayload{}, apperr.Wrap(apperr.Malformed, "decode pid-list entry", err)
		}
	}
	return p, nil
}

// SectionEntry is one mapped virtual-memory region of a process, the
// on-wire form of both the Round-robin category's "memory sections" detail
// and the MemoryMap class's crunched-catalog rows.
type SectionEntry struct {
	StartGVA uint64
	EndGVA   uint64
	Flags    uint32
	_        uint32 // padding to keep the record 8-byte aligned on wire
}

const sectionEntrySize = 24

// ProcessEntry is the fixed-size header of a process-detail page (the
// Round-robin and Camera categories): everything ProcessRecord carries,
// followed on the wire by SectionCount SectionEntry rows.
type ProcessEntry struct {
	PID           uint32
	ParentPID     uint32
	Name          [16]byte
	TaskStructAddr uint64
	MMStructAddr   uint64
	PageTableBase  uint64
	ThreadCount    uint32
	SectionCount   uint32
	VirtualSize    uint64
}

const processEntrySize = 4 + 4 + 16 + 8 + 8 + 8 + 4 + 4 + 8

// ProcessDetailPayload is the decoded body of a ClassProcessDetail or
// ClassCamera page.
type ProcessDetailPayload struct {
	Entry    ProcessEntry
	Sections []SectionEntry
}

// MaxSectionsPerPage bounds how many SectionEntry rows fit after a
// ProcessEntry header in one page's payload area.
const MaxSectionsPerPage = (PageSize - HeaderSize - 4 - processEntrySize) / sectionEntrySize

// EncodeProcessDetailPayload packs a ProcessEntry and its sections into a
// page payload, per spec.md §4.5's Round-robin and Camera categories.
func EncodeProcessDetailPayload(entry ProcessEntry, sections []SectionEntry) ([]byte, error) {
	if len(sections) > MaxSectionsPerPage {
		return nil, apperr.New(apperr.Malformed, "process-detail page: too many sections for one page")
	}
	entry.SectionCount = uint32(len(sections))
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, entry)
	for _, s := range sections {
		binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes(), nil
}

// DecodeProcessDetailPayload is the inverse of EncodeProcessDetailPayload.
func DecodeProcessDetailPayload(payload []byte) (ProcessDetailPayload, error) {
	r := bytes.NewReader(payload)
	var p ProcessDetailPayload
	if err := binary.Read(r, binary.LittleEndian, &p.Entry); err != nil {
		return ProcessDetailPayload{}, apperr.Wrap(apperr.Malformed, "decode process-entry", err)
	}
	if p.Entry.SectionCount > MaxSectionsPerPage {
		return ProcessDetailPayload{}, apperr.New(apperr.Malformed, "process-entry section count exceeds page capacity")
	}
	p.Sections = make([]SectionEntry, p.Entry.SectionCount)
	for i := range p.Sections {
		if err := binary.Read(r, binary.LittleEndian, &p.Sections[i]); err != nil {
			return ProcessDetailPayload{}, apperr.Wrap(apperr.Malformed, "decode section-entry", err)
		}
	}
	return p, nil
}

// NameString returns e.Name as a Go string, truncated at the first NUL
// byte (process names are at most 16 bytes per spec.md §3's ProcessRecord).
func (e ProcessEntry) NameString() string {
	n := bytes.IndexByte(e.Name[:], 0)
	if n < 0 {
		n = len(e.Name)
	}
	return string(e.Name[:n])
}

// NewProcessEntry builds a ProcessEntry from the fields a process walker
// or companion would have on hand, truncating Name to fit the fixed
// 16-byte wire field.
func NewProcessEntry(pid, parentPID int, name string, taskStructAddr, mmStructAddr, pageTableBase uint64, threadCount int, virtualSize uint64) ProcessEntry {
	var nameBuf [16]byte
	copy(nameBuf[:], name)
	return ProcessEntry{
		PID:            uint32(pid),
		ParentPID:      uint32(parentPID),
		Name:           nameBuf,
		TaskStructAddr: taskStructAddr,
		MMStructAddr:   mmStructAddr,
		PageTableBase:  pageTableBase,
		ThreadCount:    uint32(threadCount),
		VirtualSize:    virtualSize,
	}
}

// MemoryMapPayload is the decoded body of a ClassMemoryMap page: the
// crunched catalog's on-wire form, a gap-free run of SectionEntry rows for
// one process (spec.md glossary: "Crunched address space").
type MemoryMapPayload struct {
	PID      uint32
	Sections []SectionEntry
}

// MaxMemoryMapSectionsPerPage bounds how many SectionEntry rows fit after
// the PID field in one page's payload area.
const MaxMemoryMapSectionsPerPage = (PageSize - HeaderSize - 4 - 8) / sectionEntrySize

// EncodeMemoryMapPayload packs pid and sections into a page payload.
func EncodeMemoryMapPayload(pid uint32, sections []SectionEntry) ([]byte, error) {
	if len(sections) > MaxMemoryMapSectionsPerPage {
		return nil, apperr.New(apperr.Malformed, "memory-map page: too many sections for one page")
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, pid)
	binary.Write(buf, binary.LittleEndian, uint32(len(sections)))
	for _, s := range sections {
		binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes(), nil
}

// DecodeMemoryMapPayload is the inverse of EncodeMemoryMapPayload.
func DecodeMemoryMapPayload(payload []byte) (MemoryMapPayload, error) {
	r := bytes.NewReader(payload)
	var p MemoryMapPayload
	if err := binary.Read(r, binary.LittleEndian, &p.PID); err != nil {
		return MemoryMapPayload{}, apperr.Wrap(apperr.Malformed, "decode memory-map pid", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return MemoryMapPayload{}, apperr.Wrap(apperr.Malformed, "decode memory-map count", err)
	}
	if count > MaxMemoryMapSectionsPerPage {
		return MemoryMapPayload{}, apperr.New(apperr.Malformed, "memory-map section count exceeds page capacity")
	}
	p.Sections = make([]SectionEntry, count)
	for i := range p.Sections {
		if err := binary.Read(r, binary.LittleEndian, &p.Sections[i]); err != nil {
			return MemoryMapPayload{}, apperr.Wrap(apperr.Malformed, "decode memory-map section", err)
		}
	}
	return p, nil
}
