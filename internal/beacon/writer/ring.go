// Package writer implements the guest-side half of the beacon protocol: a
// companion process allocates a page-aligned region of its own memory,
// partitions it into fixed-size category rings, and publishes process
// observations into it using the tear-resistant page write protocol
// (spec.md §4.5). The host never talks to the companion directly; it reads
// these pages back out of the memory-backend file via internal/beacon/scanner.
package writer

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jamiefaye/haywire-sub001/internal/beacon"
)

// Category names the four canonical beacon categories, each an independent
// ring of fixed-size pages with its own write index.
type Category int

const (
	CategoryMaster Category = iota
	CategoryPIDList
	CategoryRoundRobin
	CategoryCamera
	categoryCount
)

func (c Category) String() string {
	switch c {
	case CategoryMaster:
		return "master"
	case CategoryPIDList:
		return "pid-list"
	case CategoryRoundRobin:
		return "round-robin"
	case CategoryCamera:
		return "camera"
	default:
		return "unknown"
	}
}

func (c Category) defaultClass() beacon.Class {
	switch c {
	case CategoryMaster:
		return beacon.ClassMaster
	case CategoryPIDList:
		return beacon.ClassPIDList
	case CategoryRoundRobin:
		return beacon.ClassProcessDetail
	case CategoryCamera:
		return beacon.ClassCamera
	default:
		return beacon.ClassReserved
	}
}

// ring tracks one category's slice of the companion's allocation and its
// independent write cursor.
type ring struct {
	baseOffset int // page offset from the start of the allocation
	pageCount  int
	writeIndex uint32
	sequence   uint32
}

// Writer owns a page-aligned anonymous mapping representing the companion's
// publication region and the per-category ring state needed to write into
// it. There is exactly one Writer per companion session; it is not safe for
// concurrent writers (spec.md §5: "single writer per session, per
// category"), though its pages may be read concurrently and lock-free by
// any number of host scanners.
type Writer struct {
	mem       []byte
	sessionID uint32
	rings     [categoryCount]ring
	totalPages int
}

// Layout describes how many pages to reserve for each category, in the
// order the categories are laid out in the allocation. The discovery page
// itself is page 0 of Master and is not counted separately.
type Layout struct {
	MasterPages     int
	PIDListPages    int
	RoundRobinPages int
	CameraPages     int
}

// New allocates a page-aligned anonymous region sized to hold layout's
// categories and wires up each category's ring bookkeeping. The mapping is
// anonymous and private: the companion, not any file, owns this memory, so
// the host can only reach it once the hypervisor's memory backend exposes
// the guest physical pages backing it.
func New(sessionID uint32, layout Layout) (*Writer, error) {
	pageCounts := [categoryCount]int{
		CategoryMaster:     layout.MasterPages,
		CategoryPIDList:    layout.PIDListPages,
		CategoryRoundRobin: layout.RoundRobinPages,
		CategoryCamera:     layout.CameraPages,
	}
	total := 0
	for _, n := range pageCounts {
		if n <= 0 {
			return nil, fmt.Errorf("writer: every category needs at least one page")
		}
		total += n
	}

	mem, err := unix.Mmap(-1, 0, total*beacon.PageSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("writer: mmap companion region: %w", err)
	}

	w := &Writer{mem: mem, sessionID: sessionID, totalPages: total}
	offset := 0
	for cat := Category(0); cat < categoryCount; cat++ {
		w.rings[cat] = ring{baseOffset: offset, pageCount: pageCounts[cat]}
		offset += pageCounts[cat]
	}
	return w, nil
}

// Close unmaps the companion's region. The writer must not be used again
// afterward.
func (w *Writer) Close() error {
	if w.mem == nil {
		return nil
	}
	err := unix.Munmap(w.mem)
	w.mem = nil
	return err
}

// Base returns the virtual address, in the companion process's own address
// space, of the start of the mapping.
func (w *Writer) Base() uintptr {
	if len(w.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&w.mem[0]))
}

// TotalPages is the size of the whole companion allocation, in pages.
func (w *Writer) TotalPages() int { return w.totalPages }

// SessionID returns the session id every page this writer produces carries.
func (w *Writer) SessionID() uint32 { return w.sessionID }

// WritePage publishes payload as the next page in category's ring,
// overwriting the oldest page once the ring wraps. It implements spec.md
// §4.5's five-step tear-resistant protocol: write the header with
// version_top, write the payload, emit a full memory barrier, then write
// version_bottom. payload must fit within PageSize-HeaderSize-4 bytes (the
// last 4 bytes of the page are the version_bottom footer).
func (w *Writer) WritePage(category Category, payload []byte) error {
	r := &w.rings[category]
	maxPayload := beacon.PageSize - beacon.HeaderSize - 4
	if len(payload) > maxPayload {
		return fmt.Errorf("writer: payload of %d bytes exceeds max %d", len(payload), maxPayload)
	}

	pageIndex := r.writeIndex % uint32(r.pageCount)
	generation := r.sequence / uint32(r.pageCount)
	version := generation*10000 + pageIndex

	buf := w.pageBuf(r.baseOffset + int(pageIndex))

	h := beacon.Header{
		Magic1:          beacon.Magic1,
		Magic2:          beacon.Magic2,
		SessionID:       w.sessionID,
		BeaconClass:     uint32(category.defaultClass()),
		PageIndex:       pageIndex,
		TotalPages:      uint32(r.pageCount),
		ProtocolVersion: beacon.ProtocolVersion,
		VersionTop:      version,
	}
	copy(buf, beacon.MarshalHeader(h))
	copy(buf[beacon.HeaderSize:], payload)
	// Clear any stale payload bytes beyond what was written this round.
	for i := beacon.HeaderSize + len(payload); i < beacon.VersionBottomOffset; i++ {
		buf[i] = 0
	}

	// Full memory barrier: readers must observe the payload before they
	// observe version_bottom. An atomic store on the footer word gives the
	// release side of that barrier; WritePage's caller never has two
	// writers racing the same ring, so this is the only ordering that
	// matters here.
	footer := (*uint32)(unsafe.Pointer(&buf[beacon.VersionBottomOffset]))
	atomic.StoreUint32(footer, version)

	r.writeIndex++
	r.sequence++
	return nil
}

func (w *Writer) pageBuf(pageOffset int) []byte {
	start := pageOffset * beacon.PageSize
	return w.mem[start : start+beacon.PageSize]
}

// WriteIndex reports category's current ring cursor, the value the
// discovery page's directory entry publishes for that category.
func (w *Writer) WriteIndex(category Category) uint32 {
	return w.rings[category].writeIndex
}

// PageCount reports how many pages category's ring holds.
func (w *Writer) PageCount(category Category) int {
	return w.rings[category].pageCount
}

// BaseOffset reports category's page offset from the start of the
// allocation, the value the discovery page's directory entry publishes.
func (w *Writer) BaseOffset(category Category) int {
	return w.rings[category].baseOffset
}
