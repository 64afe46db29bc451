package writer

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jamiefaye/haywire-sub001/internal/beacon"
)

// TriggeredResult is what a single-shot companion run reports to its
// caller, the same information it prints to stdout as the BEACON_READY
// line (spec.md §4.5, §4.6's companion CLI).
type TriggeredResult struct {
	VA        uintptr
	SizeBytes int
	RequestID uint32
	Pages     int
	mem       []byte
}

// Unmap releases the memory TriggeredWrite allocated. Callers that pass
// --keep-alive to the companion skip this so the mapping (and therefore
// the data) stays resident for the host to read.
func (r *TriggeredResult) Unmap() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	return err
}

// TriggeredWrite implements the companion's single-shot mode: it allocates
// just enough pages to hold one beacon header plus a variable-length data
// tail, writes them with the ordinary tear-resistant protocol, and returns
// the result the caller formats as the BEACON_READY stdout line.
func TriggeredWrite(sessionID, requestID uint32, data []byte) (*TriggeredResult, error) {
	inlineCap := beacon.VersionBottomOffset - beacon.HeaderSize
	overflowBytes := 0
	if len(data) > inlineCap {
		overflowBytes = len(data) - inlineCap
	}
	pages := 1 + (overflowBytes+beacon.PageSize-1)/beacon.PageSize

	mem, err := unix.Mmap(-1, 0, pages*beacon.PageSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("writer: mmap triggered region: %w", err)
	}

	h := beacon.Header{
		Magic1:          beacon.Magic1,
		Magic2:          beacon.Magic2,
		SessionID:       sessionID,
		BeaconClass:     uint32(beacon.ClassResponseData),
		PageIndex:       0,
		TotalPages:      uint32(pages),
		ProtocolVersion: beacon.ProtocolVersion,
		VersionTop:      requestID,
	}
	copy(mem, beacon.MarshalHeader(h))

	// Page 0's body holds as much of data as fits before the footer; any
	// overflow is a raw, header-less tail occupying the pages after it.
	inline := data
	if len(inline) > inlineCap {
		inline = data[:inlineCap]
	}
	copy(mem[beacon.HeaderSize:], inline)
	if overflow := data[len(inline):]; len(overflow) > 0 {
		copy(mem[beacon.PageSize:], overflow)
	}

	footer := (*uint32)(unsafe.Pointer(&mem[beacon.VersionBottomOffset]))
	atomic.StoreUint32(footer, requestID)

	return &TriggeredResult{
		VA:        uintptr(unsafe.Pointer(&mem[0])),
		SizeBytes: pages * beacon.PageSize,
		RequestID: requestID,
		Pages:     pages,
		mem:       mem,
	}, nil
}

// ReadyLine formats the sole inter-process signal a triggered-mode
// companion prints on stdout, per spec.md §4.6: "BEACON_READY:<va>:SIZE:
// <bytes>:MAGIC:<request_id>:PAGES:<n>".
func (r *TriggeredResult) ReadyLine() string {
	return fmt.Sprintf("BEACON_READY:0x%x:SIZE:%d:MAGIC:0x%x:PAGES:%d",
		r.VA, r.SizeBytes, r.RequestID, r.Pages)
}
