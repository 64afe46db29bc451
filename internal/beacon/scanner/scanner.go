// Package scanner implements the host-side half of the beacon protocol:
// sweeping the memory-backend file on page boundaries for the beacon
// magic, indexing what it finds by session and by file offset, and
// decoding the typed payloads the writer package produced (spec.md §4.6).
package scanner

import (
	"sort"

	"github.com/jamiefaye/haywire-sub001/internal/beacon"
)

// PageReader is the minimal memory-backend capability the scanner needs:
// a whole-page read at a given file offset. membackend.Backend.ReadOffset
// satisfies this structurally.
type PageReader interface {
	ReadOffset(offset uint64, size int) ([]byte, error)
	MappedSize() uint64
}

// BeaconInfo describes one page the scanner found with a valid magic,
// whether or not it passed full validation.
type BeaconInfo struct {
	FileOffset uint64
	Header     beacon.Header
	Suspicious bool // failed validation past the magic pre-filter
	Reason     string
}

// Index is the scanner's result: every beacon page found, indexed by
// insertion order, by file offset, and by session id, per spec.md §4.6.
type Index struct {
	Beacons      []BeaconInfo
	ByFileOffset map[uint64]int
	BySession    map[uint32][]int

	inactive map[int]bool
}

// NewIndex returns an empty Index ready for Scan to populate.
func NewIndex() *Index {
	return &Index{
		ByFileOffset: make(map[uint64]int),
		BySession:    make(map[uint32][]int),
		inactive:     make(map[int]bool),
	}
}

// Scan walks mem in strict page-size increments from the start of the
// file, per spec.md §4.6: "Iterate the memory file in strict page-size
// increments (not byte by byte)." Every page whose first 8 bytes match the
// beacon magic pair is recorded, either as a valid beacon or, when it
// fails the fuller validation, as suspicious — both still end up in the
// index, per spec.md: "Classify suspicious matches separately but record
// them."
func Scan(mem PageReader) (*Index, error) {
	idx := NewIndex()
	total := mem.MappedSize()

	for offset := uint64(0); offset+beacon.PageSize <= total; offset += beacon.PageSize {
		page, err := mem.ReadOffset(offset, beacon.PageSize)
		if err != nil {
			continue
		}
		if !beacon.LooksLikeBeaconStart(page) {
			continue
		}

		info, ok := classify(page, offset)
		idx.add(info)
		_ = ok
	}

	return idx, nil
}

// classify decodes one page-sized buffer already known to start with the
// beacon magic, applying the structural bounds spec.md §4.6 names:
// session id not 0 or 0xFFFFFFFF, expected protocol version, class in
// [1,10], page index within total pages and total pages within
// MaxTotalPages.
func classify(page []byte, offset uint64) (BeaconInfo, bool) {
	h, err := beacon.UnmarshalHeader(page)
	if err != nil {
		return BeaconInfo{FileOffset: offset, Suspicious: true, Reason: "short header"}, false
	}

	info := BeaconInfo{FileOffset: offset, Header: h}

	switch {
	case h.SessionID == beacon.InvalidSessionIDZero || h.SessionID == beacon.InvalidSessionIDAll:
		info.Suspicious = true
		info.Reason = "invalid session id"
	case h.ProtocolVersion != beacon.ProtocolVersion:
		info.Suspicious = true
		info.Reason = "unexpected protocol version"
	case !beacon.Class(h.BeaconClass).Valid():
		info.Suspicious = true
		info.Reason = "beacon class out of range"
	case h.TotalPages == 0 || h.TotalPages > beacon.MaxTotalPages || h.PageIndex >= h.TotalPages:
		info.Suspicious = true
		info.Reason = "page index/total out of bounds"
	}

	return info, !info.Suspicious
}

func (idx *Index) add(info BeaconInfo) {
	i := len(idx.Beacons)
	idx.Beacons = append(idx.Beacons, info)
	idx.ByFileOffset[info.FileOffset] = i
	if !info.Suspicious {
		sid := info.Header.SessionID
		idx.BySession[sid] = append(idx.BySession[sid], i)
	}
}

// MarkInactive flags the beacon at index i as stale, per spec.md §4.6:
// "Stale beacons are not deleted but marked inactive."
func (idx *Index) MarkInactive(i int) {
	if idx.inactive == nil {
		idx.inactive = make(map[int]bool)
	}
	idx.inactive[i] = true
}

// IsActive reports whether the beacon at index i has not been marked
// inactive.
func (idx *Index) IsActive(i int) bool {
	return !idx.inactive[i]
}

// Cleanup removes inactive entries from the secondary indexes (not from
// Beacons itself, so existing indices keep meaning), per spec.md §4.6:
// "cleanup() removes inactive entries from the secondary indexes."
func (idx *Index) Cleanup() {
	for offset, i := range idx.ByFileOffset {
		if idx.inactive[i] {
			delete(idx.ByFileOffset, offset)
		}
	}
	for sid, indices := range idx.BySession {
		kept := indices[:0]
		for _, i := range indices {
			if !idx.inactive[i] {
				kept = append(kept, i)
			}
		}
		if len(kept) == 0 {
			delete(idx.BySession, sid)
		} else {
			idx.BySession[sid] = kept
		}
	}
}

// Region is a maximal run of adjacent same-class, same-session beacon
// pages: page indices strictly increasing by 1, file offsets strictly
// increasing by PageSize, per spec.md §4.6's "Region merge."
type Region struct {
	SessionID   uint32
	Class       beacon.Class
	BaseOffset  uint64
	PageCount   int
	PageOffsets []uint64 // FileOffset of each page, index 0 == page_index 0
}

// FindRegions merges a session's beacons into contiguous regions, sorted
// by file offset within the session, per spec.md §4.6 and §8's "Region
// merge" invariant: within each merged region, page indices are strictly
// increasing by 1 and all pages share the same beacon_class and
// session_id.
func (idx *Index) FindRegions(sessionID uint32) []Region {
	indices := append([]int(nil), idx.BySession[sessionID]...)
	sort.Slice(indices, func(i, j int) bool {
		return idx.Beacons[indices[i]].FileOffset < idx.Beacons[indices[j]].FileOffset
	})

	var regions []Region
	var cur *Region

	for _, i := range indices {
		b := idx.Beacons[i]
		class := beacon.Class(b.Header.BeaconClass)

		if cur != nil &&
			class == cur.Class &&
			b.FileOffset == cur.PageOffsets[len(cur.PageOffsets)-1]+beacon.PageSize &&
			b.Header.PageIndex == uint32(len(cur.PageOffsets)) {
			cur.PageOffsets = append(cur.PageOffsets, b.FileOffset)
			cur.PageCount++
			continue
		}

		if cur != nil {
			regions = append(regions, *cur)
		}
		cur = &Region{
			SessionID:   sessionID,
			Class:       class,
			BaseOffset:  b.FileOffset,
			PageCount:   1,
			PageOffsets: []uint64{b.FileOffset},
		}
	}
	if cur != nil {
		regions = append(regions, *cur)
	}

	return regions
}
