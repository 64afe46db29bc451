package scanner

import (
	"github.com/jamiefaye/haywire-sub001/internal/apperr"
	"github.com/jamiefaye/haywire-sub001/internal/beacon"
	"github.com/jamiefaye/haywire-sub001/internal/beacon/writer"
)

// Decoded is the typed result of decoding one beacon page: at most one of
// its payload pointers is non-nil, selected by Header.BeaconClass. The
// header-only classes (master, heartbeat, request/response data, reserved)
// leave all of them nil.
type Decoded struct {
	Header       beacon.Header
	Discovery    *DiscoveryPage
	PIDList      *beacon.PIDListPayload
	ProcessDetail *beacon.ProcessDetailPayload
	MemoryMap    *beacon.MemoryMapPayload
}

// DiscoveryPage is the decoded form of a ClassIndex page.
type DiscoveryPage struct {
	SessionID uint32
	Dir       [4]writer.DirEntry
	Hints     []writer.Hint
}

// DecodePage reads a full PageSize-byte page buffer and returns its typed
// payload, per spec.md §4.6: "decoding a page consults the page's
// beacon_class and dispatches to that class's parser; decoders must be
// total on well-formed pages and produce a typed error (not a panic) on
// malformed ones." expectedSessionID, when non-nil, rejects a page from a
// different session as stale (a companion restart with a new session id).
func DecodePage(page []byte, expectedSessionID *uint32) (Decoded, error) {
	h, err := beacon.UnmarshalHeader(page)
	if err != nil {
		return Decoded{}, err
	}
	versionBottom, err := beacon.ReadVersionBottom(page)
	if err != nil {
		return Decoded{}, err
	}
	if err := beacon.Validate(h, versionBottom, expectedSessionID); err != nil {
		return Decoded{}, err
	}

	payload := page[beacon.HeaderSize:beacon.VersionBottomOffset]
	class := beacon.Class(h.BeaconClass)

	switch class {
	case beacon.ClassIndex:
		sid, dir, hints, err := writer.DecodeDiscoveryPayload(payload)
		if err != nil {
			return Decoded{}, apperr.Wrap(apperr.Malformed, "decode discovery page", err)
		}
		return Decoded{Header: h, Discovery: &DiscoveryPage{SessionID: sid, Dir: dir, Hints: hints}}, nil

	case beacon.ClassPIDList:
		p, err := beacon.DecodePIDListPayload(payload)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Header: h, PIDList: &p}, nil

	case beacon.ClassProcessDetail, beacon.ClassCamera:
		p, err := beacon.DecodeProcessDetailPayload(payload)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Header: h, ProcessDetail: &p}, nil

	case beacon.ClassMemoryMap:
		p, err := beacon.DecodeMemoryMapPayload(payload)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Header: h, MemoryMap: &p}, nil

	case beacon.ClassMaster, beacon.ClassHeartbeat, beacon.ClassRequestData, beacon.ClassResponseData, beacon.ClassReserved:
		// These classes carry no typed payload this reader decodes beyond
		// the header (heartbeats/master pages are liveness-only; request
		// and response data bytes are not parsed here and stay in the raw
		// page).
		return Decoded{Header: h}, nil

	default:
		return Decoded{}, apperr.New(apperr.Malformed, "unrecognized beacon class")
	}
}

// DecodeAt reads and decodes the page at file offset off through mem, the
// convenience a caller walking an Index's BeaconInfo entries uses instead
// of doing the ReadOffset/DecodePage dance itself.
func DecodeAt(mem PageReader, off uint64, expectedSessionID *uint32) (Decoded, error) {
	page, err := mem.ReadOffset(off, beacon.PageSize)
	if err != nil {
		return Decoded{}, err
	}
	return DecodePage(page, expectedSessionID)
}

// DecodeRegion decodes every page of a merged Region in region order and
// returns one Decoded per page (entries are not concatenated), for the multi-page
// payloads spec.md §4.6 says the reader "operates on regions rather than
// individual pages" for: PID-list generations and process-detail/camera
// rings that span more than one page.
func DecodeRegion(mem PageReader, r Region, expectedSessionID *uint32) ([]Decoded, error) {
	out := make([]Decoded, 0, len(r.PageOffsets))
	for _, off := range r.PageOffsets {
		d, err := DecodeAt(mem, off, expectedSessionID)
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}
