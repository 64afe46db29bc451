package scanner

import (
	"testing"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
	"github.com/jamiefaye/haywire-sub001/internal/beacon"
)

// memFile is a minimal PageReader backed by an in-memory byte slice, the
// scanner-test equivalent of membackend.Backend without touching the
// filesystem.
type memFile struct {
	data []byte
}

func (m *memFile) ReadOffset(offset uint64, size int) ([]byte, error) {
	end := offset + uint64(size)
	if end > uint64(len(m.data)) {
		return nil, apperr.New(apperr.OutOfRange, "read past end")
	}
	out := make([]byte, size)
	copy(out, m.data[offset:end])
	return out, nil
}

func (m *memFile) MappedSize() uint64 { return uint64(len(m.data)) }

func writePage(data []byte, offset uint64, sessionID uint32, class beacon.Class, pageIndex, totalPages uint32, payload []byte) {
	version := pageIndex
	h := beacon.Header{
		Magic1:          beacon.Magic1,
		Magic2:          beacon.Magic2,
		SessionID:       sessionID,
		BeaconClass:     uint32(class),
		PageIndex:       pageIndex,
		TotalPages:      totalPages,
		ProtocolVersion: beacon.ProtocolVersion,
		VersionTop:      version,
	}
	page := data[offset : offset+beacon.PageSize]
	copy(page, beacon.MarshalHeader(h))
	copy(page[beacon.HeaderSize:], payload)
	beacon.WriteVersionBottom(page, version)
}

func TestScanFindsThreeValidBeaconsAndOneSuspicious(t *testing.T) {
	data := make([]byte, 0x300000)
	const session = uint32(0xABCD)

	writePage(data, 0x100000, session, beacon.ClassRequestData, 0, 3, nil)
	writePage(data, 0x101000, session, beacon.ClassRequestData, 1, 3, nil)
	writePage(data, 0x102000, session, beacon.ClassRequestData, 2, 3, nil)

	// A fourth page with the magic but a bogus protocol version.
	h := beacon.Header{
		Magic1: beacon.Magic1, Magic2: beacon.Magic2,
		SessionID: 99, BeaconClass: uint32(beacon.ClassRequestData),
		TotalPages: 1, ProtocolVersion: 0xFFFFFFFF,
	}
	copy(data[0x200000:], beacon.MarshalHeader(h))

	mem := &memFile{data: data}
	idx, err := Scan(mem)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	validCount := 0
	suspiciousCount := 0
	for _, b := range idx.Beacons {
		if b.Suspicious {
			suspiciousCount++
		} else {
			validCount++
		}
	}
	if validCount != 3 {
		t.Errorf("valid beacons = %d, want 3", validCount)
	}
	if suspiciousCount != 1 {
		t.Errorf("suspicious beacons = %d, want 1", suspiciousCount)
	}

	if len(idx.BySession[session]) != 3 {
		t.Errorf("by_session[%d] = %d entries, want 3", session, len(idx.BySession[session]))
	}

	regions := idx.FindRegions(session)
	if len(regions) != 1 {
		t.Fatalf("FindRegions() = %d regions, want 1", len(regions))
	}
	if regions[0].BaseOffset != 0x100000 || regions[0].PageCount != 3 {
		t.Errorf("region = %+v, want base 0x100000 count 3", regions[0])
	}
}

func TestFindRegionsSplitsNonContiguousPages(t *testing.T) {
	data := make([]byte, 0x10000)
	const session = uint32(42)

	writePage(data, 0x1000, session, beacon.ClassCamera, 0, 2, nil)
	// Gap: page at 0x3000 is not adjacent to 0x1000.
	writePage(data, 0x3000, session, beacon.ClassCamera, 1, 2, nil)

	mem := &memFile{data: data}
	idx, err := Scan(mem)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	regions := idx.FindRegions(session)
	if len(regions) != 2 {
		t.Fatalf("FindRegions() = %d regions, want 2 (non-adjacent pages)", len(regions))
	}
}

func TestFindRegionsSplitsOnClassChange(t *testing.T) {
	data := make([]byte, 0x10000)
	const session = uint32(7)

	writePage(data, 0x1000, session, beacon.ClassPIDList, 0, 1, nil)
	writePage(data, 0x2000, session, beacon.ClassCamera, 0, 1, nil)

	mem := &memFile{data: data}
	idx, err := Scan(mem)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	regions := idx.FindRegions(session)
	if len(regions) != 2 {
		t.Fatalf("FindRegions() = %d regions, want 2 (class changes)", len(regions))
	}
}

func TestCleanupRemovesInactiveFromSecondaryIndexes(t *testing.T) {
	data := make([]byte, 0x10000)
	const session = uint32(5)
	writePage(data, 0x1000, session, beacon.ClassHeartbeat, 0, 1, nil)

	mem := &memFile{data: data}
	idx, _ := Scan(mem)

	if len(idx.BySession[session]) != 1 {
		t.Fatalf("expected one beacon before cleanup")
	}

	idx.MarkInactive(idx.BySession[session][0])
	idx.Cleanup()

	if len(idx.BySession[session]) != 0 {
		t.Errorf("BySession should be empty after cleanup, got %v", idx.BySession[session])
	}
	if _, ok := idx.ByFileOffset[0x1000]; ok {
		t.Errorf("ByFileOffset should not contain cleaned-up offset")
	}
}

func TestDecodePageRejectsTornPage(t *testing.T) {
	data := make([]byte, beacon.PageSize)
	h := beacon.Header{
		Magic1: beacon.Magic1, Magic2: beacon.Magic2,
		SessionID: 1, BeaconClass: uint32(beacon.ClassHeartbeat),
		TotalPages: 1, ProtocolVersion: beacon.ProtocolVersion,
		VersionTop: 5,
	}
	copy(data, beacon.MarshalHeader(h))
	beacon.WriteVersionBottom(data, 6) // deliberately mismatched

	if _, err := DecodePage(data, nil); err == nil {
		t.Error("expected tear-detection error")
	} else if !apperr.Is(err, apperr.StaleBeacon) {
		t.Errorf("expected StaleBeacon, got %v", err)
	}
}

func TestDecodePagePIDList(t *testing.T) {
	payload, err := beacon.EncodePIDListPayload(3, []beacon.PIDEntry{
		{PID: 1, ParentPID: 0},
		{PID: 2, ParentPID: 1},
	})
	if err != nil {
		t.Fatalf("EncodePIDListPayload() error = %v", err)
	}

	data := make([]byte, beacon.PageSize)
	writePage(data, 0, 11, beacon.ClassPIDList, 0, 1, payload)

	decoded, err := DecodePage(data, nil)
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}
	if decoded.PIDList == nil {
		t.Fatal("expected PIDList to be decoded")
	}
	if decoded.PIDList.Generation != 3 || len(decoded.PIDList.Entries) != 2 {
		t.Errorf("got %+v", decoded.PIDList)
	}
	if decoded.PIDList.Entries[1].PID != 2 {
		t.Errorf("entries[1].PID = %d, want 2", decoded.PIDList.Entries[1].PID)
	}
}

func TestDecodePageProcessDetail(t *testing.T) {
	entry := beacon.NewProcessEntry(100, 1, "worker", 0xffff8000, 0xffff9000, 0x41000, 4, 0x100000)
	sections := []beacon.SectionEntry{
		{StartGVA: 0x400000, EndGVA: 0x401000, Flags: 5},
	}
	payload, err := beacon.EncodeProcessDetailPayload(entry, sections)
	if err != nil {
		t.Fatalf("EncodeProcessDetailPayload() error = %v", err)
	}

	data := make([]byte, beacon.PageSize)
	writePage(data, 0, 11, beacon.ClassProcessDetail, 0, 1, payload)

	decoded, err := DecodePage(data, nil)
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}
	if decoded.ProcessDetail == nil {
		t.Fatal("expected ProcessDetail to be decoded")
	}
	if decoded.ProcessDetail.Entry.NameString() != "worker" {
		t.Errorf("name = %q, want worker", decoded.ProcessDetail.Entry.NameString())
	}
	if len(decoded.ProcessDetail.Sections) != 1 || decoded.ProcessDetail.Sections[0].EndGVA != 0x401000 {
		t.Errorf("sections = %+v", decoded.ProcessDetail.Sections)
	}
}
