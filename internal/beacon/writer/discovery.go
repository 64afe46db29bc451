package writer

import (
	"bytes"
	"encoding/binary"

	"github.com/jamiefaye/haywire-sub001/internal/beacon"
)

// HaydMagic is the second magic the discovery page carries, beyond the
// ordinary beacon magic pair every page starts with: the ASCII bytes
// "HayD", per spec.md §4.5.
var HaydMagic = [4]byte{'H', 'a', 'y', 'D'}

const maxHints = 16

// DirEntry is one category's directory entry on the discovery page: where
// its ring starts, how big it is, and where its write cursor currently is.
type DirEntry struct {
	BaseOffset uint32
	PageCount  uint32
	WriteIndex uint32
	Sequence   uint32
}

const dirEntrySize = 16 // 4 uint32 fields, packed

// Hint is a sampled (category, page index) -> guest physical address
// mapping the companion publishes so the host can shortcut its scan
// instead of sweeping the whole memory file.
type Hint struct {
	Category  uint32
	PageIndex uint32
	PhysAddr  uint64
}

const hintSize = 16 // uint32 + uint32 + uint64, packed

// DiscoveryPayload builds the directory and hint table that goes in the
// discovery page, the first page of the Master category.
func (w *Writer) DiscoveryPayload(hints []Hint) []byte {
	buf := new(bytes.Buffer)
	buf.Write(HaydMagic[:])
	binary.Write(buf, binary.LittleEndian, w.sessionID)

	for cat := Category(0); cat < categoryCount; cat++ {
		r := w.rings[cat]
		entry := DirEntry{
			BaseOffset: uint32(r.baseOffset),
			PageCount:  uint32(r.pageCount),
			WriteIndex: r.writeIndex,
			Sequence:   r.sequence,
		}
		binary.Write(buf, binary.LittleEndian, entry)
	}

	if len(hints) > maxHints {
		hints = hints[:maxHints]
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(hints)))
	for _, h := range hints {
		binary.Write(buf, binary.LittleEndian, h)
	}

	return buf.Bytes()
}

// WriteDiscoveryPage publishes the discovery page: page 0 of the Master
// category, using the ordinary tear-resistant write protocol with class
// ClassIndex instead of Master's usual heartbeat class.
func (w *Writer) WriteDiscoveryPage(hints []Hint) error {
	payload := w.DiscoveryPayload(hints)
	r := &w.rings[CategoryMaster]
	if r.pageCount == 0 {
		return nil
	}

	version := r.sequence
	buf := w.pageBuf(r.baseOffset)
	h := beacon.Header{
		Magic1:          beacon.Magic1,
		Magic2:          beacon.Magic2,
		SessionID:       w.sessionID,
		BeaconClass:     uint32(beacon.ClassIndex),
		PageIndex:       0,
		TotalPages:      uint32(r.pageCount),
		ProtocolVersion: beacon.ProtocolVersion,
		VersionTop:      version,
	}
	copy(buf, beacon.MarshalHeader(h))
	copy(buf[beacon.HeaderSize:], payload)
	for i := beacon.HeaderSize + len(payload); i < beacon.VersionBottomOffset; i++ {
		buf[i] = 0
	}
	if err := beacon.WriteVersionBottom(buf, version); err != nil {
		return err
	}

	r.sequence++
	return nil
}

// DecodeDiscoveryPayload is the inverse of DiscoveryPayload, used by tests
// and by the host scanner's index-class decoder to recover the category
// directory and hint table from a decoded discovery page.
func DecodeDiscoveryPayload(payload []byte) (sessionID uint32, dir [4]DirEntry, hints []Hint, err error) {
	r := bytes.NewReader(payload)
	var magic [4]byte
	if err = binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return
	}
	if magic != HaydMagic {
		err = errMismatchedMagic
		return
	}
	if err = binary.Read(r, binary.LittleEndian, &sessionID); err != nil {
		return
	}
	for i := range dir {
		if err = binary.Read(r, binary.LittleEndian, &dir[i]); err != nil {
			return
		}
	}
	var hintCount uint32
	if err = binary.Read(r, binary.LittleEndian, &hintCount); err != nil {
		return
	}
	hints = make([]Hint, 0, hintCount)
	for i := uint32(0); i < hintCount; i++ {
		var h Hint
		if err = binary.Read(r, binary.LittleEndian, &h); err != nil {
			return
		}
		hints = append(hints, h)
	}
	return
}
