package beacon

import (
	"bytes"
	"encoding/binary"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
)

// MarshalHeader packs h into its 64-byte little-endian wire form.
// encoding/binary.Write visits struct fields in declaration order and
// packs them without Go's memory-layout padding, so Header's field order
// is itself the wire format — matching spec.md §6's "packed (no implicit
// padding)" requirement.
func MarshalHeader(h Header) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize)
	_ = binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// UnmarshalHeader unpacks the first HeaderSize bytes of data into a
// Header. It returns an error only if data is too short; it performs no
// semantic validation (see Validate for that).
func UnmarshalHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, apperr.New(apperr.Malformed, "beacon page shorter than header size")
	}
	var h Header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return Header{}, apperr.Wrap(apperr.Malformed, "decode beacon header", err)
	}
	return h, nil
}

// VersionBottomOffset is the footer's fixed location: the last 4 bytes of
// a full-size beacon page.
const VersionBottomOffset = PageSize - 4

// ReadVersionBottom extracts the version-bottom footer from a full
// PageSize-byte page buffer.
func ReadVersionBottom(page []byte) (uint32, error) {
	if len(page) < PageSize {
		return 0, apperr.New(apperr.Malformed, "beacon page shorter than PageSize")
	}
	return binary.LittleEndian.Uint32(page[VersionBottomOffset:]), nil
}

// WriteVersionBottom writes the footer into a full PageSize-byte page
// buffer.
func WriteVersionBottom(page []byte, version uint32) error {
	if len(page) < PageSize {
		return apperr.New(apperr.Malformed, "beacon page shorter than PageSize")
	}
	binary.LittleEndian.PutUint32(page[VersionBottomOffset:], version)
	return nil
}
