package beacon

import "testing"

func TestMarshalUnmarshalHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic1:          Magic1,
		Magic2:          Magic2,
		SessionID:       42,
		BeaconClass:     uint32(ClassPIDList),
		PageIndex:       2,
		TotalPages:      5,
		ProtocolVersion: ProtocolVersion,
		Flags:           0,
		VersionTop:      10002,
		CreatedTime:     1000,
		ModifiedTime:    2000,
		Checksum:        0xabcd,
	}

	data := MarshalHeader(h)
	if len(data) != HeaderSize {
		t.Fatalf("MarshalHeader() len = %d, want %d", len(data), HeaderSize)
	}

	got, err := UnmarshalHeader(data)
	if err != nil {
		t.Fatalf("UnmarshalHeader() error = %v", err)
	}
	if got != h {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestUnmarshalHeaderTooShort(t *testing.T) {
	if _, err := UnmarshalHeader(make([]byte, 10)); err == nil {
		t.Error("expected error for short buffer")
	}
}

func TestVersionBottomRoundTrip(t *testing.T) {
	page := make([]byte, PageSize)
	if err := WriteVersionBottom(page, 12345); err != nil {
		t.Fatalf("WriteVersionBottom() error = %v", err)
	}
	got, err := ReadVersionBottom(page)
	if err != nil {
		t.Fatalf("ReadVersionBottom() error = %v", err)
	}
	if got != 12345 {
		t.Errorf("got %d, want 12345", got)
	}
}

func TestLooksLikeBeaconStart(t *testing.T) {
	page := make([]byte, PageSize)
	h := Header{Magic1: Magic1, Magic2: Magic2}
	copy(page, MarshalHeader(h))

	if !LooksLikeBeaconStart(page) {
		t.Error("expected magic match")
	}
	if LooksLikeBeaconStart(make([]byte, PageSize)) {
		t.Error("expected no match on zeroed page")
	}
}

func TestValidateAcceptsWellFormedPage(t *testing.T) {
	h := Header{
		Magic1:          Magic1,
		Magic2:          Magic2,
		SessionID:       7,
		BeaconClass:     uint32(ClassCamera),
		PageIndex:       0,
		TotalPages:      1,
		ProtocolVersion: ProtocolVersion,
		VersionTop:      99,
	}
	if err := Validate(h, 99, nil); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidateRejectsTornPage(t *testing.T) {
	h := Header{
		Magic1: Magic1, Magic2: Magic2, SessionID: 7,
		BeaconClass: uint32(ClassCamera), TotalPages: 1,
		ProtocolVersion: ProtocolVersion, VersionTop: 99,
	}
	if err := Validate(h, 100, nil); err == nil {
		t.Error("expected tear-check error")
	}
}

func TestValidateRejectsSentinelSessionID(t *testing.T) {
	h := Header{
		Magic1: Magic1, Magic2: Magic2, SessionID: 0,
		BeaconClass: uint32(ClassCamera), TotalPages: 1,
		ProtocolVersion: ProtocolVersion,
	}
	if err := Validate(h, 0, nil); err == nil {
		t.Error("expected error for session id 0")
	}
}

func TestValidateRejectsBadClass(t *testing.T) {
	h := Header{
		Magic1: Magic1, Magic2: Magic2, SessionID: 7,
		BeaconClass: 99, TotalPages: 1,
		ProtocolVersion: ProtocolVersion,
	}
	if err := Validate(h, 0, nil); err == nil {
		t.Error("expected error for out-of-range class")
	}
}

func TestValidateRejectsMismatchedSession(t *testing.T) {
	h := Header{
		Magic1: Magic1, Magic2: Magic2, SessionID: 7,
		BeaconClass: uint32(ClassCamera), TotalPages: 1,
		ProtocolVersion: ProtocolVersion,
	}
	expected := uint32(8)
	if err := Validate(h, 0, &expected); err == nil {
		t.Error("expected error for session id mismatch")
	}
}
