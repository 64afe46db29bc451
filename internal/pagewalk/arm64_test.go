package pagewalk

import "testing"

// fakeMem serves fixed 8-byte little-endian page-table entries keyed by
// guest physical address, and fails any read at an address it doesn't
// know about — modeling a walk that runs off the edge of mapped memory.
type fakeMem struct {
	entries map[uint64]uint64
}

func (m *fakeMem) Read(gpa uint64, size int) ([]byte, error) {
	if size != 8 {
		return nil, errUnsupportedSize
	}
	v, ok := m.entries[gpa]
	if !ok {
		return nil, errNoEntry
	}
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out, nil
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const (
	errUnsupportedSize = sentinelError("unsupported size")
	errNoEntry         = sentinelError("no entry")
)

func TestARM64WalkSpecScenario(t *testing.T) {
	mem := &fakeMem{entries: map[uint64]uint64{
		0x41000000: 0x41001003, // L0
		0x41001000: 0x41002003, // L1
		0x41002000: 0x41003003, // L2
		0x41003000: 0x50000003, // L3
	}}
	w := NewARM64Walker(mem)
	w.SetPageTableBase(0x41000000, nil)

	got := w.Translate(0x0000000000000123)
	want := uint64(0x50000123)
	if got != want {
		t.Errorf("Translate() = 0x%x, want 0x%x", got, want)
	}
}

func TestARM64WalkUnmappedL0(t *testing.T) {
	mem := &fakeMem{entries: map[uint64]uint64{}}
	w := NewARM64Walker(mem)
	w.SetPageTableBase(0x41000000, nil)

	if got := w.Translate(0x1000); got != 0 {
		t.Errorf("Translate() = 0x%x, want 0", got)
	}
}

func TestARM64WalkInvalidL0Entry(t *testing.T) {
	mem := &fakeMem{entries: map[uint64]uint64{
		0x41000000: 0, // not valid
	}}
	w := NewARM64Walker(mem)
	w.SetPageTableBase(0x41000000, nil)

	if got := w.Translate(0x1000); got != 0 {
		t.Errorf("Translate() = 0x%x, want 0", got)
	}
}

func TestARM64Walk1GiBBlock(t *testing.T) {
	mem := &fakeMem{entries: map[uint64]uint64{
		0x41000000: 0x41001003,          // L0 -> table
		0x41001000: 0x0000000080000001, // L1 block leaf (valid, not table)
	}}
	w := NewARM64Walker(mem)
	w.SetPageTableBase(0x41000000, nil)

	gva := uint64(0x12345678)
	got := w.Translate(gva)
	want := (uint64(0x80000000) &^ ((1 << 30) - 1)) | (gva & ((1 << 30) - 1))
	if got != want {
		t.Errorf("Translate() = 0x%x, want 0x%x", got, want)
	}
}

func TestARM64WalkSecondaryRootForHighVA(t *testing.T) {
	mem := &fakeMem{
		entries: map[uint64]uint64{
			0x42000800: 0x41001003, // L0 index 256: VA bit 47 is the top L0 index bit
			0x41001000: 0x41002003,
			0x41002000: 0x41003003,
			0x41003000: 0x50000003,
		},
	}
	w := NewARM64Walker(mem)
	secondary := uint64(0x42000000)
	w.SetPageTableBase(0x41000000, &secondary)

	gva := uint64(1)<<47 | 0x123
	got := w.Translate(gva)
	if got != 0x50000123 {
		t.Errorf("Translate() = 0x%x, want 0x50000123", got)
	}
}

func TestARM64WalkHighVAWithoutSecondaryRoot(t *testing.T) {
	mem := &fakeMem{entries: map[uint64]uint64{}}
	w := NewARM64Walker(mem)
	w.SetPageTableBase(0x41000000, nil)

	gva := uint64(1)<<47 | 0x123
	if got := w.Translate(gva); got != 0 {
		t.Errorf("Translate() = 0x%x, want 0", got)
	}
}

func TestARM64CapabilityBoundary(t *testing.T) {
	mem := &fakeMem{entries: map[uint64]uint64{}}
	assertWalkerCapabilityBoundary(t, NewARM64Walker(mem), "arm64")
}

func TestARM64TranslateRangePreservesCorrespondence(t *testing.T) {
	mem := &fakeMem{entries: map[uint64]uint64{
		0x41000000: 0x41001003,
		0x41001000: 0x41002003,
		0x41002000: 0x41003003,
		0x41003000: 0x50000003,
	}}
	w := NewARM64Walker(mem)
	w.SetPageTableBase(0x41000000, nil)

	got := w.TranslateRange(0, 2)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0] != 0x50000000 {
		t.Errorf("page 0 = 0x%x, want 0x50000000", got[0])
	}
	// Page 1 indexes L3 slot 1, which has no entry -> unmapped.
	if got[1] != 0 {
		t.Errorf("page 1 = 0x%x, want 0", got[1])
	}
}
