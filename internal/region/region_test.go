package region

import (
	"context"
	"strings"
	"testing"
)

func TestParseMtreeOutputCanonicalForm(t *testing.T) {
	text := "0000000040000000-00000000bfffffff: mem (prio 0, ram)\n"
	regions := ParseMtreeOutput(text)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	r := regions[0]
	if r.GPAStart != 0x40000000 || r.GPAEnd != 0xBFFFFFFF {
		t.Errorf("got bounds [0x%x, 0x%x]", r.GPAStart, r.GPAEnd)
	}
	if r.Size != 0x80000000 {
		t.Errorf("got size 0x%x, want 0x80000000", r.Size)
	}
	if r.FileOffset != 0 {
		t.Errorf("got file offset 0x%x, want 0", r.FileOffset)
	}
}

func TestParseMtreeOutputFallbackForm(t *testing.T) {
	text := "0000000000000000-000000003fffffff : ram-below-4g\n"
	regions := ParseMtreeOutput(text)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
}

func TestParseMtreeOutputSkipsNonRAM(t *testing.T) {
	text := "00000000fee00000-00000000feefffff: apic-msi (prio 0, i/o)\n"
	regions := ParseMtreeOutput(text)
	if len(regions) != 0 {
		t.Fatalf("got %d regions, want 0", len(regions))
	}
}

func TestParseMtreeOutputMultipleRegions(t *testing.T) {
	text := strings.Join([]string{
		"0000000000000000-000000003fffffff: mem (prio 0, ram)",
		"0000000100000000-000000013fffffff: mem (prio 0, ram)",
	}, "\n")
	regions := ParseMtreeOutput(text)
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[1].FileOffset != regions[0].Size {
		t.Errorf("second region file offset = 0x%x, want 0x%x", regions[1].FileOffset, regions[0].Size)
	}
}

func TestMapperTranslateGPAToFileOffset(t *testing.T) {
	m := NewMapper(0x40000000)
	ctx := context.Background()
	if err := m.Discover(ctx, nil, 0x1000); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if m.State() != Discovered {
		t.Fatalf("state = %v, want Discovered", m.State())
	}

	off := m.TranslateGPAToFileOffset(0x40000100)
	if off != 0x100 {
		t.Errorf("TranslateGPAToFileOffset() = %d, want 0x100", off)
	}

	if off := m.TranslateGPAToFileOffset(0x90000000); off != -1 {
		t.Errorf("TranslateGPAToFileOffset(out of range) = %d, want -1", off)
	}
}

func TestMapperSyntheticFallbackWithNilMonitor(t *testing.T) {
	m := NewMapper(0x80000000)
	if err := m.Discover(context.Background(), nil, 0x2000); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	regions := m.Regions()
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1 synthetic region", len(regions))
	}
	if regions[0].GPAStart != 0x80000000 {
		t.Errorf("synthetic region base = 0x%x, want 0x80000000", regions[0].GPAStart)
	}
}

func TestValidateRegionsDetectsOverlap(t *testing.T) {
	regions := []Region{
		{GPAStart: 0, GPAEnd: 0xfff, Size: 0x1000, Name: "a"},
		{GPAStart: 0x800, GPAEnd: 0x1fff, Size: 0x1800, Name: "b"},
	}
	if err := validateRegions(regions); err == nil {
		t.Error("expected overlap error")
	}
}

func TestValidateRegionsAcceptsAdjacent(t *testing.T) {
	regions := []Region{
		{GPAStart: 0, GPAEnd: 0xfff, Size: 0x1000, Name: "a"},
		{GPAStart: 0x1000, GPAEnd: 0x1fff, Size: 0x1000, Name: "b"},
	}
	if err := validateRegions(regions); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
