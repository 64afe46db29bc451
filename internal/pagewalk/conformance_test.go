package pagewalk

import "testing"

// assertWalkerCapabilityBoundary exercises the shared Walker contract
// (PageSize, ArchitectureName, an unmapped Translate, and a
// correspondence-preserving TranslateRange) against any constructed
// Walker, regardless of architecture. Both arm64_test.go and x86_64_test.go
// call this helper (from TestARM64CapabilityBoundary and
// TestX86_64CapabilityBoundary) so the two walkers are held to the same
// capability boundary.
func assertWalkerCapabilityBoundary(t *testing.T, w Walker, wantArch string) {
	t.Helper()

	if got := w.PageSize(); got != pageSize {
		t.Errorf("PageSize() = %d, want %d", got, pageSize)
	}
	if got := w.ArchitectureName(); got != wantArch {
		t.Errorf("ArchitectureName() = %q, want %q", got, wantArch)
	}

	w.SetPageTableBase(0, nil)
	if got := w.Translate(0x1000); got != 0 {
		t.Errorf("Translate() on an unset/empty table = 0x%x, want 0", got)
	}

	results := w.TranslateRange(0x1234, 4)
	if len(results) != 4 {
		t.Fatalf("TranslateRange() returned %d entries, want 4", len(results))
	}
	for i, r := range results {
		if r != 0 {
			t.Errorf("TranslateRange()[%d] = 0x%x, want 0 (nothing mapped)", i, r)
		}
	}
}
