package membackend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCandidateFileRE(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"qemu-mem-abc123", true},
		{"vm-mem-shared", true},
		{"haywire-memory.bin", true},
		{"QEMU_MEM_FILE", true},
		{"random-file.txt", false},
		{"notes.md", false},
	}
	for _, c := range cases {
		if got := candidateFileRE.MatchString(c.name); got != c.want {
			t.Errorf("MatchString(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestAutoDetectFindsCandidateInExtraDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qemu-mem-test")
	if err := os.WriteFile(path, make([]byte, minCandidateSize+1), 0o644); err != nil {
		t.Fatalf("write candidate file: %v", err)
	}

	got, ok := AutoDetect(dir)
	if !ok {
		t.Fatal("AutoDetect() did not find candidate")
	}
	if got != path {
		t.Errorf("AutoDetect() = %q, want %q", got, path)
	}
}

func TestAutoDetectSkipsUndersizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qemu-mem-small")
	if err := os.WriteFile(path, make([]byte, 16), 0o644); err != nil {
		t.Fatalf("write candidate file: %v", err)
	}

	if _, ok := AutoDetect(dir); ok {
		t.Error("AutoDetect() should not accept an undersized file")
	}
}

func TestAutoDetectSkipsNonMatchingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unrelated.bin")
	if err := os.WriteFile(path, make([]byte, minCandidateSize+1), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, ok := AutoDetect(dir); ok {
		t.Error("AutoDetect() should not accept a non-matching filename")
	}
}
