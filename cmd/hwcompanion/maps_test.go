package main

import "testing"

const sampleMaps = `00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/sample
00651000-00652000 rw-p 00051000 08:02 173521 /usr/bin/sample
7f1234560000-7f1234580000 rw-s 00000000 00:00 0
`

func TestParseMaps(t *testing.T) {
	sections := parseMaps([]byte(sampleMaps))
	if len(sections) != 3 {
		t.Fatalf("parseMaps() returned %d sections, want 3", len(sections))
	}

	first := sections[0]
	if first.StartGVA != 0x400000 || first.EndGVA != 0x452000 {
		t.Errorf("sections[0] range = %#x-%#x, want 0x400000-0x452000", first.StartGVA, first.EndGVA)
	}
	if first.Flags&sectionRead == 0 || first.Flags&sectionExec == 0 {
		t.Errorf("sections[0] flags = %#x, want read+exec set", first.Flags)
	}
	if first.Flags&sectionWrite != 0 {
		t.Errorf("sections[0] flags = %#x, want write clear", first.Flags)
	}

	last := sections[2]
	if last.Flags&sectionShared == 0 {
		t.Errorf("sections[2] flags = %#x, want shared set", last.Flags)
	}
}

func TestParseMapsSkipsBlankLines(t *testing.T) {
	sections := parseMaps([]byte("\n\n"))
	if len(sections) != 0 {
		t.Errorf("parseMaps(blank) = %d sections, want 0", len(sections))
	}
}
