package monitor

import (
	"reflect"
	"testing"
)

func TestParseHexDump(t *testing.T) {
	text := "0000000040000000: 0xde 0xad 0xbe 0xef\n0000000040000004: 0x01 0x02\n"
	got, err := parseHexDump(text, 6)
	if err != nil {
		t.Fatalf("parseHexDump() error = %v", err)
	}
	want := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseHexDumpTruncated(t *testing.T) {
	text := "0000000040000000: 0xde 0xad\n"
	if _, err := parseHexDump(text, 8); err == nil {
		t.Error("expected error for short dump")
	}
}
