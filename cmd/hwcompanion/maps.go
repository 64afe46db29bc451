package main

import (
	"strconv"
	"strings"

	"github.com/jamiefaye/haywire-sub001/internal/beacon"
)

// Section flag bits packed into SectionEntry.Flags, mirroring the
// permission letters /proc/<pid>/maps prints (r/w/x/s or p).
const (
	sectionRead = 1 << iota
	sectionWrite
	sectionExec
	sectionShared
)

// parseMaps turns /proc/<pid>/maps text into SectionEntry rows. Each line
// is "start-end perms offset dev inode pathname"; only the address range
// and permission bits matter here, the same fields
// companion_triggered.c's write_memory_maps() would otherwise just be
// dumping as raw text.
func parseMaps(data []byte) []beacon.SectionEntry {
	lines := strings.Split(string(data), "\n")
	sections := make([]beacon.SectionEntry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		start, end, ok := parseAddrRange(fields[0])
		if !ok {
			continue
		}
		sections = append(sections, beacon.SectionEntry{
			StartGVA: start,
			EndGVA:   end,
			Flags:    parsePerms(fields[1]),
		})
	}
	return sections
}

func parseAddrRange(field string) (start, end uint64, ok bool) {
	parts := strings.SplitN(field, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	s, err1 := strconv.ParseUint(parts[0], 16, 64)
	e, err2 := strconv.ParseUint(parts[1], 16, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return s, e, true
}

func parsePerms(perms string) uint32 {
	var flags uint32
	if strings.Contains(perms, "r") {
		flags |= sectionRead
	}
	if strings.Contains(perms, "w") {
		flags |= sectionWrite
	}
	if strings.Contains(perms, "x") {
		flags |= sectionExec
	}
	if strings.Contains(perms, "s") {
		flags |= sectionShared
	}
	return flags
}
