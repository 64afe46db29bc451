package main

import (
	"os"

	"github.com/jamiefaye/haywire-sub001/internal/beacon"
	"github.com/jamiefaye/haywire-sub001/internal/beacon/writer"
)

// publishPIDList writes the full current PID snapshot into the PID-list
// ring, per spec.md §4.5's "Snapshot of all PIDs each cycle". A ring has
// more than one page, so a snapshot that doesn't fit on one page spills
// across consecutive WritePage calls; the scanner's region merge
// (internal/beacon/scanner) stitches them back together by file offset and
// page index.
func publishPIDList(w *writer.Writer, generation uint32, pids []procPID) error {
	chunks := 1
	if n := len(pids); n > 0 {
		chunks = (n + beacon.MaxPIDEntriesPerPage - 1) / beacon.MaxPIDEntriesPerPage
	}

	for i := 0; i < chunks; i++ {
		start := i * beacon.MaxPIDEntriesPerPage
		end := start + beacon.MaxPIDEntriesPerPage
		if end > len(pids) {
			end = len(pids)
		}
		chunk := pids[start:end]

		entries := make([]beacon.PIDEntry, len(chunk))
		for j, p := range chunk {
			entries[j] = beacon.PIDEntry{PID: uint32(p.pid), ParentPID: uint32(p.ppid)}
		}
		payload, err := beacon.EncodePIDListPayload(generation, entries)
		if err != nil {
			return err
		}
		if err := w.WritePage(writer.CategoryPIDList, payload); err != nil {
			return err
		}
	}
	return nil
}

// publishRoundRobin writes one process's detail page each cycle, cycling
// through the full PID list round-robin style across calls — spec.md
// §4.5's Round-robin category: "One process's full detail (sections) each
// cycle, rotating through the PID list." It returns the cursor to resume
// from on the next call.
func publishRoundRobin(w *writer.Writer, pids []procPID, cursor int) int {
	if len(pids) == 0 {
		return 0
	}
	cursor %= len(pids)
	p := pids[cursor]

	entry := beacon.NewProcessEntry(p.pid, p.ppid, p.name, 0, 0, 0, 0, 0)
	sections := readSections(p.pid)
	if len(sections) > beacon.MaxSectionsPerPage {
		sections = sections[:beacon.MaxSectionsPerPage]
	}
	payload, err := beacon.EncodeProcessDetailPayload(entry, sections)
	if err == nil {
		_ = w.WritePage(writer.CategoryRoundRobin, payload)
	}

	return (cursor + 1) % len(pids)
}

// publishCamera writes detail for a single pinned PID every cycle, spec.md
// §4.5's Camera category: "One specific, operator-chosen PID, every
// cycle."
func publishCamera(w *writer.Writer, focusPID int) error {
	p, err := readProcessInfo(focusPID)
	if err != nil {
		return err
	}
	entry := beacon.NewProcessEntry(p.pid, p.ppid, p.name, 0, 0, 0, 0, 0)
	sections := readSections(p.pid)
	if len(sections) > beacon.MaxSectionsPerPage {
		sections = sections[:beacon.MaxSectionsPerPage]
	}
	payload, err := beacon.EncodeProcessDetailPayload(entry, sections)
	if err != nil {
		return err
	}
	return w.WritePage(writer.CategoryCamera, payload)
}

// readSections parses /proc/<pid>/maps into SectionEntry rows, the
// structured counterpart to the raw maps text the triggered-mode companion
// embeds verbatim (companion_triggered.c's write_memory_maps()).
func readSections(pid int) []beacon.SectionEntry {
	data, err := os.ReadFile(procPath(pid, "maps"))
	if err != nil {
		return nil
	}
	return parseMaps(data)
}
