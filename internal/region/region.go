// Package region implements the RAM region table: the GPA<->file-offset
// mapping that binds the memory-backend file to the guest's physical
// address space, discovered by querying the hypervisor monitor's
// memory-tree command.
package region

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
	"github.com/jamiefaye/haywire-sub001/internal/monitor"
)

// State is the region mapper's discovery state machine:
// Undiscovered -> Querying -> Discovered.
type State int

const (
	Undiscovered State = iota
	Querying
	Discovered
)

func (s State) String() string {
	switch s {
	case Querying:
		return "querying"
	case Discovered:
		return "discovered"
	default:
		return "undiscovered"
	}
}

// Region is one contiguous RAM window: guest physical addresses
// [GPAStart, GPAEnd] back onto the memory-backend file starting at
// FileOffset.
type Region struct {
	GPAStart   uint64
	GPAEnd     uint64
	FileOffset uint64
	Size       uint64
	Name       string
}

// Mapper is the region table plus its discovery state. The zero value is
// not ready for use; construct with NewMapper.
type Mapper struct {
	state        State
	regions      []Region
	archBase     uint64
}

// NewMapper returns an Undiscovered Mapper. archBase is the
// architecture-default RAM base used to build the synthetic fallback
// region if monitor discovery fails (e.g. 0x4000_0000 for ARM64).
func NewMapper(archBase uint64) *Mapper {
	return &Mapper{archBase: archBase}
}

// State reports the mapper's current discovery state.
func (m *Mapper) State() State { return m.state }

// Regions returns the discovered region table in ascending GPA order.
func (m *Mapper) Regions() []Region {
	out := make([]Region, len(m.regions))
	copy(out, m.regions)
	return out
}

// Discover queries mon for the memory tree and builds the region table.
// fileSize is the memory-backend file's size, used to build the
// single-region fallback when monitor discovery yields nothing usable;
// discovered regions are not checked against it. Discover never returns an error
// that leaves the mapper unusable: a query or parse failure simply falls
// back to the synthetic region, matching spec.md §4.2's state machine,
// which only requires "at least one RAM region" to reach Discovered.
func (m *Mapper) Discover(ctx context.Context, mon monitor.Client, fileSize uint64) error {
	m.state = Querying

	var regions []Region
	if mon != nil {
		if text, err := mon.QueryMemoryTree(ctx); err == nil {
			regions = parseMtreeOutput(text)
		}
	}

	if len(regions) == 0 {
		regions = []Region{{
			GPAStart:   m.archBase,
			GPAEnd:     m.archBase + fileSize - 1,
			FileOffset: 0,
			Size:       fileSize,
			Name:       "synthetic",
		}}
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].GPAStart < regions[j].GPAStart })

	m.regions = regions
	m.state = Discovered
	return nil
}

// TranslateGPAToFileOffset returns the memory-backend file offset
// corresponding to gpa, or -1 if gpa falls outside every known region. It
// never panics or returns an error type, per spec.md §4.2.
func (m *Mapper) TranslateGPAToFileOffset(gpa uint64) int64 {
	for _, r := range m.regions {
		if gpa >= r.GPAStart && gpa <= r.GPAEnd {
			return int64(r.FileOffset + (gpa - r.GPAStart))
		}
	}
	return -1
}

// mtreeLineRE matches the canonical "info mtree -f" flat-view line form:
// "hex-hex: name ... (prio N, ram)" — the trailing descriptor is free text
// that we only use to confirm the region is backed RAM.
var mtreeLineRE = regexp.MustCompile(`^([0-9a-fA-F]+)-([0-9a-fA-F]+)\s*:\s*(.+)$`)

// parseMtreeOutput extracts RAM regions from a monitor memory-tree text
// dump. It tolerates both the full "(prio N, ram)" form and the simpler
// "hex-hex : name" fallback form mentioned in spec.md §6; a line is kept
// only when its descriptor mentions "ram" or "mem" (case-insensitive), or
// when no descriptor is present at all (the bare fallback form).
func parseMtreeOutput(text string) []Region {
	var regions []Region
	fileOffset := uint64(0)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := mtreeLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		startStr, endStr, rest := m[1], m[2], m[3]

		lowerRest := strings.ToLower(rest)
		hasDescriptor := strings.Contains(rest, "(")
		if hasDescriptor && !strings.Contains(lowerRest, "ram") && !strings.Contains(lowerRest, "mem") {
			continue
		}

		start, err := strconv.ParseUint(startStr, 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(endStr, 16, 64)
		if err != nil || end < start {
			continue
		}

		name := strings.TrimSpace(rest)
		if idx := strings.IndexAny(name, "( \t"); idx >= 0 {
			name = name[:idx]
		}

		size := end - start + 1
		regions = append(regions, Region{
			GPAStart:   start,
			GPAEnd:     end,
			FileOffset: fileOffset,
			Size:       size,
			Name:       name,
		})
		fileOffset += size
	}

	return regions
}

// ParseMtreeOutput is the exported form of parseMtreeOutput, for callers
// (tests, diagnostics) that want to inspect region parsing without a live
// monitor connection.
func ParseMtreeOutput(text string) []Region { return parseMtreeOutput(text) }

// describeRegion renders a region for logging/diagnostics.
func describeRegion(r Region) string {
	return fmt.Sprintf("%s: [0x%x, 0x%x] -> file+0x%x (0x%x bytes)", r.Name, r.GPAStart, r.GPAEnd, r.FileOffset, r.Size)
}

// validateRegions checks the universal invariants from spec.md §8: each
// region's size matches its bounds, and no two regions overlap.
func validateRegions(regions []Region) error {
	for _, r := range regions {
		if r.GPAEnd-r.GPAStart+1 != r.Size {
			return apperr.New(apperr.Protocol, fmt.Sprintf("region %q has inconsistent size", r.Name))
		}
	}
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			a, b := regions[i], regions[j]
			if a.GPAEnd >= b.GPAStart && b.GPAEnd >= a.GPAStart {
				return apperr.New(apperr.Protocol, fmt.Sprintf("regions %q and %q overlap", a.Name, b.Name))
			}
		}
	}
	return nil
}
