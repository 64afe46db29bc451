package pagewalk

const (
	arm64ShiftL0 = 39
	arm64ShiftL1 = 30
	arm64ShiftL2 = 21
	arm64ShiftL3 = 12

	// descVALID is bit 0 of every level's descriptor: set when it points
	// somewhere (to a table or a block/page).
	descVALID = 1 << 0
	// descTABLE is bit 1: set at L0..L2 when the descriptor points to a
	// next-level table rather than describing a huge-page block.
	descTABLE = 1 << 1

	// arm64AddrMask extracts bits [47:12] of a table/page descriptor —
	// the output address field for a 4 KiB-granule, 48-bit-VA walk.
	arm64AddrMask = 0x0000FFFFFFFFF000
)

// ARM64Walker walks a 4 KiB-granule, 48-bit-VA, four-level (L0..L3) ARM64
// page table, per spec.md §4.3's ARM64 policy.
type ARM64Walker struct {
	mem           PhysReader
	primaryRoot   uint64
	secondaryRoot uint64
	hasSecondary  bool
}

// NewARM64Walker returns a Walker reading page-table entries through mem.
func NewARM64Walker(mem PhysReader) *ARM64Walker {
	return &ARM64Walker{mem: mem}
}

func (w *ARM64Walker) SetPageTableBase(primary uint64, secondary *uint64) {
	w.primaryRoot = primary &^ pageMask
	if secondary != nil {
		w.secondaryRoot = *secondary &^ pageMask
		w.hasSecondary = true
	} else {
		w.hasSecondary = false
	}
}

func (w *ARM64Walker) PageSize() uint64 { return pageSize }

func (w *ARM64Walker) ArchitectureName() string { return "arm64" }

// Translate implements the ARM64 four-level walk. The walker chooses the
// primary root when VA[47]=0 and the secondary root when VA[47]=1 — a
// simplification of the real TCR-controlled TTBR0/TTBR1 split, carried
// unchanged from spec.md §4.3 and §9.
func (w *ARM64Walker) Translate(gva uint64) uint64 {
	root := w.primaryRoot
	if gva&(1<<47) != 0 {
		if !w.hasSecondary {
			return 0
		}
		root = w.secondaryRoot
	}

	tableBase := root

	// L0
	entry, ok := w.walkLevel(tableBase, gva, arm64ShiftL0)
	if !ok {
		return 0
	}
	if entry&descVALID == 0 || entry&descTABLE == 0 {
		return 0 // L0 must always be a table entry
	}
	tableBase = entry & arm64AddrMask

	// L1
	entry, ok = w.walkLevel(tableBase, gva, arm64ShiftL1)
	if !ok {
		return 0
	}
	if entry&descVALID == 0 {
		return 0
	}
	if entry&descTABLE == 0 {
		// 1 GiB block leaf.
		const blockShift = arm64ShiftL1
		const blockMask = (uint64(1) << blockShift) - 1
		return (entry & arm64AddrMask &^ blockMask) | (gva & blockMask)
	}
	tableBase = entry & arm64AddrMask

	// L2
	entry, ok = w.walkLevel(tableBase, gva, arm64ShiftL2)
	if !ok {
		return 0
	}
	if entry&descVALID == 0 {
		return 0
	}
	if entry&descTABLE == 0 {
		// 2 MiB block leaf.
		const blockShift = arm64ShiftL2
		const blockMask = (uint64(1) << blockShift) - 1
		return (entry & arm64AddrMask &^ blockMask) | (gva & blockMask)
	}
	tableBase = entry & arm64AddrMask

	// L3: any valid descriptor is a 4 KiB page.
	entry, ok = w.walkLevel(tableBase, gva, arm64ShiftL3)
	if !ok {
		return 0
	}
	if entry&descVALID == 0 {
		return 0
	}
	return (entry & arm64AddrMask) | (gva & pageMask)
}

// walkLevel reads the descriptor at tableBase indexed by the 9 VA bits
// starting at shift.
func (w *ARM64Walker) walkLevel(tableBase, gva uint64, shift uint) (uint64, bool) {
	index := (gva >> shift) & 0x1FF
	return readEntry(w.mem, tableBase+index*8)
}

func (w *ARM64Walker) TranslateRange(startGVA uint64, nPages int) []uint64 {
	return translateRangeGeneric(w, startGVA, nPages)
}
