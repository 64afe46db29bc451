package pagewalk

const (
	x86ShiftPML4 = 39
	x86ShiftPDPT = 30
	x86ShiftPD   = 21
	x86ShiftPT   = 12
	x86ShiftPML5 = 48

	ptePRESENT  = 1 << 0
	pteWRITE    = 1 << 1
	pteUSER     = 1 << 2
	pteACCESSED = 1 << 5
	pteDIRTY    = 1 << 6
	ptePSE      = 1 << 7
	pteNX       = 1 << 63

	// pteAddrMask extracts bits [51:12], the physical-address field of an
	// x86-64 page-table entry.
	pteAddrMask = 0x000FFFFFFFFFF000
)

// X86_64Walker walks a 4 KiB-page x86-64 page table, with an optional
// fifth level (PML5) for 57-bit VA, per spec.md §4.3's x86-64 policy.
type X86_64Walker struct {
	mem     PhysReader
	root    uint64
	levels5 bool
}

// NewX86_64Walker returns a Walker reading page-table entries through mem.
// levels5 selects the optional 57-bit, five-level mode (spec.md §9: "a
// genuine extension point, left manual" — not auto-detected).
func NewX86_64Walker(mem PhysReader, levels5 bool) *X86_64Walker {
	return &X86_64Walker{mem: mem, levels5: levels5}
}

func (w *X86_64Walker) SetPageTableBase(primary uint64, secondary *uint64) {
	w.root = primary &^ pageMask
}

func (w *X86_64Walker) PageSize() uint64 { return pageSize }

func (w *X86_64Walker) ArchitectureName() string {
	if w.levels5 {
		return "x86_64-5level"
	}
	return "x86_64"
}

func (w *X86_64Walker) Translate(gva uint64) uint64 {
	tableBase := w.root

	if w.levels5 {
		entry, ok := w.walkLevel(tableBase, gva, x86ShiftPML5)
		if !ok || entry&ptePRESENT == 0 {
			return 0
		}
		tableBase = entry & pteAddrMask
	}

	// PML4
	entry, ok := w.walkLevel(tableBase, gva, x86ShiftPML4)
	if !ok || entry&ptePRESENT == 0 {
		return 0
	}
	tableBase = entry & pteAddrMask

	// PDPT
	entry, ok = w.walkLevel(tableBase, gva, x86ShiftPDPT)
	if !ok || entry&ptePRESENT == 0 {
		return 0
	}
	if entry&ptePSE != 0 {
		const blockShift = x86ShiftPDPT
		const blockMask = (uint64(1) << blockShift) - 1
		return (entry & pteAddrMask &^ blockMask) | (gva & blockMask)
	}
	tableBase = entry & pteAddrMask

	// PD
	entry, ok = w.walkLevel(tableBase, gva, x86ShiftPD)
	if !ok || entry&ptePRESENT == 0 {
		return 0
	}
	if entry&ptePSE != 0 {
		const blockShift = x86ShiftPD
		const blockMask = (uint64(1) << blockShift) - 1
		return (entry & pteAddrMask &^ blockMask) | (gva & blockMask)
	}
	tableBase = entry & pteAddrMask

	// PT
	entry, ok = w.walkLevel(tableBase, gva, x86ShiftPT)
	if !ok || entry&ptePRESENT == 0 {
		return 0
	}
	return (entry & pteAddrMask) | (gva & pageMask)
}

func (w *X86_64Walker) walkLevel(tableBase, gva uint64, shift uint) (uint64, bool) {
	index := (gva >> shift) & 0x1FF
	return readEntry(w.mem, tableBase+index*8)
}

func (w *X86_64Walker) TranslateRange(startGVA uint64, nPages int) []uint64 {
	return translateRangeGeneric(w, startGVA, nPages)
}
