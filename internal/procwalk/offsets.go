package procwalk

// KernelOffsets gives byte offsets into a Linux task_struct (and its
// embedded/linked mm_struct) needed to reconstruct a ProcessRecord, per
// spec.md §4.4.
type KernelOffsets struct {
	// Label identifies the kernel version family this offset set targets,
	// for logging only.
	Label string

	Pid        uint64
	Comm       uint64 // comm[16]
	TasksNext  uint64
	TasksPrev  uint64
	Mm         uint64
	Parent     uint64
	ThreadGroupNext uint64

	// mm_struct-relative offsets.
	MmPgd       uint64
	MmStartCode uint64
	MmEndCode   uint64
	MmStartData uint64
	MmEndData   uint64
}

// KnownOffsetSets is the registry of well-known offset sets covering
// common kernel minor versions, per spec.md §4.4: "A registry of
// well-known offset sets covers common kernel minor versions;
// AutoDetectOffsets picks the first set that validates against the
// candidate root task." These are starting points for validation, not a
// guarantee any one matches a given guest exactly — AutoDetectOffsets is
// the arbiter.
var KnownOffsetSets = []KernelOffsets{
	{
		Label:           "5.4-5.10-x86_64",
		Pid:             0x398,
		Comm:            0x670,
		TasksNext:       0x3a8,
		TasksPrev:       0x3b0,
		Mm:              0x3e0,
		Parent:          0x4e8,
		ThreadGroupNext: 0x508,
		MmPgd:           0x48,
		MmStartCode:     0x2d0,
		MmEndCode:       0x2d8,
		MmStartData:     0x2e0,
		MmEndData:       0x2e8,
	},
	{
		Label:           "5.15-6.1-x86_64",
		Pid:             0x448,
		Comm:            0x738,
		TasksNext:       0x458,
		TasksPrev:       0x460,
		Mm:              0x498,
		Parent:          0x5b0,
		ThreadGroupNext: 0x5d0,
		MmPgd:           0x48,
		MmStartCode:     0x2d0,
		MmEndCode:       0x2d8,
		MmStartData:     0x2e0,
		MmEndData:       0x2e8,
	},
	{
		Label:           "6.1-6.6-arm64",
		Pid:             0x4e0,
		Comm:            0x7c8,
		TasksNext:       0x4f0,
		TasksPrev:       0x4f8,
		Mm:              0x530,
		Parent:          0x648,
		ThreadGroupNext: 0x668,
		MmPgd:           0x50,
		MmStartCode:     0x2e8,
		MmEndCode:       0x2f0,
		MmStartData:     0x2f8,
		MmEndData:       0x300,
	},
}
