package procwalk

import (
	"context"
	"strings"
	"unicode"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
	"github.com/jamiefaye/haywire-sub001/internal/monitor"
)

// MemReader reads size bytes at a kernel address already resolved to
// whatever address space the caller's composed translator understands
// (typically a guest physical address, via a kernel linear-mapping
// translator). Linux.EnumerateProcesses never assumes a particular
// address space beyond "whatever this Read can service".
type MemReader interface {
	Read(addr uint64, size int) ([]byte, error)
}

// ScanRange bounds strategy (c) of root-task detection: scanning kernel
// data for a swapper task structure (spec.md §4.4, strategy (c)).
type ScanRange struct {
	Start uint64
	End   uint64
	Step  uint64
}

// Linux is the Linux process walker, per spec.md §4.4's Linux variant.
type Linux struct {
	mem            MemReader
	offsets        KernelOffsets
	kernelSpaceMin uint64

	root     uint64
	records  []ProcessRecord
	byPID    map[int]int
}

// NewLinux returns a Linux walker reading through mem with the given
// offset set. kernelSpaceMin is the lowest address considered
// kernel-space, used to validate a root-task candidate.
func NewLinux(mem MemReader, offsets KernelOffsets, kernelSpaceMin uint64) *Linux {
	return &Linux{mem: mem, offsets: offsets, kernelSpaceMin: kernelSpaceMin}
}

// AutoDetectOffsets tries each set in KnownOffsetSets against candidate
// (a root-task address already known some other way), returning the first
// that validates, per spec.md §4.4.
func AutoDetectOffsets(mem MemReader, candidate uint64, kernelSpaceMin uint64) (KernelOffsets, error) {
	for _, offsets := range KnownOffsetSets {
		w := NewLinux(mem, offsets, kernelSpaceMin)
		if w.validateCandidate(candidate) {
			return offsets, nil
		}
	}
	return KernelOffsets{}, apperr.New(apperr.OffsetsUnknown, "no known offset set validated against candidate root task")
}

// DetectRootTask obtains a candidate root-task address using the three
// strategies of spec.md §4.4, in order: (a) ask the monitor for a current
// task pointer, (b) probe candidateBases, (c) scan scanRange for a
// swapper-like task. The first candidate that validates wins.
func (w *Linux) DetectRootTask(ctx context.Context, mon monitor.Client, candidateBases []uint64, scanRange ScanRange) (uint64, error) {
	if mon != nil {
		if addr, ok := w.detectViaMonitor(ctx, mon); ok {
			w.root = addr
			return addr, nil
		}
	}

	for _, base := range candidateBases {
		if w.validateCandidate(base) {
			w.root = base
			return base, nil
		}
	}

	if addr, ok := w.scanForSwapper(scanRange); ok && w.validateCandidate(addr) {
		w.root = addr
		return addr, nil
	}

	return 0, apperr.New(apperr.OffsetsUnknown, "no root task candidate validated")
}

// detectViaMonitor implements strategy (a): ask the monitor for a current
// task pointer (the reply's task-addr field), per search_pids.cpp/find_processes_qmp.cpp's
// "query-current-task" bootstrap pattern.
func (w *Linux) detectViaMonitor(ctx context.Context, mon monitor.Client) (uint64, bool) {
	resp, err := mon.Query(ctx, monitor.Command{Execute: "query-current-task"})
	if err != nil {
		return 0, false
	}
	fields, ok := resp.Return.(map[string]any)
	if !ok {
		return 0, false
	}
	taskAddr, ok := toUint64(fields["task-addr"])
	if !ok {
		return 0, false
	}
	if !w.validateCandidate(taskAddr) {
		return 0, false
	}
	return taskAddr, true
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		return uint64(n), true
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	default:
		return 0, false
	}
}

// scanForSwapper implements strategy (c): scan kernel data for a structure
// whose pid field is zero and whose comm begins with "swapper".
func (w *Linux) scanForSwapper(r ScanRange) (uint64, bool) {
	if r.Step == 0 {
		return 0, false
	}
	for addr := r.Start; addr < r.End; addr += r.Step {
		pid, ok := w.readPID(addr)
		if !ok || pid != 0 {
			continue
		}
		comm, ok := w.readComm(addr)
		if !ok {
			continue
		}
		if strings.HasPrefix(strings.ToLower(comm), "swapper") {
			return addr, true
		}
	}
	return 0, false
}

// validateCandidate implements spec.md §4.4 step 2: the address is
// kernel-space; pid decodes to [0, 65535]; comm is null-terminated
// printable ASCII; following tasks.next yields a pointer whose
// back-adjusted tasks.next - offsets.tasks_next is also valid.
func (w *Linux) validateCandidate(addr uint64) bool {
	if addr < w.kernelSpaceMin {
		return false
	}
	pid, ok := w.readPID(addr)
	if !ok || pid < 0 || pid > 65535 {
		return false
	}
	if _, ok := w.readComm(addr); !ok {
		return false
	}

	next, ok := w.readUint64(addr + w.offsets.TasksNext)
	if !ok || next < w.offsets.TasksNext {
		return false
	}
	nextTask := next - w.offsets.TasksNext
	if nextTask < w.kernelSpaceMin {
		return false
	}
	nextPid, ok := w.readPID(nextTask)
	return ok && nextPid >= 0 && nextPid <= 65535
}

func (w *Linux) readPID(taskAddr uint64) (int, bool) {
	v, ok := w.readUint32(taskAddr + w.offsets.Pid)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func (w *Linux) readComm(taskAddr uint64) (string, bool) {
	data, err := w.mem.Read(taskAddr+w.offsets.Comm, 16)
	if err != nil {
		return "", false
	}
	end := len(data)
	for i, b := range data {
		if b == 0 {
			end = i
			break
		}
	}
	if end == len(data) {
		return "", false // not null-terminated within 16 bytes
	}
	name := string(data[:end])
	for _, r := range name {
		if !unicode.IsPrint(r) || r > unicode.MaxASCII {
			return "", false
		}
	}
	return name, true
}

func (w *Linux) readUint64(addr uint64) (uint64, bool) {
	data, err := w.mem.Read(addr, 8)
	if err != nil || len(data) != 8 {
		return 0, false
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v, true
}

func (w *Linux) readUint32(addr uint64) (uint32, bool) {
	data, err := w.mem.Read(addr, 4)
	if err != nil || len(data) != 4 {
		return 0, false
	}
	return uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24, true
}

// EnumerateProcesses walks the task list starting at the detected root,
// per spec.md §4.4's enumeration algorithm.
func (w *Linux) EnumerateProcesses() ([]ProcessRecord, error) {
	if w.root == 0 {
		return nil, apperr.New(apperr.OffsetsUnknown, "root task not detected")
	}

	visited := make(map[uint64]bool)
	var records []ProcessRecord

	current := w.root
	for i := 0; i < MaxProcesses; i++ {
		if visited[current] {
			break
		}
		visited[current] = true

		rec, ok := w.readRecord(current)
		if !ok {
			break
		}
		records = append(records, rec)

		next, ok := w.readUint64(current + w.offsets.TasksNext)
		if !ok {
			break
		}
		nextTask := next - w.offsets.TasksNext
		if nextTask == w.root {
			break
		}
		current = nextTask
	}

	w.records = records
	w.byPID = make(map[int]int, len(records))
	for i, r := range records {
		w.byPID[r.PID] = i
	}
	return records, nil
}

func (w *Linux) readRecord(taskAddr uint64) (ProcessRecord, bool) {
	pid, ok := w.readPID(taskAddr)
	if !ok {
		return ProcessRecord{}, false
	}
	comm, ok := w.readComm(taskAddr)
	if !ok {
		return ProcessRecord{}, false
	}

	rec := ProcessRecord{
		PID:            pid,
		Name:           comm,
		TaskStructAddr: taskAddr,
	}

	if mm, ok := w.readUint64(taskAddr + w.offsets.Mm); ok && mm != 0 {
		rec.MMStructAddr = mm
		if pgd, ok := w.readUint64(mm + w.offsets.MmPgd); ok {
			rec.PageTableBase = pgd
		}
		startCode, okSC := w.readUint64(mm + w.offsets.MmStartCode)
		endData, okED := w.readUint64(mm + w.offsets.MmEndData)
		if okSC && okED && endData > startCode {
			rec.VirtualSize = endData - startCode
		}
	}

	if parentPtr, ok := w.readUint64(taskAddr + w.offsets.Parent); ok && parentPtr != 0 {
		if ppid, ok := w.readPID(parentPtr); ok {
			rec.ParentPID = ppid
		}
	}

	return rec, true
}

func (w *Linux) FindProcess(pid int) (ProcessRecord, bool) {
	idx, ok := w.byPID[pid]
	if !ok {
		return ProcessRecord{}, false
	}
	return w.records[idx], true
}

// FindProcessesByName returns records whose Name contains substring,
// case-insensitively, per original_source's search_pids.cpp.
func (w *Linux) FindProcessesByName(substring string) []ProcessRecord {
	needle := strings.ToLower(substring)
	var out []ProcessRecord
	for _, r := range w.records {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			out = append(out, r)
		}
	}
	return out
}
