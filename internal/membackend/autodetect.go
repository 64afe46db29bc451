package membackend

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// candidateFileRE matches the case-insensitive filename pattern spec.md
// §4.2 names for autodetection: "(qemu|vm|haywire).*mem.*".
var candidateFileRE = regexp.MustCompile(`(?i)(qemu|vm|haywire).*mem.*`)

// minCandidateSize is the smallest file AutoDetect will consider a
// plausible memory-backend file (spec.md §4.2: "exceeding a minimum size
// (>=1 MiB)").
const minCandidateSize = 1 << 20

// defaultCandidateDirs are the conventional locations a hypervisor places
// its shared-memory-backend file.
var defaultCandidateDirs = []string{"/dev/shm", "/tmp", "/var/lib/libvirt/qemu"}

// AutoDetect scans running hypervisor processes' command lines for an
// explicit memory-file path argument, then probes conventional directories
// for a file matching the memory-backend naming convention and exceeding
// the minimum size. It returns the first usable candidate found,
// preferring an explicit command-line argument over directory scanning
// since the former is an authoritative answer. Directory scanning follows
// the same "walk candidate paths, stat, filter" shape the teacher's
// discovery package uses when it walks /proc to map sockets to PIDs.
func AutoDetect(extraDirs ...string) (string, bool) {
	if path, ok := findFromHypervisorCmdline(); ok {
		return path, true
	}

	dirs := append(append([]string{}, defaultCandidateDirs...), extraDirs...)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if !candidateFileRE.MatchString(entry.Name()) {
				continue
			}
			full := filepath.Join(dir, entry.Name())
			info, err := entry.Info()
			if err != nil || info.Size() < minCandidateSize {
				continue
			}
			return full, true
		}
	}
	return "", false
}

// memPathArgRE matches a hypervisor command-line argument that names a
// memory-backend file explicitly, e.g. "-object
// memory-backend-file,id=mem,mem-path=/dev/shm/qemu-mem,size=4G" or a bare
// "mem-path=..." token.
var memPathArgRE = regexp.MustCompile(`mem-path=([^\s,]+)`)

// findFromHypervisorCmdline scans /proc/*/cmdline for a running process
// whose arguments name a memory-backend file explicitly, the same
// /proc-walking technique the teacher's discovery package uses to map a
// listening socket's inode back to the owning PID.
func findFromHypervisorCmdline() (string, bool) {
	procEntries, err := os.ReadDir("/proc")
	if err != nil {
		return "", false
	}
	for _, entry := range procEntries {
		if !entry.IsDir() {
			continue
		}
		if _, err := filepathAtoi(entry.Name()); err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "cmdline"))
		if err != nil {
			continue
		}
		cmdline := strings.ReplaceAll(string(raw), "\x00", " ")
		m := memPathArgRE.FindStringSubmatch(cmdline)
		if m == nil {
			continue
		}
		if info, err := os.Stat(m[1]); err == nil && info.Size() >= minCandidateSize {
			return m[1], true
		}
	}
	return "", false
}

// filepathAtoi reports whether name is entirely decimal digits, the way a
// /proc PID directory name always is.
func filepathAtoi(name string) (int, error) {
	n := 0
	if name == "" {
		return 0, os.ErrInvalid
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
