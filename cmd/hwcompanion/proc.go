package main

import (
	"os"
	"strconv"
	"strings"
)

// procPID is one row read_process_info() in
// original_source/companion_triggered.c would have produced: just enough
// identity to populate a PIDEntry or, with a name, a ProcessEntry.
type procPID struct {
	pid  int
	ppid int
	name string
}

// readAllPIDs walks /proc the way companion_triggered.c's write_pid_list()
// does — list numerically-named entries under /proc, then read each one's
// comm and stat — except here it is os.ReadDir and os.ReadFile rather than
// opendir()/fopen(), and a parse failure for one process (it exited mid-scan)
// is skipped instead of aborting the whole walk.
func readAllPIDs() ([]procPID, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	pids := make([]procPID, 0, len(entries))
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue // not a PID directory (e.g. "self", "net", "cpuinfo")
		}
		p, err := readProcessInfo(pid)
		if err != nil {
			continue // process exited between ReadDir and the read
		}
		pids = append(pids, p)
	}
	return pids, nil
}

// readProcessInfo reads /proc/<pid>/comm and /proc/<pid>/stat, the same two
// files companion_triggered.c's read_process_info() opens, for one process's
// name and parent PID.
func readProcessInfo(pid int) (procPID, error) {
	comm, err := os.ReadFile(procPath(pid, "comm"))
	if err != nil {
		return procPID{}, err
	}
	name := strings.TrimSuffix(string(comm), "\n")

	stat, err := os.ReadFile(procPath(pid, "stat"))
	if err != nil {
		return procPID{}, err
	}
	ppid, err := parsePPIDFromStat(string(stat))
	if err != nil {
		return procPID{}, err
	}

	return procPID{pid: pid, ppid: ppid, name: name}, nil
}

// parsePPIDFromStat extracts field 4 (ppid) of /proc/<pid>/stat. Field 2
// (comm) is parenthesized and may itself contain spaces or closing parens,
// so parsing starts after the last ')' rather than naively splitting on
// spaces, the same care the C original takes by scanning past the comm
// field before sscanf'ing the rest.
func parsePPIDFromStat(stat string) (int, error) {
	close := strings.LastIndexByte(stat, ')')
	if close < 0 || close+2 >= len(stat) {
		return 0, strconv.ErrSyntax
	}
	fields := strings.Fields(stat[close+2:])
	// fields[0] is state, fields[1] is ppid (stat fields 3 and 4).
	if len(fields) < 2 {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(fields[1])
}

func procPath(pid int, file string) string {
	return "/proc/" + strconv.Itoa(pid) + "/" + file
}
