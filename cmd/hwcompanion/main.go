// Command hwcompanion is the guest-side half of the beacon protocol: a
// cooperating program that runs inside the guest (GOOS=linux), reads the
// guest's own /proc filesystem the way original_source/companion_triggered.c
// does, and publishes what it finds through internal/beacon/writer for the
// host to discover by scanning the memory-backend file (spec.md §4.5, §6).
//
// Flag parsing here is deliberately the standard library's flag package,
// not cobra: spec.md §6's Companion CLI recognizes exactly four flags
// (--request, --focus, --keep-alive, --help) and is itself out of scope as
// "CLI/argument parsing" (spec.md §1) — this is the guest program, not the
// hwintro host tool, so it does not inherit hwintro's cobra tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamiefaye/haywire-sub001/internal/beacon"
	"github.com/jamiefaye/haywire-sub001/internal/beacon/writer"
)

func main() {
	var (
		requestHex string
		focusPID   int
		keepAlive  bool
	)
	fs := flag.NewFlagSet("hwcompanion", flag.ContinueOnError)
	fs.StringVar(&requestHex, "request", "", "Request id (hex), triggered mode")
	fs.IntVar(&focusPID, "focus", 0, "Focus PID for deep detail (camera category, or triggered-mode maps)")
	fs.BoolVar(&keepAlive, "keep-alive", false, "Keep beacon memory mapped after writing (triggered mode only)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nWith no --request, runs continuously, publishing PID-list, round-robin,")
		fmt.Fprintln(os.Stderr, "and (with --focus) camera beacon pages until interrupted.")
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if requestHex != "" {
		if err := runTriggered(requestHex, focusPID, keepAlive); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := runContinuous(focusPID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runTriggered implements spec.md §4.5's single-shot mode: write one
// beacon page plus a variable-length data tail (the PID list, and the
// focus PID's /proc/<pid>/maps text when --focus is given), print the
// BEACON_READY line, and exit — unless --keep-alive asks to hold the
// mapping open.
func runTriggered(requestHex string, focusPID int, keepAlive bool) error {
	requestID, err := parseHexOrDecimal(requestHex)
	if err != nil {
		return fmt.Errorf("invalid --request %q: %w", requestHex, err)
	}

	data, err := buildTriggeredPayload(focusPID)
	if err != nil {
		return err
	}

	result, err := writer.TriggeredWrite(sessionIDFromPID(), uint32(requestID), data)
	if err != nil {
		return err
	}

	fmt.Println(result.ReadyLine())

	if keepAlive {
		select {} // block forever; memory stays mapped until the process is killed
	}
	return result.Unmap()
}

// buildTriggeredPayload assembles the single-shot data tail: a PID list
// harvested from /proc, followed by the focus PID's /proc/<pid>/maps text
// verbatim when --focus is given — the same two-part shape
// original_source/companion_triggered.c's create_beacon() writes (pid_entry_t
// array, then an optional maps dump), re-expressed with the shared
// beacon.PIDListPayload/beacon.PIDEntry wire encoding instead of bespoke
// C structs. The page carrying it is a ClassResponseData page, which
// scanner.DecodePage returns header-only; the payload is read from the raw
// page bytes.
func buildTriggeredPayload(focusPID int) ([]byte, error) {
	pids, err := readAllPIDs()
	if err != nil {
		return nil, fmt.Errorf("hwcompanion: reading /proc: %w", err)
	}

	if len(pids) > beacon.MaxPIDEntriesPerPage {
		pids = pids[:beacon.MaxPIDEntriesPerPage]
	}
	entries := make([]beacon.PIDEntry, 0, len(pids))
	for _, p := range pids {
		entries = append(entries, beacon.PIDEntry{PID: uint32(p.pid), ParentPID: uint32(p.ppid)})
	}

	payload, err := beacon.EncodePIDListPayload(1, entries)
	if err != nil {
		return nil, err
	}

	if focusPID > 0 {
		maps, err := os.ReadFile(fmt.Sprintf("/proc/%d/maps", focusPID))
		if err != nil {
			return nil, fmt.Errorf("hwcompanion: reading maps for focus pid %d: %w", focusPID, err)
		}
		payload = append(payload, maps...)
	}

	return payload, nil
}

// runContinuous implements the push model: a Writer with all four
// categories, refreshed on a fixed interval until SIGINT/SIGTERM, the
// "push" counterpart to runTriggered's "pull" single-shot mode (spec.md
// §4.5).
func runContinuous(focusPID int) error {
	w, err := writer.New(sessionIDFromPID(), writer.Layout{
		MasterPages:     1,
		PIDListPages:    4,
		RoundRobinPages: 8,
		CameraPages:     2,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	generation := uint32(0)
	roundRobinCursor := 0

	for {
		pids, err := readAllPIDs()
		if err == nil {
			if err := publishPIDList(w, generation, pids); err != nil {
				fmt.Fprintln(os.Stderr, "hwcompanion: pid list:", err)
			}
			roundRobinCursor = publishRoundRobin(w, pids, roundRobinCursor)
			if focusPID > 0 {
				if err := publishCamera(w, focusPID); err != nil {
					fmt.Fprintln(os.Stderr, "hwcompanion: camera:", err)
				}
			}
			if err := w.WriteDiscoveryPage(nil); err != nil {
				fmt.Fprintln(os.Stderr, "hwcompanion: discovery page:", err)
			}
		}
		generation++

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func parseHexOrDecimal(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "0x%x", &v)
	if err == nil {
		return v, nil
	}
	_, err = fmt.Sscanf(s, "%x", &v)
	return v, err
}

// sessionIDFromPID derives a session id from the companion's own PID and
// start time, the same "xor with getpid()" idea
// original_source/companion_triggered.c uses for its request id when none
// is given, adapted here to avoid the zero and all-ones sentinels spec.md
// §4.6 reserves.
func sessionIDFromPID() uint32 {
	id := uint32(time.Now().UnixNano()) ^ uint32(os.Getpid())
	if id == beacon.InvalidSessionIDZero || id == beacon.InvalidSessionIDAll {
		id ^= 1
	}
	return id
}
