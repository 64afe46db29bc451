package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamiefaye/haywire-sub001/internal/beacon"
	"github.com/jamiefaye/haywire-sub001/internal/engine"
	"github.com/jamiefaye/haywire-sub001/internal/output"
)

func newScanBeaconsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan-beacons",
		Short: "Sweep the memory-backend file for companion beacons",
		RunE:  runScanBeacons,
	}
}

// beaconSummary is the JSON-friendly view of one discovered beacon,
// deliberately flatter than scanner.BeaconInfo (callers of this CLI don't
// need the raw Header).
type beaconSummary struct {
	FileOffset uint64 `json:"file_offset"`
	SessionID  uint32 `json:"session_id"`
	Class      string `json:"class"`
	PageIndex  uint32 `json:"page_index"`
	TotalPages uint32 `json:"total_pages"`
	Suspicious bool   `json:"suspicious,omitempty"`
}

func runScanBeacons(cmd *cobra.Command, args []string) error {
	sess := engine.New(engine.Config{
		Architecture:   archFlag,
		MonitorHost:    monitorHost,
		MonitorPort:    monitorPort,
		MemBackendPath: memPath,
	}, nil)
	if err := sess.Open(context.Background()); err != nil {
		return err
	}
	defer sess.Close()

	idx, err := sess.ScanBeacons()
	if err != nil {
		return err
	}

	summaries := make([]beaconSummary, 0, len(idx.Beacons))
	for _, b := range idx.Beacons {
		summaries = append(summaries, beaconSummary{
			FileOffset: b.FileOffset,
			SessionID:  b.Header.SessionID,
			Class:      beaconClassName(b.Header.BeaconClass),
			PageIndex:  b.Header.PageIndex,
			TotalPages: b.Header.TotalPages,
			Suspicious: b.Suspicious,
		})
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), summaries)
	}

	for _, s := range summaries {
		tag := ""
		if s.Suspicious {
			tag = " (suspicious)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "0x%08x  session=%d  class=%-14s page=%d/%d%s\n",
			s.FileOffset, s.SessionID, s.Class, s.PageIndex, s.TotalPages, tag)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d beacons found across %d sessions\n", len(idx.Beacons), len(idx.BySession))
	return nil
}

func beaconClassName(raw uint32) string {
	return beacon.Class(raw).String()
}
