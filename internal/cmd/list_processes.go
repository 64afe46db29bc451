package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamiefaye/haywire-sub001/internal/engine"
	"github.com/jamiefaye/haywire-sub001/internal/output"
	"github.com/jamiefaye/haywire-sub001/internal/procwalk"
)

var listProcessesNameFilter string

func newListProcessesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "list-processes",
		Short: "Enumerate the guest's process list by walking kernel task structures",
		RunE:  runListProcesses,
	}
	c.Flags().StringVar(&listProcessesNameFilter, "name", "", "Only show processes whose name contains this substring")
	return c
}

func runListProcesses(cmd *cobra.Command, args []string) error {
	sess := engine.New(engine.Config{
		Architecture:   archFlag,
		MonitorHost:    monitorHost,
		MonitorPort:    monitorPort,
		MemBackendPath: memPath,
	}, nil)
	ctx := context.Background()
	if err := sess.Open(ctx); err != nil {
		return err
	}
	defer sess.Close()

	walker, err := sess.ProcessWalker(ctx, nil, procwalk.ScanRange{})
	if err != nil {
		return err
	}

	records, err := walker.EnumerateProcesses()
	if err != nil {
		return err
	}

	if listProcessesNameFilter != "" {
		records = walker.FindProcessesByName(listProcessesNameFilter)
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), records)
	}

	for _, r := range records {
		kernelTag := ""
		if r.PageTableBase == 0 {
			kernelTag = " (kernel thread)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8d %-16s ppid=%-8d pgd=0x%x%s\n",
			r.PID, r.Name, r.ParentPID, r.PageTableBase, kernelTag)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d processes\n", len(records))
	return nil
}
