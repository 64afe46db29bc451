package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jamiefaye/haywire-sub001/internal/engine"
	"github.com/jamiefaye/haywire-sub001/internal/output"
)

var translatePageTableBase string

func newTranslateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "translate <gva>",
		Short: "Translate a guest virtual address to a guest physical address",
		Args:  cobra.ExactArgs(1),
		RunE:  runTranslate,
	}
	c.Flags().StringVar(&translatePageTableBase, "pgd", "", "Page-table base (GPA), hex; required")
	_ = c.MarkFlagRequired("pgd")
	return c
}

func runTranslate(cmd *cobra.Command, args []string) error {
	gva, err := strconv.ParseUint(trimHexPrefix(args[0]), 16, 64)
	if err != nil {
		return fmt.Errorf("invalid gva %q: %w", args[0], err)
	}
	pgd, err := strconv.ParseUint(trimHexPrefix(translatePageTableBase), 16, 64)
	if err != nil {
		return fmt.Errorf("invalid --pgd %q: %w", translatePageTableBase, err)
	}

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

	gpa := sess.Translate(gva, pgd)

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"gva": gva, "gpa": gpa, "unmapped": gpa == 0,
		})
	}

	if gpa == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "0x%x -> unmapped\n", gva)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "0x%x -> 0x%x\n", gva, gpa)
	}
	return nil
}

func trimHexPrefix(s string) string {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
