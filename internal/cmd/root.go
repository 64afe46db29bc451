// Package cmd implements the hwintro CLI command tree, following the
// teacher's internal/cmd/root.go shape: a persistent flag set validated in
// PersistentPreRunE, JSON/quiet/verbose output flags propagated through
// internal/output, and an environment-variable override (the teacher's
// DHG_JSON becomes HWI_JSON here).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamiefaye/haywire-sub001/internal/output"
)

var (
	jsonFlag    bool
	verboseFlag bool
	quietFlag   bool
	configPath  string
	archFlag    string
	monitorHost string
	monitorPort int
	memPath     string
)

// Execute builds the root command and runs it, the package's sole entry
// point — the same shape as the teacher's cmd.Execute().
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree without running it, so tests can set
// args/output and call Execute() themselves.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hwintro",
		Short:         "Out-of-band hypervisor memory introspector",
		Long:          "hwintro — reconstructs a guest's process and virtual-memory state from its memory-backend file and hypervisor monitor, without running any agent inside the guest.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag && quietFlag {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			if jsonFlag {
				quietFlag = true
			}
			output.SetFlags(jsonFlag, quietFlag, verboseFlag)
			return nil
		},
	}

	pflags := root.PersistentFlags()
	pflags.BoolVarP(&jsonFlag, "json", "j", false, "Output as JSON")
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Extra detail to stderr")
	pflags.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	pflags.StringVar(&configPath, "config", "", "Path to .hwintrorc.toml (accepted; no subcommand loads it)")
	pflags.StringVar(&archFlag, "arch", "x86_64", "Target architecture (arm64 or x86_64)")
	pflags.StringVar(&monitorHost, "monitor-host", "127.0.0.1", "Hypervisor monitor host")
	pflags.IntVar(&monitorPort, "monitor-port", 4444, "Hypervisor monitor port")
	pflags.StringVar(&memPath, "mem-path", "", "Memory-backend file path (default: autodetect)")

	if v := os.Getenv("HWI_JSON"); v == "1" {
		jsonFlag = true
	}

	root.AddCommand(newScanBeaconsCmd())
	root.AddCommand(newListProcessesCmd())
	root.AddCommand(newTranslateCmd())

	return root
}
