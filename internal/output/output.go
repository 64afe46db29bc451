// Package output centralizes how cmd/hwintro renders results, the same
// role the teacher's internal/output plays for its CLI: a package-level
// flag mirror set once from the root command's PersistentPreRunE, plus a
// JSON printer every subcommand shares instead of rolling its own.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// Exit codes for cmd/hwintro. Its main() exits with ExitError on any
// error; the other non-zero codes are not used by it.
const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitNetwork  = 2
	ExitNotFound = 4
)

var (
	flagJSON    bool
	flagQuiet   bool
	flagVerbose bool
)

// SetFlags is called by the root command's PersistentPreRunE to propagate
// the --json/--quiet/--verbose flag values to every subcommand.
func SetFlags(jsonMode, quiet, verbose bool) {
	flagJSON = jsonMode
	flagQuiet = quiet
	flagVerbose = verbose
}

// IsJSON reports whether --json mode is active.
func IsJSON() bool { return flagJSON }

// IsQuiet reports whether --quiet mode is active.
func IsQuiet() bool { return flagQuiet }

// IsVerbose reports whether --verbose mode is active.
func IsVerbose() bool { return flagVerbose }

// PrintJSON marshals v as indented JSON to w.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// PrintError writes a JSON error envelope to w.
func PrintError(w io.Writer, code, message string) error {
	return PrintJSON(w, map[string]string{"error": code, "message": message})
}
