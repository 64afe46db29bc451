// Command hwintro is a thin demonstration harness over internal/engine:
// it is not a deliverable in its own right (CLI argument parsing is out of
// scope per spec.md §1, an external collaborator), mirroring how the
// teacher's main.go is a two-line delegator to internal/cmd.
package main

import (
	"fmt"
	"os"

	"github.com/jamiefaye/haywire-sub001/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
