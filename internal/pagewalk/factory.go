package pagewalk

import (
	"fmt"
	"strings"
)

// Config selects a Walker implementation and its architecture-specific
// options.
type Config struct {
	// Architecture names the target: "arm64" or "x86_64" (case
	// insensitive).
	Architecture string
	// Levels5 opts into x86-64's 57-bit, five-level mode. Ignored for
	// arm64.
	Levels5 bool
}

// New returns the Walker for cfg.Architecture, reading page-table entries
// through mem.
func New(cfg Config, mem PhysReader) (Walker, error) {
	switch strings.ToLower(cfg.Architecture) {
	case "arm64", "aarch64":
		return NewARM64Walker(mem), nil
	case "x86_64", "x86-64", "amd64":
		return NewX86_64Walker(mem, cfg.Levels5), nil
	default:
		return nil, fmt.Errorf("pagewalk: unsupported architecture %q", cfg.Architecture)
	}
}
