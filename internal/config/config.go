// Package config loads the introspection engine's TOML configuration file,
// generalizing the teacher's find-upward-from-cwd .dhgrc discovery
// (internal/config/dhgrc.go in the teacher) to a structured document
// instead of a bare version string, and the teacher's config.toml
// marshaling style (internal/versions/meta.go's toml.Unmarshal/Marshal)
// for the document shape itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const fileName = ".hwintrorc.toml"

// Config is the engine's resolved configuration: where to find the
// hypervisor monitor, where the memory-backend file lives (when
// autodetection should be skipped), the companion's session id, and any
// user-supplied kernel-offset sets.
type Config struct {
	Monitor   MonitorConfig   `toml:"monitor"`
	MemBackend MemBackendConfig `toml:"membackend"`
	Companion CompanionConfig `toml:"companion"`
	Offsets   []OffsetsConfig `toml:"offsets"`
}

// MonitorConfig holds the hypervisor control-channel endpoint.
type MonitorConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// Transport selects "tcp" (the default, a QMP-like monitor port) or
	// "firecracker" (an API socket path in Host, Port ignored).
	Transport string `toml:"transport"`
}

// MemBackendConfig overrides memory-backend autodetection.
type MemBackendConfig struct {
	Path string `toml:"path"`
}

// CompanionConfig holds defaults for the guest-side companion.
type CompanionConfig struct {
	SessionID uint32 `toml:"session_id"`
}

// OffsetsConfig is a user-supplied kernel-offset set, in the same shape as
// procwalk.KernelOffsets. Nothing in this module converts it into a
// KernelOffsets; procwalk.AutoDetectOffsets tries only
// procwalk.KnownOffsetSets.
type OffsetsConfig struct {
	Label           string `toml:"label"`
	Pid             uint64 `toml:"pid"`
	Comm            uint64 `toml:"comm"`
	TasksNext       uint64 `toml:"tasks_next"`
	TasksPrev       uint64 `toml:"tasks_prev"`
	Mm              uint64 `toml:"mm"`
	Parent          uint64 `toml:"parent"`
	ThreadGroupNext uint64 `toml:"thread_group_next"`
	MmPgd           uint64 `toml:"mm_pgd"`
	MmStartCode     uint64 `toml:"mm_start_code"`
	MmEndCode       uint64 `toml:"mm_end_code"`
	MmStartData     uint64 `toml:"mm_start_data"`
	MmEndData       uint64 `toml:"mm_end_data"`
}

// Default returns a Config with the engine's baked-in defaults: a local
// QMP-like monitor on the conventional port, autodetection left to
// internal/membackend, and no offset overrides.
func Default() Config {
	return Config{
		Monitor: MonitorConfig{
			Host:      "127.0.0.1",
			Port:      4444,
			Transport: "tcp",
		},
	}
}

// Find walks up from startDir looking for .hwintrorc.toml, the same
// upward-search the teacher's FindDHGRC performs for .dhgrc.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	for {
		candidate := filepath.Join(dir, fileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Load reads and parses path into a Config seeded with Default() values,
// so a config file only needs to name the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", fileName, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", fileName, err)
	}
	return cfg, nil
}

// LoadFromEnvOrCWD resolves a config the way a CLI entry point does:
// HWI_CONFIG names an explicit file; otherwise Find walks up from cwd;
// otherwise Default() is used unmodified.
func LoadFromEnvOrCWD() (Config, error) {
	if explicit := os.Getenv("HWI_CONFIG"); explicit != "" {
		return Load(explicit)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Default(), nil
	}
	path, err := Find(cwd)
	if err != nil || path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Write serializes cfg as TOML into dir/.hwintrorc.toml, mirroring the
// teacher's WriteDHGRC.
func Write(dir string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", fileName, err)
	}
	return os.WriteFile(filepath.Join(dir, fileName), data, 0o644)
}
