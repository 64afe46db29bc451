// Package engine owns the introspection session: the monitor client, the
// memory backend, the region mapper, and the beacon index, wired together
// the way spec.md §5 describes their shared ownership ("The memory-backend
// mapping, the monitor socket, and the beacon index are owned by the
// engine session"). It hands each subsystem a component-tagged logrus
// entry, the same pattern the teacher's machine_linux.go follows when it
// builds one *logrus.Logger and passes firecracker.WithLogger(entry) into
// the SDK it wires up.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jamiefaye/haywire-sub001/internal/address"
	"github.com/jamiefaye/haywire-sub001/internal/apperr"
	"github.com/jamiefaye/haywire-sub001/internal/beacon/scanner"
	"github.com/jamiefaye/haywire-sub001/internal/membackend"
	"github.com/jamiefaye/haywire-sub001/internal/monitor"
	"github.com/jamiefaye/haywire-sub001/internal/pagewalk"
	"github.com/jamiefaye/haywire-sub001/internal/procwalk"
	"github.com/jamiefaye/haywire-sub001/internal/region"
)

// archDefaultBase is the synthetic fallback RAM base the region mapper
// uses when monitor discovery yields nothing usable, per spec.md §4.2 and
// §9: "0x4000_0000 for ARM64" for arm64, 0 for x86-64 (whole physical
// address space from zero is the conventional QEMU q35/pc layout below
// the low-memory hole).
var archDefaultBase = map[string]uint64{
	"arm64":   0x4000_0000,
	"aarch64": 0x4000_0000,
	"x86_64":  0,
	"x86-64":  0,
	"amd64":   0,
}

// kernelSpaceMin is the lowest address procwalk.Linux considers
// kernel-space when validating a root-task candidate, per architecture.
var kernelSpaceMin = map[string]uint64{
	"arm64":   0xFFFF_0000_0000_0000,
	"aarch64": 0xFFFF_0000_0000_0000,
	"x86_64":  0xFFFF_8000_0000_0000,
	"x86-64":  0xFFFF_8000_0000_0000,
	"amd64":   0xFFFF_8000_0000_0000,
}

// Config selects the session's architecture, the monitor endpoint, and an
// optional explicit memory-backend file path (autodetected when empty).
type Config struct {
	Architecture   string
	MonitorHost    string
	MonitorPort    int
	MemBackendPath string
	Levels5        bool // x86-64 57-bit paging, spec.md §9
}

// Session is the engine's top-level object: everything a caller needs to
// translate addresses, enumerate processes, and scan for beacons against
// one guest.
type Session struct {
	log *logrus.Logger
	cfg Config

	Monitor  monitor.Client
	Backend  *membackend.Backend
	Region   *region.Mapper
	Walker   pagewalk.Walker
	Physical *membackend.PhysicalBackend
	Fallback *address.Fallback
	Parser   *address.Parser

	procWalker procwalk.Walker
}

// New builds an unstarted Session: no connections opened, no file mapped.
// Call Open to bring it up.
func New(cfg Config, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.New()
	}
	return &Session{log: log, cfg: cfg}
}

// entry returns a component-tagged log entry, the same
// "component=monitor"-style field the teacher attaches before handing a
// logger into a subsystem constructor.
func (s *Session) entry(component string) *logrus.Entry {
	return s.log.WithField("component", component)
}

// Open brings the session's subsystems up in dependency order: monitor
// connects first (best-effort — spec.md §7 says a down monitor degrades
// the engine, it doesn't abort it), then the memory backend maps (by
// autodetection unless cfg.MemBackendPath is set), then the region mapper
// discovers the RAM layout, then the page walker and address fallback are
// wired on top.
func (s *Session) Open(ctx context.Context) error {
	if err := s.openMonitor(ctx); err != nil {
		s.entry("monitor").WithError(err).Warn("monitor unavailable; continuing with memory-backend and beacon paths only")
		s.Monitor = nil
	}

	if err := s.openBackend(); err != nil {
		return err
	}

	base, ok := archDefaultBase[normalizeArch(s.cfg.Architecture)]
	if !ok {
		return fmt.Errorf("engine: unsupported architecture %q", s.cfg.Architecture)
	}
	s.Region = region.NewMapper(base)
	if err := s.Region.Discover(ctx, s.Monitor, s.Backend.MappedSize()); err != nil {
		return err
	}

	s.Physical = membackend.NewPhysicalBackend(s.Backend, s.Region)

	walker, err := pagewalk.New(pagewalk.Config{Architecture: s.cfg.Architecture, Levels5: s.cfg.Levels5}, s.Physical)
	if err != nil {
		return err
	}
	s.Walker = walker

	s.Fallback = &address.Fallback{
		Offset:   s.Backend,
		Physical: s.Physical,
		Region:   s.Region,
		Monitor:  s.Monitor,
	}
	s.Parser = address.NewParser()
	s.Parser.SetBuiltins(address.Builtins{RAM: base})

	return nil
}

func (s *Session) openMonitor(ctx context.Context) error {
	client := monitor.NewTCPClient(s.entry("monitor"))
	if err := client.Connect(ctx, s.cfg.MonitorHost, s.cfg.MonitorPort); err != nil {
		return err
	}
	s.Monitor = client
	return nil
}

func (s *Session) openBackend() error {
	path := s.cfg.MemBackendPath
	if path == "" {
		detected, ok := membackend.AutoDetect()
		if !ok {
			return apperr.New(apperr.NotConfigured, "no memory-backend file found; set membackend.path")
		}
		path = detected
	}
	s.Backend = membackend.New()
	return s.Backend.Map(path)
}

// Close releases the session's resources: the monitor connection and the
// memory-backend mapping. Safe to call on a partially-opened Session.
func (s *Session) Close() error {
	var firstErr error
	if s.Monitor != nil {
		if err := s.Monitor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.Backend != nil {
		if err := s.Backend.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ProcessWalker lazily builds and returns the Linux process walker for
// this session, detecting its root task and kernel offsets the first time
// it is asked for, per spec.md §4.4's initialization algorithm.
// candidateBases and scanRange back strategies (b) and (c); pass a zero
// ScanRange to skip strategy (c).
func (s *Session) ProcessWalker(ctx context.Context, candidateBases []uint64, scanRange procwalk.ScanRange) (procwalk.Walker, error) {
	if s.procWalker != nil {
		return s.procWalker, nil
	}
	if s.Physical == nil {
		return nil, apperr.New(apperr.NotConfigured, "session not open")
	}

	kmin, ok := kernelSpaceMin[normalizeArch(s.cfg.Architecture)]
	if !ok {
		return nil, fmt.Errorf("engine: unsupported architecture %q", s.cfg.Architecture)
	}

	probe := procwalk.NewLinux(s.Physical, procwalk.KnownOffsetSets[0], kmin)
	root, err := probe.DetectRootTask(ctx, s.Monitor, candidateBases, scanRange)
	if err != nil {
		return nil, err
	}

	offsets, err := procwalk.AutoDetectOffsets(s.Physical, root, kmin)
	if err != nil {
		return nil, err
	}

	walker := procwalk.NewLinux(s.Physical, offsets, kmin)
	if _, err := walker.DetectRootTask(ctx, s.Monitor, []uint64{root}, procwalk.ScanRange{}); err != nil {
		return nil, err
	}

	s.procWalker = walker
	return walker, nil
}

// ScanBeacons sweeps the memory-backend file for beacon pages, per
// spec.md §4.6.
func (s *Session) ScanBeacons() (*scanner.Index, error) {
	if s.Backend == nil {
		return nil, apperr.New(apperr.NotConfigured, "session not open")
	}
	return scanner.Scan(s.Backend)
}

// Translate resolves gva to a gpa using the page walker, first setting
// the walker's root to pageTableBase (a process's page_table_base, or the
// kernel's if pageTableBase came from a kernel address).
func (s *Session) Translate(gva, pageTableBase uint64) uint64 {
	s.Walker.SetPageTableBase(pageTableBase, nil)
	return s.Walker.Translate(gva)
}

func normalizeArch(a string) string {
	return strings.ToLower(a)
}
