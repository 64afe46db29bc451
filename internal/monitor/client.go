package monitor

import "context"

// Client is the monitor-command contract spec.md §4.1 describes. TCPClient
// is the primary implementation; FirecrackerClient is an alternate,
// capability-negotiation-only transport for hosts that expose a Firecracker
// API socket instead of a QMP-like monitor port.
type Client interface {
	// Connect establishes the control channel and performs capability
	// negotiation. It is safe to call at most once per Client value.
	Connect(ctx context.Context, host string, port int) error

	// Query serializes cmd, sends it with a terminating newline, and
	// blocks for exactly one response.
	Query(ctx context.Context, cmd Command) (Response, error)

	// QueryMemoryTree is a convenience over Query for the RAM-layout
	// command, returning the monitor's raw text dump.
	QueryMemoryTree(ctx context.Context) (string, error)

	// TranslateGVAToGPA asks the monitor to translate a guest virtual
	// address using its own MMU state, for use when the in-host page
	// walker cannot operate (root not yet known, or an Unsupported
	// architecture).
	TranslateGVAToGPA(ctx context.Context, cpuIndex int, gva uint64, ttbr *uint64) (TranslateResult, error)

	// ReadPhysical asks the monitor to read size bytes of guest physical
	// memory starting at gpa. This is the read path of last resort (see
	// address.MonitorReader): used when the memory-backend file cannot
	// service an address at all.
	ReadPhysical(ctx context.Context, gpa uint64, size int) ([]byte, error)

	// Close releases the underlying transport. After Close, every method
	// returns an error.
	Close() error
}
