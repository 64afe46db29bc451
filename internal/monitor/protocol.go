// Package monitor implements the hypervisor control-channel client: a
// synchronous, mutex-serialized line-delimited JSON RPC over TCP, plus an
// alternate Firecracker-backed transport used when the host exposes a
// Firecracker API socket instead of a QMP-like monitor port.
package monitor

import "sync/atomic"

var cmdCounter atomic.Int64

// nextCommandID returns a process-unique command id for correlating a
// Query's request with its response, the same role the teacher's
// atomic.Int64 command counter plays for its REPL protocol.
func nextCommandID() int64 { return cmdCounter.Add(1) }

// Command is one request frame sent to the monitor, serialized to a single
// line of JSON terminated by '\n'.
type Command struct {
	ID        int64          `json:"id"`
	Execute   string         `json:"execute"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Response is one reply frame read back from the monitor.
type Response struct {
	ID     int64     `json:"id"`
	Return any       `json:"return,omitempty"`
	Error  *RPCError `json:"error,omitempty"`
}

// RPCError is the monitor's own error envelope, distinct from a Go error
// returned by a failed Query (which additionally covers transport failure).
type RPCError struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

func (e *RPCError) Error() string { return e.Class + ": " + e.Desc }

// TranslateResult is the payload of a successful GVA->GPA translation
// command, per spec.md §6: "{ valid: bool, phys: u64 }".
type TranslateResult struct {
	Valid bool   `json:"valid"`
	Phys  uint64 `json:"phys"`
}
