package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
)

// capabilitiesCommand is the capability-negotiation command issued once
// per connection, following the QMP convention this monitor protocol is
// modeled on.
const capabilitiesCommand = "qmp_capabilities"

// defaultQueryTimeout bounds a single Query call, per spec.md §5: "a
// monitor Query has a finite per-call timeout; on timeout the socket is
// considered degraded".
const defaultQueryTimeout = 5 * time.Second

// TCPClient is the primary monitor.Client implementation: a synchronous,
// line-delimited JSON RPC over a TCP connection, serialized by a mutex so
// at most one request is outstanding at a time. Modeled on the teacher's
// vsock request/response loop (ExecuteViaVsock) and its pool_client.go
// poolRPC helper, both of which dial, write one newline-terminated JSON
// frame, and block on a single ReadBytes('\n') reply.
type TCPClient struct {
	log *logrus.Entry

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	failed bool
}

// NewTCPClient returns an unconnected TCPClient. log may be nil, in which
// case a discard logger is used.
func NewTCPClient(log *logrus.Entry) *TCPClient {
	if log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		log = logrus.NewEntry(logger)
	}
	return &TCPClient{log: log}
}

func (c *TCPClient) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", host, port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return apperr.Wrap(apperr.Network, "dial monitor", err)
	}

	reader := bufio.NewReader(conn)

	// Greeting banner: a single JSON line describing the monitor's
	// capabilities, read and discarded beyond validating it parses.
	conn.SetReadDeadline(time.Now().Add(defaultQueryTimeout))
	greeting, err := reader.ReadBytes('\n')
	if err != nil {
		conn.Close()
		return apperr.Wrap(apperr.Network, "read monitor greeting", err)
	}
	var banner map[string]any
	if err := json.Unmarshal(greeting, &banner); err != nil {
		conn.Close()
		return apperr.Wrap(apperr.Protocol, "parse monitor greeting", err)
	}

	c.conn = conn
	c.reader = reader
	c.failed = false

	negotiate := Command{ID: nextCommandID(), Execute: capabilitiesCommand}
	if _, err := c.queryLocked(ctx, negotiate); err != nil {
		c.conn.Close()
		c.failed = true
		return apperr.Wrap(apperr.Network, "capability negotiation", err)
	}

	c.log.WithFields(logrus.Fields{"host": host, "port": port}).Debug("monitor connected")
	return nil
}

func (c *TCPClient) Query(ctx context.Context, cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryLocked(ctx, cmd)
}

// queryLocked performs one request/response round-trip. Callers must hold
// c.mu. On any transport-level failure the client is marked failed: per
// spec.md §7, the monitor client "becomes permanently unusable until
// reconnected" once Network or Protocol trips.
func (c *TCPClient) queryLocked(ctx context.Context, cmd Command) (Response, error) {
	if c.failed || c.conn == nil {
		return Response{}, apperr.New(apperr.Network, "monitor client not connected")
	}

	if cmd.ID == 0 {
		cmd.ID = nextCommandID()
	}

	deadline := time.Now().Add(defaultQueryTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)

	line, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, apperr.Wrap(apperr.Protocol, "marshal command", err)
	}
	line = append(line, '\n')

	if _, err := c.conn.Write(line); err != nil {
		c.failed = true
		return Response{}, apperr.Wrap(apperr.Network, "write command", err)
	}

	raw, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.failed = true
		return Response{}, apperr.Wrap(apperr.Network, "read response", err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.failed = true
		return Response{}, apperr.Wrap(apperr.Protocol, "parse response", err)
	}
	if resp.Error != nil {
		return resp, apperr.Wrap(apperr.Protocol, "monitor returned error", resp.Error)
	}
	return resp, nil
}

func (c *TCPClient) QueryMemoryTree(ctx context.Context) (string, error) {
	resp, err := c.Query(ctx, Command{Execute: "human-monitor-command", Arguments: map[string]any{
		"command-line": "info mtree -f",
	}})
	if err != nil {
		return "", err
	}
	text, ok := resp.Return.(string)
	if !ok {
		return "", apperr.New(apperr.Protocol, "memory tree response was not a string")
	}
	return text, nil
}

func (c *TCPClient) TranslateGVAToGPA(ctx context.Context, cpuIndex int, gva uint64, ttbr *uint64) (TranslateResult, error) {
	args := map[string]any{"cpu-index": cpuIndex, "addr": gva}
	if ttbr != nil {
		args["ttbr"] = *ttbr
	}
	resp, err := c.Query(ctx, Command{Execute: "x-query-virtual-mem", Arguments: args})
	if err != nil {
		return TranslateResult{}, err
	}

	raw, err := json.Marshal(resp.Return)
	if err != nil {
		return TranslateResult{}, apperr.Wrap(apperr.Protocol, "marshal translate result", err)
	}
	var result TranslateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return TranslateResult{}, apperr.Wrap(apperr.Protocol, "parse translate result", err)
	}
	if !result.Valid {
		return result, apperr.New(apperr.Unmapped, "monitor reports gva unmapped")
	}
	return result, nil
}

func (c *TCPClient) ReadPhysical(ctx context.Context, gpa uint64, size int) ([]byte, error) {
	resp, err := c.Query(ctx, Command{Execute: "human-monitor-command", Arguments: map[string]any{
		"command-line": fmt.Sprintf("xp /%db 0x%x", size, gpa),
	}})
	if err != nil {
		return nil, err
	}
	text, ok := resp.Return.(string)
	if !ok {
		return nil, apperr.New(apperr.Protocol, "physical read response was not a string")
	}
	return parseHexDump(text, size)
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.failed = true
	return err
}
