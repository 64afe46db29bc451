package monitor

import (
	"context"
	"fmt"

	firecracker "github.com/firecracker-microvm/firecracker-go-sdk"
	"github.com/sirupsen/logrus"

	"github.com/jamiefaye/haywire-sub001/internal/apperr"
)

// FirecrackerClient is an alternate monitor.Client backend for hosts that
// expose a Firecracker API socket instead of a QMP-like monitor port. It
// does not support raw Query or the page-walker-oriented commands
// (TranslateGVAToGPA, ReadPhysical) a real hypervisor monitor would — full
// VM lifecycle management is out of scope here — and answers
// QueryMemoryTree from the read-only balloon describe call as a
// capability-negotiation fallback, the same role the teacher's firecracker.Machine plays when
// probing a running VMM rather than booting one.
type FirecrackerClient struct {
	log     *logrus.Entry
	machine *firecracker.Machine
}

// NewFirecrackerClient returns an unconnected FirecrackerClient.
func NewFirecrackerClient(log *logrus.Entry) *FirecrackerClient {
	return &FirecrackerClient{log: log}
}

// Connect attaches to an already-running Firecracker VMM's API socket at
// host (the unix socket path; port is ignored for this transport) without
// starting or configuring a machine, mirroring the teacher's
// firecracker.NewMachine(ctx, cfg, firecracker.WithProcessRunner(...),
// firecracker.WithLogger(...)) construction but without a process runner,
// since the VMM is already alive.
func (c *FirecrackerClient) Connect(ctx context.Context, host string, port int) error {
	cfg := firecracker.Config{
		SocketPath: host,
	}
	m, err := firecracker.NewMachine(ctx, cfg, firecracker.WithLogger(c.log))
	if err != nil {
		return apperr.Wrap(apperr.Network, "attach firecracker machine", err)
	}
	c.machine = m
	return nil
}

// Query is unsupported: the Firecracker API has no line-delimited command
// channel equivalent to a QMP-like monitor.
func (c *FirecrackerClient) Query(ctx context.Context, cmd Command) (Response, error) {
	return Response{}, apperr.New(apperr.Protocol, "firecracker transport does not support raw Query")
}

// QueryMemoryTree has no memory-tree command to forward to; it reads the
// balloon config and synthesizes a single RAM region starting at
// 0x40000000 whose size is the balloon amount.
func (c *FirecrackerClient) QueryMemoryTree(ctx context.Context) (string, error) {
	if c.machine == nil {
		return "", apperr.New(apperr.NotConfigured, "firecracker client not connected")
	}
	balloon, err := c.machine.DescribeBalloonConfig(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.Network, "describe balloon config", err)
	}
	// Synthesize a single-region memory-tree line in the same textual
	// shape the TCP transport's region parser already understands, using
	// the balloon-adjusted total as the best available size hint.
	total := uint64(0)
	if balloon != nil && balloon.AmountMib != nil {
		total = uint64(*balloon.AmountMib) << 20
	}
	return fmt.Sprintf("0000000040000000-%016x: mem (prio 0, ram)\n", 0x40000000+total-1), nil
}

// TranslateGVAToGPA is unsupported: the Firecracker transport exposes no
// GVA translation primitive.
func (c *FirecrackerClient) TranslateGVAToGPA(ctx context.Context, cpuIndex int, gva uint64, ttbr *uint64) (TranslateResult, error) {
	return TranslateResult{}, apperr.New(apperr.Protocol, "firecracker transport does not support gva translation")
}

// ReadPhysical is unsupported: Firecracker has no equivalent to a
// hypervisor monitor's physical-memory-read command; the memory-backend
// file is the only read path available against it.
func (c *FirecrackerClient) ReadPhysical(ctx context.Context, gpa uint64, size int) ([]byte, error) {
	return nil, apperr.New(apperr.Protocol, "firecracker transport does not support physical reads")
}

func (c *FirecrackerClient) Close() error {
	if c.machine == nil {
		return nil
	}
	c.machine.StopVMM()
	c.machine = nil
	return nil
}
