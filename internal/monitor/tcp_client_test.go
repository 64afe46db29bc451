package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"
)

// fakeMonitorServer accepts a single connection, sends a greeting, answers
// the capability-negotiation command, then replies to every further
// request with the response respond builds for it.
func fakeMonitorServer(t *testing.T, respond func(cmd Command) Response) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		conn.Write([]byte(`{"QMP": {"version": {"qemu": {"major": 8}}, "capabilities": []}}` + "\n"))

		reader := bufio.NewReader(conn)

		// capability negotiation
		negLine, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var neg Command
		json.Unmarshal(negLine, &neg)
		ackResp := Response{ID: neg.ID, Return: map[string]any{}}
		ackBytes, _ := json.Marshal(ackResp)
		conn.Write(append(ackBytes, '\n'))

		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				return
			}
			var cmd Command
			if err := json.Unmarshal(line, &cmd); err != nil {
				return
			}
			resp := respond(cmd)
			resp.ID = cmd.ID
			respBytes, _ := json.Marshal(resp)
			conn.Write(append(respBytes, '\n'))
		}
	}()

	return ln.Addr().String()
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func TestTCPClientConnectAndQueryMemoryTree(t *testing.T) {
	const tree = "0000000040000000-00000000bfffffff: mem (prio 0, ram)\n"

	addr := fakeMonitorServer(t, func(cmd Command) Response {
		if cmd.Execute == "human-monitor-command" {
			return Response{Return: tree}
		}
		return Response{Return: map[string]any{}}
	})

	host, port := splitHostPort(t, addr)

	client := NewTCPClient(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Connect(ctx, host, port); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	got, err := client.QueryMemoryTree(ctx)
	if err != nil {
		t.Fatalf("QueryMemoryTree() error = %v", err)
	}
	if got != tree {
		t.Errorf("got %q, want %q", got, tree)
	}
}

func TestTCPClientTranslateGVAToGPAUnmapped(t *testing.T) {
	addr := fakeMonitorServer(t, func(cmd Command) Response {
		return Response{Return: map[string]any{"valid": false, "phys": 0}}
	})
	host, port := splitHostPort(t, addr)

	client := NewTCPClient(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx, host, port); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	_, err := client.TranslateGVAToGPA(ctx, 0, 0x1000, nil)
	if err == nil {
		t.Fatal("expected error for unmapped translation")
	}
}

func TestTCPClientQueryAfterCloseFails(t *testing.T) {
	addr := fakeMonitorServer(t, func(cmd Command) Response {
		return Response{Return: map[string]any{}}
	})
	host, port := splitHostPort(t, addr)

	client := NewTCPClient(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx, host, port); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	if _, err := client.Query(ctx, Command{Execute: "query-status"}); err == nil {
		t.Error("expected error after close")
	}
}
