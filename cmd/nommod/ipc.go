package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC
// ============================================================================
// A unix socket accepting line-delimited JSON events, so the wheel is not
// the only way to drive the sink. nommo-ctl speaks this protocol, and
// desktop keybindings bound to it share mute/restore state with the wheel
// instead of fighting it.
//
// One request line in, one response line out:
//   {"type": "volume_up"}            -> {"status": "ok"}
//   {"type": "set_volume_percent", "data": {"percent": 40}}
//   anything else                    -> {"status": "error", "error": "..."}
// ============================================================================

// IPCResponse is the per-line reply to an IPC client.
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// runIPCServer listens on a unix socket until ctx is canceled. The socket
// file is recreated on startup so a stale one from a crashed run cannot
// block the bind.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// World-writable so unprivileged keybinding scripts can reach a daemon
	// running as another user.
	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("ipc listening", "socket", socketPath)

	// Closing the listener is what unblocks Accept on shutdown.
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("ipc listener stopped, shutting down")
				return nil
			}

			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				logger.Debug("ipc listener closed")
				return nil
			}

			logger.Error("ipc accept failed", "error", err)
			continue
		}

		go handleIPCConnection(conn, events, logger)
	}
}

// handleIPCConnection serves one client, any number of request lines.
func handleIPCConnection(conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("ipc client connected", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	respond := func(resp IPCResponse) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("ipc response write failed", "error", err)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("ipc request", "line", line)

		// Only payload events are accepted here. Timestamps are assigned
		// by the daemon loop when it wraps the event, not trusted from
		// the client.
		ev, err := UnmarshalEvent([]byte(line))
		if err != nil {
			respond(IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)})
			continue
		}

		select {
		case events <- ev:
			respond(IPCResponse{Status: "ok"})
		default:
			respond(IPCResponse{Status: "error", Error: "event queue full"})
		}
	}

	logger.Debug("ipc client disconnected")
}

// SendIPCEvent delivers one event to a running daemon and checks the reply.
// nommo-ctl and the tests use it.
func SendIPCEvent(socketPath string, ev Event) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var resp IPCResponse
	if err := decoder.Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}

	return nil
}
