package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// nommo-ctl - Command-line IPC Client
// ============================================================================
// This tool sends control events to the nommod daemon via IPC, so scripts
// and desktop keybindings share mute/restore state with the headset wheel.
//
// Usage:
//   nommo-ctl volume-up
//   nommo-ctl volume-down
//   nommo-ctl mute
//   nommo-ctl set-volume 40
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/nommod.sock)
// ============================================================================

// Event types (duplicated from the daemon package for a standalone binary)
type Event interface{}

type VolumeUp struct{}

type VolumeDown struct{}

type ToggleMute struct{}

type SetVolumePercent struct {
	Percent uint8  `json:"percent"`
	Origin  string `json:"origin"`
}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := "/tmp/nommod.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for -socket flag
	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var ev Event

	switch args[0] {
	case "volume-up", "up":
		ev = VolumeUp{}

	case "volume-down", "down":
		ev = VolumeDown{}

	case "mute", "toggle-mute":
		ev = ToggleMute{}

	case "set-volume", "set":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: set-volume requires a percent value\n")
			os.Exit(1)
		}
		percent, err := strconv.Atoi(args[1])
		if err != nil || percent < 0 || percent > 100 {
			fmt.Fprintf(os.Stderr, "error: invalid percent value %q (must be 0-100)\n", args[1])
			os.Exit(1)
		}
		ev = SetVolumePercent{Percent: uint8(percent), Origin: "nommo-ctl"}

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err := sendEvent(socketPath, ev); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

func sendEvent(socketPath string, ev Event) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var response IPCResponse
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}

	return nil
}

func marshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	switch e := ev.(type) {
	case VolumeUp:
		env.Type = "volume_up"

	case VolumeDown:
		env.Type = "volume_down"

	case ToggleMute:
		env.Type = "toggle_mute"

	case SetVolumePercent:
		env.Type = "set_volume_percent"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetVolumePercent: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `nommo-ctl - Control the nommod daemon via IPC

Usage:
  nommo-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/nommod.sock)

Commands:
  volume-up, up             Step sink volume up (same as a wheel press)
  volume-down, down         Step sink volume down
  mute, toggle-mute         Toggle mute; unmute restores the last audible level
  set-volume, set <pct>     Set absolute volume percent (0-100; 0 mutes)
  help, -h, --help          Show this help message

Examples:
  nommo-ctl mute
  nommo-ctl set-volume 40
  nommo-ctl -socket /run/nommod.sock volume-up
`)
}
