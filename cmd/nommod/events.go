package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events - Reducer Inputs
// ============================================================================
// Events are everything the reducer consumes: decoded device reports,
// IPC actions, time ticks, and sink observations fed back by the effects
// layer. Actions are the user-intent subset that can also arrive over IPC.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Action is a marker interface for user intent (device reports and IPC).
//
// Actions implement the reducer's Event marker so they can be reduced
// directly; the daemon wraps them in TimedEvent for timestamps.
type Action interface {
	eventMarker()
}

// TimedEvent attaches a receive timestamp to an inner event.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop on the idle refresh cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// VolumeUp is one upward detent of the headset's volume wheel.
type VolumeUp struct{}

func (VolumeUp) eventMarker() {}

// VolumeDown is one downward detent of the headset's volume wheel.
type VolumeDown struct{}

func (VolumeDown) eventMarker() {}

// EqualizerSet reports the headset's equalizer dial position.
//
// Decoded but not dispatched: the daemon takes no action on it. Reserved
// for a future equalizer integration.
type EqualizerSet struct {
	Level byte `json:"level"`
}

func (EqualizerSet) eventMarker() {}

// NoOp is an unrecognized (but harmless) device report.
type NoOp struct{}

func (NoOp) eventMarker() {}

// ToggleMute requests the sink's mute state to be toggled. Unmuting
// restores the last audible level when one is known.
type ToggleMute struct{}

func (ToggleMute) eventMarker() {}

// SetVolumePercent requests the sink volume to be set to an absolute
// percentage. 0 mutes.
type SetVolumePercent struct {
	Percent uint8  `json:"percent"`
	Origin  string `json:"origin,omitempty"` // e.g., "ipc", "ctl"
}

func (SetVolumePercent) eventMarker() {}

// SinkLevelObserved is emitted after a successful gateway level read or a
// confirmed apply.
type SinkLevelObserved struct {
	Level VolumeLevel
	At    time.Time
}

func (SinkLevelObserved) eventMarker() {}

// SinkMuteObserved is emitted after a successful SetMute.
type SinkMuteObserved struct {
	Muted bool
	At    time.Time
}

func (SinkMuteObserved) eventMarker() {}

// SinkCommandFailed is emitted when executing a gateway command fails.
type SinkCommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (SinkCommandFailed) eventMarker() {}

// RequestStateSnapshot asks the reducer to publish a coherent state
// snapshot to Reply (used by the state WebSocket on client connect).
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// State Broadcasts
// ============================================================================
// Broadcasts are reducer-emitted notifications of externally-visible state
// changes, fanned out to WebSocket clients by the broadcaster.
// ============================================================================

// StateBroadcast is a marker interface for reducer-emitted state changes.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastLevelChanged is emitted when the observed sink level changes.
type BroadcastLevelChanged struct {
	Level VolumeLevel
	At    time.Time
}

func (BroadcastLevelChanged) broadcastMarker() {}

// StateSnapshot is a coherent copy of the externally-visible daemon state.
type StateSnapshot struct {
	Percent uint8     `json:"percent"`
	Muted   bool      `json:"muted"`
	Known   bool      `json:"known"`
	At      time.Time `json:"at"`
}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps IPC-visible actions for JSON serialization with a
// type discriminator.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "volume_up":
		return VolumeUp{}, nil

	case "volume_down":
		return VolumeDown{}, nil

	case "toggle_mute":
		return ToggleMute{}, nil

	case "set_volume_percent":
		var a SetVolumePercent
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetVolumePercent: %w", err)
		}
		if a.Percent > 100 {
			return nil, fmt.Errorf("set_volume_percent: percent %d out of range", a.Percent)
		}
		return a, nil

	case "equalizer_set":
		var a EqualizerSet
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal EqualizerSet: %w", err)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
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

	case EqualizerSet:
		env.Type = "equalizer_set"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal EqualizerSet: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
