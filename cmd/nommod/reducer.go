package main

import "time"

// This file implements the reducer building blocks:
//
//   - DaemonState: the daemon-owned state container
//   - Reduce(): computes next state + commands + broadcasts, without I/O
//
// The reducer must be pure. The daemon loop is responsible for executing
// Commands against the sink gateway and feeding observations back as
// Events, which is what gives every wheel press the same shape:
//
//	press -> CmdGetSinkLevel -> SinkLevelObserved -> CmdApplyLevel -> ...
//
// The level is always computed from a fresh gateway read, never from a
// cached value, so volume changed by other programs between presses is
// tolerated.

// adjustKind identifies the pending adjustment awaiting a sink level read.
type adjustKind int

const (
	adjustNone adjustKind = iota
	adjustUp
	adjustDown
	adjustToggleMute
	adjustSet
)

// PendingAdjust is a user intent waiting for the next sink observation.
// Only one can be in flight: the daemon loop processes each press to
// completion before dequeuing the next.
type PendingAdjust struct {
	Kind    adjustKind
	Percent uint8 // adjustSet only
	At      time.Time
}

// SinkState is the daemon's cached view of the active sink. It is
// "observed" state: updated from successful gateway reads and confirmed
// applies, never invented.
type SinkState struct {
	Level VolumeLevel
	Known bool
	At    time.Time
}

// DaemonState is the top-level, daemon-owned state container.
type DaemonState struct {
	Sink    SinkState
	Pending PendingAdjust

	// LastAudible is the last non-muted percentage observed, used to
	// restore volume on an explicit unmute toggle.
	LastAudible uint8
}

// Snapshot returns a coherent copy of the externally-visible state.
func (s *DaemonState) Snapshot() StateSnapshot {
	return StateSnapshot{
		Percent: s.Sink.Level.Percent(),
		Muted:   s.Sink.Level.IsMuted(),
		Known:   s.Sink.Known,
		At:      s.Sink.At,
	}
}

// ReducerConfig holds the reducer's policy knobs.
type ReducerConfig struct {
	// StepPercent is the percentage-point change per wheel detent.
	StepPercent uint8
}

// ReduceResult is the output of Reduce(): next state plus the Commands to
// execute and the Broadcasts to fan out to state subscribers.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer.
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
//
// The daemon loop must execute Commands, translate results into Events,
// and feed those Events back into Reduce().
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = &DaemonState{}
	}

	var cmds []Command
	var bcasts []StateBroadcast

	switch ev := e.(type) {
	case TimedEvent:
		switch a := ev.Event.(type) {
		case VolumeUp:
			s.Pending = PendingAdjust{Kind: adjustUp, At: ev.At}
			cmds = append(cmds, CmdGetSinkLevel{})

		case VolumeDown:
			s.Pending = PendingAdjust{Kind: adjustDown, At: ev.At}
			cmds = append(cmds, CmdGetSinkLevel{})

		case ToggleMute:
			s.Pending = PendingAdjust{Kind: adjustToggleMute, At: ev.At}
			cmds = append(cmds, CmdGetSinkLevel{})

		case SetVolumePercent:
			s.Pending = PendingAdjust{Kind: adjustSet, Percent: a.Percent, At: ev.At}
			cmds = append(cmds, CmdGetSinkLevel{})

		case EqualizerSet:
			// Decoded but deliberately not dispatched; the equalizer dial is
			// reserved until there is something sensible to drive with it.

		case NoOp:
			// Device chatter.

		case RequestStateSnapshot:
			cmds = append(cmds, CmdPublishStateSnapshot{Snapshot: s.Snapshot(), Reply: a.Reply})

		default:
			// Unknown action: no-op.
		}

	case Tick:
		// Idle refresh keeps the cached view (and WS subscribers) in sync
		// with volume changes made outside this program. Never interleave
		// with an in-flight press.
		if s.Pending.Kind == adjustNone {
			cmds = append(cmds, CmdGetSinkLevel{})
		}

	case SinkLevelObserved:
		changed := !s.Sink.Known || s.Sink.Level != ev.Level
		s.Sink.Level = ev.Level
		s.Sink.Known = true
		s.Sink.At = ev.At
		if !ev.Level.IsMuted() {
			s.LastAudible = ev.Level.Percent()
		}
		if changed {
			bcasts = append(bcasts, BroadcastLevelChanged{Level: ev.Level, At: ev.At})
		}

		if s.Pending.Kind != adjustNone {
			next := s.nextLevel(ev.Level, cfg)
			s.Pending = PendingAdjust{}
			cmds = append(cmds, transitionCommands(ev.Level, next)...)
		}

	case SinkMuteObserved:
		// The mute flag alone only pins down the level when muting; on
		// unmute the following CmdApplyLevel observation establishes the
		// concrete level.
		if ev.Muted && !s.Sink.Level.IsMuted() {
			s.Sink.Level = MutedLevel()
			s.Sink.Known = true
			s.Sink.At = ev.At
			bcasts = append(bcasts, BroadcastLevelChanged{Level: MutedLevel(), At: ev.At})
		}

	case SinkCommandFailed:
		// Drop the in-flight intent so the next press starts from a fresh
		// gateway read. The failure itself is logged by the effects layer.
		s.Pending = PendingAdjust{}

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcasts,
	}
}

// nextLevel resolves the pending adjustment against a freshly observed
// level.
func (s *DaemonState) nextLevel(current VolumeLevel, cfg ReducerConfig) VolumeLevel {
	step := cfg.StepPercent
	if step == 0 {
		step = defaultStepPercent
	}

	switch s.Pending.Kind {
	case adjustUp:
		return current.Increment(step)

	case adjustDown:
		return current.Decrement(step)

	case adjustToggleMute:
		if !current.IsMuted() {
			return MutedLevel()
		}
		if s.LastAudible > 0 {
			return Value(s.LastAudible)
		}
		return Value(step)

	case adjustSet:
		return Value(s.Pending.Percent)

	default:
		return current
	}
}

// transitionCommands turns a level transition into gateway commands.
//
// The mute flag is only touched when the mute tag actually changes, and is
// set before the volume so a muted sink never plays at the new level and an
// unmuted one is audible at it.
func transitionCommands(current, next VolumeLevel) []Command {
	if next == current {
		return nil
	}

	var cmds []Command
	if next.IsMuted() && !current.IsMuted() {
		cmds = append(cmds, CmdSetMute{Muted: true})
	}
	if !next.IsMuted() && current.IsMuted() {
		cmds = append(cmds, CmdSetMute{Muted: false})
	}
	return append(cmds, CmdApplyLevel{Level: next})
}
