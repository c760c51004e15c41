package main

import (
	"log/slog"
	"time"
)

// SinkGateway is the capability set the daemon uses to inspect and adjust
// the active audio sink. The production implementation talks to PulseAudio
// (pulse.go); tests inject a fake.
type SinkGateway interface {
	// CurrentLevel reads the sink's current level. A muted sink (or one at
	// 0%) reports the muted level.
	CurrentLevel() (VolumeLevel, error)

	// Apply sets the sink volume to the given level (muted applies 0%).
	Apply(level VolumeLevel) error

	// SetMute sets the sink's mute flag.
	SetMute(muted bool) error

	Close() error
}

// runEffect executes a single reducer-emitted Command against the sink
// gateway and emits an observation Event via onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be
//   reduced by the daemon loop.
// - Gateway failures are reported, not fatal: the next report is still
//   processed and the next successful read re-establishes ground truth.
func runEffect(
	gw SinkGateway,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		return
	}

	if gw == nil {
		onEvent(SinkCommandFailed{
			Command: cmd,
			Err:     errNoGateway{},
			At:      time.Now(),
		})
		return
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdGetSinkLevel:
		level, err := gw.CurrentLevel()
		if err != nil {
			logger.Warn("sink CurrentLevel failed", "error", err)
			onEvent(SinkCommandFailed{Command: cmd, Err: err, At: now})
			return
		}
		onEvent(SinkLevelObserved{Level: level, At: now})

	case CmdApplyLevel:
		if err := gw.Apply(c.Level); err != nil {
			logger.Warn("sink Apply failed", "error", err, "level", c.Level.String())
			onEvent(SinkCommandFailed{Command: cmd, Err: err, At: now})
			return
		}
		// Apply doesn't return the resulting level; we know what we set.
		onEvent(SinkLevelObserved{Level: c.Level, At: now})

	case CmdSetMute:
		if err := gw.SetMute(c.Muted); err != nil {
			logger.Warn("sink SetMute failed", "error", err, "muted", c.Muted)
			onEvent(SinkCommandFailed{Command: cmd, Err: err, At: now})
			return
		}
		onEvent(SinkMuteObserved{Muted: c.Muted, At: now})

	case CmdPublishStateSnapshot:
		// Deliver reducer-produced snapshot to the requester. The channel
		// send lives here to keep the reducer pure.
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop on a requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(SinkCommandFailed{
			Command: cmd,
			Err:     errUnknownCommand{cmd: cmd},
			At:      now,
		})
	}
}

// errNoGateway indicates the daemon was asked to execute a command without
// a sink gateway.
type errNoGateway struct{}

func (errNoGateway) Error() string { return "no sink gateway" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
