package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon
// loop. In this codebase, those are PulseAudio sink operations.
type Command interface {
	commandMarker()
	String() string
}

// CmdGetSinkLevel requests the current level of the active sink.
type CmdGetSinkLevel struct{}

func (CmdGetSinkLevel) commandMarker() {}
func (CmdGetSinkLevel) String() string { return "CmdGetSinkLevel()" }

// CmdApplyLevel requests setting the sink volume to a level.
type CmdApplyLevel struct {
	Level VolumeLevel
}

func (CmdApplyLevel) commandMarker() {}
func (c CmdApplyLevel) String() string {
	return fmt.Sprintf("CmdApplyLevel(level=%s)", c.Level)
}

// CmdSetMute sets the sink mute flag explicitly.
type CmdSetMute struct {
	Muted bool
}

func (CmdSetMute) commandMarker()   {}
func (c CmdSetMute) String() string { return fmt.Sprintf("CmdSetMute(muted=%v)", c.Muted) }

// CmdPublishStateSnapshot delivers a reducer-produced snapshot to a
// requester. The channel send happens in the effects layer so the reducer
// stays pure.
type CmdPublishStateSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (c CmdPublishStateSnapshot) String() string {
	return fmt.Sprintf("CmdPublishStateSnapshot(known=%v)", c.Snapshot.Known)
}
