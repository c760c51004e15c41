package main

import "fmt"

// VolumeLevel is the audible output level of the sink: either a concrete
// percentage in [1,100] or muted. Zero percent is never represented as a
// concrete value; it collapses to the muted state, so a non-muted level is
// always at least 1%.
//
// VolumeLevel is an immutable value type. Increment and Decrement return new
// values; callers decide whether and how to push the result to the sink.
type VolumeLevel struct {
	percent uint8 // 0 means muted
}

// MutedLevel returns the muted level.
func MutedLevel() VolumeLevel {
	return VolumeLevel{}
}

// Value returns a concrete level, clamping out-of-range input: 0 collapses
// to muted, anything above 100 becomes 100.
func Value(percent uint8) VolumeLevel {
	if percent > 100 {
		percent = 100
	}
	return VolumeLevel{percent: percent}
}

// IsMuted reports whether the level is the muted state.
func (l VolumeLevel) IsMuted() bool {
	return l.percent == 0
}

// Percent returns the concrete percentage, or 0 when muted.
func (l VolumeLevel) Percent() uint8 {
	return l.percent
}

// Increment raises the level by step percentage points.
//
// From muted it jumps directly to Value(step) rather than restoring a prior
// level; from a concrete value it clamps at 100.
func (l VolumeLevel) Increment(step uint8) VolumeLevel {
	if l.IsMuted() {
		return Value(step)
	}
	if uint16(l.percent)+uint16(step) > 100 {
		return Value(100)
	}
	return Value(l.percent + step)
}

// Decrement lowers the level by step percentage points.
//
// At or below one step from the floor the level collapses to muted instead
// of reaching 0; decrementing while muted is a no-op.
func (l VolumeLevel) Decrement(step uint8) VolumeLevel {
	if l.IsMuted() {
		return MutedLevel()
	}
	if l.percent <= step {
		return MutedLevel()
	}
	return Value(l.percent - step)
}

func (l VolumeLevel) String() string {
	if l.IsMuted() {
		return "muted"
	}
	return fmt.Sprintf("%d%%", l.percent)
}
