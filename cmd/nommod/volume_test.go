package main

import "testing"

func TestVolumeLevel_ZeroCollapsesToMuted(t *testing.T) {
	l := Value(0)
	if !l.IsMuted() {
		t.Fatal("expected Value(0) to be muted")
	}
	if l != MutedLevel() {
		t.Fatal("expected Value(0) to equal MutedLevel()")
	}
}

func TestVolumeLevel_ValueClampsAbove100(t *testing.T) {
	if got := Value(150).Percent(); got != 100 {
		t.Errorf("Value(150) = %d%%, want 100%%", got)
	}
	if got := Value(255).Percent(); got != 100 {
		t.Errorf("Value(255) = %d%%, want 100%%", got)
	}
}

func TestVolumeLevel_IncrementFromMuted(t *testing.T) {
	got := MutedLevel().Increment(5)
	if got.IsMuted() || got.Percent() != 5 {
		t.Errorf("Increment from muted = %s, want 5%%", got)
	}
}

func TestVolumeLevel_IncrementClampsAt100(t *testing.T) {
	cases := []struct {
		start uint8
		step  uint8
		want  uint8
	}{
		{50, 5, 55},
		{95, 5, 100},
		{97, 5, 100},
		{100, 5, 100},
		{1, 100, 100},
		{255, 5, 100}, // Value() already clamps the start
	}

	for _, c := range cases {
		got := Value(c.start).Increment(c.step)
		if got.IsMuted() || got.Percent() != c.want {
			t.Errorf("Value(%d).Increment(%d) = %s, want %d%%", c.start, c.step, got, c.want)
		}
	}
}

func TestVolumeLevel_IncrementIdempotentAtCeiling(t *testing.T) {
	l := Value(100)
	for i := 0; i < 10; i++ {
		l = l.Increment(5)
	}
	if l.Percent() != 100 {
		t.Errorf("repeated Increment at ceiling = %s, want 100%%", l)
	}
}

func TestVolumeLevel_DecrementCollapsesToMuted(t *testing.T) {
	cases := []struct {
		start uint8
		step  uint8
	}{
		{5, 5},  // exactly one step above floor
		{3, 5},  // below one step
		{1, 5},  // minimum concrete value
		{1, 1},
	}

	for _, c := range cases {
		got := Value(c.start).Decrement(c.step)
		if !got.IsMuted() {
			t.Errorf("Value(%d).Decrement(%d) = %s, want muted", c.start, c.step, got)
		}
	}
}

func TestVolumeLevel_DecrementStaysConcreteAboveStep(t *testing.T) {
	got := Value(6).Decrement(5)
	if got.IsMuted() || got.Percent() != 1 {
		t.Errorf("Value(6).Decrement(5) = %s, want 1%%", got)
	}

	got = Value(50).Decrement(5)
	if got.Percent() != 45 {
		t.Errorf("Value(50).Decrement(5) = %s, want 45%%", got)
	}
}

func TestVolumeLevel_DecrementWhileMutedIsNoOp(t *testing.T) {
	l := MutedLevel()
	for i := 0; i < 10; i++ {
		l = l.Decrement(5)
	}
	if !l.IsMuted() {
		t.Errorf("repeated Decrement while muted = %s, want muted", l)
	}
}

func TestVolumeLevel_NeverZeroConcrete(t *testing.T) {
	// Walk every concrete start down to the floor; the result at each step
	// must be either muted or at least 1%.
	for start := 1; start <= 100; start++ {
		l := Value(uint8(start))
		for !l.IsMuted() {
			l = l.Decrement(5)
			if !l.IsMuted() && l.Percent() == 0 {
				t.Fatalf("reached concrete 0%% from start %d", start)
			}
		}
	}
}

func TestVolumeLevel_String(t *testing.T) {
	if got := Value(37).String(); got != "37%" {
		t.Errorf("Value(37).String() = %q, want \"37%%\"", got)
	}
	if got := MutedLevel().String(); got != "muted" {
		t.Errorf("MutedLevel().String() = %q, want \"muted\"", got)
	}
}
