package main

import "testing"

func TestUnmarshalEvent_KnownTypes(t *testing.T) {
	cases := []struct {
		line string
		want Event
	}{
		{`{"type":"volume_up"}`, VolumeUp{}},
		{`{"type":"volume_down"}`, VolumeDown{}},
		{`{"type":"toggle_mute"}`, ToggleMute{}},
		{`{"type":"set_volume_percent","data":{"percent":40,"origin":"nommo-ctl"}}`, SetVolumePercent{Percent: 40, Origin: "nommo-ctl"}},
		{`{"type":"equalizer_set","data":{"level":3}}`, EqualizerSet{Level: 3}},
	}

	for _, tc := range cases {
		got, err := UnmarshalEvent([]byte(tc.line))
		if err != nil {
			t.Errorf("UnmarshalEvent(%s) failed: %v", tc.line, err)
			continue
		}
		if got != tc.want {
			t.Errorf("UnmarshalEvent(%s) = %#v, want %#v", tc.line, got, tc.want)
		}
	}
}

func TestUnmarshalEvent_RejectsUnknownType(t *testing.T) {
	if _, err := UnmarshalEvent([]byte(`{"type":"volume_warp"}`)); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestUnmarshalEvent_RejectsOutOfRangePercent(t *testing.T) {
	if _, err := UnmarshalEvent([]byte(`{"type":"set_volume_percent","data":{"percent":150}}`)); err == nil {
		t.Error("expected error for percent > 100")
	}
}

func TestUnmarshalEvent_RejectsMalformedJSON(t *testing.T) {
	if _, err := UnmarshalEvent([]byte(`{"type":`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestMarshalEvent_RoundTrip(t *testing.T) {
	events := []Event{
		VolumeUp{},
		VolumeDown{},
		ToggleMute{},
		SetVolumePercent{Percent: 40, Origin: "ipc"},
		EqualizerSet{Level: 7},
	}

	for _, ev := range events {
		data, err := MarshalEvent(ev)
		if err != nil {
			t.Errorf("MarshalEvent(%#v) failed: %v", ev, err)
			continue
		}
		got, err := UnmarshalEvent(data)
		if err != nil {
			t.Errorf("UnmarshalEvent(%s) failed: %v", data, err)
			continue
		}
		if got != ev {
			t.Errorf("round trip of %#v produced %#v", ev, got)
		}
	}
}

func TestMarshalEvent_RejectsNonIPCEvents(t *testing.T) {
	// Observation events are internal; they never travel over IPC.
	if _, err := MarshalEvent(SinkMuteObserved{Muted: true}); err == nil {
		t.Error("expected error marshaling an internal observation event")
	}
}
