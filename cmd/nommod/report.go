package main

import "fmt"

// DecodeError indicates a buffer that is out of contract for the device
// (wrong length). It carries the raw bytes for diagnostics.
type DecodeError struct {
	Report []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("report out of contract (%d bytes): % x", len(e.Report), e.Report)
}

// DecodeReport maps one 16-byte input report to an Action.
//
// Matching is first-match-wins on the most specific prefix. Unrecognized
// byte patterns decode to NoOp: the headset emits periodic chatter
// (heartbeats, other buttons) that must never disturb the loop, so decoding
// is total over well-formed reports. Only a wrong-length buffer fails.
func DecodeReport(buf []byte) (Action, error) {
	if len(buf) != reportSize {
		return nil, &DecodeError{Report: buf}
	}

	switch {
	case buf[0] == reportFamilyControl && buf[1] == controlVolumeUp:
		return VolumeUp{}, nil

	case buf[0] == reportFamilyControl && buf[1] == controlVolumeDown:
		return VolumeDown{}, nil

	case buf[0] == reportFamilyEqualizer && buf[1] == equalizerSetValue:
		return EqualizerSet{Level: buf[3]}, nil

	default:
		return NoOp{}, nil
	}
}
