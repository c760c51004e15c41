package main

import (
	"errors"
	"testing"
)

// report builds a 16-byte report with the given leading bytes.
func report(lead ...byte) []byte {
	buf := make([]byte, reportSize)
	copy(buf, lead)
	return buf
}

func TestDecodeReport_VolumeUp(t *testing.T) {
	action, err := DecodeReport(report(1, 233))
	if err != nil {
		t.Fatalf("DecodeReport failed: %v", err)
	}
	if _, ok := action.(VolumeUp); !ok {
		t.Fatalf("expected VolumeUp, got %T", action)
	}
}

func TestDecodeReport_VolumeDown(t *testing.T) {
	action, err := DecodeReport(report(1, 234))
	if err != nil {
		t.Fatalf("DecodeReport failed: %v", err)
	}
	if _, ok := action.(VolumeDown); !ok {
		t.Fatalf("expected VolumeDown, got %T", action)
	}
}

func TestDecodeReport_EqualizerSet(t *testing.T) {
	action, err := DecodeReport(report(5, 15, 0, 42))
	if err != nil {
		t.Fatalf("DecodeReport failed: %v", err)
	}
	eq, ok := action.(EqualizerSet)
	if !ok {
		t.Fatalf("expected EqualizerSet, got %T", action)
	}
	if eq.Level != 42 {
		t.Errorf("expected equalizer level 42, got %d", eq.Level)
	}
}

func TestDecodeReport_EqualizerIgnoresPaddingByte(t *testing.T) {
	// Byte 2 is don't-care in the equalizer report.
	action, err := DecodeReport(report(5, 15, 0xff, 7))
	if err != nil {
		t.Fatalf("DecodeReport failed: %v", err)
	}
	eq, ok := action.(EqualizerSet)
	if !ok {
		t.Fatalf("expected EqualizerSet, got %T", action)
	}
	if eq.Level != 7 {
		t.Errorf("expected equalizer level 7, got %d", eq.Level)
	}
}

func TestDecodeReport_UnrecognizedIsNoOp(t *testing.T) {
	cases := [][]byte{
		report(9, 9, 9, 9),
		report(1, 200),  // control family, unknown control
		report(5, 16),   // equalizer family, unknown control
		report(0, 233),  // wrong family for volume up code
		make([]byte, reportSize), // all zeros (heartbeat)
	}

	for _, buf := range cases {
		action, err := DecodeReport(buf)
		if err != nil {
			t.Fatalf("DecodeReport(% x) failed: %v", buf, err)
		}
		if _, ok := action.(NoOp); !ok {
			t.Errorf("DecodeReport(% x) = %T, want NoOp", buf, action)
		}
	}
}

func TestDecodeReport_WrongLength(t *testing.T) {
	for _, n := range []int{0, 1, 8, 15, 17, 64} {
		buf := make([]byte, n)
		if n > 1 {
			buf[0], buf[1] = 1, 233
		}

		action, err := DecodeReport(buf)
		if err == nil {
			t.Fatalf("DecodeReport with %d bytes succeeded (%T), want error", n, action)
		}

		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("expected *DecodeError for %d bytes, got %T: %v", n, err, err)
		}
		if len(de.Report) != n {
			t.Errorf("DecodeError carries %d bytes, want %d", len(de.Report), n)
		}
	}
}

func TestDecodeReport_TrailingBytesIgnored(t *testing.T) {
	// Only the leading bytes matter; the rest of the report is don't-care.
	buf := report(1, 233)
	for i := 2; i < reportSize; i++ {
		buf[i] = 0xab
	}

	action, err := DecodeReport(buf)
	if err != nil {
		t.Fatalf("DecodeReport failed: %v", err)
	}
	if _, ok := action.(VolumeUp); !ok {
		t.Fatalf("expected VolumeUp, got %T", action)
	}
}
