package main

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

// TestInputLoop_ForwardsDecodedPresses checks raw reports become events on
// the daemon channel while malformed and unrecognized reports are dropped.
func TestInputLoop_ForwardsDecodedPresses(t *testing.T) {
	sigc := make(chan os.Signal, 1)
	reports := make(chan []byte, 4)
	readErr := make(chan error, 1)
	events := make(chan Event, 4)

	done := make(chan error, 1)
	go func() {
		done <- runInputLoop(sigc, reports, readErr, events, testLogger())
	}()

	reports <- report(1, 233)     // volume up
	reports <- []byte{1, 233}     // wrong length, dropped with a warning
	reports <- report(9, 9, 9, 9) // unrecognized, decodes to NoOp
	reports <- report(1, 234)     // volume down

	// Reports are processed in order, so receiving both presses proves the
	// bad reports in between were dropped rather than forwarded.
	recv := func() Event {
		select {
		case ev := <-events:
			return ev
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for forwarded event")
			return nil
		}
	}
	if _, ok := recv().(VolumeUp); !ok {
		t.Error("expected first event to be VolumeUp")
	}
	if _, ok := recv().(VolumeDown); !ok {
		t.Error("expected second event to be VolumeDown")
	}
	if len(events) != 0 {
		t.Errorf("expected no further events, got %d queued", len(events))
	}

	sigc <- syscall.SIGTERM
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on shutdown signal, got: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for loop to stop")
	}
}

// TestInputLoop_ReturnsReadError checks a device read error stops the loop
// and surfaces the error to the caller for cleanup and a nonzero exit.
func TestInputLoop_ReturnsReadError(t *testing.T) {
	sigc := make(chan os.Signal, 1)
	reports := make(chan []byte, 1)
	readErr := make(chan error, 1)
	events := make(chan Event, 1)

	devErr := errors.New("device disconnected")
	readErr <- devErr

	if err := runInputLoop(sigc, reports, readErr, events, testLogger()); !errors.Is(err, devErr) {
		t.Fatalf("expected the device error back, got: %v", err)
	}
}
