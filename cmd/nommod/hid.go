package main

import (
	"fmt"
	"log/slog"

	"github.com/sstallion/go-hid"
)

// HeadsetDevice reads control reports from the headset's HID interface.
type HeadsetDevice struct {
	dev    *hid.Device
	logger *slog.Logger
}

// openHeadset initializes hidapi and opens the first matching headset
// control interface.
func openHeadset(vendorID, productID uint16, logger *slog.Logger) (*HeadsetDevice, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("hidapi init: %w", err)
	}

	dev, err := hid.OpenFirst(vendorID, productID)
	if err != nil {
		hid.Exit()
		return nil, fmt.Errorf("open device %04x:%04x: %w", vendorID, productID, err)
	}

	logger.Info("opened headset device",
		"vendor_id", fmt.Sprintf("%04x", vendorID),
		"product_id", fmt.Sprintf("%04x", productID))

	return &HeadsetDevice{dev: dev, logger: logger}, nil
}

// readReports blocks on the device and forwards each raw report to the
// reports channel. A read error is fatal for the device: it is sent on
// readErr and the loop exits. Closing the device unblocks the pending read.
func (h *HeadsetDevice) readReports(reports chan<- []byte, readErr chan<- error) {
	for {
		buf := make([]byte, reportSize)
		n, err := h.dev.Read(buf)
		if err != nil {
			readErr <- fmt.Errorf("device read: %w", err)
			return
		}
		reports <- buf[:n]
	}
}

// Close closes the device handle and finalizes hidapi.
func (h *HeadsetDevice) Close() error {
	err := h.dev.Close()
	hid.Exit()
	return err
}
