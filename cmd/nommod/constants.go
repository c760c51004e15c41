package main

// Razer Nommo Pro USB identity. The headset exposes its volume wheel and
// equalizer dial on this HID interface.
const (
	nommoVendorID  = 0x1532
	nommoProductID = 0x0517
)

// Input report layout (16 bytes, fixed).
//
// Byte 0 selects the report family, byte 1 the control within it:
//
//	[1, 233, ...]      volume wheel up
//	[1, 234, ...]      volume wheel down
//	[5, 15, _, v, ...] equalizer dial set to v
//
// Everything else is device chatter (heartbeats, other buttons).
const (
	reportSize = 16

	reportFamilyControl   = 0x01
	reportFamilyEqualizer = 0x05

	controlVolumeUp   = 233
	controlVolumeDown = 234
	equalizerSetValue = 0x0f
)

// Volume control configuration
const (
	// defaultStepPercent is the percentage-point change applied per wheel
	// detent.
	defaultStepPercent = 5

	// defaultRefreshMS is how often the daemon re-reads the sink state when
	// idle, so changes made by other programs are picked up and broadcast.
	defaultRefreshMS = 2000
)

// Ambient defaults
const (
	defaultIPCSocketPath = "/tmp/nommod.sock"
	defaultStateWSPort   = 3002
)
