package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("nommod v%s\n", version)
	fmt.Println("Razer Nommo headset volume wheel daemon for PulseAudio")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nommod [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that bridges the volume wheel on a Razer Nommo headset (via")
	fmt.Println("  hidapi) to PulseAudio sink volume over the native protocol. The wheel")
	fmt.Println("  steps volume in fixed increments; stepping down to zero mutes the sink")
	fmt.Println("  and stepping up from mute unmutes it.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional; flags override file values)")
	fmt.Println()
	fmt.Println("  -pulse-server string")
	fmt.Println("        PulseAudio server address (default: $PULSE_SERVER or the per-user socket)")
	fmt.Println()
	fmt.Println("  -pulse-sink string")
	fmt.Println("        Pin a specific sink by name (default: follow the server's default sink)")
	fmt.Println()
	fmt.Println("  -step int")
	fmt.Printf("        Volume step per wheel press in percent (default %d)\n", defaultStepPercent)
	fmt.Println()
	fmt.Println("  -refresh-ms int")
	fmt.Printf("        Idle sink poll interval in ms, 0 disables (default %d)\n", defaultRefreshMS)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocketPath)
	fmt.Println()
	fmt.Println("  -state-ws-port int")
	fmt.Printf("        State WebSocket listener port, 0 disables (default %d)\n", defaultStateWSPort)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start daemon with default settings")
	fmt.Println("  nommod")
	fmt.Println()
	fmt.Println("  # Larger steps against a pinned sink")
	fmt.Println("  nommod -step 10 -pulse-sink alsa_output.usb-Razer_Nommo-00.analog-stereo")
	fmt.Println()
	fmt.Println("  # Config file with ad-hoc log override")
	fmt.Println("  nommod -config ~/.config/nommod/config.yaml -log-level debug")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the headset hidraw device (udev rule or root)")
	fmt.Println("  - Use nommo-ctl to drive the daemon over IPC from scripts and keybindings")
	fmt.Println()
}

func main() {
	// Check for version/help flags early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		pulseServer   = flag.String("pulse-server", "", "PulseAudio server address")
		pulseSink     = flag.String("pulse-sink", "", "Pin a specific sink by name")
		stepPercent   = flag.Int("step", defaultStepPercent, "Volume step per wheel press in percent")
		refreshMS     = flag.Int("refresh-ms", defaultRefreshMS, "Idle sink poll interval in ms, 0 disables")
		ipcSocketPath = flag.String("ipc-socket", defaultIPCSocketPath, "Unix domain socket path for IPC")
		stateWSPort   = flag.Int("state-ws-port", defaultStateWSPort, "State WebSocket listener port, 0 disables")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion   = flag.Bool("version", false, "Print version and exit")
		showHelp      = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Config file first, then flags that were actually set override it.
	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pulse-server":
			overrides.PulseServer = pulseServer
		case "pulse-sink":
			overrides.PulseSink = pulseSink
		case "step":
			overrides.StepPercent = stepPercent
		case "refresh-ms":
			overrides.RefreshMS = refreshMS
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "state-ws-port":
			overrides.StateWSPort = stateWSPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	// Open headset HID interface
	headset, err := openHeadset(cfg.Device.VendorID, cfg.Device.ProductID, logger)
	if err != nil {
		logger.Error("failed to open headset device", "error", err, "tip", "check udev rules grant hidraw access")
		os.Exit(1)
	}
	defer headset.Close()

	// Connect to PulseAudio
	gateway, err := NewPulseGateway(cfg.Pulse.Server, cfg.Pulse.Sink, logger)
	if err != nil {
		logger.Error("failed to connect to pulseaudio", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Central event bus into the daemon brain
	events := make(chan Event, 64)
	broadcasts := make(chan StateBroadcast, 64)

	state := &DaemonState{}
	reducerCfg := ReducerConfig{StepPercent: uint8(cfg.Volume.StepPercent)}
	refresh := time.Duration(cfg.Daemon.RefreshMS) * time.Millisecond

	go runDaemon(ctx, events, gateway, reducerCfg, state, refresh, broadcasts, logger)

	// IPC server for nommo-ctl and scripting
	go func() {
		if err := runIPCServer(ctx, cfg.IPC.SocketPath, events, logger); err != nil {
			logger.Error("IPC server error", "error", err)
		}
	}()

	// State WebSocket server
	wsServer := NewServer(logger, events, ServerConfig{})
	go wsServer.Hub().Run(ctx)
	go RunBroadcaster(ctx, wsServer.Hub(), broadcasts, logger)

	if cfg.StateWS.Port > 0 {
		mux := http.NewServeMux()
		wsServer.Register(mux, "/ws/state")
		addr := fmt.Sprintf(":%d", cfg.StateWS.Port)
		go func() {
			logger.Info("state ws listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("state ws server error", "error", err)
			}
		}()
	}

	// Read loop for headset reports
	reports := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go headset.readReports(reports, readErr)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	logger.Debug("configuration",
		"vendor_id", fmt.Sprintf("%04x", cfg.Device.VendorID),
		"product_id", fmt.Sprintf("%04x", cfg.Device.ProductID),
		"pulse_server", cfg.Pulse.Server,
		"pulse_sink", cfg.Pulse.Sink,
		"step_percent", cfg.Volume.StepPercent,
		"refresh_ms", cfg.Daemon.RefreshMS,
		"ipc_socket", cfg.IPC.SocketPath,
		"state_ws_port", cfg.StateWS.Port)
	logger.Info("listening",
		"ipc", cfg.IPC.SocketPath,
		"state_ws_port", cfg.StateWS.Port,
		"step_percent", cfg.Volume.StepPercent)

	if err := runInputLoop(sigc, reports, readErr, events, logger); err != nil {
		logger.Error("device reader stopped", "error", err)
		// os.Exit skips deferred closes, so release the handles here.
		cancel()
		headset.Close()
		gateway.Close()
		os.Exit(1)
	}

	logger.Info("shutting down")
	cancel()
}

// runInputLoop is the input coordination loop. It only handles:
//   - Shutdown signals
//   - Device read errors (fatal; the device is gone)
//   - Decoding raw reports into Events for the daemon brain
//
// The daemon brain (runDaemon) owns all state and drives the sink.
// Returns nil on a shutdown signal, or the read error when the device
// reader stops; the caller decides the exit status.
func runInputLoop(sigc <-chan os.Signal, reports <-chan []byte, readErr <-chan error, events chan<- Event, logger *slog.Logger) error {
	for {
		select {
		case <-sigc:
			return nil

		case err := <-readErr:
			return err

		case raw := <-reports:
			action, err := DecodeReport(raw)
			if err != nil {
				logger.Warn("dropping malformed report", "error", err)
				continue
			}
			if _, ok := action.(NoOp); ok {
				logger.Debug("unrecognized report", "report", fmt.Sprintf("%x", raw))
				continue
			}
			events <- action
		}
	}
}
