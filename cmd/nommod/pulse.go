package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jfreymuth/pulse/proto"
)

// PulseGateway manages the native protocol connection to the PulseAudio
// (or PipeWire-pulse) server and implements SinkGateway against the active
// sink. No pactl subprocesses, no text parsing: levels travel as structured
// values end to end.
type PulseGateway struct {
	mu     sync.Mutex
	client *proto.Client
	conn   net.Conn

	server string // empty means the default server address
	sink   string // resolved sink name; re-resolved on reconnect if pinned empty
	pinned string // sink name pinned by configuration, empty for default sink

	// channels is the channel count of the sink, learned from the last
	// successful read. Volume is applied uniformly across all channels.
	channels int

	logger *slog.Logger
}

// volumeNorm is the wire value for 100% volume (PA_VOLUME_NORM).
const volumeNorm = 0x10000

// NewPulseGateway creates a gateway and establishes the initial connection.
// sinkName pins a specific sink; leave empty to follow the server's default
// sink.
func NewPulseGateway(server, sinkName string, logger *slog.Logger) (*PulseGateway, error) {
	g := &PulseGateway{
		server:   server,
		pinned:   sinkName,
		channels: 2,
		logger:   logger,
	}

	if err := g.connectWithRetry(); err != nil {
		return nil, err
	}

	return g, nil
}

// connect establishes the protocol connection, authenticates, and resolves
// the target sink.
func (g *PulseGateway) connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closeLocked()

	client, conn, err := proto.Connect(g.server)
	if err != nil {
		return fmt.Errorf("connect to pulseaudio: %w", err)
	}

	cookie := loadCookie()

	var authReply proto.AuthReply
	err = client.Request(&proto.Auth{
		Version: client.Version(),
		Cookie:  cookie,
	}, &authReply)
	if err != nil {
		conn.Close()
		return fmt.Errorf("pulseaudio auth: %w", err)
	}
	client.SetVersion(authReply.Version)

	err = client.Request(&proto.SetClientName{Props: proto.PropList{
		"application.name": proto.PropListString("nommod"),
	}}, &proto.SetClientNameReply{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("set client name: %w", err)
	}

	sink := g.pinned
	if sink == "" {
		var info proto.GetServerInfoReply
		if err := client.Request(&proto.GetServerInfo{}, &info); err != nil {
			conn.Close()
			return fmt.Errorf("get server info: %w", err)
		}
		if info.DefaultSinkName == "" {
			conn.Close()
			return fmt.Errorf("no default sink reported by server")
		}
		sink = info.DefaultSinkName
	}

	g.client = client
	g.conn = conn
	g.sink = sink
	return nil
}

// connectWithRetry attempts to connect with backoff.
func (g *PulseGateway) connectWithRetry() error {
	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		err := g.connect()
		if err == nil {
			g.logger.Info("connected to pulseaudio", "sink", g.sink)
			return nil
		}
		lastErr = err
		g.logger.Warn("pulseaudio connection failed; retrying...", "error", err, "attempt", attempt+1)
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("failed to connect after 10 attempts: %w", lastErr)
}

// ensureConnected checks connection and reconnects if necessary.
func (g *PulseGateway) ensureConnected() error {
	g.mu.Lock()
	if g.client != nil {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	g.logger.Warn("pulseaudio connection lost; reconnecting...")
	return g.connectWithRetry()
}

// request performs one protocol request, marking the connection broken on
// failure so the next call reconnects.
func (g *PulseGateway) request(req proto.RequestArgs, rpl proto.Reply) error {
	if err := g.ensureConnected(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		return fmt.Errorf("no pulseaudio connection")
	}

	if err := g.client.Request(req, rpl); err != nil {
		g.closeLocked()
		return err
	}
	return nil
}

// CurrentLevel reads the sink's volume and mute flag and collapses them
// into a VolumeLevel. A muted sink, or one at 0%, is the muted level.
func (g *PulseGateway) CurrentLevel() (VolumeLevel, error) {
	var info proto.GetSinkInfoReply
	err := g.request(&proto.GetSinkInfo{
		SinkIndex: proto.Undefined,
		SinkName:  g.sinkName(),
	}, &info)
	if err != nil {
		return VolumeLevel{}, fmt.Errorf("get sink info: %w", err)
	}

	if n := len(info.ChannelVolumes); n > 0 {
		g.mu.Lock()
		g.channels = n
		g.mu.Unlock()
	}

	percent := volumesToPercent(info.ChannelVolumes)
	if info.Mute || percent == 0 {
		return MutedLevel(), nil
	}
	return Value(percent), nil
}

// Apply sets the sink volume to the given level, uniformly across all
// channels. The muted level applies 0%.
func (g *PulseGateway) Apply(level VolumeLevel) error {
	g.mu.Lock()
	channels := g.channels
	g.mu.Unlock()

	vol := percentToVolume(level.Percent())
	cv := make(proto.ChannelVolumes, channels)
	for i := range cv {
		cv[i] = vol
	}

	err := g.request(&proto.SetSinkVolume{
		SinkIndex:      proto.Undefined,
		SinkName:       g.sinkName(),
		ChannelVolumes: cv,
	}, nil)
	if err != nil {
		return fmt.Errorf("set sink volume: %w", err)
	}

	g.logger.Debug("applied sink volume", "level", level.String())
	return nil
}

// SetMute sets the sink's mute flag.
func (g *PulseGateway) SetMute(muted bool) error {
	err := g.request(&proto.SetSinkMute{
		SinkIndex: proto.Undefined,
		SinkName:  g.sinkName(),
		Mute:      muted,
	}, nil)
	if err != nil {
		return fmt.Errorf("set sink mute: %w", err)
	}

	g.logger.Debug("applied sink mute", "muted", muted)
	return nil
}

// Close closes the protocol connection.
func (g *PulseGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeLocked()
	return nil
}

func (g *PulseGateway) closeLocked() {
	if g.conn != nil {
		g.conn.Close()
	}
	g.client = nil
	g.conn = nil
}

func (g *PulseGateway) sinkName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sink
}

// volumesToPercent converts per-channel volumes to a rounded percentage,
// averaging channels the way pactl presents them.
func volumesToPercent(cv proto.ChannelVolumes) uint8 {
	if len(cv) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range cv {
		sum += uint64(v)
	}
	avg := sum / uint64(len(cv))

	percent := (avg*100 + volumeNorm/2) / volumeNorm
	if percent > 100 {
		percent = 100
	}
	return uint8(percent)
}

// percentToVolume converts a percentage to the wire volume unit.
func percentToVolume(percent uint8) uint32 {
	return uint32(uint64(percent) * volumeNorm / 100)
}

// loadCookie reads the PulseAudio auth cookie. A missing cookie is not an
// error: same-user unix socket connections authenticate without one.
func loadCookie() []byte {
	if p, ok := os.LookupEnv("PULSE_COOKIE"); ok {
		if b, err := os.ReadFile(p); err == nil {
			return b
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	for _, p := range []string{
		filepath.Join(home, ".config", "pulse", "cookie"),
		filepath.Join(home, ".pulse-cookie"),
	} {
		if b, err := os.ReadFile(p); err == nil {
			return b
		}
	}
	return nil
}
