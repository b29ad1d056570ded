package gateway

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/accordlabs/accord-go/pkg/pref"
	"github.com/accordlabs/accord-go/pkg/rest"
	"github.com/accordlabs/accord-go/pkg/wire"
)

// DefaultGatewayURL is the production event stream endpoint.
const DefaultGatewayURL = "wss://gateway.accord.chat"

// Config configures a gateway Client.
type Config struct {
	// GatewayURL is the WebSocket endpoint (default: DefaultGatewayURL).
	GatewayURL string

	// Token is the bearer credential sent in the identify frame.
	Token string

	// Device tags the identify frame (default: DeviceDesktop).
	Device wire.Device

	// PingInterval is the heartbeat period (default: 15s).
	PingInterval time.Duration

	// WriteTimeout bounds each socket write (default: 10s).
	WriteTimeout time.Duration

	// BackoffBase and BackoffMax shape the reconnect delay sequence
	// (defaults: 1s and 120s).
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Dialer is the WebSocket dialer (default: websocket.DefaultDialer).
	Dialer *websocket.Dialer

	// REST is the HTTP collaborator used for the force-ready bootstrap,
	// optimistic sends and acknowledgments. Optional.
	REST *rest.Client

	// Prefs persists the presence preference across sessions. Optional.
	Prefs *pref.Store

	// PushHook is called once, on the first ready, with the session ID.
	// Optional.
	PushHook func(sessionID string)

	// Logger receives connection and dispatch diagnostics
	// (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultConfig returns the production defaults. Token must still be
// set by the caller.
func DefaultConfig() Config {
	return Config{
		GatewayURL:   DefaultGatewayURL,
		Device:       wire.DeviceDesktop,
		PingInterval: 15 * time.Second,
		WriteTimeout: 10 * time.Second,
		BackoffBase:  time.Second,
		BackoffMax:   120 * time.Second,
		Dialer:       websocket.DefaultDialer,
	}
}

func (c *Config) withDefaults() {
	d := DefaultConfig()
	if c.GatewayURL == "" {
		c.GatewayURL = d.GatewayURL
	}
	if c.Device == "" {
		c.Device = d.Device
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.Dialer == nil {
		c.Dialer = d.Dialer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
