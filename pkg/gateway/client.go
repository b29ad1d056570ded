// Package gateway maintains the client's persistent connection to the
// event stream: identification handshake, heartbeat, reconnection with
// backoff, and dispatch of decoded events into the entity cache.
//
// One Client serves one logical session. Inbound frames are decoded and
// folded into the cache strictly in arrival order on the read
// goroutine; caller-facing mutators serialize against that path with
// the client's cache mutex.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/accordlabs/accord-go/pkg/backoff"
	"github.com/accordlabs/accord-go/pkg/cache"
	"github.com/accordlabs/accord-go/pkg/pref"
	"github.com/accordlabs/accord-go/pkg/rest"
	"github.com/accordlabs/accord-go/pkg/wire"
)

// ErrNotConnected is returned by writes attempted without a live
// socket.
var ErrNotConnected = errors.New("gateway: not connected")

// prefKeyPresence is the preference key the presence replay reads.
const prefKeyPresence = "presence"

// presencePref is the locally persisted presence preference.
type presencePref struct {
	Status       wire.Status `json:"status"`
	CustomStatus string      `json:"custom_status"`
}

// Client is the session state machine. Create one with New, start it
// with Connect, stop it with Close.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	rest    *rest.Client
	backoff *backoff.Backoff
	metrics *metrics

	presence *pref.Pref[presencePref]

	// cacheMu serializes cache mutation between the dispatch goroutine
	// and caller-facing mutators.
	cacheMu sync.Mutex
	cache   *cache.Cache

	keepAlive atomic.Bool
	state     atomic.Int32

	mu          sync.Mutex
	conn        *websocket.Conn
	connDone    chan struct{}
	readyCh     chan struct{}
	readyClosed bool

	lmu       sync.Mutex
	listeners map[string][]*listenerEntry

	pushOnce sync.Once
}

// New builds a Client from cfg. Missing fields take the defaults from
// DefaultConfig.
func New(cfg Config) *Client {
	cfg.withDefaults()

	c := &Client{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "gateway"),
		rest:      cfg.REST,
		backoff:   backoff.New(cfg.BackoffBase, cfg.BackoffMax),
		metrics:   gatewayMetrics(),
		cache:     cache.New(cfg.REST),
		listeners: make(map[string][]*listenerEntry),
	}
	if cfg.Prefs != nil {
		c.presence = pref.New(cfg.Prefs, prefKeyPresence, presencePref{Status: wire.StatusOnline})
	}
	return c
}

// Cache returns the entity cache. Callers outside the dispatch path
// must treat it as read-only and learn about mutations through On.
func (c *Client) Cache() *cache.Cache { return c.cache }

// State returns the connection state.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	c.metrics.connectionState.Set(float64(s))
	if prev != s {
		c.logger.Debug("state change", "from", prev, "to", s)
	}
}

// Connect opens the socket and blocks until the session reaches ready,
// the context ends, or the initial dial fails. After it returns the
// client keeps the connection alive, reconnecting with backoff until
// Close is called.
func (c *Client) Connect(ctx context.Context) error {
	c.keepAlive.Store(true)

	c.mu.Lock()
	if c.readyCh == nil || c.readyClosed {
		c.readyCh = make(chan struct{})
		c.readyClosed = false
	}
	ready := c.readyCh
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected)
		c.keepAlive.Store(false)
		return err
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}
}

// dial opens a socket and starts its read and heartbeat goroutines.
func (c *Client) dial(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.GatewayURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("gateway: dial %s: %w", c.cfg.GatewayURL, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	if old := c.conn; old != nil {
		old.Close()
	}
	c.conn = conn
	c.connDone = done
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.cfg.GatewayURL)
	go c.readLoop(conn, done)
	go c.pingLoop(done)
	return nil
}

// readLoop reads, decodes and dispatches frames until the connection
// drops. The read deadline rides three heartbeat periods ahead, so a
// peer that stops answering pings eventually trips it.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		conn.SetReadDeadline(time.Now().Add(3 * c.cfg.PingInterval))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) && c.keepAlive.Load() {
				c.logger.Warn("read error", "error", err)
			}
			break
		}
		c.metrics.framesTotal.Inc()
		c.handleFrame(msg)
	}

	c.handleDisconnect(conn)
}

// pingLoop sends a ping frame every heartbeat period until the
// connection's read loop exits.
func (c *Client) pingLoop(done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.writeFrame(wire.NewPing()); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		case <-done:
			return
		}
	}
}

// handleDisconnect clears the dead connection and schedules a
// reconnect when keep-alive is still wanted.
func (c *Client) handleDisconnect(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	if !c.keepAlive.Load() {
		c.setState(StateDisconnected)
		return
	}
	c.scheduleReconnect()
}

// scheduleReconnect arms a backoff-delayed reconnect attempt. The
// keep-alive flag is rechecked when the timer fires, so a Close during
// the delay cancels the attempt.
func (c *Client) scheduleReconnect() {
	if !c.keepAlive.Load() {
		return
	}
	c.setState(StateReconnecting)
	c.metrics.reconnectsTotal.Inc()

	delay := c.backoff.Delay()
	c.logger.Info("connection lost, reconnecting", "delay", delay)

	time.AfterFunc(delay, func() {
		if !c.keepAlive.Load() {
			return
		}
		if err := c.dial(context.Background()); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
			c.scheduleReconnect()
		}
	})
}

// Close tears down the connection, suppresses auto-reconnect and any
// pending reconnect timer, and leaves the cache in its last-known
// state.
func (c *Client) Close() error {
	c.keepAlive.Store(false)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.setState(StateDisconnected)
	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// writeFrame encodes v and writes it as one binary message.
func (c *Client) writeFrame(v any) error {
	data, err := wire.Encode(v)
	if err != nil {
		return fmt.Errorf("gateway: encode frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("gateway: write frame: %w", err)
	}
	return nil
}

// sendIdentify sends the handshake frame carrying the bearer
// credential and device tag.
func (c *Client) sendIdentify() {
	if err := c.writeFrame(wire.NewIdentify(c.cfg.Token, c.cfg.Device)); err != nil {
		c.logger.Error("identify failed", "error", err)
		return
	}
	c.setState(StateAwaitingReady)
}

// signalReady releases the Connect waiter, once per ready cycle.
func (c *Client) signalReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readyCh != nil && !c.readyClosed {
		close(c.readyCh)
		c.readyClosed = true
	}
}

// applyReady hydrates the cache from a snapshot and moves the session
// to ready. Callers must not hold cacheMu; the dispatch path, which
// already does, hydrates directly and calls finishReady itself.
func (c *Client) applyReady(ready *wire.ReadyEvent) {
	c.cacheMu.Lock()
	c.cache.HydrateFromReady(ready)
	c.cacheMu.Unlock()

	c.finishReady(ready)
}

// finishReady runs the post-hydration transition: backoff reset, ready
// state, presence replay and the one-time push hook.
func (c *Client) finishReady(ready *wire.ReadyEvent) {
	c.backoff.Reset()
	c.setState(StateReady)
	c.signalReady()
	c.logger.Info("session ready", "session_id", ready.SessionID,
		"guilds", len(ready.Guilds), "dm_channels", len(ready.DMChannels))

	c.replayPresence()

	if hook := c.cfg.PushHook; hook != nil {
		c.pushOnce.Do(func() {
			go hook(ready.SessionID)
		})
	}
}

// replayPresence re-sends the locally persisted presence so the server
// learns the client's last-set status after a resume.
func (c *Client) replayPresence() {
	if c.presence == nil || !c.presence.Stored() {
		return
	}
	p := c.presence.Get()
	if err := c.writeFrame(wire.NewPresenceUpdate(p.Status, p.CustomStatus)); err != nil {
		c.logger.Debug("presence replay skipped", "error", err)
	}
}
