package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/proto"
)

// State is the live channel's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ChannelOptions tunes the reconnect policy.
type ChannelOptions struct {
	// ReconnectBase is the first retry delay; each further attempt doubles
	// it up to ReconnectCap. Reconnection stops after MaxReconnectAttempts
	// consecutive failures and resumes only on an explicit Connect.
	ReconnectBase        time.Duration
	ReconnectCap         time.Duration
	MaxReconnectAttempts int
	WriteTimeout         time.Duration
	Logger               *zerolog.Logger
}

func (o *ChannelOptions) withDefaults() {
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectCap <= 0 {
		o.ReconnectCap = 30 * time.Second
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 5
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
}

// Channel maintains at most one live WebSocket per room-view. A clean
// closure (explicit Disconnect or close code 1000) never reconnects; any
// abnormal closure schedules a reconnect with exponential backoff.
type Channel struct {
	url    string
	author string
	opts   ChannelOptions

	onMessage func(proto.Frame)
	onState   func(State)

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	timer    *time.Timer
	attempts int
	// gen invalidates outstanding dials, read loops, and reconnect timers:
	// each Connect/Disconnect bumps it, and stale work is discarded, so no
	// callback ever fires into a torn-down view.
	gen int
}

// NewChannel builds a live channel manager for one room. serverURL is the
// http(s) base address of the coordinator.
func NewChannel(serverURL, roomID, author string, opts ChannelOptions) *Channel {
	opts.withDefaults()
	return &Channel{
		url:    wsURL(serverURL, roomID),
		author: author,
		opts:   opts,
	}
}

// OnMessage registers the broadcast callback. Call before Connect.
func (c *Channel) OnMessage(fn func(proto.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// OnState registers the connection-state callback. Call before Connect.
func (c *Channel) OnState(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the channel. Idempotent: a no-op while the channel is
// already open or opening. Completion is signaled through the state
// callback, not a return value.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.attempts = 0
	c.stopTimerLocked()
	notify := c.setStateLocked(Connecting)
	c.mu.Unlock()
	notify()

	go c.dial(gen)
}

// Send attempts an immediate send over the open channel. False means the
// channel is absent or not open: the caller should use the fallback
// request path. False is a signal, not an error.
func (c *Channel) Send(content string) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == Connected && conn != nil
	c.mu.Unlock()
	if !open {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
	defer cancel()

	err := wsjson.Write(ctx, conn, proto.Frame{
		Type:    proto.FrameTypeMessage,
		Content: content,
		Author:  c.author,
	})
	if err != nil {
		// The read loop observes the broken connection and drives the
		// reconnect; this call just reports the miss.
		c.opts.Logger.Warn().Err(err).Msg("live send failed")
		return false
	}
	return true
}

// Disconnect closes the channel with a normal-closure code and cancels any
// pending reconnect. Idempotent. No callbacks fire afterwards.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.stopTimerLocked()
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}

func (c *Channel) dial(gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url, nil)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "stale dial")
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.opts.Logger.Warn().Err(err).Str("url", c.url).Msg("ws dial failed")
		c.scheduleReconnect(gen)
		return
	}
	c.conn = conn
	c.attempts = 0
	notify := c.setStateLocked(Connected)
	c.mu.Unlock()
	notify()

	go c.readLoop(gen, conn)
}

func (c *Channel) readLoop(gen int, conn *websocket.Conn) {
	for {
		var frame proto.Frame
		if err := wsjson.Read(context.Background(), conn, &frame); err != nil {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.conn = nil
			notify := c.setStateLocked(Disconnected)
			c.mu.Unlock()
			notify()

			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure {
				// Clean closure: stay down until the caller reconnects.
				return
			}
			c.opts.Logger.Warn().Err(err).Msg("live channel closed abnormally")
			c.scheduleReconnect(gen)
			return
		}

		c.mu.Lock()
		cb := c.onMessage
		valid := gen == c.gen
		c.mu.Unlock()
		if valid && cb != nil {
			cb(frame)
		}
	}
}

func (c *Channel) scheduleReconnect(gen int) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.opts.MaxReconnectAttempts {
		c.opts.Logger.Warn().Int("attempts", c.attempts).Msg("reconnect attempts exhausted")
		// Settle on Disconnected so an explicit Connect can start over.
		// Reached in the Connecting state when the budget runs out on dial
		// failures; after a dropped connection the read loop has already
		// made this transition and the call is a no-op.
		notify := c.setStateLocked(Disconnected)
		c.mu.Unlock()
		notify()
		return
	}

	delay := c.opts.ReconnectBase << c.attempts
	if delay > c.opts.ReconnectCap {
		delay = c.opts.ReconnectCap
	}
	c.attempts++
	c.opts.Logger.Debug().Dur("delay", delay).Int("attempt", c.attempts).Msg("scheduling reconnect")

	c.stopTimerLocked()
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		notify := c.setStateLocked(Connecting)
		c.mu.Unlock()
		notify()
		c.dial(gen)
	})
	c.mu.Unlock()
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// setStateLocked updates the state and returns a function the caller must
// invoke after releasing c.mu. Firing outside the lock keeps callbacks
// free to call back into the channel; firing from the transitioning
// goroutine keeps them in order.
func (c *Channel) setStateLocked(s State) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	cb := c.onState
	if cb == nil {
		return func() {}
	}
	return func() { cb(s) }
}

func wsURL(serverURL, roomID string) string {
	base := serverURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimSuffix(base, "/") + "/rooms/" + roomID + "/ws"
}
