package feed

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Fixed STOMP session values.
const (
	AcceptVersion     = "1.2,1.1,1.0"
	HeartBeatHeader   = "60000,60000"
	ConnectTarget     = "monitor"
	ConfigDestination = "/user/exchange/amq.direct/config"
	FeedDestination   = "/user/exchange/amq.direct/feed"
	SessionSettings   = "/settings/session"
	LocaleSettings    = "/settings/locale"
)

// heartbeatPayload is sent on the wire to keep the session alive.
var heartbeatPayload = []byte("\n\n")

// ErrSessionRejected is returned when the server answers with an ERROR frame.
var ErrSessionRejected = errors.New("feed session rejected")

// MessageHandler is called with the body of every MESSAGE frame that matches
// the configured subscription and destination.
// Return an error to signal the client should disconnect.
type MessageHandler func(ctx context.Context, body []byte) error

// ReconnectObserver is notified of every failed connection attempt.
type ReconnectObserver interface {
	IncReconnectionAttempts()
}

// Client is a resilient STOMP-over-websocket client for the event feed.
// It automatically reconnects with exponential backoff and jitter.
type Client struct {
	config   Config
	handler  MessageHandler
	logger   *slog.Logger
	observer ReconnectObserver

	mu          sync.Mutex
	rng         *rand.Rand // protected by mu
	conn        *websocket.Conn
	done        chan struct{}
	isConnected bool
	isSession   bool

	// writeMu serializes writes; gorilla connections allow one concurrent writer.
	writeMu sync.Mutex

	// reconnectCount tracks consecutive reconnection attempts (atomic)
	reconnectCount int64
}

// NewClient creates a new feed client with the given configuration.
// The handler function will be called for each matching message body.
func NewClient(config Config, handler MessageHandler, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:  config,
		handler: handler,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// SetReconnectObserver registers o to be told about failed connection attempts.
func (c *Client) SetReconnectObserver(o ReconnectObserver) {
	c.observer = o
}

// HandshakeFrames returns the frames sent once the server confirms the
// session: the config subscription, session settings, the feed and
// collection subscriptions, and the locale.
func HandshakeFrames(config Config) []Frame {
	locale := config.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	return []Frame{
		NewFrame(CommandSubscribe, nil, "id", "sub-0", "destination", ConfigDestination),
		NewFrame(CommandSend, nil, "destination", SessionSettings),
		NewFrame(CommandSubscribe, nil, "id", "sub-8", "destination", FeedDestination),
		NewFrame(CommandSubscribe, nil, "id", config.SubscriptionID, "destination", config.Destination),
		NewFrame(CommandSend, []byte(locale),
			"destination", LocaleSettings,
			"content-length", strconv.Itoa(len(locale))),
	}
}

// ConnectFrame returns the frame that opens the STOMP session.
func ConnectFrame() Frame {
	return NewFrame(CommandConnect, nil,
		"destination", ConnectTarget,
		"accept-version", AcceptVersion,
		"heart-beat", HeartBeatHeader)
}

// Run starts the client and blocks until the context is cancelled.
// It will automatically reconnect with exponential backoff on connection failures.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("feed client stopping due to context cancellation")
			c.close()
			return ctx.Err()
		default:
		}

		if err := c.connect(ctx); err != nil {
			attempt := atomic.LoadInt64(&c.reconnectCount) + 1
			level := slog.LevelWarn
			if c.config.MaxRetryAttempts > 0 && attempt >= c.config.MaxRetryAttempts {
				level = slog.LevelError
			}
			c.logger.Log(ctx, level, "feed connection failed",
				slog.String("error", err.Error()),
				slog.Int64("attempt", attempt))
			if c.observer != nil {
				c.observer.IncReconnectionAttempts()
			}

			delay := c.computeBackoff()
			atomic.AddInt64(&c.reconnectCount, 1)

			c.logger.Info("scheduling reconnect",
				slog.Duration("delay", delay),
				slog.Int64("attempt", atomic.LoadInt64(&c.reconnectCount)))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		atomic.StoreInt64(&c.reconnectCount, 0)

		c.readLoop(ctx)
	}
}

// connect dials the feed and sends the CONNECT frame.
func (c *Client) connect(ctx context.Context) error {
	c.logger.Info("connecting to feed", slog.String("url", c.config.URL))

	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultHandshakeTimeout,
		Subprotocols:     c.config.Subprotocols,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.URL, c.requestHeader())
	if err != nil {
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.isConnected = true
	c.isSession = false
	c.mu.Unlock()

	// ReadMessage does not observe ctx; closing the connection unblocks it.
	go func() {
		select {
		case <-ctx.Done():
			c.close()
		case <-done:
		}
	}()

	if err := c.write(ConnectFrame().Encode()); err != nil {
		c.close()
		return err
	}

	c.logger.Info("connected to feed")
	return nil
}

func (c *Client) requestHeader() http.Header {
	header := http.Header{}
	if c.config.Origin != "" {
		header.Set("Origin", c.config.Origin)
	}
	if len(c.config.Cookies) > 0 {
		parts := make([]string, 0, len(c.config.Cookies))
		for _, ck := range c.config.Cookies {
			parts = append(parts, ck.Name+"="+ck.Value)
		}
		header.Set("Cookie", strings.Join(parts, "; "))
	}
	return header
}

// readLoop reads frames from the connection until it closes.
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Get connection under lock to prevent race with close()
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("feed connection closed",
				slog.String("error", err.Error()))
			c.close()
			return
		}

		if err := c.handleFrame(ctx, payload); err != nil {
			c.logger.Error("feed frame handling failed",
				slog.String("error", err.Error()))
			c.close()
			return
		}
	}
}

// handleFrame dispatches a single websocket payload.
func (c *Client) handleFrame(ctx context.Context, payload []byte) error {
	if IsHeartbeat(payload) {
		return nil
	}

	frame, err := ParseFrame(payload)
	if err != nil {
		c.logger.Warn("dropping unparseable frame", slog.Int("bytes", len(payload)))
		return nil
	}

	switch frame.Command {
	case CommandConnected:
		return c.startSession(ctx)
	case CommandMessage:
		if !c.matches(frame) {
			return nil
		}
		if c.handler != nil {
			return c.handler(ctx, frame.Body)
		}
		return nil
	case CommandError:
		msg, _ := frame.Header("message")
		c.logger.Error("feed server error", slog.String("message", msg))
		return ErrSessionRejected
	default:
		c.logger.Debug("ignoring frame", slog.String("command", frame.Command))
		return nil
	}
}

// matches reports whether frame belongs to the configured subscription.
func (c *Client) matches(frame Frame) bool {
	sub, _ := frame.Header("subscription")
	dest, _ := frame.Header("destination")
	return sub == c.config.SubscriptionID && dest == c.config.Destination
}

// startSession sends the handshake frames and starts heartbeats. Repeated
// CONNECTED frames on the same connection are ignored.
func (c *Client) startSession(ctx context.Context) error {
	c.mu.Lock()
	if c.isSession {
		c.mu.Unlock()
		return nil
	}
	c.isSession = true
	done := c.done
	c.mu.Unlock()

	for _, f := range HandshakeFrames(c.config) {
		if err := c.write(f.Encode()); err != nil {
			return err
		}
	}
	c.logger.Info("feed session established",
		slog.String("subscription", c.config.SubscriptionID))

	go c.heartbeat(ctx, done)
	return nil
}

// heartbeat keeps the session alive until the connection or ctx is done.
func (c *Client) heartbeat(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(heartbeatPayload); err != nil {
				c.logger.Debug("heartbeat write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// write sends a text message on the current connection.
func (c *Client) write(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return websocket.ErrCloseSent
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// close cleanly closes the websocket connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.isConnected = false
	c.isSession = false
}

// computeBackoff calculates the next reconnection delay with exponential backoff and jitter.
func (c *Client) computeBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Cap the shift at 30 to prevent overflow
	reconnectCount := atomic.LoadInt64(&c.reconnectCount)
	shift := uint(reconnectCount)
	if shift > 30 {
		shift = 30
	}
	backoff := float64(c.config.BaseDelay) * float64(uint64(1)<<shift)

	if backoff > float64(c.config.MaxDelay) {
		backoff = float64(c.config.MaxDelay)
	}

	// Range is [delay*(1-jitter/2), delay*(1+jitter/2)]
	if c.config.JitterFactor > 0 {
		jitter := (c.rng.Float64() - 0.5) * c.config.JitterFactor
		backoff = backoff * (1 + jitter)
	}

	return time.Duration(backoff)
}

// IsConnected returns whether the client is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}
