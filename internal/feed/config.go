package feed

import (
	"errors"
	"net/http"
	"time"
)

// Default values for the feed client.
const (
	DefaultBaseDelay         = 100 * time.Millisecond
	DefaultMaxDelay          = 30 * time.Second
	DefaultJitterFactor      = 0.5 // 50% jitter
	DefaultMaxRetryAttempts  = 5   // consecutive failures before alerting
	DefaultHeartbeatInterval = 6 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second

	DefaultDestination    = "/user/exchange/amq.direct/feed-collection"
	DefaultSubscriptionID = "sub-9"
	DefaultLocale         = "uk"
)

// DefaultSubprotocols are the STOMP versions offered during the websocket handshake.
var DefaultSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// Configuration errors.
var (
	ErrEmptyURL            = errors.New("feed URL cannot be empty")
	ErrInvalidDelay        = errors.New("base delay must be positive")
	ErrInvalidMaxDelay     = errors.New("max delay must be >= base delay")
	ErrInvalidJitter       = errors.New("jitter factor must be between 0 and 1")
	ErrInvalidHeartbeat    = errors.New("heartbeat interval must be positive")
	ErrEmptyDestination    = errors.New("feed destination cannot be empty")
	ErrEmptySubscriptionID = errors.New("subscription id cannot be empty")
)

// Config holds configuration for the feed websocket client.
type Config struct {
	// URL is the websocket endpoint.
	URL string

	// Origin and Cookies are sent with the websocket handshake.
	Origin  string
	Cookies []*http.Cookie

	// Subprotocols offered to the server.
	Subprotocols []string

	// Destination and SubscriptionID identify the frames carrying record batches.
	Destination    string
	SubscriptionID string

	// Locale is sent to the session settings endpoint after subscribing.
	Locale string

	// HeartbeatInterval is how often a heartbeat is sent while connected.
	HeartbeatInterval time.Duration

	// BaseDelay is the initial delay before the first reconnect attempt.
	BaseDelay time.Duration

	// MaxDelay is the maximum delay between reconnect attempts.
	MaxDelay time.Duration

	// JitterFactor is the fraction of delay to randomize (0.0 to 1.0).
	// A value of 0.5 means the actual delay will be in [delay*0.75, delay*1.25].
	JitterFactor float64

	// MaxRetryAttempts is the number of consecutive reconnection attempts
	// after which each failure is logged as an error. 0 disables the alert.
	MaxRetryAttempts int64
}

// DefaultConfig returns a Config with sensible default values.
// The URL must be provided by the caller.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		Subprotocols:      DefaultSubprotocols,
		Destination:       DefaultDestination,
		SubscriptionID:    DefaultSubscriptionID,
		Locale:            DefaultLocale,
		HeartbeatInterval: DefaultHeartbeatInterval,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		JitterFactor:      DefaultJitterFactor,
		MaxRetryAttempts:  DefaultMaxRetryAttempts,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.URL == "" {
		return ErrEmptyURL
	}
	if c.BaseDelay <= 0 {
		return ErrInvalidDelay
	}
	if c.MaxDelay < c.BaseDelay {
		return ErrInvalidMaxDelay
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return ErrInvalidJitter
	}
	if c.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeat
	}
	if c.Destination == "" {
		return ErrEmptyDestination
	}
	if c.SubscriptionID == "" {
		return ErrEmptySubscriptionID
	}
	return nil
}
