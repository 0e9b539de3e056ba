package health

import (
	"context"
	"errors"
)

// ErrFeedDisconnected is reported while the feed client is between connections.
var ErrFeedDisconnected = errors.New("feed disconnected")

// ConnectionState is implemented by the feed client.
type ConnectionState interface {
	IsConnected() bool
}

// FeedChecker fails while the feed connection is down.
type FeedChecker struct {
	state ConnectionState
}

// NewFeedChecker creates a checker backed by state.
func NewFeedChecker(state ConnectionState) *FeedChecker {
	return &FeedChecker{state: state}
}

// HealthCheck returns ErrFeedDisconnected while disconnected.
func (f *FeedChecker) HealthCheck(ctx context.Context) error {
	if !f.state.IsConnected() {
		return ErrFeedDisconnected
	}
	return nil
}
