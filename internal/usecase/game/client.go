// Package game exposes the typed command and event API of the game protocol.
//
// Commands (JoinLobby, SubmitWord, Leave) and subscriptions (OnJoinedGame,
// OnStateUpdate, OnGameEnded) share one connection. Responses are matched to
// requests by frame type only, so concurrent commands of the same kind are
// not individually correlated: the first one issued receives the first
// answer. See the dispatch package.
package game

import (
	"context"
	"log/slog"
	"time"

	"wordstory/internal/adapter/wire"
	"wordstory/internal/infra/metrics"
	"wordstory/internal/usecase/dispatch"
)

const (
	// DefaultJoinPollInterval is how often a pending join checks in.
	DefaultJoinPollInterval = time.Second
	// DefaultJoinMaxMisses is how many silent intervals a join tolerates.
	DefaultJoinMaxMisses = 5
)

// Transport sends frames and reports when the connection is gone.
// *transport.Conn satisfies it.
type Transport interface {
	Send(ctx context.Context, f wire.Frame) error
	Done() <-chan struct{}
}

// Client is the command and event facade over one connection.
type Client struct {
	transport Transport
	registry  dispatch.Dispatcher
	logger    *slog.Logger
	metrics   metrics.Recorder
	onError   func(error)

	joinPollInterval time.Duration
	joinMaxMisses    int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithErrorHandler receives errors from persistent subscriptions, such as a
// state payload that is not valid JSON. The default logs a warning.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Client) { c.onError = fn }
}

// WithJoinWatchdog sets how often a pending join is checked and how many
// unanswered checks it survives. Non-positive values keep the defaults.
func WithJoinWatchdog(interval time.Duration, maxMisses int) Option {
	return func(c *Client) {
		if interval > 0 {
			c.joinPollInterval = interval
		}
		if maxMisses > 0 {
			c.joinMaxMisses = maxMisses
		}
	}
}

// NewClient creates a facade that sends on t and registers with d. d must be
// the sink receiving t's inbound frames.
func NewClient(t Transport, d dispatch.Dispatcher, opts ...Option) *Client {
	c := &Client{
		transport:        t,
		registry:         d,
		logger:           slog.Default(),
		metrics:          metrics.Nop{},
		joinPollInterval: DefaultJoinPollInterval,
		joinMaxMisses:    DefaultJoinMaxMisses,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onError == nil {
		c.onError = func(err error) {
			c.logger.Warn("game: subscription error", "error", err)
		}
	}
	go c.releaseOnDisconnect()
	return c
}

// releaseOnDisconnect drops every remaining entry once the connection is
// gone. Persistent subscriptions live only as long as the connection.
func (c *Client) releaseOnDisconnect() {
	<-c.transport.Done()
	if n := c.registry.Clear(); n > 0 {
		c.logger.Debug("game: released subscriptions", "count", n)
	}
}

// Done is closed when the underlying connection has terminated.
func (c *Client) Done() <-chan struct{} { return c.transport.Done() }

// Pending returns the number of live dispatch entries, commands and
// subscriptions together.
func (c *Client) Pending() int { return c.registry.Len() }
