// Package transport owns the single websocket connection to the game server.
//
// A Conn dials in the background. Until the handshake completes IsOpen is
// false and Send fails with domain.ErrNotReady; nothing is queued. Every
// inbound text message is decoded and handed, unfiltered and in arrival order,
// to the Sink on one read goroutine. Close is terminal: the Conn reports a
// single disconnect and never reconnects.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"wordstory/internal/adapter/wire"
	"wordstory/internal/domain"
	"wordstory/internal/infra/metrics"
)

const defaultDialTimeout = 10 * time.Second

var errClosedLocally = errors.New("closed by client")

// Sink receives decoded inbound frames.
type Sink interface {
	Dispatch(ctx context.Context, f wire.Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f wire.Frame)

func (fn SinkFunc) Dispatch(ctx context.Context, f wire.Frame) { fn(ctx, f) }

// Conn is one websocket connection. It is not reusable: build a new Conn
// to try again after a disconnect.
type Conn struct {
	url         string
	sink        Sink
	logger      *slog.Logger
	metrics     metrics.Recorder
	dialTimeout time.Duration
	header      http.Header
	readLimit   int64
	limiter     *rate.Limiter

	open   atomic.Bool
	ready  chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	mu           sync.Mutex
	ws           *websocket.Conn
	err          error
	onDisconnect []func(error)
	closeOnce    sync.Once
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) { c.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Conn) { c.metrics = m }
}

// WithDialTimeout bounds the opening handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Conn) { c.dialTimeout = d }
}

// WithHeader adds a header to the opening handshake.
func WithHeader(key, value string) Option {
	return func(c *Conn) { c.header.Add(key, value) }
}

// WithReadLimit caps the size of one inbound message in bytes.
func WithReadLimit(n int64) Option {
	return func(c *Conn) { c.readLimit = n }
}

// WithSendLimit throttles outbound frames. A zero limit disables throttling.
func WithSendLimit(limit rate.Limit, burst int) Option {
	return func(c *Conn) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// Connect starts dialing url and returns immediately. Inbound frames go to
// sink. Cancelling ctx closes the connection.
func Connect(ctx context.Context, url string, sink Sink, opts ...Option) *Conn {
	c := &Conn{
		url:         url,
		sink:        sink,
		logger:      slog.Default(),
		metrics:     metrics.Nop{},
		dialTimeout: defaultDialTimeout,
		header:      make(http.Header),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
	return c
}

// IsOpen reports whether the handshake completed and the connection has not closed.
func (c *Conn) IsOpen() bool { return c.open.Load() }

// Ready is closed once the connection opens. It is never closed if the dial fails.
func (c *Conn) Ready() <-chan struct{} { return c.ready }

// Done is closed when the connection has terminated.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns why the connection terminated, wrapping domain.ErrDisconnected.
// It is nil while the connection is dialing or open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// WaitReady blocks until the connection opens, terminates, or ctx ends.
func (c *Conn) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnDisconnect registers fn to be called exactly once when the connection
// terminates. If it already has, fn is called immediately.
func (c *Conn) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	select {
	case <-c.done:
		err := c.err
		c.mu.Unlock()
		fn(err)
		return
	default:
	}
	c.onDisconnect = append(c.onDisconnect, fn)
	c.mu.Unlock()
}

// Send writes one frame. It fails with domain.ErrNotReady unless the
// connection is open.
func (c *Conn) Send(ctx context.Context, f wire.Frame) error {
	if !c.open.Load() {
		return fmt.Errorf("send %s: %w", f.Tag(), domain.ErrNotReady)
	}
	if idx := wire.Unsafe(f...); idx >= 0 {
		c.logger.Warn("socket: field contains separator, receiver will see shifted fields",
			"tag", string(f.Tag()), "field", idx)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send %s: %w", f.Tag(), err)
		}
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil || !c.open.Load() {
		return fmt.Errorf("send %s: %w", f.Tag(), domain.ErrNotReady)
	}

	if err := ws.Write(ctx, websocket.MessageText, []byte(f.Encode())); err != nil {
		return fmt.Errorf("send %s: %w", f.Tag(), err)
	}
	c.metrics.FrameSent(string(f.Tag()))
	c.logger.Debug("socket: sent", "frame", f.String())
	return nil
}

// Close terminates the connection. It is idempotent.
func (c *Conn) Close() error {
	c.finish(errClosedLocally)
	c.cancel()
	return nil
}

func (c *Conn) run(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	ws, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPHeader: c.header})
	cancel()
	if err != nil {
		c.finish(fmt.Errorf("dial %s: %w", c.url, err))
		return
	}
	if c.readLimit > 0 {
		ws.SetReadLimit(c.readLimit)
	}

	c.mu.Lock()
	select {
	case <-c.done:
		// Closed while dialing.
		c.mu.Unlock()
		ws.Close(websocket.StatusNormalClosure, "")
		return
	default:
	}
	c.ws = ws
	c.open.Store(true)
	close(c.ready)
	c.mu.Unlock()

	c.logger.Info("socket: connection established", "url", c.url)
	c.readLoop(ctx, ws)
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			c.finish(err)
			return
		}
		if typ != websocket.MessageText {
			c.logger.Debug("socket: ignoring binary message", "bytes", len(data))
			continue
		}
		c.sink.Dispatch(ctx, wire.Decode(string(data)))
	}
}

// finish terminates the connection once. Disconnect callbacks run after the
// once has completed so they may call Close.
func (c *Conn) finish(cause error) {
	var (
		callbacks []func(error)
		err       error
	)
	c.closeOnce.Do(func() {
		c.open.Store(false)

		c.mu.Lock()
		c.err = fmt.Errorf("%w: %w", domain.ErrDisconnected, cause)
		err = c.err
		ws := c.ws
		callbacks = c.onDisconnect
		c.onDisconnect = nil
		close(c.done)
		c.mu.Unlock()

		if ws != nil {
			ws.Close(websocket.StatusNormalClosure, "")
		}

		c.metrics.Disconnected()
		if errors.Is(cause, errClosedLocally) || websocket.CloseStatus(cause) == websocket.StatusNormalClosure {
			c.logger.Info("socket: connection closed", "url", c.url)
		} else {
			c.logger.Warn("socket: connection lost", "url", c.url, "error", cause)
		}
	})

	for _, fn := range callbacks {
		fn(err)
	}
}
