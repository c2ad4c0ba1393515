// Package dispatch fans inbound frames out to registered handlers.
//
// Routing is by inspection, not by identifier: every frame is offered to every
// registered handler in registration order, and each handler decides from the
// frame's type tag whether the frame is its own. Subscription IDs never go on
// the wire; they only let a handler be removed.
//
// Because nothing correlates a response with the request that caused it, two
// in-flight one-shot requests of the same type race: the first one registered
// takes the first matching frame. A frame satisfies at most one one-shot
// handler; persistent handlers see every frame.
package dispatch

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"wordstory/internal/adapter/wire"
	"wordstory/internal/infra/metrics"
)

// Mode controls a registration's lifetime.
type Mode int

const (
	// OneShot entries are removed after their handler first reports a match.
	OneShot Mode = iota
	// Persistent entries stay until unregistered or cleared.
	Persistent
)

func (m Mode) String() string {
	switch m {
	case OneShot:
		return "one-shot"
	case Persistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// ID identifies a registration. It is local to the process.
type ID string

// Handler inspects a frame and reports whether it was the handler's own.
// Handlers run on the delivery goroutine and must not block.
type Handler func(ctx context.Context, f wire.Frame) bool

// Dispatcher is the seam between the facades and the matching rule. A
// successor protocol that carries a correlation token can provide another
// implementation without touching callers.
type Dispatcher interface {
	// Register adds a handler and returns its ID and an unregister func.
	Register(mode Mode, h Handler) (ID, func())
	// Unregister removes a handler. Reports whether it was present.
	Unregister(id ID) bool
	// Dispatch delivers one inbound frame.
	Dispatch(ctx context.Context, f wire.Frame)
	// Len returns the number of registered handlers.
	Len() int
	// Clear drops every handler and returns how many were removed.
	Clear() int
}

type entry struct {
	id      ID
	mode    Mode
	handler Handler
}

// Registry is the default Dispatcher: an ordered list of entries, offered
// every frame in registration order.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	entropy *ulid.MonotonicEntropy
	logger  *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		logger:  slog.Default(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Dispatcher = (*Registry)(nil)

// Register appends a handler.
func (r *Registry) Register(mode Mode, h Handler) (ID, func()) {
	r.mu.Lock()
	id := ID(ulid.MustNew(ulid.Now(), r.entropy).String())
	r.entries = append(r.entries, entry{id: id, mode: mode, handler: h})
	n := len(r.entries)
	r.mu.Unlock()

	r.metrics.SubscriptionsActive(n)
	r.logger.Debug("dispatch: registered", "id", id, "mode", mode.String(), "active", n)
	return id, func() { r.Unregister(id) }
}

// Unregister removes the handler with the given ID.
func (r *Registry) Unregister(id ID) bool {
	r.mu.Lock()
	removed := false
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			removed = true
			break
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	if removed {
		r.metrics.SubscriptionsActive(n)
	}
	return removed
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Has reports whether id is still registered.
func (r *Registry) Has(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOf(id) >= 0
}

func (r *Registry) indexOf(id ID) int {
	for i, e := range r.entries {
		if e.id == id {
			return i
		}
	}
	return -1
}

// Clear drops every registration and returns how many were removed.
func (r *Registry) Clear() int {
	r.mu.Lock()
	n := len(r.entries)
	r.entries = nil
	r.mu.Unlock()

	r.metrics.SubscriptionsActive(0)
	return n
}

// Dispatch offers f to a snapshot of the entries taken on entry. Handlers
// registered while the frame is being delivered do not see it. Entries removed
// during delivery are skipped.
func (r *Registry) Dispatch(ctx context.Context, f wire.Frame) {
	r.metrics.FrameReceived(string(f.Tag()))

	r.mu.Lock()
	snapshot := make([]entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	consumed := false
	for _, e := range snapshot {
		if e.mode == OneShot && consumed {
			continue
		}
		if !r.Has(e.id) {
			continue
		}
		if !r.invoke(ctx, e, f) {
			continue
		}
		if e.mode == OneShot {
			consumed = true
			r.Unregister(e.id)
		}
	}
}

func (r *Registry) invoke(ctx context.Context, e entry, f wire.Frame) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("dispatch handler panicked",
				"id", e.id,
				"tag", string(f.Tag()),
				"panic", rec,
			)
			matched = false
		}
	}()
	return e.handler(ctx, f)
}
