// Package metrics records client-side protocol metrics.
//
// The core packages depend only on the Recorder interface; Nop is the default
// and Prometheus is wired in by the CLI when metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command outcomes used as label values.
const (
	OutcomeOK           = "ok"
	OutcomeRejected     = "rejected"
	OutcomeTimeout      = "timeout"
	OutcomeNotReady     = "not_ready"
	OutcomeDecodeError  = "decode_error"
	OutcomeDisconnected = "disconnected"
	OutcomeCancelled    = "cancelled"
	OutcomeError        = "error"
)

// Recorder receives protocol events from the transport, registry and facades.
type Recorder interface {
	FrameReceived(tag string)
	FrameSent(tag string)
	SubscriptionsActive(n int)
	CommandCompleted(command, outcome string, d time.Duration)
	Disconnected()
}

// Nop discards everything.
type Nop struct{}

func (Nop) FrameReceived(string)                           {}
func (Nop) FrameSent(string)                               {}
func (Nop) SubscriptionsActive(int)                        {}
func (Nop) CommandCompleted(string, string, time.Duration) {}
func (Nop) Disconnected()                                  {}

// Config configures the Prometheus recorder.
type Config struct {
	// Namespace is the metrics namespace (default: "wordstory").
	Namespace string

	// Subsystem is the metrics subsystem (default: "client").
	Subsystem string

	// Buckets are the histogram buckets for command latency.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry registers and gathers the metrics.
	// Default: a fresh prometheus.Registry.
	Registry *prometheus.Registry
}

// Option configures the Prometheus recorder.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) { c.Subsystem = subsystem }
}

// WithBuckets sets the latency histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Config) { c.Registry = reg }
}

// Prometheus is a Recorder backed by client_golang collectors.
type Prometheus struct {
	registry *prometheus.Registry

	framesReceived  *prometheus.CounterVec
	framesSent      *prometheus.CounterVec
	subscriptions   prometheus.Gauge
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	disconnects     prometheus.Counter
}

// NewPrometheus creates and registers the client metrics.
func NewPrometheus(opts ...Option) *Prometheus {
	cfg := Config{
		Namespace: "wordstory",
		Subsystem: "client",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.Registry)
	return &Prometheus{
		registry: cfg.Registry,
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_received_total",
			Help:      "Inbound frames by type tag",
		}, []string{"tag"}),
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_sent_total",
			Help:      "Outbound frames by type tag",
		}, []string{"tag"}),
		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "subscriptions_active",
			Help:      "Dispatch entries currently registered",
		}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "commands_total",
			Help:      "Commands by kind and outcome",
		}, []string{"command", "outcome"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "command_duration_seconds",
			Help:      "Time from send to settlement",
			Buckets:   cfg.Buckets,
		}, []string{"command"}),
		disconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "disconnects_total",
			Help:      "Terminal connection closes",
		}),
	}
}

func (p *Prometheus) FrameReceived(tag string) { p.framesReceived.WithLabelValues(tag).Inc() }

func (p *Prometheus) FrameSent(tag string) { p.framesSent.WithLabelValues(tag).Inc() }

func (p *Prometheus) SubscriptionsActive(n int) { p.subscriptions.Set(float64(n)) }

func (p *Prometheus) CommandCompleted(command, outcome string, d time.Duration) {
	p.commandsTotal.WithLabelValues(command, outcome).Inc()
	p.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (p *Prometheus) Disconnected() { p.disconnects.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }
