package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateClient(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateMetrics(cfg, ve)
	validateStore(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.URL == "" {
		ve.Add("server.url must not be empty")
	} else if u, err := url.Parse(cfg.Server.URL); err != nil {
		ve.Add("server.url is invalid: %v", err)
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		ve.Add("server.url scheme must be ws or wss, got %q", u.Scheme)
	} else if u.Host == "" {
		ve.Add("server.url must include a host")
	}
	if cfg.Server.DialTimeout <= 0 {
		ve.Add("server.dial_timeout must be > 0")
	}
	if cfg.Server.ReadLimit < 0 {
		ve.Add("server.read_limit must be >= 0")
	}
}

func validateClient(cfg *Config, ve *ValidationError) {
	if cfg.Client.JoinPollInterval <= 0 {
		ve.Add("client.join_poll_interval must be > 0")
	}
	if cfg.Client.JoinMaxMisses <= 0 {
		ve.Add("client.join_max_misses must be > 0")
	}
	if cfg.Client.SendRate < 0 {
		ve.Add("client.send_rate must be >= 0")
	}
	if cfg.Client.SendRate > 0 && cfg.Client.SendBurst <= 0 {
		ve.Add("client.send_burst must be > 0 when send_rate is set")
	}
}

var validLogLevels = map[string]bool{
	"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

var validLogFormats = map[string]bool{"": true, "text": true, "json": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is not one of text, json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is not supported (noop, stdout)", cfg.Tracer.Exporter)
	}
}

func validateMetrics(cfg *Config, ve *ValidationError) {
	if !cfg.Metrics.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
		ve.Add("metrics.addr %q is invalid: %v", cfg.Metrics.Addr, err)
	}
	if cfg.Metrics.Namespace == "" {
		ve.Add("metrics.namespace must not be empty when metrics are enabled")
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.Enabled && cfg.Store.Path == "" {
		ve.Add("store.path must not be empty when the store is enabled")
	}
}
