package editor

import (
	"log/slog"
	"time"

	"github.com/aretw0/proofline/pkg/domain"
)

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// WithTimeout bounds each analysis. Zero (the default) means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Machine) {
		m.timeout = d
	}
}
