package event

import "log/slog"

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	queueSize    int
	panicHandler PanicHandler
	logger       *slog.Logger
}

func defaultBusConfig() busConfig {
	return busConfig{
		queueSize: 1024,
		logger:    slog.New(slog.DiscardHandler),
	}
}

// WithQueueSize sets the async event queue size.
func WithQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithPanicHandler sets the handler called when a subscriber panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = h
	}
}

// WithLogger sets the logger used for handler errors and panics.
func WithLogger(l *slog.Logger) BusOption {
	return func(c *busConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
