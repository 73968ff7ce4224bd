package handlepay

import (
	"time"

	"github.com/vitwit/handlepay/clients"
	"github.com/vitwit/handlepay/logger"
	"github.com/vitwit/handlepay/metrics"
	"github.com/vitwit/handlepay/store"
)

type Option func(*HandlePay)

func WithLogger(l logger.Logger) Option {
	return func(h *HandlePay) {
		h.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(h *HandlePay) {
		h.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(h *HandlePay) {
		if t > 0 {
			h.timeout = t
		}
	}
}

// WithTransport replaces the Soroban RPC connection. The transport is
// closed by Close.
func WithTransport(t clients.Transport) Option {
	return func(h *HandlePay) {
		h.transport = t
	}
}

func WithEnvelopeBuilder(b clients.EnvelopeBuilder) Option {
	return func(h *HandlePay) {
		h.builder = b
	}
}

// WithUsernameCache overrides the address to username cache, which is
// otherwise kept in the state directory or in memory.
func WithUsernameCache(c store.UsernameCache) Option {
	return func(h *HandlePay) {
		h.cache = c
	}
}

func WithDisconnectMarker(m store.DisconnectMarker) Option {
	return func(h *HandlePay) {
		h.marker = m
	}
}

// WithAvailabilityDebounce delays username availability lookups so that
// rapid successive checks collapse into one.
func WithAvailabilityDebounce(d time.Duration) Option {
	return func(h *HandlePay) {
		h.debounce = d
	}
}
