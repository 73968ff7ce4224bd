// Package payments lists the escrow payments addressed to a username by
// walking the contract's per-user index.
package payments

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vitwit/handlepay/logger"
	"github.com/vitwit/handlepay/metrics"
	"github.com/vitwit/handlepay/types"
)

const (
	DefaultConcurrency = 8
	MaxConcurrency     = 16

	// the count is contract supplied, so preallocation is bounded
	maxPrealloc = 1024

	metricEnumerationSkip = "enumeration_skip"
	metricEnumeration     = "enumeration"
)

// Reader is the subset of the contract the enumerator needs.
type Reader interface {
	GetPaymentCount(ctx context.Context, username string) (uint64, error)
	GetPaymentIDAt(ctx context.Context, username string, index uint64) (uint64, bool, error)
	GetPayment(ctx context.Context, paymentID uint64) (*types.Payment, error)
}

// Enumerator drives count-then-index pagination. Index lookups run one at
// a time, optionally paced by a rate limiter; payment bodies are fetched
// concurrently up to a fixed bound.
type Enumerator struct {
	reader      Reader
	limiter     *rate.Limiter
	concurrency int
	logger      logger.Logger
	metrics     metrics.Recorder
}

type Option func(*Enumerator)

func WithConcurrency(n int) Option {
	return func(e *Enumerator) {
		e.concurrency = clampConcurrency(n)
	}
}

// WithRateLimit paces index lookups. A non-positive rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(e *Enumerator) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(l logger.Logger) Option {
	return func(e *Enumerator) {
		e.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Enumerator) {
		e.metrics = r
	}
}

func NewEnumerator(reader Reader, opts ...Option) *Enumerator {
	e := &Enumerator{
		reader:      reader,
		concurrency: DefaultConcurrency,
		logger:      logger.NoopLogger{},
		metrics:     metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListPaymentIDs returns the ids indexed under username in index order.
// Indices that fail or hold no id are skipped. Only a failed count or a
// cancelled ctx fails the call.
func (e *Enumerator) ListPaymentIDs(ctx context.Context, username string) ([]uint64, error) {
	start := time.Now()
	count, err := e.reader.GetPaymentCount(ctx, username)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, min(count, maxPrealloc))
	for i := uint64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		id, ok, err := e.reader.GetPaymentIDAt(ctx, username, i)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.skip("get_payment_id_at", "error", map[string]any{
				"username": username,
				"index":    i,
				"error":    err.Error(),
			})
		case !ok:
			e.skip("get_payment_id_at", "absent", map[string]any{
				"username": username,
				"index":    i,
			})
		default:
			ids = append(ids, id)
		}
	}

	e.metrics.ObserveLatency(metricEnumeration, time.Since(start), map[string]string{
		"method":  "list_payment_ids",
		"outcome": "ok",
	})
	return ids, nil
}

// ListPayments resolves every indexed id to its payment, preserving index
// order. Ids whose payment is gone or fails to load are dropped.
func (e *Enumerator) ListPayments(ctx context.Context, username string) ([]*types.Payment, error) {
	ids, err := e.ListPaymentIDs(ctx, username)
	if err != nil {
		return nil, err
	}
	return e.FetchPayments(ctx, ids)
}

// FetchPayments loads the payments for ids concurrently. The result keeps
// the order of ids.
func (e *Enumerator) FetchPayments(ctx context.Context, ids []uint64) ([]*types.Payment, error) {
	start := time.Now()
	slots := make([]*types.Payment, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			p, err := e.reader.GetPayment(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.skip("get_payment", "error", map[string]any{
					"payment_id": id,
					"error":      err.Error(),
				})
				return nil
			}
			if p == nil {
				e.logger.Debug("indexed payment not found", map[string]any{"payment_id": id})
				e.metrics.IncCounter(metricEnumerationSkip, map[string]string{
					"method":  "get_payment",
					"outcome": "absent",
				})
				return nil
			}
			slots[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*types.Payment, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			out = append(out, p)
		}
	}

	e.metrics.ObserveLatency(metricEnumeration, time.Since(start), map[string]string{
		"method":  "fetch_payments",
		"outcome": "ok",
	})
	return out, nil
}

func (e *Enumerator) skip(method, outcome string, fields map[string]any) {
	e.logger.Warn("skipping payment index entry", fields)
	e.metrics.IncCounter(metricEnumerationSkip, map[string]string{
		"method":  method,
		"outcome": outcome,
	})
}

func clampConcurrency(n int) int {
	switch {
	case n <= 0:
		return DefaultConcurrency
	case n > MaxConcurrency:
		return MaxConcurrency
	default:
		return n
	}
}
