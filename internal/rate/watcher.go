// Package rate owns the floating dollar rate: periodic refresh from the
// external quotation API, a warm cache across restarts, and a fallback
// constant so price calculations never see a zero rate.
package rate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"lista-precios/pkg/dolarapi"
	"lista-precios/pkg/redis"
)

const cacheKey = "dolar:oficial"

// Fetcher is the slice of the dolarapi client the watcher needs.
type Fetcher interface {
	Oficial(ctx context.Context) (*dolarapi.Quotation, error)
}

// FailureNotifier is told about refresh failures after retries are
// exhausted; it must never block.
type FailureNotifier interface {
	RateFetchFailed(err error)
}

type cachedRate struct {
	Venta     float64   `json:"venta"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Watcher holds the last successfully fetched rate. Reads never block on a
// refresh in flight: the mutex guards only the assignment.
type Watcher struct {
	fetcher  Fetcher
	cache    *redis.Client // optional, may be nil
	notifier FailureNotifier
	logger   *zap.Logger
	fallback float64

	mu        sync.RWMutex
	rate      float64
	updatedAt time.Time
	fetched   bool
}

func NewWatcher(fetcher Fetcher, cache *redis.Client, notifier FailureNotifier, fallback float64, logger *zap.Logger) *Watcher {
	return &Watcher{
		fetcher:  fetcher,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		fallback: fallback,
	}
}

// Current returns the last successfully fetched rate and its timestamp, or
// the fallback constant (with a zero time) if no fetch has ever succeeded.
func (w *Watcher) Current() (float64, time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.fetched {
		return w.fallback, time.Time{}
	}
	return w.rate, w.updatedAt
}

// Refresh fetches the quotation once, with exponential backoff retries
// inside the caller's context. A failure is non-fatal: the previous rate
// (or fallback) stays in effect and the error is reported, not raised to
// the rate's readers.
func (w *Watcher) Refresh(ctx context.Context) (float64, error) {
	var q *dolarapi.Quotation

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3),
		ctx,
	)
	err := backoff.RetryNotify(
		func() error {
			var err error
			q, err = w.fetcher.Oficial(ctx)
			return err
		},
		policy,
		func(err error, next time.Duration) {
			w.logger.Warn("dollar rate fetch failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		current, _ := w.Current()
		w.logger.Warn("dollar rate refresh failed, keeping last known rate",
			zap.Error(err),
			zap.Float64("rate", current))
		if w.notifier != nil {
			w.notifier.RateFetchFailed(err)
		}
		return current, err
	}

	now := time.Now()
	w.mu.Lock()
	w.rate = q.Venta
	w.updatedAt = now
	w.fetched = true
	w.mu.Unlock()

	if w.cache != nil {
		if err := w.cache.SetJSON(ctx, cacheKey, cachedRate{Venta: q.Venta, UpdatedAt: now}); err != nil {
			w.logger.Warn("failed to cache dollar rate", zap.Error(err))
		}
	}

	w.logger.Info("dollar rate updated",
		zap.Float64("venta", q.Venta),
		zap.Time("updated_at", now))
	return q.Venta, nil
}

// Start hydrates from the cache, does an initial refresh and then keeps the
// rate warm on a ticker until ctx is done. The surrounding application owns
// the timer; nothing in the pricing core ever starts one.
func (w *Watcher) Start(ctx context.Context, interval time.Duration) {
	w.hydrateFromCache(ctx)
	if _, err := w.Refresh(ctx); err != nil {
		w.logger.Warn("initial dollar rate fetch failed", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("stopping dollar rate watcher")
				return
			case <-ticker.C:
				_, _ = w.Refresh(ctx)
			}
		}
	}()
}

// hydrateFromCache adopts the rate a previous process fetched, so a restart
// does not fall back to the constant while the first fetch is in flight.
func (w *Watcher) hydrateFromCache(ctx context.Context) {
	if w.cache == nil {
		return
	}
	var cached cachedRate
	if err := w.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		if !errors.Is(err, redis.ErrMiss) {
			w.logger.Warn("failed to read cached dollar rate", zap.Error(err))
		}
		return
	}
	if cached.Venta <= 0 {
		return
	}
	w.mu.Lock()
	w.rate = cached.Venta
	w.updatedAt = cached.UpdatedAt
	w.fetched = true
	w.mu.Unlock()
	w.logger.Info("dollar rate restored from cache",
		zap.Float64("venta", cached.Venta),
		zap.Time("updated_at", cached.UpdatedAt))
}
