// Package command runs mutating requests that carry an idempotency key: repeated
// keys replay the stored result and transient failures are retried with backoff.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Result is what a successful command answered.
type Result struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// ResultStore remembers results by key.
type ResultStore interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Put(ctx context.Context, key string, result Result, ttl time.Duration) error
}

type Options struct {
	Attempts  int
	Backoff   time.Duration
	ResultTTL time.Duration
	// Transient reports whether a failed attempt may be retried.
	Transient func(error) bool
}

func DefaultOptions() Options {
	return Options{
		Attempts:  3,
		Backoff:   100 * time.Millisecond,
		ResultTTL: 24 * time.Hour,
	}
}

type Queue struct {
	results ResultStore
	opts    Options
	logger  *zap.Logger
	group   singleflight.Group
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewQueue(results ResultStore, opts Options, logger *zap.Logger) *Queue {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Transient == nil {
		opts.Transient = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{results: results, opts: opts, logger: logger, sleep: sleepCtx}
}

// Do returns the stored result for key when there is one. Otherwise it runs fn,
// retrying transient failures, and stores a successful result. Concurrent calls
// with the same key share one execution. replayed is true when fn did not run
// for this call.
func (q *Queue) Do(ctx context.Context, key string, fn func(ctx context.Context) (Result, error)) (result Result, replayed bool, err error) {
	if stored, ok, err := q.results.Get(ctx, key); err != nil {
		q.logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return stored, true, nil
	}

	value, err, shared := q.group.Do(key, func() (any, error) {
		if stored, ok, err := q.results.Get(ctx, key); err == nil && ok {
			return stored, nil
		}
		result, err := q.run(ctx, fn)
		if err != nil {
			return Result{}, err
		}
		if err := q.results.Put(ctx, key, result, q.opts.ResultTTL); err != nil {
			q.logger.Warn("idempotency store failed", zap.String("key", key), zap.Error(err))
		}
		return result, nil
	})
	if err != nil {
		return Result{}, false, err
	}
	return value.(Result), shared, nil
}

func (q *Queue) run(ctx context.Context, fn func(ctx context.Context) (Result, error)) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= q.opts.Attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !q.opts.Transient(err) || attempt == q.opts.Attempts {
			break
		}
		delay := q.opts.Backoff * time.Duration(1<<(attempt-1))
		q.logger.Info("retrying command", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if err := q.sleep(ctx, delay); err != nil {
			return Result{}, fmt.Errorf("retry aborted: %w", lastErr)
		}
	}
	return Result{}, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
