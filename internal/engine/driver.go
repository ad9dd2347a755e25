package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrTimeout marks an external call that outlived its deadline.
var ErrTimeout = errors.New("external call timed out")

// Run drives cycles with a fixed delay between the end of one cycle and the
// start of the next until ctx is cancelled. Cycles are no-ops while the
// engine is not running.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Dur("interval", e.interval).Int("instruments", len(e.pairs)).Int("workers", e.workers).Msg("engine driver started")
	for {
		e.RunCycle(ctx)
		if err := WaitForContext(ctx, e.interval); err != nil {
			log.Info().Msg("engine driver stopped")
			return nil
		}
	}
}

func WaitForContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// callWithTimeout bounds fn by d. fn gets a context carrying the deadline; if
// it ignores it, its result is abandoned once the deadline passes.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("external call panicked: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w after %s: %v", ErrTimeout, d, ctx.Err())
	}
}
