// internal/wait/stale.go
package wait

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/report"
	"github.com/xkilldash9x/renderwait/internal/session"
)

// RetryOnStale runs fn and, when it fails because an element went stale,
// runs it again from scratch after one poll interval. fn must re-resolve
// every element it touches; handles from a failed attempt are dead.
//
// At most Policy().MaxStaleRetries attempts are made in total. Any other
// error is returned unchanged after the first attempt.
func RetryOnStale[T any](ctx context.Context, s *session.Session, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	ctx, release, err := s.Hold(ctx)
	if err != nil {
		return zero, err
	}
	defer release()

	limit := s.Policy().MaxStaleRetries
	log := s.Logger().Named("stale").With(zap.String("op", op))

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Debug("Recovered from stale element.", zap.Int("attempts", attempt))
			}
			return v, nil
		}
		// An inner RetryOnStale that already gave up is final.
		if !driver.IsStale(err) || errors.Is(err, ErrStaleRetriesExhausted) {
			return v, err
		}

		s.Record(report.Event{
			Kind:    report.KindStale,
			Page:    PageFrom(ctx),
			Name:    op,
			Outcome: report.OutcomeStale,
			Attempt: attempt,
			Error:   err.Error(),
		})
		if attempt >= limit {
			log.Warn("Giving up on stale element.", zap.Int("attempts", attempt), zap.Error(err))
			return zero, &StaleError{Op: op, Attempts: attempt, Err: err}
		}
		log.Debug("Element went stale; retrying.", zap.Int("attempt", attempt), zap.Int("limit", limit))
		if err := s.Clock().Sleep(ctx, s.Policy().PollInterval); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
	}
}

// Do is RetryOnStale for operations with no result.
func Do(ctx context.Context, s *session.Session, op string, fn func(ctx context.Context) error) error {
	_, err := RetryOnStale(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
