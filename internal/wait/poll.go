// internal/wait/poll.go
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/report"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/timing"
)

type pageKey struct{}

// WithPage tags every wait made with ctx with a page name for reporting.
func WithPage(ctx context.Context, page string) context.Context {
	return context.WithValue(ctx, pageKey{}, page)
}

// PageFrom returns the page name set by WithPage.
func PageFrom(ctx context.Context) string {
	page, _ := ctx.Value(pageKey{}).(string)
	return page
}

// AwaitCondition polls c until it holds or deadline passes.
//
// The first probe happens immediately. A deadline with no budget left
// therefore gets exactly one probe. Between probes the loop sleeps for
// interval, clipped to what remains, so the last probe lands on the
// deadline rather than past it. Stale observations count as "not yet";
// a driver fault ends the wait at once.
func AwaitCondition(ctx context.Context, s *session.Session, c Checker, deadline timing.Deadline, interval time.Duration) (ProbeResult, error) {
	ctx, release, err := s.Hold(ctx)
	if err != nil {
		return ProbeResult{}, err
	}
	defer release()

	interval = s.Policy().Interval(interval)
	clock := s.Clock()
	log := s.Logger().Named("wait").With(zap.Stringer("condition", c))
	if budget := deadline.Budget(); budget > 0 && interval >= budget {
		log.Debug("Poll interval is not below the budget; probing only at start and deadline.",
			zap.Duration("interval", interval), zap.Duration("budget", budget))
	}
	nag := rate.Sometimes{Interval: time.Second}

	var (
		last   ProbeResult
		probes int
	)
	for {
		res, ok, err := c.Evaluate(ctx, s)
		probes++
		now := clock.Now()
		if err != nil {
			if ctx.Err() == nil {
				s.Record(waitEvent(ctx, c, deadline, now, probes, report.OutcomeFault, err))
			}
			return res, err
		}
		last = res
		if ok {
			s.Record(waitEvent(ctx, c, deadline, now, probes, report.OutcomeOK, nil))
			log.Debug("Condition met.", zap.Duration("elapsed", deadline.Elapsed(now)), zap.Int("probes", probes))
			return res, nil
		}
		if deadline.Expired(now) {
			terr := &TimeoutError{
				Condition: c.String(),
				Budget:    deadline.Budget(),
				Elapsed:   deadline.Elapsed(now),
				Probes:    probes,
				Last:      last.Outcome,
			}
			s.Record(waitEvent(ctx, c, deadline, now, probes, report.OutcomeTimeout, terr))
			return last, terr
		}

		nag.Do(func() {
			log.Debug("Still waiting.", zap.Stringer("last", last.Outcome), zap.Duration("remaining", deadline.Remaining(now)))
		})
		if err := clock.Sleep(ctx, min(interval, deadline.Remaining(now))); err != nil {
			return last, fmt.Errorf("waiting for %s: %w", c, err)
		}
	}
}

func waitEvent(ctx context.Context, c Checker, d timing.Deadline, now time.Time, probes int, outcome report.Outcome, err error) report.Event {
	ev := report.Event{
		Kind:    report.KindWait,
		Page:    PageFrom(ctx),
		Name:    c.String(),
		Outcome: outcome,
		Elapsed: d.Elapsed(now),
		Budget:  d.Budget(),
		Probes:  probes,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Spec is a single wait request. A Timeout of zero or less checks exactly
// once; callers wanting the session default pass s.Policy().DefaultWait.
// Zero PollInterval means the session poll interval.
type Spec struct {
	Condition    Checker
	Timeout      time.Duration
	PollInterval time.Duration
}

// For runs spec with a fresh deadline starting now.
func For(ctx context.Context, s *session.Session, spec Spec) (ProbeResult, error) {
	return AwaitCondition(ctx, s, spec.Condition, s.Deadline(spec.Timeout), spec.PollInterval)
}

// Find waits up to timeout for loc to be visible and returns the first
// match.
func Find(ctx context.Context, s *session.Session, loc locator.Locator, timeout time.Duration) (driver.Element, error) {
	res, err := For(ctx, s, Spec{Condition: Visible(loc), Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return res.Element, nil
}

// FindAll waits up to timeout for loc to match anything and returns every
// match.
func FindAll(ctx context.Context, s *session.Session, loc locator.Locator, timeout time.Duration) ([]driver.Element, error) {
	res, err := For(ctx, s, Spec{Condition: Present(loc), Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return res.Elements, nil
}

// Until reports whether c held within timeout. A timeout is a plain false;
// only faults and cancellation are errors.
func Until(ctx context.Context, s *session.Session, c Checker, timeout time.Duration) (bool, error) {
	_, err := For(ctx, s, Spec{Condition: c, Timeout: timeout})
	if errors.Is(err, ErrTimedOut) {
		return false, nil
	}
	return err == nil, err
}

// IsDisplayed probes loc exactly once.
func IsDisplayed(ctx context.Context, s *session.Session, loc locator.Locator) (bool, error) {
	return Until(ctx, s, Visible(loc), -1)
}
