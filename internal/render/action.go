// internal/render/action.go
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/report"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

// Action is something a test does to a page followed by the conditions
// that show the page reacted.
type Action struct {
	Name   string
	Target locator.Locator
	// TargetTimeout bounds resolving Target. Zero or less checks once.
	TargetTimeout time.Duration
	// Do acts on the resolved target. Nil means Click.
	Do      func(ctx context.Context, el driver.Element) error
	Confirm []wait.Checker
	// ConfirmTimeout bounds each confirmation separately, with the same
	// zero-or-less rule as TargetTimeout.
	ConfirmTimeout time.Duration
}

// ConfirmFailure is a confirmation that did not hold in time.
type ConfirmFailure struct {
	Condition string
	Err       error
}

// ActionResult is the best-effort state after an action.
type ActionResult struct {
	Name            string
	Elapsed         time.Duration
	ConfirmFailures []ConfirmFailure
}

// Confirmed is true when every confirmation held.
func (r ActionResult) Confirmed() bool { return len(r.ConfirmFailures) == 0 }

// Click is the default Action.Do.
func Click(ctx context.Context, el driver.Element) error { return el.Click(ctx) }

// Type clears the element and sends text.
func Type(text string) func(context.Context, driver.Element) error {
	return func(ctx context.Context, el driver.Element) error {
		if err := el.Clear(ctx); err != nil {
			return err
		}
		return el.SendKeys(ctx, text)
	}
}

// Perform runs a.
//
// Initiation is strict: if the target never becomes visible, or the action
// itself fails, the error is returned. A stale target is re-resolved and
// the action re-run, up to the session stale-retry limit.
//
// Confirmation is lenient: each condition gets its own timeout, and one that
// times out is logged and listed in ConfirmFailures but not returned as an
// error. Driver faults during confirmation are still returned.
func Perform(ctx context.Context, s *session.Session, a Action) (ActionResult, error) {
	ctx, release, err := s.Hold(ctx)
	if err != nil {
		return ActionResult{Name: a.Name}, err
	}
	defer release()

	do := a.Do
	if do == nil {
		do = Click
	}
	clock := s.Clock()
	start := clock.Now()
	res := ActionResult{Name: a.Name}
	log := s.Logger().Named("action").With(zap.String("action", a.Name), zap.String("page", wait.PageFrom(ctx)))

	log.Debug("Performing action.", zap.Stringer("target", a.Target))
	err = wait.Do(ctx, s, a.Name, func(ctx context.Context) error {
		el, err := wait.Find(ctx, s, a.Target, a.TargetTimeout)
		if err != nil {
			return err
		}
		return do(ctx, el)
	})
	if err != nil {
		res.Elapsed = clock.Now().Sub(start)
		s.Record(actionEvent(ctx, a.Name, outcomeOf(err), res.Elapsed, err))
		return res, fmt.Errorf("action %q on %s: %w", a.Name, a.Target, err)
	}

	specs := make([]wait.Spec, 0, len(a.Confirm))
	for _, c := range a.Confirm {
		specs = append(specs, wait.Spec{Condition: c, Timeout: a.ConfirmTimeout})
	}
	res.ConfirmFailures, err = Confirm(ctx, s, specs...)
	if err != nil {
		res.Elapsed = clock.Now().Sub(start)
		s.Record(actionEvent(ctx, a.Name, outcomeOf(err), res.Elapsed, err))
		return res, fmt.Errorf("action %q: %w", a.Name, err)
	}

	if settle := s.Policy().SettleDelay; settle > 0 {
		if err := clock.Sleep(ctx, settle); err != nil {
			return res, fmt.Errorf("action %q: %w", a.Name, err)
		}
	}

	res.Elapsed = clock.Now().Sub(start)
	outcome := report.OutcomeOK
	var lenientErr error
	if !res.Confirmed() {
		outcome = report.OutcomeLenient
		lenientErr = res.ConfirmFailures[0].Err
	}
	s.Record(actionEvent(ctx, a.Name, outcome, res.Elapsed, lenientErr))
	return res, nil
}

// Confirm waits for each spec in turn, each against its own timeout. A spec
// that times out is logged and returned as a ConfirmFailure; any other error
// stops confirmation and is returned.
func Confirm(ctx context.Context, s *session.Session, specs ...wait.Spec) ([]ConfirmFailure, error) {
	var failures []ConfirmFailure
	for _, spec := range specs {
		_, err := wait.For(ctx, s, spec)
		if err == nil {
			continue
		}
		if !errors.Is(err, wait.ErrTimedOut) {
			return failures, fmt.Errorf("confirming %s: %w", spec.Condition, err)
		}
		s.Logger().Named("action").Warn("Not confirmed in time; continuing with current page state.",
			zap.String("page", wait.PageFrom(ctx)), zap.Stringer("condition", spec.Condition), zap.Error(err))
		failures = append(failures, ConfirmFailure{Condition: spec.Condition.String(), Err: err})
		s.Record(report.Event{
			Kind:    report.KindConfirm,
			Page:    wait.PageFrom(ctx),
			Name:    spec.Condition.String(),
			Outcome: report.OutcomeLenient,
			Error:   err.Error(),
		})
	}
	return failures, nil
}

func actionEvent(ctx context.Context, name string, outcome report.Outcome, elapsed time.Duration, err error) report.Event {
	ev := report.Event{
		Kind:    report.KindAction,
		Page:    wait.PageFrom(ctx),
		Name:    name,
		Outcome: outcome,
		Elapsed: elapsed,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func outcomeOf(err error) report.Outcome {
	switch {
	case errors.Is(err, wait.ErrTimedOut):
		return report.OutcomeTimeout
	case errors.Is(err, wait.ErrStaleRetriesExhausted):
		return report.OutcomeStale
	}
	return report.OutcomeFault
}
