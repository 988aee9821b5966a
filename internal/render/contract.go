// internal/render/contract.go
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/report"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/timing"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

// State tracks a page through its render contract.
type State int

const (
	StateUnrendered State = iota
	StateRendering
	StateRendered
	StateTimedOut
	// StateFailed means a driver fault or cancellation interrupted rendering.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnrendered:
		return "unrendered"
	case StateRendering:
		return "rendering"
	case StateRendered:
		return "rendered"
	case StateTimedOut:
		return "timed-out"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Marker is one element whose condition must hold before a page counts as
// rendered. When Gate is set it is evaluated once, without polling, and the
// marker is skipped if the gate does not hold.
type Marker struct {
	Name      string
	Condition wait.Checker
	Gate      wait.Checker
	// Timeout, when positive, caps this marker's wait. The marker still
	// cannot outlast the contract deadline.
	Timeout time.Duration
}

// MarkerResult records what happened to one marker.
type MarkerResult struct {
	Name    string
	Skipped bool
	Outcome wait.Outcome
	Elapsed time.Duration
	Err     error
}

// Result describes a finished render.
type Result struct {
	Page    string
	State   State
	Budget  time.Duration
	Elapsed time.Duration
	Markers []MarkerResult
}

// Error is returned when a render contract is not met. It wraps the
// marker's own error, so errors.Is(err, wait.ErrTimedOut) works.
type Error struct {
	Page   string
	Marker string
	Index  int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("page %q did not render: marker %d (%s): %v", e.Page, e.Index+1, e.Marker, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Contract lists, in order, the markers that make up a rendered page.
type Contract struct {
	Page    string
	Markers []Marker
}

// Render waits for every marker within the session page-load timeout.
func (c Contract) Render(ctx context.Context, s *session.Session) (Result, error) {
	return c.RenderWithin(ctx, s, s.Policy().PageLoad)
}

// RenderWithin is Render with an explicit total budget.
func (c Contract) RenderWithin(ctx context.Context, s *session.Session, budget time.Duration) (Result, error) {
	return c.RenderBy(ctx, s, s.Deadline(budget))
}

// RenderBy checks markers in order against one shared deadline. Each marker
// gets only what earlier markers left over. The first marker that runs out
// of time fails the render and later markers are never evaluated.
func (c Contract) RenderBy(ctx context.Context, s *session.Session, deadline timing.Deadline) (Result, error) {
	res := Result{Page: c.Page, State: StateUnrendered, Budget: deadline.Budget()}
	if c.Page != "" {
		ctx = wait.WithPage(ctx, c.Page)
	}
	ctx, release, err := s.Hold(ctx)
	if err != nil {
		return res, err
	}
	defer release()

	log := s.Logger().Named("render").With(zap.String("page", c.Page))
	clock := s.Clock()
	res.State = StateRendering

	for i, m := range c.Markers {
		markerStart := clock.Now()
		mr := MarkerResult{Name: m.Name}

		if m.Gate != nil {
			_, open, err := m.Gate.Evaluate(ctx, s)
			if err != nil {
				return c.fail(s, log, res, deadline, i, m, mr, err)
			}
			if !open {
				mr.Skipped = true
				res.Markers = append(res.Markers, mr)
				log.Debug("Marker gate closed; skipping.", zap.String("marker", m.Name))
				continue
			}
		}

		by := deadline
		if m.Timeout > 0 {
			by = deadline.Sub(markerStart, m.Timeout)
		}
		probe, err := wait.AwaitCondition(ctx, s, m.Condition, by, 0)
		mr.Outcome = probe.Outcome
		mr.Elapsed = clock.Now().Sub(markerStart)
		if err != nil {
			return c.fail(s, log, res, deadline, i, m, mr, err)
		}
		res.Markers = append(res.Markers, mr)
	}

	now := clock.Now()
	res.State = StateRendered
	res.Elapsed = deadline.Elapsed(now)
	s.Record(report.Event{
		Kind:    report.KindRender,
		Page:    c.Page,
		Name:    "render",
		Outcome: report.OutcomeOK,
		Elapsed: res.Elapsed,
		Budget:  res.Budget,
	})
	log.Debug("Page rendered.", zap.Duration("elapsed", res.Elapsed), zap.Int("markers", len(c.Markers)))
	return res, nil
}

func (c Contract) fail(s *session.Session, log *zap.Logger, res Result, deadline timing.Deadline, i int, m Marker, mr MarkerResult, err error) (Result, error) {
	mr.Err = err
	res.Markers = append(res.Markers, mr)
	res.Elapsed = deadline.Elapsed(s.Clock().Now())

	outcome := report.OutcomeFault
	if errors.Is(err, wait.ErrTimedOut) {
		res.State = StateTimedOut
		outcome = report.OutcomeTimeout
	} else {
		res.State = StateFailed
	}
	rerr := &Error{Page: c.Page, Marker: m.Name, Index: i, Err: err}
	s.Record(report.Event{
		Kind:    report.KindRender,
		Page:    c.Page,
		Name:    "render",
		Outcome: outcome,
		Elapsed: res.Elapsed,
		Budget:  res.Budget,
		Error:   rerr.Error(),
	})
	log.Warn("Page did not render.",
		zap.String("marker", m.Name),
		zap.Int("index", i),
		zap.Stringer("state", res.State),
		zap.Duration("elapsed", res.Elapsed),
		zap.Error(err),
	)
	return res, rerr
}
