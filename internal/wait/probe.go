// internal/wait/probe.go
package wait

import (
	"context"
	"errors"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/session"
)

// Outcome classifies a single observation of a locator.
type Outcome int

const (
	OutcomeAbsent Outcome = iota
	OutcomeHidden
	OutcomeVisible
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAbsent:
		return "absent"
	case OutcomeHidden:
		return "hidden"
	case OutcomeVisible:
		return "visible"
	case OutcomeStale:
		return "stale"
	}
	return "unknown"
}

// HiddenOrAbsent is true when nothing visible matched.
func (o Outcome) HiddenOrAbsent() bool {
	return o == OutcomeAbsent || o == OutcomeHidden
}

// ProbeResult is one observation. The element handles are only good until
// the page next changes; never keep them across an action.
type ProbeResult struct {
	Outcome  Outcome
	Element  driver.Element
	Elements []driver.Element
}

// Matches is how many elements the lookup returned.
func (r ProbeResult) Matches() int { return len(r.Elements) }

// Probe resolves loc once and classifies the first match. It never waits
// and never retries. Errors other than not-found and stale come back as
// *DriverFault.
func Probe(ctx context.Context, s *session.Session, loc locator.Locator) (ProbeResult, error) {
	els, err := s.Driver().FindElements(ctx, loc)
	if err != nil {
		return classifyProbeError(ctx, "find", loc, err)
	}
	if len(els) == 0 {
		return ProbeResult{Outcome: OutcomeAbsent}, nil
	}

	res := ProbeResult{Element: els[0], Elements: els}
	shown, err := els[0].IsDisplayed(ctx)
	if err != nil {
		r, ferr := classifyProbeError(ctx, "read displayed state", loc, err)
		if r.Outcome == OutcomeStale {
			res.Outcome = OutcomeStale
			return res, nil
		}
		return r, ferr
	}
	if shown {
		res.Outcome = OutcomeVisible
	} else {
		res.Outcome = OutcomeHidden
	}
	return res, nil
}

func classifyProbeError(ctx context.Context, op string, loc locator.Locator, err error) (ProbeResult, error) {
	switch {
	case driver.IsNoSuchElement(err):
		return ProbeResult{Outcome: OutcomeAbsent}, nil
	case driver.IsStale(err):
		return ProbeResult{Outcome: OutcomeStale}, nil
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return ProbeResult{}, ctx.Err()
	}
	return ProbeResult{}, &DriverFault{Op: op, Locator: loc, Err: err}
}
