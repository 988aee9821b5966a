// internal/pages/pages.go

// Package pages holds page objects built on the render and wait packages.
// Every page takes the session it drives explicitly.
package pages

import (
	"context"
	"time"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/render"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

const (
	addEventPresentTimeout = 2 * time.Second
	permissionPanelTimeout = 500 * time.Millisecond
	userListTimeout        = 10 * time.Second
)

// action builds an Action whose target and each confirmation are bounded
// by the session default wait.
func action(s *session.Session, name string, target locator.Locator, confirm ...wait.Checker) render.Action {
	d := s.Policy().DefaultWait
	return render.Action{Name: name, Target: target, TargetTimeout: d, Confirm: confirm, ConfirmTimeout: d}
}

// defaultSpec waits for c up to the session default wait.
func defaultSpec(s *session.Session, c wait.Checker) wait.Spec {
	return wait.Spec{Condition: c, Timeout: s.Policy().DefaultWait}
}

// visibleOnce probes loc a single time. A stale match is probed again, up
// to the session stale-retry limit.
func visibleOnce(ctx context.Context, s *session.Session, loc locator.Locator) (bool, error) {
	return wait.RetryOnStale(ctx, s, "probe "+loc.String(), func(ctx context.Context) (bool, error) {
		res, err := wait.Probe(ctx, s, loc)
		if err != nil {
			return false, err
		}
		if res.Outcome == wait.OutcomeStale {
			return false, driver.ErrStaleElement
		}
		return res.Outcome == wait.OutcomeVisible, nil
	})
}

// childText reads the text of the first child of el matching loc. A row
// without that child reads as empty.
func childText(ctx context.Context, el driver.Element, loc locator.Locator) (string, error) {
	children, err := el.FindElements(ctx, loc)
	if err != nil {
		if driver.IsNoSuchElement(err) {
			return "", nil
		}
		return "", err
	}
	if len(children) == 0 {
		return "", nil
	}
	return children[0].Text(ctx)
}
