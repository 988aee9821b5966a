// internal/render/contract_test.go
package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/renderwait/internal/driver/fake"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/report"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/timing"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	clock *timing.FakeClock
	drv   *fake.Driver
	rec   *report.Memory
	s     *session.Session
	start time.Time
}

func newFixture(t *testing.T, policy timing.Policy) *fixture {
	t.Helper()
	clock := timing.NewFakeClock(time.Time{})
	drv := fake.New(clock)
	rec := &report.Memory{}
	s := session.New(drv,
		session.WithClock(clock),
		session.WithPolicy(policy),
		session.WithRecorder(rec),
		session.WithLogger(zaptest.NewLogger(t)),
	)
	return &fixture{clock: clock, drv: drv, rec: rec, s: s, start: clock.Now()}
}

func (f *fixture) elapsed() time.Duration { return f.clock.Now().Sub(f.start) }

func testPolicy() timing.Policy {
	return timing.Policy{
		DefaultWait:     2000 * time.Millisecond,
		PageLoad:        6 * time.Second,
		PollInterval:    500 * time.Millisecond,
		MaxStaleRetries: 3,
	}
}

var (
	header  = locator.CSS("#calendar-header")
	grid    = locator.CSS("table.month-grid")
	sidebar = locator.CSS("aside.event-list")
	banner  = locator.CSS("#admin-banner")
	tools   = locator.CSS("#admin-tools")
)

func calendarContract() Contract {
	return Contract{
		Page: "calendar",
		Markers: []Marker{
			{Name: "header", Condition: wait.Visible(header)},
			{Name: "grid", Condition: wait.Visible(grid)},
			{Name: "sidebar", Condition: wait.Visible(sidebar)},
		},
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()

	t.Run("AllMarkersPresent", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		for _, loc := range []locator.Locator{header, grid, sidebar} {
			f.drv.On(loc, fake.Always(fake.NewNode("")))
		}

		res, err := calendarContract().Render(ctx, f.s)
		require.NoError(t, err)
		assert.Equal(t, StateRendered, res.State)
		assert.Len(t, res.Markers, 3)
		assert.Zero(t, res.Elapsed)
		assert.Equal(t, 6*time.Second, res.Budget)

		renders := f.rec.Filter(report.KindRender)
		require.Len(t, renders, 1)
		assert.Equal(t, report.OutcomeOK, renders[0].Outcome)
		assert.Equal(t, "calendar", renders[0].Page)
		for _, ev := range f.rec.Filter(report.KindWait) {
			assert.Equal(t, "calendar", ev.Page)
		}
	})

	t.Run("MarkersShareOneBudget", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.AppearsAt(1000*time.Millisecond, fake.NewNode("")))
		f.drv.On(grid, fake.AppearsAt(2500*time.Millisecond, fake.NewNode("")))
		f.drv.On(sidebar, fake.Always(fake.NewNode("")))

		res, err := calendarContract().Render(ctx, f.s)
		require.NoError(t, err)
		assert.Equal(t, 2500*time.Millisecond, res.Elapsed)
		assert.Equal(t, 1000*time.Millisecond, res.Markers[0].Elapsed)
		assert.Equal(t, 1500*time.Millisecond, res.Markers[1].Elapsed)
		assert.Zero(t, res.Markers[2].Elapsed)
	})

	t.Run("MarkerTimeoutCapsItsShare", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.Never())
		c := Contract{Page: "calendar", Markers: []Marker{
			{Name: "header", Condition: wait.Visible(header), Timeout: time.Second},
		}}

		res, err := c.Render(ctx, f.s)
		assert.ErrorIs(t, err, wait.ErrTimedOut)
		assert.Equal(t, time.Second, res.Markers[0].Elapsed)
		assert.Equal(t, time.Second, f.elapsed())
		assert.Equal(t, 6*time.Second, res.Budget)
	})

	t.Run("MarkerTimeoutNeverOutlastsTheContract", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.AppearsAt(time.Second, fake.NewNode("")))
		f.drv.On(grid, fake.Never())
		c := Contract{Page: "calendar", Markers: []Marker{
			{Name: "header", Condition: wait.Visible(header)},
			{Name: "grid", Condition: wait.Visible(grid), Timeout: 5 * time.Second},
		}}

		res, err := c.RenderWithin(ctx, f.s, 1500*time.Millisecond)
		assert.ErrorIs(t, err, wait.ErrTimedOut)
		assert.Equal(t, 500*time.Millisecond, res.Markers[1].Elapsed)
		assert.Equal(t, 1500*time.Millisecond, res.Elapsed)
	})

	t.Run("StopsAtFirstTimedOutMarker", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.AppearsAt(1000*time.Millisecond, fake.NewNode("")))
		f.drv.On(grid, fake.Never())
		f.drv.On(sidebar, fake.Always(fake.NewNode("")))

		res, err := calendarContract().RenderWithin(ctx, f.s, 6000*time.Millisecond)
		require.Error(t, err)
		assert.ErrorIs(t, err, wait.ErrTimedOut)
		assert.ErrorIs(t, err, wait.ErrNotFound)

		var rerr *Error
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, 1, rerr.Index)
		assert.Equal(t, "grid", rerr.Marker)
		assert.Equal(t, "calendar", rerr.Page)

		assert.Equal(t, StateTimedOut, res.State)
		assert.Len(t, res.Markers, 2)
		assert.Zero(t, f.drv.Calls(sidebar), "markers after the failing one are never probed")
		assert.LessOrEqual(t, f.elapsed(), 6000*time.Millisecond)
		assert.Equal(t, 6000*time.Millisecond, res.Elapsed)

		renders := f.rec.Filter(report.KindRender)
		require.Len(t, renders, 1)
		assert.Equal(t, report.OutcomeTimeout, renders[0].Outcome)
		assert.Contains(t, renders[0].Error, "grid")
	})

	t.Run("ZeroBudgetProbesEachMarkerOnce", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.Always(fake.NewNode("")))

		res, err := calendarContract().RenderWithin(ctx, f.s, 0)
		assert.ErrorIs(t, err, wait.ErrTimedOut)
		assert.Equal(t, 1, f.drv.Calls(header))
		assert.Equal(t, 1, f.drv.Calls(grid))
		assert.Zero(t, f.drv.Calls(sidebar))
		assert.Zero(t, f.elapsed())
		assert.Equal(t, StateTimedOut, res.State)
	})

	t.Run("DriverFaultFailsRender", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.Fails(errors.New("chrome not reachable")))

		res, err := calendarContract().Render(ctx, f.s)
		assert.ErrorIs(t, err, wait.ErrDriverFault)
		assert.NotErrorIs(t, err, wait.ErrTimedOut)
		assert.Equal(t, StateFailed, res.State)
		assert.Zero(t, f.drv.Calls(grid))
	})

	t.Run("CancelledContext", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res, err := calendarContract().Render(cctx, f.s)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateFailed, res.State)
	})
}

func TestRenderGates(t *testing.T) {
	ctx := context.Background()
	contract := Contract{
		Page: "permissions",
		Markers: []Marker{
			{Name: "header", Condition: wait.Visible(header)},
			{Name: "admin tools", Condition: wait.Visible(tools), Gate: wait.Present(banner)},
		},
	}

	t.Run("ClosedGateSkipsMarker", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.Always(fake.NewNode("")))

		res, err := contract.Render(ctx, f.s)
		require.NoError(t, err)
		assert.Equal(t, StateRendered, res.State)
		require.Len(t, res.Markers, 2)
		assert.True(t, res.Markers[1].Skipped)
		assert.Equal(t, 1, f.drv.Calls(banner), "gates are probed once, never polled")
		assert.Zero(t, f.drv.Calls(tools))
	})

	t.Run("OpenGateWaitsForMarker", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.Always(fake.NewNode("")))
		f.drv.On(banner, fake.Always(fake.NewNode("").Hidden()))
		f.drv.On(tools, fake.AppearsAt(700*time.Millisecond, fake.NewNode("")))

		res, err := contract.Render(ctx, f.s)
		require.NoError(t, err)
		assert.False(t, res.Markers[1].Skipped)
		assert.Equal(t, 1000*time.Millisecond, res.Elapsed)
		assert.Equal(t, 1, f.drv.Calls(banner))
	})

	t.Run("GateSharesTheDeadline", func(t *testing.T) {
		f := newFixture(t, testPolicy())
		f.drv.On(header, fake.AppearsAt(4*time.Second, fake.NewNode("")))
		f.drv.On(banner, fake.Always(fake.NewNode("")))

		res, err := contract.Render(ctx, f.s)
		assert.ErrorIs(t, err, wait.ErrTimedOut)
		assert.Equal(t, StateTimedOut, res.State)
		assert.Equal(t, 6*time.Second, res.Elapsed)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unrendered", StateUnrendered.String())
	assert.Equal(t, "rendering", StateRendering.String())
	assert.Equal(t, "rendered", StateRendered.String())
	assert.Equal(t, "timed-out", StateTimedOut.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
