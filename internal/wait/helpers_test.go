// internal/wait/helpers_test.go
package wait

import (
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/renderwait/internal/driver/fake"
	"github.com/xkilldash9x/renderwait/internal/report"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/timing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fixture bundles a session running on a fake clock against a scripted driver.
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
