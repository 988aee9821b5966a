// internal/timing/timing_test.go
package timing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/renderwait/internal/config"
)

func TestDeadline(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("RemainingShrinksAndClampsAtZero", func(t *testing.T) {
		d := NewDeadline(start, 2*time.Second)
		assert.Equal(t, 2*time.Second, d.Remaining(start))
		assert.Equal(t, 500*time.Millisecond, d.Remaining(start.Add(1500*time.Millisecond)))
		assert.Zero(t, d.Remaining(start.Add(3*time.Second)))
		assert.False(t, d.Expired(start.Add(1999*time.Millisecond)))
		assert.True(t, d.Expired(start.Add(2*time.Second)))
	})

	t.Run("NegativeBudgetIsExpiredImmediately", func(t *testing.T) {
		d := NewDeadline(start, -time.Second)
		assert.Zero(t, d.Budget())
		assert.True(t, d.Expired(start))
	})

	t.Run("SubNeverExceedsParent", func(t *testing.T) {
		parent := NewDeadline(start, 6*time.Second)
		now := start.Add(5 * time.Second)
		child := parent.Sub(now, 10*time.Second)
		assert.Equal(t, time.Second, child.Budget())
		assert.Equal(t, parent.At(), child.At())

		smaller := parent.Sub(now, 200*time.Millisecond)
		assert.Equal(t, 200*time.Millisecond, smaller.Budget())
	})

	t.Run("Elapsed", func(t *testing.T) {
		d := NewDeadline(start, time.Second)
		assert.Equal(t, 1200*time.Millisecond, d.Elapsed(start.Add(1200*time.Millisecond)))
	})
}

func TestFakeClock(t *testing.T) {
	c := NewFakeClock(time.Time{})
	before := c.Now()

	require.NoError(t, c.Sleep(context.Background(), 500*time.Millisecond))
	c.Advance(100 * time.Millisecond)

	assert.Equal(t, 600*time.Millisecond, c.Now().Sub(before))
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, c.Sleeps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Second), context.Canceled)
	assert.Len(t, c.Sleeps(), 1, "a canceled sleep must not advance time")
}

func TestRealClockSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RealClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyFromConfig(t *testing.T) {
	t.Run("ConvertsUnits", func(t *testing.T) {
		p := PolicyFromConfig(config.WaitConfig{
			DefaultWaitMillis:      2000,
			PageLoadTimeoutSeconds: 6,
			PollIntervalMillis:     500,
			MaxStaleRetries:        5,
			SettleDelayMillis:      250,
		})
		assert.Equal(t, 2*time.Second, p.DefaultWait)
		assert.Equal(t, 6*time.Second, p.PageLoad)
		assert.Equal(t, 500*time.Millisecond, p.PollInterval)
		assert.Equal(t, 5, p.MaxStaleRetries)
		assert.Equal(t, 250*time.Millisecond, p.SettleDelay)
	})

	t.Run("ZeroValuesFallBackToDefaults", func(t *testing.T) {
		p := PolicyFromConfig(config.WaitConfig{})
		assert.Equal(t, DefaultPolicy(), p)
	})

	t.Run("Interval", func(t *testing.T) {
		p := DefaultPolicy()
		assert.Equal(t, p.PollInterval, p.Interval(0))
		assert.Equal(t, 50*time.Millisecond, p.Interval(50*time.Millisecond))
	})
}
