// File: cmd/probe_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/renderwait/internal/driver/fake"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

func decodeProbe(t *testing.T, out *bytes.Buffer) probeOutput {
	t.Helper()
	var got probeOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got), out.String())
	return got
}

func TestRunProbe(t *testing.T) {
	ctx := context.Background()
	grid := locator.CSS("#grid")

	t.Run("HoldsAfterPolling", func(t *testing.T) {
		f := newFixture(t)
		f.drv.On(grid, fake.AppearsAt(1200*time.Millisecond, fake.NewNode("")))
		var out bytes.Buffer

		err := runProbe(ctx, f.s, probeOptions{css: "#grid", condition: "visible", timeout: 2 * time.Second, timeoutSet: true, poll: 500 * time.Millisecond}, &out)
		require.NoError(t, err)

		got := decodeProbe(t, &out)
		assert.True(t, got.Held)
		assert.Equal(t, "visible", got.Outcome)
		assert.Equal(t, 1, got.Matches)
		assert.Equal(t, int64(1500), got.ElapsedMS)
		assert.Empty(t, got.Error)
	})

	t.Run("TimeoutIsPrintedAndReturned", func(t *testing.T) {
		f := newFixture(t)
		var out bytes.Buffer

		err := runProbe(ctx, f.s, probeOptions{css: "#grid", condition: "visible"}, &out)
		assert.ErrorIs(t, err, wait.ErrTimedOut)

		got := decodeProbe(t, &out)
		assert.False(t, got.Held)
		assert.Equal(t, "absent", got.Outcome)
		assert.Equal(t, int64(2000), got.ElapsedMS, "an unset timeout uses the session default")
		assert.NotEmpty(t, got.Error)
	})

	t.Run("NonPositiveTimeoutChecksOnce", func(t *testing.T) {
		for _, timeout := range []time.Duration{0, -time.Second} {
			f := newFixture(t)
			var out bytes.Buffer

			err := runProbe(ctx, f.s, probeOptions{css: "#grid", condition: "visible", timeout: timeout, timeoutSet: true}, &out)
			assert.ErrorIs(t, err, wait.ErrTimedOut)
			assert.Equal(t, 1, f.drv.Calls(grid), "timeout %v", timeout)
			assert.Zero(t, f.elapsed())
			assert.Equal(t, int64(0), decodeProbe(t, &out).ElapsedMS)
		}
	})

	t.Run("AttributeCondition", func(t *testing.T) {
		f := newFixture(t)
		toggle := locator.XPath("//span[@id='inherit']")
		f.drv.On(toggle, fake.Always(fake.NewNode("").WithAttr("class", "toggle on")))
		var out bytes.Buffer

		err := runProbe(ctx, f.s, probeOptions{xpath: toggle.Value, condition: "attribute-contains", attr: "class", value: "on"}, &out)
		require.NoError(t, err)
		assert.True(t, decodeProbe(t, &out).Held)
	})

	t.Run("NavigatesFirst", func(t *testing.T) {
		f := newFixture(t)
		f.drv.On(grid, fake.Always(fake.NewNode("")))

		err := runProbe(ctx, f.s, probeOptions{url: "http://example.test/calendar", css: "#grid", condition: "present"}, &bytes.Buffer{})
		require.NoError(t, err)
		url, err := f.drv.CurrentURL(ctx)
		require.NoError(t, err)
		assert.Equal(t, "http://example.test/calendar", url)
	})
}

func TestProbeOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		opts probeOptions
		want string
	}{
		{"NoLocator", probeOptions{condition: "visible"}, "one of --css or --xpath"},
		{"BothLocators", probeOptions{css: "a", xpath: "//a", condition: "visible"}, "only one of"},
		{"UnknownCondition", probeOptions{css: "a", condition: "shiny"}, "shiny"},
		{"AttrMissing", probeOptions{css: "a", condition: "attribute-equals", value: "x"}, "--attr is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			err := runProbe(context.Background(), f.s, tc.opts, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.Zero(t, f.elapsed())
		})
	}
}
