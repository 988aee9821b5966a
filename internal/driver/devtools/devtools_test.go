// internal/driver/devtools/devtools_test.go
package devtools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
)

func TestCombine(t *testing.T) {
	defer goleak.VerifyNone(t)

	type ctxKey string
	const key ctxKey = "target"

	t.Run("InheritsValuesFromTab", func(t *testing.T) {
		tab := context.WithValue(context.Background(), key, "tab-1")
		ctx, cancel := combine(tab, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", ctx.Value(key))
		assert.NoError(t, ctx.Err())
	})

	t.Run("CanceledByTab", func(t *testing.T) {
		tab, cancelTab := context.WithCancel(context.Background())
		ctx, cancel := combine(tab, context.Background())
		defer cancel()

		cancelTab()
		<-ctx.Done()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("OperationDeadlineIsTheCause", func(t *testing.T) {
		op, cancelOp := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancelOp()
		ctx, cancel := combine(context.Background(), op)
		defer cancel()

		<-ctx.Done()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
		assert.ErrorIs(t, context.Cause(ctx), context.DeadlineExceeded)
	})

	t.Run("CommandTimeoutBoundsTheCall", func(t *testing.T) {
		ctx, cancel := commandContext(context.Background(), context.Background(), 10*time.Millisecond)
		defer cancel()

		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 50*time.Millisecond)
		<-ctx.Done()
	})

	t.Run("ExplicitCancelReleasesWatcher", func(t *testing.T) {
		ctx, cancel := combine(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		stale bool
	}{
		{"could not find node", errors.New("could not resolve: Could not find node with given id (-32000)"), true},
		{"foreign document", errors.New("Node with given id does not belong to the document"), true},
		{"script envelope", driver.ErrStaleElement, true},
		{"box model", errors.New("could not compute box model"), false},
		{"generic server error", &cdproto.Error{Code: -32000, Message: "DOM Error while querying"}, false},
		{"stale node with server code", &cdproto.Error{Code: -32000, Message: "No node with given id found"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("click", tc.err)
			require.Error(t, err)
			assert.Equal(t, tc.stale, driver.IsStale(err))
		})
	}

	assert.NoError(t, classify("click", nil))
	assert.ErrorIs(t, classify("click", context.DeadlineExceeded), context.DeadlineExceeded)

	invalid := classify("find css selector=div[", &cdproto.Error{Code: -32000, Message: "DOM Error while querying"})
	assert.NotErrorIs(t, invalid, driver.ErrStaleElement)
	var cerr *cdproto.Error
	assert.ErrorAs(t, invalid, &cerr)
}

func TestDocumentQueryErrorIsNotStale(t *testing.T) {
	d := New(context.Background(), time.Second, nil)
	_, err := d.FindElements(context.Background(), locator.CSS("div["))
	require.Error(t, err)
	assert.False(t, driver.IsStale(err))
	assert.Contains(t, err.Error(), "find css selector=div[")
}

func TestQueryRejectsNestedXPath(t *testing.T) {
	d := New(context.Background(), time.Second, nil)
	_, err := d.query(context.Background(), locator.XPath("./td"), &cdp.Node{NodeName: "TR"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested xpath")
}
