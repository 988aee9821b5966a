// internal/driver/devtools/devtools.go
package devtools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/config"
	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
)

// Driver runs every command in its own timeout-bounded context derived from
// the tab context.
type Driver struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
}

// Launch starts a local browser and opens one tab.
func Launch(ctx context.Context, cfg config.DriverConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("headless", cfg.Headless),
	)
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// The browser must outlive the ctx used to launch it.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	startCtx, cancelStart := commandContext(tab, ctx, cfg.CommandTimeout)
	defer cancelStart()
	if err := chromedp.Run(startCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	d := New(tab, cfg.CommandTimeout, logger)
	d.cancelTab = cancelTab
	d.cancelAlloc = cancelAlloc
	return d, nil
}

// New wraps an existing chromedp tab context.
func New(tab context.Context, timeout time.Duration, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{tab: tab, timeout: timeout, logger: logger.Named("cdp")}
}

func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := commandContext(d.tab, ctx, d.timeout)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *Driver) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	return d.query(ctx, loc, nil)
}

// query performs a single non-waiting lookup. AtLeast(0) stops chromedp
// from polling until something matches.
func (d *Driver) query(ctx context.Context, loc locator.Locator, from *cdp.Node) ([]driver.Element, error) {
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	switch loc.By {
	case locator.ByCSS:
		opts = append(opts, chromedp.ByQueryAll)
		if from != nil {
			opts = append(opts, chromedp.FromNode(from))
		}
	case locator.ByXPath:
		if from != nil {
			return nil, fmt.Errorf("nested xpath lookups are not supported by the cdp driver: %s", loc)
		}
		opts = append(opts, chromedp.BySearch)
	default:
		return nil, fmt.Errorf("unsupported locator strategy %q", loc.By)
	}

	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(loc.Value, &nodes, opts...)); err != nil {
		op := fmt.Sprintf("find %s", loc)
		// Only a scoped lookup has a node of ours that can go stale.
		if from == nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, classify(op, err)
	}
	out := make([]driver.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{d: d, node: n})
	}
	return out, nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("Navigating.", zap.String("url", url))
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (d *Driver) Close(context.Context) error {
	if d.cancelTab != nil {
		d.cancelTab()
	}
	if d.cancelAlloc != nil {
		d.cancelAlloc()
	}
	return nil
}

type element struct {
	d    *Driver
	node *cdp.Node
}

// scriptResult is the envelope every element script returns.
type scriptResult struct {
	Stale bool                `json:"stale"`
	Value jsoniter.RawMessage `json:"value"`
}

// call runs body as a function with `this` bound to the element. A detached
// node reports stale instead of running body.
func (e *element) call(ctx context.Context, op, body string, out any) error {
	fn := fmt.Sprintf(`function() {
	if (!this.isConnected) { return {stale: true}; }
	const v = (function() { %s }).call(this);
	return {stale: false, value: v === undefined ? null : v};
}`, body)

	err := e.d.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(c)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		var r scriptResult
		if err := jsoniter.Unmarshal([]byte(res.Value), &r); err != nil {
			return fmt.Errorf("failed to decode script result: %w", err)
		}
		if r.Stale {
			return driver.ErrStaleElement
		}
		if out == nil || len(r.Value) == 0 {
			return nil
		}
		return jsoniter.Unmarshal(r.Value, out)
	}))
	return classify(op, err)
}

func (e *element) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	return e.d.query(ctx, loc, e.node)
}

func (e *element) Click(ctx context.Context) error {
	if err := e.call(ctx, "click", "return null;", nil); err != nil {
		return err
	}
	return classify("click", e.d.run(ctx, chromedp.MouseClickNode(e.node)))
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.call(ctx, "send keys", "this.focus(); return null;", nil); err != nil {
		return err
	}
	return classify("send keys", e.d.run(ctx, chromedp.KeyEventNode(e.node, text)))
}

func (e *element) Clear(ctx context.Context) error {
	return e.call(ctx, "clear", `
		if ('value' in this) { this.value = ''; }
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return null;`, nil)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, "read text", "return this.innerText;", &text)
	return text, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	quoted, err := jsoniter.MarshalToString(name)
	if err != nil {
		return "", err
	}
	var value *string
	if err := e.call(ctx, "read attribute "+name, fmt.Sprintf("return this.getAttribute(%s);", quoted), &value); err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	var shown bool
	err := e.call(ctx, "read displayed state", `
		const style = window.getComputedStyle(this);
		if (style.visibility === 'hidden' || style.display === 'none') { return false; }
		return !!(this.offsetWidth || this.offsetHeight || this.getClientRects().length);`, &shown)
	return shown, err
}

// staleMarkers are CDP messages that mean the node id no longer resolves.
var staleMarkers = []string{
	"Could not find node",
	"No node with given id",
	"Node with given id does not belong to the document",
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrStaleElement) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := err.Error()
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", op, driver.ErrStaleElement, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
