// internal/driver/pw/pw.go
package pw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/config"
	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
)

// Driver adapts a playwright Page. Playwright calls take a timeout in
// milliseconds instead of a context, so each call gets the smaller of the
// command timeout and the time left on ctx.
type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	timeout time.Duration
	logger  *zap.Logger
}

// Launch starts playwright, a browser of cfg.BrowserName and one page.
func Launch(ctx context.Context, cfg config.DriverConfig, logger *zap.Logger) (*Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pwr, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	switch strings.ToLower(cfg.BrowserName) {
	case "firefox":
		browserType = pwr.Firefox
	case "webkit", "safari":
		browserType = pwr.WebKit
	default:
		browserType = pwr.Chromium
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     cfg.Args,
	})
	if err != nil {
		_ = pwr.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", cfg.BrowserName, err)
	}
	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pwr.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	d := New(page, cfg.CommandTimeout, logger)
	d.pw = pwr
	d.browser = browser
	return d, nil
}

// New wraps an existing page.
func New(page playwright.Page, timeout time.Duration, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{page: page, timeout: timeout, logger: logger.Named("playwright")}
}

// budget converts the effective timeout to playwright's milliseconds.
func (d *Driver) budget(ctx context.Context) *float64 {
	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil
	}
	return playwright.Float(float64(timeout.Milliseconds()))
}

// selector renders loc in playwright's selector engine syntax.
func selector(loc locator.Locator) string {
	if loc.By == locator.ByXPath {
		return "xpath=" + loc.Value
	}
	return "css=" + loc.Value
}

func (d *Driver) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := d.page.QuerySelectorAll(selector(loc))
	if err != nil {
		return nil, classify(fmt.Sprintf("find %s", loc), err)
	}
	return d.wrap(handles), nil
}

func (d *Driver) wrap(handles []playwright.ElementHandle) []driver.Element {
	out := make([]driver.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &element{d: d, h: h})
	}
	return out
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.Debug("Navigating.", zap.String("url", url))
	if _, err := d.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   d.budget(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

func (d *Driver) Close(context.Context) error {
	var errs []error
	if err := d.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type element struct {
	d *Driver
	h playwright.ElementHandle
}

func (e *element) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := e.h.QuerySelectorAll(selector(loc))
	if err != nil {
		return nil, classify(fmt.Sprintf("find %s in element", loc), err)
	}
	return e.d.wrap(handles), nil
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("click", e.h.Click(playwright.ElementHandleClickOptions{Timeout: e.d.budget(ctx)}))
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("send keys", e.h.Type(text, playwright.ElementHandleTypeOptions{Timeout: e.d.budget(ctx)}))
}

func (e *element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("clear", e.h.Fill("", playwright.ElementHandleFillOptions{Timeout: e.d.budget(ctx)}))
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.h.InnerText()
	return text, classify("read text", err)
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, err := e.h.GetAttribute(name)
	return value, classify("read attribute "+name, err)
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	shown, err := e.h.IsVisible()
	return shown, classify("read displayed state", err)
}

// staleMarkers are the messages playwright uses for handles whose node or
// execution context is gone.
var staleMarkers = []string{
	"not attached to the DOM",
	"Element is not attached",
	"Execution context was destroyed",
	"Cannot find context with specified id",
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%s: %w: %v", op, driver.ErrStaleElement, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
