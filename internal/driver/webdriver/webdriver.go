// internal/driver/webdriver/webdriver.go
package webdriver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/config"
	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
)

// W3C WebDriver error codes that map onto the driver sentinels.
const (
	codeNoSuchElement = "no such element"
	codeStaleElement  = "stale element reference"
)

// Driver adapts a remote selenium.WebDriver. The wire protocol is blocking,
// so ctx is only consulted between commands.
type Driver struct {
	wd     selenium.WebDriver
	logger *zap.Logger
}

// Dial opens a remote session at cfg.RemoteURL. Implicit waits are turned
// off so lookups return immediately and all waiting stays in the engine.
func Dial(ctx context.Context, cfg config.DriverConfig, logger *zap.Logger) (*Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caps := selenium.Capabilities{"browserName": cfg.BrowserName}
	if strings.EqualFold(cfg.BrowserName, "chrome") {
		args := append([]string(nil), cfg.Args...)
		if cfg.Headless {
			args = append(args, "--headless=new")
		}
		caps.AddChrome(chrome.Capabilities{Args: args, W3C: true})
	}

	wd, err := selenium.NewRemote(caps, cfg.RemoteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open webdriver session at %s: %w", cfg.RemoteURL, err)
	}
	if err := wd.SetImplicitWaitTimeout(0); err != nil {
		_ = wd.Quit()
		return nil, fmt.Errorf("failed to disable implicit wait: %w", err)
	}
	return New(wd, logger), nil
}

// New wraps an existing WebDriver session.
func New(wd selenium.WebDriver, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{wd: wd, logger: logger.Named("webdriver")}
}

func (d *Driver) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := d.wd.FindElements(string(loc.By), loc.Value)
	if err != nil {
		return nil, classify(fmt.Sprintf("find %s", loc), err)
	}
	return wrap(found), nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.Debug("Navigating.", zap.String("url", url))
	if err := d.wd.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.wd.CurrentURL()
}

func (d *Driver) Close(context.Context) error {
	if err := d.wd.Quit(); err != nil {
		return fmt.Errorf("failed to quit webdriver session: %w", err)
	}
	return nil
}

func wrap(found []selenium.WebElement) []driver.Element {
	out := make([]driver.Element, 0, len(found))
	for _, we := range found {
		out = append(out, &element{we: we})
	}
	return out
}

type element struct{ we selenium.WebElement }

func (e *element) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := e.we.FindElements(string(loc.By), loc.Value)
	if err != nil {
		return nil, classify(fmt.Sprintf("find %s in element", loc), err)
	}
	return wrap(found), nil
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("click", e.we.Click())
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("send keys", e.we.SendKeys(text))
}

func (e *element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("clear", e.we.Clear())
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.we.Text()
	return text, classify("read text", err)
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, err := e.we.GetAttribute(name)
	if err != nil && isCode(err, codeNoSuchAttribute) {
		// selenium reports a missing attribute as an error; callers
		// compare values, so absence reads as empty.
		return "", nil
	}
	return value, classify("read attribute "+name, err)
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	shown, err := e.we.IsDisplayed()
	return shown, classify("read displayed state", err)
}

// codeNoSuchAttribute is what tebeka/selenium reports for a nil attribute.
const codeNoSuchAttribute = "nil return value"

// classify maps WebDriver errors onto the driver sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isCode(err, codeStaleElement):
		return fmt.Errorf("%s: %w: %v", op, driver.ErrStaleElement, err)
	case isCode(err, codeNoSuchElement):
		return fmt.Errorf("%s: %w: %v", op, driver.ErrNoSuchElement, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isCode matches the structured W3C error code and falls back to the
// message for legacy remotes that only return text.
func isCode(err error, code string) bool {
	var werr *selenium.Error
	if errors.As(err, &werr) && werr.Err == code {
		return true
	}
	return strings.Contains(err.Error(), code)
}
