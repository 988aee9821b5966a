// internal/driver/driver.go
package driver

import (
	"context"
	"errors"

	"github.com/xkilldash9x/renderwait/internal/locator"
)

var (
	// ErrNoSuchElement is wrapped by adapters when a lookup matched nothing
	// and the binding reports that as an error rather than an empty slice.
	ErrNoSuchElement = errors.New("no such element")
	// ErrStaleElement is wrapped when an element handle no longer refers to
	// a node attached to the document.
	ErrStaleElement = errors.New("element is stale or detached from the document")
	// ErrClosed is returned by adapters after Close.
	ErrClosed = errors.New("driver is closed")
)

// Driver is the synchronous-command browser binding a session wraps. Every
// call issues fresh commands against the live page; nothing is cached.
type Driver interface {
	// FindElements returns every match for loc without waiting. An empty
	// slice with a nil error means nothing matched.
	FindElements(ctx context.Context, loc locator.Locator) ([]Element, error)
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Element is a handle to a node. It is only valid until the next DOM
// mutation that replaces the node; calls after that fail with an error
// wrapping ErrStaleElement.
type Element interface {
	FindElements(ctx context.Context, loc locator.Locator) ([]Element, error)
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	IsDisplayed(ctx context.Context) (bool, error)
}

// IsStale reports whether err means the element went stale.
func IsStale(err error) bool { return errors.Is(err, ErrStaleElement) }

// IsNoSuchElement reports whether err means nothing matched.
func IsNoSuchElement(err error) bool { return errors.Is(err, ErrNoSuchElement) }
