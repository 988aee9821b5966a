// internal/locator/locator.go
package locator

import (
	"fmt"
	"strings"
)

// Strategy names follow the W3C WebDriver "using" values so a Locator can
// be handed to a remote end unchanged.
type Strategy string

const (
	ByCSS   Strategy = "css selector"
	ByXPath Strategy = "xpath"
)

// Locator is an immutable query that resolves zero or more elements.
type Locator struct {
	By    Strategy
	Value string
}

// CSS builds a CSS selector locator.
func CSS(selector string) Locator { return Locator{By: ByCSS, Value: selector} }

// XPath builds an XPath locator.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// ID matches an element by its exact id attribute. It is expressed as an
// attribute selector so ids containing CSS metacharacters still work.
func ID(id string) Locator {
	return CSS(fmt.Sprintf("[id='%s']", strings.ReplaceAll(id, "'", `\'`)))
}

// IsZero reports whether l was never set.
func (l Locator) IsZero() bool { return l.Value == "" }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// Template is a parameterized locator such as
// "//a[@class='tag-link' and @rel='%s']".
type Template struct {
	By     Strategy
	Format string
}

// CSSTemplate builds a CSS template.
func CSSTemplate(format string) Template { return Template{By: ByCSS, Format: format} }

// XPathTemplate builds an XPath template.
func XPathTemplate(format string) Template { return Template{By: ByXPath, Format: format} }

// With substitutes args into the template with fmt semantics and returns a
// literal Locator.
func (t Template) With(args ...any) Locator {
	return Locator{By: t.By, Value: fmt.Sprintf(t.Format, args...)}
}
