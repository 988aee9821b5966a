// internal/wait/condition.go
package wait

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/session"
)

// Kind is the closed set of things a wait can wait for.
type Kind int

const (
	// KindVisible: the first match exists and is displayed.
	KindVisible Kind = iota
	// KindPresent: at least one match exists, displayed or not.
	KindPresent
	// KindInvisible: nothing matches, or the first match is hidden.
	KindInvisible
	// KindDeleted: nothing matches at all.
	KindDeleted
	// KindAttributeEquals: the first match carries Attr == Value.
	KindAttributeEquals
	// KindAttributeContains: the first match's Attr contains Value.
	KindAttributeContains
	// KindTextContains: the first match is visible and its text contains Value.
	KindTextContains
	// KindTextGone: no visible first match whose text contains Value.
	KindTextGone
)

var kindNames = map[Kind]string{
	KindVisible:           "visible",
	KindPresent:           "present",
	KindInvisible:         "invisible",
	KindDeleted:           "deleted",
	KindAttributeEquals:   "attribute-equals",
	KindAttributeContains: "attribute-contains",
	KindTextContains:      "text-contains",
	KindTextGone:          "text-gone",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a name produced by Kind.String back to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown condition %q", name)
}

// Checker is anything the poll loop can evaluate. Evaluate performs one
// observation; it must not wait.
type Checker interface {
	Evaluate(ctx context.Context, s *session.Session) (ProbeResult, bool, error)
	String() string
}

// Condition is a tagged wait condition.
type Condition struct {
	Kind    Kind
	Locator locator.Locator
	Attr    string
	Value   string
}

func Visible(loc locator.Locator) Condition   { return Condition{Kind: KindVisible, Locator: loc} }
func Present(loc locator.Locator) Condition   { return Condition{Kind: KindPresent, Locator: loc} }
func Invisible(loc locator.Locator) Condition { return Condition{Kind: KindInvisible, Locator: loc} }
func Deleted(loc locator.Locator) Condition   { return Condition{Kind: KindDeleted, Locator: loc} }

func AttributeEquals(loc locator.Locator, attr, value string) Condition {
	return Condition{Kind: KindAttributeEquals, Locator: loc, Attr: attr, Value: value}
}

func AttributeContains(loc locator.Locator, attr, value string) Condition {
	return Condition{Kind: KindAttributeContains, Locator: loc, Attr: attr, Value: value}
}

func TextContains(loc locator.Locator, text string) Condition {
	return Condition{Kind: KindTextContains, Locator: loc, Value: text}
}

func TextGone(loc locator.Locator, text string) Condition {
	return Condition{Kind: KindTextGone, Locator: loc, Value: text}
}

func (c Condition) String() string {
	switch c.Kind {
	case KindAttributeEquals, KindAttributeContains:
		return fmt.Sprintf("%s %s[%s %q]", c.Kind, c.Locator, c.Attr, c.Value)
	case KindTextContains, KindTextGone:
		return fmt.Sprintf("%s %s %q", c.Kind, c.Locator, c.Value)
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Locator)
}

// Evaluate probes once and applies the predicate for c.Kind. A stale probe
// never satisfies a condition; the poll loop simply tries again.
func (c Condition) Evaluate(ctx context.Context, s *session.Session) (ProbeResult, bool, error) {
	res, err := Probe(ctx, s, c.Locator)
	if err != nil || res.Outcome == OutcomeStale {
		return res, false, err
	}

	switch c.Kind {
	case KindVisible:
		return res, res.Outcome == OutcomeVisible, nil
	case KindPresent:
		return res, res.Outcome != OutcomeAbsent, nil
	case KindInvisible:
		return res, res.Outcome.HiddenOrAbsent(), nil
	case KindDeleted:
		return res, res.Outcome == OutcomeAbsent, nil
	case KindAttributeEquals, KindAttributeContains:
		if res.Outcome == OutcomeAbsent {
			return res, false, nil
		}
		value, err := res.Element.Attribute(ctx, c.Attr)
		if err != nil {
			return c.elementError(ctx, res, "read attribute "+c.Attr, err)
		}
		if c.Kind == KindAttributeEquals {
			return res, value == c.Value, nil
		}
		return res, strings.Contains(value, c.Value), nil
	case KindTextContains, KindTextGone:
		if res.Outcome != OutcomeVisible {
			return res, c.Kind == KindTextGone, nil
		}
		text, err := res.Element.Text(ctx)
		if err != nil {
			return c.elementError(ctx, res, "read text", err)
		}
		has := strings.Contains(text, c.Value)
		if c.Kind == KindTextContains {
			return res, has, nil
		}
		return res, !has, nil
	}
	return res, false, fmt.Errorf("unsupported condition kind %s", c.Kind)
}

// elementError turns a failed read on a matched element into either a
// stale "not yet" or a fault.
func (c Condition) elementError(ctx context.Context, res ProbeResult, op string, err error) (ProbeResult, bool, error) {
	if driver.IsStale(err) {
		res.Outcome = OutcomeStale
		return res, false, nil
	}
	_, ferr := classifyProbeError(ctx, op, c.Locator, err)
	return res, false, ferr
}

// CheckFunc adapts a custom predicate into a Checker.
type CheckFunc struct {
	Name string
	Fn   func(ctx context.Context, s *session.Session) (ProbeResult, bool, error)
}

func (f CheckFunc) Evaluate(ctx context.Context, s *session.Session) (ProbeResult, bool, error) {
	return f.Fn(ctx, s)
}

func (f CheckFunc) String() string { return f.Name }
