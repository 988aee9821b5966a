// internal/driver/fake/fake.go
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/timing"
)

// Rule decides what a lookup returns, given the virtual time elapsed since
// the driver was created and how many times this locator was queried before.
type Rule func(elapsed time.Duration, call int) ([]*Node, error)

// Node is an in-memory element. Mutations go through the Node methods so
// they are safe against concurrent readers.
type Node struct {
	mu        sync.Mutex
	text      string
	attrs     map[string]string
	displayed bool
	detached  bool
	// staleCalls counts the element calls that should still fail as stale.
	staleCalls int
	children   map[locator.Locator][]*Node
	clicks     int
	typed      string
	onClick    func()
}

// NewNode returns a displayed node with the given text.
func NewNode(text string) *Node {
	return &Node{text: text, attrs: map[string]string{}, displayed: true}
}

// WithAttr sets an attribute and returns n for chaining.
func (n *Node) WithAttr(name, value string) *Node {
	n.mu.Lock()
	n.attrs[name] = value
	n.mu.Unlock()
	return n
}

// Hidden marks the node as present but not displayed.
func (n *Node) Hidden() *Node {
	n.SetDisplayed(false)
	return n
}

// WithChild registers a node returned by Element.FindElements(loc).
func (n *Node) WithChild(loc locator.Locator, child ...*Node) *Node {
	n.mu.Lock()
	if n.children == nil {
		n.children = map[locator.Locator][]*Node{}
	}
	n.children[loc] = append(n.children[loc], child...)
	n.mu.Unlock()
	return n
}

// StaleFor makes the next k element calls on handles to n fail as stale.
func (n *Node) StaleFor(k int) *Node {
	n.mu.Lock()
	n.staleCalls = k
	n.mu.Unlock()
	return n
}

// OnClick registers a side effect run after every successful click.
func (n *Node) OnClick(fn func()) *Node {
	n.mu.Lock()
	n.onClick = fn
	n.mu.Unlock()
	return n
}

func (n *Node) SetDisplayed(b bool) {
	n.mu.Lock()
	n.displayed = b
	n.mu.Unlock()
}

func (n *Node) SetAttr(name, value string) { n.WithAttr(name, value) }

// Detach turns every outstanding handle to n stale.
func (n *Node) Detach() {
	n.mu.Lock()
	n.detached = true
	n.mu.Unlock()
}

// Clicks returns how many clicks reached the node.
func (n *Node) Clicks() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clicks
}

// Typed returns the text sent to the node since the last Clear.
func (n *Node) Typed() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.typed
}

// checkLocked must be called with n.mu held.
func (n *Node) checkLocked() error {
	if n.detached {
		return fmt.Errorf("fake: %w", driver.ErrStaleElement)
	}
	if n.staleCalls > 0 {
		n.staleCalls--
		return fmt.Errorf("fake: %w", driver.ErrStaleElement)
	}
	return nil
}

// Driver is a scripted driver.Driver running on a timing.FakeClock.
type Driver struct {
	mu      sync.Mutex
	clock   *timing.FakeClock
	start   time.Time
	rules   map[locator.Locator]Rule
	calls   map[locator.Locator]int
	url     string
	closed  bool
	latency time.Duration
}

// New returns a driver with no rules: every lookup matches nothing.
func New(clock *timing.FakeClock) *Driver {
	return &Driver{
		clock: clock,
		start: clock.Now(),
		rules: map[locator.Locator]Rule{},
		calls: map[locator.Locator]int{},
	}
}

// WithLatency makes every FindElements advance the clock by d.
func (d *Driver) WithLatency(latency time.Duration) *Driver {
	d.latency = latency
	return d
}

// On installs the rule for loc, replacing any previous one.
func (d *Driver) On(loc locator.Locator, rule Rule) *Driver {
	d.mu.Lock()
	d.rules[loc] = rule
	d.mu.Unlock()
	return d
}

// Calls returns how many lookups were made for loc.
func (d *Driver) Calls(loc locator.Locator) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[loc]
}

func (d *Driver) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, driver.ErrClosed
	}
	rule, ok := d.rules[loc]
	call := d.calls[loc]
	d.calls[loc] = call + 1
	d.mu.Unlock()

	if d.latency > 0 {
		d.clock.Advance(d.latency)
	}
	if !ok {
		return nil, nil
	}
	nodes, err := rule(d.clock.Now().Sub(d.start), call)
	if err != nil {
		return nil, err
	}
	return wrap(nodes), nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	return ctx.Err()
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, ctx.Err()
}

func (d *Driver) Close(context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func wrap(nodes []*Node) []driver.Element {
	out := make([]driver.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{node: n})
	}
	return out
}

type element struct{ node *Node }

func (e *element) FindElements(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	e.node.mu.Lock()
	if err := e.node.checkLocked(); err != nil {
		e.node.mu.Unlock()
		return nil, err
	}
	children := append([]*Node(nil), e.node.children[loc]...)
	e.node.mu.Unlock()
	return wrap(children), ctx.Err()
}

func (e *element) Click(ctx context.Context) error {
	e.node.mu.Lock()
	if err := e.node.checkLocked(); err != nil {
		e.node.mu.Unlock()
		return err
	}
	e.node.clicks++
	hook := e.node.onClick
	e.node.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	e.node.mu.Lock()
	defer e.node.mu.Unlock()
	if err := e.node.checkLocked(); err != nil {
		return err
	}
	e.node.typed += text
	return ctx.Err()
}

func (e *element) Clear(ctx context.Context) error {
	e.node.mu.Lock()
	defer e.node.mu.Unlock()
	if err := e.node.checkLocked(); err != nil {
		return err
	}
	e.node.typed = ""
	return ctx.Err()
}

func (e *element) Text(ctx context.Context) (string, error) {
	e.node.mu.Lock()
	defer e.node.mu.Unlock()
	if err := e.node.checkLocked(); err != nil {
		return "", err
	}
	return e.node.text, ctx.Err()
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	e.node.mu.Lock()
	defer e.node.mu.Unlock()
	if err := e.node.checkLocked(); err != nil {
		return "", err
	}
	return e.node.attrs[name], ctx.Err()
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	e.node.mu.Lock()
	defer e.node.mu.Unlock()
	if err := e.node.checkLocked(); err != nil {
		return false, err
	}
	return e.node.displayed, ctx.Err()
}

// -- Rules --

// Always returns nodes on every lookup.
func Always(nodes ...*Node) Rule {
	return func(time.Duration, int) ([]*Node, error) { return nodes, nil }
}

// Never matches nothing.
func Never() Rule {
	return func(time.Duration, int) ([]*Node, error) { return nil, nil }
}

// AppearsAt matches nothing until at has elapsed, then returns nodes.
func AppearsAt(at time.Duration, nodes ...*Node) Rule {
	return func(elapsed time.Duration, _ int) ([]*Node, error) {
		if elapsed < at {
			return nil, nil
		}
		return nodes, nil
	}
}

// DisappearsAt returns nodes until at has elapsed, then nothing.
func DisappearsAt(at time.Duration, nodes ...*Node) Rule {
	return func(elapsed time.Duration, _ int) ([]*Node, error) {
		if elapsed >= at {
			return nil, nil
		}
		return nodes, nil
	}
}

// Fails returns err on every lookup.
func Fails(err error) Rule {
	return func(time.Duration, int) ([]*Node, error) { return nil, err }
}

// Sequence answers the i-th lookup with rules[i]; the last rule repeats.
func Sequence(rules ...Rule) Rule {
	return func(elapsed time.Duration, call int) ([]*Node, error) {
		if call >= len(rules) {
			call = len(rules) - 1
		}
		return rules[call](elapsed, call)
	}
}

// Dynamic lets a test change the answer while a wait is in progress.
func Dynamic(fn func() []*Node) Rule {
	return func(time.Duration, int) ([]*Node, error) { return fn(), nil }
}
