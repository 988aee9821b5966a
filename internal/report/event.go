// internal/report/event.go
package report

import (
	"errors"
	"sync"
	"time"
)

// Kind classifies what produced an Event.
type Kind string

const (
	KindWait    Kind = "wait"
	KindRender  Kind = "render"
	KindAction  Kind = "action"
	KindConfirm Kind = "confirm"
	KindStale   Kind = "stale_retry"
)

// Outcome is the result recorded for an Event.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeTimeout Outcome = "timeout"
	OutcomeFault   Outcome = "fault"
	OutcomeStale   Outcome = "stale"
	OutcomeSkipped Outcome = "skipped"
	// OutcomeLenient marks a confirmation that timed out but was not
	// escalated to an error.
	OutcomeLenient Outcome = "lenient"
)

// Event is one line of a wait report.
type Event struct {
	Time      time.Time     `json:"time"`
	SessionID string        `json:"session_id,omitempty"`
	Kind      Kind          `json:"kind"`
	Page      string        `json:"page,omitempty"`
	Name      string        `json:"name"`
	Outcome   Outcome       `json:"outcome"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Budget    time.Duration `json:"budget_ns,omitempty"`
	Probes    int           `json:"probes,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Recorder receives events as they happen. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Recorder interface {
	Record(ev Event)
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(Event) {}
func (Nop) Close() error { return nil }

// Multi fans events out to several recorders.
type Multi []Recorder

func (m Multi) Record(ev Event) {
	for _, r := range m {
		r.Record(ev)
	}
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps events in memory. Tests use it to assert on what a wait
// reported.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Filter returns the recorded events of kind k.
func (m *Memory) Filter(k Kind) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}
