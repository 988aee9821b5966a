// internal/wait/errors.go
package wait

import (
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/renderwait/internal/locator"
)

// Sentinels for the four failure classes. Use errors.Is against these; the
// concrete types below carry the details.
var (
	// ErrTimedOut: a condition did not hold before its deadline.
	ErrTimedOut = errors.New("wait timed out")
	// ErrNotFound: a wait timed out and the last probe matched nothing.
	ErrNotFound = errors.New("element not found")
	// ErrStaleRetriesExhausted: an operation kept hitting stale elements.
	ErrStaleRetriesExhausted = errors.New("stale element retries exhausted")
	// ErrDriverFault: the driver failed in a way no retry can fix.
	ErrDriverFault = errors.New("driver fault")
)

// TimeoutError reports what was awaited, for how long, and what the last
// probe saw.
type TimeoutError struct {
	Condition string
	Budget    time.Duration
	Elapsed   time.Duration
	Probes    int
	Last      Outcome
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s (budget %s, %d probes, last outcome %s)",
		e.Elapsed.Round(time.Millisecond), e.Condition, e.Budget, e.Probes, e.Last)
}

// Is matches ErrTimedOut always and ErrNotFound when nothing matched on the
// final probe.
func (e *TimeoutError) Is(target error) bool {
	switch target {
	case ErrTimedOut:
		return true
	case ErrNotFound:
		return e.Last == OutcomeAbsent
	}
	return false
}

// StaleError is returned once RetryOnStale has used up its attempts.
type StaleError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("%s: element still stale after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *StaleError) Is(target error) bool { return target == ErrStaleRetriesExhausted }
func (e *StaleError) Unwrap() error        { return e.Err }

// DriverFault wraps a driver error that is neither "no such element" nor
// "stale element".
type DriverFault struct {
	Op      string
	Locator locator.Locator
	Err     error
}

func (e *DriverFault) Error() string {
	if e.Locator.IsZero() {
		return fmt.Sprintf("driver fault during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("driver fault during %s of %s: %v", e.Op, e.Locator, e.Err)
}

func (e *DriverFault) Is(target error) bool { return target == ErrDriverFault }
func (e *DriverFault) Unwrap() error        { return e.Err }
