// internal/timing/policy.go
package timing

import (
	"time"

	"github.com/xkilldash9x/renderwait/internal/config"
)

// DefaultMaxStaleRetries is used when a policy leaves MaxStaleRetries unset.
const DefaultMaxStaleRetries = 3

// Policy holds the timeouts every wait derives from.
type Policy struct {
	DefaultWait     time.Duration
	PageLoad        time.Duration
	PollInterval    time.Duration
	MaxStaleRetries int
	SettleDelay     time.Duration
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		DefaultWait:     2000 * time.Millisecond,
		PageLoad:        30 * time.Second,
		PollInterval:    500 * time.Millisecond,
		MaxStaleRetries: DefaultMaxStaleRetries,
	}
}

// PolicyFromConfig converts the millisecond/second integers of the wait
// configuration into durations.
func PolicyFromConfig(cfg config.WaitConfig) Policy {
	p := Policy{
		DefaultWait:     time.Duration(cfg.DefaultWaitMillis) * time.Millisecond,
		PageLoad:        time.Duration(cfg.PageLoadTimeoutSeconds) * time.Second,
		PollInterval:    time.Duration(cfg.PollIntervalMillis) * time.Millisecond,
		MaxStaleRetries: cfg.MaxStaleRetries,
		SettleDelay:     time.Duration(cfg.SettleDelayMillis) * time.Millisecond,
	}
	return p.normalized()
}

// normalized fills zero fields from DefaultPolicy.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.DefaultWait <= 0 {
		p.DefaultWait = def.DefaultWait
	}
	if p.PageLoad <= 0 {
		p.PageLoad = def.PageLoad
	}
	if p.PollInterval <= 0 {
		p.PollInterval = def.PollInterval
	}
	if p.MaxStaleRetries <= 0 {
		p.MaxStaleRetries = def.MaxStaleRetries
	}
	if p.SettleDelay < 0 {
		p.SettleDelay = 0
	}
	return p
}

// Normalized is the exported form of normalized for callers that build a
// Policy by hand.
func (p Policy) Normalized() Policy { return p.normalized() }

// Interval returns d when positive, otherwise the policy poll interval.
func (p Policy) Interval(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return p.PollInterval
}
