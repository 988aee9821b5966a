// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/renderwait/internal/config"
	"github.com/xkilldash9x/renderwait/internal/driver"
	"github.com/xkilldash9x/renderwait/internal/driver/devtools"
	"github.com/xkilldash9x/renderwait/internal/driver/pw"
	"github.com/xkilldash9x/renderwait/internal/driver/webdriver"
	"github.com/xkilldash9x/renderwait/internal/report"
	"github.com/xkilldash9x/renderwait/internal/timing"
)

// ErrSessionBusy is returned when a second caller tries to use a session
// that is already driving a wait or an action.
var ErrSessionBusy = errors.New("session is in use by another caller")

// Session is the context object every wait runs against: one driver, one
// clock, one timeout policy. It is passed explicitly; there is no global
// session.
type Session struct {
	id       string
	drv      driver.Driver
	clock    timing.Clock
	policy   timing.Policy
	logger   *zap.Logger
	recorder report.Recorder
	sem      *semaphore.Weighted
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock.
func WithClock(c timing.Clock) Option { return func(s *Session) { s.clock = c } }

// WithPolicy replaces the default timeout policy.
func WithPolicy(p timing.Policy) Option { return func(s *Session) { s.policy = p.Normalized() } }

// WithLogger sets the parent logger.
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.logger = l } }

// WithRecorder sets where wait events go.
func WithRecorder(r report.Recorder) Option { return func(s *Session) { s.recorder = r } }

// New wraps drv in a session.
func New(drv driver.Driver, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		drv:      drv,
		clock:    timing.RealClock{},
		policy:   timing.DefaultPolicy(),
		logger:   zap.NewNop(),
		recorder: report.Nop{},
		sem:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("session").With(zap.String("session_id", s.id))
	return s
}

// Open dials the driver selected by cfg and wires config-driven policy and
// reporting into a new session.
func Open(ctx context.Context, cfg config.Interface, logger *zap.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	drv, err := dial(ctx, cfg.Driver(), logger)
	if err != nil {
		return nil, err
	}
	recorder, err := openRecorder(cfg.Report(), logger)
	if err != nil {
		_ = drv.Close(ctx)
		return nil, err
	}

	base := []Option{
		WithPolicy(timing.PolicyFromConfig(cfg.Wait())),
		WithLogger(logger),
		WithRecorder(recorder),
	}
	s := New(drv, append(base, opts...)...)
	s.logger.Info("Session opened.",
		zap.String("driver", cfg.Driver().Kind),
		zap.Duration("default_wait", s.policy.DefaultWait),
		zap.Duration("page_load", s.policy.PageLoad),
		zap.Duration("poll_interval", s.policy.PollInterval),
	)
	return s, nil
}

func dial(ctx context.Context, cfg config.DriverConfig, logger *zap.Logger) (driver.Driver, error) {
	switch cfg.Kind {
	case config.DriverWebDriver:
		return webdriver.Dial(ctx, cfg, logger)
	case config.DriverCDP:
		return devtools.Launch(ctx, cfg, logger)
	case config.DriverPlaywright:
		return pw.Launch(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown driver kind %q", cfg.Kind)
}

func openRecorder(cfg config.ReportConfig, logger *zap.Logger) (report.Recorder, error) {
	var recs report.Multi
	if cfg.JSONLPath != "" {
		j, err := report.NewJSONL(cfg.JSONLPath, logger)
		if err != nil {
			return nil, err
		}
		recs = append(recs, j)
	}
	if cfg.JUnitPath != "" {
		recs = append(recs, report.NewJUnit(cfg.JUnitPath, cfg.SuiteName))
	}
	if len(recs) == 0 {
		return report.Nop{}, nil
	}
	return recs, nil
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Driver() driver.Driver     { return s.drv }
func (s *Session) Clock() timing.Clock       { return s.clock }
func (s *Session) Policy() timing.Policy     { return s.policy }
func (s *Session) Logger() *zap.Logger       { return s.logger }
func (s *Session) Recorder() report.Recorder { return s.recorder }

// Record stamps ev with the session id and current time before handing it
// to the recorder.
func (s *Session) Record(ev report.Event) {
	ev.SessionID = s.id
	if ev.Time.IsZero() {
		ev.Time = s.clock.Now()
	}
	s.recorder.Record(ev)
}

// Deadline starts a budget on the session clock.
func (s *Session) Deadline(budget time.Duration) timing.Deadline {
	return timing.NewDeadline(s.clock.Now(), budget)
}

type holdKey struct{}

// Hold claims exclusive use of the session for the returned context. Calls
// made with a context that already holds this session do not claim it
// again, so nested operations compose. A concurrent caller gets
// ErrSessionBusy instead of interleaving commands.
func (s *Session) Hold(ctx context.Context) (context.Context, func(), error) {
	if held, _ := ctx.Value(holdKey{}).(*Session); held == s {
		return ctx, func() {}, nil
	}
	if !s.sem.TryAcquire(1) {
		return ctx, func() {}, ErrSessionBusy
	}
	return context.WithValue(ctx, holdKey{}, s), func() { s.sem.Release(1) }, nil
}

// Navigate loads url.
func (s *Session) Navigate(ctx context.Context, url string) error {
	ctx, release, err := s.Hold(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.drv.Navigate(ctx, url)
}

// Close shuts the driver down and flushes reports. It returns
// ErrSessionBusy, leaving the session open, while another operation holds
// it.
func (s *Session) Close(ctx context.Context) error {
	ctx, release, err := s.Hold(ctx)
	if err != nil {
		return err
	}
	defer release()

	driverErr := s.drv.Close(ctx)
	recErr := s.recorder.Close()
	if driverErr != nil || recErr != nil {
		s.logger.Warn("Session closed with errors.", zap.NamedError("driver", driverErr), zap.NamedError("report", recErr))
	} else {
		s.logger.Debug("Session closed.")
	}
	return errors.Join(driverErr, recErr)
}
