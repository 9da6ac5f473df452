package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/onionrotate/internal/clock"
	"github.com/nao1215/onionrotate/internal/model"
)

// Session lifecycle errors.
var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotStarted is returned when a rotation is requested before Start.
	ErrNotStarted = errors.New("session not started")
	// ErrTerminated is returned when a rotation is requested after the
	// session reached its terminal phase.
	ErrTerminated = errors.New("session terminated")
	// ErrNoBaseline is returned by Start when a baseline address is required
	// but none could be verified.
	ErrNoBaseline = errors.New("baseline address could not be verified")
)

// countdownTick is the granularity of Countdown notifications.
const countdownTick = time.Second

// Supervisor guarantees the daemon is running.
type Supervisor interface {
	EnsureRunning(ctx context.Context) (model.ServiceState, error)
}

// Rotator asks the daemon for a new identity. A non-nil error other than a
// context error means the primary path failed and a fallback was used; it
// never stops the session.
type Rotator interface {
	Rotate(ctx context.Context) error
}

// AddressSource reports the current egress address, or an error when no
// valid address could be obtained.
type AddressSource interface {
	CurrentAddress(ctx context.Context) (model.Address, error)
}

// Session is one rotation session. It is not safe for concurrent use.
type Session struct {
	supervisor Supervisor
	rotator    Rotator
	source     AddressSource
	clock      clock.Clock
	logger     *slog.Logger
	observer   Observer

	requireBaseline bool

	phase      Phase
	state      model.SessionState
	baseline   model.Address
	events     []model.RotationEvent
	startedAt  time.Time
	endedAt    time.Time
	terminated bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for the countdown.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) {
		s.clock = clk
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithObserver adds an observer. Several calls add several observers.
func WithObserver(observer Observer) Option {
	return func(s *Session) {
		if existing, ok := s.observer.(Observers); ok {
			s.observer = append(existing, observer)
			return
		}
		s.observer = Observers{observer}
	}
}

// WithRequireBaseline makes Start fail with ErrNoBaseline instead of
// continuing when the starting address is unknown.
func WithRequireBaseline(require bool) Option {
	return func(s *Session) {
		s.requireBaseline = require
	}
}

// New creates a Session for cfg. The configuration is validated here so
// that a running session never has to.
func New(cfg model.SessionConfig, supervisor Supervisor, rotator Rotator, source AddressSource, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	s := &Session{
		supervisor: supervisor,
		rotator:    rotator,
		source:     source,
		clock:      clock.New(),
		observer:   Observers{},
		phase:      PhaseIdle,
		state:      model.SessionState{Config: cfg},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Phase returns the current state-machine phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// State returns a copy of the session state.
func (s *Session) State() model.SessionState {
	return s.state
}

// Baseline returns the address observed when the session started.
func (s *Session) Baseline() model.Address {
	return s.baseline
}

// Events returns a copy of the event log.
func (s *Session) Events() []model.RotationEvent {
	return append([]model.RotationEvent(nil), s.events...)
}

// Summary aggregates the session so far.
func (s *Session) Summary() *model.SessionSummary {
	end := s.endedAt
	if !s.terminated {
		end = s.clock.Now()
	}
	return model.NewSessionSummary(s.baseline, s.state, s.events, s.startedAt, end)
}

// Start moves the session from Idle to Verifying(baseline): it makes sure
// the daemon is running and records the starting address.
//
// A daemon that cannot be started is fatal: the session terminates and the
// supervisor's error is returned. A baseline that cannot be verified is not,
// unless WithRequireBaseline was given: the session proceeds with an unknown
// address and logs a warning.
func (s *Session) Start(ctx context.Context) error {
	if s.phase != PhaseIdle {
		return ErrAlreadyStarted
	}

	s.phase = PhaseVerifying
	s.startedAt = s.clock.Now()

	if _, err := s.supervisor.EnsureRunning(ctx); err != nil {
		s.terminate(err)
		return err
	}

	addr, err := s.source.CurrentAddress(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.terminate(ctxErr)
		return ctxErr
	}
	if err != nil {
		if s.requireBaseline {
			failure := fmt.Errorf("%w: %w", ErrNoBaseline, err)
			s.terminate(failure)
			return failure
		}
		s.logger.Warn("could not determine current address, continuing with unknown baseline", "error", err)
	}

	s.baseline = addr
	s.state.CurrentAddress = addr
	s.logger.Info("session started",
		"mode", s.state.Config.Mode.String(),
		"baseline", addr.String(),
	)
	s.observer.SessionStarted(s.state)

	return nil
}

// ProcessChange performs one rotation attempt numbered eventNum: rotate,
// then verify, then classify against the current address.
//
// ChangeCount is incremented exactly once per completed attempt whatever
// the outcome. CurrentAddress is only replaced when a valid address was
// obtained, so a Failed attempt keeps the last known-good address. A
// failed rotation signal is not an error here; it shows up as an
// Unchanged or Failed outcome.
//
// When ctx is cancelled mid-attempt, the attempt is discarded without
// touching the state or notifying observers, and ctx.Err() is returned.
// The other errors mean the session is not in a rotating phase.
func (s *Session) ProcessChange(ctx context.Context, eventNum int) (model.RotationEvent, error) {
	switch s.phase {
	case PhaseIdle:
		return model.RotationEvent{}, ErrNotStarted
	case PhaseTerminated:
		return model.RotationEvent{}, ErrTerminated
	}

	s.phase = PhaseVerifying

	fallback := false
	if err := s.rotator.Rotate(ctx); err != nil && ctx.Err() == nil {
		fallback = true
		s.logger.Warn("rotation signal fell back to daemon reload", "change", eventNum, "error", err)
	}

	var result model.Address
	if ctx.Err() == nil {
		addr, err := s.source.CurrentAddress(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("could not verify new address", "change", eventNum, "error", err)
		}
		result = addr
	}
	if err := ctx.Err(); err != nil {
		s.logger.Info("rotation interrupted", "change", eventNum)
		return model.RotationEvent{}, err
	}

	event := model.NewRotationEvent(eventNum, s.state.CurrentAddress, result, fallback, s.clock.Now())
	s.state.ChangeCount++
	if event.Outcome != model.OutcomeFailed {
		s.state.CurrentAddress = result
	}
	s.events = append(s.events, event)

	s.logger.Info("rotation completed",
		"change", event.Sequence,
		"outcome", event.Outcome.String(),
		"previous", event.Previous.String(),
		"result", event.Result.String(),
	)
	s.observer.RotationCompleted(event, s.state)

	return event, nil
}

// Run starts the session if needed and drives it until it terminates.
//
// In manual mode one rotation is performed per value received on triggers;
// the session never ends on its own and stops when ctx is cancelled or
// triggers is closed. In auto mode triggers is ignored: the session counts
// down the interval before every rotation and terminates, returning nil,
// once MaxChanges attempts have been made.
//
// Cancellation returns ctx.Err(). A fatal start failure returns the
// supervisor's error.
func (s *Session) Run(ctx context.Context, triggers <-chan struct{}) (err error) {
	if s.phase == PhaseIdle {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	if s.phase == PhaseTerminated {
		return ErrTerminated
	}
	defer func() { s.terminate(err) }()

	if s.state.Config.Mode == model.ModeAuto {
		return s.runAuto(ctx)
	}
	return s.runManual(ctx, triggers)
}

// runManual performs one attempt per trigger.
func (s *Session) runManual(ctx context.Context, triggers <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-triggers:
			if !ok {
				s.logger.Debug("trigger source closed")
				return nil
			}
			if _, err := s.ProcessChange(ctx, s.state.ChangeCount+1); err != nil {
				return err
			}
		}
	}
}

// runAuto alternates Waiting and Verifying until the change cap is hit.
func (s *Session) runAuto(ctx context.Context) error {
	for {
		if s.state.Exhausted() {
			s.logger.Info("change limit reached", "changes", s.state.ChangeCount)
			return nil
		}

		s.phase = PhaseWaiting
		if err := s.countdown(ctx); err != nil {
			return err
		}

		if _, err := s.ProcessChange(ctx, s.state.ChangeCount+1); err != nil {
			return err
		}
	}
}

// countdown waits for the configured interval in one-second steps,
// notifying observers before each step.
func (s *Session) countdown(ctx context.Context) error {
	remaining := s.state.Config.Interval
	for remaining > 0 {
		s.observer.Countdown(remaining, s.state)
		step := min(countdownTick, remaining)
		if err := s.clock.Sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	return nil
}

// terminate moves to the final phase and notifies observers once.
func (s *Session) terminate(err error) {
	s.phase = PhaseTerminated
	if s.terminated {
		return
	}
	s.terminated = true
	s.endedAt = s.clock.Now()
	s.observer.SessionTerminated(s.state, err)
}
