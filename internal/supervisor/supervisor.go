package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/onionrotate/internal/clock"
	"github.com/nao1215/onionrotate/internal/model"
	"github.com/nao1215/onionrotate/internal/system"
)

// Default delays.
const (
	// DefaultKillSettle is the wait after terminating stray daemons.
	DefaultKillSettle = 2 * time.Second

	// DefaultStartSettle is the wait after each start strategy before the
	// port is probed again.
	DefaultStartSettle = 3 * time.Second
)

// Prober reports whether the daemon's proxy port accepts connections.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Supervisor guarantees the daemon is running.
//
// It is not safe for concurrent use; a session calls it once before the
// first rotation.
type Supervisor struct {
	prober      Prober
	runner      system.Runner
	kill        system.Command
	strategies  []StartStrategy
	killSettle  time.Duration
	startSettle time.Duration
	clock       clock.Clock
	logger      *slog.Logger
	state       model.ServiceState
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithKillCommand sets the command that terminates stray daemon processes.
// The runner is the one passed to New.
func WithKillCommand(kill system.Command) Option {
	return func(s *Supervisor) {
		s.kill = kill
	}
}

// WithStrategies sets the ordered start strategies.
func WithStrategies(strategies ...StartStrategy) Option {
	return func(s *Supervisor) {
		s.strategies = append(s.strategies, strategies...)
	}
}

// WithSettle sets the waits after killing and after each start attempt.
func WithSettle(killSettle, startSettle time.Duration) Option {
	return func(s *Supervisor) {
		s.killSettle = killSettle
		s.startSettle = startSettle
	}
}

// WithClock sets the clock used for settle delays.
func WithClock(clk clock.Clock) Option {
	return func(s *Supervisor) {
		s.clock = clk
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// New creates a Supervisor that probes with prober and runs process-manager
// commands with runner.
func New(prober Prober, runner system.Runner, opts ...Option) *Supervisor {
	s := &Supervisor{
		prober:      prober,
		runner:      runner,
		killSettle:  DefaultKillSettle,
		startSettle: DefaultStartSettle,
		clock:       clock.New(),
		state:       model.ServiceStateUnknown,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// State returns the last observed service state.
func (s *Supervisor) State() model.ServiceState {
	return s.state
}

// EnsureRunning returns ServiceStateRunning once the proxy port is open.
//
// An open port is accepted immediately without running any command. A
// closed port triggers the kill command, a settle delay, and then each start
// strategy in order, each followed by a settle delay and a re-probe. When no
// strategy opens the port the state becomes ServiceStateStopped and
// ErrServiceUnavailable is returned. A cancelled ctx is returned as-is.
func (s *Supervisor) EnsureRunning(ctx context.Context) (model.ServiceState, error) {
	if s.prober.Probe(ctx) {
		s.state = model.ServiceStateRunning
		s.logger.Debug("tor service already running")
		return s.state, nil
	}
	if err := ctx.Err(); err != nil {
		return s.state, err
	}

	s.logger.Info("tor proxy port closed, starting service")

	if !s.kill.IsZero() && s.runner != nil {
		// pkill exits non-zero when nothing matched; that is the normal case.
		if err := s.runner.Run(ctx, s.kill); err != nil {
			s.logger.Debug("terminate stray daemons", "command", s.kill.String(), "error", err)
		}
	}
	if err := s.clock.Sleep(ctx, s.killSettle); err != nil {
		return s.state, err
	}

	for _, strategy := range s.strategies {
		if err := strategy.Start(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return s.state, ctxErr
			}
			s.logger.Warn("start strategy failed", "strategy", strategy.Name(), "error", err)
			continue
		}

		if err := s.clock.Sleep(ctx, s.startSettle); err != nil {
			return s.state, err
		}

		if s.prober.Probe(ctx) {
			s.state = model.ServiceStateRunning
			s.logger.Info("tor service started", "strategy", strategy.Name())
			return s.state, nil
		}
		s.logger.Warn("proxy port still closed after start", "strategy", strategy.Name())
	}

	if err := ctx.Err(); err != nil {
		return s.state, err
	}

	s.state = model.ServiceStateStopped
	return s.state, ErrServiceUnavailable
}
