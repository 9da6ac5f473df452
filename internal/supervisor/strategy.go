package supervisor

import (
	"context"

	"github.com/nao1215/onionrotate/internal/system"
)

// StartStrategy is one way of bringing the daemon up.
type StartStrategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Start attempts to launch the daemon. A nil error does not mean the
	// port is open; the supervisor re-probes after every strategy.
	Start(ctx context.Context) error
}

// CommandStrategy starts the daemon with a process-manager command.
type CommandStrategy struct {
	runner  system.Runner
	command system.Command
}

// NewCommandStrategy wraps a process-manager command as a StartStrategy.
func NewCommandStrategy(runner system.Runner, command system.Command) *CommandStrategy {
	return &CommandStrategy{runner: runner, command: command}
}

// Name returns the command line.
func (s *CommandStrategy) Name() string {
	return s.command.String()
}

// Start runs the command.
func (s *CommandStrategy) Start(ctx context.Context) error {
	return s.runner.Run(ctx, s.command)
}

// CommandStrategies wraps each command in order.
func CommandStrategies(runner system.Runner, commands []system.Command) []StartStrategy {
	strategies := make([]StartStrategy, 0, len(commands))
	for _, cmd := range commands {
		if cmd.IsZero() {
			continue
		}
		strategies = append(strategies, NewCommandStrategy(runner, cmd))
	}
	return strategies
}
