package system

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrEmptyCommand is returned when a Command has no executable name.
var ErrEmptyCommand = errors.New("empty command")

// DefaultCommandTimeout bounds a single process-manager invocation.
const DefaultCommandTimeout = 10 * time.Second

// Command is a single external invocation: an executable and its arguments.
type Command struct {
	Name string   `yaml:"name"`
	Args []string `yaml:"args,omitempty"`
}

// NewCommand builds a Command from an executable name and arguments.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// ParseCommand splits a whitespace-separated command line into a Command.
// Quoting is not supported; process-manager commands never need it.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{Name: fields[0], Args: fields[1:]}, nil
}

// IsZero reports whether the command is unset.
func (c Command) IsZero() bool {
	return c.Name == ""
}

// String renders the command line.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes process-manager commands.
type Runner interface {
	// Run executes cmd and returns an error if it could not be started,
	// exited non-zero, or did not finish before ctx was done.
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec. Standard output and error are
// discarded.
type ExecRunner struct {
	// timeout bounds each invocation. Zero means DefaultCommandTimeout.
	timeout time.Duration
}

// ExecOption configures an ExecRunner.
type ExecOption func(*ExecRunner)

// WithTimeout sets the per-command timeout.
func WithTimeout(timeout time.Duration) ExecOption {
	return func(r *ExecRunner) {
		r.timeout = timeout
	}
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner(opts ...ExecOption) *ExecRunner {
	r := &ExecRunner{timeout: DefaultCommandTimeout}
	for _, opt := range opts {
		opt(r)
	}
	if r.timeout <= 0 {
		r.timeout = DefaultCommandTimeout
	}
	return r
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	if cmd.IsZero() {
		return ErrEmptyCommand
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // Commands come from operator configuration
	c.Stdout = nil
	c.Stderr = nil

	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}
