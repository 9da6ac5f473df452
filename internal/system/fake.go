package system

import (
	"context"
	"sync"
)

// FakeRunner is a Runner that records commands instead of executing them.
type FakeRunner struct {
	mu    sync.Mutex
	calls []Command

	// Errors maps a command line (Command.String) to the error Run returns
	// for it. Commands not present succeed.
	Errors map[string]error

	// OnRun, if set, is called for each command before it is recorded.
	OnRun func(cmd Command)
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Errors: make(map[string]error)}
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.OnRun != nil {
		f.OnRun(cmd)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	return f.Errors[cmd.String()]
}

// Calls returns the command lines run so far, in order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.calls))
	for i, c := range f.calls {
		lines[i] = c.String()
	}
	return lines
}
