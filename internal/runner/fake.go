package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call records one invocation seen by a Fake.
type Call struct {
	Dir  string
	Name string
	Args []string
	Echo bool
}

// String renders the call as a command line.
func (c Call) String() string {
	return commandLine(c.Name, c.Args)
}

// Fake is a Runner for tests. Handlers are looked up by command name; a
// command without a handler succeeds with empty output.
type Fake struct {
	mu       sync.Mutex
	Calls    []Call
	Handlers map[string]func(call Call) (string, error)
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{Handlers: make(map[string]func(call Call) (string, error))}
}

// Handle registers fn for the command name.
func (f *Fake) Handle(name string, fn func(call Call) (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Handlers[name] = fn
}

func (f *Fake) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	return f.dispatch(Call{Dir: dir, Name: name, Args: args})
}

func (f *Fake) RunEcho(ctx context.Context, dir, name string, args ...string) error {
	_, err := f.dispatch(Call{Dir: dir, Name: name, Args: args, Echo: true})
	return err
}

func (f *Fake) dispatch(call Call) (string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	handler := f.Handlers[call.Name]
	f.mu.Unlock()
	if handler == nil {
		return "", nil
	}
	return handler(call)
}

// CommandLines returns every recorded call rendered as a command line.
func (f *Fake) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, call := range f.Calls {
		out = append(out, call.String())
	}
	return out
}

// Ran reports whether a call whose command line starts with prefix was made.
func (f *Fake) Ran(prefix string) bool {
	for _, line := range f.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Fail returns a handler that always fails with output.
func Fail(output string) func(call Call) (string, error) {
	return func(call Call) (string, error) {
		return output, NewCommandError(call.String(), 1, output, fmt.Errorf("exit status 1"))
	}
}
