package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wpsnap/internal/snap"
)

// FakeRuntime is an in-memory snap.Runtime that tracks which services are
// "running" and records every call, so workflow tests can assert ordering.
type FakeRuntime struct {
	mu      sync.Mutex
	running map[string]bool

	// Calls records each invocation as a readable string, in order.
	Calls []string

	// ExecFunc, when set, handles Exec calls. The default succeeds and
	// writes nothing.
	ExecFunc func(service string, opts snap.ExecOptions, command ...string) error
	// HelperFunc, when set, handles RunHelper calls. The default succeeds.
	HelperFunc func(job snap.HelperJob) error

	UpErr   error
	DownErr error

	// DownKeepsRunning makes Down succeed without stopping anything, to
	// simulate an engine that reports success while services survive.
	DownKeepsRunning bool
}

// NewFakeRuntime creates a FakeRuntime with no services running.
func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{running: make(map[string]bool)}
}

func (r *FakeRuntime) record(format string, args ...any) {
	r.Calls = append(r.Calls, fmt.Sprintf(format, args...))
}

func (r *FakeRuntime) Up(_ context.Context, services ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("up %v", services)
	if r.UpErr != nil {
		return r.UpErr
	}
	for _, s := range services {
		r.running[s] = true
	}
	return nil
}

func (r *FakeRuntime) Down(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("down")
	if r.DownErr != nil {
		return r.DownErr
	}
	if !r.DownKeepsRunning {
		r.running = make(map[string]bool)
	}
	return nil
}

func (r *FakeRuntime) Exec(_ context.Context, service string, opts snap.ExecOptions, command ...string) error {
	r.mu.Lock()
	r.record("exec %s %v", service, command)
	fn := r.ExecFunc
	r.mu.Unlock()

	if fn != nil {
		return fn(service, opts, command...)
	}
	return nil
}

func (r *FakeRuntime) RunHelper(_ context.Context, job snap.HelperJob) error {
	r.mu.Lock()
	r.record("helper %s %v", job.Image, job.Command)
	fn := r.HelperFunc
	r.mu.Unlock()

	if fn != nil {
		return fn(job)
	}
	return nil
}

func (r *FakeRuntime) Running(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var services []string
	for s, up := range r.running {
		if up {
			services = append(services, s)
		}
	}
	sort.Strings(services)
	return services, nil
}

// SetRunning marks a service running without going through Up.
func (r *FakeRuntime) SetRunning(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[service] = true
}

// Compile-time check that FakeRuntime implements snap.Runtime
var _ snap.Runtime = (*FakeRuntime)(nil)
