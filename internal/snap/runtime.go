package snap

import (
	"context"
	"io"
)

// Runtime abstracts the container orchestration layer: starting and stopping
// the managed service set, executing commands inside running services, and
// running disposable helper containers for volume jobs.
type Runtime interface {
	// Up starts the named services (all services when none are given) and
	// their dependencies, in order.
	Up(ctx context.Context, services ...string) error

	// Down stops and removes all services. Volumes are left intact.
	Down(ctx context.Context) error

	// Exec runs a command inside a running service container.
	Exec(ctx context.Context, service string, opts ExecOptions, command ...string) error

	// RunHelper runs a one-shot helper container that is removed on exit.
	// Named volumes referenced by the job's mounts are created by the engine
	// if they do not exist yet.
	RunHelper(ctx context.Context, job HelperJob) error

	// Running returns the names of services that currently have a running
	// container.
	Running(ctx context.Context) ([]string, error)
}

// ExecOptions carries the streams and environment for an Exec call.
type ExecOptions struct {
	Stdin  io.Reader
	Stdout io.Writer
	// Env entries are KEY=VALUE pairs injected into the exec'd process.
	Env []string
}

// Mount attaches either a named volume or a host path to a helper container.
// Exactly one of Volume and HostPath is set.
type Mount struct {
	Volume   string
	HostPath string
	Target   string
	ReadOnly bool
}

// HelperJob describes a disposable helper container run.
type HelperJob struct {
	Image   string
	Mounts  []Mount
	Command []string
}
