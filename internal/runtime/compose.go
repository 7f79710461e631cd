// Package runtime drives the managed stack through a compose-style CLI.
// The compose surface has no stable Go SDK, so commands are executed the way
// an operator would run them, with the binary autodetected at startup.
package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"wpsnap/internal/config"
	"wpsnap/internal/snap"
)

// candidate is one supported orchestration command.
type candidate struct {
	base   []string // the compose invocation, e.g. {"docker", "compose"}
	engine string   // the bare engine binary used for helper containers
}

var candidates = []candidate{
	{base: []string{"docker", "compose"}, engine: "docker"},
	{base: []string{"docker-compose"}, engine: "docker"},
	{base: []string{"podman-compose"}, engine: "podman"},
}

// ComposeRuntime implements snap.Runtime over a compose CLI.
type ComposeRuntime struct {
	base        []string
	engine      string
	composeFile string
	logger      snap.Logger
}

// NewFromConfig creates a ComposeRuntime based on the runtime config type:
// "auto" probes the supported commands in preference order, anything else
// selects that command explicitly.
func NewFromConfig(cfg config.RuntimeConfig, composeFile string, logger snap.Logger) (*ComposeRuntime, error) {
	if cfg.Type == "" || cfg.Type == "auto" {
		return Detect(composeFile, logger)
	}

	for _, c := range candidates {
		if strings.Join(c.base, " ") == cfg.Type {
			if _, err := exec.LookPath(c.base[0]); err != nil {
				return nil, &snap.RuntimeUnavailableError{Tried: []string{cfg.Type}}
			}
			return &ComposeRuntime{base: c.base, engine: c.engine, composeFile: composeFile, logger: logger}, nil
		}
	}
	return nil, fmt.Errorf("unknown runtime type: %s", cfg.Type)
}

// Detect probes the supported compose commands in preference order and
// returns a runtime for the first one that answers `version`.
func Detect(composeFile string, logger snap.Logger) (*ComposeRuntime, error) {
	var tried []string
	for _, c := range candidates {
		name := strings.Join(c.base, " ")
		tried = append(tried, name)

		if _, err := exec.LookPath(c.base[0]); err != nil {
			continue
		}
		probe := exec.Command(c.base[0], append(append([]string{}, c.base[1:]...), "version")...)
		if err := probe.Run(); err != nil {
			continue
		}

		logger.Debug("container runtime detected", "command", name)
		return &ComposeRuntime{base: c.base, engine: c.engine, composeFile: composeFile, logger: logger}, nil
	}
	return nil, &snap.RuntimeUnavailableError{Tried: tried}
}

// Up starts the named services (all when none given) detached.
func (r *ComposeRuntime) Up(ctx context.Context, services ...string) error {
	args := append([]string{"up", "-d"}, services...)
	return r.runCompose(ctx, nil, nil, args...)
}

// Down stops and removes all services. Volumes are left intact.
func (r *ComposeRuntime) Down(ctx context.Context) error {
	return r.runCompose(ctx, nil, nil, "down")
}

// Exec runs a command inside a running service container with the requested
// streams and environment. -T disables TTY allocation so stdin/stdout pipe
// cleanly.
func (r *ComposeRuntime) Exec(ctx context.Context, service string, opts snap.ExecOptions, command ...string) error {
	args := execArgs(service, opts, command...)
	return r.runCompose(ctx, opts.Stdin, opts.Stdout, args...)
}

// execArgs builds the compose exec argument list. Split out for tests.
func execArgs(service string, opts snap.ExecOptions, command ...string) []string {
	args := []string{"exec", "-T"}
	for _, e := range opts.Env {
		args = append(args, "-e", e)
	}
	args = append(args, service)
	return append(args, command...)
}

// RunHelper runs a one-shot helper container through the engine binary.
// Named volumes are created by the engine when first mounted.
func (r *ComposeRuntime) RunHelper(ctx context.Context, job snap.HelperJob) error {
	args := helperArgs(job)
	r.logger.Debug("running helper container", "image", job.Image)
	return r.run(ctx, r.engine, args, nil, nil)
}

// helperArgs builds the engine run argument list for a helper job.
func helperArgs(job snap.HelperJob) []string {
	args := []string{"run", "--rm"}
	for _, m := range job.Mounts {
		src := m.Volume
		if src == "" {
			src = m.HostPath
		}
		spec := src + ":" + m.Target
		if m.ReadOnly {
			spec += ":ro"
		}
		args = append(args, "-v", spec)
	}
	args = append(args, job.Image)
	return append(args, job.Command...)
}

// Running returns the services that currently have a running container.
func (r *ComposeRuntime) Running(ctx context.Context) ([]string, error) {
	var out bytes.Buffer
	err := r.runCompose(ctx, nil, &out, "ps", "--services", "--filter", "status=running")
	if err != nil {
		return nil, err
	}

	var services []string
	for _, line := range strings.Split(out.String(), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			services = append(services, s)
		}
	}
	return services, nil
}

func (r *ComposeRuntime) runCompose(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	full := append(append([]string{}, r.base[1:]...), "-f", r.composeFile)
	full = append(full, args...)
	return r.run(ctx, r.base[0], full, stdin, stdout)
}

func (r *ComposeRuntime) run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if stdout != nil {
		cmd.Stdout = stdout
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "command", name+" "+strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s %s: %w: %s", name, args[0], err, msg)
		}
		return fmt.Errorf("%s %s: %w", name, args[0], err)
	}
	return nil
}
