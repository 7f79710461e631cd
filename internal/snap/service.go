package snap

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// StackConfig describes the managed compose stack: service names, the two
// persistent volumes, and the files copied into every backup.
type StackConfig struct {
	DBService    string
	AppService   string
	ProxyService string // empty when the stack has no TLS proxy

	DatabaseVolume string
	FilesVolume    string

	// ComposeFile and EnvFile are copied into each snapshot directory so a
	// backup carries the stack definition it was taken from. EnvFile may be
	// empty or missing.
	ComposeFile string
	EnvFile     string
}

// Service is the orchestration layer that composes the runtime, database,
// volume, certificate and vault clients into the backup and restore
// workflows.
type Service struct {
	runtime Runtime
	db      DatabaseClient
	volumes VolumeClient
	certs   CertProvider // nil when certificate management is disabled
	vault   Vault        // nil when offsite replication is disabled
	stack   StackConfig
	logger  Logger
	clock   Clock

	// in and out carry the confirmation prompt and progress lines.
	in  io.Reader
	out io.Writer
}

// NewService creates a Service with the provided dependencies. certs and
// vault may be nil to disable the corresponding optional steps.
func NewService(stack StackConfig, runtime Runtime, db DatabaseClient, volumes VolumeClient, certs CertProvider, vault Vault, logger Logger, clock Clock, in io.Reader, out io.Writer) *Service {
	return &Service{
		runtime: runtime,
		db:      db,
		volumes: volumes,
		certs:   certs,
		vault:   vault,
		stack:   stack,
		logger:  logger,
		clock:   clock,
		in:      in,
		out:     out,
	}
}

// Up starts the stack in dependency order: database first, waiting until it
// is ready before the application (and proxy) come up. Starting out of order
// risks the app writing bootstrap data over a not-yet-restored database.
func (s *Service) Up(ctx context.Context) error {
	s.progress("Starting database service...")
	if err := s.runtime.Up(ctx, s.stack.DBService); err != nil {
		return fmt.Errorf("starting database service: %w", err)
	}
	if err := s.db.WaitReady(ctx); err != nil {
		return err
	}

	services := []string{s.stack.AppService}
	if s.stack.ProxyService != "" {
		services = append(services, s.stack.ProxyService)
	}
	s.progress("Starting %s...", strings.Join(services, ", "))
	if err := s.runtime.Up(ctx, services...); err != nil {
		return fmt.Errorf("starting services: %w", err)
	}
	return nil
}

// Down stops all services. Volumes are left intact.
func (s *Service) Down(ctx context.Context) error {
	s.progress("Stopping stack...")
	if err := s.runtime.Down(ctx); err != nil {
		return fmt.Errorf("stopping stack: %w", err)
	}
	return nil
}

// Running returns the names of currently running services.
func (s *Service) Running(ctx context.Context) ([]string, error) {
	return s.runtime.Running(ctx)
}

// progress prints a human-readable progress line before each major step.
func (s *Service) progress(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

// listServices prints the running services as the final action of a workflow.
func (s *Service) listServices(ctx context.Context) {
	running, err := s.runtime.Running(ctx)
	if err != nil {
		s.logger.Warn("listing services failed", "error", err)
		return
	}
	if len(running) == 0 {
		s.progress("No services running.")
		return
	}
	s.progress("Running services: %s", strings.Join(running, ", "))
}
