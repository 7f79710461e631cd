package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wpsnap/internal/catalog"
	"wpsnap/internal/cert"
	"wpsnap/internal/config"
	"wpsnap/internal/db"
	"wpsnap/internal/runtime"
	"wpsnap/internal/snap"
	"wpsnap/internal/vault"
	"wpsnap/internal/volume"
)

// App is the application layer between the CLI and the workflow Service.
// It constructs all dependencies from config, exposes the high-level
// operations, and manages the catalog lifecycle on Close.
type App struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	certs   snap.CertProvider
	service *snap.Service
	op      *Operation
	logFile *os.File
}

// New creates a fully wired App from the given config. operation identifies
// the CLI command being run (e.g. "Backup", "Restore"). ids generates the
// run's correlation ID; nil selects random UUIDs. The caller must call Close
// when done.
func New(cfg *config.Config, operation string, ids snap.IDGenerator) (*App, error) {
	opID := newOpID(ids)
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	rt, err := runtime.NewFromConfig(cfg.Runtime, cfg.ComposeFile, log)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	dbClient := db.NewClient(rt, cfg.Stack.DBService, cfg.Database, log)
	volClient := volume.NewClient(rt, cfg.Runtime.HelperImage, log)

	var certs snap.CertProvider
	if cfg.Cert.Enabled {
		certs = cert.NewManager(cfg.Cert, cfg.Stack.AppService, rt, snap.RealClock{}, log)
	}

	v, err := vault.NewFromConfig(cfg.Vault)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	cat, err := catalog.NewFromConfig(cfg.Catalog)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	stack := snap.StackConfig{
		DBService:      cfg.Stack.DBService,
		AppService:     cfg.Stack.AppService,
		ProxyService:   cfg.Stack.ProxyService,
		DatabaseVolume: cfg.Volumes.Database,
		FilesVolume:    cfg.Volumes.Files,
		ComposeFile:    cfg.ComposeFile,
		EnvFile:        cfg.EnvFile,
	}
	svc := snap.NewService(stack, rt, dbClient, volClient, certs, v, log, snap.RealClock{}, os.Stdin, os.Stdout)

	return &App{
		cfg:     cfg,
		catalog: cat,
		certs:   certs,
		service: svc,
		op:      NewOperation(operation, ""),
		logFile: logFile,
	}, nil
}

// newOpID produces the correlation ID stamped on every log line of a run.
func newOpID(ids snap.IDGenerator) string {
	if ids == nil {
		ids = snap.UUIDGenerator{}
	}
	return ids.New()
}

// persistOperation saves the operation to the catalog, giving it an
// auto-increment ID. Only called for commands that change state.
func (a *App) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	a.op.Parameters = parameters
	rec, err := a.catalog.CreateOperation(a.op.Operation, parameters)
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	a.op.ID = rec.ID
	return nil
}

// fail records the operation's final status and passes the error through.
// A declined confirmation is an operator choice, not a failure, so it gets
// its own status.
func (a *App) fail(err error) error {
	switch {
	case err == nil:
	case errors.Is(err, snap.ErrRestoreDeclined):
		a.op.Status = "aborted"
	default:
		a.op.Status = "error"
	}
	return err
}

// Backup snapshots the stack into outDir.
func (a *App) Backup(ctx context.Context, outDir string) (*snap.BackupResult, error) {
	if err := a.persistOperation(outDir); err != nil {
		return nil, err
	}
	res, err := a.service.Backup(ctx, outDir)
	return res, a.fail(err)
}

// Restore reconstructs the stack from a snapshot set.
func (a *App) Restore(ctx context.Context, req snap.RestoreRequest) error {
	params := req.Dir
	if req.DatabasePath != "" || req.FilesPath != "" {
		params = fmt.Sprintf("db=%s files=%s", req.DatabasePath, req.FilesPath)
	}
	if err := a.persistOperation(params); err != nil {
		return err
	}
	return a.fail(a.service.Restore(ctx, req))
}

// Up starts the stack in dependency order.
func (a *App) Up(ctx context.Context) error {
	if err := a.persistOperation(""); err != nil {
		return err
	}
	return a.fail(a.service.Up(ctx))
}

// Down stops the stack.
func (a *App) Down(ctx context.Context) error {
	if err := a.persistOperation(""); err != nil {
		return err
	}
	return a.fail(a.service.Down(ctx))
}

// Running returns the names of currently running services.
func (a *App) Running(ctx context.Context) ([]string, error) {
	return a.service.Running(ctx)
}

// History returns the most recent recorded operations.
func (a *App) History(limit int) ([]*catalog.Operation, error) {
	return a.catalog.ListOperations(limit)
}

// CertCheck returns the state of the primary domain's certificate.
func (a *App) CertCheck() (snap.CertState, error) {
	if a.certs == nil {
		return snap.CertAbsent, fmt.Errorf("certificate management is not enabled in config")
	}
	return a.certs.Check()
}

// CertIssue obtains or renews the certificate.
func (a *App) CertIssue(ctx context.Context, force bool) error {
	if a.certs == nil {
		return fmt.Errorf("certificate management is not enabled in config")
	}
	if err := a.persistOperation(fmt.Sprintf("force=%t", force)); err != nil {
		return err
	}
	return a.fail(a.certs.Issue(ctx, force))
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.catalog.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.catalog.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
