// Package db wraps the MySQL/MariaDB dump and restore clients that ship
// inside the database service container. Everything runs through the
// container runtime; no database driver or socket is needed on the host.
package db

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"wpsnap/internal/config"
	"wpsnap/internal/snap"
)

// Client implements snap.DatabaseClient against a database service managed by
// the container runtime.
type Client struct {
	runtime snap.Runtime
	service string
	cfg     config.DatabaseConfig
	logger  snap.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewClient creates a database client for the given service.
func NewClient(runtime snap.Runtime, service string, cfg config.DatabaseConfig, logger snap.Logger) *Client {
	return &Client{
		runtime: runtime,
		service: service,
		cfg:     cfg,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Dump writes a consistent point-in-time logical dump to w.
// --single-transaction gives a non-locking consistent snapshot; routines and
// events are included so the dump is a complete restore source.
func (c *Client) Dump(ctx context.Context, w io.Writer) error {
	opts := snap.ExecOptions{
		Stdout: w,
		Env:    []string{"MYSQL_PWD=" + c.cfg.Password},
	}
	err := c.runtime.Exec(ctx, c.service, opts,
		"mysqldump",
		"--single-transaction", "--quick", "--routines", "--events",
		"-u", c.cfg.User,
		c.cfg.Name,
	)
	if err != nil {
		return &snap.DatabaseError{Op: "dump", Err: err}
	}
	return nil
}

// RestoreDump streams a logical dump artifact into the running database,
// decompressing when the artifact is gzipped. A non-zero exit from the import
// is fatal; partial imports are not rolled back.
func (c *Client) RestoreDump(ctx context.Context, artifact snap.Artifact) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return &snap.DatabaseError{Op: "restore", Err: err}
	}
	defer f.Close()

	var stdin io.Reader = f
	if artifact.Compression == snap.CompressionGzip {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return &snap.DatabaseError{Op: "restore", Err: fmt.Errorf("reading %s: %w", artifact.Path, err)}
		}
		defer gz.Close()
		stdin = gz
	}

	opts := snap.ExecOptions{
		Stdin: stdin,
		Env:   []string{"MYSQL_PWD=" + c.cfg.Password},
	}
	err = c.runtime.Exec(ctx, c.service, opts, "mysql", "-u", c.cfg.User, c.cfg.Name)
	if err != nil {
		return &snap.DatabaseError{Op: "restore", Err: err}
	}

	c.logger.Info("database dump imported", "artifact", artifact.Path)
	return nil
}

// WaitReady polls the database with mysqladmin ping until it answers, the
// configured timeout expires, or ctx is cancelled. The application user is
// tried first with the root account as a fallback, since either one
// answering proves the server is accepting connections.
func (c *Client) WaitReady(ctx context.Context) error {
	timeout := time.Duration(c.cfg.ReadyTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	interval := time.Duration(c.cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.ping(ctx, c.cfg.User, c.cfg.Password) == nil {
			return nil
		}
		if c.ping(ctx, "root", c.cfg.RootPassword) == nil {
			return nil
		}

		if time.Now().Add(interval).After(deadline) {
			return &snap.ReadyTimeoutError{Service: c.service, Timeout: timeout}
		}
		c.logger.Debug("database not ready, retrying", "attempt", attempt)
		c.sleep(interval)
	}
}

func (c *Client) ping(ctx context.Context, user, password string) error {
	opts := snap.ExecOptions{
		Stdout: io.Discard,
		Env:    []string{"MYSQL_PWD=" + password},
	}
	return c.runtime.Exec(ctx, c.service, opts, "mysqladmin", "ping", "--silent", "-u", user)
}
