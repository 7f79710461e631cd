// Package volume snapshots named container volumes as tar archives by running
// disposable helper containers: the volume is mounted on one side, the host
// archive directory on the other, and tar does the rest.
package volume

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wpsnap/internal/snap"
)

const (
	srcMount = "/from"
	dstMount = "/to"
)

// Client implements snap.VolumeClient with helper containers.
type Client struct {
	runtime snap.Runtime
	image   string
	logger  snap.Logger
}

// NewClient creates a volume client using the given helper image.
func NewClient(runtime snap.Runtime, image string, logger snap.Logger) *Client {
	return &Client{runtime: runtime, image: image, logger: logger}
}

// Archive writes the volume's contents to destPath. The archive is rooted at
// the volume contents, not a wrapping directory, so restore extracts at the
// top level. Gzip is selected by the destination suffix.
func (c *Client) Archive(ctx context.Context, volume, destPath string) error {
	absDest, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absDest), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	job := snap.HelperJob{
		Image: c.image,
		Mounts: []snap.Mount{
			{Volume: volume, Target: srcMount, ReadOnly: true},
			{HostPath: filepath.Dir(absDest), Target: dstMount},
		},
		Command: []string{"sh", "-c", archiveCommand(filepath.Base(absDest))},
	}

	if err := c.runtime.RunHelper(ctx, job); err != nil {
		return fmt.Errorf("archiving volume %s: %w", volume, err)
	}
	c.logger.Info("volume archived", "volume", volume, "dest", absDest)
	return nil
}

// Restore clears all existing contents of the volume and then extracts the
// archive into it. The clear step guarantees no files survive from a
// previous, possibly incompatible, state.
func (c *Client) Restore(ctx context.Context, volume, archivePath string) error {
	absArchive, err := filepath.Abs(archivePath)
	if err != nil {
		return fmt.Errorf("resolving archive path: %w", err)
	}
	if _, err := os.Stat(absArchive); err != nil {
		return fmt.Errorf("archive not readable: %w", err)
	}

	job := snap.HelperJob{
		Image: c.image,
		Mounts: []snap.Mount{
			{HostPath: filepath.Dir(absArchive), Target: srcMount, ReadOnly: true},
			{Volume: volume, Target: dstMount},
		},
		Command: []string{"sh", "-c", restoreCommand(filepath.Base(absArchive))},
	}

	if err := c.runtime.RunHelper(ctx, job); err != nil {
		return fmt.Errorf("restoring volume %s: %w", volume, err)
	}
	c.logger.Info("volume restored", "volume", volume, "archive", absArchive)
	return nil
}

// archiveCommand builds the in-container tar create command.
func archiveCommand(archiveName string) string {
	flags := "cf"
	if gzipped(archiveName) {
		flags = "czf"
	}
	return fmt.Sprintf("tar %s %s/%s -C %s .", flags, dstMount, archiveName, srcMount)
}

// restoreCommand builds the in-container clear-then-extract command.
// find -mindepth 1 -delete removes every existing entry including dotfiles.
func restoreCommand(archiveName string) string {
	flags := "xf"
	if gzipped(archiveName) {
		flags = "xzf"
	}
	return fmt.Sprintf("find %s -mindepth 1 -delete && tar %s %s/%s -C %s",
		dstMount, flags, srcMount, archiveName, dstMount)
}

// gzipped detects compression from the filename suffix only; callers must
// preserve suffixes when moving artifacts.
func gzipped(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")
}
