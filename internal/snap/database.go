package snap

import (
	"context"
	"io"
)

// DatabaseClient wraps the database engine's native dump/restore capability.
type DatabaseClient interface {
	// Dump writes a consistent point-in-time logical dump (SQL text) to w.
	// The database service must be running and ready.
	Dump(ctx context.Context, w io.Writer) error

	// RestoreDump streams a logical dump artifact into the running database,
	// decompressing it when the artifact is gzipped. Callers must have passed
	// WaitReady first. A failed import is not rolled back.
	RestoreDump(ctx context.Context, artifact Artifact) error

	// WaitReady polls the database until it answers a health check or the
	// configured timeout expires, in which case a ReadyTimeoutError is
	// returned.
	WaitReady(ctx context.Context) error
}

// VolumeClient archives and restores named volumes as single tar streams.
type VolumeClient interface {
	// Archive writes the volume's contents to destPath as a tar archive,
	// gzipped when destPath ends in .tar.gz or .tgz. The archive is rooted at
	// the volume contents, so restoring extracts directly at the top level.
	Archive(ctx context.Context, volume, destPath string) error

	// Restore clears all existing contents of the volume and then extracts
	// the archive into it. Restore is a full replacement, never a merge.
	Restore(ctx context.Context, volume, archivePath string) error
}
