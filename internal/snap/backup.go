package snap

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// BackupResult describes the artifacts a backup run produced.
type BackupResult struct {
	Dir      string
	Database string
	Files    string
	Stamp    time.Time
}

// Backup takes a point-in-time snapshot of the stack into a timestamped
// subdirectory of outDir: a gzipped logical database dump, a gzipped archive
// of the file volume, and copies of the compose and environment files. Both
// artifacts share the same timestamp, so the pair restores as a consistent
// set.
func (s *Service) Backup(ctx context.Context, outDir string) (*BackupResult, error) {
	stamp := s.clock.Now().UTC().Truncate(time.Second)
	dir := filepath.Join(outDir, stamp.Format(TimestampLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	s.progress("Waiting for database...")
	if err := s.db.WaitReady(ctx); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("db-%s.sql.gz", stamp.Format(TimestampLayout)))
	s.progress("Dumping database to %s...", dbPath)
	if err := s.dumpTo(ctx, dbPath); err != nil {
		return nil, err
	}

	filesPath := filepath.Join(dir, fmt.Sprintf("wpfiles-%s.tar.gz", stamp.Format(TimestampLayout)))
	s.progress("Archiving file volume %s to %s...", s.stack.FilesVolume, filesPath)
	if err := s.volumes.Archive(ctx, s.stack.FilesVolume, filesPath); err != nil {
		return nil, fmt.Errorf("archiving file volume: %w", err)
	}

	for _, src := range []string{s.stack.ComposeFile, s.stack.EnvFile} {
		if src == "" {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			if os.IsNotExist(err) {
				s.logger.Warn("stack file missing, not copied", "path", src)
				continue
			}
			return nil, fmt.Errorf("copying %s: %w", src, err)
		}
	}

	if s.vault != nil {
		if err := s.replicate(ctx, dir, stamp); err != nil {
			return nil, err
		}
	}

	s.logger.Info("backup complete", "dir", dir)
	s.listServices(ctx)

	return &BackupResult{Dir: dir, Database: dbPath, Files: filesPath, Stamp: stamp}, nil
}

// dumpTo streams the logical dump through a gzip writer into path.
// The partial file is removed on failure.
func (s *Service) dumpTo(ctx context.Context, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dump file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	gz := gzip.NewWriter(f)
	if err = s.db.Dump(ctx, gz); err != nil {
		gz.Close()
		f.Close()
		return err
	}
	if err = gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalizing dump compression: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing dump file: %w", err)
	}
	return nil
}

// replicate uploads every file in the snapshot directory to the vault under
// <stamp>/<name>.
func (s *Service) replicate(ctx context.Context, dir string, stamp time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading snapshot directory: %w", err)
	}

	prefix := stamp.Format(TimestampLayout)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s for replication: %w", path, err)
		}

		key := prefix + "/" + e.Name()
		s.progress("Replicating %s to vault...", e.Name())
		err = s.vault.Put(ctx, key, f, info.Size())
		f.Close()
		if err != nil {
			return fmt.Errorf("replicating %s: %w", e.Name(), err)
		}
	}
	return nil
}

// copyFile copies src to dst, creating or truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
