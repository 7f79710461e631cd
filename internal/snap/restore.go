package snap

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"strings"
)

// RestoreRequest carries the resolved CLI inputs for a restore run.
type RestoreRequest struct {
	// Dir is the directory to auto-locate artifacts in. Ignored when both
	// explicit paths are set.
	Dir string
	// DatabasePath and FilesPath override auto-detection for their half of
	// the snapshot set.
	DatabasePath string
	FilesPath    string

	// Yes skips the interactive confirmation gate.
	Yes bool
	// AllowMismatch downgrades a timestamp mismatch between the two halves
	// from an error to a warning.
	AllowMismatch bool

	// SSLCheck evaluates (and if needed renews) certificates after restore.
	// ForceSSL forces re-issuance regardless of current validity.
	SSLCheck bool
	ForceSSL bool
}

// ErrRestoreDeclined is returned when the operator answers the confirmation
// prompt with anything but yes.
var ErrRestoreDeclined = fmt.Errorf("restore declined")

// Restore reconstructs the stack from a snapshot set: it resolves and
// verifies both artifacts, stops the stack, replaces the file volume and the
// database, and brings the services back up in dependency order. Both
// artifacts are verified readable before anything destructive happens.
func (s *Service) Restore(ctx context.Context, req RestoreRequest) error {
	set, err := s.resolveSet(req)
	if err != nil {
		return err
	}
	if set.StampMismatch {
		s.logger.Warn("artifact timestamps differ, restoring anyway",
			"database", set.Database.Path, "files", set.Files.Path)
	}

	// Fail fast: both halves must be present and readable before the stack
	// is touched.
	for _, a := range []Artifact{set.Database, set.Files} {
		if err := verifyReadable(a); err != nil {
			return err
		}
	}

	if !req.Yes {
		if !s.confirm(set) {
			return ErrRestoreDeclined
		}
	}

	if err := s.Down(ctx); err != nil {
		return err
	}
	// Destructive volume operations require an idle stack; a service still
	// running here would race the clear-then-replace below.
	running, err := s.runtime.Running(ctx)
	if err != nil {
		return fmt.Errorf("checking running services: %w", err)
	}
	if len(running) > 0 {
		return fmt.Errorf("services still running after down: %s", strings.Join(running, ", "))
	}

	s.progress("Restoring file volume %s from %s...", s.stack.FilesVolume, set.Files.Path)
	if err := s.volumes.Restore(ctx, s.stack.FilesVolume, set.Files.Path); err != nil {
		return fmt.Errorf("restoring file volume: %w", err)
	}

	if err := s.restoreDatabase(ctx, set.Database); err != nil {
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

	if req.SSLCheck || req.ForceSSL {
		if s.certs == nil {
			return &CertError{Op: "check", Err: fmt.Errorf("certificate management is not configured")}
		}
		s.progress("Checking certificates...")
		if err := s.certs.Issue(ctx, req.ForceSSL); err != nil {
			return err
		}
	}

	s.logger.Info("restore complete", "database", set.Database.Path, "files", set.Files.Path)
	s.listServices(ctx)
	return nil
}

// restoreDatabase applies the database half of the set. Logical dumps are
// imported into a running, ready instance; raw volume tars replace the
// database volume while everything is stopped, and the instance only comes up
// afterwards.
func (s *Service) restoreDatabase(ctx context.Context, art Artifact) error {
	switch art.Kind {
	case KindDatabaseVolume:
		s.progress("Restoring database volume %s from %s...", s.stack.DatabaseVolume, art.Path)
		if err := s.volumes.Restore(ctx, s.stack.DatabaseVolume, art.Path); err != nil {
			return fmt.Errorf("restoring database volume: %w", err)
		}
		s.progress("Starting database service...")
		if err := s.runtime.Up(ctx, s.stack.DBService); err != nil {
			return fmt.Errorf("starting database service: %w", err)
		}
		return s.db.WaitReady(ctx)

	case KindDatabaseDump:
		s.progress("Starting database service...")
		if err := s.runtime.Up(ctx, s.stack.DBService); err != nil {
			return fmt.Errorf("starting database service: %w", err)
		}
		if err := s.db.WaitReady(ctx); err != nil {
			return err
		}
		s.progress("Importing database dump %s...", art.Path)
		return s.db.RestoreDump(ctx, art)

	default:
		return fmt.Errorf("artifact %s is not a database artifact", art.Path)
	}
}

// resolveSet turns the request into a validated SnapshotSet. Explicit paths
// override the locator; when only one half is explicit the other is located
// in the directory.
func (s *Service) resolveSet(req RestoreRequest) (*SnapshotSet, error) {
	if req.DatabasePath != "" && req.FilesPath != "" {
		return s.explicitSet(req)
	}

	if req.Dir == "" {
		return nil, fmt.Errorf("no backup directory given and artifact paths incomplete: need --dir, or both --db and --wpfiles")
	}
	if err := checkDir(req.Dir); err != nil {
		return nil, err
	}

	// Only the non-explicit half is located, so a directory missing that
	// half's counterpart still restores.
	var db, files Artifact
	var err error
	if req.DatabasePath != "" {
		db, err = classifyDatabasePath(req.DatabasePath)
	} else {
		db, err = locateDatabaseArtifact(req.Dir)
	}
	if err != nil {
		return nil, err
	}

	if req.FilesPath != "" {
		files = classifyFilesPath(req.FilesPath)
	} else {
		files, err = locateFilesArtifact(req.Dir)
		if err != nil {
			return nil, err
		}
	}
	return NewSnapshotSet(db, files, req.AllowMismatch)
}

func (s *Service) explicitSet(req RestoreRequest) (*SnapshotSet, error) {
	db, err := classifyDatabasePath(req.DatabasePath)
	if err != nil {
		return nil, err
	}
	return NewSnapshotSet(db, classifyFilesPath(req.FilesPath), req.AllowMismatch)
}

// classifyDatabasePath classifies an explicit --db path. The suffix decides
// between the logical-dump and raw-volume restore procedures.
func classifyDatabasePath(path string) (Artifact, error) {
	art, err := ClassifyArtifact(path)
	if err != nil {
		return Artifact{}, err
	}
	// An explicit database path wins over name-based tar disambiguation:
	// any tar given via --db is a raw database volume copy.
	if art.Kind == KindFileVolume {
		art.Kind = KindDatabaseVolume
	}
	return art, nil
}

// classifyFilesPath classifies an explicit --wpfiles path. The caller's
// designation overrides name-based kind inference; only the compression
// suffix matters.
func classifyFilesPath(path string) Artifact {
	art, err := ClassifyArtifact(path)
	if err != nil {
		// Unrecognized suffix: treat as an uncompressed tar, the extraction
		// will surface a real error if it is not.
		art = Artifact{Path: path, Compression: CompressionNone}
	}
	art.Kind = KindFileVolume
	return art
}

// verifyReadable opens the artifact and, for gzipped artifacts, validates the
// gzip header. This catches missing and truncated files before the stack is
// stopped and anything is destroyed.
func verifyReadable(a Artifact) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("artifact not readable: %w", err)
	}
	defer f.Close()

	if a.Compression == CompressionGzip {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("artifact %s is not valid gzip: %w", a.Path, err)
		}
		gz.Close()
	}
	return nil
}

// confirm prints the restore plan and reads a y/N answer.
func (s *Service) confirm(set *SnapshotSet) bool {
	s.progress("Restore plan:")
	s.progress("  database:    %s (%s)", set.Database.Path, set.Database.Kind)
	s.progress("  file volume: %s", set.Files.Path)
	s.progress("The stack will be stopped and volume contents replaced.")
	fmt.Fprintf(s.out, "Proceed? [y/N]: ")

	scanner := bufio.NewScanner(s.in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
