package snap

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Glob tiers for each artifact kind, most specific first: exact name, then
// timestamped, each in both compression variants. Within a tier the
// lexicographically first match wins.
var (
	fileVolumePatterns = []string{
		"wpfiles.tar.gz",
		"wpfiles-*.tar.gz",
		"wpfiles.tar",
		"wpfiles-*.tar",
	}
	databaseDumpPatterns = []string{
		"db.sql.gz",
		"db-*.sql.gz",
		"db.sql",
		"db-*.sql",
	}
	databaseVolumePatterns = []string{
		"db_data.tar.gz",
		"db_data-*.tar.gz",
		"db_data.tar",
		"db_data-*.tar",
	}
)

// LocateSet resolves the database and file-volume artifacts in dir.
//
// The database search runs in two tiers: SQL-dump patterns first, raw
// volume-tar patterns only when no dump matches. Logical dumps are preferred
// because raw copies are only valid if taken while the database was stopped,
// which the locator cannot verify.
func LocateSet(dir string, allowMismatch bool) (*SnapshotSet, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}

	filesArt, err := locateFilesArtifact(dir)
	if err != nil {
		return nil, err
	}
	dbArt, err := locateDatabaseArtifact(dir)
	if err != nil {
		return nil, err
	}

	return NewSnapshotSet(dbArt, filesArt, allowMismatch)
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("backup directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	return nil
}

// locateFilesArtifact resolves the file-volume half in dir.
func locateFilesArtifact(dir string) (Artifact, error) {
	path, err := locateFirst(dir, fileVolumePatterns)
	if err != nil {
		return Artifact{}, err
	}
	if path == "" {
		return Artifact{}, &NotFoundError{What: "file-volume artifact", Dir: dir}
	}
	return ClassifyArtifact(path)
}

// locateDatabaseArtifact resolves the database half in dir, dump tier first.
func locateDatabaseArtifact(dir string) (Artifact, error) {
	path, err := locateFirst(dir, databaseDumpPatterns)
	if err != nil {
		return Artifact{}, err
	}
	if path == "" {
		path, err = locateFirst(dir, databaseVolumePatterns)
		if err != nil {
			return Artifact{}, err
		}
	}
	if path == "" {
		return Artifact{}, &NotFoundError{What: "database artifact", Dir: dir}
	}
	return ClassifyArtifact(path)
}

// locateFirst returns the first match of the first pattern that matches
// anything, or "" when no pattern matches.
func locateFirst(dir string, patterns []string) (string, error) {
	for _, pat := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return "", fmt.Errorf("globbing %s: %w", pat, err)
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return "", nil
}
