package snap

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ArtifactKind identifies what a backup file contains and therefore how it
// must be restored.
type ArtifactKind int

const (
	KindUnknown ArtifactKind = iota
	// KindDatabaseDump is a logical SQL dump, restored by streaming it into a
	// running database instance.
	KindDatabaseDump
	// KindDatabaseVolume is a raw tar of the database storage volume, restored
	// by replacing the volume contents while the database is stopped.
	KindDatabaseVolume
	// KindFileVolume is a tar of the uploaded-files volume.
	KindFileVolume
)

func (k ArtifactKind) String() string {
	switch k {
	case KindDatabaseDump:
		return "database dump"
	case KindDatabaseVolume:
		return "database volume"
	case KindFileVolume:
		return "file volume"
	default:
		return "unknown"
	}
}

// Compression is how an artifact is compressed on disk. It is derived from
// the filename suffix only, never from content sniffing, so callers must
// preserve suffixes when moving artifacts around.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
)

// TimestampLayout is the UTC stamp embedded in artifact filenames and used
// for snapshot directory names.
const TimestampLayout = "20060102T150405Z"

var stampRe = regexp.MustCompile(`-(\d{8}T\d{6}Z)`)

// Artifact describes a single backup file.
type Artifact struct {
	Kind        ArtifactKind
	Path        string
	Compression Compression
	// Stamp is the timestamp embedded in the filename. Zero when the filename
	// carries no stamp.
	Stamp time.Time
}

// ClassifyArtifact infers an artifact's kind and compression from its
// filename. This is the single place filename suffixes are interpreted.
func ClassifyArtifact(path string) (Artifact, error) {
	base := filepath.Base(path)

	a := Artifact{Path: path, Stamp: parseStamp(base)}

	switch {
	case strings.HasSuffix(base, ".sql.gz"):
		a.Kind, a.Compression = KindDatabaseDump, CompressionGzip
	case strings.HasSuffix(base, ".sql"):
		a.Kind, a.Compression = KindDatabaseDump, CompressionNone
	case strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".tgz"):
		a.Kind, a.Compression = tarKind(base), CompressionGzip
	case strings.HasSuffix(base, ".tar"):
		a.Kind, a.Compression = tarKind(base), CompressionNone
	default:
		return Artifact{}, fmt.Errorf("unrecognized artifact name: %s", base)
	}

	return a, nil
}

// tarKind resolves the ambiguity between the two tar-shaped artifact kinds.
// Database volume tars are named db_data*; everything else is treated as a
// file-volume archive. Callers with better knowledge (explicit CLI paths)
// may override the kind after classification.
func tarKind(base string) ArtifactKind {
	if strings.HasPrefix(base, "db_data") {
		return KindDatabaseVolume
	}
	return KindFileVolume
}

func parseStamp(base string) time.Time {
	m := stampRe.FindStringSubmatch(base)
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse(TimestampLayout, m[1])
	if err != nil {
		return time.Time{}
	}
	return t
}

// SnapshotSet pairs the database artifact with the file-volume artifact of
// one point-in-time backup.
type SnapshotSet struct {
	Database Artifact
	Files    Artifact
	// StampMismatch is set when the two halves carry different timestamps and
	// the caller chose to proceed anyway.
	StampMismatch bool
}

// NewSnapshotSet validates the two halves of a snapshot. The database half
// must be a dump or a database-volume tar, the files half a file-volume tar.
// When both artifacts embed a timestamp the stamps must match; allowMismatch
// downgrades that failure to a flag the workflow warns about.
func NewSnapshotSet(db, files Artifact, allowMismatch bool) (*SnapshotSet, error) {
	if db.Kind != KindDatabaseDump && db.Kind != KindDatabaseVolume {
		return nil, fmt.Errorf("%s is not a database artifact (classified as %s)", db.Path, db.Kind)
	}
	if files.Kind != KindFileVolume {
		return nil, fmt.Errorf("%s is not a file-volume artifact (classified as %s)", files.Path, files.Kind)
	}

	set := &SnapshotSet{Database: db, Files: files}

	if !db.Stamp.IsZero() && !files.Stamp.IsZero() && !db.Stamp.Equal(files.Stamp) {
		if !allowMismatch {
			return nil, fmt.Errorf("artifact timestamps differ: %s is %s but %s is %s (pass --allow-mismatch to restore anyway)",
				filepath.Base(db.Path), db.Stamp.Format(TimestampLayout),
				filepath.Base(files.Path), files.Stamp.Format(TimestampLayout))
		}
		set.StampMismatch = true
	}

	return set, nil
}
