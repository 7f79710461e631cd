package snap_test

import (
	"testing"
	"time"

	"wpsnap/internal/snap"
)

func TestClassifyArtifact(t *testing.T) {
	tests := []struct {
		name            string
		path            string
		wantKind        snap.ArtifactKind
		wantCompression snap.Compression
		wantErr         bool
	}{
		{"plain sql dump", "backup/db.sql", snap.KindDatabaseDump, snap.CompressionNone, false},
		{"gzipped sql dump", "backup/db-20240115T103000Z.sql.gz", snap.KindDatabaseDump, snap.CompressionGzip, false},
		{"database volume tar", "db_data.tar", snap.KindDatabaseVolume, snap.CompressionNone, false},
		{"database volume tar.gz", "db_data-20240115T103000Z.tar.gz", snap.KindDatabaseVolume, snap.CompressionGzip, false},
		{"file volume tar.gz", "wpfiles-20240115T103000Z.tar.gz", snap.KindFileVolume, snap.CompressionGzip, false},
		{"file volume tgz", "wpfiles.tgz", snap.KindFileVolume, snap.CompressionGzip, false},
		{"unknown suffix", "backup/db.zip", snap.KindUnknown, snap.CompressionNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := snap.ClassifyArtifact(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ClassifyArtifact() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ClassifyArtifact() error = %v", err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Compression != tt.wantCompression {
				t.Errorf("Compression = %v, want %v", got.Compression, tt.wantCompression)
			}
		})
	}
}

func TestClassifyArtifact_Timestamp(t *testing.T) {
	t.Run("parses embedded stamp", func(t *testing.T) {
		art, err := snap.ClassifyArtifact("db-20240115T103000Z.sql.gz")
		if err != nil {
			t.Fatalf("ClassifyArtifact() error = %v", err)
		}
		want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		if !art.Stamp.Equal(want) {
			t.Errorf("Stamp = %v, want %v", art.Stamp, want)
		}
	})

	t.Run("no stamp leaves zero time", func(t *testing.T) {
		art, err := snap.ClassifyArtifact("db.sql")
		if err != nil {
			t.Fatalf("ClassifyArtifact() error = %v", err)
		}
		if !art.Stamp.IsZero() {
			t.Errorf("Stamp = %v, want zero", art.Stamp)
		}
	})
}

func TestNewSnapshotSet(t *testing.T) {
	mustClassify := func(t *testing.T, path string) snap.Artifact {
		t.Helper()
		a, err := snap.ClassifyArtifact(path)
		if err != nil {
			t.Fatalf("ClassifyArtifact(%s) error = %v", path, err)
		}
		return a
	}

	t.Run("matching stamps", func(t *testing.T) {
		db := mustClassify(t, "db-20240115T103000Z.sql.gz")
		files := mustClassify(t, "wpfiles-20240115T103000Z.tar.gz")

		set, err := snap.NewSnapshotSet(db, files, false)
		if err != nil {
			t.Fatalf("NewSnapshotSet() error = %v", err)
		}
		if set.StampMismatch {
			t.Error("StampMismatch = true, want false")
		}
	})

	t.Run("mismatched stamps rejected", func(t *testing.T) {
		db := mustClassify(t, "db-20240115T103000Z.sql.gz")
		files := mustClassify(t, "wpfiles-20240116T103000Z.tar.gz")

		if _, err := snap.NewSnapshotSet(db, files, false); err == nil {
			t.Fatal("NewSnapshotSet() expected error for mismatched stamps")
		}
	})

	t.Run("mismatched stamps allowed with override", func(t *testing.T) {
		db := mustClassify(t, "db-20240115T103000Z.sql.gz")
		files := mustClassify(t, "wpfiles-20240116T103000Z.tar.gz")

		set, err := snap.NewSnapshotSet(db, files, true)
		if err != nil {
			t.Fatalf("NewSnapshotSet() error = %v", err)
		}
		if !set.StampMismatch {
			t.Error("StampMismatch = false, want true")
		}
	})

	t.Run("stampless artifacts never mismatch", func(t *testing.T) {
		db := mustClassify(t, "db.sql")
		files := mustClassify(t, "wpfiles-20240116T103000Z.tar.gz")

		set, err := snap.NewSnapshotSet(db, files, false)
		if err != nil {
			t.Fatalf("NewSnapshotSet() error = %v", err)
		}
		if set.StampMismatch {
			t.Error("StampMismatch = true, want false")
		}
	})

	t.Run("file-volume artifact rejected as database half", func(t *testing.T) {
		files := mustClassify(t, "wpfiles.tar.gz")
		if _, err := snap.NewSnapshotSet(files, files, false); err == nil {
			t.Fatal("NewSnapshotSet() expected error")
		}
	})

	t.Run("database artifact rejected as files half", func(t *testing.T) {
		db := mustClassify(t, "db.sql")
		if _, err := snap.NewSnapshotSet(db, db, false); err == nil {
			t.Fatal("NewSnapshotSet() expected error")
		}
	})
}
