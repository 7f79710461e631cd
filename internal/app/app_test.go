package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"wpsnap/internal/snap"
	"wpsnap/internal/testutil"
)

func TestGetDefaults(t *testing.T) {
	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("WPSNAP_CONFIG_PATH", "/stacks/blog/wpsnap.toml")
		t.Setenv("WPSNAP_HOME", "/var/lib/wpsnap")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if defaults["config_path"] != "/stacks/blog/wpsnap.toml" {
			t.Errorf("config_path = %q", defaults["config_path"])
		}
		if defaults["base_dir"] != "/var/lib/wpsnap" {
			t.Errorf("base_dir = %q", defaults["base_dir"])
		}
		if defaults["log_dir"] != filepath.Join("/var/lib/wpsnap", "log") {
			t.Errorf("log_dir = %q", defaults["log_dir"])
		}
	})

	t.Run("config defaults to the working directory", func(t *testing.T) {
		t.Setenv("WPSNAP_CONFIG_PATH", "")
		t.Setenv("WPSNAP_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if filepath.Base(defaults["config_path"]) != "wpsnap.toml" {
			t.Errorf("config_path = %q, want wpsnap.toml in cwd", defaults["config_path"])
		}
	})
}

func TestOperation(t *testing.T) {
	op := NewOperation("backup", `{"out":"backup"}`)
	if op.Persisted() {
		t.Error("fresh operation reports persisted")
	}
	if op.Status != "success" {
		t.Errorf("Status = %q, want success until something fails", op.Status)
	}

	op.ID = 7
	if !op.Persisted() {
		t.Error("operation with ID not persisted")
	}
}

func TestNewOpID(t *testing.T) {
	t.Run("uses the injected generator", func(t *testing.T) {
		ids := testutil.NewStubIDGenerator()
		if got := newOpID(ids); got != "id-1" {
			t.Errorf("newOpID() = %q, want id-1", got)
		}
		if got := newOpID(ids); got != "id-2" {
			t.Errorf("newOpID() = %q, want id-2", got)
		}
	})

	t.Run("nil generator falls back to random UUIDs", func(t *testing.T) {
		got := newOpID(nil)
		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("newOpID() = %q, not a UUID: %v", got, err)
		}
		if again := newOpID(nil); again == got {
			t.Errorf("two runs share the ID %q", got)
		}
	})
}

func TestFail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success stays success", nil, "success"},
		{"declined restore is aborted, not an error", snap.ErrRestoreDeclined, "aborted"},
		{"wrapped declined restore is aborted", fmt.Errorf("restore: %w", snap.ErrRestoreDeclined), "aborted"},
		{"real failure is an error", errors.New("volume restore failed"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &App{op: NewOperation("Restore", "")}
			if got := a.fail(tt.err); !errors.Is(got, tt.err) {
				t.Errorf("fail() = %v, want the error passed through", got)
			}
			if a.op.Status != tt.want {
				t.Errorf("Status = %q, want %q", a.op.Status, tt.want)
			}
		})
	}
}

func TestSnapHandler(t *testing.T) {
	var b strings.Builder
	h := &snapHandler{w: &b, opID: "20240115T103000Z"}
	logger := slog.New(h)

	logger.Info("backup complete", "dir", "backup/20240115T103000Z")

	line := b.String()
	fields := strings.Split(strings.TrimSuffix(line, "\n"), "\t")
	if len(fields) != 5 {
		t.Fatalf("log line has %d fields: %q", len(fields), line)
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", fields[0]); err != nil {
		t.Errorf("timestamp %q: %v", fields[0], err)
	}
	if fields[1] != "INFO" {
		t.Errorf("level = %q", fields[1])
	}
	if fields[2] != "20240115T103000Z" {
		t.Errorf("opID = %q", fields[2])
	}
	if fields[3] != "backup complete" {
		t.Errorf("message = %q", fields[3])
	}
	if fields[4] != "dir=backup/20240115T103000Z" {
		t.Errorf("attr = %q", fields[4])
	}
}

func TestSnapHandler_WithAttrs(t *testing.T) {
	var b strings.Builder
	base := &snapHandler{w: &b, opID: "op"}
	logger := slog.New(base).With("component", "vault")

	logger.Warn("replication slow", "key", "x")

	line := b.String()
	if !strings.Contains(line, "\tcomponent=vault\t") {
		t.Errorf("pre-set attr missing: %q", line)
	}
	if !strings.Contains(line, "\tkey=x\n") {
		t.Errorf("record attr missing: %q", line)
	}
}

func TestSnapHandlerEnabled(t *testing.T) {
	h := &snapHandler{}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("handler should log all levels")
	}
}
