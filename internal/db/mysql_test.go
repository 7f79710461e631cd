package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wpsnap/internal/config"
	"wpsnap/internal/snap"
	"wpsnap/internal/testutil"
)

func testConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Name:                "wpdb",
		User:                "wpuser",
		Password:            "apppass",
		RootPassword:        "rootpass",
		ReadyTimeoutSeconds: 1,
		PollIntervalSeconds: 1,
	}
}

func newTestClient(rt *testutil.FakeRuntime) *Client {
	c := NewClient(rt, "db", testConfig(), snap.NewNopLogger())
	c.sleep = func(time.Duration) {}
	return c
}

func TestDump(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	var gotEnv []string
	rt.ExecFunc = func(service string, opts snap.ExecOptions, command ...string) error {
		gotEnv = opts.Env
		_, err := opts.Stdout.Write([]byte("-- dump\n"))
		return err
	}

	var out bytes.Buffer
	if err := newTestClient(rt).Dump(context.Background(), &out); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if out.String() != "-- dump\n" {
		t.Errorf("dump output = %q", out.String())
	}
	if len(rt.Calls) != 1 {
		t.Fatalf("Calls = %v", rt.Calls)
	}
	call := rt.Calls[0]
	for _, want := range []string{"mysqldump", "--single-transaction", "--quick", "--routines", "--events", "wpuser", "wpdb"} {
		if !strings.Contains(call, want) {
			t.Errorf("call %q missing %q", call, want)
		}
	}
	if len(gotEnv) != 1 || gotEnv[0] != "MYSQL_PWD=apppass" {
		t.Errorf("Env = %v, want password via MYSQL_PWD", gotEnv)
	}
}

func TestDump_Error(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	rt.ExecFunc = func(string, snap.ExecOptions, ...string) error {
		return errors.New("exit status 2")
	}

	err := newTestClient(rt).Dump(context.Background(), io.Discard)
	var dbErr *snap.DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("Dump() error = %v, want DatabaseError", err)
	}
	if dbErr.Op != "dump" {
		t.Errorf("Op = %q, want dump", dbErr.Op)
	}
}

func TestRestoreDump(t *testing.T) {
	writeArtifact := func(t *testing.T, name, content string) snap.Artifact {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		var data bytes.Buffer
		if strings.HasSuffix(name, ".gz") {
			gz := gzip.NewWriter(&data)
			gz.Write([]byte(content))
			gz.Close()
		} else {
			data.WriteString(content)
		}
		if err := os.WriteFile(path, data.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		art, err := snap.ClassifyArtifact(path)
		if err != nil {
			t.Fatal(err)
		}
		return art
	}

	tests := []struct {
		name     string
		artifact string
	}{
		{"plain dump", "db.sql"},
		{"gzipped dump", "db.sql.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := writeArtifact(t, tt.artifact, "CREATE TABLE t (id INT);\n")

			rt := testutil.NewFakeRuntime()
			var gotStdin []byte
			rt.ExecFunc = func(service string, opts snap.ExecOptions, command ...string) error {
				var err error
				gotStdin, err = io.ReadAll(opts.Stdin)
				return err
			}

			if err := newTestClient(rt).RestoreDump(context.Background(), art); err != nil {
				t.Fatalf("RestoreDump() error = %v", err)
			}
			if string(gotStdin) != "CREATE TABLE t (id INT);\n" {
				t.Errorf("imported SQL = %q", gotStdin)
			}
			if !strings.Contains(rt.Calls[0], "mysql") {
				t.Errorf("call = %q, want mysql import", rt.Calls[0])
			}
		})
	}

	t.Run("missing artifact", func(t *testing.T) {
		rt := testutil.NewFakeRuntime()
		art := snap.Artifact{Path: filepath.Join(t.TempDir(), "nope.sql"), Kind: snap.KindDatabaseDump}

		err := newTestClient(rt).RestoreDump(context.Background(), art)
		var dbErr *snap.DatabaseError
		if !errors.As(err, &dbErr) {
			t.Fatalf("RestoreDump() error = %v, want DatabaseError", err)
		}
		if len(rt.Calls) != 0 {
			t.Errorf("runtime touched for unreadable artifact: %v", rt.Calls)
		}
	})
}

func TestWaitReady(t *testing.T) {
	t.Run("ready on first ping", func(t *testing.T) {
		rt := testutil.NewFakeRuntime()
		if err := newTestClient(rt).WaitReady(context.Background()); err != nil {
			t.Fatalf("WaitReady() error = %v", err)
		}
		if len(rt.Calls) != 1 {
			t.Errorf("Calls = %v, want a single ping", rt.Calls)
		}
	})

	t.Run("falls back to root when the app user fails", func(t *testing.T) {
		rt := testutil.NewFakeRuntime()
		rt.ExecFunc = func(service string, opts snap.ExecOptions, command ...string) error {
			for _, e := range opts.Env {
				if e == "MYSQL_PWD=apppass" {
					return errors.New("access denied")
				}
			}
			return nil
		}

		if err := newTestClient(rt).WaitReady(context.Background()); err != nil {
			t.Fatalf("WaitReady() error = %v", err)
		}
		if len(rt.Calls) != 2 {
			t.Errorf("Calls = %v, want app ping then root ping", rt.Calls)
		}
	})

	t.Run("times out when the database never answers", func(t *testing.T) {
		rt := testutil.NewFakeRuntime()
		rt.ExecFunc = func(string, snap.ExecOptions, ...string) error {
			return errors.New("connection refused")
		}

		err := newTestClient(rt).WaitReady(context.Background())
		var timeoutErr *snap.ReadyTimeoutError
		if !errors.As(err, &timeoutErr) {
			t.Fatalf("WaitReady() error = %v, want ReadyTimeoutError", err)
		}
		if timeoutErr.Service != "db" {
			t.Errorf("Service = %q, want db", timeoutErr.Service)
		}
	})

	t.Run("cancelled context stops the poll", func(t *testing.T) {
		rt := testutil.NewFakeRuntime()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := newTestClient(rt).WaitReady(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("WaitReady() error = %v, want context.Canceled", err)
		}
		if len(rt.Calls) != 0 {
			t.Errorf("Calls = %v, want none after cancellation", rt.Calls)
		}
	})
}
