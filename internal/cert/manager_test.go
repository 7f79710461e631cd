package cert

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wpsnap/internal/config"
	"wpsnap/internal/snap"
	"wpsnap/internal/testutil"
)

// writeCert generates a self-signed certificate for domain expiring at
// notAfter and writes it where the manager expects it.
func writeCert(t *testing.T, certDir, domain string, notAfter time.Time) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(certDir, "live", domain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	var buf strings.Builder
	if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fullchain.pem"), []byte(buf.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestManager(t *testing.T, cfg config.CertConfig, rt *testutil.FakeRuntime, clock snap.Clock) *Manager {
	t.Helper()
	if rt == nil {
		rt = testutil.NewFakeRuntime()
	}
	if cfg.Image == "" {
		cfg.Image = "certbot/certbot"
	}
	if cfg.WebrootVolume == "" {
		cfg.WebrootVolume = "certbot_webroot"
	}
	return NewManager(cfg, "wordpress", rt, clock, snap.NewNopLogger())
}

func TestCheckDomain(t *testing.T) {
	clock := testutil.FixedClock()
	now := clock.Now()

	tests := []struct {
		name     string
		notAfter time.Time
		want     snap.CertState
	}{
		{"well within validity", now.Add(60 * 24 * time.Hour), snap.CertValid},
		{"just above the margin", now.Add(ExpiryMargin + time.Hour), snap.CertValid},
		{"exactly at the margin", now.Add(ExpiryMargin), snap.CertExpiringSoon},
		{"one day left", now.Add(24 * time.Hour), snap.CertExpiringSoon},
		{"expired yesterday", now.Add(-24 * time.Hour), snap.CertExpired},
		{"expires this instant", now, snap.CertExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certDir := t.TempDir()
			writeCert(t, certDir, "example.com", tt.notAfter)
			m := newTestManager(t, config.CertConfig{CertDir: certDir, Domains: []string{"example.com"}}, nil, clock)

			got, err := m.CheckDomain("example.com")
			if err != nil {
				t.Fatalf("CheckDomain() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckDomain() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("no certificate file", func(t *testing.T) {
		m := newTestManager(t, config.CertConfig{CertDir: t.TempDir(), Domains: []string{"example.com"}}, nil, clock)
		got, err := m.CheckDomain("example.com")
		if err != nil {
			t.Fatalf("CheckDomain() error = %v", err)
		}
		if got != snap.CertAbsent {
			t.Errorf("CheckDomain() = %v, want absent", got)
		}
	})

	t.Run("garbage certificate file", func(t *testing.T) {
		certDir := t.TempDir()
		dir := filepath.Join(certDir, "live", "example.com")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "fullchain.pem"), []byte("not pem"), 0o644); err != nil {
			t.Fatal(err)
		}
		m := newTestManager(t, config.CertConfig{CertDir: certDir, Domains: []string{"example.com"}}, nil, clock)

		_, err := m.CheckDomain("example.com")
		var ce *snap.CertError
		if !errors.As(err, &ce) {
			t.Fatalf("CheckDomain() error = %v, want CertError", err)
		}
	})
}

func TestCheck(t *testing.T) {
	t.Run("uses the primary domain", func(t *testing.T) {
		clock := testutil.FixedClock()
		certDir := t.TempDir()
		writeCert(t, certDir, "example.com", clock.Now().Add(60*24*time.Hour))
		cfg := config.CertConfig{CertDir: certDir, Domains: []string{"example.com", "www.example.com"}}
		m := newTestManager(t, cfg, nil, clock)

		got, err := m.Check()
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if got != snap.CertValid {
			t.Errorf("Check() = %v, want valid", got)
		}
	})

	t.Run("no domains configured", func(t *testing.T) {
		m := newTestManager(t, config.CertConfig{CertDir: t.TempDir()}, nil, testutil.FixedClock())
		_, err := m.Check()
		var ce *snap.CertError
		if !errors.As(err, &ce) {
			t.Fatalf("Check() error = %v, want CertError", err)
		}
	})
}

func TestIssue(t *testing.T) {
	t.Run("skipped while the certificate is valid", func(t *testing.T) {
		clock := testutil.FixedClock()
		certDir := t.TempDir()
		writeCert(t, certDir, "example.com", clock.Now().Add(60*24*time.Hour))
		rt := testutil.NewFakeRuntime()
		m := newTestManager(t, config.CertConfig{CertDir: certDir, Domains: []string{"example.com"}}, rt, clock)

		if err := m.Issue(context.Background(), false); err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		if len(rt.Calls) != 0 {
			t.Errorf("ACME client ran despite valid certificate: %v", rt.Calls)
		}
	})

	t.Run("unreachable challenge path aborts before the ACME client runs", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		domain := strings.TrimPrefix(srv.URL, "http://")
		srv.Close() // connection refused from here on

		rt := testutil.NewFakeRuntime()
		m := newTestManager(t, config.CertConfig{CertDir: t.TempDir(), Domains: []string{domain}}, rt, testutil.FixedClock())

		err := m.Issue(context.Background(), false)
		var ce *snap.CertError
		if !errors.As(err, &ce) {
			t.Fatalf("Issue() error = %v, want CertError", err)
		}
		if ce.Op != "preflight" {
			t.Errorf("Op = %q, want preflight", ce.Op)
		}
		if len(rt.Calls) != 0 {
			t.Errorf("ACME client ran despite failed preflight: %v", rt.Calls)
		}
	})

	t.Run("force renews through the webroot challenge", func(t *testing.T) {
		// Any HTTP answer on the challenge path passes the preflight, 404
		// included: the synthetic file does not exist, reachability is all
		// that is being proven.
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		domain := strings.TrimPrefix(srv.URL, "http://")

		clock := testutil.FixedClock()
		certDir := t.TempDir()
		writeCert(t, certDir, domain, clock.Now().Add(60*24*time.Hour))
		proxyConf := filepath.Join(t.TempDir(), "default.conf")

		rt := testutil.NewFakeRuntime()
		var job snap.HelperJob
		rt.HelperFunc = func(j snap.HelperJob) error {
			job = j
			return nil
		}
		cfg := config.CertConfig{
			CertDir:         certDir,
			Domains:         []string{domain, "www." + domain},
			Email:           "ops@example.com",
			ProxyConfigPath: proxyConf,
		}
		m := newTestManager(t, cfg, rt, clock)

		if err := m.Issue(context.Background(), true); err != nil {
			t.Fatalf("Issue() error = %v", err)
		}

		args := strings.Join(job.Command, " ")
		for _, want := range []string{
			"certonly", "--webroot",
			"--email ops@example.com",
			"-d " + domain,
			"-d www." + domain,
			"--force-renewal",
			"--non-interactive",
		} {
			if !strings.Contains(args, want) {
				t.Errorf("command %q missing %q", args, want)
			}
		}
		if len(job.Mounts) != 2 || job.Mounts[0].HostPath != certDir || job.Mounts[1].Volume != "certbot_webroot" {
			t.Errorf("Mounts = %+v", job.Mounts)
		}

		rendered, err := os.ReadFile(proxyConf)
		if err != nil {
			t.Fatalf("proxy config not written: %v", err)
		}
		if !strings.Contains(string(rendered), "ssl_certificate /etc/letsencrypt/live/"+domain+"/fullchain.pem;") {
			t.Errorf("proxy config missing certificate path:\n%s", rendered)
		}
	})
}
