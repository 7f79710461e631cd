// Package cert manages the TLS certificate for the proxy service: expiry
// checks against the certificate file on disk, nginx config rendering, and
// HTTP-01 issuance through an ACME client run as a helper container.
package cert

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"wpsnap/internal/config"
	"wpsnap/internal/snap"
)

// ExpiryMargin is how much validity must remain for a certificate to count
// as valid. At or below the margin it is expiring soon.
const ExpiryMargin = 30 * 24 * time.Hour

const (
	letsencryptMount = "/etc/letsencrypt"
	webrootMount     = "/var/www/certbot"
	challengePath    = "/.well-known/acme-challenge/"
)

// Manager implements snap.CertProvider for a letsencrypt-style certificate
// directory.
type Manager struct {
	cfg      config.CertConfig
	upstream string // app service the HTTPS vhost proxies to
	runtime  snap.Runtime
	client   *http.Client
	clock    snap.Clock
	logger   snap.Logger
}

// NewManager creates a certificate manager. upstream is the service name the
// rendered proxy config forwards requests to.
func NewManager(cfg config.CertConfig, upstream string, runtime snap.Runtime, clock snap.Clock, logger snap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		upstream: upstream,
		runtime:  runtime,
		client:   &http.Client{Timeout: 10 * time.Second},
		clock:    clock,
		logger:   logger,
	}
}

// Check returns the state of the primary domain's certificate. The state is
// re-derived from the certificate file on every call; nothing is cached.
func (m *Manager) Check() (snap.CertState, error) {
	set, err := NewDomainSet(m.cfg.Domains)
	if err != nil {
		return snap.CertAbsent, &snap.CertError{Op: "check", Err: err}
	}
	return m.CheckDomain(set.Primary)
}

// CheckDomain returns the certificate state for one domain.
func (m *Manager) CheckDomain(domain string) (snap.CertState, error) {
	notAfter, err := m.notAfter(domain)
	if err != nil {
		if os.IsNotExist(err) {
			return snap.CertAbsent, nil
		}
		return snap.CertAbsent, &snap.CertError{Op: "check", Err: err}
	}

	now := m.clock.Now()
	switch {
	case !now.Before(notAfter):
		return snap.CertExpired, nil
	case notAfter.Sub(now) <= ExpiryMargin:
		return snap.CertExpiringSoon, nil
	default:
		return snap.CertValid, nil
	}
}

// notAfter reads the expiry field from the domain's certificate file.
func (m *Manager) notAfter(domain string) (time.Time, error) {
	path := filepath.Join(m.cfg.CertDir, "live", domain, "fullchain.pem")
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return time.Time{}, fmt.Errorf("no PEM block in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing certificate %s: %w", path, err)
	}
	return cert.NotAfter, nil
}

// Issue obtains a certificate for the configured domain set via an HTTP-01
// challenge. Issuance is skipped when a valid certificate already exists,
// unless force is set. The challenge path must be reachable over plain HTTP,
// which is verified with a synthetic request before the ACME client runs.
func (m *Manager) Issue(ctx context.Context, force bool) error {
	set, err := NewDomainSet(m.cfg.Domains)
	if err != nil {
		return &snap.CertError{Op: "issue", Err: err}
	}

	state, err := m.CheckDomain(set.Primary)
	if err != nil {
		return err
	}
	if state == snap.CertValid && !force {
		m.logger.Info("certificate still valid, issuance skipped", "domain", set.Primary)
		return nil
	}

	if err := m.preflight(ctx, set.Primary); err != nil {
		return &snap.CertError{Op: "preflight", Err: err}
	}

	if err := m.runtime.RunHelper(ctx, m.issueJob(set, force)); err != nil {
		return &snap.CertError{Op: "issue", Err: err}
	}
	m.logger.Info("certificate issued", "domains", set.All())

	if m.cfg.ProxyConfigPath != "" {
		text, err := RenderProxyConfig(set, m.upstream)
		if err != nil {
			return &snap.CertError{Op: "render", Err: err}
		}
		if err := os.WriteFile(m.cfg.ProxyConfigPath, []byte(text), 0644); err != nil {
			return &snap.CertError{Op: "render", Err: err}
		}
	}
	return nil
}

// preflight makes a synthetic round-trip to the challenge path. Any HTTP
// response proves the domain resolves here and the HTTP vhost is up; only a
// transport failure counts as unreachable.
func (m *Manager) preflight(ctx context.Context, domain string) error {
	url := "http://" + domain + challengePath + "wpsnap-preflight"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("challenge path unreachable at %s: %w", url, err)
	}
	resp.Body.Close()

	m.logger.Debug("challenge path reachable", "url", url, "status", resp.StatusCode)
	return nil
}

// issueJob builds the ACME client helper job (webroot HTTP-01).
func (m *Manager) issueJob(set DomainSet, force bool) snap.HelperJob {
	args := []string{
		"certonly", "--webroot",
		"-w", webrootMount,
		"--email", m.cfg.Email,
		"--agree-tos", "--no-eff-email", "--non-interactive",
	}
	for _, d := range set.All() {
		args = append(args, "-d", d)
	}
	if force {
		args = append(args, "--force-renewal")
	}

	return snap.HelperJob{
		Image: m.cfg.Image,
		Mounts: []snap.Mount{
			{HostPath: m.cfg.CertDir, Target: letsencryptMount},
			{Volume: m.cfg.WebrootVolume, Target: webrootMount},
		},
		Command: args,
	}
}
