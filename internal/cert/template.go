package cert

import (
	"fmt"
	"strings"
	"text/template"
)

// DomainSet is the ordered list of hostnames a certificate covers. The
// primary domain determines which certificate path terminates TLS; the order
// of alternates affects the rendered config text but not correctness.
type DomainSet struct {
	Primary    string
	Alternates []string
}

// NewDomainSet builds a DomainSet from an ordered domain list.
func NewDomainSet(domains []string) (DomainSet, error) {
	if len(domains) == 0 {
		return DomainSet{}, fmt.Errorf("no domains configured")
	}
	return DomainSet{Primary: domains[0], Alternates: domains[1:]}, nil
}

// All returns the full ordered domain list, primary first.
func (d DomainSet) All() []string {
	return append([]string{d.Primary}, d.Alternates...)
}

// proxyTemplate renders two vhosts: plain HTTP serving only the ACME
// challenge path and redirecting everything else, and HTTPS terminating TLS
// with the primary domain's certificate and proxying to the app service.
var proxyTemplate = template.Must(template.New("proxy").Parse(`server {
    listen 80;
    server_name {{.ServerNames}};

    location {{.ChallengePath}} {
        root {{.Webroot}};
    }

    location / {
        return 301 https://$host$request_uri;
    }
}

server {
    listen 443 ssl;
    server_name {{.ServerNames}};

    ssl_certificate {{.CertPath}};
    ssl_certificate_key {{.KeyPath}};

    location / {
        proxy_pass http://{{.Upstream}};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
}
`))

// RenderProxyConfig renders the proxy configuration for a domain set. The
// output is a deterministic function of the inputs.
func RenderProxyConfig(set DomainSet, upstream string) (string, error) {
	if upstream == "" {
		return "", fmt.Errorf("no upstream service configured")
	}

	data := struct {
		ServerNames   string
		ChallengePath string
		Webroot       string
		CertPath      string
		KeyPath       string
		Upstream      string
	}{
		ServerNames:   strings.Join(set.All(), " "),
		ChallengePath: challengePath,
		Webroot:       webrootMount,
		CertPath:      letsencryptMount + "/live/" + set.Primary + "/fullchain.pem",
		KeyPath:       letsencryptMount + "/live/" + set.Primary + "/privkey.pem",
		Upstream:      upstream,
	}

	var b strings.Builder
	if err := proxyTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering proxy config: %w", err)
	}
	return b.String(), nil
}
