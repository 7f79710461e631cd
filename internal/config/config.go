package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for wpsnap. Components receive their
// sub-config explicitly; nothing reads ambient process environment at
// runtime.
type Config struct {
	ComposeFile string `toml:"compose_file"`
	EnvFile     string `toml:"env_file,omitempty"`
	LogDir      string `toml:"log_dir"`

	Runtime  RuntimeConfig  `toml:"runtime"`
	Stack    StackConfig    `toml:"stack"`
	Database DatabaseConfig `toml:"database"`
	Volumes  VolumesConfig  `toml:"volumes"`
	Cert     CertConfig     `toml:"cert"`
	Vault    VaultConfig    `toml:"vault"`
	Catalog  CatalogConfig  `toml:"catalog"`
}

// RuntimeConfig selects the container-orchestration command.
type RuntimeConfig struct {
	// Type is "auto" (probe docker compose, docker-compose, podman-compose),
	// or one of those commands explicitly.
	Type string `toml:"type"`
	// HelperImage is the image used for disposable volume-job containers.
	HelperImage string `toml:"helper_image"`
}

// StackConfig names the services of the managed stack.
type StackConfig struct {
	DBService    string `toml:"db_service"`
	AppService   string `toml:"app_service"`
	ProxyService string `toml:"proxy_service,omitempty"`
}

// DatabaseConfig holds database credentials and readiness-poll settings.
type DatabaseConfig struct {
	Name         string `toml:"name"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	RootPassword string `toml:"root_password"`

	// ReadyTimeoutSeconds bounds the readiness poll; PollIntervalSeconds is
	// the delay between attempts.
	ReadyTimeoutSeconds int `toml:"ready_timeout_seconds"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// VolumesConfig names the two persistent volumes.
type VolumesConfig struct {
	Database string `toml:"database"`
	Files    string `toml:"files"`
}

// CertConfig configures TLS certificate management for the proxy.
type CertConfig struct {
	Enabled bool `toml:"enabled"`
	// Domains is the ordered domain set; the first entry is the primary
	// domain whose certificate path terminates TLS.
	Domains []string `toml:"domains"`
	Email   string   `toml:"email"`
	// CertDir is the letsencrypt-style directory holding live/<domain>/.
	CertDir string `toml:"cert_dir"`
	// WebrootVolume is the volume the proxy serves ACME challenges from.
	WebrootVolume string `toml:"webroot_volume"`
	// Image is the ACME client image run as a helper container.
	Image string `toml:"image"`
	// ProxyConfigPath, when set, receives the rendered proxy configuration
	// after successful issuance.
	ProxyConfigPath string `toml:"proxy_config_path,omitempty"`
}

// VaultConfig configures offsite snapshot replication.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem", or "s3"
	Name string `toml:"name,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	// Filesystem-specific field (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// CatalogConfig configures the run-history catalog.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type CatalogConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		ComposeFile: "docker-compose.yml",
		EnvFile:     ".env",
		LogDir:      filepath.Join(baseDir, "log"),
		Runtime: RuntimeConfig{
			Type:        "auto",
			HelperImage: "alpine:3.20",
		},
		Stack: StackConfig{
			DBService:    "db",
			AppService:   "wordpress",
			ProxyService: "proxy",
		},
		Database: DatabaseConfig{
			Name:                "wordpress",
			User:                "wordpress",
			ReadyTimeoutSeconds: 120,
			PollIntervalSeconds: 2,
		},
		Volumes: VolumesConfig{
			Database: "db_data",
			Files:    "wp_files",
		},
		Cert: CertConfig{
			CertDir:       filepath.Join(baseDir, "certs"),
			WebrootVolume: "certbot_webroot",
			Image:         "certbot/certbot",
		},
		Vault:   VaultConfig{Type: "none"},
		Catalog: CatalogConfig{Type: "sqlite", DataDir: baseDir},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided
// Config. Fails when a config file already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
