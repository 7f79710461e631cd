package config

import (
	"bufio"
	"os"
	"strings"
)

// Legacy deployments configured everything through a shell environment file.
// ImportEnvFile reads such a file once, at `config init` time, and folds the
// recognized variables into the Config. Nothing reads the environment after
// initialization.
func ImportEnvFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	vars := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		vars[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if v, ok := vars["MYSQL_DATABASE"]; ok {
		cfg.Database.Name = v
	}
	if v, ok := vars["MYSQL_USER"]; ok {
		cfg.Database.User = v
	}
	if v, ok := vars["MYSQL_PASSWORD"]; ok {
		cfg.Database.Password = v
	}
	if v, ok := vars["MYSQL_ROOT_PASSWORD"]; ok {
		cfg.Database.RootPassword = v
	}
	if v, ok := vars["DB_VOLUME"]; ok {
		cfg.Volumes.Database = v
	}
	if v, ok := vars["WPFILES_VOLUME"]; ok {
		cfg.Volumes.Files = v
	}
	if v, ok := vars["CERT_EMAIL"]; ok {
		cfg.Cert.Email = v
	}
	if v, ok := vars["DOMAIN"]; ok {
		domains := []string{v}
		if alts, ok := vars["ALT_DOMAINS"]; ok {
			domains = append(domains, strings.Fields(alts)...)
		}
		cfg.Cert.Domains = domains
		cfg.Cert.Enabled = true
	}

	return nil
}
