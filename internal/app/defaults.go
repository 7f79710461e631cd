package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - WPSNAP_CONFIG_PATH: config file location (default: ./wpsnap.toml, so a
//     config can live next to the compose file it manages)
//   - WPSNAP_HOME: base directory for wpsnap data (default: ~/.local/share/wpsnap)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking WPSNAP_CONFIG_PATH
// first. The default is wpsnap.toml in the working directory: the tool is
// run per-stack, from the stack's directory.
func getConfigPath() (string, error) {
	if path := os.Getenv("WPSNAP_CONFIG_PATH"); path != "" {
		return path, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine working directory: %w", err)
	}
	return filepath.Join(cwd, "wpsnap.toml"), nil
}

// getBaseDir returns the base directory for wpsnap data, checking WPSNAP_HOME
// first, then falling back to the XDG default ~/.local/share/wpsnap.
func getBaseDir() (string, error) {
	if path := os.Getenv("WPSNAP_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "wpsnap"), nil
}
