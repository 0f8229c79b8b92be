package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotenv loads a .env file from the current directory, if one exists, so
// secrets like GROQ_API_KEY can live next to the checkout instead of in the
// shell profile. Variables already present in the environment win.
func LoadDotenv() error {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - GDSYNC_CONFIG_PATH: config file location (default: ~/.config/gdsync.toml)
//   - GDSYNC_HOME: base directory for gdsync data (default: ~/.local/share/gdsync)
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
		"work_dir":    filepath.Join(baseDir, "work"),
	}, nil
}

// getConfigPath returns the config file path, checking GDSYNC_CONFIG_PATH env
// var first, then falling back to the default ~/.config/gdsync.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("GDSYNC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "gdsync.toml"), nil
}

// getBaseDir returns the base directory for gdsync data, checking GDSYNC_HOME
// env var first, then falling back to the XDG default ~/.local/share/gdsync.
func getBaseDir() (string, error) {
	if path := os.Getenv("GDSYNC_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "gdsync"), nil
}
