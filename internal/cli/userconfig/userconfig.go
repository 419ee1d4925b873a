package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName  = "sanket"
	configFileName = "config.json"
)

// defaultServerAddr is used until the user selects a gateway explicitly
const defaultServerAddr = "localhost:8080"

// defaultWhitelist gates the official dashboard when the config has no entries
var defaultWhitelist = []string{
	"soham.pethkar1710@gmail.com",
}

// UserConfig represents the user's local configuration stored in
// ~/.config/sanket/config.json
type UserConfig struct {
	ServerAddr        string   `json:"server_addr"`
	OfficialWhitelist []string `json:"official_whitelist,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetServerAddr updates the gateway address and saves the config
func SetServerAddr(serverAddr string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.ServerAddr = serverAddr
	return Save(cfg)
}

// GetServerAddr returns the configured gateway address, falling back to the
// local default
func GetServerAddr() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	if cfg.ServerAddr == "" {
		return defaultServerAddr, nil
	}
	return cfg.ServerAddr, nil
}

// GetWhitelist returns the official-role whitelist, falling back to the
// built-in default when the config has none
func GetWhitelist() ([]string, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if len(cfg.OfficialWhitelist) == 0 {
		return defaultWhitelist, nil
	}
	return cfg.OfficialWhitelist, nil
}
