package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	AI      AI      `yaml:"ai"`
	Sheets  Sheets  `yaml:"sheets"`
	Server  Server  `yaml:"server"`
	Output  Output  `yaml:"output"`
	Logging Logging `yaml:"logging"`
}

type AI struct {
	Provider       string `yaml:"provider"` // "anthropic" or "openai"
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	OpenAIModel    string `yaml:"openai_model"`
	OpenAIKeyEnv   string `yaml:"openai_api_key_env"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call budget for model requests. Classification of
// a large contract can take on the order of a minute.
func (a AI) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type Sheets struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Worksheet       string `yaml:"worksheet"`
	CredentialsEnv  string `yaml:"credentials_env"`
	CredentialsFile string `yaml:"credentials_file"`
}

type Server struct {
	Port        int      `yaml:"port"`
	MaxUploadMB int      `yaml:"max_upload_mb"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for iosplit.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "iosplit")
}

// DataDir returns the XDG data directory for iosplit.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "iosplit")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/iosplit/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'iosplit init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		AI: AI{
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-20250514",
			APIKeyEnv:      "ANTHROPIC_API_KEY",
			OpenAIModel:    "gpt-4o-mini",
			OpenAIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:      4096,
			TimeoutSeconds: 120,
		},
		Sheets: Sheets{
			Worksheet:      "Sheet1",
			CredentialsEnv: "GOOGLE_CREDENTIALS_JSON",
		},
		Server: Server{
			Port:        8000,
			MaxUploadMB: 25,
			CORSOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
