package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const ConfigFileName = ".walletchat.json"

const (
	DefaultCompletionModel       = "llama70b"
	DefaultPortfolioBaseURL      = "https://api.zerion.io/v1"
	DefaultRequestTimeoutSeconds = 60
	DefaultStatusTimeoutSeconds  = 3
	defaultLogFileName           = ".walletchat.log"
)

// Environment variables that override values from the config file.
const (
	EnvCompletionBaseURL = "COMPLETION_BASE_URL"
	EnvCompletionAPIKey  = "COMPLETION_API_KEY"
	EnvCompletionModel   = "COMPLETION_MODEL"
	EnvPortfolioBaseURL  = "PORTFOLIO_BASE_URL"
	EnvPortfolioAPIKey   = "PORTFOLIO_API_KEY"
	EnvWalletRPCURL      = "WALLET_RPC_URL"
	EnvRequestTimeout    = "REQUEST_TIMEOUT_SECONDS"
	EnvLogFile           = "WALLETCHAT_LOG_FILE"
)

var ErrMissingValue = errors.New("missing required configuration value")

// Config holds the endpoints and keys the assistant talks to plus UI settings.
type Config struct {
	CompletionBaseURL     string `json:"completion_base_url"`
	CompletionAPIKey      string `json:"completion_api_key"`
	CompletionModel       string `json:"completion_model"`
	PortfolioBaseURL      string `json:"portfolio_base_url"`
	PortfolioAPIKey       string `json:"portfolio_api_key"`
	WalletRPCURL          string `json:"wallet_rpc_url,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	StatusTimeoutSeconds  int    `json:"status_timeout_seconds"`
	LogFile               string `json:"log_file,omitempty"`
}

// Default returns a Config with every optional value filled in.
func Default() Config {
	return Config{
		CompletionModel:       DefaultCompletionModel,
		PortfolioBaseURL:      DefaultPortfolioBaseURL,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		StatusTimeoutSeconds:  DefaultStatusTimeoutSeconds,
	}
}

// RequestTimeout is the per-request budget for every outbound network call.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSeconds * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) StatusTimeout() time.Duration {
	if c.StatusTimeoutSeconds <= 0 {
		return DefaultStatusTimeoutSeconds * time.Second
	}
	return time.Duration(c.StatusTimeoutSeconds) * time.Second
}

// Validate reports every required endpoint value that is empty.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.CompletionBaseURL) == "" {
		missing = append(missing, "completion_base_url")
	}
	if strings.TrimSpace(c.CompletionAPIKey) == "" {
		missing = append(missing, "completion_api_key")
	}
	if strings.TrimSpace(c.PortfolioBaseURL) == "" {
		missing = append(missing, "portfolio_base_url")
	}
	if strings.TrimSpace(c.PortfolioAPIKey) == "" {
		missing = append(missing, "portfolio_api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingValue, strings.Join(missing, ", "))
	}
	return nil
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// DefaultLogPath places the log next to the default config file.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultLogFileName
	}
	return filepath.Join(home, defaultLogFileName)
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		CompletionBaseURL     string  `json:"completion_base_url"`
		CompletionAPIKey      string  `json:"completion_api_key"`
		CompletionModel       *string `json:"completion_model"`
		PortfolioBaseURL      *string `json:"portfolio_base_url"`
		PortfolioAPIKey       string  `json:"portfolio_api_key"`
		WalletRPCURL          string  `json:"wallet_rpc_url"`
		RequestTimeoutSeconds *int    `json:"request_timeout_seconds"`
		StatusTimeoutSeconds  *int    `json:"status_timeout_seconds"`
		LogFile               string  `json:"log_file"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	cfg.CompletionBaseURL = strings.TrimSpace(raw.CompletionBaseURL)
	cfg.CompletionAPIKey = strings.TrimSpace(raw.CompletionAPIKey)
	cfg.PortfolioAPIKey = strings.TrimSpace(raw.PortfolioAPIKey)
	cfg.WalletRPCURL = strings.TrimSpace(raw.WalletRPCURL)
	cfg.LogFile = raw.LogFile
	if raw.CompletionModel != nil && *raw.CompletionModel != "" {
		cfg.CompletionModel = *raw.CompletionModel
	}
	// An explicit empty string is kept so Validate can flag it.
	if raw.PortfolioBaseURL != nil {
		cfg.PortfolioBaseURL = strings.TrimSpace(*raw.PortfolioBaseURL)
	}
	if raw.RequestTimeoutSeconds != nil {
		cfg.RequestTimeoutSeconds = *raw.RequestTimeoutSeconds
	}
	if raw.StatusTimeoutSeconds != nil {
		cfg.StatusTimeoutSeconds = *raw.StatusTimeoutSeconds
	}
	return cfg, nil
}

// LoadEnv reads .env files (missing files are ignored) and then lets the
// process environment override cfg.
func LoadEnv(cfg *Config, envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return applyEnv(cfg, os.Getenv)
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.CompletionBaseURL, EnvCompletionBaseURL)
	set(&cfg.CompletionAPIKey, EnvCompletionAPIKey)
	set(&cfg.CompletionModel, EnvCompletionModel)
	set(&cfg.PortfolioBaseURL, EnvPortfolioBaseURL)
	set(&cfg.PortfolioAPIKey, EnvPortfolioAPIKey)
	set(&cfg.WalletRPCURL, EnvWalletRPCURL)
	set(&cfg.LogFile, EnvLogFile)

	if v := strings.TrimSpace(getenv(EnvRequestTimeout)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRequestTimeout, v, err)
		}
		cfg.RequestTimeoutSeconds = n
	}
	return nil
}

func SaveConfig(cfg Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	// The file carries API keys, so it stays owner-only.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}
