package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scribeflow/scribeflow/llm"
)

// configFileName is the discovered config file name.
const configFileName = "scribeflow.yaml"

// Config is the scribeflow.yaml file. All string values support ${VAR}
// environment expansion so API keys can stay out of the file itself.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Retry    RetryConfig    `yaml:"retry"`
}

// ProviderConfig selects the LLM provider backing the workflow.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

// RetryConfig tunes the retrying client wrapped around the provider.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// defaultConfig returns the configuration used when no file is found.
func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Name:  "openai",
			Model: "gpt-4o-mini",
		},
		Retry: RetryConfig{
			Attempts: 3,
			Backoff:  time.Second,
		},
	}
}

// discoverConfigPath resolves the config file location. An explicit path
// must exist; otherwise the working directory is checked first, then
// ~/.scribeflow/.
func discoverConfigPath(explicit string) (string, bool, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", false, fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, true, nil
	}

	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, true, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, nil
	}
	candidate := filepath.Join(home, ".scribeflow", configFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, true, nil
	}
	return "", false, nil
}

// loadConfig reads and parses the config file found via discoverConfigPath,
// falling back to defaults when none exists. Environment references in the
// file are expanded before parsing.
func loadConfig(explicitPath string) (Config, error) {
	cfg := defaultConfig()

	path, found, err := discoverConfigPath(explicitPath)
	if err != nil {
		return Config{}, err
	}
	if !found {
		return cfg, nil
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path from user CLI arg or well-known location
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Provider.Name == "" {
		cfg.Provider.Name = defaultConfig().Provider.Name
	}
	if cfg.Provider.Model == "" {
		return Config{}, fmt.Errorf("config %s: provider.model is required", path)
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = defaultConfig().Retry.Attempts
	}
	if cfg.Retry.Backoff < 0 {
		return Config{}, fmt.Errorf("config %s: retry.backoff must not be negative", path)
	}
	return cfg, nil
}

// resolveAPIKey returns the configured key, falling back to the provider's
// conventional environment variable. Local providers run without a key.
func resolveAPIKey(cfg ProviderConfig) (string, error) {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key, nil
	}

	envVar := strings.ToUpper(cfg.Name) + "_API_KEY"
	if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
		return key, nil
	}

	if cfg.Name == "ollama" {
		return "", nil
	}
	return "", fmt.Errorf("no API key for provider %q: set provider.api_key or %s", cfg.Name, envVar)
}

// buildTextClient constructs the provider client described by the config,
// wrapped with retry behavior.
func buildTextClient(cfg Config) (llm.TextClient, error) {
	if cfg.Provider.Model == "" {
		return nil, errors.New("provider.model is required")
	}

	apiKey, err := resolveAPIKey(cfg.Provider)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewIrisClient(cfg.Provider.Name, apiKey, cfg.Provider.Model)
	if err != nil {
		return nil, err
	}
	return llm.NewRetryingClient(client,
		llm.WithAttempts(cfg.Retry.Attempts),
		llm.WithBackoff(cfg.Retry.Backoff),
	), nil
}
