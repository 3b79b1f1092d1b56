package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"icoforge/src/common"
)

// Default paths used when nothing else is configured
const (
	DefaultInput  = "ClipSpeakIcon.png"
	DefaultOutput = "app.ico"
)

// Environment variables that override the config file
const (
	EnvInput  = "ICOFORGE_INPUT"
	EnvOutput = "ICOFORGE_OUTPUT"
	EnvFilter = "ICOFORGE_FILTER"
)

// Config represents the application configuration
type Config struct {
	Icon   IconConfig   `yaml:"icon"`
	Watch  WatchConfig  `yaml:"watch"`
	Deploy DeployConfig `yaml:"deploy"`
}

type IconConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Sizes  []int  `yaml:"sizes"`
	Filter string `yaml:"filter"`
}

type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

type DeployConfig struct {
	Targets []string `yaml:"targets"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Icon: IconConfig{
			Input:  DefaultInput,
			Output: DefaultOutput,
			Sizes:  common.DefaultIconSizes(),
			Filter: string(common.DefaultFilter),
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// Load reads the configuration file on top of the defaults and validates the result.
// An empty path skips the file and only applies environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Read merges defaults, the configuration file and environment overrides
// without validating, so callers can apply their own overrides first.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyEnv()

	return cfg, nil
}

// LoadEnv loads variables from an optional .env file into the process environment.
// Variables already set are not overwritten. A missing file is not an error.
func LoadEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvInput); v != "" {
		c.Icon.Input = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		c.Icon.Output = v
	}
	if v := os.Getenv(EnvFilter); v != "" {
		c.Icon.Filter = v
	}
}

// Validate checks if required configuration fields are set
func (c *Config) Validate() error {
	if c.Icon.Input == "" {
		return fmt.Errorf("icon.input is required")
	}
	if c.Icon.Output == "" {
		return fmt.Errorf("icon.output is required")
	}
	if filepath.Clean(c.Icon.Input) == filepath.Clean(c.Icon.Output) {
		return fmt.Errorf("icon.input and icon.output must differ")
	}
	if err := common.ValidateSizes(c.Icon.Sizes); err != nil {
		return fmt.Errorf("icon.sizes: %w", err)
	}
	if _, err := common.ParseFilter(c.Icon.Filter); err != nil {
		return fmt.Errorf("icon.filter: %w", err)
	}
	if c.Watch.DebounceMS <= 0 {
		return fmt.Errorf("watch.debounce_ms must be positive")
	}
	return nil
}

// NewConverter builds the icon converter described by the config
func (c *Config) NewConverter() (*common.Converter, error) {
	return common.NewConverter(c.Icon.Sizes, c.Icon.Filter)
}
