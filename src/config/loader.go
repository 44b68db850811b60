package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvironmentPrefix = "DATAAGENT"
	// OpenAIKeyEnv is read when no prefixed key is set.
	OpenAIKeyEnv = "OPENAI_API_KEY"
)

// ConfigPrecedence defines the order of configuration loading. Later
// sources override earlier ones.
type ConfigPrecedence struct {
	UserConfig    string
	ProjectConfig string
	// ExplicitConfig comes from --config and must exist when set.
	ExplicitConfig string
	// EnvFile is a dotenv file loaded into the process environment. Variables
	// already set are kept.
	EnvFile           string
	EnvironmentPrefix string
}

// GetConfigPaths returns the default precedence, with an optional explicit file.
func GetConfigPaths(explicit string) ConfigPrecedence {
	return ConfigPrecedence{
		UserConfig:        UserConfigPath(),
		ProjectConfig:     ProjectConfigPath(),
		ExplicitConfig:    explicit,
		EnvFile:           ".env",
		EnvironmentPrefix: EnvironmentPrefix,
	}
}

// LoadedFile records a config file that contributed to the result.
type LoadedFile struct {
	Path   string
	Source ConfigSource
}

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
	loaded     []LoadedFile
}

// NewLoader creates a new configuration loader
func NewLoader(precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
	}
}

// Load builds the configuration from defaults, files and the environment.
func Load(explicitPath string) (*Config, error) {
	return NewLoader(GetConfigPaths(explicitPath)).Load()
}

// Load loads configuration from all sources and merges them
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()
	l.loaded = nil

	sources := []struct {
		path     string
		source   ConfigSource
		required bool
	}{
		{l.precedence.UserConfig, SourceUser, false},
		{l.precedence.ProjectConfig, SourceProject, false},
		{l.precedence.ExplicitConfig, SourceCLI, true},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}
		err := l.mergeFile(config, src.path)
		switch {
		case err == nil:
			l.loaded = append(l.loaded, LoadedFile{Path: src.path, Source: src.source})
		case errors.Is(err, fs.ErrNotExist) && !src.required:
		default:
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
		}
	}

	if err := l.applyEnvironment(config); err != nil {
		return nil, err
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Loaded lists the files the last Load merged, in order.
func (l *Loader) Loaded() []LoadedFile {
	return l.loaded
}

// mergeFile decodes path over config; fields absent from the file keep
// their current values.
func (l *Loader) mergeFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

func (l *Loader) applyEnvironment(config *Config) error {
	if l.precedence.EnvFile != "" {
		if err := godotenv.Load(l.precedence.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", l.precedence.EnvFile, err)
		}
	}
	if l.precedence.EnvironmentPrefix == "" {
		return nil
	}
	if err := envconfig.Process(l.precedence.EnvironmentPrefix, config); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if config.API.Key == "" {
		config.API.Key = os.Getenv(OpenAIKeyEnv)
	}
	return nil
}

// SaveFile writes config as indented JSON. The API key is left out.
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	out := *config
	out.API.Key = ""

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
