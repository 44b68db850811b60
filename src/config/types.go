// Package config loads dataagent configuration from defaults, JSON files,
// a .env file and the environment, in that order. Environment variables are
// named DATAAGENT_<SECTION>_<FIELD>, for example DATAAGENT_RUN_POLL_INTERVAL.
package config

import (
	"log/slog"
)

// Config represents the complete configuration for dataagent
type Config struct {
	API       APIConfig       `json:"api" split_words:"true"`
	Assistant AssistantConfig `json:"assistant" split_words:"true"`
	Models    ModelsConfig    `json:"models" split_words:"true"`
	Database  DatabaseConfig  `json:"database" split_words:"true"`
	Scratch   ScratchConfig   `json:"scratch" split_words:"true"`
	Images    ImagesConfig    `json:"images" split_words:"true"`
	Keywords  KeywordsConfig  `json:"keywords" split_words:"true"`
	Run       RunConfig       `json:"run" split_words:"true"`
	Session   SessionConfig   `json:"session" split_words:"true"`
	Server    ServerConfig    `json:"server" split_words:"true"`
	Storage   StorageConfig   `json:"storage" split_words:"true"`
	Telemetry TelemetryConfig `json:"telemetry" split_words:"true"`
	Logging   LoggingConfig   `json:"logging" split_words:"true"`
}

// APIConfig holds API-related configuration
type APIConfig struct {
	// Key is never written back by SaveFile and never logged.
	Key        string   `json:"key,omitempty" split_words:"true"`
	BaseURL    string   `json:"base_url,omitempty" split_words:"true" validate:"omitempty,url"`
	Timeout    Duration `json:"timeout,omitempty" split_words:"true" validate:"min=0"`
	RetryCount int      `json:"retry_count,omitempty" split_words:"true" validate:"min=0,max=10"`
}

// LogValue keeps the key out of structured logs.
func (a APIConfig) LogValue() slog.Value {
	key := ""
	if a.Key != "" {
		key = "[redacted]"
	}
	return slog.GroupValue(
		slog.String("key", key),
		slog.String("base_url", a.BaseURL),
		slog.Duration("timeout", a.Timeout.Std()),
		slog.Int("retry_count", a.RetryCount),
	)
}

// AssistantConfig identifies the hosted assistant that runs are created for.
type AssistantConfig struct {
	ID    string `json:"id,omitempty" split_words:"true"`
	Model string `json:"model" split_words:"true" validate:"required"`
	Name  string `json:"name" split_words:"true" validate:"required"`
}

type ModelsConfig struct {
	Completion string `json:"completion" split_words:"true" validate:"required"`
	Vision     string `json:"vision" split_words:"true" validate:"required"`
	Embedding  string `json:"embedding" split_words:"true" validate:"required"`
}

// DatabaseConfig points at the primary database the tools query.
type DatabaseConfig struct {
	Driver string `json:"driver" split_words:"true" validate:"required,db_driver"`
	DSN    string `json:"dsn" split_words:"true" validate:"required"`
}

// ScratchConfig holds the database that keeps intermediary query results.
type ScratchConfig struct {
	Path string `json:"path" split_words:"true" validate:"required"`
	// Shared keeps one table for every session. Concurrent sessions overwrite
	// each other's data.
	Shared bool `json:"shared" split_words:"true"`
}

type ImagesConfig struct {
	Dir       string `json:"dir" split_words:"true" validate:"required"`
	URLPrefix string `json:"url_prefix" split_words:"true" validate:"required,startswith=/"`
}

// KeywordsConfig locates the keyword embedding CSV. An empty path disables
// the keyword similarity tool.
type KeywordsConfig struct {
	CSVPath string `json:"csv_path,omitempty" split_words:"true"`
}

// RunConfig bounds driven runs. Zero values take the driver defaults.
type RunConfig struct {
	PollInterval    Duration `json:"poll_interval,omitempty" split_words:"true" validate:"min=0"`
	Timeout         Duration `json:"timeout,omitempty" split_words:"true" validate:"min=0"`
	MaxPolls        int      `json:"max_polls,omitempty" split_words:"true" validate:"min=0"`
	MaxActionRounds int      `json:"max_action_rounds,omitempty" split_words:"true" validate:"min=0"`
	SnapshotMode    string   `json:"snapshot_mode,omitempty" split_words:"true" validate:"snapshot_mode"`
}

type SessionConfig struct {
	Backend  string   `json:"backend" split_words:"true" validate:"session_backend"`
	RedisURL string   `json:"redis_url,omitempty" split_words:"true" validate:"required_if=Backend redis"`
	TTL      Duration `json:"ttl,omitempty" split_words:"true" validate:"min=0"`
}

type ServerConfig struct {
	Addr string `json:"addr" split_words:"true" validate:"required"`
}

// StorageConfig holds the application database (sessions, run history).
type StorageConfig struct {
	Path string `json:"path" split_words:"true" validate:"required"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" split_words:"true"`
	ServiceName  string `json:"service_name" split_words:"true" validate:"required"`
}

type LoggingConfig struct {
	Level string `json:"level" split_words:"true" validate:"log_level"`
	// File receives JSON logs from serve in addition to stderr.
	File string `json:"file,omitempty" split_words:"true"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceCLI         ConfigSource = "cli"
	SourceEnvironment ConfigSource = "environment"
)
