package config

import (
	"path/filepath"
	"time"
)

// DefaultConfig returns the configuration used before any file or
// environment override.
func DefaultConfig() *Config {
	state := GetDefaultStatePath()
	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.openai.com/v1",
			Timeout:    Duration(60 * time.Second),
			RetryCount: 3,
		},
		Assistant: AssistantConfig{
			Model: "gpt-4o",
			Name:  "Data Agent",
		},
		Models: ModelsConfig{
			Completion: "gpt-4o-mini",
			Vision:     "gpt-4o-mini",
			Embedding:  "text-embedding-3-large",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "test-database.db",
		},
		Scratch: ScratchConfig{
			Path: filepath.Join(state, "intermediary.db"),
		},
		Images: ImagesConfig{
			Dir:       "images",
			URLPrefix: "/images",
		},
		Run: RunConfig{
			PollInterval:    Duration(500 * time.Millisecond),
			Timeout:         Duration(2 * time.Minute),
			MaxPolls:        240,
			MaxActionRounds: 16,
			SnapshotMode:    "reuse",
		},
		Session: SessionConfig{
			Backend: "memory",
		},
		Server: ServerConfig{
			Addr: ":5000",
		},
		Storage: StorageConfig{
			Path: filepath.Join(state, "dataagent.db"),
		},
		Telemetry: TelemetryConfig{
			ServiceName: "dataagent",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
