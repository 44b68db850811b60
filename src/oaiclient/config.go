package oaiclient

import (
	"log/slog"
	"time"
)

// Config holds configuration for the hosted model client.
type Config struct {
	APIKey       string        // bearer credential, supplied from env or config
	BaseURL      string        // base URL of an OpenAI-compatible API
	Organization string        // optional OpenAI-Organization header
	Logger       *slog.Logger  // Logger for debugging
	Timeout      time.Duration // HTTP timeout
	RetryCount   int           // Number of attempts for failed requests
	RetryDelay   time.Duration // Delay between retries, multiplied by the attempt number
}
