package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader(t *testing.T, dir string) *Loader {
	t.Helper()
	return NewLoader(ConfigPrecedence{
		UserConfig:        filepath.Join(dir, "user.json"),
		ProjectConfig:     filepath.Join(dir, "project.json"),
		EnvFile:           filepath.Join(dir, ".env"),
		EnvironmentPrefix: EnvironmentPrefix,
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "gpt-4o", config.Assistant.Model)
	assert.Equal(t, "Data Agent", config.Assistant.Name)
	assert.Equal(t, "text-embedding-3-large", config.Models.Embedding)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, "memory", config.Session.Backend)
	assert.Equal(t, 2*time.Minute, config.Run.Timeout.Std())
	assert.NoError(t, NewValidator().Validate(config))
}

func TestConfigValidation(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, field: "Config.Database.Driver", wantErr: true},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = "" }, field: "Config.Database.DSN", wantErr: true},
		{name: "unknown session backend", mutate: func(c *Config) { c.Session.Backend = "etcd" }, wantErr: true},
		{name: "redis without url", mutate: func(c *Config) { c.Session.Backend = "redis" }, field: "Config.Session.RedisURL", wantErr: true},
		{name: "redis with url", mutate: func(c *Config) { c.Session.Backend = "redis"; c.Session.RedisURL = "redis://localhost:6379/0" }},
		{name: "bad snapshot mode", mutate: func(c *Config) { c.Run.SnapshotMode = "twice" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Run.Timeout = Duration(-time.Second) }, wantErr: true},
		{name: "bad base url", mutate: func(c *Config) { c.API.BaseURL = "not a url" }, wantErr: true},
		{name: "relative url prefix", mutate: func(c *Config) { c.Images.URLPrefix = "images" }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := validator.Validate(c)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			if tt.field != "" {
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}
}

func TestLoaderMergesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "user.json"), `{"database":{"driver":"postgres","dsn":"postgres://u@h/db"},"run":{"timeout":"30s"}}`)
	writeFile(t, filepath.Join(dir, "project.json"), `{"database":{"dsn":"postgres://u@h/other"},"server":{"addr":":8080"}}`)

	l := testLoader(t, dir)
	c, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", c.Database.Driver)
	assert.Equal(t, "postgres://u@h/other", c.Database.DSN)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 30*time.Second, c.Run.Timeout.Std())
	assert.Equal(t, 240, c.Run.MaxPolls, "defaults survive partial files")
	require.Len(t, l.Loaded(), 2)
	assert.Equal(t, SourceUser, l.Loaded()[0].Source)
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()

	l := testLoader(t, dir)
	l.precedence.ExplicitConfig = filepath.Join(dir, "missing.json")
	_, err := l.Load()
	assert.Error(t, err, "an explicit config file must exist")

	writeFile(t, filepath.Join(dir, "project.json"), `{"databse":{}}`)
	_, err = testLoader(t, dir).Load()
	assert.ErrorContains(t, err, "failed to parse JSON")

	writeFile(t, filepath.Join(dir, "project.json"), `{"session":{"backend":"zookeeper"}}`)
	_, err = testLoader(t, dir).Load()
	var verr ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATAAGENT_DATABASE_DSN", "env.db")
	t.Setenv("DATAAGENT_RUN_POLL_INTERVAL", "250ms")
	t.Setenv("DATAAGENT_SESSION_BACKEND", "sqlite")
	t.Setenv("DATAAGENT_SCRATCH_SHARED", "true")
	t.Setenv("DATAAGENT_API_KEY", "")
	t.Setenv(OpenAIKeyEnv, "sk-from-openai-env")

	c, err := testLoader(t, dir).Load()
	require.NoError(t, err)
	assert.Equal(t, "env.db", c.Database.DSN)
	assert.Equal(t, 250*time.Millisecond, c.Run.PollInterval.Std())
	assert.Equal(t, "sqlite", c.Session.Backend)
	assert.True(t, c.Scratch.Shared)
	assert.Equal(t, "sk-from-openai-env", c.API.Key)
}

func TestPrefixedKeyWins(t *testing.T) {
	t.Setenv("DATAAGENT_API_KEY", "sk-prefixed")
	t.Setenv(OpenAIKeyEnv, "sk-openai")

	c, err := testLoader(t, t.TempDir()).Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-prefixed", c.API.Key)
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	const key = "DATAAGENT_ASSISTANT_ID"
	t.Setenv(key, "")
	os.Unsetenv(key)
	writeFile(t, filepath.Join(dir, ".env"), key+"=asst_from_dotenv\n")

	c, err := testLoader(t, dir).Load()
	require.NoError(t, err)
	assert.Equal(t, "asst_from_dotenv", c.Assistant.ID)
}

func TestSaveFileDropsKey(t *testing.T) {
	dir := t.TempDir()
	c := DefaultConfig()
	c.API.Key = "sk-secret"
	c.Assistant.ID = "asst_123"

	path := filepath.Join(dir, "nested", "config.json")
	require.NoError(t, testLoader(t, dir).SaveFile(c, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
	assert.Contains(t, string(data), "asst_123")
	assert.Contains(t, string(data), `"timeout": "2m0s"`)
	assert.Equal(t, "sk-secret", c.API.Key, "caller's config is not modified")

	loaded := DefaultConfig()
	require.NoError(t, testLoader(t, dir).mergeFile(loaded, path))
	assert.Equal(t, "asst_123", loaded.Assistant.ID)
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000000`)))
	assert.Equal(t, time.Second, d.Std())

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
