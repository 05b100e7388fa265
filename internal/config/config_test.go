package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		Metadata: MetadataConfig{BasePath: "/var/lib/booksy"},
		Store:    StoreConfig{Backend: BackendBadger},
		Reader:   ReaderConfig{WordsPerPage: 300},
	}
}

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// missingEnvFile keeps tests from picking up a .env in the package directory.
func missingEnvFile(t *testing.T) string {
	return "-env-file=" + filepath.Join(t.TempDir(), "absent.env")
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty metadata path", func(c *Config) { c.Metadata.BasePath = "" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"words per page too low", func(c *Config) { c.Reader.WordsPerPage = 10 }},
		{"watch without inbox", func(c *Config) { c.Library.WatchEnabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	meta := t.TempDir()

	cfg, err := Load([]string{missingEnvFile(t), "-metadata-path", meta}, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, meta, cfg.Metadata.BasePath)
	assert.Equal(t, filepath.Join(meta, "books"), cfg.Library.BooksPath)
	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, 300, cfg.Reader.WordsPerPage)
	assert.Equal(t, 2*time.Hour, cfg.Reader.SessionIdleTTL)
	assert.False(t, cfg.Library.WatchEnabled)
	assert.Equal(t, filepath.Join(meta, "db"), cfg.DatabasePath())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`
# comment
export SERVER_PORT="9000"
LOG_LEVEL=debug
SERVER_NAME='From Dotenv'
`), 0o600))

	env := envMap(map[string]string{
		"LOG_LEVEL":     "warn",
		"STORE_BACKEND": "SQLite",
		"METADATA_PATH": dir,
	})

	cfg, err := Load([]string{"-env-file", envFile, "-server-name", "From Flag"}, env)
	require.NoError(t, err)

	assert.Equal(t, "From Flag", cfg.Server.Name)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dir, "booksy.db"), cfg.DatabasePath())
}

func TestLoad_InboxEnablesWatch(t *testing.T) {
	meta := t.TempDir()
	inbox := t.TempDir()

	cfg, err := Load([]string{missingEnvFile(t), "-metadata-path", meta, "-inbox-path", inbox}, noEnv)
	require.NoError(t, err)
	assert.True(t, cfg.Library.WatchEnabled)
	assert.Equal(t, inbox, cfg.Library.InboxPath)

	cfg, err = Load([]string{missingEnvFile(t), "-metadata-path", meta, "-inbox-path", inbox, "-watch", "no"}, noEnv)
	require.NoError(t, err)
	assert.False(t, cfg.Library.WatchEnabled)
}

func TestLoad_InvalidValues(t *testing.T) {
	meta := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"bad duration", []string{"-access-token-duration", "soon"}},
		{"bad words", []string{"-words-per-page", "many"}},
		{"bad env", []string{"-env", "qa"}},
		{"unknown flag", []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{missingEnvFile(t), "-metadata-path", meta}, tt.args...)
			_, err := Load(args, noEnv)
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/books", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "books"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("relative", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
