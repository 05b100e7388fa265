// Package config loads server configuration from flags, environment variables
// and a .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Version is the server build version, set at link time with
// -ldflags "-X github.com/booksy/booksy-server/internal/config.Version=...".
var Version = "dev"

// Store backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Metadata MetadataConfig
	Library  LibraryConfig
	Store    StoreConfig
	Server   ServerConfig
	Auth     AuthConfig
	Reader   ReaderConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string
}

// MetadataConfig holds the root directory for server-owned data: the
// database, search index, covers, uploaded books and the auth key.
type MetadataConfig struct {
	BasePath string
}

// LibraryConfig holds settings for the book library on disk.
type LibraryConfig struct {
	BooksPath    string // uploaded and imported EPUBs (default: {metadata}/books)
	InboxPath    string // drop folder watched for new EPUBs (optional)
	WatchEnabled bool
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string // badger or sqlite
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Name          string
	LocalURL      string
	RemoteURL     string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	AdvertiseMDNS bool
	CORSOrigins   []string
}

// AuthConfig holds token settings. AccessTokenKey is filled in at startup
// from the key file under the metadata path.
type AuthConfig struct {
	AccessTokenKey       []byte
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// ReaderConfig holds e-reader settings.
type ReaderConfig struct {
	WordsPerPage   int
	SessionIdleTTL time.Duration // open reader sessions are dropped after this much inactivity
}

// LoadConfig loads configuration for the server binary from os.Args and the
// process environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], os.Getenv)
}

// Load resolves every setting with this precedence:
//  1. command-line flags
//  2. environment variables
//  3. the .env file (only fills variables not already set)
//  4. defaults
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("booksy", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	metadataPath := fs.String("metadata-path", "", "Base path for server data")
	booksPath := fs.String("books-path", "", "Directory for stored EPUB files")
	inboxPath := fs.String("inbox-path", "", "Directory watched for new EPUB files")
	watchEnabled := fs.String("watch", "", "Watch the inbox for new books (default: true when inbox is set)")
	storeBackend := fs.String("store", "", "Store backend: badger or sqlite (default: badger)")
	serverName := fs.String("server-name", "", "Name for the server")
	localURL := fs.String("local-url", "", "Local network URL")
	remoteURL := fs.String("remote-url", "", "Remote access URL")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	advertiseMDNS := fs.String("advertise-mdns", "", "Advertise via mDNS (default: true)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed CORS origins (default: *)")
	accessTTL := fs.String("access-token-duration", "", "Access token lifetime (default: 15m)")
	refreshTTL := fs.String("refresh-token-duration", "", "Refresh token lifetime (default: 720h)")
	wordsPerPage := fs.String("words-per-page", "", "Words per reader page (default: 300)")
	sessionTTL := fs.String("reader-session-ttl", "", "Idle lifetime of open reader sessions (default: 2h)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	// A missing .env file is normal.
	dotenv, err := readEnvFile(*envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	r := resolver{getenv: getenv, dotenv: dotenv}

	cfg := &Config{
		App:      AppConfig{Environment: r.str(*env, "ENV", "development")},
		Logger:   LoggerConfig{Level: r.str(*logLevel, "LOG_LEVEL", "info")},
		Metadata: MetadataConfig{BasePath: r.str(*metadataPath, "METADATA_PATH", "")},
		Library: LibraryConfig{
			BooksPath: r.str(*booksPath, "BOOKS_PATH", ""),
			InboxPath: r.str(*inboxPath, "INBOX_PATH", ""),
		},
		Store: StoreConfig{Backend: strings.ToLower(r.str(*storeBackend, "STORE_BACKEND", BackendBadger))},
		Server: ServerConfig{
			Name:          r.str(*serverName, "SERVER_NAME", "Booksy"),
			LocalURL:      r.str(*localURL, "SERVER_LOCAL_URL", ""),
			RemoteURL:     r.str(*remoteURL, "SERVER_REMOTE_URL", ""),
			Port:          r.str(*port, "SERVER_PORT", "8080"),
			AdvertiseMDNS: r.boolean(*advertiseMDNS, "ADVERTISE_MDNS", true),
			CORSOrigins:   splitList(r.str(*corsOrigins, "CORS_ORIGINS", "*")),
		},
	}
	cfg.Library.WatchEnabled = r.boolean(*watchEnabled, "INBOX_WATCH", cfg.Library.InboxPath != "")

	durations := []struct {
		flag, key, def, name string
		dst                  *time.Duration
	}{
		{*accessTTL, "ACCESS_TOKEN_DURATION", "15m", "access token duration", &cfg.Auth.AccessTokenDuration},
		{*refreshTTL, "REFRESH_TOKEN_DURATION", "720h", "refresh token duration", &cfg.Auth.RefreshTokenDuration},
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", "read timeout", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "30s", "write timeout", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", "idle timeout", &cfg.Server.IdleTimeout},
		{*sessionTTL, "READER_SESSION_TTL", "2h", "reader session ttl", &cfg.Reader.SessionIdleTTL},
	}
	for _, d := range durations {
		raw := r.str(d.flag, d.key, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
		}
		*d.dst = parsed
	}

	words := r.str(*wordsPerPage, "WORDS_PER_PAGE", "300")
	cfg.Reader.WordsPerPage, err = strconv.Atoi(words)
	if err != nil {
		return nil, fmt.Errorf("invalid words per page %q: %w", words, err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize expands paths and validates the result. Callers that build a
// Config by hand (tests, the CLI) run it before use.
func (c *Config) Finalize() error {
	if err := c.expandPaths(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Validate checks that all required values are present and in range.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}
	if !slices.Contains([]string{"development", "staging", "production"}, c.App.Environment) {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logger.Level)) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Metadata.BasePath == "" {
		return errors.New("metadata base path cannot be empty after expansion")
	}

	switch c.Store.Backend {
	case BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("invalid store backend: %s (must be badger or sqlite)", c.Store.Backend)
	}

	if c.Reader.WordsPerPage < 50 || c.Reader.WordsPerPage > 5000 {
		return fmt.Errorf("words per page must be between 50 and 5000, got %d", c.Reader.WordsPerPage)
	}

	if c.Library.WatchEnabled && c.Library.InboxPath == "" {
		return errors.New("inbox watching requires an inbox path")
	}

	return nil
}

// DatabasePath returns where the selected backend keeps its data.
func (c *Config) DatabasePath() string {
	if c.Store.Backend == BackendSQLite {
		return filepath.Join(c.Metadata.BasePath, "booksy.db")
	}
	return filepath.Join(c.Metadata.BasePath, "db")
}

// SearchPath returns the search index directory.
func (c *Config) SearchPath() string {
	return filepath.Join(c.Metadata.BasePath, "search")
}

// CoversPath returns the cover image directory.
func (c *Config) CoversPath() string {
	return filepath.Join(c.Metadata.BasePath, "covers")
}

func (c *Config) expandPaths() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Metadata.BasePath, err = expandPath(c.Metadata.BasePath, filepath.Join(home, "Booksy", "metadata")); err != nil {
		return fmt.Errorf("invalid metadata path: %w", err)
	}
	if c.Library.BooksPath, err = expandPath(c.Library.BooksPath, filepath.Join(c.Metadata.BasePath, "books")); err != nil {
		return fmt.Errorf("invalid books path: %w", err)
	}
	if c.Library.InboxPath, err = expandPath(c.Library.InboxPath, ""); err != nil {
		return fmt.Errorf("invalid inbox path: %w", err)
	}
	return nil
}

// expandPath expands a leading ~ and makes path absolute. An empty path
// becomes defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, rest)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
