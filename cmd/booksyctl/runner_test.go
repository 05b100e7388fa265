package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/booksy/booksy-server/internal/auth"
	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/di/providers"
	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/ebook/ebooktest"
	"github.com/booksy/booksy-server/internal/id"
	"github.com/booksy/booksy-server/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		App:      config.AppConfig{Environment: "development"},
		Logger:   config.LoggerConfig{Level: "error"},
		Metadata: config.MetadataConfig{BasePath: dir},
		Library:  config.LibraryConfig{BooksPath: filepath.Join(dir, "books")},
		Store:    config.StoreConfig{Backend: config.BackendSQLite},
		Reader:   config.ReaderConfig{WordsPerPage: 50, SessionIdleTTL: time.Hour},
	}
}

// run executes one booksyctl invocation against cfg and returns its output.
func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := NewRunner(RunnerOpts{
		Config: cfg,
		Output: &out,
		Logger: log.New(io.Discard),
	})
	app := &cli.Command{
		Name:     "booksyctl",
		Before:   r.Open,
		After:    r.Close,
		Commands: r.register(),
	}
	err := app.Run(context.Background(), append([]string{"booksyctl"}, args...))
	return out.String(), err
}

func epub(t *testing.T, title string) string {
	t.Helper()
	return ebooktest.Write(t, ebooktest.Fixture{
		Title:    title,
		Author:   "George Eliot",
		Chapters: []string{"<p>" + ebooktest.Words("w", 120) + "</p>"},
	})
}

func TestImportAndInspect(t *testing.T) {
	cfg := testConfig(t)
	path := epub(t, "Middlemarch")

	out, err := run(t, cfg, "import", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ Middlemarch")
	assert.Contains(t, out, "1 added, 0 duplicate, 0 failed")

	out, err = run(t, cfg, "import", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 added, 1 duplicate, 0 failed")

	out, err = run(t, cfg, "inspect", "--json")
	require.NoError(t, err)
	var stats Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Books.Total)
	assert.Equal(t, uint64(1), stats.IndexedBooks)
	assert.False(t, stats.SetupCompleted)
	assert.Equal(t, config.BackendSQLite, stats.Store)
}

func TestImport_Directory(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	data, err := os.ReadFile(epub(t, "Silas Marner"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "silas.epub"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	out, err := run(t, cfg, "import", "--json", dir)
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Silas Marner", results[0]["title"])
}

func TestImport_RequiresPath(t *testing.T) {
	_, err := run(t, testConfig(t), "import")
	assert.Error(t, err)
}

func TestReindex(t *testing.T) {
	cfg := testConfig(t)
	_, err := run(t, cfg, "import", epub(t, "Romola"))
	require.NoError(t, err)

	out, err := run(t, cfg, "reindex")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 1 books")
}

func TestUsers_ListAndApprove(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "users", "approve", "user-nobody")
	require.ErrorContains(t, err, "setup has not been completed")

	pendingID := seedUsers(t, cfg)

	out, err := run(t, cfg, "users", "list", "--pending", "--json")
	require.NoError(t, err)
	var pending []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, pendingID, pending[0]["id"])

	out, err = run(t, cfg, "users", "approve", pendingID)
	require.NoError(t, err)
	assert.Contains(t, out, "Approved pending@example.com")

	out, err = run(t, cfg, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "root@example.com")
	assert.Contains(t, out, "root")

	out, err = run(t, cfg, "users", "list", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No users")
}

func TestPruneSessions(t *testing.T) {
	out, err := run(t, testConfig(t), "prune-sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 expired session(s)")
}

// seedUsers stores a root admin and one pending member and returns the
// member's ID. The instance record must already exist.
func seedUsers(t *testing.T, cfg *config.Config) string {
	t.Helper()
	ctx := context.Background()

	st, err := providers.OpenStore(cfg, &logger.Logger{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	defer st.Close()

	hash, err := auth.HashPassword("correct horse battery")
	require.NoError(t, err)

	root := &domain.User{
		Syncable:     domain.Syncable{ID: id.MustGenerate(id.PrefixUser)},
		Email:        "root@example.com",
		PasswordHash: hash,
		IsRoot:       true,
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusActive,
		DisplayName:  "Root",
	}
	root.InitTimestamps()
	require.NoError(t, st.CreateUser(ctx, root))

	inst, err := st.GetInstance(ctx)
	require.NoError(t, err)
	inst.SetRootUser(root.ID)
	require.NoError(t, st.SaveInstance(ctx, inst))

	member := &domain.User{
		Syncable:     domain.Syncable{ID: id.MustGenerate(id.PrefixUser)},
		Email:        "pending@example.com",
		PasswordHash: hash,
		Role:         domain.RoleMember,
		Status:       domain.UserStatusPending,
		DisplayName:  "Pending",
		Permissions:  domain.DefaultPermissions(),
	}
	member.InitTimestamps()
	require.NoError(t, st.CreateUser(ctx, member))

	return member.ID
}
