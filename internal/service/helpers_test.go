package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/auth"
	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/ebook/ebooktest"
	"github.com/booksy/booksy-server/internal/id"
	"github.com/booksy/booksy-server/internal/media/images"
	"github.com/booksy/booksy-server/internal/search"
	"github.com/booksy/booksy-server/internal/store"
	"github.com/booksy/booksy-server/internal/store/kvstore"
)

const testPassword = "correct horse battery"

// testEnv wires every service against a badger store and a bleve index in a
// temp directory.
type testEnv struct {
	cfg      *config.Config
	store    store.Store
	index    *search.SearchIndex
	tokens   *auth.TokenService
	instance *InstanceService
	sessions *SessionService
	auth     *AuthService
	users    *UserService
	books    *BookService
	reader   *ReaderService
	search   *SearchService
	imports  *ImportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	cfg := &config.Config{
		App:      config.AppConfig{Environment: "development"},
		Logger:   config.LoggerConfig{Level: "info"},
		Metadata: config.MetadataConfig{BasePath: dir},
		Library:  config.LibraryConfig{BooksPath: filepath.Join(dir, "books")},
		Store:    config.StoreConfig{Backend: config.BackendBadger},
		Server:   config.ServerConfig{Name: "Test Server", LocalURL: "http://localhost:8080"},
		Auth: config.AuthConfig{
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 24 * time.Hour,
		},
		Reader: config.ReaderConfig{WordsPerPage: 50, SessionIdleTTL: time.Hour},
	}

	st, err := kvstore.Open(cfg.DatabasePath(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewSearchIndex(search.Options{DataPath: cfg.SearchPath()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	st.SetSearchIndexer(index)

	key, err := auth.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
	require.NoError(t, err)

	coverStorage, err := images.NewStorage(cfg.CoversPath())
	require.NoError(t, err)

	env := &testEnv{cfg: cfg, store: st, index: index, tokens: tokens}
	env.instance = NewInstanceService(st, nil, cfg)
	env.sessions = NewSessionService(st, tokens, nil)
	env.auth = NewAuthService(st, tokens, env.sessions, env.instance, nil)
	env.users = NewUserService(st, nil)
	env.books = NewBookService(st, images.NewProcessor(coverStorage, nil), cfg, nil)
	env.search = NewSearchService(index, st, nil)
	env.imports = NewImportService(env.books, env.instance, nil)
	t.Cleanup(env.imports.Close)

	env.reader, err = NewReaderService(st, env.books, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { env.reader.CloseAll(context.Background()) })

	_, err = env.instance.InitializeInstance(ctx)
	require.NoError(t, err)
	return env
}

// setupRoot runs first-time setup and returns the root admin.
func (e *testEnv) setupRoot(t *testing.T) *domain.User {
	t.Helper()
	resp, err := e.auth.Setup(context.Background(), SetupRequest{
		Email:       "root@example.com",
		Password:    testPassword,
		DisplayName: "Root",
	}, auth.DeviceInfo{})
	require.NoError(t, err)
	return resp.User
}

// addUser stores a user directly, bypassing registration.
func (e *testEnv) addUser(t *testing.T, email string, role domain.Role, status domain.UserStatus) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)

	user := &domain.User{
		Syncable:     domain.Syncable{ID: id.MustGenerate(id.PrefixUser)},
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		DisplayName:  strings.Split(email, "@")[0],
		Permissions:  domain.DefaultPermissions(),
	}
	user.InitTimestamps()
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) member(t *testing.T, email string) *domain.User {
	t.Helper()
	return e.addUser(t, email, domain.RoleMember, domain.UserStatusActive)
}

// uploadBook uploads a generated EPUB as user.
func (e *testEnv) uploadBook(t *testing.T, user *domain.User, fx ebooktest.Fixture) *domain.Book {
	t.Helper()
	book, err := e.books.UploadEPUB(context.Background(), user, bytes.NewReader(ebooktest.Bytes(t, fx)), UploadMetadata{Filename: "upload.epub"})
	require.NoError(t, err)
	return book
}

// novel returns a fixture of chapters*2 pages at 50 words per page: each
// chapter holds four 25-word paragraphs.
func novel(title, author string, chapters int) ebooktest.Fixture {
	fx := ebooktest.Fixture{Title: title, Author: author, Description: "A test book."}
	for c := range chapters {
		var body strings.Builder
		for p := range 4 {
			fmt.Fprintf(&body, "<p>%s</p>", ebooktest.Words(fmt.Sprintf("c%dp%dw", c, p), 25))
		}
		fx.Chapters = append(fx.Chapters, body.String())
	}
	return fx
}

// pngBytes returns a small valid PNG.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 12))
	for x := range 8 {
		for y := range 12 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 20), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func webDevice() auth.DeviceInfo {
	return auth.DeviceInfo{DeviceType: "web", Platform: "Linux", ClientName: "Booksy Web", ClientVersion: "1.0.0"}
}
