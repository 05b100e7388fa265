package api

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/ebook/ebooktest"
	"github.com/booksy/booksy-server/internal/search"
)

func TestUploadBook(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)

	book := ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 2))
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "Middlemarch", book.Title)
	assert.Equal(t, "George Eliot", book.Author)
	assert.Equal(t, "middlemarch", book.Slug)
	assert.True(t, book.HasContent)
	assert.True(t, book.Active)
	assert.Equal(t, 4, book.TotalPages)
	assert.Positive(t, book.FileSize)
	assert.Equal(t, "en", book.Language)
	assert.Equal(t, "English", book.LanguageName)

	resp := ts.client.Get("/api/v1/books/"+book.ID, bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, book.ID, decodeData[BookResponse](t, resp).ID)
}

func TestUploadBook_DuplicateContent(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)
	fx := novel("Middlemarch", "George Eliot", 2)
	ts.upload(t, root.AccessToken, fx)

	resp := ts.client.Post("/api/v1/books/upload",
		bearer(root.AccessToken),
		"Content-Type: application/epub+zip",
		bytes.NewReader(ebooktest.Bytes(t, fx)),
	)
	require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
}

func TestUploadBook_NormalizesLanguage(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)

	fx := novel("Effi Briest", "Theodor Fontane", 1)
	fx.Language = "ger"
	book := ts.upload(t, root.AccessToken, fx)
	assert.Equal(t, "de", book.Language)
	assert.Equal(t, "German", book.LanguageName)

	lang := "fr_CA"
	resp := ts.client.Patch("/api/v1/books/"+book.ID, bearer(root.AccessToken), UpdateBookRequest{Language: &lang})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "fr", decodeData[BookResponse](t, resp).Language)
}

func TestUploadBook_RejectsNonEPUB(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)

	resp := ts.client.Post("/api/v1/books/upload",
		bearer(root.AccessToken),
		"Content-Type: application/epub+zip",
		bytes.NewReader([]byte("definitely not a zip archive")),
	)
	assert.GreaterOrEqual(t, resp.Code, 400)
	assert.Less(t, resp.Code, 500, resp.Body.String())
}

func TestUploadBook_MemberWithoutPermission(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)
	member := ts.addMember(t, "member@example.com")

	resp := ts.client.Post("/api/v1/books/upload",
		bearer(member.AccessToken),
		"Content-Type: application/epub+zip",
		bytes.NewReader(ebooktest.Bytes(t, novel("Emma", "Jane Austen", 1))),
	)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestListBooks_Pagination(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)

	for _, title := range []string{"Emma", "Persuasion", "Sanditon"} {
		resp := ts.client.Post("/api/v1/books", bearer(root.AccessToken),
			CreateBookRequest{Title: title, Author: "Jane Austen"})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}

	resp := ts.client.Get("/api/v1/books?limit=2", bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	first := decodeData[BookListResponse](t, resp)
	assert.Len(t, first.Books, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, 3, first.Total)
	require.NotEmpty(t, first.NextCursor)

	resp = ts.client.Get("/api/v1/books?limit=2&cursor="+first.NextCursor, bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	second := decodeData[BookListResponse](t, resp)
	assert.Len(t, second.Books, 1)
	assert.False(t, second.HasMore)

	for _, b := range second.Books {
		assert.False(t, b.HasContent, "metadata-only books cannot be read")
	}
}

func TestBooks_InactiveHiddenFromMembers(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)
	member := ts.addMember(t, "member@example.com")

	book := ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 1))

	resp := ts.client.Put("/api/v1/books/"+book.ID+"/active", bearer(member.AccessToken),
		map[string]bool{"active": false})
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.client.Put("/api/v1/books/"+book.ID+"/active", bearer(root.AccessToken),
		map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.False(t, decodeData[BookResponse](t, resp).Active)

	resp = ts.client.Get("/api/v1/books/"+book.ID, bearer(member.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	list := decodeData[BookListResponse](t, ts.client.Get("/api/v1/books", bearer(member.AccessToken)))
	assert.Empty(t, list.Books)
	assert.NotNil(t, list.Books)

	list = decodeData[BookListResponse](t, ts.client.Get("/api/v1/books", bearer(root.AccessToken)))
	assert.Len(t, list.Books, 1)
}

func TestUpdateAndDeleteBook(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)
	book := ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 1))

	title := "Middlemarch: A Study of Provincial Life"
	resp := ts.client.Patch("/api/v1/books/"+book.ID, bearer(root.AccessToken), UpdateBookRequest{Title: &title})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, title, decodeData[BookResponse](t, resp).Title)

	resp = ts.client.Delete("/api/v1/books/"+book.ID, bearer(root.AccessToken))
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.client.Get("/api/v1/books/"+book.ID, bearer(root.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDownloadBook(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)
	book := ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 1))

	resp := ts.client.Get("/api/v1/books/"+book.ID+"/download", bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/epub+zip", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), `filename="middlemarch.epub"`)
	assert.Equal(t, int(book.FileSize), resp.Body.Len())
	assert.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("PK")))
}

func TestCover_UploadAndFetch(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)
	book := ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 1))

	resp := ts.client.Get("/api/v1/covers/"+book.ID, bearer(root.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.client.Put("/api/v1/books/"+book.ID+"/cover",
		bearer(root.AccessToken),
		"Content-Type: image/png",
		bytes.NewReader(testPNG(t)),
	)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decodeData[BookResponse](t, resp)
	require.NotNil(t, updated.Cover)
	assert.Contains(t, updated.Cover.URL, "/api/v1/covers/"+book.ID)
	assert.NotEmpty(t, updated.Cover.BlurHash)

	resp = ts.client.Get("/api/v1/covers/"+book.ID, bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Body.Bytes())
	assert.Equal(t, CacheOneDayPrivate, resp.Header().Get("Cache-Control"))
}

func TestCover_EmptyBody(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)
	book := ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 1))

	resp := ts.client.Put("/api/v1/books/"+book.ID+"/cover",
		bearer(root.AccessToken),
		"Content-Type: image/png",
		bytes.NewReader(nil),
	)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decodeError(t, resp).Code)
}

func TestSearch(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)
	ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 1))
	resp := ts.client.Post("/api/v1/books", bearer(root.AccessToken),
		CreateBookRequest{Title: "Silas Marner", Author: "George Eliot"})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.client.Get("/api/v1/search?q=eliot", bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	result := decodeData[search.SearchResult](t, resp)
	assert.Equal(t, uint64(2), result.Total)

	resp = ts.client.Get("/api/v1/search?q=eliot&readable=true", bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	result = decodeData[search.SearchResult](t, resp)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "Middlemarch", result.Hits[0].Title)

	resp = ts.client.Get("/api/v1/search?sort=sideways", bearer(root.AccessToken))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestAdminStats(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)
	ts.addMember(t, "member@example.com")
	ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 1))

	resp := ts.client.Get("/api/v1/admin/stats", bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)

	stats := decodeData[StatsResponse](t, resp)
	assert.Equal(t, 1, stats.Books.Total)
	assert.Equal(t, 1, stats.Books.Active)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 0, stats.PendingUsers)
}

func testPNG(t *testing.T) []byte {
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
