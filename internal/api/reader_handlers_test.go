package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/reader"
	"github.com/booksy/booksy-server/internal/service"
)

// openBook uploads a three chapter novel and opens it for the root user.
func openBook(t *testing.T, ts *testServer) (AuthResponse, BookResponse, service.SessionView) {
	t.Helper()
	root := ts.setupRoot(t)
	book := ts.upload(t, root.AccessToken, novel("Middlemarch", "George Eliot", 3))

	resp := ts.client.Post("/api/v1/reader/sessions", bearer(root.AccessToken),
		map[string]string{"book_id": book.ID})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return root, book, decodeData[service.SessionView](t, resp)
}

func TestReader_OpenAndNavigate(t *testing.T) {
	ts := setupTestServer(t)
	root, book, view := openBook(t, ts)
	token := bearer(root.AccessToken)
	base := "/api/v1/reader/sessions/" + view.ID

	assert.Equal(t, book.ID, view.BookID)
	assert.Equal(t, 1, view.CurrentPage)
	assert.Equal(t, 6, view.TotalPages)
	assert.NotNil(t, view.Bookmarks)

	resp := ts.client.Post(base+"/previous", token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, decodeData[service.SessionView](t, resp).CurrentPage)

	resp = ts.client.Post(base+"/next", token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, decodeData[service.SessionView](t, resp).CurrentPage)

	resp = ts.client.Post(base+"/goto", token, map[string]int{"page": 150})
	require.Equal(t, http.StatusOK, resp.Code)
	last := decodeData[service.SessionView](t, resp)
	assert.Equal(t, 6, last.CurrentPage)
	assert.InDelta(t, 100.0, last.Progress, 0.001)

	resp = ts.client.Post(base+"/goto", token, map[string]int{"page": -3})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, decodeData[service.SessionView](t, resp).CurrentPage)

	resp = ts.client.Get(base, token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, decodeData[service.SessionView](t, resp).CurrentPage)
}

func TestReader_ReopenReturnsSameSession(t *testing.T) {
	ts := setupTestServer(t)
	root, book, view := openBook(t, ts)

	resp := ts.client.Post("/api/v1/reader/sessions", bearer(root.AccessToken),
		map[string]string{"book_id": book.ID})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, view.ID, decodeData[service.SessionView](t, resp).ID)
}

func TestReader_Bookmarks(t *testing.T) {
	ts := setupTestServer(t)
	root, _, view := openBook(t, ts)
	token := bearer(root.AccessToken)
	base := "/api/v1/reader/sessions/" + view.ID

	ts.client.Post(base+"/goto", token, map[string]int{"page": 4})
	resp := ts.client.Post(base+"/bookmarks/toggle", token)
	require.Equal(t, http.StatusOK, resp.Code)
	marked := decodeData[service.SessionView](t, resp)
	assert.True(t, marked.IsBookmarked)
	assert.Equal(t, []int{4}, marked.Bookmarks)

	ts.client.Post(base+"/goto", token, map[string]int{"page": 1})

	resp = ts.client.Post(base+"/bookmarks/jump", token, map[string]int{"page": 4})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 4, decodeData[service.SessionView](t, resp).CurrentPage)

	resp = ts.client.Post(base+"/bookmarks/toggle", token)
	require.Equal(t, http.StatusOK, resp.Code)
	unmarked := decodeData[service.SessionView](t, resp)
	assert.False(t, unmarked.IsBookmarked)
	assert.Empty(t, unmarked.Bookmarks)
}

func TestReader_Preferences(t *testing.T) {
	ts := setupTestServer(t)
	root, _, view := openBook(t, ts)
	token := bearer(root.AccessToken)
	path := "/api/v1/reader/sessions/" + view.ID + "/preferences"

	resp := ts.client.Patch(path, token, map[string]any{"key": "font_size", "value": 40})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	rejected := decodeData[PreferenceUpdateResponse](t, resp)
	assert.True(t, rejected.Result.Rejected)
	assert.NotEmpty(t, rejected.Result.Reason)
	assert.Equal(t, reader.DefaultPrefs().FontSize, rejected.Session.Prefs.FontSize)

	resp = ts.client.Patch(path, token, map[string]any{"key": "font_size", "value": 20})
	require.Equal(t, http.StatusOK, resp.Code)
	accepted := decodeData[PreferenceUpdateResponse](t, resp)
	assert.False(t, accepted.Result.Rejected)
	assert.Equal(t, 20, accepted.Session.Prefs.FontSize)

	resp = ts.client.Patch(path, token, map[string]any{"key": "reading_mode", "value": "sepia"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, reader.ModeSepia, decodeData[PreferenceUpdateResponse](t, resp).Session.Prefs.ReadingMode)

	resp = ts.client.Patch(path, token, map[string]any{"key": "margin", "value": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, "unknown keys fail validation")

	resp = ts.client.Get("/api/v1/reader/preferences", token)
	require.Equal(t, http.StatusOK, resp.Code)
	prefs := decodeData[reader.Prefs](t, resp)
	assert.Equal(t, 20, prefs.FontSize)
	assert.Equal(t, reader.ModeSepia, prefs.ReadingMode)
}

func TestReader_Content(t *testing.T) {
	ts := setupTestServer(t)
	root, _, view := openBook(t, ts)
	token := bearer(root.AccessToken)
	base := "/api/v1/reader/sessions/" + view.ID + "/content"

	resp := ts.client.Get(base, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	text := decodeData[service.PageContent](t, resp)
	assert.Equal(t, 1, text.Number)
	assert.Equal(t, "text", text.Format)
	assert.Contains(t, text.Content, "c0p0w1")

	resp = ts.client.Get(base+"?format=markdown", token)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "markdown", decodeData[service.PageContent](t, resp).Format)

	resp = ts.client.Get(base+"?format=pdf", token)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestReader_CloseSavesProgress(t *testing.T) {
	ts := setupTestServer(t)
	root, book, view := openBook(t, ts)
	token := bearer(root.AccessToken)
	base := "/api/v1/reader/sessions/" + view.ID

	ts.client.Post(base+"/goto", token, map[string]int{"page": 3})

	resp := ts.client.Delete(base, token)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.client.Get(base, token)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.client.Get("/api/v1/reader/progress", token)
	require.Equal(t, http.StatusOK, resp.Code)
	progress := decodeData[struct {
		Progress []service.ProgressView `json:"progress"`
	}](t, resp)
	require.Len(t, progress.Progress, 1)
	assert.Equal(t, book.ID, progress.Progress[0].BookID)
	assert.Equal(t, 3, progress.Progress[0].CurrentPage)

	resp = ts.client.Post("/api/v1/reader/sessions", token, map[string]string{"book_id": book.ID})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 3, decodeData[service.SessionView](t, resp).CurrentPage, "reopen resumes saved page")
}

func TestReader_OtherUsersSessionNotFound(t *testing.T) {
	ts := setupTestServer(t)
	_, _, view := openBook(t, ts)
	member := ts.addMember(t, "member@example.com")

	resp := ts.client.Get("/api/v1/reader/sessions/"+view.ID, bearer(member.AccessToken))
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Code)

	resp = ts.client.Delete("/api/v1/reader/sessions/"+view.ID, bearer(member.AccessToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestReader_MetadataOnlyBookCannotOpen(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)

	resp := ts.client.Post("/api/v1/books", bearer(root.AccessToken),
		CreateBookRequest{Title: "Daniel Deronda", Author: "George Eliot"})
	require.Equal(t, http.StatusCreated, resp.Code)
	book := decodeData[BookResponse](t, resp)

	resp = ts.client.Post("/api/v1/reader/sessions", bearer(root.AccessToken),
		map[string]string{"book_id": book.ID})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestReader_EmptyProgress(t *testing.T) {
	ts := setupTestServer(t)
	root := ts.setupRoot(t)

	resp := ts.client.Get("/api/v1/reader/progress", bearer(root.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"progress":[]`)
}
