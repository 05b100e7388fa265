package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/reader"
	"github.com/booksy/booksy-server/internal/service"
)

func (s *Server) registerReaderRoutes() {
	security := []map[string][]string{{"bearer": {}}}
	tags := []string{"Reader"}

	huma.Register(s.api, huma.Operation{
		OperationID: "openReaderSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/sessions",
		Summary:     "Open book",
		Description: "Starts reading a book at the saved position. Opening a book that is already open returns the existing session.",
		Tags:        tags,
		Security:    security,
	}, s.handleOpenSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReaderSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/reader/sessions/{id}",
		Summary:     "Get reader session",
		Tags:        tags,
		Security:    security,
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerGoToPage",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/sessions/{id}/goto",
		Summary:     "Go to page",
		Description: "Moves to a page. Out of range targets are clamped to the first or last page.",
		Tags:        tags,
		Security:    security,
	}, s.handleGoToPage)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerNextPage",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/sessions/{id}/next",
		Summary:     "Next page",
		Tags:        tags,
		Security:    security,
	}, s.handleNextPage)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerPreviousPage",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/sessions/{id}/previous",
		Summary:     "Previous page",
		Tags:        tags,
		Security:    security,
	}, s.handlePreviousPage)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerToggleBookmark",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/sessions/{id}/bookmarks/toggle",
		Summary:     "Toggle bookmark",
		Description: "Bookmarks the current page, or removes the bookmark if it exists",
		Tags:        tags,
		Security:    security,
	}, s.handleToggleBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerJumpToBookmark",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/sessions/{id}/bookmarks/jump",
		Summary:     "Jump to bookmark",
		Tags:        tags,
		Security:    security,
	}, s.handleJumpToBookmark)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerUpdatePreference",
		Method:      http.MethodPatch,
		Path:        "/api/v1/reader/sessions/{id}/preferences",
		Summary:     "Update display preference",
		Description: "Sets one display preference. Out of range values are rejected in the result and the previous value is kept.",
		Tags:        tags,
		Security:    security,
	}, s.handleUpdatePreference)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerPageContent",
		Method:      http.MethodGet,
		Path:        "/api/v1/reader/sessions/{id}/content",
		Summary:     "Current page content",
		Description: "Returns the text of the current page as plain text or markdown",
		Tags:        tags,
		Security:    security,
	}, s.handlePageContent)

	huma.Register(s.api, huma.Operation{
		OperationID:   "closeReaderSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/reader/sessions/{id}",
		Summary:       "Close book",
		Description:   "Saves the position and closes the session",
		Tags:          tags,
		DefaultStatus: http.StatusNoContent,
		Security:      security,
	}, s.handleCloseSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/reader/progress",
		Summary:     "Reading progress",
		Description: "Lists the caller's saved positions, most recently read first",
		Tags:        tags,
		Security:    security,
	}, s.handleListProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "readerPreferences",
		Method:      http.MethodGet,
		Path:        "/api/v1/reader/preferences",
		Summary:     "Display preferences",
		Description: "Returns the caller's saved display preferences",
		Tags:        tags,
		Security:    security,
	}, s.handleGetPreferences)
}

// === DTOs ===

// OpenSessionInput names the book to open.
type OpenSessionInput struct {
	Body struct {
		BookID string `json:"book_id" minLength:"1" doc:"Book to open"`
	}
}

// ReaderSessionInput identifies an open session.
type ReaderSessionInput struct {
	ID string `path:"id" doc:"Reader session ID"`
}

// PageInput carries a target page.
type PageInput struct {
	ID   string `path:"id" doc:"Reader session ID"`
	Body struct {
		Page int `json:"page" doc:"1-indexed page number"`
	}
}

// SessionOutput wraps a session view for Huma.
type SessionOutput struct {
	Body *service.SessionView
}

// UpdatePreferenceInput carries one preference change.
type UpdatePreferenceInput struct {
	ID   string `path:"id" doc:"Reader session ID"`
	Body struct {
		Key   reader.PrefKey `json:"key" enum:"font_size,font_family,line_height,reading_mode" doc:"Preference to change"`
		Value any            `json:"value" doc:"New value"`
	}
}

// PreferenceUpdateResponse reports the session after a preference change.
type PreferenceUpdateResponse struct {
	Session *service.SessionView `json:"session" doc:"Session state"`
	Result  reader.UpdateResult  `json:"result" doc:"Whether the change was applied"`
}

// PreferenceUpdateOutput wraps the preference change for Huma.
type PreferenceUpdateOutput struct {
	Body PreferenceUpdateResponse
}

// PageContentInput selects the content format.
type PageContentInput struct {
	ID     string `path:"id" doc:"Reader session ID"`
	Format string `query:"format" enum:"text,markdown" default:"text" doc:"Content format"`
}

// PageContentOutput wraps page content for Huma.
type PageContentOutput struct {
	Body *service.PageContent
}

// ProgressOutput wraps the progress list for Huma.
type ProgressOutput struct {
	Body struct {
		Progress []service.ProgressView `json:"progress" doc:"Saved positions"`
	}
}

// PreferencesOutput wraps display preferences for Huma.
type PreferencesOutput struct {
	Body reader.Prefs
}

// === Handlers ===

func (s *Server) handleOpenSession(ctx context.Context, input *OpenSessionInput) (*SessionOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Reader.Open(ctx, user, input.Body.BookID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: view}, nil
}

func (s *Server) handleGetSession(ctx context.Context, input *ReaderSessionInput) (*SessionOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Reader.Get(ctx, user, input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: view}, nil
}

func (s *Server) handleGoToPage(ctx context.Context, input *PageInput) (*SessionOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Reader.GoToPage(ctx, user, input.ID, input.Body.Page)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: view}, nil
}

func (s *Server) handleNextPage(ctx context.Context, input *ReaderSessionInput) (*SessionOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Reader.NextPage(ctx, user, input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: view}, nil
}

func (s *Server) handlePreviousPage(ctx context.Context, input *ReaderSessionInput) (*SessionOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Reader.PreviousPage(ctx, user, input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: view}, nil
}

func (s *Server) handleToggleBookmark(ctx context.Context, input *ReaderSessionInput) (*SessionOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Reader.ToggleBookmark(ctx, user, input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: view}, nil
}

func (s *Server) handleJumpToBookmark(ctx context.Context, input *PageInput) (*SessionOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Reader.JumpToBookmark(ctx, user, input.ID, input.Body.Page)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: view}, nil
}

func (s *Server) handleUpdatePreference(ctx context.Context, input *UpdatePreferenceInput) (*PreferenceUpdateOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, result, err := s.services.Reader.UpdatePreference(ctx, user, input.ID, input.Body.Key, input.Body.Value)
	if err != nil {
		return nil, err
	}
	return &PreferenceUpdateOutput{
		Body: PreferenceUpdateResponse{Session: view, Result: result},
	}, nil
}

func (s *Server) handlePageContent(ctx context.Context, input *PageContentInput) (*PageContentOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	page, err := s.services.Reader.Content(ctx, user, input.ID, input.Format)
	if err != nil {
		return nil, err
	}
	return &PageContentOutput{Body: page}, nil
}

func (s *Server) handleCloseSession(ctx context.Context, input *ReaderSessionInput) (*struct{}, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Reader.Close(ctx, user, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleListProgress(ctx context.Context, _ *struct{}) (*ProgressOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.services.Reader.ListProgress(ctx, user)
	if err != nil {
		return nil, err
	}

	out := &ProgressOutput{}
	out.Body.Progress = progress
	if out.Body.Progress == nil {
		out.Body.Progress = []service.ProgressView{}
	}
	return out, nil
}

func (s *Server) handleGetPreferences(ctx context.Context, _ *struct{}) (*PreferencesOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := s.services.Reader.Preferences(ctx, user)
	if err != nil {
		return nil, err
	}
	return &PreferencesOutput{Body: prefs}, nil
}
