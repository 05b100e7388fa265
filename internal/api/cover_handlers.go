package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerCoverRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getBookCover",
		Method:      http.MethodGet,
		Path:        "/api/v1/covers/{id}",
		Summary:     "Get book cover",
		Description: "Returns the cover image bytes for a book",
		Tags:        []string{"Covers"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBookCover)

	huma.Register(s.api, huma.Operation{
		OperationID:  "uploadBookCover",
		Method:       http.MethodPut,
		Path:         "/api/v1/books/{id}/cover",
		Summary:      "Upload book cover",
		Description:  "Replaces the cover with the raw image in the request body (JPEG, PNG, GIF or WebP)",
		Tags:         []string{"Covers"},
		MaxBodyBytes: MaxCoverSize,
		Security:     []map[string][]string{{"bearer": {}}},
	}, s.handleUploadBookCover)
}

// === DTOs ===

// CoverImageOutput carries raw image bytes.
type CoverImageOutput struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// UploadBookCoverInput carries a raw image body.
type UploadBookCoverInput struct {
	ID      string `path:"id" doc:"Book ID"`
	RawBody []byte `contentType:"image/*"`
}

// === Handlers ===

func (s *Server) handleGetBookCover(ctx context.Context, input *BookIDInput) (*CoverImageOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	data, contentType, err := s.services.Book.GetCover(ctx, user, input.ID)
	if err != nil {
		return nil, err
	}

	return &CoverImageOutput{
		ContentType:  contentType,
		CacheControl: CacheOneDayPrivate,
		Body:         data,
	}, nil
}

func (s *Server) handleUploadBookCover(ctx context.Context, input *UploadBookCoverInput) (*BookOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.RawBody) == 0 {
		return nil, huma.Error400BadRequest("Cover image body is required")
	}

	book, err := s.services.Book.SetCover(ctx, user, input.ID, input.RawBody)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}
