package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/normalize"
	"github.com/booksy/booksy-server/internal/service"
	"github.com/booksy/booksy-server/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns one page of the catalog. Members only see active books.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Description:   "Adds a catalog entry without content (requires upload permission)",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID:     "uploadBook",
		Method:          http.MethodPost,
		Path:            "/api/v1/books/upload",
		Summary:         "Upload EPUB",
		Description:     "Stores an EPUB sent as the raw request body and catalogs it. Query parameters override the file's metadata.",
		Tags:            []string{"Books"},
		DefaultStatus:   http.StatusCreated,
		MaxBodyBytes:    MaxUploadSize,
		BodyReadTimeout: 5 * time.Minute,
		Security:        []map[string][]string{{"bearer": {}}},
	}, s.handleUploadBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Edits catalog fields (admins, or the uploader with upload permission)",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBook",
		Method:        http.MethodDelete,
		Path:          "/api/v1/books/{id}",
		Summary:       "Delete book",
		Description:   "Removes a book with its file, cover and all reading progress",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "setBookActive",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/active",
		Summary:     "Set book visibility",
		Description: "Shows or hides a book from members (admin only)",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetBookActive)

	huma.Register(s.api, huma.Operation{
		OperationID: "downloadBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/download",
		Summary:     "Download EPUB",
		Description: "Returns the stored EPUB file (requires download permission)",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDownloadBook)
}

// === DTOs ===

// CoverInfo describes a book's cover image.
type CoverInfo struct {
	URL      string `json:"url" doc:"Cover image URL"`
	Format   string `json:"format" doc:"Image format"`
	BlurHash string `json:"blur_hash,omitempty" doc:"BlurHash placeholder"`
}

// BookResponse is the client-facing book. Storage paths stay on the server.
type BookResponse struct {
	ID           string     `json:"id" doc:"Book ID"`
	Title        string     `json:"title" doc:"Title"`
	Author       string     `json:"author" doc:"Author"`
	Description  string     `json:"description,omitempty" doc:"Description"`
	ISBN         string     `json:"isbn,omitempty" doc:"ISBN"`
	Language     string     `json:"language,omitempty" doc:"Language code"`
	LanguageName string     `json:"language_name,omitempty" doc:"English name of the language"`
	Publisher    string     `json:"publisher,omitempty" doc:"Publisher"`
	PublishYear  string     `json:"publish_year,omitempty" doc:"Year of publication"`
	Slug         string     `json:"slug" doc:"URL friendly title"`
	TotalPages   int        `json:"total_pages" doc:"Pages at the server's page size"`
	WordCount    int        `json:"word_count,omitempty" doc:"Words in the book"`
	HasContent   bool       `json:"has_content" doc:"Whether the book can be opened in the reader"`
	FileSize     int64      `json:"file_size,omitempty" doc:"EPUB size in bytes"`
	Cover        *CoverInfo `json:"cover,omitempty" doc:"Cover image"`
	Active       bool       `json:"active" doc:"Whether members can see the book"`
	AddedBy      string     `json:"added_by,omitempty" doc:"ID of the user who added the book"`
	CreatedAt    time.Time  `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt    time.Time  `json:"updated_at" doc:"Last update timestamp"`
}

// BookOutput wraps a single book for Huma.
type BookOutput struct {
	Body BookResponse
}

// ListBooksInput contains pagination parameters.
type ListBooksInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"500" default:"50" doc:"Books per page"`
	Cursor string `query:"cursor" doc:"Cursor from a previous page"`
}

// BookListResponse is one page of books.
type BookListResponse struct {
	Books      []BookResponse `json:"books" doc:"Books on this page"`
	NextCursor string         `json:"next_cursor,omitempty" doc:"Cursor for the next page"`
	HasMore    bool           `json:"has_more" doc:"Whether more pages exist"`
	Total      int            `json:"total" doc:"Books visible to the caller"`
}

// ListBooksOutput wraps the page for Huma.
type ListBooksOutput struct {
	Body BookListResponse
}

// BookIDInput identifies a book in the path.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// CreateBookRequest is the request body for a metadata-only book.
type CreateBookRequest struct {
	Title       string `json:"title" minLength:"1" maxLength:"500" doc:"Title"`
	Author      string `json:"author" minLength:"1" maxLength:"300" doc:"Author"`
	Description string `json:"description,omitempty" maxLength:"20000" doc:"Description"`
	ISBN        string `json:"isbn,omitempty" maxLength:"20" doc:"ISBN"`
	Language    string `json:"language,omitempty" maxLength:"35" doc:"Language tag"`
	Publisher   string `json:"publisher,omitempty" maxLength:"300" doc:"Publisher"`
	PublishYear string `json:"publish_year,omitempty" doc:"Four digit year"`
	Active      *bool  `json:"active,omitempty" doc:"Initial visibility (admins only, default true)"`
}

// CreateBookInput wraps the create request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// UpdateBookRequest changes catalog fields. Omitted fields are unchanged.
type UpdateBookRequest struct {
	Title       *string `json:"title,omitempty" maxLength:"500" doc:"Title"`
	Author      *string `json:"author,omitempty" maxLength:"300" doc:"Author"`
	Description *string `json:"description,omitempty" maxLength:"20000" doc:"Description"`
	ISBN        *string `json:"isbn,omitempty" maxLength:"20" doc:"ISBN"`
	Language    *string `json:"language,omitempty" maxLength:"35" doc:"Language tag"`
	Publisher   *string `json:"publisher,omitempty" maxLength:"300" doc:"Publisher"`
	PublishYear *string `json:"publish_year,omitempty" doc:"Four digit year"`
}

// UpdateBookInput wraps the update request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body UpdateBookRequest
}

// SetActiveInput wraps the visibility change for Huma.
type SetActiveInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body struct {
		Active bool `json:"active" doc:"Whether members can see the book"`
	}
}

// UploadBookInput carries a raw EPUB body.
type UploadBookInput struct {
	Filename string `query:"filename" doc:"Original file name, used as a title fallback"`
	Title    string `query:"title" doc:"Title override"`
	Author   string `query:"author" doc:"Author override"`
	ISBN     string `query:"isbn" doc:"ISBN override"`
	RawBody  []byte `contentType:"application/epub+zip"`
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	params := store.PaginationParams{Limit: input.Limit, Cursor: input.Cursor}
	params.Normalize()

	page, err := s.services.Book.ListBooks(ctx, user, params)
	if err != nil {
		return nil, err
	}

	return &ListBooksOutput{
		Body: BookListResponse{
			Books:      mapBookResponses(page.Items),
			NextCursor: page.NextCursor,
			HasMore:    page.HasMore,
			Total:      page.Total,
		},
	}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.CreateBook(ctx, user, service.CreateBookRequest{
		Title:       input.Body.Title,
		Author:      input.Body.Author,
		Description: input.Body.Description,
		ISBN:        input.Body.ISBN,
		Language:    input.Body.Language,
		Publisher:   input.Body.Publisher,
		PublishYear: input.Body.PublishYear,
		Active:      input.Body.Active,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleUploadBook(ctx context.Context, input *UploadBookInput) (*BookOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.UploadEPUB(ctx, user, bytes.NewReader(input.RawBody), service.UploadMetadata{
		Filename: input.Filename,
		Title:    input.Title,
		Author:   input.Author,
		ISBN:     input.ISBN,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.GetBook(ctx, user, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.UpdateBook(ctx, user, input.ID, service.UpdateBookRequest{
		Title:       input.Body.Title,
		Author:      input.Body.Author,
		Description: input.Body.Description,
		ISBN:        input.Body.ISBN,
		Language:    input.Body.Language,
		Publisher:   input.Body.Publisher,
		PublishYear: input.Body.PublishYear,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*struct{}, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Book.DeleteBook(ctx, user, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleSetBookActive(ctx context.Context, input *SetActiveInput) (*BookOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.SetActive(ctx, admin, input.ID, input.Body.Active)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleDownloadBook(ctx context.Context, input *BookIDInput) (*huma.StreamResponse, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Book.DownloadPath(ctx, user, input.ID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(book.FilePath)
	if err != nil {
		s.logger.Error("Failed to open book file", "book_id", book.ID, "path", book.FilePath, "error", err)
		return nil, huma.Error404NotFound("book file is missing")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat book file: %w", err)
	}

	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer f.Close()
			hctx.SetHeader("Content-Type", "application/epub+zip")
			hctx.SetHeader("Content-Length", strconv.FormatInt(info.Size(), 10))
			hctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", book.Slug+".epub"))
			hctx.SetHeader("Cache-Control", CacheOneDayPrivate)
			hctx.SetStatus(http.StatusOK)
			if _, err := io.Copy(hctx.BodyWriter(), f); err != nil {
				s.logger.Warn("Book download interrupted", "book_id", book.ID, "error", err)
			}
		},
	}, nil
}

func mapBookResponse(b *domain.Book) BookResponse {
	resp := BookResponse{
		ID:           b.ID,
		Title:        b.Title,
		Author:       b.Author,
		Description:  b.Description,
		ISBN:         b.ISBN,
		Language:     b.Language,
		LanguageName: normalize.Language(b.Language),
		Publisher:    b.Publisher,
		PublishYear:  b.PublishYear,
		Slug:         b.Slug,
		TotalPages:   b.TotalPages,
		WordCount:    b.WordCount,
		HasContent:   b.HasContent(),
		FileSize:     b.FileSize,
		Active:       b.Active,
		AddedBy:      b.AddedBy,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	if b.CoverImage != nil {
		resp.Cover = &CoverInfo{
			URL:      "/api/v1/covers/" + b.ID + "?v=" + shortHash(b.CoverImage.Hash),
			Format:   b.CoverImage.Format,
			BlurHash: b.CoverImage.BlurHash,
		}
	}
	return resp
}

func mapBookResponses(books []*domain.Book) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, mapBookResponse(b))
	}
	return out
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
