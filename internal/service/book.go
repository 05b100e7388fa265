package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/ebook"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/id"
	"github.com/booksy/booksy-server/internal/media/images"
	"github.com/booksy/booksy-server/internal/normalize"
	"github.com/booksy/booksy-server/internal/sse"
	"github.com/booksy/booksy-server/internal/store"
)

// MaxUploadBytes caps the size of an uploaded EPUB.
const MaxUploadBytes = 200 << 20

// BookService manages the catalog and the EPUB files behind it.
type BookService struct {
	store  store.Store
	covers *images.Processor
	config *config.Config
	logger *slog.Logger
	events EventEmitter

	mu       sync.RWMutex
	onDelete []func(bookID string)
}

// NewBookService creates a new book service. Book files live under
// cfg.Library.BooksPath.
func NewBookService(store store.Store, covers *images.Processor, cfg *config.Config, logger *slog.Logger) *BookService {
	return &BookService{
		store:  store,
		covers: covers,
		config: cfg,
		logger: orDiscard(logger),
		events: noopEmitter{},
	}
}

// SetEventEmitter sends catalog changes to e.
func (s *BookService) SetEventEmitter(e EventEmitter) {
	s.events = e
}

// OnDelete registers fn to run after a book is deleted.
func (s *BookService) OnDelete(fn func(bookID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// CreateBookRequest describes a catalog entry without content.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=500"`
	Author      string `json:"author" validate:"required,max=300"`
	Description string `json:"description,omitempty" validate:"max=20000"`
	ISBN        string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Language    string `json:"language,omitempty" validate:"omitempty,max=35"`
	Publisher   string `json:"publisher,omitempty" validate:"max=300"`
	PublishYear string `json:"publish_year,omitempty" validate:"omitempty,numeric,len=4"`
	Active      *bool  `json:"active,omitempty"`
}

// UpdateBookRequest changes catalog fields. Nil fields are left alone.
type UpdateBookRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Author      *string `json:"author,omitempty" validate:"omitempty,min=1,max=300"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=20000"`
	ISBN        *string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Language    *string `json:"language,omitempty" validate:"omitempty,max=35"`
	Publisher   *string `json:"publisher,omitempty" validate:"omitempty,max=300"`
	PublishYear *string `json:"publish_year,omitempty" validate:"omitempty,numeric,len=4"`
}

// UploadMetadata overrides what the EPUB declares. Empty fields keep the
// file's values.
type UploadMetadata struct {
	Filename string
	Title    string
	Author   string
	ISBN     string
}

// CreateBook adds a metadata-only entry.
func (s *BookService) CreateBook(ctx context.Context, user *domain.User, req CreateBookRequest) (*domain.Book, error) {
	if !user.CanUpload() {
		return nil, domainerrors.Forbidden("you are not allowed to add books")
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}
	book := &domain.Book{
		Syncable:    domain.Syncable{ID: bookID},
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Description: req.Description,
		ISBN:        req.ISBN,
		Language:    normalize.LanguageOrRaw(req.Language),
		Publisher:   req.Publisher,
		PublishYear: req.PublishYear,
		Slug:        ebook.Slugify(req.Title),
		Format:      domain.FormatNone,
		Active:      true,
		AddedBy:     user.ID,
	}
	if req.Active != nil && user.IsAdmin() {
		book.Active = *req.Active
	}
	book.InitTimestamps()

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("Book created", "book_id", book.ID, "title", book.Title, "user_id", user.ID)
	s.events.Emit(sse.NewBookCreatedEvent(book))
	return book, nil
}

// UploadEPUB stores an EPUB read from r and catalogs it. Files whose content
// is already in the library are rejected with a conflict.
func (s *BookService) UploadEPUB(ctx context.Context, user *domain.User, r io.Reader, meta UploadMetadata) (*domain.Book, error) {
	if !user.CanUpload() {
		return nil, domainerrors.Forbidden("you are not allowed to upload books")
	}
	if err := os.MkdirAll(s.config.Library.BooksPath, 0o755); err != nil {
		return nil, fmt.Errorf("create books directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.config.Library.BooksPath, ".upload-*.epub")
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once moved into place

	n, err := io.Copy(tmp, io.LimitReader(r, MaxUploadBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if n == 0 {
		return nil, domainerrors.Validation("upload is empty")
	}
	if n > MaxUploadBytes {
		return nil, domainerrors.Validation("upload exceeds %d MB", MaxUploadBytes>>20)
	}

	if meta.Filename != "" {
		meta.Filename = filepath.Base(meta.Filename)
	}
	return s.ingest(ctx, tmpPath, true, user.ID, meta)
}

// ImportFile catalogs the EPUB at path, copying it into the library. The
// source file is left in place.
func (s *BookService) ImportFile(ctx context.Context, path, addedBy string) (*domain.Book, error) {
	if err := os.MkdirAll(s.config.Library.BooksPath, 0o755); err != nil {
		return nil, fmt.Errorf("create books directory: %w", err)
	}
	return s.ingest(ctx, path, false, addedBy, UploadMetadata{Filename: filepath.Base(path)})
}

func (s *BookService) ingest(ctx context.Context, src string, move bool, addedBy string, meta UploadMetadata) (*domain.Book, error) {
	hash, size, err := ebook.HashFile(src)
	if err != nil {
		return nil, fmt.Errorf("hash book file: %w", err)
	}
	if existing, err := s.store.GetBookByContentHash(ctx, hash); err == nil {
		return nil, domainerrors.AlreadyExists("this book is already in the library").
			WithDetails(map[string]string{"book_id": existing.ID})
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup content hash: %w", err)
	}

	parsed, err := ebook.Open(src, s.config.Reader.WordsPerPage)
	if err != nil {
		return nil, domainerrors.UnsupportedMedia("file is not a readable EPUB").WithCause(err)
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}
	dest := filepath.Join(s.config.Library.BooksPath, bookID+".epub")
	if move {
		err = moveFile(src, dest)
	} else {
		err = copyFile(src, dest)
	}
	if err != nil {
		return nil, fmt.Errorf("store book file: %w", err)
	}

	book := &domain.Book{
		Syncable:    domain.Syncable{ID: bookID},
		Title:       firstNonEmpty(meta.Title, parsed.Metadata.Title, strings.TrimSuffix(meta.Filename, filepath.Ext(meta.Filename)), "Untitled"),
		Author:      firstNonEmpty(meta.Author, parsed.Metadata.Author, "Unknown"),
		Description: parsed.Metadata.Description,
		ISBN:        meta.ISBN,
		Language:    normalize.LanguageOrRaw(parsed.Metadata.Language),
		Publisher:   parsed.Metadata.Publisher,
		TotalPages:  parsed.TotalPages(),
		WordCount:   parsed.WordCount(),
		Format:      domain.FormatEPUB,
		FilePath:    dest,
		FileSize:    size,
		ContentHash: hash,
		Active:      true,
		AddedBy:     addedBy,
	}
	book.Slug = ebook.Slugify(book.Title)
	book.InitTimestamps()

	if parsed.Cover != nil {
		if book.CoverImage, err = s.covers.Process(bookID, parsed.Cover.Data); err != nil {
			s.logger.Warn("Failed to store embedded cover", "book_id", bookID, "error", err)
		}
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		_ = os.Remove(dest)
		_ = s.covers.Storage().Delete(bookID)
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("this book is already in the library").WithCause(err)
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("Book added",
		"book_id", book.ID,
		"title", book.Title,
		"pages", book.TotalPages,
		"size", size,
	)
	s.events.Emit(sse.NewBookCreatedEvent(book))
	return book, nil
}

// GetBook returns a book the user may see. Inactive books are reported as
// missing to members.
func (s *BookService) GetBook(ctx context.Context, user *domain.User, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, notFound(err, "book not found")
	}
	if !book.VisibleTo(user) {
		return nil, domainerrors.NotFound("book not found")
	}
	return book, nil
}

// ListBooks returns one page of the catalog. Members see active books only.
func (s *BookService) ListBooks(ctx context.Context, user *domain.User, params store.PaginationParams) (*store.PaginatedResult[*domain.Book], error) {
	filter := domain.BookFilter{ActiveOnly: !user.IsAdmin()}
	res, err := s.store.ListBooks(ctx, filter, params)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			return nil, domainerrors.Validation("invalid cursor").WithCause(err)
		}
		return nil, fmt.Errorf("list books: %w", err)
	}
	return res, nil
}

// UpdateBook edits catalog fields. Admins can edit any book, uploaders the
// books they added.
func (s *BookService) UpdateBook(ctx context.Context, user *domain.User, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	book, err := s.managedBook(ctx, user, bookID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		book.Title = strings.TrimSpace(*req.Title)
		book.Slug = ebook.Slugify(book.Title)
	}
	setIf(&book.Author, req.Author)
	setIf(&book.Description, req.Description)
	setIf(&book.ISBN, req.ISBN)
	if req.Language != nil {
		book.Language = normalize.LanguageOrRaw(*req.Language)
	}
	setIf(&book.Publisher, req.Publisher)
	setIf(&book.PublishYear, req.PublishYear)
	book.Touch()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	s.events.Emit(sse.NewBookUpdatedEvent(book, book.Active))
	return book, nil
}

// SetActive shows or hides a book from members.
func (s *BookService) SetActive(ctx context.Context, admin *domain.User, bookID string, active bool) (*domain.Book, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, notFound(err, "book not found")
	}
	if book.Active == active {
		return book, nil
	}

	book.Active = active
	book.Touch()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.logger.Info("Book visibility changed", "book_id", bookID, "active", active, "admin_id", admin.ID)
	s.events.Emit(sse.NewBookUpdatedEvent(book, !active))
	return book, nil
}

// DeleteBook removes a book, its file, its cover and all reading progress.
func (s *BookService) DeleteBook(ctx context.Context, user *domain.User, bookID string) error {
	book, err := s.managedBook(ctx, user, bookID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if book.FilePath != "" {
		if err := os.Remove(book.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove book file", "book_id", bookID, "path", book.FilePath, "error", err)
		}
	}
	if err := s.covers.Storage().Delete(bookID); err != nil {
		s.logger.Warn("Failed to remove cover", "book_id", bookID, "error", err)
	}

	s.mu.RLock()
	hooks := s.onDelete
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(bookID)
	}

	s.logger.Info("Book deleted", "book_id", bookID, "user_id", user.ID)
	s.events.Emit(sse.NewBookDeletedEvent(bookID))
	return nil
}

// SetCover replaces the cover image of a book.
func (s *BookService) SetCover(ctx context.Context, user *domain.User, bookID string, data []byte) (*domain.Book, error) {
	book, err := s.managedBook(ctx, user, bookID)
	if err != nil {
		return nil, err
	}

	info, err := s.covers.Process(bookID, data)
	switch {
	case errors.Is(err, images.ErrTooLarge):
		return nil, domainerrors.Validation("cover exceeds %d MB", images.MaxCoverBytes>>20)
	case errors.Is(err, images.ErrUnsupportedFormat):
		return nil, domainerrors.UnsupportedMedia("cover must be a JPEG, PNG, GIF or WebP image").WithCause(err)
	case err != nil:
		return nil, fmt.Errorf("process cover: %w", err)
	}

	book.CoverImage = info
	book.Touch()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	s.events.Emit(sse.NewBookUpdatedEvent(book, book.Active))
	return book, nil
}

// GetCover returns the cover bytes and their content type.
func (s *BookService) GetCover(ctx context.Context, user *domain.User, bookID string) ([]byte, string, error) {
	book, err := s.GetBook(ctx, user, bookID)
	if err != nil {
		return nil, "", err
	}
	if book.CoverImage == nil {
		return nil, "", domainerrors.NotFound("book has no cover")
	}
	data, err := s.covers.Storage().Get(bookID)
	if err != nil {
		if errors.Is(err, images.ErrNotFound) {
			return nil, "", domainerrors.NotFound("book has no cover").WithCause(err)
		}
		return nil, "", fmt.Errorf("read cover: %w", err)
	}
	return data, images.ContentType(book.CoverImage.Format), nil
}

// ContentBook returns a book with readable content. Metadata-only entries
// are reported as not found.
func (s *BookService) ContentBook(ctx context.Context, user *domain.User, bookID string) (*domain.Book, error) {
	book, err := s.GetBook(ctx, user, bookID)
	if err != nil {
		return nil, err
	}
	if !book.HasContent() {
		return nil, domainerrors.NotFound("book has no readable content")
	}
	return book, nil
}

// DownloadPath returns the stored EPUB of a book for users allowed to
// download.
func (s *BookService) DownloadPath(ctx context.Context, user *domain.User, bookID string) (*domain.Book, error) {
	if !user.IsAdmin() && !user.Permissions.CanDownload {
		return nil, domainerrors.Forbidden("you are not allowed to download books")
	}
	return s.ContentBook(ctx, user, bookID)
}

// Stats returns catalog counts.
func (s *BookService) Stats(ctx context.Context) (domain.BookCounts, error) {
	counts, err := s.store.CountBooks(ctx)
	if err != nil {
		return domain.BookCounts{}, fmt.Errorf("count books: %w", err)
	}
	return counts, nil
}

func (s *BookService) managedBook(ctx context.Context, user *domain.User, bookID string) (*domain.Book, error) {
	book, err := s.GetBook(ctx, user, bookID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() && (book.AddedBy != user.ID || !user.CanUpload()) {
		return nil, domainerrors.Forbidden("you cannot modify this book")
	}
	return book, nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// moveFile renames src to dst, copying when they sit on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
