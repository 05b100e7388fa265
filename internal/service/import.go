package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/ratelimit"
	"github.com/booksy/booksy-server/internal/watcher"
)

const inboxLimiterKey = "inbox"

// EventSource delivers settled file events. *watcher.Watcher implements it.
type EventSource interface {
	Events() <-chan watcher.Event
	Errors() <-chan error
}

// ImportService adds EPUB files from the local filesystem: single files
// from the CLI and the inbox folder watched by the server.
type ImportService struct {
	books    *BookService
	instance *InstanceService
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
}

// NewImportService creates an import service. Imports are paced to a few
// per second so a large drop into the inbox does not starve the API.
func NewImportService(books *BookService, instance *InstanceService, logger *slog.Logger) *ImportService {
	return &ImportService{
		books:    books,
		instance: instance,
		limiter:  ratelimit.NewPer(2, time.Second, 4),
		logger:   orDiscard(logger),
	}
}

// ImportResult reports the outcome for one file.
type ImportResult struct {
	Path      string `json:"path"`
	BookID    string `json:"book_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ImportFile catalogs the EPUB at path. Books are attributed to the root
// user.
func (s *ImportService) ImportFile(ctx context.Context, path string) (*domain.Book, error) {
	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return nil, domainerrors.UnsupportedMedia("%s is not an .epub file", filepath.Base(path))
	}

	var addedBy string
	if inst, err := s.instance.GetInstance(ctx); err == nil {
		addedBy = inst.RootUserID
	}
	return s.books.ImportFile(ctx, path, addedBy)
}

// ImportDir imports every EPUB under dir. Files already in the library are
// reported as duplicates; other failures are recorded per file and do not
// stop the walk.
func (s *ImportService) ImportDir(ctx context.Context, dir string) ([]ImportResult, error) {
	var results []ImportResult
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".epub") || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if err := s.limiter.Wait(ctx, inboxLimiterKey); err != nil {
			return err
		}
		results = append(results, s.importOne(ctx, path))
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("walk %s: %w", dir, err)
	}
	return results, nil
}

// Run imports files as the watcher reports them until ctx is done or the
// source closes.
func (s *ImportService) Run(ctx context.Context, src EventSource) error {
	events, errs := src.Events(), src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type == watcher.EventRemoved {
				continue
			}
			if err := s.limiter.Wait(ctx, inboxLimiterKey); err != nil {
				return nil
			}
			s.importOne(ctx, ev.Path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("Inbox watcher error", "error", err)
		}
	}
}

func (s *ImportService) importOne(ctx context.Context, path string) ImportResult {
	res := ImportResult{Path: path}
	book, err := s.ImportFile(ctx, path)
	switch {
	case err == nil:
		res.BookID, res.Title = book.ID, book.Title
	case errors.Is(err, domainerrors.ErrAlreadyExists):
		res.Duplicate = true
		s.logger.Debug("Skipping book already in library", "path", path)
	default:
		res.Error = err.Error()
		s.logger.Warn("Import failed", "path", path, "error", err)
	}
	return res
}

// Close stops the import pacing limiter.
func (s *ImportService) Close() {
	s.limiter.Stop()
}
