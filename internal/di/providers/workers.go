package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/logger"
	"github.com/booksy/booksy-server/internal/service"
	"github.com/booksy/booksy-server/internal/watcher"
)

// FileWatcherHandle wraps the inbox watcher with shutdown capability.
// Watcher is nil when inbox watching is disabled.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideFileWatcher provides the inbox watcher. Existing files in the inbox
// are imported once, then new ones as they settle.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Library.WatchEnabled {
		log.Info("Inbox watching disabled")
		return &FileWatcherHandle{cancel: func() {}}, nil
	}

	importHandle := do.MustInvoke[*ImportServiceHandle](i)

	w, err := watcher.New(log.Logger, watcher.Options{
		IgnoreHidden: true,
		Extensions:   []string{".epub"},
	})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(cfg.Library.InboxPath); err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("File watcher error", "error", err)
		}
	}()

	go func() {
		results, err := importHandle.ImportDir(ctx, cfg.Library.InboxPath)
		if err != nil {
			log.Warn("Initial inbox import failed", "error", err)
		}
		imported := 0
		for _, r := range results {
			if r.Error == "" && !r.Duplicate {
				imported++
			}
		}
		log.Info("Initial inbox import completed", "files", len(results), "imported", imported)

		if err := importHandle.Run(ctx, w); err != nil {
			log.Error("Inbox import stopped", "error", err)
		}
	}()

	log.Info("File watcher started", "inbox", cfg.Library.InboxPath)

	return &FileWatcherHandle{Watcher: w, cancel: cancel}, nil
}

// SessionCleanupJob runs periodic auth session cleanup.
type SessionCleanupJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSessionCleanupJob provides the periodic session cleanup job.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	sessions := do.MustInvoke[*service.SessionService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		if count, err := sessions.DeleteExpiredSessions(ctx); err != nil {
			log.Warn("Initial session cleanup failed", "error", err)
		} else if count > 0 {
			log.Info("Initial session cleanup completed", "deleted", count)
		}

		for {
			select {
			case <-ticker.C:
				if count, err := sessions.DeleteExpiredSessions(ctx); err != nil {
					log.Warn("Session cleanup failed", "error", err)
				} else if count > 0 {
					log.Info("Session cleanup completed", "deleted", count)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return &SessionCleanupJob{cancel: cancel}, nil
}
