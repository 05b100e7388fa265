package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/booksy/booksy-server/internal/auth"
	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/logger"
	"github.com/booksy/booksy-server/internal/media/images"
	"github.com/booksy/booksy-server/internal/service"
)

// ProvideInstanceService provides the server instance service.
func ProvideInstanceService(i do.Injector) (*service.InstanceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	cfg := do.MustInvoke[*config.Config](i)

	return service.NewInstanceService(storeHandle.Store, log.Logger, cfg), nil
}

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	instanceService := do.MustInvoke[*service.InstanceService](i)
	events := do.MustInvoke[*EventManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewAuthService(storeHandle.Store, tokenService, sessionService, instanceService, log.Logger)
	svc.SetEventEmitter(events)
	return svc, nil
}

// ProvideUserService provides the user administration service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	events := do.MustInvoke[*EventManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewUserService(storeHandle.Store, log.Logger)
	svc.SetEventEmitter(events)
	return svc, nil
}

// ProvideBookService provides the book catalog service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	processor := do.MustInvoke[*images.Processor](i)
	cfg := do.MustInvoke[*config.Config](i)
	events := do.MustInvoke[*EventManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewBookService(storeHandle.Store, processor, cfg, log.Logger)
	svc.SetEventEmitter(events)
	return svc, nil
}

// ReaderServiceHandle wraps the reader service so open sessions are saved
// on shutdown.
type ReaderServiceHandle struct {
	*service.ReaderService
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ReaderServiceHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.CloseAll(ctx)
	return nil
}

// ProvideReaderService provides the reader service and starts the idle
// session sweeper.
func ProvideReaderService(i do.Injector) (*ReaderServiceHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bookService := do.MustInvoke[*service.BookService](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	events := do.MustInvoke[*EventManagerHandle](i)

	svc, err := service.NewReaderService(storeHandle.Store, bookService, cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	svc.SetEventEmitter(events)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.RunSweeper(ctx, sweepInterval(cfg.Reader.SessionIdleTTL))

	log.Info("Reader service started",
		"words_per_page", cfg.Reader.WordsPerPage,
		"session_idle_ttl", cfg.Reader.SessionIdleTTL,
	)

	return &ReaderServiceHandle{ReaderService: svc, cancel: cancel}, nil
}

// sweepInterval checks for idle sessions a few times per TTL, at most once
// a minute.
func sweepInterval(ttl time.Duration) time.Duration {
	return max(ttl/4, time.Minute)
}

// ImportServiceHandle wraps the import service with shutdown capability.
type ImportServiceHandle struct {
	*service.ImportService
}

// Shutdown implements do.Shutdownable.
func (h *ImportServiceHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideImportService provides the filesystem import service.
func ProvideImportService(i do.Injector) (*ImportServiceHandle, error) {
	bookService := do.MustInvoke[*service.BookService](i)
	instanceService := do.MustInvoke[*service.InstanceService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &ImportServiceHandle{
		ImportService: service.NewImportService(bookService, instanceService, log.Logger),
	}, nil
}
