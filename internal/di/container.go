// Package di provides dependency injection configuration for the Booksy server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/booksy/booksy-server/internal/auth"
	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/di/providers"
	"github.com/booksy/booksy-server/internal/logger"
	"github.com/booksy/booksy-server/internal/media/images"
	"github.com/booksy/booksy-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Storage layer
	do.Provide(injector, providers.ProvideCoverStorage)
	do.Provide(injector, providers.ProvideImageProcessor)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Event stream
	do.Provide(injector, providers.ProvideEventManager)

	// Business services
	do.Provide(injector, providers.ProvideInstanceService)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideReaderService)
	do.Provide(injector, providers.ProvideImportService)

	// Workers
	do.Provide(injector, providers.ProvideFileWatcher)
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideMDNSService)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke each provider with do.Invoke so a failed open surfaces as an
	// error instead of a panic.
	steps := []func() error{
		invoke[*config.Config](injector),
		invoke[*logger.Logger](injector),
		invoke[providers.AuthKey](injector),
		invoke[*providers.StoreHandle](injector),
		invoke[*images.Storage](injector),
		invoke[*images.Processor](injector),
		invoke[*providers.SearchIndexHandle](injector),
		invoke[*service.SearchService](injector),
		invoke[*auth.TokenService](injector),
		invoke[*providers.EventManagerHandle](injector),

		// Business services
		invoke[*service.InstanceService](injector),
		invoke[*service.SessionService](injector),
		invoke[*service.AuthService](injector),
		invoke[*service.UserService](injector),
		invoke[*service.BookService](injector),
		invoke[*providers.ReaderServiceHandle](injector),
		invoke[*providers.ImportServiceHandle](injector),

		// Server. mDNS first: it initializes the instance record.
		invoke[*providers.MDNSServiceHandle](injector),
		invoke[*providers.HTTPServerHandle](injector),

		// Workers
		invoke[*providers.FileWatcherHandle](injector),
		invoke[*providers.SessionCleanupJob](injector),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}

func invoke[T any](injector do.Injector) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
