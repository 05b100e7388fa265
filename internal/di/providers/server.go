package providers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/samber/do/v2"

	"github.com/booksy/booksy-server/internal/api"
	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/logger"
	"github.com/booksy/booksy-server/internal/mdns"
	"github.com/booksy/booksy-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	readerHandle := do.MustInvoke[*ReaderServiceHandle](i)

	services := &api.Services{
		Instance: do.MustInvoke[*service.InstanceService](i),
		Auth:     do.MustInvoke[*service.AuthService](i),
		Session:  do.MustInvoke[*service.SessionService](i),
		User:     do.MustInvoke[*service.UserService](i),
		Book:     do.MustInvoke[*service.BookService](i),
		Reader:   readerHandle.ReaderService,
		Search:   do.MustInvoke[*service.SearchService](i),
		Events:   do.MustInvoke[*EventManagerHandle](i).Manager,
	}

	handler := api.NewServer(storeHandle.Store, services, api.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}

// MDNSServiceHandle wraps mdns.Service with Shutdownable.
type MDNSServiceHandle struct {
	*mdns.Service
}

// Shutdown implements do.Shutdownable.
func (h *MDNSServiceHandle) Shutdown() error {
	if h.Service != nil {
		h.Stop()
	}
	return nil
}

// ProvideMDNSService initializes the server instance and advertises it on
// the local network. Advertisement follows instance setting changes.
func ProvideMDNSService(i do.Injector) (*MDNSServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	instanceService := do.MustInvoke[*service.InstanceService](i)

	// Always initialize instance regardless of mDNS config.
	instance, err := instanceService.InitializeInstance(context.Background())
	if err != nil {
		return nil, err
	}

	if !instance.IsSetupRequired() {
		log.Info("Server instance is configured and ready",
			"instance_id", instance.ID,
			"root_user_id", instance.RootUserID,
			"created_at", instance.CreatedAt,
		)
	} else {
		log.Warn("Server instance needs setup - no root user configured",
			"instance_id", instance.ID,
			"setup_required", true,
		)
	}

	if !cfg.Server.AdvertiseMDNS {
		log.Info("mDNS advertisement disabled by configuration")
		return &MDNSServiceHandle{}, nil
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		log.Warn("Failed to parse server port for mDNS, using default", "port", cfg.Server.Port)
		port = 8080
	}

	svc := mdns.NewService(log.Logger)
	if err := svc.Start(instance, port); err != nil {
		// Non-fatal: containers and cloud hosts usually have no multicast.
		log.Warn("mDNS advertisement unavailable", "error", err)
	}

	instanceService.OnUpdate(func(updated *domain.Instance) {
		if err := svc.Start(updated, port); err != nil {
			log.Warn("Failed to refresh mDNS after instance update", "error", err)
		}
	})

	return &MDNSServiceHandle{Service: svc}, nil
}
