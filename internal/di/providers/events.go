package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/booksy/booksy-server/internal/logger"
	"github.com/booksy/booksy-server/internal/sse"
)

// EventManagerHandle wraps the event stream manager with its context for
// lifecycle management.
type EventManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EventManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideEventManager provides the Server-Sent Events manager.
func ProvideEventManager(i do.Injector) (*EventManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	return &EventManagerHandle{Manager: manager, cancel: cancel}, nil
}
