package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/logger"
	"github.com/booksy/booksy-server/internal/store"
	"github.com/booksy/booksy-server/internal/store/kvstore"
	"github.com/booksy/booksy-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "backend", cfg.Store.Backend, "path", cfg.DatabasePath())
	return &StoreHandle{Store: st}, nil
}

// OpenStore opens the backend named in cfg. The CLI uses it directly.
func OpenStore(cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return sqlite.Open(cfg.DatabasePath(), log.Logger)
	case config.BackendBadger, "":
		return kvstore.Open(cfg.DatabasePath(), log.Logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
