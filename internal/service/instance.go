package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/id"
	"github.com/booksy/booksy-server/internal/store"
)

// InstanceService handles the singleton server record.
type InstanceService struct {
	store  store.Store
	logger *slog.Logger
	config *config.Config

	mu       sync.Mutex
	onUpdate []func(*domain.Instance)
}

// NewInstanceService creates a new instance service.
func NewInstanceService(store store.Store, logger *slog.Logger, config *config.Config) *InstanceService {
	return &InstanceService{
		store:  store,
		logger: orDiscard(logger),
		config: config,
	}
}

// OnUpdate registers fn to run after the instance settings change.
func (s *InstanceService) OnUpdate(fn func(*domain.Instance)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, fn)
}

// GetInstance retrieves the server instance configuration.
func (s *InstanceService) GetInstance(ctx context.Context) (*domain.Instance, error) {
	instance, err := s.store.GetInstance(ctx)
	if err != nil {
		if errors.Is(err, store.ErrInstanceNotFound) {
			return nil, domainerrors.NotFound("instance configuration not found").WithCause(err)
		}
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// InitializeInstance creates the server record on first run and refreshes
// the name, URLs and version from config on every start.
func (s *InstanceService) InitializeInstance(ctx context.Context) (*domain.Instance, error) {
	instance, err := s.store.GetInstance(ctx)
	switch {
	case errors.Is(err, store.ErrInstanceNotFound):
		instanceID, genErr := id.Generate("server")
		if genErr != nil {
			return nil, fmt.Errorf("generate instance ID: %w", genErr)
		}
		now := time.Now()
		instance = &domain.Instance{ID: instanceID, Name: "Booksy", CreatedAt: now, UpdatedAt: now}
		s.logger.Info("Creating server instance", "instance_id", instanceID)
	case err != nil:
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	if s.config != nil {
		if s.config.Server.Name != "" {
			instance.Name = s.config.Server.Name
		}
		if s.config.Server.LocalURL != "" {
			instance.LocalURL = s.config.Server.LocalURL
		}
		if s.config.Server.RemoteURL != "" {
			instance.RemoteURL = s.config.Server.RemoteURL
		}
	}
	instance.Version = config.Version

	if err := s.store.SaveInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to save instance: %w", err)
	}
	return instance, nil
}

// IsSetupRequired reports whether no root user has been configured yet.
func (s *InstanceService) IsSetupRequired(ctx context.Context) (bool, error) {
	instance, err := s.GetInstance(ctx)
	if err != nil {
		return false, err
	}
	return instance.IsSetupRequired(), nil
}

// SetRootUser records the root user. It can only succeed once.
func (s *InstanceService) SetRootUser(ctx context.Context, userID string) error {
	instance, err := s.GetInstance(ctx)
	if err != nil {
		return err
	}
	if !instance.IsSetupRequired() {
		return domainerrors.AlreadyConfigured("root user already configured")
	}

	instance.SetRootUser(userID)
	if err := s.store.SaveInstance(ctx, instance); err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}

	s.logger.Info("Root user configured", "instance_id", instance.ID, "root_user_id", userID)
	return nil
}

// SetOpenRegistration enables or disables public registration.
// Users who register while it is open wait for admin approval.
func (s *InstanceService) SetOpenRegistration(ctx context.Context, enabled bool) (*domain.Instance, error) {
	instance, err := s.GetInstance(ctx)
	if err != nil {
		return nil, err
	}

	instance.SetOpenRegistration(enabled)
	if err := s.store.SaveInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to update instance: %w", err)
	}

	s.logger.Info("Open registration setting changed", "instance_id", instance.ID, "enabled", enabled)
	return instance, nil
}

// InstanceUpdate contains optional fields for updating instance settings.
type InstanceUpdate struct {
	Name             *string
	RemoteURL        *string
	OpenRegistration *bool
}

// UpdateInstanceSettings applies the non-nil fields of update.
func (s *InstanceService) UpdateInstanceSettings(ctx context.Context, update InstanceUpdate) (*domain.Instance, error) {
	instance, err := s.GetInstance(ctx)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, domainerrors.Validation("name cannot be empty")
		}
		instance.Name = *update.Name
	}
	if update.RemoteURL != nil {
		instance.RemoteURL = *update.RemoteURL
	}
	if update.OpenRegistration != nil {
		instance.OpenRegistration = *update.OpenRegistration
	}
	instance.UpdatedAt = time.Now()

	if err := s.store.SaveInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to update instance: %w", err)
	}

	s.logger.Info("Instance settings updated",
		"instance_id", instance.ID,
		"name", instance.Name,
		"open_registration", instance.OpenRegistration,
	)

	s.mu.Lock()
	hooks := append([]func(*domain.Instance){}, s.onUpdate...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(instance)
	}
	return instance, nil
}
