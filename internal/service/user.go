package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/sse"
	"github.com/booksy/booksy-server/internal/store"
)

// UserService handles account management: the caller's own profile and the
// admin-only user operations.
type UserService struct {
	store  store.Store
	logger *slog.Logger
	events EventEmitter
}

// NewUserService creates a new user service.
func NewUserService(store store.Store, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		logger: orDiscard(logger),
		events: noopEmitter{},
	}
}

// SetEventEmitter announces approvals to e.
func (s *UserService) SetEventEmitter(e EventEmitter) {
	s.events = e
}

// UpdateUserRequest contains the fields an admin can change on a user.
type UpdateUserRequest struct {
	DisplayName *string                 `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Role        *domain.Role            `json:"role,omitempty"`
	Permissions *domain.UserPermissions `json:"permissions,omitempty"`
}

// UpdateProfileRequest contains the fields users can change on themselves.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,min=1,max=100"`
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return user, nil
}

// UpdateProfile updates the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, user *domain.User, req UpdateProfileRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ListUsers returns every account ordered by creation time.
func (s *UserService) ListUsers(ctx context.Context, admin *domain.User) ([]*domain.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	slices.SortFunc(users, func(a, b *domain.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return users, nil
}

// ListPendingUsers returns accounts waiting for approval.
func (s *UserService) ListPendingUsers(ctx context.Context, admin *domain.User) ([]*domain.User, error) {
	users, err := s.ListUsers(ctx, admin)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(users, func(u *domain.User) bool { return !u.IsPending() }), nil
}

// ApproveUser activates a pending account.
func (s *UserService) ApproveUser(ctx context.Context, admin *domain.User, userID string) (*domain.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsPending() {
		return nil, domainerrors.Conflict("user is not pending approval")
	}

	now := time.Now()
	user.Status = domain.UserStatusActive
	user.ApprovedBy = admin.ID
	user.ApprovedAt = &now
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("User approved", "admin_id", admin.ID, "user_id", user.ID)
	s.events.Emit(sse.NewUserApprovedEvent(user))
	return user, nil
}

// DenyUser removes a pending account.
func (s *UserService) DenyUser(ctx context.Context, admin *domain.User, userID string) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsPending() {
		return domainerrors.Conflict("user is not pending approval")
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("Pending user denied", "admin_id", admin.ID, "user_id", userID)
	return nil
}

// UpdateUser changes a user's display name, role or permissions. The root
// user's role is fixed and the last admin cannot be demoted.
func (s *UserService) UpdateUser(ctx context.Context, admin *domain.User, userID string, req UpdateUserRequest) (*domain.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Role != nil && *req.Role != user.Role {
		if !req.Role.Valid() {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"role": "must be admin or member"})
		}
		if user.IsRoot {
			return nil, domainerrors.Forbidden("cannot change role of the root user")
		}
		if user.Role == domain.RoleAdmin {
			if err := s.ensureOtherAdminExists(ctx, userID); err != nil {
				return nil, err
			}
		}
		user.Role = *req.Role
	}
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Permissions != nil {
		user.Permissions = *req.Permissions
	}

	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("User updated by admin", "admin_id", admin.ID, "user_id", userID)
	return user, nil
}

// DeleteUser removes a user together with their sessions, reading progress
// and preferences. Admins cannot delete themselves, the root user or the
// last admin.
func (s *UserService) DeleteUser(ctx context.Context, admin *domain.User, userID string) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	if admin.ID == userID {
		return domainerrors.Forbidden("cannot delete your own account")
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsRoot {
		return domainerrors.Forbidden("cannot delete the root user")
	}
	if user.IsAdmin() {
		if err := s.ensureOtherAdminExists(ctx, userID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("User deleted by admin", "admin_id", admin.ID, "user_id", userID, "email", user.Email)
	return nil
}

// ensureOtherAdminExists checks that an active admin other than excludeUserID
// remains.
func (s *UserService) ensureOtherAdminExists(ctx context.Context, excludeUserID string) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if u.ID != excludeUserID && u.IsAdmin() && u.IsActive() {
			return nil
		}
	}
	return domainerrors.Forbidden("cannot remove the last admin")
}
