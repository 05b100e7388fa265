package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's profile",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCurrentUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/me",
		Summary:     "Update profile",
		Description: "Changes the authenticated user's display name",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMySessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me/sessions",
		Summary:     "List my sessions",
		Description: "Returns the devices signed in to the caller's account",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMySessions)
}

// === DTOs ===

// UserResponse is the client-facing user. It never carries the password hash.
type UserResponse struct {
	ID          string                 `json:"id" doc:"User ID"`
	Email       string                 `json:"email" doc:"User email"`
	DisplayName string                 `json:"display_name" doc:"Display name"`
	Role        domain.Role            `json:"role" enum:"admin,member" doc:"User role"`
	Status      domain.UserStatus      `json:"status" enum:"active,pending" doc:"Account status"`
	IsRoot      bool                   `json:"is_root" doc:"Whether user is the root admin"`
	Permissions domain.UserPermissions `json:"permissions" doc:"Capabilities beyond reading"`
	CreatedAt   time.Time              `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt   time.Time              `json:"updated_at" doc:"Last update timestamp"`
	LastLoginAt *time.Time             `json:"last_login_at,omitempty" doc:"Last login timestamp"`
	ApprovedAt  *time.Time             `json:"approved_at,omitempty" doc:"When an admin approved the account"`
}

// UserOutput wraps a single user for Huma.
type UserOutput struct {
	Body UserResponse
}

// UpdateProfileRequest is the request body for profile changes.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" minLength:"1" maxLength:"100" doc:"New display name"`
}

// UpdateProfileInput wraps the profile update for Huma.
type UpdateProfileInput struct {
	Body UpdateProfileRequest
}

// SessionInfo describes one signed-in device.
type SessionInfo struct {
	ID         string    `json:"id" doc:"Session ID"`
	Device     string    `json:"device" doc:"Human readable device name"`
	DeviceType string    `json:"device_type" doc:"Device type"`
	Platform   string    `json:"platform" doc:"Platform"`
	IPAddress  string    `json:"ip_address,omitempty" doc:"Last seen IP address"`
	CreatedAt  time.Time `json:"created_at" doc:"Sign-in time"`
	LastSeenAt time.Time `json:"last_seen_at" doc:"Last activity"`
	ExpiresAt  time.Time `json:"expires_at" doc:"Refresh token expiry"`
	Current    bool      `json:"current" doc:"Whether this is the calling session"`
}

// SessionsOutput wraps the session list for Huma.
type SessionsOutput struct {
	Body struct {
		Sessions []SessionInfo `json:"sessions" doc:"Active sessions"`
	}
}

// === Handlers ===

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUserResponse(user)}, nil
}

func (s *Server) handleUpdateCurrentUser(ctx context.Context, input *UpdateProfileInput) (*UserOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := s.services.User.UpdateProfile(ctx, user, service.UpdateProfileRequest{
		DisplayName: input.Body.DisplayName,
	})
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUserResponse(updated)}, nil
}

func (s *Server) handleListMySessions(ctx context.Context, _ *struct{}) (*SessionsOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := s.services.Session.ListUserSessions(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	current := currentSessionID(ctx)
	out := &SessionsOutput{}
	out.Body.Sessions = make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out.Body.Sessions = append(out.Body.Sessions, SessionInfo{
			ID:         sess.ID,
			Device:     sess.DisplayName(),
			DeviceType: sess.DeviceType,
			Platform:   sess.Platform,
			IPAddress:  sess.IPAddress,
			CreatedAt:  sess.CreatedAt,
			LastSeenAt: sess.LastSeenAt,
			ExpiresAt:  sess.ExpiresAt,
			Current:    sess.ID == current,
		})
	}
	return out, nil
}

func mapUserResponse(u *domain.User) UserResponse {
	if u == nil {
		return UserResponse{}
	}
	status := u.Status
	if status == "" {
		status = domain.UserStatusActive
	}
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.Name(),
		Role:        u.Role,
		Status:      status,
		IsRoot:      u.IsRoot,
		Permissions: u.Permissions,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
		ApprovedAt:  u.ApprovedAt,
	}
}

func mapUserResponses(users []*domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, mapUserResponse(u))
	}
	return out
}
