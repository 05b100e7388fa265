package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/service"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "adminListUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/users",
		Summary:     "List users",
		Description: "Lists all users ordered by creation time, optionally only those pending approval (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminApproveUser",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/users/{id}/approve",
		Summary:     "Approve user",
		Description: "Activates a pending account (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminApproveUser)

	huma.Register(s.api, huma.Operation{
		OperationID:   "adminDenyUser",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/users/{id}/deny",
		Summary:       "Deny user",
		Description:   "Removes a pending account (admin only)",
		Tags:          []string{"Admin"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleAdminDenyUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminUpdateUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/admin/users/{id}",
		Summary:     "Update user",
		Description: "Changes a user's display name, role or permissions (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminUpdateUser)

	huma.Register(s.api, huma.Operation{
		OperationID:   "adminDeleteUser",
		Method:        http.MethodDelete,
		Path:          "/api/v1/admin/users/{id}",
		Summary:       "Delete user",
		Description:   "Deletes a user with their sessions and reading progress (admin only)",
		Tags:          []string{"Admin"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleAdminDeleteUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminReindexSearch",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/search/reindex",
		Summary:     "Rebuild search index",
		Description: "Drops the search index and rebuilds it from the catalog (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminReindex)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/stats",
		Summary:     "Server statistics",
		Description: "Returns catalog, user and reader session counts (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminStats)
}

// === DTOs ===

// ListUsersInput filters the admin user list.
type ListUsersInput struct {
	Status string `query:"status" enum:"active,pending" required:"false" doc:"Only users with this status"`
}

// UsersOutput wraps the user list for Huma. Users is always an array.
type UsersOutput struct {
	Body struct {
		Users []UserResponse `json:"users" doc:"Users ordered by creation time"`
	}
}

// UserIDInput identifies a user in the path.
type UserIDInput struct {
	ID string `path:"id" doc:"User ID"`
}

// AdminUpdateUserRequest is the request body for admin user changes.
type AdminUpdateUserRequest struct {
	DisplayName *string                 `json:"display_name,omitempty" maxLength:"100" doc:"New display name"`
	Role        *domain.Role            `json:"role,omitempty" doc:"admin or member"`
	Permissions *domain.UserPermissions `json:"permissions,omitempty" doc:"Capabilities beyond reading"`
}

// AdminUpdateUserInput wraps the admin update for Huma.
type AdminUpdateUserInput struct {
	ID   string `path:"id" doc:"User ID"`
	Body AdminUpdateUserRequest
}

// ReindexOutput wraps the reindex result for Huma.
type ReindexOutput struct {
	Body service.ReindexResult
}

// StatsResponse summarizes the server.
type StatsResponse struct {
	Books          domain.BookCounts `json:"books" doc:"Catalog counts"`
	Users          int               `json:"users" doc:"Registered users"`
	PendingUsers   int               `json:"pending_users" doc:"Users waiting for approval"`
	ReaderSessions int               `json:"reader_sessions" doc:"Open reader sessions"`
}

// StatsOutput wraps the stats for Huma.
type StatsOutput struct {
	Body StatsResponse
}

// === Handlers ===

func (s *Server) handleAdminListUsers(ctx context.Context, input *ListUsersInput) (*UsersOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	var users []*domain.User
	switch domain.UserStatus(input.Status) {
	case domain.UserStatusPending:
		users, err = s.services.User.ListPendingUsers(ctx, admin)
	default:
		users, err = s.services.User.ListUsers(ctx, admin)
	}
	if err != nil {
		return nil, err
	}

	if input.Status == string(domain.UserStatusActive) {
		active := users[:0]
		for _, u := range users {
			if u.IsActive() {
				active = append(active, u)
			}
		}
		users = active
	}

	out := &UsersOutput{}
	out.Body.Users = mapUserResponses(users)
	return out, nil
}

func (s *Server) handleAdminApproveUser(ctx context.Context, input *UserIDInput) (*UserOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.User.ApproveUser(ctx, admin, input.ID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUserResponse(user)}, nil
}

func (s *Server) handleAdminDenyUser(ctx context.Context, input *UserIDInput) (*struct{}, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.User.DenyUser(ctx, admin, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleAdminUpdateUser(ctx context.Context, input *AdminUpdateUserInput) (*UserOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.User.UpdateUser(ctx, admin, input.ID, service.UpdateUserRequest{
		DisplayName: input.Body.DisplayName,
		Role:        input.Body.Role,
		Permissions: input.Body.Permissions,
	})
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUserResponse(user)}, nil
}

func (s *Server) handleAdminDeleteUser(ctx context.Context, input *UserIDInput) (*struct{}, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.User.DeleteUser(ctx, admin, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleAdminReindex(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}

	result, err := s.services.Search.ReindexAll(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Body: *result}, nil
}

func (s *Server) handleAdminStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	admin, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.services.Book.Stats(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.services.User.ListUsers(ctx, admin)
	if err != nil {
		return nil, err
	}

	resp := StatsResponse{
		Books:          counts,
		Users:          len(users),
		ReaderSessions: s.services.Reader.OpenSessions(),
	}
	for _, u := range users {
		if u.IsPending() {
			resp.PendingUsers++
		}
	}
	return &StatsOutput{Body: resp}, nil
}
