package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/service"
)

func (s *Server) registerInstanceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getInstance",
		Method:      http.MethodGet,
		Path:        "/api/v1/instance",
		Summary:     "Get server instance",
		Description: "Returns server instance configuration and setup status",
		Tags:        []string{"Instance"},
	}, s.handleGetInstance)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateInstance",
		Method:      http.MethodPatch,
		Path:        "/api/v1/admin/instance",
		Summary:     "Update server instance",
		Description: "Changes the server name, remote URL or open registration (admin only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateInstance)
}

// InstanceResponse contains server instance data in API responses.
type InstanceResponse struct {
	ID               string    `json:"id" doc:"Instance ID"`
	Name             string    `json:"name" doc:"Server name"`
	Version          string    `json:"version" doc:"Server version"`
	LocalURL         string    `json:"local_url" doc:"Local network URL"`
	RemoteURL        string    `json:"remote_url,omitempty" doc:"Remote access URL"`
	OpenRegistration bool      `json:"open_registration" doc:"Whether public registration is enabled"`
	CreatedAt        time.Time `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt        time.Time `json:"updated_at" doc:"Last update timestamp"`
	SetupRequired    bool      `json:"setup_required" doc:"Whether initial setup is needed"`
}

// InstanceOutput wraps the instance response for Huma.
type InstanceOutput struct {
	Body InstanceResponse
}

// UpdateInstanceRequest is the request body for changing instance settings.
type UpdateInstanceRequest struct {
	Name             *string `json:"name,omitempty" maxLength:"100" doc:"Server name"`
	RemoteURL        *string `json:"remote_url,omitempty" maxLength:"2048" doc:"Remote access URL"`
	OpenRegistration *bool   `json:"open_registration,omitempty" doc:"Allow public registration"`
}

// UpdateInstanceInput wraps the update request for Huma.
type UpdateInstanceInput struct {
	Body UpdateInstanceRequest
}

func (s *Server) handleGetInstance(ctx context.Context, _ *struct{}) (*InstanceOutput, error) {
	instance, err := s.services.Instance.GetInstance(ctx)
	if err != nil {
		s.logger.Error("Failed to get instance", "error", err)
		return nil, huma.Error404NotFound("Server instance configuration not found")
	}

	return &InstanceOutput{Body: mapInstanceResponse(instance)}, nil
}

func (s *Server) handleUpdateInstance(ctx context.Context, input *UpdateInstanceInput) (*InstanceOutput, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}

	instance, err := s.services.Instance.UpdateInstanceSettings(ctx, service.InstanceUpdate{
		Name:             input.Body.Name,
		RemoteURL:        input.Body.RemoteURL,
		OpenRegistration: input.Body.OpenRegistration,
	})
	if err != nil {
		return nil, err
	}

	return &InstanceOutput{Body: mapInstanceResponse(instance)}, nil
}

func mapInstanceResponse(instance *domain.Instance) InstanceResponse {
	return InstanceResponse{
		ID:               instance.ID,
		Name:             instance.Name,
		Version:          instance.Version,
		LocalURL:         instance.LocalURL,
		RemoteURL:        instance.RemoteURL,
		OpenRegistration: instance.OpenRegistration,
		CreatedAt:        instance.CreatedAt,
		UpdatedAt:        instance.UpdatedAt,
		SetupRequired:    instance.IsSetupRequired(),
	}
}
