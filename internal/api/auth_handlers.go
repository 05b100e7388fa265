package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/auth"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	limited := huma.Middlewares{s.rateLimitAuth}

	huma.Register(s.api, huma.Operation{
		OperationID: "setup",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/setup",
		Summary:     "Initial server setup",
		Description: "Creates the root admin user. Can only be called once.",
		Tags:        []string{"Authentication"},
		Middlewares: limited,
	}, s.handleSetup)

	huma.Register(s.api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/register",
		Summary:     "Register new user",
		Description: "Creates a new user account (requires open registration to be enabled). User will be in pending status until approved by admin.",
		Tags:        []string{"Authentication"},
		Middlewares: limited,
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "User login",
		Description: "Authenticates a user and returns access and refresh tokens",
		Tags:        []string{"Authentication"},
		Middlewares: limited,
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Exchanges a refresh token for new tokens. The old refresh token stops working.",
		Tags:        []string{"Authentication"},
		Middlewares: limited,
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Logout",
		Description: "Revokes the current session, or another session of the caller",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLogout)
}

// === DTOs ===

// DeviceInfo contains device metadata for session tracking.
type DeviceInfo struct {
	DeviceType    string `json:"device_type,omitempty" maxLength:"50" doc:"Device type (web, desktop, mobile, terminal)"`
	Platform      string `json:"platform,omitempty" maxLength:"50" doc:"Platform (iOS, Android, Windows, macOS, Linux, Web)"`
	ClientName    string `json:"client_name,omitempty" maxLength:"100" doc:"Client name"`
	ClientVersion string `json:"client_version,omitempty" maxLength:"50" doc:"Client version"`
	DeviceName    string `json:"device_name,omitempty" maxLength:"100" doc:"Human-readable device name"`
}

func (d DeviceInfo) toAuth() auth.DeviceInfo {
	return auth.DeviceInfo{
		DeviceType:    d.DeviceType,
		Platform:      d.Platform,
		ClientName:    d.ClientName,
		ClientVersion: d.ClientVersion,
		DeviceName:    d.DeviceName,
	}
}

// SetupRequest is the request body for initial server setup.
type SetupRequest struct {
	Email       string     `json:"email" maxLength:"254" doc:"Admin email address"`
	Password    string     `json:"password" minLength:"8" maxLength:"1024" doc:"Admin password"`
	DisplayName string     `json:"display_name" maxLength:"100" doc:"Admin display name"`
	DeviceInfo  DeviceInfo `json:"device_info,omitempty" required:"false" doc:"Client device info"`
}

// SetupInput wraps the setup request for Huma.
type SetupInput struct {
	Body SetupRequest
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email      string     `json:"email" maxLength:"254" doc:"User email"`
	Password   string     `json:"password" maxLength:"1024" doc:"User password"`
	DeviceInfo DeviceInfo `json:"device_info" doc:"Client device info"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string     `json:"refresh_token" doc:"Refresh token"`
	DeviceInfo   DeviceInfo `json:"device_info,omitempty" required:"false" doc:"Updated device info"`
}

// RefreshInput wraps the refresh request for Huma.
type RefreshInput struct {
	Body RefreshRequest
}

// LogoutRequest is the request body for logout.
type LogoutRequest struct {
	SessionID string `json:"session_id,omitempty" required:"false" maxLength:"100" doc:"Session to revoke; defaults to the current one"`
}

// LogoutInput wraps the logout request for Huma.
type LogoutInput struct {
	Body *LogoutRequest `required:"false"`
}

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email       string `json:"email" maxLength:"254" doc:"User email address"`
	Password    string `json:"password" minLength:"8" maxLength:"1024" doc:"User password"`
	DisplayName string `json:"display_name" maxLength:"100" doc:"User display name"`
}

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body RegisterRequest
}

// RegisterResponse contains the result of a registration.
type RegisterResponse struct {
	UserID  string `json:"user_id" doc:"Created user ID"`
	Message string `json:"message" doc:"Status message"`
}

// RegisterOutput wraps the register response for Huma.
type RegisterOutput struct {
	Body RegisterResponse
}

// AuthResponse contains authentication tokens and user info.
type AuthResponse struct {
	AccessToken  string       `json:"access_token" doc:"PASETO access token"`
	RefreshToken string       `json:"refresh_token" doc:"Refresh token"`
	SessionID    string       `json:"session_id" doc:"Session identifier"`
	TokenType    string       `json:"token_type" doc:"Token type (Bearer)"`
	ExpiresIn    int          `json:"expires_in" doc:"Token expiry in seconds"`
	User         UserResponse `json:"user" doc:"Authenticated user"`
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body AuthResponse
}

// MessageResponse contains a simple message.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleSetup(ctx context.Context, input *SetupInput) (*AuthOutput, error) {
	req := service.SetupRequest{
		Email:       input.Body.Email,
		Password:    input.Body.Password,
		DisplayName: input.Body.DisplayName,
	}

	resp, err := s.services.Auth.Setup(ctx, req, input.Body.DeviceInfo.toAuth())
	if err != nil {
		return nil, err
	}

	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
	req := service.RegisterRequest{
		Email:       input.Body.Email,
		Password:    input.Body.Password,
		DisplayName: input.Body.DisplayName,
	}

	resp, err := s.services.Auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	return &RegisterOutput{
		Body: RegisterResponse{
			UserID:  resp.UserID,
			Message: resp.Message,
		},
	}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	req := service.LoginRequest{
		Email:      input.Body.Email,
		Password:   input.Body.Password,
		DeviceInfo: input.Body.DeviceInfo.toAuth(),
		IPAddress:  clientIP(ctx),
	}

	resp, err := s.services.Auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	req := service.RefreshRequest{
		RefreshToken: input.Body.RefreshToken,
		DeviceInfo:   input.Body.DeviceInfo.toAuth(),
		IPAddress:    clientIP(ctx),
	}

	resp, err := s.services.Auth.RefreshTokens(ctx, req)
	if err != nil {
		return nil, err
	}

	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleLogout(ctx context.Context, input *LogoutInput) (*MessageOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	sessionID := currentSessionID(ctx)
	if input.Body != nil && input.Body.SessionID != "" && input.Body.SessionID != sessionID {
		// Revoking another device: it has to be one of the caller's sessions.
		other, err := s.services.Session.GetSession(ctx, input.Body.SessionID)
		if err != nil || (other.UserID != user.ID && !user.IsAdmin()) {
			return nil, domainerrors.NotFound("session not found")
		}
		sessionID = other.ID
	}

	if err := s.services.Auth.Logout(ctx, sessionID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Logged out successfully"}}, nil
}

// === Helpers ===

func mapAuthResponse(resp *service.AuthResponse) AuthResponse {
	return AuthResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		SessionID:    resp.SessionID,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		User:         mapUserResponse(resp.User),
	}
}
