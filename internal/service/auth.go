package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/booksy/booksy-server/internal/auth"
	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/id"
	"github.com/booksy/booksy-server/internal/sse"
	"github.com/booksy/booksy-server/internal/store"
)

// AuthService handles user authentication (setup, registration, login and
// token verification). Session bookkeeping is delegated to SessionService.
type AuthService struct {
	store           store.Store
	tokenService    *auth.TokenService
	sessionService  *SessionService
	instanceService *InstanceService
	logger          *slog.Logger
	events          EventEmitter
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store store.Store,
	tokenService *auth.TokenService,
	sessionService *SessionService,
	instanceService *InstanceService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:           store,
		tokenService:    tokenService,
		sessionService:  sessionService,
		instanceService: instanceService,
		logger:          orDiscard(logger),
		events:          noopEmitter{},
	}
}

// SetEventEmitter announces new registrations to e.
func (s *AuthService) SetEventEmitter(e EventEmitter) {
	s.events = e
}

// SetupRequest contains the initial root user creation data.
type SetupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// LoginRequest contains user credentials and device information.
type LoginRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required"`
	DeviceInfo auth.DeviceInfo `json:"device_info"`
	IPAddress  string          `json:"-"` // set by the handler
}

// RefreshRequest contains the refresh token and optional device updates.
type RefreshRequest struct {
	RefreshToken string          `json:"refresh_token" validate:"required"`
	DeviceInfo   auth.DeviceInfo `json:"device_info"`
	IPAddress    string          `json:"-"`
}

// RegisterRequest contains user registration data for open registration.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// RegisterResponse contains the result of a registration request.
type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// AuthResponse contains authentication tokens and user data.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// Setup creates the root user and completes initial server configuration.
// It only works once, before any user exists.
func (s *AuthService) Setup(ctx context.Context, req SetupRequest, device auth.DeviceInfo) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	setupRequired, err := s.instanceService.IsSetupRequired(ctx)
	if err != nil {
		return nil, fmt.Errorf("check setup status: %w", err)
	}
	if !setupRequired {
		return nil, domainerrors.AlreadyConfigured("server is already configured")
	}

	now := time.Now()
	user, err := newUser(req.Email, req.Password, req.DisplayName)
	if err != nil {
		return nil, err
	}
	user.IsRoot = true
	user.Role = domain.RoleAdmin
	user.Status = domain.UserStatusActive
	user.LastLoginAt = &now
	user.Permissions = domain.UserPermissions{CanDownload: true, CanUpload: true}

	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.instanceService.SetRootUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("configure instance: %w", err)
	}

	if !device.IsValid() {
		device = auth.DeviceInfo{
			DeviceType:    "web",
			Platform:      "Web",
			ClientName:    "Booksy Web",
			ClientVersion: "1.0.0",
		}
	}
	sessionResp, err := s.sessionService.CreateSession(ctx, user, device, "")
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("Server setup complete", "user_id", user.ID, "email", user.Email)

	return &AuthResponse{User: user, SessionResponse: *sessionResp}, nil
}

// Register creates a pending account when open registration is enabled.
// An admin must approve it before the user can log in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	instance, err := s.instanceService.GetInstance(ctx)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	if instance.IsSetupRequired() {
		return nil, domainerrors.Forbidden("server setup has not been completed")
	}
	if !instance.OpenRegistration {
		return nil, domainerrors.Forbidden("registration is not open")
	}

	user, err := newUser(req.Email, req.Password, req.DisplayName)
	if err != nil {
		return nil, err
	}
	user.Role = domain.RoleMember
	user.Status = domain.UserStatusPending
	user.Permissions = domain.DefaultPermissions()

	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered (pending approval)", "user_id", user.ID, "email", user.Email)
	s.events.Emit(sse.NewUserPendingEvent(user))

	return &RegisterResponse{
		UserID:  user.ID,
		Message: "Registration submitted. Please wait for admin approval.",
	}, nil
}

// Login authenticates a user and creates a new session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if !req.DeviceInfo.IsValid() {
		return nil, domainerrors.Validation("device_info is required (device_type and platform)")
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Don't leak whether the email exists.
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}
	if user.IsPending() {
		return nil, domainerrors.Forbidden("your account is pending admin approval")
	}

	now := time.Now()
	user.LastLoginAt = &now
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("Failed to update last login time", "user_id", user.ID, "error", err)
	}

	sessionResp, err := s.sessionService.CreateSession(ctx, user, req.DeviceInfo, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID, "device", req.DeviceInfo.Platform)

	return &AuthResponse{User: user, SessionResponse: *sessionResp}, nil
}

// RefreshTokens exchanges a refresh token for a new token pair. The old
// refresh token is invalidated.
func (s *AuthService) RefreshTokens(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	sessionResp, user, err := s.sessionService.RefreshSession(ctx, req.RefreshToken, req.DeviceInfo, req.IPAddress)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, SessionResponse: *sessionResp}, nil
}

// Logout revokes a session, invalidating its refresh token.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessionService.DeleteSession(ctx, sessionID)
}

// VerifyAccessToken validates a token and returns the user it belongs to.
// The token's session must still exist, so logout takes effect before the
// access token expires.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("invalid or expired access token").WithCause(err)
	}

	if _, err := s.sessionService.GetSession(ctx, claims.SessionID); err != nil {
		return nil, nil, err
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domainerrors.Unauthorized("user not found").WithCause(err)
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive() {
		return nil, nil, domainerrors.Forbidden("account is not active")
	}

	return user, claims, nil
}

func newUser(email, password, displayName string) (*domain.User, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Syncable:     domain.Syncable{ID: userID},
		Email:        domain.NormalizeEmail(email),
		PasswordHash: passwordHash,
		DisplayName:  strings.TrimSpace(displayName),
	}
	user.InitTimestamps()
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, user *domain.User) error {
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domainerrors.AlreadyExists("email already in use").WithCause(err)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
