package domain

import (
	"strings"
	"time"
)

// Role is the user's permission level.
type Role string

const (
	// RoleAdmin can manage users and the catalog.
	RoleAdmin Role = "admin"
	// RoleMember can browse and read active books.
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// UserStatus is the account state.
type UserStatus string

const (
	// UserStatusActive accounts can log in.
	UserStatusActive UserStatus = "active"
	// UserStatusPending accounts registered openly and wait for an admin.
	UserStatusPending UserStatus = "pending"
)

// UserPermissions are per-user action switches.
type UserPermissions struct {
	CanDownload bool `json:"can_download"` // fetch the original EPUB file
	CanUpload   bool `json:"can_upload"`   // add books to the catalog
}

// DefaultPermissions returns the permissions of a new member.
func DefaultPermissions() UserPermissions {
	return UserPermissions{CanDownload: true, CanUpload: false}
}

// User is an account.
type User struct {
	Syncable
	Email        string          `json:"email"`
	PasswordHash string          `json:"password_hash,omitempty"`
	IsRoot       bool            `json:"is_root"`
	Role         Role            `json:"role"`
	Status       UserStatus      `json:"status"`
	ApprovedBy   string          `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty"`
	DisplayName  string          `json:"display_name"`
	LastLoginAt  *time.Time      `json:"last_login_at,omitempty"`
	Permissions  UserPermissions `json:"permissions"`
}

// IsAdmin reports whether u can administer the server. The root user is
// always an admin.
func (u *User) IsAdmin() bool {
	return u.IsRoot || u.Role == RoleAdmin
}

// IsActive reports whether u may log in.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}

// IsPending reports whether u waits for approval.
func (u *User) IsPending() bool {
	return u.Status == UserStatusPending
}

// CanUpload reports whether u may add books.
func (u *User) CanUpload() bool {
	return u.IsAdmin() || u.Permissions.CanUpload
}

// Name returns the display name, falling back to the email local part.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session is an authenticated device. Each login creates one.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	IPAddress        string    `json:"ip_address,omitempty"`

	DeviceType    string `json:"device_type"`
	Platform      string `json:"platform"`
	ClientName    string `json:"client_name"`
	ClientVersion string `json:"client_version"`
	DeviceName    string `json:"device_name,omitempty"`
}

// Touch updates the last seen time.
func (s *Session) Touch() {
	s.LastSeenAt = time.Now()
}

// IsExpired reports whether the refresh window has passed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// DisplayName describes the device for session lists.
func (s *Session) DisplayName() string {
	switch {
	case s.DeviceName != "":
		return s.DeviceName
	case s.ClientName != "" && s.Platform != "":
		return s.ClientName + " on " + s.Platform
	case s.Platform != "":
		return s.Platform
	case s.ClientName != "":
		return s.ClientName
	default:
		return "Unknown Device"
	}
}
