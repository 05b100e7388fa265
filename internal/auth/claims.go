package auth

import "time"

// AccessClaims are the claims carried inside an encrypted access token.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`

	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// DeviceInfo describes the client that opened an auth session.
type DeviceInfo struct {
	DeviceType    string `json:"device_type"` // web, desktop, mobile, terminal
	Platform      string `json:"platform"`
	ClientName    string `json:"client_name"`
	ClientVersion string `json:"client_version"`
	DeviceName    string `json:"device_name"`
}

// IsValid reports whether the minimum fields are present.
func (d DeviceInfo) IsValid() bool {
	return d.DeviceType != "" && d.Platform != ""
}
