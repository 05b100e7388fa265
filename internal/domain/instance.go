package domain

import "time"

// Instance is the singleton server record.
type Instance struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	LocalURL         string    `json:"local_url,omitempty"`
	RemoteURL        string    `json:"remote_url,omitempty"`
	RootUserID       string    `json:"root_user_id,omitempty"`
	OpenRegistration bool      `json:"open_registration"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsSetupRequired reports whether no root user exists yet.
func (i *Instance) IsSetupRequired() bool {
	return i.RootUserID == ""
}

// SetRootUser records the root user.
func (i *Instance) SetRootUser(userID string) {
	i.RootUserID = userID
	i.UpdatedAt = time.Now()
}

// SetOpenRegistration toggles public sign-up.
func (i *Instance) SetOpenRegistration(enabled bool) {
	i.OpenRegistration = enabled
	i.UpdatedAt = time.Now()
}
