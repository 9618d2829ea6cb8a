package model

import "time"

// UnlockRequest represents a vault unlock request.
type UnlockRequest struct {
	MasterPassword string `json:"master_password"`
}

// SessionResponse carries the session token issued on unlock.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StatusResponse reports whether the vault key is loaded.
type StatusResponse struct {
	Unlocked bool `json:"unlocked"`
}
