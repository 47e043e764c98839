package domain

import (
	"time"
)

type SessionStatus string

const (
	SessionStatusNotAuthenticated SessionStatus = "NOT_AUTHENTICATED"
	SessionStatusValid            SessionStatus = "VALID"
	SessionStatusInvalid          SessionStatus = "INVALID"
)

// SessionRecord is the stored credential of one bound game account.
// There is at most one record per PlayerID.
type SessionRecord struct {
	ID           int64         `json:"id" db:"id"`
	OwnerUserID  string        `json:"owner_user_id" db:"owner_user_id"`
	PlayerID     string        `json:"player_id" db:"player_id"`
	ServerID     string        `json:"server_id" db:"server_id"`
	SessionToken string        `json:"-" db:"session_token"`
	AccessToken  string        `json:"-" db:"access_token"`
	DeviceID     string        `json:"device_id" db:"device_id"`
	Platform     string        `json:"platform" db:"platform"`
	Status       SessionStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

func (r *SessionRecord) Usable() bool {
	return r != nil && r.SessionToken != "" && r.Status != SessionStatusInvalid
}

// Credential is what a remote call needs to authenticate as a session.
type Credential struct {
	SessionToken string
	AccessToken  string
	DeviceID     string
	ServerID     string
}

// GameRole is one game account visible to a session token.
type GameRole struct {
	GameID    int
	PlayerID  string
	ServerID  string
	Name      string
	IsDefault bool
}
