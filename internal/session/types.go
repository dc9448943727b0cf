package session

import (
	"time"

	"github.com/antoniostano/npctalk/internal/catalog"
)

// CreateRequest defines payload for creating a player session.
type CreateRequest struct {
	PlayerID   string         `json:"player_id"`
	PlayerName string         `json:"player_name"`
	Gender     catalog.Gender `json:"gender"`
	Hair       int32          `json:"hair"`
	Face       int32          `json:"face"`
	Skin       int8           `json:"skin"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	PlayerID        string    `json:"player_id"`
	Status          Status    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
