package domain

import (
	"errors"
	"time"
)

// SessionStatus represents the lifecycle state of an automation session.
// The session's broader lifecycle is owned by the automation collaborator;
// this core only performs the conditional transition out of running.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionStopped   SessionStatus = "stopped"
)

var ErrSessionNotFound = errors.New("session not found")

// IsTerminal reports whether the status ends a session's billable life.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionStopped:
		return true
	}
	return false
}

// Session is a long-running automation session as seen by billing.
type Session struct {
	ID          string        `json:"id" bson:"_id"`
	UserID      string        `json:"user_id" bson:"user_id"`
	AgentID     string        `json:"agent_id,omitempty" bson:"agent_id,omitempty"`
	Status      SessionStatus `json:"status" bson:"status"`
	StartedAt   time.Time     `json:"started_at" bson:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}
