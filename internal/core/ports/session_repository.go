package ports

import (
	"context"
	"time"

	"github.com/agentrun/billing-engine/internal/core/domain"
)

// SessionRepository is the billing core's narrow view of the session store.
type SessionRepository interface {
	// CompleteTransition atomically moves the session from running to the
	// given terminal status in a single conditional update, returning the
	// pre-transition snapshot when the match succeeded. It returns
	// (nil, nil) when the session exists but was no longer running: the
	// caller lost the race and must skip billing. When userID is non-empty
	// the match additionally requires ownership.
	// Returns domain.ErrSessionNotFound when no such session exists.
	CompleteTransition(ctx context.Context, sessionID, userID string, to domain.SessionStatus, completedAt time.Time) (*domain.Session, error)

	// FindByID retrieves a session without modifying it.
	FindByID(ctx context.Context, sessionID string) (*domain.Session, error)
}
