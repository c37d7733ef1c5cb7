package ports

import "context"

// StopSessionInput identifies the session to stop and the caller stopping it.
// UserID scopes the transition to sessions the caller owns; admins pass an
// empty UserID to stop any session.
type StopSessionInput struct {
	SessionID string
	UserID    string
}

// StopSessionOutcome reports what happened to a stop request.
// AlreadyStopped means another caller won the transition race and billing
// was skipped; that is a normal signal, not an error. InsufficientBalance means
// the session stopped but the charge could not be collected.
type StopSessionOutcome struct {
	AlreadyStopped      bool
	MinutesBilled       float64
	CreditsCharged      int64
	NewBalance          int64
	InsufficientBalance bool
	Required            int64
	Available           int64
}

// SessionService orchestrates the stop-session flow: transition guard,
// metering, deduction, and threshold notification.
type SessionService interface {
	StopSession(ctx context.Context, input StopSessionInput) (*StopSessionOutcome, error)
}
