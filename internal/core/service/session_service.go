package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentrun/billing-engine/internal/api/metrics"
	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
)

type sessionService struct {
	sessions ports.SessionRepository
	billing  ports.BillingService
	log      zerolog.Logger
}

// NewSessionService returns a SessionService implementation.
func NewSessionService(
	sessions ports.SessionRepository,
	billing ports.BillingService,
	log zerolog.Logger,
) ports.SessionService {
	return &sessionService{
		sessions: sessions,
		billing:  billing,
		log:      log,
	}
}

// StopSession moves a session out of running and charges for its runtime.
// Among N concurrent stop calls for the same session, exactly one wins the
// conditional transition and proceeds to billing; the others observe
// AlreadyStopped. A retry after a store failure is safe for the same
// reason: a previously committed transition makes the match fail harmlessly.
func (s *sessionService) StopSession(ctx context.Context, input ports.StopSessionInput) (*ports.StopSessionOutcome, error) {
	start := time.Now()
	completedAt := time.Now().UTC()

	// 1. Transition guard: single conditional update, the primary defense
	// against double-charging.
	prior, err := s.sessions.CompleteTransition(ctx, input.SessionID, input.UserID, domain.SessionStopped, completedAt)
	if err != nil {
		return nil, fmt.Errorf("stop session: %w", err)
	}
	if prior == nil {
		metrics.TransitionConflictsTotal.Inc()
		s.log.Debug().
			Str("session_id", input.SessionID).
			Msg("session already stopped, billing skipped")
		return &ports.StopSessionOutcome{AlreadyStopped: true}, nil
	}

	// 2. Meter the runtime from the pre-transition snapshot.
	minutes := ElapsedMinutes(prior.StartedAt, completedAt)

	// 3. Debit exactly once; only the transition winner reaches this point.
	outcome, err := s.billing.Deduct(ctx, ports.DeductInput{
		UserID:    prior.UserID,
		Minutes:   minutes,
		Reason:    domain.ReasonAgentRun,
		AgentID:   prior.AgentID,
		SessionID: prior.ID,
		Metadata: map[string]string{
			"started_at":   prior.StartedAt.UTC().Format(time.RFC3339),
			"completed_at": completedAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		// The session is already stopped; the charge failed. Surface the
		// failure so the caller can reconcile via the ledger before retrying.
		return nil, fmt.Errorf("stop session: charge: %w", err)
	}

	metrics.DeductionDuration.WithLabelValues(string(domain.ReasonAgentRun)).Observe(time.Since(start).Seconds())

	if !outcome.Sufficient {
		s.log.Warn().
			Str("session_id", input.SessionID).
			Str("user_id", prior.UserID).
			Int64("required", outcome.Required).
			Int64("available", outcome.Available).
			Msg("session stopped but balance was insufficient")
		return &ports.StopSessionOutcome{
			MinutesBilled:       minutes,
			InsufficientBalance: true,
			Required:            outcome.Required,
			Available:           outcome.Available,
			NewBalance:          outcome.Available,
		}, nil
	}

	s.log.Info().
		Str("session_id", input.SessionID).
		Str("user_id", prior.UserID).
		Float64("minutes", minutes).
		Int64("credits", outcome.CreditsCharged).
		Msg("session stopped and billed")

	return &ports.StopSessionOutcome{
		MinutesBilled:  minutes,
		CreditsCharged: outcome.CreditsCharged,
		NewBalance:     outcome.NewBalance,
	}, nil
}
