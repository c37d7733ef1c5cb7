package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentrun/billing-engine/internal/api/metrics"
	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Config carries the billing policy constants.
type Config struct {
	RatePerMinute       float64 // credits charged per metered minute
	SignupBaseline      int64   // credits seeded on first balance query
	LowThresholdPercent float64 // "low balance" boundary, percent of baseline
}

type billingService struct {
	balances ports.BalanceRepository
	ledger   ports.LedgerRepository
	tx       ports.TxRunner
	notifier ports.NotificationSink
	cfg      Config
	log      zerolog.Logger
}

// NewBillingService returns a BillingService implementation.
func NewBillingService(
	balances ports.BalanceRepository,
	ledger ports.LedgerRepository,
	tx ports.TxRunner,
	notifier ports.NotificationSink,
	cfg Config,
	log zerolog.Logger,
) ports.BillingService {
	return &billingService{
		balances: balances,
		ledger:   ledger,
		tx:       tx,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// GetBalance returns the user's current balance, creating it with the signup
// baseline (plus the matching signup_bonus ledger entry) on first query.
func (s *billingService) GetBalance(ctx context.Context, userID string) (*ports.BalanceResult, error) {
	var bal *domain.Balance
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		bal, err = s.ensureBalance(txCtx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &ports.BalanceResult{
		Credits:              bal.Credits,
		PercentageOfBaseline: s.percentOfBaseline(bal.Credits),
	}, nil
}

// CheckSufficient reports whether the user could afford an estimated run
// without mutating anything beyond the lazy balance bootstrap.
func (s *billingService) CheckSufficient(ctx context.Context, userID string, estimatedMinutes float64) (*ports.SufficiencyResult, error) {
	required := BillableCredits(estimatedMinutes, s.cfg.RatePerMinute)

	var bal *domain.Balance
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		bal, err = s.ensureBalance(txCtx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &ports.SufficiencyResult{
		Sufficient:     bal.Credits >= required,
		CurrentBalance: bal.Credits,
		Required:       required,
	}, nil
}

// Deduct meters the given minutes into credits and debits them from the
// user's balance, appending the matching ledger entry in the same atomic
// unit. An insufficient balance aborts the unit without mutating anything
// and is reported as an outcome, not an error.
//
// A zero-minute deduction still writes a zero-delta entry: every billing
// attempt that reached the transaction leaves an audit trace.
func (s *billingService) Deduct(ctx context.Context, input ports.DeductInput) (*ports.DeductionOutcome, error) {
	if !input.Reason.IsDebitReason() {
		return nil, fmt.Errorf("deduct: reason %q: %w", input.Reason, domain.ErrInvalidReason)
	}

	required := BillableCredits(input.Minutes, s.cfg.RatePerMinute)

	var outcome *ports.DeductionOutcome
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		bal, err := s.ensureBalance(txCtx, input.UserID)
		if err != nil {
			return err
		}

		if bal.Credits < required {
			outcome = &ports.DeductionOutcome{
				Sufficient: false,
				Required:   required,
				Available:  bal.Credits,
			}
			return nil
		}

		// Conditional debit: the credits >= required guard in the store makes
		// this safe even against a concurrent debit on the same user.
		updated, err := s.balances.DebitIfSufficient(txCtx, input.UserID, required)
		if err != nil {
			return fmt.Errorf("deduct: debit balance: %w", err)
		}
		if updated == nil {
			// Lost a debit race: a concurrent deduction consumed the credits
			// between the read above and the conditional update. Re-read so
			// Available reports the balance the guard actually saw.
			current, _, err := s.balances.GetOrCreate(txCtx, input.UserID, s.cfg.SignupBaseline)
			if err != nil {
				return fmt.Errorf("deduct: reread balance: %w", err)
			}
			outcome = &ports.DeductionOutcome{
				Sufficient: false,
				Required:   required,
				Available:  current.Credits,
			}
			return nil
		}

		entry := &domain.LedgerEntry{
			ID:           uuid.NewString(),
			UserID:       input.UserID,
			Delta:        -required,
			Reason:       input.Reason,
			BalanceAfter: updated.Credits,
			AgentID:      input.AgentID,
			SessionID:    input.SessionID,
			Metadata:     input.Metadata,
			Timestamp:    time.Now().UTC(),
		}
		if err := s.ledger.Append(txCtx, entry); err != nil {
			return fmt.Errorf("deduct: append ledger: %w", err)
		}

		outcome = &ports.DeductionOutcome{
			Sufficient:     true,
			CreditsCharged: required,
			NewBalance:     updated.Credits,
			Required:       required,
			Available:      bal.Credits,
		}
		return nil
	})
	if err != nil {
		metrics.DeductionsTotal.WithLabelValues(string(input.Reason), "error").Inc()
		return nil, err
	}

	if !outcome.Sufficient {
		metrics.DeductionsTotal.WithLabelValues(string(input.Reason), "insufficient").Inc()
		metrics.InsufficientBalanceTotal.Inc()
		s.log.Info().
			Str("user_id", input.UserID).
			Int64("required", outcome.Required).
			Int64("available", outcome.Available).
			Msg("deduction rejected: insufficient balance")
		return outcome, nil
	}

	metrics.DeductionsTotal.WithLabelValues(string(input.Reason), "ok").Inc()
	metrics.CreditsDeductedTotal.Add(float64(outcome.CreditsCharged))
	s.log.Info().
		Str("user_id", input.UserID).
		Str("session_id", input.SessionID).
		Int64("credits", outcome.CreditsCharged).
		Int64("new_balance", outcome.NewBalance).
		Msg("deduction committed")

	// Threshold check is a best-effort follow-up, never part of the
	// atomic unit and never a reason to fail the deduction.
	s.notifyThreshold(input.UserID, outcome.NewBalance)

	return outcome, nil
}

// AddCredits adds a non-negative amount to the user's balance with its own
// ledger entry, under the same commit/rollback discipline as Deduct.
func (s *billingService) AddCredits(ctx context.Context, input ports.AddCreditsInput) (*ports.CreditResult, error) {
	if input.Amount < 0 {
		return nil, fmt.Errorf("add credits: %w", domain.ErrNegativeAmount)
	}
	if !input.Reason.IsCreditReason() {
		return nil, fmt.Errorf("add credits: reason %q: %w", input.Reason, domain.ErrInvalidReason)
	}

	var result *ports.CreditResult
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.ensureBalance(txCtx, input.UserID); err != nil {
			return err
		}

		updated, err := s.balances.Credit(txCtx, input.UserID, input.Amount)
		if err != nil {
			return fmt.Errorf("add credits: %w", err)
		}

		entry := &domain.LedgerEntry{
			ID:           uuid.NewString(),
			UserID:       input.UserID,
			Delta:        input.Amount,
			Reason:       input.Reason,
			BalanceAfter: updated.Credits,
			Metadata:     input.Metadata,
			Timestamp:    time.Now().UTC(),
		}
		if err := s.ledger.Append(txCtx, entry); err != nil {
			return fmt.Errorf("add credits: append ledger: %w", err)
		}

		result = &ports.CreditResult{NewBalance: updated.Credits}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", input.UserID).
		Str("reason", string(input.Reason)).
		Int64("amount", input.Amount).
		Int64("new_balance", result.NewBalance).
		Msg("credits added")

	return result, nil
}

// NormalizeHistoryPage clamps pagination inputs to the bounds History
// applies: limit defaults to 20 and caps at 100, offset floors at zero.
// Callers that echo pagination back must report these effective values.
func NormalizeHistoryPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// History returns a page of the user's ledger, most recent first.
func (s *billingService) History(ctx context.Context, input ports.HistoryInput) ([]*domain.LedgerEntry, int64, error) {
	limit, offset := NormalizeHistoryPage(input.Limit, input.Offset)

	return s.ledger.ListByUser(ctx, ports.LedgerFilter{
		UserID: input.UserID,
		Limit:  limit,
		Offset: offset,
	})
}

// ensureBalance returns the user's balance, seeding it (and the signup_bonus
// ledger entry) when this is the user's first contact with billing. Both
// writes happen in the caller's transaction, so a partial bootstrap cannot
// survive a failure.
func (s *billingService) ensureBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	bal, created, err := s.balances.GetOrCreate(ctx, userID, s.cfg.SignupBaseline)
	if err != nil {
		return nil, fmt.Errorf("ensure balance: %w", err)
	}
	if !created {
		return bal, nil
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Delta:        s.cfg.SignupBaseline,
		Reason:       domain.ReasonSignupBonus,
		BalanceAfter: s.cfg.SignupBaseline,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("ensure balance: seed ledger: %w", err)
	}

	s.log.Info().Str("user_id", userID).Int64("credits", bal.Credits).Msg("balance bootstrapped")
	return bal, nil
}

func (s *billingService) notifyThreshold(userID string, newBalance int64) {
	req := EvaluateThreshold(userID, newBalance, s.cfg.SignupBaseline, s.cfg.LowThresholdPercent)
	if req == nil {
		return
	}

	metrics.ThresholdNotificationsTotal.WithLabelValues(string(req.Type)).Inc()
	s.notifier.Enqueue(*req)
	s.log.Info().
		Str("user_id", userID).
		Str("type", string(req.Type)).
		Int64("credits", newBalance).
		Msg("threshold notification requested")
}

func (s *billingService) percentOfBaseline(credits int64) float64 {
	if s.cfg.SignupBaseline <= 0 {
		return 0
	}
	return float64(credits) / float64(s.cfg.SignupBaseline) * 100
}
