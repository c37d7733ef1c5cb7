package ports

import (
	"context"

	"github.com/agentrun/billing-engine/internal/core/domain"
)

// DeductInput carries all data for a single deduction attempt.
type DeductInput struct {
	UserID    string
	Minutes   float64
	Reason    domain.Reason
	AgentID   string
	SessionID string
	Metadata  map[string]string
}

// DeductionOutcome reports the result of a deduction attempt. Insufficient
// balance is an outcome, not an error: no mutation occurred and the caller
// needs the amounts for display.
type DeductionOutcome struct {
	Sufficient     bool
	CreditsCharged int64
	NewBalance     int64
	Required       int64
	Available      int64
}

// AddCreditsInput carries the data for an additive credit operation.
type AddCreditsInput struct {
	UserID   string
	Amount   int64
	Reason   domain.Reason
	Metadata map[string]string
}

// CreditResult is returned after credits were added.
type CreditResult struct {
	NewBalance int64
}

// BalanceResult is the balance view exposed to collaborators.
type BalanceResult struct {
	Credits              int64
	PercentageOfBaseline float64
}

// SufficiencyResult answers "could this user afford an estimated run".
type SufficiencyResult struct {
	Sufficient     bool
	CurrentBalance int64
	Required       int64
}

// HistoryInput carries pagination parameters for the ledger query.
type HistoryInput struct {
	UserID string
	Limit  int
	Offset int
}

// BillingService is the sole authorized path to mutate balances and the
// ledger. Balance mutation and ledger append always commit as one unit.
type BillingService interface {
	GetBalance(ctx context.Context, userID string) (*BalanceResult, error)
	CheckSufficient(ctx context.Context, userID string, estimatedMinutes float64) (*SufficiencyResult, error)
	Deduct(ctx context.Context, input DeductInput) (*DeductionOutcome, error)
	AddCredits(ctx context.Context, input AddCreditsInput) (*CreditResult, error)
	History(ctx context.Context, input HistoryInput) ([]*domain.LedgerEntry, int64, error)
}
