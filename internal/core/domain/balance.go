package domain

import (
	"errors"
	"time"
)

// Reason is the business cause recorded on every ledger entry.
type Reason string

const (
	ReasonSignupBonus     Reason = "signup_bonus"
	ReasonAgentRun        Reason = "agent_run"
	ReasonAdminAdjustment Reason = "admin_adjustment"
	ReasonRefund          Reason = "refund"
	ReasonPurchase        Reason = "purchase"
)

// creditReasons are the reasons allowed on additive credit operations.
var creditReasons = map[Reason]struct{}{
	ReasonAdminAdjustment: {},
	ReasonRefund:          {},
	ReasonPurchase:        {},
}

var ErrBalanceNotFound = errors.New("balance not found")
var ErrLedgerEntryExists = errors.New("ledger entry already exists")
var ErrInvalidReason = errors.New("invalid ledger reason")
var ErrNegativeAmount = errors.New("amount must not be negative")
var ErrForbidden = errors.New("access forbidden")

// IsCreditReason reports whether the reason is valid for AddCredits.
func (r Reason) IsCreditReason() bool {
	_, ok := creditReasons[r]
	return ok
}

// IsDebitReason reports whether the reason is valid for a deduction.
func (r Reason) IsDebitReason() bool {
	return r == ReasonAgentRun || r == ReasonAdminAdjustment
}

// Balance is the current spendable credit balance for one user.
// Credits never goes negative: every debit is guarded by a conditional
// update that fails instead of crossing zero.
type Balance struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	Credits   int64     `json:"credits" bson:"credits"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// LedgerEntry is one immutable row in the append-only billing ledger.
// For a given user, entries ordered by timestamp satisfy
// balance_after(n) == balance_after(n-1) + delta(n), with the signup
// seed as the first entry.
type LedgerEntry struct {
	ID           string            `json:"id" bson:"_id"`
	UserID       string            `json:"user_id" bson:"user_id"`
	Delta        int64             `json:"delta" bson:"delta"`
	Reason       Reason            `json:"reason" bson:"reason"`
	BalanceAfter int64             `json:"balance_after" bson:"balance_after"`
	AgentID      string            `json:"agent_id,omitempty" bson:"agent_id,omitempty"`
	SessionID    string            `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp" bson:"timestamp"`
}
