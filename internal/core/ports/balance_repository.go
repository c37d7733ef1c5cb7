package ports

import (
	"context"

	"github.com/agentrun/billing-engine/internal/core/domain"
)

// BalanceRepository defines persistence operations for user credit balances.
// The balance record is the only mutable shared resource; all mutations go
// through single conditional updates, never read-modify-write round trips.
type BalanceRepository interface {
	// GetOrCreate returns the user's balance, creating it with the seed
	// amount when absent. The boolean is true only when this call created
	// the record; concurrent first calls observe exactly one creation.
	GetOrCreate(ctx context.Context, userID string, seed int64) (*domain.Balance, bool, error)

	// DebitIfSufficient atomically subtracts amount from the balance only
	// if credits >= amount, returning the post-debit balance. It returns
	// (nil, nil) when the guard did not match, leaving the record untouched.
	DebitIfSufficient(ctx context.Context, userID string, amount int64) (*domain.Balance, error)

	// Credit atomically adds amount to an existing balance and returns the
	// post-credit balance. Returns domain.ErrBalanceNotFound when absent.
	Credit(ctx context.Context, userID string, amount int64) (*domain.Balance, error)
}

// TxRunner executes fn inside a single transactional boundary: every store
// operation fn performs with the given context commits or rolls back as one
// unit. Returning an error from fn aborts the transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
