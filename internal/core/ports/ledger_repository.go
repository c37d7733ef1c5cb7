package ports

import (
	"context"

	"github.com/agentrun/billing-engine/internal/core/domain"
)

// LedgerFilter carries the query parameters for reading a user's history.
type LedgerFilter struct {
	UserID string
	Limit  int // max rows per page (capped at 100 by the service)
	Offset int // rows to skip
}

// LedgerRepository defines persistence for the append-only billing ledger.
// Entries are immutable: there is no update or delete operation.
type LedgerRepository interface {
	// Append writes a single ledger entry.
	Append(ctx context.Context, entry *domain.LedgerEntry) error

	// ListByUser returns a page of the user's entries, most recent first,
	// together with the user's total entry count.
	ListByUser(ctx context.Context, filter LedgerFilter) ([]*domain.LedgerEntry, int64, error)
}
