package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
)

const collectionLedger = "ledger_entries"

// LedgerRepository implements ports.LedgerRepository using MongoDB.
// The collection is append-only: this type exposes no update or delete.
type LedgerRepository struct {
	col *mongo.Collection
}

func NewLedgerRepository(db *mongo.Database) *LedgerRepository {
	return &LedgerRepository{col: db.Collection(collectionLedger)}
}

// Append inserts a single immutable ledger entry.
func (r *LedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	_, err := r.col.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrLedgerEntryExists
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ListByUser returns a page of the user's entries, most recent first, and
// the user's total entry count.
func (r *LedgerRepository) ListByUser(ctx context.Context, filter ports.LedgerFilter) ([]*domain.LedgerEntry, int64, error) {
	query := bson.M{"user_id": filter.UserID}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*domain.LedgerEntry, 0, filter.Limit)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, fmt.Errorf("decode ledger entries: %w", err)
	}
	return entries, total, nil
}

// EnsureIndexes creates the indexes backing per-user history queries.
func (r *LedgerRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
