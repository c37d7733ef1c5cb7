package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agentrun/billing-engine/internal/core/domain"
)

const collectionBalances = "balances"

type BalanceRepository struct {
	col *mongo.Collection
}

func NewBalanceRepository(db *mongo.Database) *BalanceRepository {
	return &BalanceRepository{col: db.Collection(collectionBalances)}
}

// GetOrCreate returns the balance for userID, inserting a record seeded with
// seed credits when none exists. The upsert is a single round trip; when two
// first-time calls race, the unique user_id index makes the loser fall back
// to reading the winner's record, so exactly one creation is ever observed.
func (r *BalanceRepository) GetOrCreate(ctx context.Context, userID string, seed int64) (*domain.Balance, bool, error) {
	now := time.Now().UTC()

	filter := bson.M{"user_id": userID}
	update := bson.M{"$setOnInsert": bson.M{
		"user_id":    userID,
		"credits":    seed,
		"created_at": now,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var prior domain.Balance
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&prior)
	if err == nil {
		return &prior, false, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		// No prior document: this call inserted the seed record.
		return &domain.Balance{
			UserID:    userID,
			Credits:   seed,
			CreatedAt: now,
			UpdatedAt: now,
		}, true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		// Lost the upsert race; the record exists now.
		existing, findErr := r.find(ctx, userID)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	return nil, false, fmt.Errorf("get or create balance: %w", err)
}

// DebitIfSufficient subtracts amount only when the stored balance covers it.
// The credits >= amount guard lives in the filter, so the check and the
// mutation are one atomic operation and the balance can never go negative.
func (r *BalanceRepository) DebitIfSufficient(ctx context.Context, userID string, amount int64) (*domain.Balance, error) {
	filter := bson.M{
		"user_id": userID,
		"credits": bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"credits": -amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Balance
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Guard did not match: insufficient credits (or no record).
			return nil, nil
		}
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	return &updated, nil
}

// Credit adds amount to an existing balance.
func (r *BalanceRepository) Credit(ctx context.Context, userID string, amount int64) (*domain.Balance, error) {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$inc": bson.M{"credits": amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Balance
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, fmt.Errorf("credit balance: %w", err)
	}
	return &updated, nil
}

func (r *BalanceRepository) find(ctx context.Context, userID string) (*domain.Balance, error) {
	var bal domain.Balance
	err := r.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&bal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, fmt.Errorf("find balance: %w", err)
	}
	return &bal, nil
}

// EnsureIndexes creates the unique per-user index the bootstrap relies on.
func (r *BalanceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
