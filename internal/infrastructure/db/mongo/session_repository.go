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

const collectionSessions = "sessions"

// SessionRepository implements ports.SessionRepository using MongoDB.
type SessionRepository struct {
	col *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{col: db.Collection(collectionSessions)}
}

// CompleteTransition performs the compare-and-swap out of running as one
// FindOneAndUpdate: the filter matches on status so the check and the write
// cannot be split by a concurrent caller. The pre-transition document is
// returned so the caller can meter from started_at.
func (r *SessionRepository) CompleteTransition(ctx context.Context, sessionID, userID string, to domain.SessionStatus, completedAt time.Time) (*domain.Session, error) {
	filter := bson.M{
		"_id":    sessionID,
		"status": string(domain.SessionRunning),
	}
	if userID != "" {
		filter["user_id"] = userID
	}
	update := bson.M{"$set": bson.M{
		"status":       string(to),
		"completed_at": completedAt.UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var prior domain.Session
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&prior)
	if err == nil {
		return &prior, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("complete transition: %w", err)
	}

	// No running match. Distinguish "already terminal" (a normal lost race)
	// from "no such session" so callers can report each correctly.
	existing, findErr := r.FindByID(ctx, sessionID)
	if findErr != nil {
		return nil, findErr
	}
	if userID != "" && existing.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return nil, nil
}

// FindByID retrieves a session by its identifier.
func (r *SessionRepository) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.col.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}
