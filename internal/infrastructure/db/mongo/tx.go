package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// TxRunner implements ports.TxRunner on top of MongoDB sessions. Every
// repository call made with the context passed to fn joins the same
// transaction and commits or aborts as one unit.
type TxRunner struct {
	client *mongo.Client
}

func NewTxRunner(client *mongo.Client) *TxRunner {
	return &TxRunner{client: client}
}

// WithTransaction runs fn inside a majority-committed transaction. The
// driver retries transient commit errors; an error from fn aborts the
// transaction and is returned unchanged.
func (r *TxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	}, txOpts)
	return err
}
