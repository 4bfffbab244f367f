package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"courtmatch/internal/store"
)

// Store implements store.Store on MongoDB. Conditional transitions are
// single FindOneAndUpdate calls filtered on the expected status; multi-document
// writes run in snapshot transactions.
type Store struct {
	db  *MongoDB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func NewStore(m *MongoDB) *Store {
	return &Store{db: m, now: time.Now}
}

// RunInTx runs fn in a transaction. A ctx that already carries a session
// joins it, so store methods that open their own transaction compose.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := s.db.Client.StartSession()
	if err != nil {
		return wrapErr("start session", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOpts)
	if err != nil {
		return wrapErr("transaction", err)
	}
	return nil
}

// wrapErr marks network failures and timeouts as store.ErrTransient and
// leaves store sentinels untouched.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrPreconditionFailed),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrOverlap),
		errors.Is(err, store.ErrTransient):
		return err
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, store.ErrDuplicate)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, store.ErrTransient, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// missingOrStale tells a conditional write that matched nothing apart:
// either the document does not exist or its guard field moved on.
func missingOrStale(ctx context.Context, coll *mongo.Collection, id string) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return wrapErr("lookup "+coll.Name(), err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrPreconditionFailed
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, id string) (*T, error) {
	var out T
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("find "+coll.Name(), err)
	}
	return &out, nil
}

// conditionalUpdate applies update to the document with id whose guard
// field equals expect, returning the updated document.
func conditionalUpdate[T any](ctx context.Context, coll *mongo.Collection, id, field string, expect any, update bson.M) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out T
	err := coll.FindOneAndUpdate(ctx, bson.M{"_id": id, field: expect}, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missingOrStale(ctx, coll, id)
	}
	if err != nil {
		return nil, wrapErr("update "+coll.Name(), err)
	}
	return &out, nil
}
