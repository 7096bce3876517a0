// Package repair implements the durable index repair queue. When a
// post-commit reindex fails, the mutation path enqueues a row describing the
// stale ids; a background relay claims rows, replays the reindex and retires
// them with exponential backoff on repeated failure.
package repair

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/scriptorium-io/scriptorium/pkg/composables"
)

// Job is one claimed repair unit: re-derive and rewrite the index documents
// of the given ids of one kind.
type Job struct {
	ID        uuid.UUID
	Kind      string
	EntityIDs []int64
	Attempts  int
}

// Repairer replays the reindex for a claimed job. Implementations must be
// idempotent: a job may be claimed more than once.
type Repairer interface {
	Repair(ctx context.Context, job Job) error
}

// Store enqueues repair rows. Enqueue participates in the caller's
// transaction when one is carried in the context and falls back to the pool
// otherwise, so it works both inside a mutation and from a post-commit
// failure path.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Enqueue(ctx context.Context, kind string, entityIDs []int64) error {
	if len(entityIDs) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO index_repair_queue (id, entity_kind, entity_ids)
		VALUES ($1, $2, $3)
	`, uuid.New(), kind, entityIDs); err != nil {
		return errors.Wrap(err, "enqueue index repair")
	}
	getMetrics().enqueueTotal.WithLabelValues(kind).Inc()
	return nil
}
