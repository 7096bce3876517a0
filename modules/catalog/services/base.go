package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/infrastructure/persistence"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
	"github.com/scriptorium-io/scriptorium/pkg/eventbus"
	"github.com/scriptorium-io/scriptorium/pkg/repair"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// ErrNoRecognizedChange is returned when an update patch does not change any
// recognized field at any tier.
var ErrNoRecognizedChange = serrors.NewBadRequest("no recognized change in update")

// Deps is the shared wiring of every facade: one transaction scope, one
// revision stream, one index, one invalidation bus.
type Deps struct {
	Pool      *pgxpool.Pool
	Revisions entity.RevisionRepository
	Subdata   *persistence.SubdataRepository
	Indexer   *Indexer
	Resolver  *DependencyResolver
	Repairs   *repair.Store
	Bus       eventbus.EventBus
	Logger    *logrus.Entry
}

type base struct {
	deps Deps
}

func (b *base) withPool(ctx context.Context) context.Context {
	return composables.WithPool(ctx, b.deps.Pool)
}

func (b *base) inTx(ctx context.Context, fn func(context.Context) error) error {
	return composables.InTx(b.withPool(ctx), fn)
}

// requireActor rejects unattributable mutations before any work happens.
func (b *base) requireActor(ctx context.Context) error {
	_, err := composables.UseActor(ctx)
	return err
}

// record appends one revision inside the caller's transaction. Exactly one
// of old/new is nil on create and delete; both nil is a programming error.
func (b *base) record(ctx context.Context, kind entity.Kind, id int64, old, new any) error {
	actorID, err := composables.UseActor(ctx)
	if err != nil {
		return err
	}
	rev := &entity.Revision{Kind: kind, EntityID: id, ActorID: actorID}
	if old != nil {
		if rev.Old, err = json.Marshal(old); err != nil {
			return errors.Wrap(err, "marshal old revision state")
		}
	}
	if new != nil {
		if rev.New, err = json.Marshal(new); err != nil {
			return errors.Wrap(err, "marshal new revision state")
		}
	}
	if rev.Old == nil && rev.New == nil {
		return errors.New("revision with neither old nor new state")
	}
	return b.deps.Revisions.Create(ctx, rev)
}

// finish runs after a successful commit: publish the invalidation event and
// sweep dependent documents. Index failures here degrade to a durable repair
// row instead of failing the already-committed mutation.
func (b *base) finish(ctx context.Context, kind entity.Kind, ids []int64, dependents map[entity.Kind][]int64) {
	ctx = b.withPool(ctx)
	b.deps.Bus.Publish(&InvalidatedEvent{Kind: kind, IDs: ids})
	for depKind, depIDs := range dependents {
		if len(depIDs) == 0 {
			continue
		}
		b.deps.Bus.Publish(&InvalidatedEvent{Kind: depKind, IDs: depIDs})
		b.reindexOrEnqueue(ctx, depKind, depIDs)
	}
}

// reindexOrEnqueue tries an immediate reindex and falls back to the repair
// queue so the index never goes silently stale.
func (b *base) reindexOrEnqueue(ctx context.Context, kind entity.Kind, ids []int64) {
	if len(ids) == 0 {
		return
	}
	err := b.deps.Indexer.ReindexByIDs(ctx, kind, ids)
	if err == nil {
		return
	}
	b.deps.Logger.WithError(err).
		WithFields(logrus.Fields{"kind": kind, "ids": ids}).
		Warn("reindex failed, enqueueing repair")
	if qErr := b.deps.Repairs.Enqueue(ctx, kind.String(), ids); qErr != nil {
		b.deps.Logger.WithError(qErr).
			WithFields(logrus.Fields{"kind": kind, "ids": ids}).
			Error("repair enqueue failed, index is stale")
	}
}

// repairAfterRollback restores index coherence when a transaction failed
// after some of its index writes already happened.
func (b *base) repairAfterRollback(ctx context.Context, touched map[entity.Kind][]int64) {
	ctx = b.withPool(ctx)
	for kind, ids := range touched {
		b.reindexOrEnqueue(ctx, kind, ids)
	}
}

// recoverIndex re-derives one document after a transaction failed past its
// index write. The index write does not roll back with the rest of the
// transaction, so the rolled-back row state has to be replayed onto the
// index, immediately or via a durable repair row.
func (b *base) recoverIndex(ctx context.Context, kind entity.Kind, id int64) {
	b.repairAfterRollback(ctx, map[entity.Kind][]int64{kind: {id}})
}

// conflictMeta renders blocking dependency edges for the error envelope.
func conflictMeta(dependents map[entity.Kind][]int64) map[string]string {
	meta := make(map[string]string, len(dependents))
	for kind, ids := range dependents {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprintf("%d", id)
		}
		meta[kind.String()] = strings.Join(parts, ",")
	}
	return meta
}

func hasDependents(dependents map[entity.Kind][]int64) bool {
	for _, ids := range dependents {
		if len(ids) > 0 {
			return true
		}
	}
	return false
}
