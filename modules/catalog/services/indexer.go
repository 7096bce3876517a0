package services

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/management"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
	"github.com/scriptorium-io/scriptorium/modules/catalog/infrastructure/index"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
	"github.com/scriptorium-io/scriptorium/pkg/repair"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// Indexer keeps the search index in step with the database. Documents are
// the short projections serialized to JSON; re-derivation always reads
// through the repositories so an in-transaction caller indexes exactly what
// the transaction is about to commit.
type Indexer struct {
	driver      index.Driver
	pool        *pgxpool.Pool
	keywords    keyword.Repository
	persons     person.Repository
	manuscripts manuscript.Repository
	managements management.Repository
}

func NewIndexer(
	driver index.Driver,
	pool *pgxpool.Pool,
	keywords keyword.Repository,
	persons person.Repository,
	manuscripts manuscript.Repository,
	managements management.Repository,
) *Indexer {
	return &Indexer{
		driver:      driver,
		pool:        pool,
		keywords:    keywords,
		persons:     persons,
		manuscripts: manuscripts,
		managements: managements,
	}
}

// Upsert re-derives and writes the document for one entity. Inside a
// mutation transaction it reads the uncommitted state, so the index write
// happening before commit still reflects the final document.
func (s *Indexer) Upsert(ctx context.Context, kind entity.Kind, id int64) error {
	docs, _, err := s.derive(ctx, kind, []int64{id})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return serrors.NewNotFound(kind.String(), id)
	}
	return s.driver.Update(ctx, docs[0])
}

// Delete removes the document. Missing documents are not an error.
func (s *Indexer) Delete(ctx context.Context, kind entity.Kind, id int64) error {
	return s.driver.Delete(ctx, kind, id)
}

// ReindexByIDs re-derives the documents for the given ids, upserting the
// ones that still resolve and deleting the rest. Used by the post-commit
// dependent sweep and by the repair relay.
func (s *Indexer) ReindexByIDs(ctx context.Context, kind entity.Kind, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ctx = composables.WithPool(ctx, s.pool)

	docs, missing, err := s.derive(ctx, kind, ids)
	if err != nil {
		return err
	}
	if err := s.driver.UpdateMultiple(ctx, docs); err != nil {
		return err
	}
	return s.driver.DeleteMultiple(ctx, kind, missing)
}

// ResyncAll rebuilds the index of every kind from the database and removes
// documents whose rows no longer exist. Safe to run repeatedly.
func (s *Indexer) ResyncAll(ctx context.Context) error {
	ctx = composables.WithPool(ctx, s.pool)
	for _, kind := range []entity.Kind{
		entity.KindKeyword, entity.KindPerson, entity.KindManuscript, entity.KindManagement,
	} {
		stored, err := s.listIDs(ctx, kind)
		if err != nil {
			return err
		}
		if err := s.ReindexByIDs(ctx, kind, stored); err != nil {
			return err
		}

		indexed, err := s.driver.IDs(ctx, kind)
		if err != nil {
			return err
		}
		known := make(map[int64]struct{}, len(stored))
		for _, id := range stored {
			known[id] = struct{}{}
		}
		var orphans []int64
		for _, id := range indexed {
			if _, ok := known[id]; !ok {
				orphans = append(orphans, id)
			}
		}
		if err := s.driver.DeleteMultiple(ctx, kind, orphans); err != nil {
			return err
		}
	}
	return nil
}

// Repair implements repair.Repairer for the relay.
func (s *Indexer) Repair(ctx context.Context, job repair.Job) error {
	return s.ReindexByIDs(ctx, entity.Kind(job.Kind), job.EntityIDs)
}

func (s *Indexer) listIDs(ctx context.Context, kind entity.Kind) ([]int64, error) {
	switch kind {
	case entity.KindKeyword:
		return s.keywords.ListIDs(ctx)
	case entity.KindPerson:
		return s.persons.ListIDs(ctx)
	case entity.KindManuscript:
		return s.manuscripts.ListIDs(ctx)
	case entity.KindManagement:
		return s.managements.ListIDs(ctx)
	}
	return nil, serrors.NewBadRequest("unknown entity kind " + kind.String())
}

// derive builds index documents for the ids that resolve and reports the
// rest as missing.
func (s *Indexer) derive(ctx context.Context, kind entity.Kind, ids []int64) ([]index.Document, []int64, error) {
	ids = entity.UniqueIDs(ids)

	marshal := func(id int64, v any, ok bool, docs []index.Document, missing []int64) ([]index.Document, []int64, error) {
		if !ok {
			return docs, append(missing, id), nil
		}
		body, err := json.Marshal(v)
		if err != nil {
			return nil, nil, errors.Wrap(err, "marshal index document")
		}
		return append(docs, index.Document{Kind: kind, ID: id, Body: body}), missing, nil
	}

	var (
		docs    []index.Document
		missing []int64
		err     error
	)
	switch kind {
	case entity.KindKeyword:
		shorts, lerr := s.keywords.LoadShort(ctx, ids)
		if lerr != nil {
			return nil, nil, lerr
		}
		for _, id := range ids {
			v, ok := shorts[id]
			if docs, missing, err = marshal(id, v, ok, docs, missing); err != nil {
				return nil, nil, err
			}
		}
	case entity.KindPerson:
		shorts, lerr := s.persons.LoadShort(ctx, ids)
		if lerr != nil {
			return nil, nil, lerr
		}
		for _, id := range ids {
			v, ok := shorts[id]
			if docs, missing, err = marshal(id, v, ok, docs, missing); err != nil {
				return nil, nil, err
			}
		}
	case entity.KindManuscript:
		shorts, lerr := s.manuscripts.LoadShort(ctx, ids)
		if lerr != nil {
			return nil, nil, lerr
		}
		for _, id := range ids {
			v, ok := shorts[id]
			if docs, missing, err = marshal(id, v, ok, docs, missing); err != nil {
				return nil, nil, err
			}
		}
	case entity.KindManagement:
		shorts, lerr := s.managements.LoadShort(ctx, ids)
		if lerr != nil {
			return nil, nil, lerr
		}
		for _, id := range ids {
			v, ok := shorts[id]
			if docs, missing, err = marshal(id, v, ok, docs, missing); err != nil {
				return nil, nil, err
			}
		}
	default:
		return nil, nil, serrors.NewBadRequest("unknown entity kind " + kind.String())
	}
	return docs, missing, nil
}
