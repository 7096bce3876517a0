package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wI2L/jsondiff"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
)

// RevisionEntry is one audit record together with the JSON patch between
// its old and new snapshots. Diff is nil for create and delete records.
type RevisionEntry struct {
	Revision *entity.Revision
	Diff     jsondiff.Patch
}

// RevisionService reads the audit trail. It never writes: revisions are
// appended by the mutation paths and immutable afterwards.
type RevisionService struct {
	pool *pgxpool.Pool
	repo entity.RevisionRepository
}

func NewRevisionService(pool *pgxpool.Pool, repo entity.RevisionRepository) *RevisionService {
	return &RevisionService{pool: pool, repo: repo}
}

func (s *RevisionService) List(ctx context.Context, params *entity.RevisionFindParams) ([]*RevisionEntry, error) {
	ctx = composables.WithPool(ctx, s.pool)
	revs, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make([]*RevisionEntry, 0, len(revs))
	for _, rev := range revs {
		entry := &RevisionEntry{Revision: rev}
		if rev.Old != nil && rev.New != nil {
			patch, err := jsondiff.CompareJSON(rev.Old, rev.New)
			if err != nil {
				return nil, errors.Wrapf(err, "diff revision %d", rev.ID)
			}
			entry.Diff = patch
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *RevisionService) Count(ctx context.Context, params *entity.RevisionFindParams) (int64, error) {
	return s.repo.Count(composables.WithPool(ctx, s.pool), params)
}
