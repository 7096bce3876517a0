package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
	"github.com/scriptorium-io/scriptorium/pkg/repo"
)

type RevisionRepository struct{}

func NewRevisionRepository() entity.RevisionRepository {
	return &RevisionRepository{}
}

func (r *RevisionRepository) Create(ctx context.Context, rev *entity.Revision) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO revisions (entity_kind, entity_id, actor_id, old_state, new_state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, rev.Kind, rev.EntityID, rev.ActorID, rev.Old, rev.New).Scan(&rev.ID, &rev.CreatedAt)
}

func (r *RevisionRepository) List(ctx context.Context, params *entity.RevisionFindParams) ([]*entity.Revision, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, entity_kind, entity_id, actor_id, old_state, new_state, created_at
		FROM revisions
		WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY id DESC `+repo.FormatLimitOffset(params.Limit, params.Offset),
		params.Kind, params.EntityID)
	if err != nil {
		return nil, errors.Wrap(err, "list revisions")
	}
	defer rows.Close()

	var out []*entity.Revision
	for rows.Next() {
		rev := &entity.Revision{}
		if err := rows.Scan(
			&rev.ID, &rev.Kind, &rev.EntityID, &rev.ActorID,
			&rev.Old, &rev.New, &rev.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (r *RevisionRepository) Count(ctx context.Context, params *entity.RevisionFindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM revisions WHERE entity_kind = $1 AND entity_id = $2
	`, params.Kind, params.EntityID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count revisions")
	}
	return count, nil
}
