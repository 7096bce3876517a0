package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/management"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

type ManagementRepository struct {
	subdata *SubdataRepository
}

func NewManagementRepository(subdata *SubdataRepository) management.Repository {
	return &ManagementRepository{subdata: subdata}
}

func (r *ManagementRepository) LoadMini(ctx context.Context, ids []int64) (map[int64]*management.Management, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	ids = entity.UniqueIDs(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM management_tags
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load management tags")
	}
	defer rows.Close()

	out := make(map[int64]*management.Management, len(ids))
	for rows.Next() {
		m := &management.Management{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Created, &m.Modified); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// LoadShort is LoadMini: the kind carries no short-only fields.
func (r *ManagementRepository) LoadShort(ctx context.Context, ids []int64) (map[int64]*management.Management, error) {
	return r.LoadMini(ctx, ids)
}

func (r *ManagementRepository) LoadFull(ctx context.Context, id int64) (*management.Management, error) {
	minis, err := r.LoadMini(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	m, ok := minis[id]
	if !ok {
		return nil, serrors.NewNotFound(entity.KindManagement.String(), id)
	}
	return m, nil
}

func (r *ManagementRepository) ListIDs(ctx context.Context) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT id FROM management_tags ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list management tags")
	}
	return collectIDs(rows)
}

func (r *ManagementRepository) Create(ctx context.Context, dto *management.CreateDTO) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO management_tags (name) VALUES ($1) RETURNING id
	`, dto.Name).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert management tag")
	}
	return id, nil
}

func (r *ManagementRepository) Update(ctx context.Context, id int64, patch *management.UpdateDTO, changes *entity.ChangeSet) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var name string
	err = tx.QueryRow(ctx, `
		SELECT name FROM management_tags WHERE id = $1 FOR UPDATE
	`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return serrors.NewNotFound(entity.KindManagement.String(), id)
	}
	if err != nil {
		return errors.Wrap(err, "load management tag for update")
	}

	if patch.Name != nil && *patch.Name != name {
		name = *patch.Name
		changes.Mark(entity.TierMini)
	}
	if !changes.Any() {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		UPDATE management_tags SET name = $2, updated_at = now() WHERE id = $1
	`, id, name); err != nil {
		return errors.Wrap(err, "update management tag")
	}
	return nil
}

func (r *ManagementRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM entity_managements WHERE management_id = $1
	`, id); err != nil {
		return errors.Wrap(err, "unassign management tag")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM management_tags WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete management tag")
	}
	if tag.RowsAffected() == 0 {
		return serrors.NewNotFound(entity.KindManagement.String(), id)
	}
	return nil
}

func (r *ManagementRepository) TaggedRefs(ctx context.Context, id int64) ([]entity.Ref, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT entity_kind, entity_id FROM entity_managements
		WHERE management_id = $1
		ORDER BY entity_kind, entity_id
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "load tagged entities")
	}
	defer rows.Close()

	var refs []entity.Ref
	for rows.Next() {
		var ref entity.Ref
		if err := rows.Scan(&ref.Kind, &ref.ID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// RewriteRefs retags every assignment from one tag to another. Assignments
// the target already carries are dropped instead of moved.
func (r *ManagementRepository) RewriteRefs(ctx context.Context, from, to int64) ([]entity.Ref, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	touched, err := r.TaggedRefs(ctx, from)
	if err != nil {
		return nil, err
	}
	if len(touched) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM entity_managements src
		WHERE management_id = $1
		  AND EXISTS (
			SELECT 1 FROM entity_managements dst
			WHERE dst.entity_kind = src.entity_kind
			  AND dst.entity_id = src.entity_id
			  AND dst.management_id = $2
		  )
	`, from, to); err != nil {
		return nil, errors.Wrap(err, "dedupe tag assignments")
	}
	if _, err := tx.Exec(ctx, `
		UPDATE entity_managements SET management_id = $2 WHERE management_id = $1
	`, from, to); err != nil {
		return nil, errors.Wrap(err, "rewrite tag assignments")
	}
	return touched, nil
}
