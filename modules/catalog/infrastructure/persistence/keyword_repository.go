package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

type KeywordRepository struct {
	subdata *SubdataRepository
}

func NewKeywordRepository(subdata *SubdataRepository) keyword.Repository {
	return &KeywordRepository{subdata: subdata}
}

func (r *KeywordRepository) LoadMini(ctx context.Context, ids []int64) (map[int64]*keyword.Keyword, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	ids = entity.UniqueIDs(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, name, parent_id
		FROM keywords
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load keywords")
	}
	defer rows.Close()

	out := make(map[int64]*keyword.Keyword, len(ids))
	for rows.Next() {
		k := &keyword.Keyword{}
		if err := rows.Scan(&k.ID, &k.Name, &k.ParentID); err != nil {
			return nil, err
		}
		out[k.ID] = k
	}
	return out, rows.Err()
}

func (r *KeywordRepository) LoadShort(ctx context.Context, ids []int64) (map[int64]*keyword.Keyword, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	ids = entity.UniqueIDs(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, name, parent_id, public, public_comment, private_comment, created_at, updated_at
		FROM keywords
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load keywords")
	}
	out := make(map[int64]*keyword.Keyword, len(ids))
	parentIDs := make([]int64, 0, len(ids))
	for rows.Next() {
		k := &keyword.Keyword{}
		if err := rows.Scan(
			&k.ID, &k.Name, &k.ParentID,
			&k.Public, &k.PublicComment, &k.PrivateComment,
			&k.Created, &k.Modified,
		); err != nil {
			rows.Close()
			return nil, err
		}
		if k.ParentID != nil {
			parentIDs = append(parentIDs, *k.ParentID)
		}
		out[k.ID] = k
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	found := make([]int64, 0, len(out))
	for id := range out {
		found = append(found, id)
	}
	identifiers, err := r.subdata.Identifiers(ctx, entity.KindKeyword, found)
	if err != nil {
		return nil, err
	}
	managements, err := r.subdata.Managements(ctx, entity.KindKeyword, found)
	if err != nil {
		return nil, err
	}
	var parents map[int64]*keyword.Keyword
	if len(parentIDs) > 0 {
		if parents, err = r.LoadMini(ctx, parentIDs); err != nil {
			return nil, err
		}
	}
	for _, k := range out {
		k.Identifiers = identifiers[k.ID]
		k.Managements = managements[k.ID]
		if k.ParentID != nil {
			k.Parent = parents[*k.ParentID]
		}
	}
	return out, nil
}

func (r *KeywordRepository) LoadFull(ctx context.Context, id int64) (*keyword.Keyword, error) {
	shorts, err := r.LoadShort(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	k, ok := shorts[id]
	if !ok {
		return nil, serrors.NewNotFound(entity.KindKeyword.String(), id)
	}

	urls, err := r.subdata.URLs(ctx, entity.KindKeyword, []int64{id})
	if err != nil {
		return nil, err
	}
	citations, err := r.subdata.Citations(ctx, entity.KindKeyword, []int64{id})
	if err != nil {
		return nil, err
	}
	k.URLs = urls[id]
	k.Citations = citations[id]

	childIDs, err := r.ChildIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(childIDs) > 0 {
		minis, err := r.LoadMini(ctx, childIDs)
		if err != nil {
			return nil, err
		}
		k.Children = make([]*keyword.Keyword, 0, len(childIDs))
		for _, cid := range childIDs {
			if c, ok := minis[cid]; ok {
				k.Children = append(k.Children, c)
			}
		}
	}
	return k, nil
}

func (r *KeywordRepository) ListIDs(ctx context.Context) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT id FROM keywords ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list keywords")
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *KeywordRepository) Create(ctx context.Context, dto *keyword.CreateDTO) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	public := true
	if dto.Public != nil {
		public = *dto.Public
	}
	var id int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO keywords (name, parent_id, public, public_comment, private_comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, dto.Name, dto.ParentID, public, dto.PublicComment, dto.PrivateComment).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert keyword")
	}
	if len(dto.ManagementIDs) > 0 {
		if err := r.subdata.ReplaceManagements(ctx, entity.KindKeyword, id, dto.ManagementIDs); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (r *KeywordRepository) Update(ctx context.Context, id int64, patch *keyword.UpdateDTO, changes *entity.ChangeSet) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var (
		name                          string
		parentID                      *int64
		public                        bool
		publicComment, privateComment string
	)
	err = tx.QueryRow(ctx, `
		SELECT name, parent_id, public, public_comment, private_comment
		FROM keywords WHERE id = $1
		FOR UPDATE
	`, id).Scan(&name, &parentID, &public, &publicComment, &privateComment)
	if errors.Is(err, pgx.ErrNoRows) {
		return serrors.NewNotFound(entity.KindKeyword.String(), id)
	}
	if err != nil {
		return errors.Wrap(err, "load keyword for update")
	}

	if patch.Name != nil && *patch.Name != name {
		name = *patch.Name
		changes.Mark(entity.TierMini)
	}
	switch {
	case patch.ClearParent:
		if parentID != nil {
			parentID = nil
			changes.Mark(entity.TierMini)
		}
	case patch.ParentID != nil:
		if parentID == nil || *parentID != *patch.ParentID {
			parentID = patch.ParentID
			changes.Mark(entity.TierMini)
		}
	}
	if patch.Public != nil && *patch.Public != public {
		public = *patch.Public
		changes.Mark(entity.TierShort)
	}
	if patch.PublicComment != nil && *patch.PublicComment != publicComment {
		publicComment = *patch.PublicComment
		changes.Mark(entity.TierShort)
	}
	if patch.PrivateComment != nil && *patch.PrivateComment != privateComment {
		privateComment = *patch.PrivateComment
		changes.Mark(entity.TierShort)
	}
	if patch.ManagementIDs != nil {
		replaced, err := managementsDiffer(ctx, r.subdata, entity.KindKeyword, id, *patch.ManagementIDs)
		if err != nil {
			return err
		}
		if replaced {
			changes.Mark(entity.TierShort)
		}
	}

	if !changes.Any() {
		return nil
	}
	if _, err := tx.Exec(ctx, `
		UPDATE keywords
		SET name = $2, parent_id = $3, public = $4, public_comment = $5, private_comment = $6, updated_at = now()
		WHERE id = $1
	`, id, name, parentID, public, publicComment, privateComment); err != nil {
		return errors.Wrap(err, "update keyword")
	}
	return nil
}

func (r *KeywordRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM keywords WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete keyword")
	}
	if tag.RowsAffected() == 0 {
		return serrors.NewNotFound(entity.KindKeyword.String(), id)
	}
	return r.subdata.DeleteAll(ctx, entity.KindKeyword, id)
}

func (r *KeywordRepository) ChildIDs(ctx context.Context, id int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id FROM keywords WHERE parent_id = $1 ORDER BY name, id
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "load keyword children")
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			return nil, err
		}
		out = append(out, cid)
	}
	return out, rows.Err()
}

// DescendantIDs walks the subtree breadth-first in id batches. The seen set
// makes the walk terminate even on corrupted data containing a cycle.
func (r *KeywordRepository) DescendantIDs(ctx context.Context, id int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[int64]struct{}{id: {}}
	frontier := []int64{id}
	var out []int64
	for len(frontier) > 0 {
		rows, err := tx.Query(ctx, `
			SELECT id FROM keywords WHERE parent_id = ANY($1)
		`, frontier)
		if err != nil {
			return nil, errors.Wrap(err, "load keyword descendants")
		}
		var next []int64
		for rows.Next() {
			var cid int64
			if err := rows.Scan(&cid); err != nil {
				rows.Close()
				return nil, err
			}
			if _, ok := seen[cid]; ok {
				continue
			}
			seen[cid] = struct{}{}
			next = append(next, cid)
			out = append(out, cid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		frontier = next
	}
	return out, nil
}

func (r *KeywordRepository) ReparentChildren(ctx context.Context, from, to int64, exclude []int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	// A nil slice would encode as SQL NULL and match nothing.
	if exclude == nil {
		exclude = []int64{}
	}
	rows, err := tx.Query(ctx, `
		UPDATE keywords SET parent_id = $2, updated_at = now()
		WHERE parent_id = $1 AND NOT (id = ANY($3))
		RETURNING id
	`, from, to, exclude)
	if err != nil {
		return nil, errors.Wrap(err, "reparent keyword children")
	}
	defer rows.Close()
	var moved []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		moved = append(moved, id)
	}
	return moved, rows.Err()
}
