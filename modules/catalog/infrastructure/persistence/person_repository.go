package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

type PersonRepository struct {
	subdata *SubdataRepository
}

func NewPersonRepository(subdata *SubdataRepository) person.Repository {
	return &PersonRepository{subdata: subdata}
}

func (r *PersonRepository) LoadMini(ctx context.Context, ids []int64) (map[int64]*person.Person, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	ids = entity.UniqueIDs(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, first_name, last_name, description
		FROM persons
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load persons")
	}
	defer rows.Close()

	out := make(map[int64]*person.Person, len(ids))
	for rows.Next() {
		p := &person.Person{}
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Description); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *PersonRepository) LoadShort(ctx context.Context, ids []int64) (map[int64]*person.Person, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	ids = entity.UniqueIDs(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, first_name, last_name, description, public, public_comment, private_comment, created_at, updated_at
		FROM persons
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load persons")
	}
	out := make(map[int64]*person.Person, len(ids))
	for rows.Next() {
		p := &person.Person{}
		if err := rows.Scan(
			&p.ID, &p.FirstName, &p.LastName, &p.Description,
			&p.Public, &p.PublicComment, &p.PrivateComment,
			&p.Created, &p.Modified,
		); err != nil {
			rows.Close()
			return nil, err
		}
		out[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	found := make([]int64, 0, len(out))
	for id := range out {
		found = append(found, id)
	}
	identifiers, err := r.subdata.Identifiers(ctx, entity.KindPerson, found)
	if err != nil {
		return nil, err
	}
	managements, err := r.subdata.Managements(ctx, entity.KindPerson, found)
	if err != nil {
		return nil, err
	}
	for _, p := range out {
		p.Identifiers = identifiers[p.ID]
		p.Managements = managements[p.ID]
	}
	return out, nil
}

func (r *PersonRepository) LoadFull(ctx context.Context, id int64) (*person.Person, error) {
	shorts, err := r.LoadShort(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p, ok := shorts[id]
	if !ok {
		return nil, serrors.NewNotFound(entity.KindPerson.String(), id)
	}

	urls, err := r.subdata.URLs(ctx, entity.KindPerson, []int64{id})
	if err != nil {
		return nil, err
	}
	citations, err := r.subdata.Citations(ctx, entity.KindPerson, []int64{id})
	if err != nil {
		return nil, err
	}
	p.URLs = urls[id]
	p.Citations = citations[id]

	refs, err := r.manuscriptRefs(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Manuscripts = refs
	return p, nil
}

// manuscriptRefs resolves the inverse edges: every manuscript carrying a
// role assignment for this person, as labeled refs.
func (r *PersonRepository) manuscriptRefs(ctx context.Context, personID int64) ([]entity.Ref, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT m.id, m.city, m.library, m.shelf
		FROM manuscripts m
		JOIN manuscript_roles mr ON mr.manuscript_id = m.id
		WHERE mr.person_id = $1
		ORDER BY m.city, m.library, m.shelf
	`, personID)
	if err != nil {
		return nil, errors.Wrap(err, "load person manuscripts")
	}
	defer rows.Close()

	var refs []entity.Ref
	for rows.Next() {
		m := &manuscript.Manuscript{}
		if err := rows.Scan(&m.ID, &m.City, &m.Library, &m.Shelf); err != nil {
			return nil, err
		}
		refs = append(refs, entity.Ref{Kind: entity.KindManuscript, ID: m.ID, Label: m.Label()})
	}
	return refs, rows.Err()
}

func (r *PersonRepository) ListIDs(ctx context.Context) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT id FROM persons ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list persons")
	}
	return collectIDs(rows)
}

func (r *PersonRepository) Create(ctx context.Context, dto *person.CreateDTO) (int64, error) {
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
		INSERT INTO persons (first_name, last_name, description, public, public_comment, private_comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, dto.FirstName, dto.LastName, dto.Description, public, dto.PublicComment, dto.PrivateComment).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert person")
	}
	if len(dto.ManagementIDs) > 0 {
		if err := r.subdata.ReplaceManagements(ctx, entity.KindPerson, id, dto.ManagementIDs); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (r *PersonRepository) Update(ctx context.Context, id int64, patch *person.UpdateDTO, changes *entity.ChangeSet) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var (
		firstName, lastName, description string
		public                           bool
		publicComment, privateComment    string
	)
	err = tx.QueryRow(ctx, `
		SELECT first_name, last_name, description, public, public_comment, private_comment
		FROM persons WHERE id = $1
		FOR UPDATE
	`, id).Scan(&firstName, &lastName, &description, &public, &publicComment, &privateComment)
	if errors.Is(err, pgx.ErrNoRows) {
		return serrors.NewNotFound(entity.KindPerson.String(), id)
	}
	if err != nil {
		return errors.Wrap(err, "load person for update")
	}

	if patch.FirstName != nil && *patch.FirstName != firstName {
		firstName = *patch.FirstName
		changes.Mark(entity.TierMini)
	}
	if patch.LastName != nil && *patch.LastName != lastName {
		lastName = *patch.LastName
		changes.Mark(entity.TierMini)
	}
	if patch.Description != nil && *patch.Description != description {
		description = *patch.Description
		changes.Mark(entity.TierMini)
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
		replaced, err := managementsDiffer(ctx, r.subdata, entity.KindPerson, id, *patch.ManagementIDs)
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
		UPDATE persons
		SET first_name = $2, last_name = $3, description = $4, public = $5, public_comment = $6, private_comment = $7, updated_at = now()
		WHERE id = $1
	`, id, firstName, lastName, description, public, publicComment, privateComment); err != nil {
		return errors.Wrap(err, "update person")
	}
	return nil
}

func (r *PersonRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete person")
	}
	if tag.RowsAffected() == 0 {
		return serrors.NewNotFound(entity.KindPerson.String(), id)
	}
	return r.subdata.DeleteAll(ctx, entity.KindPerson, id)
}
