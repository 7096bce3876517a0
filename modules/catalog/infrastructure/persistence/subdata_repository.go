package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
)

// SubdataRepository loads and writes the entity sub-rows shared by every
// kind: identifiers, urls, citations and management assignments. All tables
// key rows by (entity_kind, entity_id) so one repository serves all kinds.
type SubdataRepository struct{}

func NewSubdataRepository() *SubdataRepository {
	return &SubdataRepository{}
}

func (r *SubdataRepository) Identifiers(ctx context.Context, kind entity.Kind, ids []int64) (map[int64][]entity.Identifier, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT entity_id, scheme, value
		FROM entity_identifiers
		WHERE entity_kind = $1 AND entity_id = ANY($2)
		ORDER BY entity_id, scheme, ord
	`, kind, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load identifiers")
	}
	defer rows.Close()

	out := make(map[int64][]entity.Identifier)
	for rows.Next() {
		var (
			entityID int64
			scheme   string
			value    string
		)
		if err := rows.Scan(&entityID, &scheme, &value); err != nil {
			return nil, err
		}
		idents := out[entityID]
		if n := len(idents); n > 0 && idents[n-1].Scheme == scheme {
			idents[n-1].Values = append(idents[n-1].Values, value)
		} else {
			idents = append(idents, entity.Identifier{Scheme: scheme, Values: []string{value}})
		}
		out[entityID] = idents
	}
	return out, rows.Err()
}

func (r *SubdataRepository) URLs(ctx context.Context, kind entity.Kind, ids []int64) (map[int64][]entity.URL, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, entity_id, url, title
		FROM entity_urls
		WHERE entity_kind = $1 AND entity_id = ANY($2)
		ORDER BY entity_id, ord, id
	`, kind, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load urls")
	}
	defer rows.Close()

	out := make(map[int64][]entity.URL)
	for rows.Next() {
		var (
			u        entity.URL
			entityID int64
		)
		if err := rows.Scan(&u.ID, &entityID, &u.URL, &u.Title); err != nil {
			return nil, err
		}
		out[entityID] = append(out[entityID], u)
	}
	return out, rows.Err()
}

func (r *SubdataRepository) Citations(ctx context.Context, kind entity.Kind, ids []int64) (map[int64][]entity.Citation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, entity_id, source, page_range
		FROM entity_citations
		WHERE entity_kind = $1 AND entity_id = ANY($2)
		ORDER BY entity_id, ord, id
	`, kind, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load citations")
	}
	defer rows.Close()

	out := make(map[int64][]entity.Citation)
	for rows.Next() {
		var (
			c        entity.Citation
			entityID int64
		)
		if err := rows.Scan(&c.ID, &entityID, &c.Source, &c.Range); err != nil {
			return nil, err
		}
		out[entityID] = append(out[entityID], c)
	}
	return out, rows.Err()
}

func (r *SubdataRepository) Managements(ctx context.Context, kind entity.Kind, ids []int64) (map[int64][]entity.Management, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT em.entity_id, mt.id, mt.name
		FROM entity_managements em
		JOIN management_tags mt ON mt.id = em.management_id
		WHERE em.entity_kind = $1 AND em.entity_id = ANY($2)
		ORDER BY em.entity_id, mt.name
	`, kind, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load managements")
	}
	defer rows.Close()

	out := make(map[int64][]entity.Management)
	for rows.Next() {
		var (
			m        entity.Management
			entityID int64
		)
		if err := rows.Scan(&entityID, &m.ID, &m.Name); err != nil {
			return nil, err
		}
		out[entityID] = append(out[entityID], m)
	}
	return out, rows.Err()
}

// ReplaceManagements makes the given tag set the entity's complete
// management assignment.
func (r *SubdataRepository) ReplaceManagements(ctx context.Context, kind entity.Kind, id int64, managementIDs []int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM entity_managements WHERE entity_kind = $1 AND entity_id = $2
	`, kind, id); err != nil {
		return errors.Wrap(err, "clear managements")
	}
	for _, mid := range entity.UniqueIDs(managementIDs) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO entity_managements (entity_kind, entity_id, management_id)
			VALUES ($1, $2, $3)
		`, kind, id, mid); err != nil {
			return errors.Wrap(err, "assign management")
		}
	}
	return nil
}

// MigrateTo moves every sub-row of `from` onto `to`, skipping rows that
// would duplicate ones the target already has. Used by merge.
func (r *SubdataRepository) MigrateTo(ctx context.Context, kind entity.Kind, from, to int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM entity_identifiers src
		WHERE entity_kind = $1 AND entity_id = $2
		  AND EXISTS (
			SELECT 1 FROM entity_identifiers dst
			WHERE dst.entity_kind = $1 AND dst.entity_id = $3
			  AND dst.scheme = src.scheme AND dst.value = src.value
		  )
	`, kind, from, to); err != nil {
		return errors.Wrap(err, "dedupe identifiers")
	}
	if _, err := tx.Exec(ctx, `
		UPDATE entity_identifiers SET entity_id = $3
		WHERE entity_kind = $1 AND entity_id = $2
	`, kind, from, to); err != nil {
		return errors.Wrap(err, "migrate identifiers")
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM entity_urls src
		WHERE entity_kind = $1 AND entity_id = $2
		  AND EXISTS (
			SELECT 1 FROM entity_urls dst
			WHERE dst.entity_kind = $1 AND dst.entity_id = $3 AND dst.url = src.url
		  )
	`, kind, from, to); err != nil {
		return errors.Wrap(err, "dedupe urls")
	}
	if _, err := tx.Exec(ctx, `
		UPDATE entity_urls SET entity_id = $3
		WHERE entity_kind = $1 AND entity_id = $2
	`, kind, from, to); err != nil {
		return errors.Wrap(err, "migrate urls")
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM entity_citations src
		WHERE entity_kind = $1 AND entity_id = $2
		  AND EXISTS (
			SELECT 1 FROM entity_citations dst
			WHERE dst.entity_kind = $1 AND dst.entity_id = $3
			  AND dst.source = src.source AND dst.page_range = src.page_range
		  )
	`, kind, from, to); err != nil {
		return errors.Wrap(err, "dedupe citations")
	}
	if _, err := tx.Exec(ctx, `
		UPDATE entity_citations SET entity_id = $3
		WHERE entity_kind = $1 AND entity_id = $2
	`, kind, from, to); err != nil {
		return errors.Wrap(err, "migrate citations")
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM entity_managements src
		WHERE entity_kind = $1 AND entity_id = $2
		  AND EXISTS (
			SELECT 1 FROM entity_managements dst
			WHERE dst.entity_kind = $1 AND dst.entity_id = $3
			  AND dst.management_id = src.management_id
		  )
	`, kind, from, to); err != nil {
		return errors.Wrap(err, "dedupe managements")
	}
	if _, err := tx.Exec(ctx, `
		UPDATE entity_managements SET entity_id = $3
		WHERE entity_kind = $1 AND entity_id = $2
	`, kind, from, to); err != nil {
		return errors.Wrap(err, "migrate managements")
	}

	return nil
}

// DeleteAll removes every sub-row of an entity. Called when the entity row
// itself is deleted.
func (r *SubdataRepository) DeleteAll(ctx context.Context, kind entity.Kind, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	for _, q := range []string{
		`DELETE FROM entity_identifiers WHERE entity_kind = $1 AND entity_id = $2`,
		`DELETE FROM entity_urls WHERE entity_kind = $1 AND entity_id = $2`,
		`DELETE FROM entity_citations WHERE entity_kind = $1 AND entity_id = $2`,
		`DELETE FROM entity_managements WHERE entity_kind = $1 AND entity_id = $2`,
	} {
		if _, err := tx.Exec(ctx, q, kind, id); err != nil {
			return errors.Wrap(err, "delete entity subdata")
		}
	}
	return nil
}
