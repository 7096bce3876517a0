package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

type ManuscriptRepository struct {
	subdata  *SubdataRepository
	keywords keyword.Repository
	persons  person.Repository
}

func NewManuscriptRepository(subdata *SubdataRepository, keywords keyword.Repository, persons person.Repository) manuscript.Repository {
	return &ManuscriptRepository{subdata: subdata, keywords: keywords, persons: persons}
}

func (r *ManuscriptRepository) LoadMini(ctx context.Context, ids []int64) (map[int64]*manuscript.Manuscript, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	ids = entity.UniqueIDs(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, city, library, shelf, date
		FROM manuscripts
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load manuscripts")
	}
	defer rows.Close()

	out := make(map[int64]*manuscript.Manuscript, len(ids))
	for rows.Next() {
		m := &manuscript.Manuscript{}
		if err := rows.Scan(&m.ID, &m.City, &m.Library, &m.Shelf, &m.Date); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

func (r *ManuscriptRepository) LoadShort(ctx context.Context, ids []int64) (map[int64]*manuscript.Manuscript, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	ids = entity.UniqueIDs(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, city, library, shelf, date, public, public_comment, private_comment, created_at, updated_at
		FROM manuscripts
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load manuscripts")
	}
	out := make(map[int64]*manuscript.Manuscript, len(ids))
	for rows.Next() {
		m := &manuscript.Manuscript{}
		if err := rows.Scan(
			&m.ID, &m.City, &m.Library, &m.Shelf, &m.Date,
			&m.Public, &m.PublicComment, &m.PrivateComment,
			&m.Created, &m.Modified,
		); err != nil {
			rows.Close()
			return nil, err
		}
		out[m.ID] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	found := make([]int64, 0, len(out))
	for id := range out {
		found = append(found, id)
	}
	identifiers, err := r.subdata.Identifiers(ctx, entity.KindManuscript, found)
	if err != nil {
		return nil, err
	}
	managements, err := r.subdata.Managements(ctx, entity.KindManuscript, found)
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		m.Identifiers = identifiers[m.ID]
		m.Managements = managements[m.ID]
	}
	if err := r.attachContents(ctx, out); err != nil {
		return nil, err
	}
	if err := r.attachRoles(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ManuscriptRepository) attachContents(ctx context.Context, out map[int64]*manuscript.Manuscript) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(out))
	for id := range out {
		ids = append(ids, id)
	}
	rows, err := tx.Query(ctx, `
		SELECT mc.manuscript_id, mc.keyword_id
		FROM manuscript_contents mc
		JOIN keywords k ON k.id = mc.keyword_id
		WHERE mc.manuscript_id = ANY($1)
		ORDER BY k.name, k.id
	`, ids)
	if err != nil {
		return errors.Wrap(err, "load manuscript contents")
	}
	links := make(map[int64][]int64)
	var keywordIDs []int64
	for rows.Next() {
		var mid, kid int64
		if err := rows.Scan(&mid, &kid); err != nil {
			rows.Close()
			return err
		}
		links[mid] = append(links[mid], kid)
		keywordIDs = append(keywordIDs, kid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(keywordIDs) == 0 {
		return nil
	}

	minis, err := r.keywords.LoadMini(ctx, keywordIDs)
	if err != nil {
		return err
	}
	for mid, kids := range links {
		m := out[mid]
		for _, kid := range kids {
			if k, ok := minis[kid]; ok {
				m.Contents = append(m.Contents, k)
			}
		}
	}
	return nil
}

func (r *ManuscriptRepository) attachRoles(ctx context.Context, out map[int64]*manuscript.Manuscript) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(out))
	for id := range out {
		ids = append(ids, id)
	}
	rows, err := tx.Query(ctx, `
		SELECT manuscript_id, person_id, role
		FROM manuscript_roles
		WHERE manuscript_id = ANY($1)
		ORDER BY manuscript_id, role, person_id
	`, ids)
	if err != nil {
		return errors.Wrap(err, "load manuscript roles")
	}
	type link struct {
		personID int64
		role     string
	}
	links := make(map[int64][]link)
	var personIDs []int64
	for rows.Next() {
		var (
			mid, pid int64
			role     string
		)
		if err := rows.Scan(&mid, &pid, &role); err != nil {
			rows.Close()
			return err
		}
		links[mid] = append(links[mid], link{personID: pid, role: role})
		personIDs = append(personIDs, pid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(personIDs) == 0 {
		return nil
	}

	minis, err := r.persons.LoadMini(ctx, personIDs)
	if err != nil {
		return err
	}
	for mid, ls := range links {
		m := out[mid]
		for _, l := range ls {
			if p, ok := minis[l.personID]; ok {
				m.Roles = append(m.Roles, manuscript.RoleAssignment{Role: l.role, Person: p})
			}
		}
	}
	return nil
}

func (r *ManuscriptRepository) LoadFull(ctx context.Context, id int64) (*manuscript.Manuscript, error) {
	shorts, err := r.LoadShort(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	m, ok := shorts[id]
	if !ok {
		return nil, serrors.NewNotFound(entity.KindManuscript.String(), id)
	}

	urls, err := r.subdata.URLs(ctx, entity.KindManuscript, []int64{id})
	if err != nil {
		return nil, err
	}
	citations, err := r.subdata.Citations(ctx, entity.KindManuscript, []int64{id})
	if err != nil {
		return nil, err
	}
	m.URLs = urls[id]
	m.Citations = citations[id]
	return m, nil
}

func (r *ManuscriptRepository) ListIDs(ctx context.Context) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT id FROM manuscripts ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list manuscripts")
	}
	return collectIDs(rows)
}

func (r *ManuscriptRepository) Create(ctx context.Context, dto *manuscript.CreateDTO) (int64, error) {
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
		INSERT INTO manuscripts (city, library, shelf, date, public, public_comment, private_comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, dto.City, dto.Library, dto.Shelf, dto.Date, public, dto.PublicComment, dto.PrivateComment).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert manuscript")
	}
	for _, kid := range entity.UniqueIDs(dto.ContentIDs) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO manuscript_contents (manuscript_id, keyword_id) VALUES ($1, $2)
		`, id, kid); err != nil {
			return 0, errors.Wrap(err, "link manuscript content")
		}
	}
	if len(dto.ManagementIDs) > 0 {
		if err := r.subdata.ReplaceManagements(ctx, entity.KindManuscript, id, dto.ManagementIDs); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (r *ManuscriptRepository) Update(ctx context.Context, id int64, patch *manuscript.UpdateDTO, changes *entity.ChangeSet) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var (
		city, library, shelf, date    string
		public                        bool
		publicComment, privateComment string
	)
	err = tx.QueryRow(ctx, `
		SELECT city, library, shelf, date, public, public_comment, private_comment
		FROM manuscripts WHERE id = $1
		FOR UPDATE
	`, id).Scan(&city, &library, &shelf, &date, &public, &publicComment, &privateComment)
	if errors.Is(err, pgx.ErrNoRows) {
		return serrors.NewNotFound(entity.KindManuscript.String(), id)
	}
	if err != nil {
		return errors.Wrap(err, "load manuscript for update")
	}

	if patch.City != nil && *patch.City != city {
		city = *patch.City
		changes.Mark(entity.TierMini)
	}
	if patch.Library != nil && *patch.Library != library {
		library = *patch.Library
		changes.Mark(entity.TierMini)
	}
	if patch.Shelf != nil && *patch.Shelf != shelf {
		shelf = *patch.Shelf
		changes.Mark(entity.TierMini)
	}
	if patch.Date != nil && *patch.Date != date {
		date = *patch.Date
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
	if patch.ContentIDs != nil {
		rewritten, err := r.replaceContents(ctx, id, *patch.ContentIDs)
		if err != nil {
			return err
		}
		if rewritten {
			changes.Mark(entity.TierShort)
		}
	}
	if patch.Roles != nil {
		rewritten, err := r.replaceRoles(ctx, id, *patch.Roles)
		if err != nil {
			return err
		}
		if rewritten {
			changes.Mark(entity.TierShort)
		}
	}
	if patch.ManagementIDs != nil {
		replaced, err := managementsDiffer(ctx, r.subdata, entity.KindManuscript, id, *patch.ManagementIDs)
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
		UPDATE manuscripts
		SET city = $2, library = $3, shelf = $4, date = $5, public = $6, public_comment = $7, private_comment = $8, updated_at = now()
		WHERE id = $1
	`, id, city, library, shelf, date, public, publicComment, privateComment); err != nil {
		return errors.Wrap(err, "update manuscript")
	}
	return nil
}

func (r *ManuscriptRepository) replaceContents(ctx context.Context, id int64, keywordIDs []int64) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	rows, err := tx.Query(ctx, `
		SELECT keyword_id FROM manuscript_contents WHERE manuscript_id = $1
	`, id)
	if err != nil {
		return false, errors.Wrap(err, "load manuscript contents")
	}
	current, err := collectIDs(rows)
	if err != nil {
		return false, err
	}

	want := entity.UniqueIDs(keywordIDs)
	if sameIDSet(current, want) {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM manuscript_contents WHERE manuscript_id = $1
	`, id); err != nil {
		return false, errors.Wrap(err, "clear manuscript contents")
	}
	for _, kid := range want {
		if _, err := tx.Exec(ctx, `
			INSERT INTO manuscript_contents (manuscript_id, keyword_id) VALUES ($1, $2)
		`, id, kid); err != nil {
			return false, errors.Wrap(err, "link manuscript content")
		}
	}
	return true, nil
}

func (r *ManuscriptRepository) replaceRoles(ctx context.Context, id int64, roles []manuscript.RoleDTO) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	rows, err := tx.Query(ctx, `
		SELECT person_id, role FROM manuscript_roles WHERE manuscript_id = $1
	`, id)
	if err != nil {
		return false, errors.Wrap(err, "load manuscript roles")
	}
	current := make(map[manuscript.RoleDTO]struct{})
	for rows.Next() {
		var dto manuscript.RoleDTO
		if err := rows.Scan(&dto.PersonID, &dto.Role); err != nil {
			rows.Close()
			return false, err
		}
		current[dto] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}

	want := make(map[manuscript.RoleDTO]struct{}, len(roles))
	for _, dto := range roles {
		want[dto] = struct{}{}
	}
	same := len(want) == len(current)
	if same {
		for dto := range want {
			if _, ok := current[dto]; !ok {
				same = false
				break
			}
		}
	}
	if same {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM manuscript_roles WHERE manuscript_id = $1
	`, id); err != nil {
		return false, errors.Wrap(err, "clear manuscript roles")
	}
	for dto := range want {
		if _, err := tx.Exec(ctx, `
			INSERT INTO manuscript_roles (manuscript_id, person_id, role) VALUES ($1, $2, $3)
		`, id, dto.PersonID, dto.Role); err != nil {
			return false, errors.Wrap(err, "link manuscript role")
		}
	}
	return true, nil
}

func (r *ManuscriptRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM manuscript_contents WHERE manuscript_id = $1`,
		`DELETE FROM manuscript_roles WHERE manuscript_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return errors.Wrap(err, "unlink manuscript references")
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM manuscripts WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete manuscript")
	}
	if tag.RowsAffected() == 0 {
		return serrors.NewNotFound(entity.KindManuscript.String(), id)
	}
	return r.subdata.DeleteAll(ctx, entity.KindManuscript, id)
}

func (r *ManuscriptRepository) IDsByKeyword(ctx context.Context, keywordID int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT manuscript_id FROM manuscript_contents WHERE keyword_id = $1
	`, keywordID)
	if err != nil {
		return nil, errors.Wrap(err, "load manuscripts by keyword")
	}
	return collectIDs(rows)
}

func (r *ManuscriptRepository) IDsByPerson(ctx context.Context, personID int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT manuscript_id FROM manuscript_roles WHERE person_id = $1
	`, personID)
	if err != nil {
		return nil, errors.Wrap(err, "load manuscripts by person")
	}
	return collectIDs(rows)
}

// RewriteKeywordRefs repoints every content link from one keyword to
// another. Links that would duplicate an existing (manuscript, keyword)
// pair are dropped instead of moved.
func (r *ManuscriptRepository) RewriteKeywordRefs(ctx context.Context, from, to int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	touched, err := r.IDsByKeyword(ctx, from)
	if err != nil {
		return nil, err
	}
	if len(touched) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM manuscript_contents src
		WHERE keyword_id = $1
		  AND EXISTS (
			SELECT 1 FROM manuscript_contents dst
			WHERE dst.manuscript_id = src.manuscript_id AND dst.keyword_id = $2
		  )
	`, from, to); err != nil {
		return nil, errors.Wrap(err, "dedupe content links")
	}
	if _, err := tx.Exec(ctx, `
		UPDATE manuscript_contents SET keyword_id = $2 WHERE keyword_id = $1
	`, from, to); err != nil {
		return nil, errors.Wrap(err, "rewrite content links")
	}
	return touched, nil
}

// RewritePersonRefs repoints every role assignment from one person to
// another, dropping assignments that would duplicate an existing
// (manuscript, person, role) triple.
func (r *ManuscriptRepository) RewritePersonRefs(ctx context.Context, from, to int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	touched, err := r.IDsByPerson(ctx, from)
	if err != nil {
		return nil, err
	}
	if len(touched) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM manuscript_roles src
		WHERE person_id = $1
		  AND EXISTS (
			SELECT 1 FROM manuscript_roles dst
			WHERE dst.manuscript_id = src.manuscript_id
			  AND dst.person_id = $2 AND dst.role = src.role
		  )
	`, from, to); err != nil {
		return nil, errors.Wrap(err, "dedupe role assignments")
	}
	if _, err := tx.Exec(ctx, `
		UPDATE manuscript_roles SET person_id = $2 WHERE person_id = $1
	`, from, to); err != nil {
		return nil, errors.Wrap(err, "rewrite role assignments")
	}
	return touched, nil
}

func sameIDSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int64]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
