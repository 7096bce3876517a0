package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
)

// managementsDiffer compares the stored management assignment of an entity
// against the desired set and rewrites it when they differ. Reports whether
// a rewrite happened.
func managementsDiffer(ctx context.Context, subdata *SubdataRepository, kind entity.Kind, id int64, desired []int64) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	rows, err := tx.Query(ctx, `
		SELECT management_id FROM entity_managements
		WHERE entity_kind = $1 AND entity_id = $2
	`, kind, id)
	if err != nil {
		return false, errors.Wrap(err, "load management assignment")
	}
	current := make(map[int64]struct{})
	for rows.Next() {
		var mid int64
		if err := rows.Scan(&mid); err != nil {
			rows.Close()
			return false, err
		}
		current[mid] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}

	want := entity.UniqueIDs(desired)
	same := len(want) == len(current)
	if same {
		for _, mid := range want {
			if _, ok := current[mid]; !ok {
				same = false
				break
			}
		}
	}
	if same {
		return false, nil
	}
	if err := subdata.ReplaceManagements(ctx, kind, id, want); err != nil {
		return false, err
	}
	return true, nil
}

// collectIDs drains a single-int64-column result set, used by RETURNING
// queries that report which rows a rewrite touched.
func collectIDs(rows pgx.Rows) ([]int64, error) {
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
