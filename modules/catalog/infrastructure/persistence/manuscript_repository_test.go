package persistence

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
)

func manuscriptUpdateRow(city, library, shelf, date string) *stubRow {
	return &stubRow{scan: func(dest ...any) error {
		*dest[0].(*string) = city
		*dest[1].(*string) = library
		*dest[2].(*string) = shelf
		*dest[3].(*string) = date
		*dest[4].(*bool) = true
		*dest[5].(*string) = ""
		*dest[6].(*string) = ""
		return nil
	}}
}

func TestManuscriptRepository_Update_ShelfmarkMarksMiniTier(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return manuscriptUpdateRow("Paris", "BnF", "lat. 1234", "s. XII")
		},
	}
	repo := newManuscriptRepo()

	var changes entity.ChangeSet
	err := repo.Update(txContext(tx), 1, &manuscript.UpdateDTO{Shelf: ptr("lat. 5678")}, &changes)
	require.NoError(t, err)
	require.True(t, changes.Changed(entity.TierMini))
	require.False(t, changes.Changed(entity.TierShort))
}

func TestManuscriptRepository_Update_SameContentsMarkNothing(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return manuscriptUpdateRow("Paris", "BnF", "lat. 1234", "s. XII")
		},
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "manuscript_contents")
			return &stubRows{data: [][]any{{int64(3)}, {int64(5)}}}, nil
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			t.Fatalf("unexpected write: %s", sql)
			return pgconn.CommandTag{}, nil
		},
	}
	repo := newManuscriptRepo()

	var changes entity.ChangeSet
	err := repo.Update(txContext(tx), 1, &manuscript.UpdateDTO{ContentIDs: ptr([]int64{5, 3, 5})}, &changes)
	require.NoError(t, err)
	require.False(t, changes.Any())
}

func TestManuscriptRepository_Update_NewContentsMarkShortTier(t *testing.T) {
	var executed []string
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return manuscriptUpdateRow("Paris", "BnF", "lat. 1234", "s. XII")
		},
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &stubRows{data: [][]any{{int64(3)}}}, nil
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			executed = append(executed, sql)
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	repo := newManuscriptRepo()

	var changes entity.ChangeSet
	err := repo.Update(txContext(tx), 1, &manuscript.UpdateDTO{ContentIDs: ptr([]int64{3, 9})}, &changes)
	require.NoError(t, err)
	require.False(t, changes.Changed(entity.TierMini))
	require.True(t, changes.Changed(entity.TierShort))

	joined := strings.Join(executed, "\n")
	require.Contains(t, joined, "DELETE FROM manuscript_contents")
	require.Contains(t, joined, "INSERT INTO manuscript_contents")
	require.Contains(t, joined, "UPDATE manuscripts")
}

func TestManuscriptRepository_RewriteKeywordRefs_ReturnsTouchedIDs(t *testing.T) {
	var executed []string
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "manuscript_contents")
			return &stubRows{data: [][]any{{int64(10)}, {int64(20)}}}, nil
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			executed = append(executed, sql)
			require.Equal(t, []any{int64(2), int64(1)}, args)
			return pgconn.NewCommandTag("UPDATE 2"), nil
		},
	}
	repo := newManuscriptRepo().(*ManuscriptRepository)

	touched, err := repo.RewriteKeywordRefs(txContext(tx), 2, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 20}, touched)
	require.Len(t, executed, 2)
	require.Contains(t, executed[0], "EXISTS")
	require.Contains(t, executed[1], "SET keyword_id")
}

func TestManuscriptRepository_RewritePersonRefs_NoLinksIsNoop(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &stubRows{}, nil
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			t.Fatalf("unexpected write: %s", sql)
			return pgconn.CommandTag{}, nil
		},
	}
	repo := newManuscriptRepo().(*ManuscriptRepository)

	touched, err := repo.RewritePersonRefs(txContext(tx), 2, 1)
	require.NoError(t, err)
	require.Empty(t, touched)
}

func TestSameIDSet(t *testing.T) {
	require.True(t, sameIDSet([]int64{1, 2}, []int64{2, 1}))
	require.False(t, sameIDSet([]int64{1, 2}, []int64{1, 3}))
	require.False(t, sameIDSet([]int64{1}, []int64{1, 2}))
	require.True(t, sameIDSet(nil, nil))
}

func newManuscriptRepo() manuscript.Repository {
	subdata := NewSubdataRepository()
	return NewManuscriptRepository(subdata, NewKeywordRepository(subdata), NewPersonRepository(subdata))
}
