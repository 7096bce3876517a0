package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/pkg/constants"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

type stubTx struct {
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryFunc != nil {
		return s.queryFunc(ctx, sql, args...)
	}
	return &stubRows{}, nil
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRowFunc != nil {
		return s.queryRowFunc(ctx, sql, args...)
	}
	return &stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (s *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if s.execFunc != nil {
		return s.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (s *stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r *stubRow) Scan(dest ...any) error { return r.scan(dest...) }

type stubRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, d := range dest {
		switch d := d.(type) {
		case *int64:
			*d = row[i].(int64)
		case **int64:
			if row[i] == nil {
				*d = nil
			} else {
				v := row[i].(int64)
				*d = &v
			}
		case *string:
			*d = row[i].(string)
		case *bool:
			*d = row[i].(bool)
		case *entity.Kind:
			*d = entity.Kind(row[i].(string))
		case *time.Time:
			*d = row[i].(time.Time)
		}
	}
	return nil
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return r.err }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func txContext(tx *stubTx) context.Context {
	return context.WithValue(context.Background(), constants.TxKey, tx)
}

func ptr[T any](v T) *T { return &v }

func TestKeywordRepository_LoadMini(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM keywords")
			require.Equal(t, []int64{1, 2}, args[0])
			return &stubRows{data: [][]any{
				{int64(1), "astronomy", nil},
				{int64(2), "comets", int64(1)},
			}}, nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	out, err := repo.LoadMini(txContext(tx), []int64{1, 2, 1})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "astronomy", out[1].Name)
	require.Nil(t, out[1].ParentID)
	require.NotNil(t, out[2].ParentID)
	require.Equal(t, int64(1), *out[2].ParentID)
}

func keywordUpdateRow(name string, parentID *int64, public bool, publicComment, privateComment string) *stubRow {
	return &stubRow{scan: func(dest ...any) error {
		*dest[0].(*string) = name
		*dest[1].(**int64) = parentID
		*dest[2].(*bool) = public
		*dest[3].(*string) = publicComment
		*dest[4].(*string) = privateComment
		return nil
	}}
}

func TestKeywordRepository_Update_RenameMarksMiniTier(t *testing.T) {
	var updateSQL string
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "FOR UPDATE")
			return keywordUpdateRow("astronomy", nil, true, "", "")
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			updateSQL = sql
			require.Equal(t, "astrology", args[1])
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	var changes entity.ChangeSet
	err := repo.Update(txContext(tx), 1, &keyword.UpdateDTO{Name: ptr("astrology")}, &changes)
	require.NoError(t, err)
	require.True(t, changes.Changed(entity.TierMini))
	require.False(t, changes.Changed(entity.TierShort))
	require.Contains(t, updateSQL, "UPDATE keywords")
}

func TestKeywordRepository_Update_VisibilityMarksShortTier(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return keywordUpdateRow("astronomy", nil, true, "", "")
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	var changes entity.ChangeSet
	err := repo.Update(txContext(tx), 1, &keyword.UpdateDTO{Public: ptr(false)}, &changes)
	require.NoError(t, err)
	require.False(t, changes.Changed(entity.TierMini))
	require.True(t, changes.Changed(entity.TierShort))
}

func TestKeywordRepository_Update_SameValuesMarkNothing(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return keywordUpdateRow("astronomy", ptr(int64(7)), true, "", "")
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			t.Fatalf("unexpected write: %s", sql)
			return pgconn.CommandTag{}, nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	var changes entity.ChangeSet
	err := repo.Update(txContext(tx), 1, &keyword.UpdateDTO{
		Name:     ptr("astronomy"),
		ParentID: ptr(int64(7)),
		Public:   ptr(true),
	}, &changes)
	require.NoError(t, err)
	require.False(t, changes.Any())
}

func TestKeywordRepository_Update_ClearParentMarksMiniTier(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return keywordUpdateRow("comets", ptr(int64(1)), true, "", "")
		},
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Nil(t, args[2])
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	var changes entity.ChangeSet
	err := repo.Update(txContext(tx), 2, &keyword.UpdateDTO{ClearParent: true}, &changes)
	require.NoError(t, err)
	require.True(t, changes.Changed(entity.TierMini))
}

func TestKeywordRepository_Update_MissingRowIsNotFound(t *testing.T) {
	tx := &stubTx{}
	repo := NewKeywordRepository(NewSubdataRepository())

	var changes entity.ChangeSet
	err := repo.Update(txContext(tx), 99, &keyword.UpdateDTO{Name: ptr("x")}, &changes)
	require.Error(t, err)
	require.True(t, serrors.IsNotFound(err))
}

func TestKeywordRepository_Delete_MissingRowIsNotFound(t *testing.T) {
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	err := repo.Delete(txContext(tx), 99)
	require.Error(t, err)
	require.True(t, serrors.IsNotFound(err))
}

func TestKeywordRepository_Delete_RemovesSubdata(t *testing.T) {
	var executed []string
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			executed = append(executed, sql)
			return pgconn.NewCommandTag("DELETE 1"), nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	require.NoError(t, repo.Delete(txContext(tx), 5))
	require.Len(t, executed, 5)
	require.Contains(t, executed[0], "DELETE FROM keywords")
	require.Contains(t, executed[1], "entity_identifiers")
	require.Contains(t, executed[4], "entity_managements")
}

func TestKeywordRepository_DescendantIDs_TerminatesOnCycle(t *testing.T) {
	// 1 -> {2, 3}, 2 -> {1} simulates a corrupted parent chain.
	children := map[int64][]int64{1: {2, 3}, 2: {1}}
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			frontier := args[0].([]int64)
			var data [][]any
			for _, id := range frontier {
				for _, child := range children[id] {
					data = append(data, []any{child})
				}
			}
			return &stubRows{data: data}, nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	out, err := repo.DescendantIDs(txContext(tx), 1)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{2, 3}, out)
}

func TestKeywordRepository_ReparentChildren_SkipsExcludedIDs(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "UPDATE keywords")
			require.Contains(t, sql, "NOT (id = ANY($3))")
			require.Equal(t, int64(3), args[0])
			require.Equal(t, int64(1), args[1])
			require.Equal(t, []int64{9, 1}, args[2])
			return &stubRows{data: [][]any{{int64(4)}, {int64(5)}}}, nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	moved, err := repo.ReparentChildren(txContext(tx), 3, 1, []int64{9, 1})
	require.NoError(t, err)
	require.Equal(t, []int64{4, 5}, moved)
}

func TestKeywordRepository_ReparentChildren_NilExcludeMatchesAll(t *testing.T) {
	// A nil slice must be sent as an empty array, not SQL NULL, or the
	// predicate would match no rows at all.
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Equal(t, []int64{}, args[2])
			return &stubRows{data: [][]any{{int64(4)}}}, nil
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	moved, err := repo.ReparentChildren(txContext(tx), 3, 1, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{4}, moved)
}

func TestKeywordRepository_Create_DefaultsToPublic(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO keywords")
			require.Equal(t, true, args[2])
			return &stubRow{scan: func(dest ...any) error {
				*dest[0].(*int64) = 11
				return nil
			}}
		},
	}
	repo := NewKeywordRepository(NewSubdataRepository())

	id, err := repo.Create(txContext(tx), &keyword.CreateDTO{Name: "astronomy"})
	require.NoError(t, err)
	require.Equal(t, int64(11), id)
}
