package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
)

func TestRevisionRepository_Create_FillsIDAndTimestamp(t *testing.T) {
	actorID := uuid.New()
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO revisions")
			require.Equal(t, entity.KindKeyword, args[0])
			require.Equal(t, int64(3), args[1])
			require.Equal(t, actorID, args[2])
			return &stubRow{scan: func(dest ...any) error {
				*dest[0].(*int64) = 42
				return nil
			}}
		},
	}
	repo := NewRevisionRepository()

	rev := &entity.Revision{Kind: entity.KindKeyword, EntityID: 3, ActorID: actorID}
	require.NoError(t, repo.Create(txContext(tx), rev))
	require.Equal(t, int64(42), rev.ID)
}

func TestRevisionRepository_List_AppliesPagination(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "ORDER BY id DESC")
			require.Contains(t, sql, "LIMIT 10 OFFSET 20")
			return &stubRows{}, nil
		},
	}
	repo := NewRevisionRepository()

	out, err := repo.List(txContext(tx), &entity.RevisionFindParams{
		Kind:     entity.KindPerson,
		EntityID: 5,
		Limit:    10,
		Offset:   20,
	})
	require.NoError(t, err)
	require.Empty(t, out)
}
