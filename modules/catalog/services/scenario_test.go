package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/migrations"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/infrastructure/persistence"
	"github.com/scriptorium-io/scriptorium/pkg/composables"
	"github.com/scriptorium-io/scriptorium/pkg/eventbus"
	"github.com/scriptorium-io/scriptorium/pkg/repair"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// TestKeywordLifecycle drives a keyword taxonomy through create, reparent,
// rename, merge and delete against a real database, checking the revision
// stream and the index after every step. Set TEST_DATABASE_URL to run it.
func TestKeywordLifecycle(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, migrations.Up(ctx, dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	_, err = pool.Exec(ctx, `
		TRUNCATE keywords, persons, manuscripts, manuscript_contents, manuscript_roles,
			entity_identifiers, entity_urls, entity_citations, entity_managements,
			management_tags, revisions, index_repair_queue
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)

	subdata := persistence.NewSubdataRepository()
	keywords := persistence.NewKeywordRepository(subdata)
	persons := persistence.NewPersonRepository(subdata)
	manuscripts := persistence.NewManuscriptRepository(subdata, keywords, persons)
	managements := persistence.NewManagementRepository(subdata)
	revisions := persistence.NewRevisionRepository()

	driver := newFakeDriver()
	indexer := NewIndexer(driver, pool, keywords, persons, manuscripts, managements)
	logger := logrus.New()
	svc := NewKeywordService(Deps{
		Pool:      pool,
		Revisions: revisions,
		Subdata:   subdata,
		Indexer:   indexer,
		Resolver:  NewDependencyResolver(keywords, manuscripts, managements),
		Repairs:   repair.NewStore(),
		Bus:       eventbus.NewEventPublisher(logger),
		Logger:    logger.WithField("component", "catalog"),
	}, keywords)

	actorCtx := actorContext()
	poolCtx := composables.WithPool(context.Background(), pool)

	revisionCount := func(id int64) int64 {
		n, err := revisions.Count(poolCtx, &entity.RevisionFindParams{Kind: entity.KindKeyword, EntityID: id})
		require.NoError(t, err)
		return n
	}

	alpha, err := svc.Create(actorCtx, &keyword.CreateDTO{Name: "Alpha"})
	require.NoError(t, err)
	beta, err := svc.Create(actorCtx, &keyword.CreateDTO{Name: "Beta", ParentID: &alpha.ID})
	require.NoError(t, err)
	gamma, err := svc.Create(actorCtx, &keyword.CreateDTO{Name: "Gamma", ParentID: &beta.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, revisionCount(alpha.ID))

	// Reparenting Alpha under its own grandchild must fail and change
	// nothing.
	_, err = svc.Update(actorCtx, alpha.ID, &keyword.UpdateDTO{ParentID: &gamma.ID})
	require.Error(t, err)
	require.True(t, serrors.IsBadRequest(err))
	reloaded, err := svc.GetByID(context.Background(), alpha.ID)
	require.NoError(t, err)
	require.Nil(t, reloaded.ParentID)
	require.EqualValues(t, 1, revisionCount(alpha.ID))

	// Renaming Beta records one revision and refreshes both its document and
	// its child's, which embeds the parent mini.
	renamed := "Beta Prime"
	_, err = svc.Update(actorCtx, beta.ID, &keyword.UpdateDTO{Name: &renamed})
	require.NoError(t, err)
	require.EqualValues(t, 2, revisionCount(beta.ID))
	body, found, _ := driver.Get(context.Background(), entity.KindKeyword, beta.ID)
	require.True(t, found)
	require.Contains(t, string(body), "Beta Prime")
	body, found, _ = driver.Get(context.Background(), entity.KindKeyword, gamma.ID)
	require.True(t, found)
	require.Contains(t, string(body), "Beta Prime")

	// The full projection carries every short-tier field unchanged.
	shorts, err := svc.GetShort(context.Background(), []int64{beta.ID})
	require.NoError(t, err)
	short := shorts[beta.ID]
	require.NotNil(t, short)
	full, err := svc.GetByID(context.Background(), beta.ID)
	require.NoError(t, err)
	require.Equal(t, short.Name, full.Name)
	require.Equal(t, short.ParentID, full.ParentID)
	require.Equal(t, short.Public, full.Public)
	require.Equal(t, short.PublicComment, full.PublicComment)
	require.Equal(t, short.PrivateComment, full.PrivateComment)
	require.Equal(t, short.Identifiers, full.Identifiers)
	require.Equal(t, short.Managements, full.Managements)

	// A patch that changes nothing is rejected and records nothing.
	_, err = svc.Update(actorCtx, beta.ID, &keyword.UpdateDTO{Name: &renamed})
	require.Error(t, err)
	require.True(t, serrors.IsBadRequest(err))
	require.EqualValues(t, 2, revisionCount(beta.ID))

	// Merging Beta into Alpha reparents Gamma and removes Beta everywhere.
	merged, err := svc.Merge(actorCtx, alpha.ID, beta.ID)
	require.NoError(t, err)
	require.Equal(t, alpha.ID, merged.ID)
	_, err = svc.GetByID(context.Background(), beta.ID)
	require.True(t, serrors.IsNotFound(err))
	_, found, _ = driver.Get(context.Background(), entity.KindKeyword, beta.ID)
	require.False(t, found)
	reloaded, err = svc.GetByID(context.Background(), gamma.ID)
	require.NoError(t, err)
	require.Equal(t, alpha.ID, *reloaded.ParentID)

	// Merging the same pair again must not find the secondary.
	_, err = svc.Merge(actorCtx, alpha.ID, beta.ID)
	require.True(t, serrors.IsNotFound(err))

	// Alpha still has a child, so deletion is blocked with the blocking
	// edge in the error meta.
	err = svc.Delete(actorCtx, alpha.ID)
	require.Error(t, err)
	require.True(t, serrors.IsDependencyConflict(err))

	// Merging an ancestor into its own grandchild must not close a cycle:
	// the child between them is spliced onto the ancestor's parent instead
	// of moving under the grandchild.
	delta, err := svc.Create(actorCtx, &keyword.CreateDTO{Name: "Delta", ParentID: &gamma.ID})
	require.NoError(t, err)
	merged, err = svc.Merge(actorCtx, delta.ID, alpha.ID)
	require.NoError(t, err)
	require.Equal(t, delta.ID, merged.ID)
	_, err = svc.GetByID(context.Background(), alpha.ID)
	require.True(t, serrors.IsNotFound(err))
	reloaded, err = svc.GetByID(context.Background(), gamma.ID)
	require.NoError(t, err)
	require.Nil(t, reloaded.ParentID)
	reloaded, err = svc.GetByID(context.Background(), delta.ID)
	require.NoError(t, err)
	require.Equal(t, gamma.ID, *reloaded.ParentID)
	_, found, _ = driver.Get(context.Background(), entity.KindKeyword, alpha.ID)
	require.False(t, found)

	require.NoError(t, svc.Delete(actorCtx, delta.ID))
	require.NoError(t, svc.Delete(actorCtx, gamma.ID))

	// The revision stream outlives the entity: create, the merge it
	// absorbed, the merge that removed it.
	require.EqualValues(t, 3, revisionCount(alpha.ID))
}
