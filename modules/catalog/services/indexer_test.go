package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
	"github.com/scriptorium-io/scriptorium/modules/catalog/infrastructure/index"
	"github.com/scriptorium-io/scriptorium/pkg/repair"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

func testKeyword(id int64, name string) *keyword.Keyword {
	k := &keyword.Keyword{Name: name}
	k.ID = id
	return k
}

func newTestIndexer(driver *fakeDriver, keywords *fakeKeywordRepo) *Indexer {
	if keywords == nil {
		keywords = &fakeKeywordRepo{}
	}
	return NewIndexer(driver, nil,
		keywords,
		&fakePersonRepo{},
		&fakeManuscriptRepo{},
		&fakeManagementRepo{},
	)
}

func TestIndexer_Upsert_WritesShortProjection(t *testing.T) {
	driver := newFakeDriver()
	indexer := newTestIndexer(driver, &fakeKeywordRepo{
		shorts: map[int64]*keyword.Keyword{1: testKeyword(1, "astronomy")},
	})

	require.NoError(t, indexer.Upsert(context.Background(), entity.KindKeyword, 1))

	body, found, err := driver.Get(context.Background(), entity.KindKeyword, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, string(body), `"name":"astronomy"`)
}

func TestIndexer_Upsert_MissingEntityIsNotFound(t *testing.T) {
	indexer := newTestIndexer(newFakeDriver(), &fakeKeywordRepo{})

	err := indexer.Upsert(context.Background(), entity.KindKeyword, 9)
	require.Error(t, err)
	require.True(t, serrors.IsNotFound(err))
}

func TestIndexer_ReindexByIDs_UpsertsFoundDeletesMissing(t *testing.T) {
	driver := newFakeDriver()
	// Id 2 is indexed but its row is gone.
	require.NoError(t, driver.Update(context.Background(), docOf(entity.KindKeyword, 2)))
	indexer := newTestIndexer(driver, &fakeKeywordRepo{
		shorts: map[int64]*keyword.Keyword{1: testKeyword(1, "astronomy")},
	})

	require.NoError(t, indexer.ReindexByIDs(context.Background(), entity.KindKeyword, []int64{1, 2}))

	_, found, _ := driver.Get(context.Background(), entity.KindKeyword, 1)
	require.True(t, found)
	_, found, _ = driver.Get(context.Background(), entity.KindKeyword, 2)
	require.False(t, found)
}

func TestIndexer_ResyncAll_IsIdempotentAndRemovesOrphans(t *testing.T) {
	driver := newFakeDriver()
	require.NoError(t, driver.Update(context.Background(), docOf(entity.KindKeyword, 99)))
	indexer := NewIndexer(driver, nil,
		&fakeKeywordRepo{
			shorts: map[int64]*keyword.Keyword{1: testKeyword(1, "astronomy")},
			listed: []int64{1},
		},
		&fakePersonRepo{
			shorts: map[int64]*person.Person{4: {FirstName: "Beatus", LastName: "of Liébana"}},
			listed: []int64{4},
		},
		&fakeManuscriptRepo{
			shorts: map[int64]*manuscript.Manuscript{7: {City: "Paris", Library: "BnF"}},
			listed: []int64{7},
		},
		&fakeManagementRepo{},
	)

	for i := 0; i < 2; i++ {
		require.NoError(t, indexer.ResyncAll(context.Background()))

		ids, err := driver.IDs(context.Background(), entity.KindKeyword)
		require.NoError(t, err)
		require.Equal(t, []int64{1}, ids)
		ids, err = driver.IDs(context.Background(), entity.KindPerson)
		require.NoError(t, err)
		require.Equal(t, []int64{4}, ids)
		ids, err = driver.IDs(context.Background(), entity.KindManuscript)
		require.NoError(t, err)
		require.Equal(t, []int64{7}, ids)
	}
}

func TestIndexer_Repair_ReindexesJobIDs(t *testing.T) {
	driver := newFakeDriver()
	require.NoError(t, driver.Update(context.Background(), docOf(entity.KindKeyword, 3)))
	indexer := newTestIndexer(driver, &fakeKeywordRepo{
		shorts: map[int64]*keyword.Keyword{1: testKeyword(1, "astronomy")},
	})

	err := indexer.Repair(context.Background(), repair.Job{Kind: "keyword", EntityIDs: []int64{1, 3}})
	require.NoError(t, err)

	_, found, _ := driver.Get(context.Background(), entity.KindKeyword, 1)
	require.True(t, found)
	_, found, _ = driver.Get(context.Background(), entity.KindKeyword, 3)
	require.False(t, found)
}

func docOf(kind entity.Kind, id int64) index.Document {
	return index.Document{Kind: kind, ID: id, Body: []byte(`{}`)}
}
