package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
)

func TestConflictMeta_RendersBlockingEdges(t *testing.T) {
	meta := conflictMeta(map[entity.Kind][]int64{
		entity.KindManuscript: {10, 20},
		entity.KindKeyword:    {2},
	})
	require.Equal(t, "2", meta["keyword"])
	require.ElementsMatch(t, []string{"10", "20"}, strings.Split(meta["manuscript"], ","))
}

func TestHasDependents(t *testing.T) {
	require.False(t, hasDependents(nil))
	require.False(t, hasDependents(map[entity.Kind][]int64{entity.KindKeyword: {}}))
	require.True(t, hasDependents(map[entity.Kind][]int64{entity.KindKeyword: {1}}))
}

func TestPersonMergePatch_FillsOnlyEmptyFields(t *testing.T) {
	primary := &person.Person{FirstName: "Beatus"}
	secondary := &person.Person{FirstName: "B.", LastName: "of Liébana", Description: "monk and author"}

	patch, has := personMergePatch(primary, secondary)
	require.True(t, has)
	require.Nil(t, patch.FirstName)
	require.Equal(t, "of Liébana", *patch.LastName)
	require.Equal(t, "monk and author", *patch.Description)
}

func TestPersonMergePatch_NothingToFill(t *testing.T) {
	primary := &person.Person{FirstName: "Beatus", LastName: "of Liébana", Description: "monk"}
	secondary := &person.Person{FirstName: "B.", LastName: "de Liébana", Description: "author"}

	_, has := personMergePatch(primary, secondary)
	require.False(t, has)
}

func TestManuscriptMergePatch_UnionsContentsAndRoles(t *testing.T) {
	shared := testKeyword(1, "astronomy")
	primary := &manuscript.Manuscript{
		City:     "Paris",
		Library:  "BnF",
		Contents: []*keyword.Keyword{shared, testKeyword(2, "comets")},
		Roles: []manuscript.RoleAssignment{
			{Role: "scribe", Person: testPerson(4)},
		},
	}
	secondary := &manuscript.Manuscript{
		City:     "Paris",
		Library:  "BnF",
		Shelf:    "lat. 1234",
		Contents: []*keyword.Keyword{shared, testKeyword(3, "eclipses")},
		Roles: []manuscript.RoleAssignment{
			{Role: "scribe", Person: testPerson(4)},
			{Role: "patron", Person: testPerson(5)},
		},
	}

	patch := manuscriptMergePatch(primary, secondary)
	require.Equal(t, "lat. 1234", *patch.Shelf)
	require.Equal(t, []int64{1, 2, 3}, *patch.ContentIDs)
	require.Equal(t, []manuscript.RoleDTO{
		{Role: "scribe", PersonID: 4},
		{Role: "patron", PersonID: 5},
	}, *patch.Roles)
}

func testPerson(id int64) *person.Person {
	p := &person.Person{FirstName: "P"}
	p.ID = id
	return p
}
