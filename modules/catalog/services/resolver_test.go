package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
)

func TestResolver_KeywordDependents(t *testing.T) {
	resolver := NewDependencyResolver(
		&fakeKeywordRepo{children: map[int64][]int64{1: {2, 3}}},
		&fakeManuscriptRepo{byKeyword: map[int64][]int64{1: {10, 20}}},
		&fakeManagementRepo{},
	)

	out, err := resolver.Dependents(context.Background(), entity.KindKeyword, 1)
	require.NoError(t, err)
	require.Equal(t, map[entity.Kind][]int64{
		entity.KindManuscript: {10, 20},
		entity.KindKeyword:    {2, 3},
	}, out)
}

func TestResolver_PersonDependents(t *testing.T) {
	resolver := NewDependencyResolver(
		&fakeKeywordRepo{},
		&fakeManuscriptRepo{byPerson: map[int64][]int64{4: {10}}},
		&fakeManagementRepo{},
	)

	out, err := resolver.Dependents(context.Background(), entity.KindPerson, 4)
	require.NoError(t, err)
	require.Equal(t, map[entity.Kind][]int64{entity.KindManuscript: {10}}, out)
}

func TestResolver_ManagementDependentsGroupByKind(t *testing.T) {
	resolver := NewDependencyResolver(
		&fakeKeywordRepo{},
		&fakeManuscriptRepo{},
		&fakeManagementRepo{tagged: map[int64][]entity.Ref{
			5: {
				{Kind: entity.KindKeyword, ID: 1},
				{Kind: entity.KindManuscript, ID: 10},
				{Kind: entity.KindManuscript, ID: 20},
			},
		}},
	)

	out, err := resolver.Dependents(context.Background(), entity.KindManagement, 5)
	require.NoError(t, err)
	require.Equal(t, map[entity.Kind][]int64{
		entity.KindKeyword:    {1},
		entity.KindManuscript: {10, 20},
	}, out)
}

func TestResolver_ManuscriptHasNoDependents(t *testing.T) {
	resolver := NewDependencyResolver(&fakeKeywordRepo{}, &fakeManuscriptRepo{}, &fakeManagementRepo{})

	out, err := resolver.Dependents(context.Background(), entity.KindManuscript, 10)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestResolver_DependentsWithChildren_WidensKeywordSubtree(t *testing.T) {
	resolver := NewDependencyResolver(
		&fakeKeywordRepo{
			children:    map[int64][]int64{1: {2}},
			descendants: map[int64][]int64{1: {2, 3, 4}},
		},
		&fakeManuscriptRepo{},
		&fakeManagementRepo{},
	)

	out, err := resolver.DependentsWithChildren(context.Background(), entity.KindKeyword, 1)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{2, 3, 4}, out[entity.KindKeyword])
}
