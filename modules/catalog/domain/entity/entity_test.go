package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniqueIDs_PreservesFirstSeenOrder(t *testing.T) {
	require.Equal(t, []int64{3, 1, 2}, UniqueIDs([]int64{3, 1, 3, 2, 1}))
	require.Empty(t, UniqueIDs(nil))
}

func TestUniqueRefs_IgnoresLabelForIdentity(t *testing.T) {
	refs := UniqueRefs([]Ref{
		{Kind: KindKeyword, ID: 1, Label: "a"},
		{Kind: KindKeyword, ID: 1, Label: "b"},
		{Kind: KindPerson, ID: 1},
	})
	require.Len(t, refs, 2)
	require.Equal(t, "a", refs[0].Label)
	require.Equal(t, KindPerson, refs[1].Kind)
}

func TestChangeSet_MarkAndQuery(t *testing.T) {
	var cs ChangeSet
	require.False(t, cs.Any())

	cs.Mark(TierShort)
	require.True(t, cs.Any())
	require.True(t, cs.Changed(TierShort))
	require.False(t, cs.Changed(TierMini))
	require.False(t, cs.Changed(TierFull))
}

func TestTier_String(t *testing.T) {
	require.Equal(t, "mini", TierMini.String())
	require.Equal(t, "short", TierShort.String())
	require.Equal(t, "full", TierFull.String())
}
