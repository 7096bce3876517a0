package repair

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff_DoublesAndCaps(t *testing.T) {
	max := 60 * time.Second

	require.Equal(t, time.Duration(0), backoff(0, max))
	require.Equal(t, 1*time.Second, backoff(1, max))
	require.Equal(t, 2*time.Second, backoff(2, max))
	require.Equal(t, 32*time.Second, backoff(6, max))
	require.Equal(t, max, backoff(7, max))
	require.Equal(t, max, backoff(30, max))
}

func TestJitter_Bounds(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		j := jitter(r, 200*time.Millisecond)
		require.GreaterOrEqual(t, j, time.Duration(0))
		require.LessOrEqual(t, j, 200*time.Millisecond)
	}
	require.Equal(t, time.Duration(0), jitter(nil, time.Second))
	require.Equal(t, time.Duration(0), jitter(r, 0))
}

func TestTruncate_RespectsUTF8(t *testing.T) {
	require.Equal(t, "", truncate("anything", 0))
	require.Equal(t, "abc", truncate("abc", 10))
	require.Equal(t, "ab", truncate("abcd", 2))
	// Never cut a multibyte rune in half.
	require.Equal(t, "", truncate("é", 1))
}
