package transforms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// RandomNodeID
// ============================================================================

func TestRandomNodeID(t *testing.T) {
	t.Parallel()

	const samples = 4000
	seen := make(map[string]struct{}, samples)
	counts := make(map[rune]int, len(obfAlphabet))
	for i := 0; i < samples; i++ {
		id := RandomNodeID()
		require.Len(t, id, 8)
		for _, c := range id {
			require.True(t, strings.ContainsRune(obfAlphabet, c), "unexpected character %q", c)
			counts[c]++
		}
		seen[id] = struct{}{}
	}

	assert.Len(t, seen, samples)

	// A fixed UUID version nibble would pin one position to a few characters;
	// with uniform output every alphabet character shows up many times.
	assert.Len(t, counts, len(obfAlphabet))
	for c, n := range counts {
		assert.Greater(t, n, 200, "character %q is underrepresented", c)
	}
}

func TestRandomNodeID_UniformPositions(t *testing.T) {
	t.Parallel()

	const samples = 2000
	for pos := 0; pos < 8; pos++ {
		distinct := make(map[byte]struct{})
		for i := 0; i < samples; i++ {
			distinct[RandomNodeID()[pos]] = struct{}{}
		}
		assert.Greater(t, len(distinct), 50, "position %d", pos)
	}
}
