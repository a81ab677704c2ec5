package retriever

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuseCombinesBothLists(t *testing.T) {
	dense := []rankedRow{{id: "a"}, {id: "b"}, {id: "c"}}
	lexical := []rankedRow{{id: "b"}, {id: "d"}}

	fused := fuse(dense, lexical)
	require.Len(t, fused, 4)

	// "b" appears in both lists at good ranks, so it should score highest.
	require.Equal(t, "b", fused[0].id)
}

func TestFuseCandidateInOnlyOneListStillParticipates(t *testing.T) {
	dense := []rankedRow{{id: "a"}}
	lexical := []rankedRow{{id: "z"}}

	fused := fuse(dense, lexical)
	require.Len(t, fused, 2)
}

func TestFuseBreaksTiesLexicographically(t *testing.T) {
	dense := []rankedRow{{id: "b"}, {id: "a"}}
	lexical := []rankedRow{{id: "a"}, {id: "b"}}

	fused := fuse(dense, lexical)
	require.Equal(t, "a", fused[0].id)
	require.Equal(t, "b", fused[1].id)
}
