package chunking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareIdenticalChunkSets(t *testing.T) {
	a := MethodChunks{
		Method: "fixed_size",
		Texts:  []string{"alpha beta", "gamma delta"},
		Hashes: []string{"h1", "h2"},
	}
	b := MethodChunks{
		Method: "paragraph",
		Texts:  []string{"alpha beta", "gamma delta"},
		Hashes: []string{"h1", "h2"},
	}

	result, err := Compare(a, b)

	require.NoError(t, err)
	assert.Equal(t, "fixed_size", result.MethodA)
	assert.Equal(t, "paragraph", result.MethodB)
	assert.Equal(t, 2, result.TotalChunksA)
	assert.Equal(t, 2, result.TotalChunksB)
	assert.InDelta(t, 100.0, result.ContentOverlapPct, 0.001)
	assert.InDelta(t, 1.0, result.SimilarityScore, 0.001)
}

func TestCompareHashOverlapUsesLargerSet(t *testing.T) {
	a := MethodChunks{Method: "a", Texts: []string{"x", "y"}, Hashes: []string{"h1", "h2"}}
	b := MethodChunks{Method: "b", Texts: []string{"x", "y", "z", "w"}, Hashes: []string{"h1", "h2", "h3", "h4"}}

	result, err := Compare(a, b)

	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.ContentOverlapPct, 0.001)
}

func TestCompareFallsBackToWordOverlap(t *testing.T) {
	// No hashes on one side, so overlap uses the word Jaccard index.
	a := MethodChunks{Method: "a", Texts: []string{"alpha beta gamma"}}
	b := MethodChunks{Method: "b", Texts: []string{"alpha beta delta"}, Hashes: []string{"h1"}}

	result, err := Compare(a, b)

	require.NoError(t, err)
	// 2 shared words of 4 distinct.
	assert.InDelta(t, 50.0, result.ContentOverlapPct, 0.001)
}

func TestCompareEmptySide(t *testing.T) {
	a := MethodChunks{Method: "a", Texts: []string{"something"}}
	b := MethodChunks{Method: "b"}

	_, err := Compare(a, b)

	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCompareIsSymmetricOnScores(t *testing.T) {
	a := MethodChunks{Method: "a", Texts: []string{"one two three", "four five"}}
	b := MethodChunks{Method: "b", Texts: []string{"one two", "three four", "six"}}

	ab, err := Compare(a, b)
	require.NoError(t, err)
	ba, err := Compare(b, a)
	require.NoError(t, err)

	assert.InDelta(t, ab.SimilarityScore, ba.SimilarityScore, 0.0001)
	assert.InDelta(t, ab.ContentOverlapPct, ba.ContentOverlapPct, 0.0001)
	assert.Equal(t, ab.TotalChunksA, ba.TotalChunksB)
}

func TestRecommendPrefersIntelligent(t *testing.T) {
	results := []ComparisonResult{
		{
			MethodA:       string(MethodIntelligent),
			MethodB:       string(MethodFixedSize),
			AvgChunkSizeA: 800,
			AvgChunkSizeB: 800,
		},
	}

	best, err := Recommend(results)

	require.NoError(t, err)
	assert.Equal(t, string(MethodIntelligent), best)
}

func TestRecommendFavorsChunkSizeNearTarget(t *testing.T) {
	results := []ComparisonResult{
		{
			MethodA:       string(MethodFixedSize),
			MethodB:       string(MethodParagraph),
			AvgChunkSizeA: 800,
			AvgChunkSizeB: 50,
		},
	}

	best, err := Recommend(results)

	require.NoError(t, err)
	assert.Equal(t, string(MethodFixedSize), best)
}

func TestRecommendTieKeepsFirstEncountered(t *testing.T) {
	results := []ComparisonResult{
		{
			MethodA:       string(MethodHeading),
			MethodB:       string(MethodParagraph),
			AvgChunkSizeA: 400,
			AvgChunkSizeB: 400,
		},
	}

	best, err := Recommend(results)

	require.NoError(t, err)
	assert.Equal(t, string(MethodHeading), best)
}

func TestRecommendNoData(t *testing.T) {
	_, err := Recommend(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
