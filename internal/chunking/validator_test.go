package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePreservationExactCoverage(t *testing.T) {
	original := "alpha beta gamma delta"
	chunks := []string{"alpha beta ", "gamma delta"}

	report := ValidatePreservation(original, chunks, "fixed_size")

	assert.True(t, report.Passed)
	assert.True(t, report.Acceptable)
	assert.InDelta(t, 1.0, report.CharRatio, 0.001)
	assert.Empty(t, report.Issues)
}

func TestValidatePreservationReportsLoss(t *testing.T) {
	original := strings.Repeat("a", 100)
	chunks := []string{strings.Repeat("a", 90)}

	report := ValidatePreservation(original, chunks, "fixed_size")

	assert.False(t, report.Passed)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "Content loss: 10 chars missing", report.Issues[0])
	// Within the 0.05 slack below the strict lower bound.
	assert.True(t, report.Acceptable)
}

func TestValidatePreservationReportsExpansion(t *testing.T) {
	original := strings.Repeat("a", 100)
	chunks := []string{strings.Repeat("a", 120)}

	report := ValidatePreservation(original, chunks, "heading")

	assert.False(t, report.Passed)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "Content expansion: 20 extra chars", report.Issues[0])
	assert.False(t, report.Acceptable)
}

func TestValidatePreservationIntelligentGetsWiderBand(t *testing.T) {
	original := strings.Repeat("a", 100)
	chunks := []string{strings.Repeat("a", 90)}

	report := ValidatePreservation(original, chunks, "intelligent")

	// 0.90 fails the strict band but sits inside the loose one.
	assert.True(t, report.Passed)
	assert.True(t, report.Acceptable)
}

func TestValidatePreservationFlagsEmptyChunks(t *testing.T) {
	original := strings.Repeat("b", 40)
	chunks := []string{strings.Repeat("b", 20), "   ", strings.Repeat("b", 20)}

	report := ValidatePreservation(original, chunks, "paragraph")

	assert.False(t, report.Passed)
	require.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues, "Empty chunks found at positions: [1]")
}

func TestValidatePreservationEmptyOriginal(t *testing.T) {
	report := ValidatePreservation("", nil, "fixed_size")

	assert.Zero(t, report.CharRatio)
	assert.Zero(t, report.WordRatio)
}
