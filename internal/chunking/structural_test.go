package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedSizeBacksOffToWordBoundary(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"

	chunks := FixedSize(text, 20)

	require.Len(t, chunks, 3)
	assert.Equal(t, "The quick brown fox", chunks[0])
	assert.Equal(t, "jumps over the lazy", chunks[1])
	assert.Equal(t, "dog", chunks[2])
}

func TestFixedSizeKeepsWindowWhenSpaceTooEarly(t *testing.T) {
	// The only space sits before 70% of the window, so the cut is not taken.
	text := "abcdefghij klmnopqrstuvwxyz0123456789"

	chunks := FixedSize(text, 20)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "abcdefghij klmnopqrs", chunks[0])
}

func TestFixedSizeEmptyInput(t *testing.T) {
	assert.Nil(t, FixedSize("", 100))
	assert.Nil(t, FixedSize("   \n\t  ", 100))
	assert.Nil(t, FixedSize("some text", 0))
}

func TestFixedSizeShortText(t *testing.T) {
	chunks := FixedSize("short", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0])
}

func TestSentenceBoundaryPacksSentences(t *testing.T) {
	chunks := SentenceBoundary("One. Two. Three.", 10)

	require.Len(t, chunks, 2)
	assert.Equal(t, "One. Two.", chunks[0])
	assert.Equal(t, "Three.", chunks[1])
}

func TestSentenceBoundaryOversizedSentence(t *testing.T) {
	// A single sentence longer than the limit still becomes one chunk.
	text := "This sentence has no early break and runs well past the limit."

	chunks := SentenceBoundary(text, 10)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSentenceBoundaryHandlesQuestionAndExclamation(t *testing.T) {
	chunks := SentenceBoundary("Really? Yes! Good.", 8)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Really?", chunks[0])
	assert.Equal(t, "Yes!", chunks[1])
	assert.Equal(t, "Good.", chunks[2])
}

func TestHeadingBasedSplitsOnSectionHeadings(t *testing.T) {
	text := "SECTION 1 Introduction\n" +
		"This agreement covers the terms between the parties.\n" +
		"\n" +
		"SECTION 2 Definitions\n" +
		"Confidential Information means any non-public data."

	chunks := HeadingBased(text)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "SECTION 1 Introduction")
	assert.Contains(t, chunks[0], "This agreement covers")
	assert.Contains(t, chunks[1], "SECTION 2 Definitions")
}

func TestHeadingBasedRecognizesUppercaseLines(t *testing.T) {
	text := "GOVERNING LAW\n" +
		"This agreement is governed by the laws of the state.\n" +
		"TERMINATION CLAUSE\n" +
		"Either party may terminate with thirty days notice."

	chunks := HeadingBased(text)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "GOVERNING LAW")
	assert.Contains(t, chunks[1], "TERMINATION CLAUSE")
}

func TestHeadingBasedNoHeadings(t *testing.T) {
	text := "just a plain line of text\nand another plain line"

	chunks := HeadingBased(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, "just a plain line of text\nand another plain line", chunks[0])
}

func TestIsHeadingLine(t *testing.T) {
	assert.True(t, isHeadingLine("1. Scope of Work"))
	assert.True(t, isHeadingLine("IV. Payment Terms"))
	assert.True(t, isHeadingLine("ARTICLE 3 Liability"))
	assert.True(t, isHeadingLine("WHEREAS the parties agree"))
	assert.True(t, isHeadingLine("SHORT CAPS TITLE"))
	assert.False(t, isHeadingLine(""))
	assert.False(t, isHeadingLine("this is an ordinary lowercase sentence."))
}

func TestParagraphBased(t *testing.T) {
	chunks := ParagraphBased("First paragraph.\n\nSecond paragraph.\n\n\n\nThird.")

	require.Len(t, chunks, 3)
	assert.Equal(t, "First paragraph.", chunks[0])
	assert.Equal(t, "Second paragraph.", chunks[1])
	assert.Equal(t, "Third.", chunks[2])
}

func TestFixedSizePreservesContent(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 22))

	chunks := FixedSize(text, 200)
	report := ValidatePreservation(text, chunks, "fixed_size")

	require.Len(t, chunks, 5)
	assert.GreaterOrEqual(t, report.CharRatio, 0.95)
	assert.LessOrEqual(t, report.CharRatio, 1.10)
	assert.True(t, report.Passed)
}

func TestChunkersAreRepeatable(t *testing.T) {
	text := "SECTION 1. Definitions\nThe terms below apply throughout.\n\n" +
		"SECTION 2. Payment\nThe buyer shall pay within thirty days. Late payments accrue interest."

	assert.Equal(t, FixedSize(text, 50), FixedSize(text, 50))
	assert.Equal(t, SentenceBoundary(text, 60), SentenceBoundary(text, 60))
	assert.Equal(t, HeadingBased(text), HeadingBased(text))
	assert.Equal(t, ParagraphBased(text), ParagraphBased(text))
}
