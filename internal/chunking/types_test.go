package chunking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	m, ok := ParseMethod("fixed_size")
	assert.True(t, ok)
	assert.Equal(t, MethodFixedSize, m)

	_, ok = ParseMethod("no_such_method")
	assert.False(t, ok)
}

func TestResolveUnknownFallsBackToDefault(t *testing.T) {
	s := NewSplitter(nil, MethodParagraph, 1000, "legal")

	assert.Equal(t, MethodParagraph, s.Resolve(""))
	assert.Equal(t, MethodParagraph, s.Resolve("bogus"))
	assert.Equal(t, MethodHeading, s.Resolve("heading"))
}

func TestNewSplitterRejectsBadDefaults(t *testing.T) {
	s := NewSplitter(nil, "nonsense", 0, "legal")

	assert.Equal(t, MethodIntelligent, s.DefaultMethod())
}

func TestSplitParagraphCarriesOffsets(t *testing.T) {
	s := NewSplitter(nil, MethodParagraph, 1000, "legal")

	chunks := s.Split(context.Background(), "Para one.\n\nPara two.", MethodParagraph, 0)

	require.Len(t, chunks, 2)
	require.NotNil(t, chunks[0].StartOffset)
	require.NotNil(t, chunks[1].StartOffset)
	assert.Equal(t, 0, *chunks[0].StartOffset)
	assert.Equal(t, 9, *chunks[0].EndOffset)
	assert.Equal(t, 11, *chunks[1].StartOffset)
	assert.Equal(t, 20, *chunks[1].EndOffset)
}

func TestSplitFixedSizeOffsetsAreWindowStarts(t *testing.T) {
	s := NewSplitter(nil, MethodFixedSize, 20, "legal")

	chunks := s.Split(context.Background(), "The quick brown fox jumps over the lazy dog", MethodFixedSize, 20)

	require.Len(t, chunks, 3)
	assert.Equal(t, 0, *chunks[0].StartOffset)
	assert.Equal(t, 20, *chunks[1].StartOffset)
	assert.Equal(t, 40, *chunks[2].StartOffset)
}

func TestSplitIntelligentWithoutChunkerUsesSentences(t *testing.T) {
	s := NewSplitter(nil, MethodIntelligent, 10, "legal")

	chunks := s.Split(context.Background(), "One. Two. Three.", MethodIntelligent, 10)

	require.Len(t, chunks, 2)
	assert.Equal(t, "One. Two.", chunks[0].Text)
	assert.Nil(t, chunks[0].StartOffset)
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(nil, MethodParagraph, 1000, "legal")

	assert.Nil(t, s.Split(context.Background(), "  \n ", MethodParagraph, 0))
}

func TestTexts(t *testing.T) {
	chunks := []Chunk{{Text: "a"}, {Text: "b"}}
	assert.Equal(t, []string{"a", "b"}, Texts(chunks))
}
