package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docindexer/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema())
	return c
}

func insertTestFile(t *testing.T, c *Client, id string) {
	t.Helper()
	require.NoError(t, c.InsertFile(&models.FileRecord{
		ID:          id,
		Filename:    "contract.txt",
		Extension:   "txt",
		ContentHash: "abc123def456",
		SizeBytes:   1000,
		CreatedAt:   time.Now(),
	}))
}

func TestInsertAndGetChunks(t *testing.T) {
	c := newTestClient(t)
	insertTestFile(t, c, "file-1")

	start, end := 0, 25
	require.NoError(t, c.InsertChunk(&models.ChunkRecord{
		ID:          "chunk-1",
		FileID:      "file-1",
		ChunkIndex:  0,
		Method:      "paragraph",
		Text:        "First paragraph of text.",
		Hash:        "hash1",
		StartOffset: &start,
		EndOffset:   &end,
		Keyphrases:  []string{"paragraph", "text"},
		Summary:     "A paragraph.",
		Title:       "Section 1",
		CreatedAt:   time.Now(),
	}))
	require.NoError(t, c.InsertChunk(&models.ChunkRecord{
		ID:         "chunk-2",
		FileID:     "file-1",
		ChunkIndex: 1,
		Method:     "paragraph",
		Text:       "Second paragraph of text.",
		Hash:       "hash2",
		CreatedAt:  time.Now(),
	}))

	chunks, err := c.GetChunksByMethod("file-1", "paragraph")

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "chunk-1", chunks[0].ID)
	assert.Equal(t, []string{"paragraph", "text"}, chunks[0].Keyphrases)
	require.NotNil(t, chunks[0].StartOffset)
	assert.Equal(t, 0, *chunks[0].StartOffset)
	assert.Equal(t, 25, *chunks[0].EndOffset)
	assert.Equal(t, "chunk-2", chunks[1].ID)
}

func TestGetChunksByMethodFiltersMethod(t *testing.T) {
	c := newTestClient(t)
	insertTestFile(t, c, "file-1")

	require.NoError(t, c.InsertChunk(&models.ChunkRecord{
		ID: "chunk-a", FileID: "file-1", Method: "paragraph", Text: "a", CreatedAt: time.Now(),
	}))
	require.NoError(t, c.InsertChunk(&models.ChunkRecord{
		ID: "chunk-b", FileID: "file-1", Method: "fixed_size", Text: "b", CreatedAt: time.Now(),
	}))

	chunks, err := c.GetChunksByMethod("file-1", "fixed_size")

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "chunk-b", chunks[0].ID)
}

func TestUpsertComparisonReplacesRow(t *testing.T) {
	c := newTestClient(t)
	insertTestFile(t, c, "file-1")

	cmp := &models.ComparisonRecord{
		FileID:          "file-1",
		MethodA:         "fixed_size",
		MethodB:         "paragraph",
		TotalChunksA:    5,
		TotalChunksB:    3,
		SimilarityScore: 0.8,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, c.UpsertComparison(cmp))

	cmp.TotalChunksA = 7
	cmp.SimilarityScore = 0.9
	require.NoError(t, c.UpsertComparison(cmp))

	comparisons, err := c.GetComparisons("file-1")

	require.NoError(t, err)
	require.Len(t, comparisons, 1)
	assert.Equal(t, 7, comparisons[0].TotalChunksA)
	assert.InDelta(t, 0.9, comparisons[0].SimilarityScore, 0.001)
}

func TestInsertIndexUpload(t *testing.T) {
	c := newTestClient(t)
	insertTestFile(t, c, "file-1")
	require.NoError(t, c.InsertChunk(&models.ChunkRecord{
		ID: "chunk-1", FileID: "file-1", Method: "paragraph", Text: "t", CreatedAt: time.Now(),
	}))

	err := c.InsertIndexUpload(&models.IndexUploadRecord{
		ChunkID:          "chunk-1",
		SearchDocumentID: "contract_abc123def456_1",
		IndexName:        "documents",
		Status:           "uploaded",
		EmbeddingDim:     1536,
		CreatedAt:        time.Now(),
	})

	require.NoError(t, err)
}
