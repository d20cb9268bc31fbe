package models

import "time"

// FileRecord is one processed upload.
type FileRecord struct {
	ID          string
	Filename    string
	Extension   string
	ContentHash string
	SizeBytes   int64
	CreatedAt   time.Time
}

// ChunkRecord is one chunk of a file under one chunking method, with the AI
// metadata it was enriched with. Offsets are rune positions in the extracted
// text; nil for AI-driven methods.
type ChunkRecord struct {
	ID               string
	FileID           string
	ChunkIndex       int
	Method           string
	Text             string
	Hash             string
	StartOffset      *int
	EndOffset        *int
	Keyphrases       []string
	Summary          string
	Title            string
	ProcessingTimeMs int64
	CreatedAt        time.Time
}

// ComparisonRecord is one pairwise method comparison over a file. A file and
// method pair has at most one row; reruns replace it.
type ComparisonRecord struct {
	ID                int64
	FileID            string
	MethodA           string
	MethodB           string
	TotalChunksA      int
	TotalChunksB      int
	AvgChunkSizeA     float64
	AvgChunkSizeB     float64
	SimilarityScore   float64
	ContentOverlapPct float64
	ProcessingTimeAMs int64
	ProcessingTimeBMs int64
	CreatedAt         time.Time
}

// IndexUploadRecord joins a local chunk to its search index document and
// records the upload outcome.
type IndexUploadRecord struct {
	ID               int64
	ChunkID          string
	SearchDocumentID string
	IndexName        string
	Status           string
	ErrorMessage     string
	EmbeddingDim     int
	CreatedAt        time.Time
}
