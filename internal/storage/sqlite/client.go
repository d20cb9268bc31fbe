package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docindexer/backend/internal/storage/models"
	"github.com/docindexer/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		extension TEXT,
		content_hash TEXT NOT NULL,
		size_bytes INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_filename ON files(filename);
	CREATE INDEX IF NOT EXISTS idx_files_hash ON files(content_hash);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		file_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		method TEXT NOT NULL,
		text TEXT NOT NULL,
		hash TEXT,
		start_offset INTEGER,
		end_offset INTEGER,
		keyphrases TEXT,
		summary TEXT,
		title TEXT,
		processing_time_ms INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file ON document_chunks(file_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_method ON document_chunks(file_id, method);

	CREATE TABLE IF NOT EXISTS method_comparisons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT NOT NULL,
		method_a TEXT NOT NULL,
		method_b TEXT NOT NULL,
		total_chunks_a INTEGER,
		total_chunks_b INTEGER,
		avg_chunk_size_a REAL,
		avg_chunk_size_b REAL,
		similarity_score REAL,
		content_overlap_pct REAL,
		processing_time_a_ms INTEGER,
		processing_time_b_ms INTEGER,
		created_at INTEGER NOT NULL,
		UNIQUE (file_id, method_a, method_b),
		FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS index_uploads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chunk_id TEXT NOT NULL,
		search_document_id TEXT NOT NULL,
		index_name TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		embedding_dim INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (chunk_id) REFERENCES document_chunks(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_chunk ON index_uploads(chunk_id);
	CREATE INDEX IF NOT EXISTS idx_uploads_status ON index_uploads(status);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertFile(file *models.FileRecord) error {
	query := `
		INSERT INTO files (id, filename, extension, content_hash, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		file.ID,
		file.Filename,
		file.Extension,
		file.ContentHash,
		file.SizeBytes,
		file.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}

	logger.Debug("File recorded",
		zap.String("file_id", file.ID),
		zap.String("filename", file.Filename),
	)
	return nil
}

func (c *Client) InsertChunk(chunk *models.ChunkRecord) error {
	keyphrasesJSON, _ := json.Marshal(chunk.Keyphrases)

	query := `
		INSERT INTO document_chunks (id, file_id, chunk_index, method, text, hash,
			start_offset, end_offset, keyphrases, summary, title, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.FileID,
		chunk.ChunkIndex,
		chunk.Method,
		chunk.Text,
		chunk.Hash,
		chunk.StartOffset,
		chunk.EndOffset,
		string(keyphrasesJSON),
		chunk.Summary,
		chunk.Title,
		chunk.ProcessingTimeMs,
		chunk.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

func (c *Client) GetChunksByMethod(fileID, method string) ([]models.ChunkRecord, error) {
	query := `
		SELECT id, file_id, chunk_index, method, text, hash, start_offset, end_offset,
			keyphrases, summary, title, processing_time_ms, created_at
		FROM document_chunks
		WHERE file_id = ? AND method = ?
		ORDER BY chunk_index
	`

	rows, err := c.db.Query(query, fileID, method)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.ChunkRecord
	for rows.Next() {
		var chunk models.ChunkRecord
		var keyphrasesJSON sql.NullString
		var createdAt int64

		err := rows.Scan(
			&chunk.ID,
			&chunk.FileID,
			&chunk.ChunkIndex,
			&chunk.Method,
			&chunk.Text,
			&chunk.Hash,
			&chunk.StartOffset,
			&chunk.EndOffset,
			&keyphrasesJSON,
			&chunk.Summary,
			&chunk.Title,
			&chunk.ProcessingTimeMs,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if keyphrasesJSON.Valid {
			json.Unmarshal([]byte(keyphrasesJSON.String), &chunk.Keyphrases)
		}
		chunk.CreatedAt = time.Unix(createdAt, 0)
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// UpsertComparison replaces any prior comparison row for the same file and
// method pair.
func (c *Client) UpsertComparison(cmp *models.ComparisonRecord) error {
	query := `
		INSERT INTO method_comparisons (file_id, method_a, method_b, total_chunks_a, total_chunks_b,
			avg_chunk_size_a, avg_chunk_size_b, similarity_score, content_overlap_pct,
			processing_time_a_ms, processing_time_b_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, method_a, method_b) DO UPDATE SET
			total_chunks_a = excluded.total_chunks_a,
			total_chunks_b = excluded.total_chunks_b,
			avg_chunk_size_a = excluded.avg_chunk_size_a,
			avg_chunk_size_b = excluded.avg_chunk_size_b,
			similarity_score = excluded.similarity_score,
			content_overlap_pct = excluded.content_overlap_pct,
			processing_time_a_ms = excluded.processing_time_a_ms,
			processing_time_b_ms = excluded.processing_time_b_ms,
			created_at = excluded.created_at
	`

	_, err := c.db.Exec(
		query,
		cmp.FileID,
		cmp.MethodA,
		cmp.MethodB,
		cmp.TotalChunksA,
		cmp.TotalChunksB,
		cmp.AvgChunkSizeA,
		cmp.AvgChunkSizeB,
		cmp.SimilarityScore,
		cmp.ContentOverlapPct,
		cmp.ProcessingTimeAMs,
		cmp.ProcessingTimeBMs,
		cmp.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert comparison: %w", err)
	}

	return nil
}

func (c *Client) GetComparisons(fileID string) ([]models.ComparisonRecord, error) {
	query := `
		SELECT id, file_id, method_a, method_b, total_chunks_a, total_chunks_b,
			avg_chunk_size_a, avg_chunk_size_b, similarity_score, content_overlap_pct,
			processing_time_a_ms, processing_time_b_ms, created_at
		FROM method_comparisons
		WHERE file_id = ?
		ORDER BY id
	`

	rows, err := c.db.Query(query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comparisons: %w", err)
	}
	defer rows.Close()

	var comparisons []models.ComparisonRecord
	for rows.Next() {
		var cmp models.ComparisonRecord
		var createdAt int64

		err := rows.Scan(
			&cmp.ID,
			&cmp.FileID,
			&cmp.MethodA,
			&cmp.MethodB,
			&cmp.TotalChunksA,
			&cmp.TotalChunksB,
			&cmp.AvgChunkSizeA,
			&cmp.AvgChunkSizeB,
			&cmp.SimilarityScore,
			&cmp.ContentOverlapPct,
			&cmp.ProcessingTimeAMs,
			&cmp.ProcessingTimeBMs,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		cmp.CreatedAt = time.Unix(createdAt, 0)
		comparisons = append(comparisons, cmp)
	}

	return comparisons, rows.Err()
}

func (c *Client) InsertIndexUpload(upload *models.IndexUploadRecord) error {
	query := `
		INSERT INTO index_uploads (chunk_id, search_document_id, index_name, status,
			error_message, embedding_dim, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		upload.ChunkID,
		upload.SearchDocumentID,
		upload.IndexName,
		upload.Status,
		upload.ErrorMessage,
		upload.EmbeddingDim,
		upload.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert index upload: %w", err)
	}

	return nil
}
