package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docindexer/backend/internal/chunking"
	"github.com/docindexer/backend/internal/enrich"
	"github.com/docindexer/backend/internal/index"
	"github.com/docindexer/backend/internal/metrics"
	"github.com/docindexer/backend/internal/policy"
	"github.com/docindexer/backend/internal/storage/models"
	"github.com/docindexer/backend/pkg/logger"
	"github.com/docindexer/backend/pkg/utils"
)

// Collaborator contracts, satisfied by internal/extract, internal/enrich,
// internal/index and internal/storage/sqlite.
type Extractor interface {
	Extract(path, ext string) (string, error)
}

type Enricher interface {
	Enrich(ctx context.Context, chunk chunking.Chunk, ordinal int) enrich.EnrichedChunk
}

type Publisher interface {
	Upload(ctx context.Context, docs []index.Document) []index.UploadResult
	Delete(ctx context.Context, ids []string) []index.UploadResult
	ChunkIDs(ctx context.Context, filename, contentHash string) ([]string, error)
}

type AuditStore interface {
	InsertFile(file *models.FileRecord) error
	InsertChunk(chunk *models.ChunkRecord) error
	GetChunksByMethod(fileID, method string) ([]models.ChunkRecord, error)
	UpsertComparison(cmp *models.ComparisonRecord) error
	InsertIndexUpload(upload *models.IndexUploadRecord) error
}

type PolicyAnalyzer interface {
	Process(ctx context.Context, policyText, filename, policyID string, groups []string) *policy.Result
}

type Processor struct {
	extractor Extractor
	enricher  Enricher
	publisher Publisher
	store     AuditStore
	splitter  *chunking.Splitter
	policy    PolicyAnalyzer
	indexName string
}

func NewProcessor(extractor Extractor, enricher Enricher, publisher Publisher, store AuditStore, splitter *chunking.Splitter, policy PolicyAnalyzer, indexName string) *Processor {
	return &Processor{
		extractor: extractor,
		enricher:  enricher,
		publisher: publisher,
		store:     store,
		splitter:  splitter,
		policy:    policy,
		indexName: indexName,
	}
}

// Request describes one document processing run.
type Request struct {
	Path         string
	Filename     string
	Method       string
	MaxChunkSize int
	ForceReindex bool
}

// ChunkDetail is the per-chunk portion of a Result.
type ChunkDetail struct {
	ChunkID    string
	Title      string
	Size       int
	Keyphrases []string
	Status     string
	Error      string
}

// Result is the orchestrator's report for one document.
type Result struct {
	Status            string
	Message           string
	Filename          string
	Method            string
	ContentHash       string
	ChunksCreated     int
	SuccessfulUploads int
	FailedUploads     int
	DeletedChunks     int
	ForceReindex      bool
	Preservation      *chunking.PreservationReport
	Chunks            []ChunkDetail
}

func errorResult(filename, message string) *Result {
	metrics.DocumentsProcessed.WithLabelValues("error").Inc()
	return &Result{
		Status:   "error",
		Message:  message,
		Filename: filename,
	}
}

// ProcessDocument runs the full pipeline for one file: extract, chunk,
// validate, enrich, dedupe, publish, report.
func (p *Processor) ProcessDocument(ctx context.Context, req Request) *Result {
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.Path)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	logger.Info("Processing document",
		zap.String("filename", filename),
		zap.String("extension", ext),
		zap.Bool("force_reindex", req.ForceReindex),
	)

	// Extract.
	text, err := p.extractor.Extract(req.Path, ext)
	if err != nil {
		logger.Error("Extraction failed", zap.String("filename", filename), zap.Error(err))
		return errorResult(filename, fmt.Sprintf("Failed to extract content from %s: %v", filename, err))
	}
	if strings.TrimSpace(text) == "" {
		return errorResult(filename, fmt.Sprintf("No content extracted from %s", filename))
	}

	contentHash := utils.ContentHash(text)
	method := p.splitter.Resolve(req.Method)

	// Chunk.
	chunkStart := time.Now()
	chunks := p.splitter.Split(ctx, text, method, req.MaxChunkSize)
	chunkElapsed := time.Since(chunkStart)

	metrics.ChunkingDuration.WithLabelValues(string(method)).Observe(chunkElapsed.Seconds())
	metrics.ChunksCreated.WithLabelValues(string(method)).Add(float64(len(chunks)))

	if len(chunks) == 0 {
		metrics.DocumentsProcessed.WithLabelValues("warning").Inc()
		return &Result{
			Status:      "warning",
			Message:     fmt.Sprintf("No chunks produced from %s with %s chunking", filename, method),
			Filename:    filename,
			Method:      string(method),
			ContentHash: contentHash,
		}
	}

	logger.Info("Document chunked",
		zap.String("filename", filename),
		zap.String("method", string(method)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", chunkElapsed),
	)

	// Validate coverage. Advisory only.
	report := chunking.ValidatePreservation(text, chunking.Texts(chunks), string(method))
	metrics.PreservationRatio.WithLabelValues(string(method)).Observe(report.CharRatio)

	// Audit the file.
	fileRecord := &models.FileRecord{
		ID:          uuid.NewString(),
		Filename:    filename,
		Extension:   ext,
		ContentHash: contentHash,
		SizeBytes:   int64(len(text)),
		CreatedAt:   time.Now(),
	}
	if err := p.store.InsertFile(fileRecord); err != nil {
		logger.Warn("Failed to record file", zap.Error(err))
	}

	// Enrich sequentially.
	enriched := make([]enrich.EnrichedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		logger.Info("Enriching chunk",
			zap.Int("chunk", i+1),
			zap.Int("total", len(chunks)),
		)
		ec := p.enricher.Enrich(ctx, chunk, i+1)
		enriched = append(enriched, ec)
		recordFallbacks(ec.Fallbacks)

		record := &models.ChunkRecord{
			ID:               uuid.NewString(),
			FileID:           fileRecord.ID,
			ChunkIndex:       chunk.Index,
			Method:           string(method),
			Text:             chunk.Text,
			Hash:             chunk.Hash(),
			StartOffset:      chunk.StartOffset,
			EndOffset:        chunk.EndOffset,
			Keyphrases:       ec.Keyphrases,
			Summary:          ec.Summary,
			Title:            ec.Title,
			ProcessingTimeMs: chunkElapsed.Milliseconds(),
			CreatedAt:        time.Now(),
		}
		if err := p.store.InsertChunk(record); err != nil {
			logger.Warn("Failed to record chunk", zap.Int("chunk", i+1), zap.Error(err))
		}
	}

	// Dedupe. Replacement only removes chunks of the same filename AND the
	// same content version, and the deletion completes before publishing.
	existedBefore := false
	deleted := 0
	if req.ForceReindex {
		matchIDs, err := p.publisher.ChunkIDs(ctx, filename, contentHash)
		if err != nil {
			logger.Warn("Failed to look up existing chunks", zap.Error(err))
		} else if len(matchIDs) > 0 {
			for _, r := range p.publisher.Delete(ctx, matchIDs) {
				if r.Succeeded {
					deleted++
				}
			}
			logger.Info("Deleted existing chunks for reindex",
				zap.String("filename", filename),
				zap.String("content_hash", contentHash),
				zap.Int("deleted", deleted),
			)
		}
	} else {
		existingIDs, err := p.publisher.ChunkIDs(ctx, filename, "")
		if err != nil {
			logger.Warn("Failed to check for existing documents", zap.Error(err))
		}
		existedBefore = len(existingIDs) > 0
	}

	// Publish.
	docs := make([]index.Document, 0, len(enriched))
	for i, ec := range enriched {
		docs = append(docs, index.Document{
			ID:          utils.ChunkID(filename, contentHash, i+1),
			Title:       ec.Title,
			Text:        ec.Text,
			Summary:     ec.Summary,
			Keyphrases:  ec.Keyphrases,
			Filename:    filename,
			ChunkIndex:  int64(i + 1),
			Method:      string(method),
			ContentHash: contentHash,
			Embedding:   ec.Embedding,
			Timestamp:   time.Now(),
		})
	}

	results := p.publisher.Upload(ctx, docs)

	result := &Result{
		Status:        "success",
		Filename:      filename,
		Method:        string(method),
		ContentHash:   contentHash,
		ChunksCreated: len(chunks),
		DeletedChunks: deleted,
		ForceReindex:  req.ForceReindex,
		Preservation:  &report,
	}

	for i, r := range results {
		detail := ChunkDetail{
			ChunkID:    r.ID,
			Title:      enriched[i].Title,
			Size:       enriched[i].Size(),
			Keyphrases: enriched[i].Keyphrases,
		}
		uploadStatus := "success"
		if r.Succeeded {
			result.SuccessfulUploads++
			detail.Status = "uploaded"
		} else {
			result.FailedUploads++
			detail.Status = "failed"
			uploadStatus = "error"
			if r.Err != nil {
				detail.Error = r.Err.Error()
			}
		}
		metrics.IndexUploads.WithLabelValues(uploadStatus).Inc()
		result.Chunks = append(result.Chunks, detail)

		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		upload := &models.IndexUploadRecord{
			ChunkID:          r.ID,
			SearchDocumentID: r.ID,
			IndexName:        p.indexName,
			Status:           detail.Status,
			ErrorMessage:     errMsg,
			EmbeddingDim:     len(enriched[i].Embedding),
			CreatedAt:        time.Now(),
		}
		if err := p.store.InsertIndexUpload(upload); err != nil {
			logger.Warn("Failed to record index upload", zap.Error(err))
		}
	}

	switch {
	case req.ForceReindex:
		result.Message = fmt.Sprintf("Successfully processed %s with %s chunking (replaced existing documents)", filename, method)
	case existedBefore:
		result.Message = fmt.Sprintf("Successfully processed %s with %s chunking (added alongside existing documents)", filename, method)
	default:
		result.Message = fmt.Sprintf("Successfully processed %s with %s chunking (new document)", filename, method)
	}

	if result.SuccessfulUploads == 0 && result.FailedUploads > 0 {
		result.Status = "error"
		result.Message = fmt.Sprintf("All %d chunk uploads failed for %s", result.FailedUploads, filename)
	}

	metrics.DocumentsProcessed.WithLabelValues(result.Status).Inc()

	logger.Info("Document processed",
		zap.String("filename", filename),
		zap.String("status", result.Status),
		zap.Int("uploaded", result.SuccessfulUploads),
		zap.Int("failed", result.FailedUploads),
	)

	return result
}

func recordFallbacks(f enrich.Fallbacks) {
	record := func(field string, reason enrich.FallbackReason) {
		if reason != enrich.FallbackNone {
			metrics.AIFallbacks.WithLabelValues(field, string(reason)).Inc()
		}
	}
	record("keyphrases", f.Keyphrases)
	record("summary", f.Summary)
	record("title", f.Title)
	record("embedding", f.Embedding)
}
