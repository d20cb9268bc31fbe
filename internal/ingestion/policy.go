package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docindexer/backend/internal/chunking"
	"github.com/docindexer/backend/internal/index"
	"github.com/docindexer/backend/internal/metrics"
	"github.com/docindexer/backend/internal/policy"
	"github.com/docindexer/backend/internal/storage/models"
	"github.com/docindexer/backend/pkg/logger"
	"github.com/docindexer/backend/pkg/utils"
)

// PolicyRequest describes one policy document run.
type PolicyRequest struct {
	Path     string
	Filename string
	PolicyID string
	Groups   []string
}

// ProcessPolicyDocument extracts a policy document, analyzes its clauses and
// publishes the clause records to the search index.
func (p *Processor) ProcessPolicyDocument(ctx context.Context, req PolicyRequest) *Result {
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.Path)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	if p.policy == nil {
		return errorResult(filename, "Policy processing is not configured")
	}

	logger.Info("Processing policy document", zap.String("filename", filename))

	text, err := p.extractor.Extract(req.Path, ext)
	if err != nil {
		logger.Error("Extraction failed", zap.String("filename", filename), zap.Error(err))
		return errorResult(filename, fmt.Sprintf("Failed to extract content from %s: %v", filename, err))
	}
	if strings.TrimSpace(text) == "" {
		return errorResult(filename, fmt.Sprintf("No content extracted from %s", filename))
	}

	contentHash := utils.ContentHash(text)

	policyResult := p.policy.Process(ctx, text, filename, req.PolicyID, req.Groups)
	if len(policyResult.Records) == 0 {
		metrics.DocumentsProcessed.WithLabelValues(policyResult.Status).Inc()
		return &Result{
			Status:      policyResult.Status,
			Message:     policyResult.Message,
			Filename:    filename,
			Method:      string(chunking.MethodPolicyClause),
			ContentHash: contentHash,
		}
	}

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

	docs := make([]index.Document, 0, len(policyResult.Records))
	for i, rec := range policyResult.Records {
		metrics.PolicyClausesProcessed.WithLabelValues(strconv.Itoa(rec.Clause.Severity)).Inc()

		record := &models.ChunkRecord{
			ID:         rec.ID,
			FileID:     fileRecord.ID,
			ChunkIndex: i + 1,
			Method:     string(chunking.MethodPolicyClause),
			Text:       rec.OriginalText,
			Hash:       utils.ContentHash(rec.OriginalText),
			Keyphrases: rec.Clause.Tags,
			Summary:    rec.Clause.Summary,
			Title:      rec.Clause.Title,
			CreatedAt:  time.Now(),
		}
		if err := p.store.InsertChunk(record); err != nil {
			logger.Warn("Failed to record policy clause", zap.Int("clause", i+1), zap.Error(err))
		}

		docs = append(docs, index.Document{
			ID:          utils.ChunkID(policyResult.PolicyID, contentHash, i+1),
			Title:       rec.Clause.Title,
			Text:        rec.Clause.Instruction,
			Summary:     rec.Clause.Summary,
			Keyphrases:  rec.Clause.Tags,
			Filename:    filename,
			ChunkIndex:  int64(i + 1),
			Method:      string(chunking.MethodPolicyClause),
			ContentHash: contentHash,
			Severity:    int64(rec.Clause.Severity),
			Embedding:   rec.Embedding,
			Timestamp:   time.Now(),
		})
	}

	results := p.publisher.Upload(ctx, docs)

	result := &Result{
		Status:        "success",
		Filename:      filename,
		Method:        string(chunking.MethodPolicyClause),
		ContentHash:   contentHash,
		ChunksCreated: len(policyResult.Records),
	}

	for i, r := range results {
		detail := ChunkDetail{
			ChunkID:    r.ID,
			Title:      policyResult.Records[i].Clause.Title,
			Size:       len([]rune(policyResult.Records[i].OriginalText)),
			Keyphrases: policyResult.Records[i].Clause.Tags,
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
			ChunkID:          policyResult.Records[i].ID,
			SearchDocumentID: r.ID,
			IndexName:        p.indexName,
			Status:           detail.Status,
			ErrorMessage:     errMsg,
			EmbeddingDim:     len(policyResult.Records[i].Embedding),
			CreatedAt:        time.Now(),
		}
		if err := p.store.InsertIndexUpload(upload); err != nil {
			logger.Warn("Failed to record index upload", zap.Error(err))
		}
	}

	result.Message = fmt.Sprintf("%s (policy %s, %d/%d clauses indexed)",
		policyResult.Message, policyResult.PolicyID, result.SuccessfulUploads, len(docs))
	if policyResult.Status == "warning" {
		result.Status = "warning"
	}
	if result.SuccessfulUploads == 0 && result.FailedUploads > 0 {
		result.Status = "error"
		result.Message = fmt.Sprintf("All %d clause uploads failed for %s", result.FailedUploads, filename)
	}

	metrics.DocumentsProcessed.WithLabelValues(result.Status).Inc()

	logger.Info("Policy document processed",
		zap.String("filename", filename),
		zap.String("policy_id", policyResult.PolicyID),
		zap.String("status", result.Status),
		zap.Int("uploaded", result.SuccessfulUploads),
	)

	return result
}

var _ PolicyAnalyzer = (*policy.Processor)(nil)
