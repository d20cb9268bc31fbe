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
	"github.com/docindexer/backend/internal/metrics"
	"github.com/docindexer/backend/internal/storage/models"
	"github.com/docindexer/backend/pkg/logger"
	"github.com/docindexer/backend/pkg/utils"
)

// comparisonMethods is the fixed roster the driver runs, in report order.
var comparisonMethods = []chunking.Method{
	chunking.MethodFixedSize,
	chunking.MethodIntelligent,
	chunking.MethodHeading,
	chunking.MethodParagraph,
}

// MethodStats summarizes one method's run in a comparison report.
type MethodStats struct {
	ChunksCreated    int
	AvgChunkSize     float64
	TotalCharacters  int
	ProcessingTimeMs int64
}

// ComparisonReport is the outcome of running every method over one document.
type ComparisonReport struct {
	Status            string
	Message           string
	FileID            string
	Filename          string
	DocumentLength    int
	Methods           map[string]MethodStats
	Comparisons       []chunking.ComparisonResult
	RecommendedMethod string
}

// CompareMethods chunks one document with every method, persists each
// method's chunks, stores all pairwise comparisons and recommends a method.
func (p *Processor) CompareMethods(ctx context.Context, path, filename string, maxChunkSize int) (*ComparisonReport, error) {
	if filename == "" {
		filename = filepath.Base(path)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	text, err := p.extractor.Extract(path, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no content extracted from %s", filename)
	}

	fileRecord := &models.FileRecord{
		ID:          uuid.NewString(),
		Filename:    filename,
		Extension:   ext,
		ContentHash: utils.ContentHash(text),
		SizeBytes:   int64(len(text)),
		CreatedAt:   time.Now(),
	}
	if err := p.store.InsertFile(fileRecord); err != nil {
		logger.Warn("Failed to record file", zap.Error(err))
	}

	report := &ComparisonReport{
		FileID:         fileRecord.ID,
		Filename:       filename,
		DocumentLength: len(text),
		Methods:        make(map[string]MethodStats),
	}

	// Run every method and persist its chunks.
	byMethod := make(map[chunking.Method]chunking.MethodChunks)
	for _, method := range comparisonMethods {
		start := time.Now()
		chunks := p.splitter.Split(ctx, text, method, maxChunkSize)
		elapsed := time.Since(start)

		metrics.ChunkingDuration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
		metrics.ChunksCreated.WithLabelValues(string(method)).Add(float64(len(chunks)))

		texts := chunking.Texts(chunks)
		hashes := make([]string, len(chunks))
		totalChars := 0
		for i, c := range chunks {
			hashes[i] = c.Hash()
			totalChars += c.Size()
		}

		byMethod[method] = chunking.MethodChunks{
			Method:           string(method),
			Texts:            texts,
			Hashes:           hashes,
			ProcessingTimeMs: elapsed.Milliseconds(),
		}

		avg := 0.0
		if len(chunks) > 0 {
			avg = float64(totalChars) / float64(len(chunks))
		}
		report.Methods[string(method)] = MethodStats{
			ChunksCreated:    len(chunks),
			AvgChunkSize:     avg,
			TotalCharacters:  totalChars,
			ProcessingTimeMs: elapsed.Milliseconds(),
		}

		for i, c := range chunks {
			record := &models.ChunkRecord{
				ID:               uuid.NewString(),
				FileID:           fileRecord.ID,
				ChunkIndex:       c.Index,
				Method:           string(method),
				Text:             c.Text,
				Hash:             hashes[i],
				StartOffset:      c.StartOffset,
				EndOffset:        c.EndOffset,
				Title:            fmt.Sprintf("Section %d", i+1),
				ProcessingTimeMs: elapsed.Milliseconds(),
				CreatedAt:        time.Now(),
			}
			if err := p.store.InsertChunk(record); err != nil {
				logger.Warn("Failed to record comparison chunk",
					zap.String("method", string(method)),
					zap.Int("chunk", i+1),
					zap.Error(err),
				)
			}
		}

		logger.Info("Comparison method complete",
			zap.String("method", string(method)),
			zap.Int("chunks", len(chunks)),
			zap.Int64("elapsed_ms", elapsed.Milliseconds()),
		)
	}

	// All pairwise comparisons, replacing prior rows for this file.
	for i := 0; i < len(comparisonMethods); i++ {
		for j := i + 1; j < len(comparisonMethods); j++ {
			a := byMethod[comparisonMethods[i]]
			b := byMethod[comparisonMethods[j]]

			result, err := chunking.Compare(a, b)
			if err != nil {
				logger.Warn("Skipping comparison",
					zap.String("method_a", a.Method),
					zap.String("method_b", b.Method),
					zap.Error(err),
				)
				continue
			}
			report.Comparisons = append(report.Comparisons, result)

			record := &models.ComparisonRecord{
				FileID:            fileRecord.ID,
				MethodA:           result.MethodA,
				MethodB:           result.MethodB,
				TotalChunksA:      result.TotalChunksA,
				TotalChunksB:      result.TotalChunksB,
				AvgChunkSizeA:     result.AvgChunkSizeA,
				AvgChunkSizeB:     result.AvgChunkSizeB,
				SimilarityScore:   result.SimilarityScore,
				ContentOverlapPct: result.ContentOverlapPct,
				ProcessingTimeAMs: result.ProcessingTimeAMs,
				ProcessingTimeBMs: result.ProcessingTimeBMs,
				CreatedAt:         time.Now(),
			}
			if err := p.store.UpsertComparison(record); err != nil {
				logger.Warn("Failed to store comparison", zap.Error(err))
			}
		}
	}

	recommended, err := chunking.Recommend(report.Comparisons)
	if err != nil {
		report.Status = "warning"
		report.Message = fmt.Sprintf("No usable comparisons for %s", filename)
		return report, nil
	}
	report.RecommendedMethod = recommended
	report.Status = "success"
	report.Message = fmt.Sprintf("Compared %d methods on %s, recommended: %s",
		len(comparisonMethods), filename, recommended)

	logger.Info("Method comparison complete",
		zap.String("filename", filename),
		zap.String("recommended", recommended),
		zap.Int("comparisons", len(report.Comparisons)),
	)

	return report, nil
}
