package chunking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docindexer/backend/internal/llm"
	"github.com/docindexer/backend/pkg/logger"
)

// Completer is the completion surface the semantic chunker needs, satisfied
// by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// PlanSource records whether boundaries came from the model or were
// synthesized after an unusable response.
type PlanSource string

const (
	PlanParsed    PlanSource = "parsed"
	PlanSynthetic PlanSource = "synthetic"
)

// BoundaryPlan is the phase-1 analysis result: character positions where the
// document divides into topics.
type BoundaryPlan struct {
	Strategy    string   `json:"strategy"`
	Boundaries  []int    `json:"boundaries"`
	ChunkThemes []string `json:"chunk_themes"`
}

// SemanticChunker asks the model for topic boundaries, slices the document at
// them, then refines each slice's edges with a second, smaller call. It never
// returns an error: any terminal failure falls back to sentence chunking.
type SemanticChunker struct {
	ai Completer
}

func NewSemanticChunker(ai Completer) *SemanticChunker {
	return &SemanticChunker{ai: ai}
}

func (s *SemanticChunker) Chunk(ctx context.Context, documentText, documentType string, maxChunkSize int) []string {
	if strings.TrimSpace(documentText) == "" {
		return nil
	}

	chunks, err := s.chunkWithBoundaries(ctx, documentText, documentType, maxChunkSize)
	if err != nil {
		logger.Warn("Intelligent chunking failed, falling back to sentence chunking",
			zap.Error(err),
		)
		return SentenceBoundary(documentText, maxChunkSize)
	}
	return chunks
}

func (s *SemanticChunker) chunkWithBoundaries(ctx context.Context, documentText, documentType string, maxChunkSize int) ([]string, error) {
	runes := []rune(documentText)

	raw, err := s.ai.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  analysisPrompt(documentText, documentType, maxChunkSize),
		Temperature: 0.1,
		MaxTokens:   800,
		Timeout:     45 * time.Second,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("document analysis: %w", err)
	}

	plan, source := parseBoundaryPlan(raw, len(runes), maxChunkSize)
	logger.Info("AI chunking strategy",
		zap.String("strategy", plan.Strategy),
		zap.String("plan_source", string(source)),
		zap.Int("boundaries", len(plan.Boundaries)),
	)

	var chunks []string
	for i := 0; i < len(plan.Boundaries)-1; i++ {
		start := clampInt(plan.Boundaries[i], 0, len(runes))
		end := clampInt(plan.Boundaries[i+1], 0, len(runes))
		if end <= start {
			continue
		}

		rawChunk := strings.TrimSpace(string(runes[start:end]))
		if rawChunk == "" {
			continue
		}
		chunks = append(chunks, s.refineBoundaries(ctx, rawChunk))
	}

	var final []string
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if len([]rune(c)) > 50 {
			final = append(final, c)
		}
	}

	logger.Info("AI intelligent chunking complete", zap.Int("chunks", len(final)))
	return final, nil
}

// parseBoundaryPlan never fails: an unusable response yields synthetic
// boundaries at maxChunkSize intervals.
func parseBoundaryPlan(raw string, docLen, maxChunkSize int) (BoundaryPlan, PlanSource) {
	var plan BoundaryPlan
	source := PlanParsed

	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &plan); err != nil {
		logger.Warn("Failed to parse boundary plan", zap.Error(err))
		plan = BoundaryPlan{Strategy: "fallback due to JSON parse error"}
	}

	if len(plan.Boundaries) < 2 {
		plan.Boundaries = plan.Boundaries[:0]
		for pos := 0; pos < docLen; pos += maxChunkSize {
			plan.Boundaries = append(plan.Boundaries, pos)
		}
		plan.Boundaries = append(plan.Boundaries, docLen)
		source = PlanSynthetic
	}

	return plan, source
}

type boundaryAdjustment struct {
	SuggestedStartOffset *int   `json:"suggested_start_offset"`
	SuggestedEndOffset   *int   `json:"suggested_end_offset"`
	Reasoning            string `json:"reasoning"`
}

// refineBoundaries asks the model to nudge a chunk's edges to sentence
// boundaries. Every failure path keeps the raw chunk.
func (s *SemanticChunker) refineBoundaries(ctx context.Context, rawChunk string) string {
	raw, err := s.ai.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  adjustmentPrompt(rawChunk),
		Temperature: 0.1,
		MaxTokens:   300,
		Timeout:     20 * time.Second,
		JSONMode:    true,
	})
	if err != nil {
		logger.Warn("Boundary adjustment failed, using original chunk", zap.Error(err))
		return rawChunk
	}

	runes := []rune(rawChunk)
	start, end := 0, len(runes)

	var adj boundaryAdjustment
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &adj); err == nil {
		if adj.SuggestedStartOffset != nil {
			start = clampInt(*adj.SuggestedStartOffset, 0, len(runes))
		}
		if adj.SuggestedEndOffset != nil {
			end = clampInt(*adj.SuggestedEndOffset, 0, len(runes))
		}
	}

	adjusted := rawChunk
	if end > start {
		adjusted = strings.TrimSpace(string(runes[start:end]))
	}
	if len([]rune(adjusted)) > 50 {
		return adjusted
	}
	return rawChunk
}

func analysisPrompt(documentText, documentType string, maxChunkSize int) string {
	preview := documentText
	suffix := ""
	if runes := []rune(documentText); len(runes) > 3000 {
		preview = string(runes[:3000])
		suffix = "..."
	}

	return fmt.Sprintf(`You are an expert document analyst. Analyze this %s document and determine the optimal way to break it into semantic chunks while preserving ALL original content.

CRITICAL REQUIREMENTS:
- Find natural topic boundaries without modifying any text
- Preserve ALL original content, formatting, and structure
- Focus on logical flow and semantic coherence
- Consider maximum chunk size of approximately %d characters

Consider these structural elements:
- Natural topic boundaries and transitions
- Legal sections, clauses, or provisions
- Paragraph breaks and logical divisions
- Related concepts that should stay together

Document to analyze (length: %d characters):
%s%s

Return a JSON object with boundary suggestions (character positions) that will preserve content integrity:
{
    "strategy": "Brief description of boundary-finding approach",
    "boundaries": [0, 500, 1200, 2000],
    "chunk_themes": ["Topic/theme for each chunk section"]
}

IMPORTANT: Boundaries should split at natural content divisions, not modify the actual text content.`,
		documentType, maxChunkSize, len([]rune(documentText)), preview, suffix)
}

func adjustmentPrompt(rawChunk string) string {
	runes := []rune(rawChunk)
	first := rawChunk
	if len(runes) > 100 {
		first = string(runes[:100])
	}
	last := rawChunk
	if len(runes) > 100 {
		last = string(runes[len(runes)-100:])
	}

	return fmt.Sprintf(`You are a document processing expert. Given this text chunk, find the best natural boundary points to start and end the chunk WITHOUT changing any content.

CRITICAL RULES:
1. DO NOT modify, clean up, or rewrite any text
2. DO NOT remove any content
3. DO NOT add any content
4. ONLY suggest where to start and end the chunk at natural sentence boundaries
5. Preserve ALL original formatting, spacing, and punctuation exactly

Text chunk (length %d):
%s

Analyze the first and last 100 characters to suggest optimal start/end positions:
- First 100 chars: "%s"
- Last 100 chars: "%s"

Return a JSON object with:
{
    "suggested_start_offset": 0,
    "suggested_end_offset": %d,
    "reasoning": "Brief explanation of boundary choices"
}

If the current boundaries are already optimal, return the same start (0) and end (%d) positions.`,
		len(runes), rawChunk, first, last, len(runes), len(runes))
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
