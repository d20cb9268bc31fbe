package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docindexer/backend/internal/chunking"
	"github.com/docindexer/backend/internal/llm"
	"github.com/docindexer/backend/internal/metrics"
	"github.com/docindexer/backend/pkg/logger"
	"github.com/docindexer/backend/pkg/utils"
)

// CompletionClient and EmbeddingClient are the slices of the AI client the
// enricher uses, satisfied by *llm.Client.
type CompletionClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cache stores enrichment results and embeddings keyed by content hash. Nil
// disables caching. Embeddings are cached separately so a run that fell back
// on another field still reuses the embedding it paid for.
type Cache interface {
	GetEnrichment(ctx context.Context, chunkHash string, out any) (bool, error)
	SetEnrichment(ctx context.Context, chunkHash string, v any, ttl time.Duration) error
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// FallbackReason names the degradation path an enrichment field took, so
// callers and tests can tell a model answer from a synthesized one.
type FallbackReason string

const (
	FallbackNone           FallbackReason = ""
	FallbackQuotedStrings  FallbackReason = "quoted_strings"
	FallbackStaticKeywords FallbackReason = "static_keywords"
	FallbackLeadingText    FallbackReason = "leading_text"
	FallbackOrdinalTitle   FallbackReason = "ordinal_title"
	FallbackZeroVector     FallbackReason = "zero_vector"
)

// Fallbacks records, per field, which fallback fired (empty means the model
// answered).
type Fallbacks struct {
	Keyphrases FallbackReason
	Summary    FallbackReason
	Title      FallbackReason
	Embedding  FallbackReason
}

func (f Fallbacks) Any() bool {
	return f != Fallbacks{}
}

// EnrichedChunk is a chunk plus its AI metadata.
type EnrichedChunk struct {
	chunking.Chunk
	Keyphrases []string
	Summary    string
	Title      string
	Embedding  []float32
	FromCache  bool
	Fallbacks  Fallbacks
}

type cachedEnrichment struct {
	Keyphrases []string  `json:"keyphrases"`
	Summary    string    `json:"summary"`
	Title      string    `json:"title"`
	Embedding  []float32 `json:"embedding"`
}

type Enricher struct {
	completions  CompletionClient
	embeddings   EmbeddingClient
	cache        Cache
	embeddingDim int
	documentType string
	cacheTTL     time.Duration
}

func New(completions CompletionClient, embeddings EmbeddingClient, cache Cache, embeddingDim int, documentType string, cacheTTL time.Duration) *Enricher {
	if embeddingDim <= 0 {
		embeddingDim = 1536
	}
	if documentType == "" {
		documentType = "legal"
	}
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Enricher{
		completions:  completions,
		embeddings:   embeddings,
		cache:        cache,
		embeddingDim: embeddingDim,
		documentType: documentType,
		cacheTTL:     cacheTTL,
	}
}

// Enrich produces keyphrases, summary, title and embedding for one chunk.
// It never fails: every field has a terminal fallback. Ordinal is the 1-based
// chunk number used by the title fallback.
func (e *Enricher) Enrich(ctx context.Context, chunk chunking.Chunk, ordinal int) EnrichedChunk {
	result := EnrichedChunk{Chunk: chunk}
	hash := chunk.Hash()

	if e.cache != nil {
		var cached cachedEnrichment
		hit, err := e.cache.GetEnrichment(ctx, hash, &cached)
		if err != nil {
			logger.Warn("Enrichment cache lookup failed", zap.Error(err))
		} else if hit && len(cached.Embedding) == e.embeddingDim {
			metrics.CacheHits.WithLabelValues("enrichment").Inc()
			result.Keyphrases = cached.Keyphrases
			result.Summary = cached.Summary
			result.Title = cached.Title
			result.Embedding = cached.Embedding
			result.FromCache = true
			return result
		}
		metrics.CacheMisses.WithLabelValues("enrichment").Inc()
	}

	result.Keyphrases, result.Fallbacks.Keyphrases = e.Keyphrases(ctx, chunk.Text)
	result.Summary, result.Fallbacks.Summary = e.Summarize(ctx, chunk.Text)
	result.Title, result.Fallbacks.Title = e.Title(ctx, chunk.Text, ordinal)
	result.Embedding, result.Fallbacks.Embedding = e.Embedding(ctx, chunk.Text)

	// Only fully model-produced results are cached; caching a fallback would
	// pin the degraded answer past the outage that caused it.
	if e.cache != nil && !result.Fallbacks.Any() {
		err := e.cache.SetEnrichment(ctx, hash, cachedEnrichment{
			Keyphrases: result.Keyphrases,
			Summary:    result.Summary,
			Title:      result.Title,
			Embedding:  result.Embedding,
		}, e.cacheTTL)
		if err != nil {
			logger.Warn("Enrichment cache store failed", zap.Error(err))
		}
	}

	return result
}

// Summarize returns a 1-2 sentence summary, falling back to the chunk's
// leading text.
func (e *Enricher) Summarize(ctx context.Context, text string) (string, FallbackReason) {
	prompt := "Create a concise 1-2 sentence summary of this legal text: " + clipRunes(text, 500) + "..."

	raw, err := e.completions.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  prompt,
		Temperature: 0.1,
		MaxTokens:   100,
		Timeout:     20 * time.Second,
	})
	if err != nil {
		logger.Warn("Summary generation failed", zap.Error(err))
		return summaryFallback(text), FallbackLeadingText
	}
	summary := strings.TrimSpace(raw)
	if summary == "" {
		return summaryFallback(text), FallbackLeadingText
	}
	return summary, FallbackNone
}

// summaryFallback takes the first sentence when there is more than one,
// otherwise the first 100 characters.
func summaryFallback(text string) string {
	sentences := strings.SplitN(text, ". ", 2)
	if len(sentences) > 1 {
		return sentences[0] + "."
	}
	return clipRunes(text, 100) + "..."
}

// Title returns a short descriptive title, falling back to "Section {n}".
func (e *Enricher) Title(ctx context.Context, text string, ordinal int) (string, FallbackReason) {
	prompt := "Create a short descriptive title (3-6 words) for this legal text: " + clipRunes(text, 200) + "..."

	raw, err := e.completions.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  prompt,
		Temperature: 0.1,
		MaxTokens:   20,
		Timeout:     20 * time.Second,
	})
	if err != nil {
		logger.Warn("Title generation failed", zap.Error(err))
		return ordinalTitle(ordinal), FallbackOrdinalTitle
	}
	title := strings.Trim(strings.TrimSpace(raw), `"`)
	if title == "" {
		return ordinalTitle(ordinal), FallbackOrdinalTitle
	}
	return title, FallbackNone
}

func ordinalTitle(ordinal int) string {
	return fmt.Sprintf("Section %d", ordinal)
}

// Embedding returns the chunk's embedding, or a zero vector of the configured
// dimensionality when the embedding service is unavailable. Computed
// embeddings are cached by text hash; zero vectors are not.
func (e *Enricher) Embedding(ctx context.Context, text string) ([]float32, FallbackReason) {
	hash := utils.ContentHash(text)

	if e.cache != nil {
		cached, hit, err := e.cache.GetEmbedding(ctx, hash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		} else if hit && len(cached) == e.embeddingDim {
			return cached, FallbackNone
		}
	}

	emb, err := e.embeddings.Embed(ctx, text)
	if err != nil || len(emb) == 0 {
		if err != nil {
			logger.Warn("Embedding generation failed, using zero vector", zap.Error(err))
		}
		return zeroVector(e.embeddingDim), FallbackZeroVector
	}

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, hash, emb, e.cacheTTL); err != nil {
			logger.Warn("Embedding cache store failed", zap.Error(err))
		}
	}
	return emb, FallbackNone
}

func zeroVector(dim int) []float32 {
	return make([]float32, dim)
}

func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
