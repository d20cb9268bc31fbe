package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docindexer/backend/internal/llm"
	"github.com/docindexer/backend/pkg/logger"
)

// CompletionClient and EmbeddingClient are the AI surfaces the processor
// needs, satisfied by *llm.Client.
type CompletionClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Clause is the structured reading of one policy segment. Severity 1 is
// critical/mandatory, 2 is important/recommended.
type Clause struct {
	Title       string   `json:"title"`
	Instruction string   `json:"instruction"`
	Summary     string   `json:"summary"`
	Tags        []string `json:"tags"`
	Severity    int      `json:"severity"`
}

// Record is a clause prepared for the search index.
type Record struct {
	ID           string
	PolicyID     string
	Filename     string
	Clause       Clause
	Embedding    []float32
	Groups       []string
	Language     string
	OriginalText string
	Locked       bool
}

// Result reports a whole-document policy run.
type Result struct {
	Status           string
	Message          string
	PolicyID         string
	Filename         string
	TotalClauses     int
	ClausesProcessed int
	Records          []Record
}

type Processor struct {
	ai            CompletionClient
	embeddings    EmbeddingClient
	embeddingDim  int
	defaultGroups []string
}

func NewProcessor(ai CompletionClient, embeddings EmbeddingClient, embeddingDim int, defaultGroups []string) *Processor {
	if embeddingDim <= 0 {
		embeddingDim = 1536
	}
	if len(defaultGroups) == 0 {
		defaultGroups = []string{"legal-team", "compliance"}
	}
	return &Processor{
		ai:            ai,
		embeddings:    embeddings,
		embeddingDim:  embeddingDim,
		defaultGroups: defaultGroups,
	}
}

var (
	headingColonPattern = regexp.MustCompile(`^[A-Z][A-Za-z\s\-]*:$`)
	capitalLinePattern  = regexp.MustCompile(`^[A-Z][A-Za-z\s\-]*$`)
	numberedPattern     = regexp.MustCompile(`^\d+\.`)
	definitionPattern   = regexp.MustCompile(`^[A-Z][a-zA-Z\s\-]+:\s+`)
	numberedItemPattern = regexp.MustCompile(`^\d+\.\s+`)
)

func startsNewClause(line string) bool {
	return headingColonPattern.MatchString(line) ||
		capitalLinePattern.MatchString(line) ||
		numberedPattern.MatchString(line) ||
		definitionPattern.MatchString(line) ||
		numberedItemPattern.MatchString(line)
}

// Segment splits a policy document into clause-sized pieces. Segments under
// 30 characters are discarded; when line structure yields nothing it falls
// back to paragraphs, then to the whole document.
func Segment(policyText string) []string {
	var segments []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(current, " "))
		if len(text) >= 30 {
			segments = append(segments, text)
		}
		current = nil
	}

	for _, line := range strings.Split(policyText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if startsNewClause(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	if len(segments) == 0 {
		for _, p := range strings.Split(policyText, "\n\n") {
			p = strings.TrimSpace(p)
			if len(p) >= 30 {
				segments = append(segments, p)
			}
		}
	}

	if len(segments) == 0 {
		if whole := strings.TrimSpace(policyText); whole != "" {
			segments = []string{whole}
		}
	}

	return segments
}

const analysisSystemPrompt = `You are a legal policy extraction assistant. Your job is to extract structured information from legal clauses.
Important rules:
- Do not translate or paraphrase.
- Keep the language the same as input.
- Keep all values precise, short and enforceable.
- The summary must be 6-7 words max, capturing the essence of the clause.
- Severity: 1 = Critical/Mandatory, 2 = Important/Recommended
- Tags should be relevant legal categories (max 5 tags)

Return structured data for this policy clause as JSON in this exact format:
{
    "title": "Brief descriptive title",
    "instruction": "The complete policy instruction text",
    "summary": "6-7 word essence",
    "tags": ["tag1", "tag2", "tag3"],
    "severity": 1
}`

// AnalyzeClause extracts structured fields from one clause. It never fails:
// unparseable responses degrade to heuristic extraction and transport errors
// to a fixed failure clause.
func (p *Processor) AnalyzeClause(ctx context.Context, clauseText string) Clause {
	raw, err := p.ai.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: analysisSystemPrompt,
		UserPrompt:   "Policy text to analyze:\n" + clauseText,
		Temperature:  0.1,
		MaxTokens:    500,
		Timeout:      30 * time.Second,
		JSONMode:     true,
	})
	if err != nil {
		logger.Warn("Policy analysis failed", zap.Error(err))
		return failedClause(clauseText)
	}

	content := stripFences(raw)
	var parsed struct {
		Title       string   `json:"title"`
		Instruction string   `json:"instruction"`
		Summary     string   `json:"summary"`
		Tags        []string `json:"tags"`
		Severity    *int     `json:"severity"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		logger.Warn("Failed to parse policy analysis JSON", zap.Error(err))
		return clampClause(heuristicClause(clauseText, raw), clauseText)
	}

	severity := 2
	if parsed.Severity != nil {
		severity = *parsed.Severity
	}

	return clampClause(Clause{
		Title:       parsed.Title,
		Instruction: parsed.Instruction,
		Summary:     parsed.Summary,
		Tags:        parsed.Tags,
		Severity:    severity,
	}, clauseText)
}

// clampClause fills defaults and enforces the field limits: summary 50 chars,
// 5 tags, severity 1 or 2.
func clampClause(c Clause, clauseText string) Clause {
	if strings.TrimSpace(c.Title) == "" {
		c.Title = "Untitled Policy"
	}
	if strings.TrimSpace(c.Instruction) == "" {
		c.Instruction = clipRunes(clauseText, 500)
	}
	if strings.TrimSpace(c.Summary) == "" {
		c.Summary = "Policy clause"
	}
	c.Summary = clipRunes(c.Summary, 50)
	if len(c.Tags) == 0 {
		c.Tags = []string{"general"}
	}
	if len(c.Tags) > 5 {
		c.Tags = c.Tags[:5]
	}
	if c.Severity < 1 {
		c.Severity = 1
	}
	if c.Severity > 2 {
		c.Severity = 2
	}
	return c
}

var quotedPattern = regexp.MustCompile(`"([^"]+)"`)

// heuristicClause salvages what it can from a non-JSON model response.
func heuristicClause(clauseText, aiResponse string) Clause {
	clause := Clause{
		Title:       "Policy Clause",
		Instruction: clauseText,
		Summary:     "Policy requirement",
		Tags:        []string{"general", "policy"},
		Severity:    inferSeverity(clauseText),
	}

	quotes := quotedPattern.FindAllStringSubmatch(aiResponse, 2)
	if len(quotes) > 0 {
		clause.Title = clipRunes(quotes[0][1], 100)
	}
	if len(quotes) > 1 {
		clause.Summary = clipRunes(quotes[1][1], 50)
	}

	if clause.Title == "Policy Clause" {
		if sentences := strings.SplitN(clauseText, ".", 2); len(sentences) > 0 {
			if first := strings.TrimSpace(sentences[0]); first != "" {
				clause.Title = clipRunes(first, 100)
			}
		}
	}

	return clause
}

var criticalKeywords = []string{"must", "required", "shall", "mandatory", "compliance", "violation"}

func inferSeverity(clauseText string) int {
	lower := strings.ToLower(clauseText)
	for _, kw := range criticalKeywords {
		if strings.Contains(lower, kw) {
			return 1
		}
	}
	return 2
}

// failedClause is the terminal fallback when the model cannot be reached at
// all.
func failedClause(clauseText string) Clause {
	instruction := clauseText
	if len([]rune(clauseText)) > 500 {
		instruction = clipRunes(clauseText, 500) + "..."
	}
	return Clause{
		Title:       "Policy Analysis Failed",
		Instruction: instruction,
		Summary:     "Analysis failed",
		Tags:        []string{"general"},
		Severity:    2,
	}
}

// Process runs the whole policy pipeline over one document: segment, analyze
// each clause, embed the instructions and assemble index-ready records.
func (p *Processor) Process(ctx context.Context, policyText, filename, policyID string, groups []string) *Result {
	logger.Info("Starting policy document processing", zap.String("filename", filename))

	if policyID == "" {
		base := strings.TrimSuffix(filename, filepath.Ext(filename))
		policyID = fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
	}
	if len(groups) == 0 {
		groups = p.defaultGroups
	}

	segments := Segment(policyText)
	logger.Info("Policy segmentation complete",
		zap.String("filename", filename),
		zap.Int("clauses", len(segments)),
	)

	result := &Result{
		PolicyID:     policyID,
		Filename:     filename,
		TotalClauses: len(segments),
	}

	if len(segments) == 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("No policy clauses could be extracted from %s", filename)
		return result
	}

	for i, segment := range segments {
		logger.Info("Analyzing policy clause",
			zap.Int("clause", i+1),
			zap.Int("total", len(segments)),
		)

		clause := p.AnalyzeClause(ctx, segment)

		embedding, err := p.embeddings.Embed(ctx, clause.Instruction)
		if err != nil || len(embedding) == 0 {
			if err != nil {
				logger.Warn("Failed to embed policy clause, using zero vector",
					zap.Int("clause", i+1),
					zap.Error(err),
				)
			}
			embedding = make([]float32, p.embeddingDim)
		}

		result.Records = append(result.Records, Record{
			ID:           uuid.NewString(),
			PolicyID:     policyID,
			Filename:     filename,
			Clause:       clause,
			Embedding:    embedding,
			Groups:       groups,
			Language:     "English",
			OriginalText: segment,
		})
		result.ClausesProcessed++
	}

	if result.ClausesProcessed > 0 {
		result.Status = "success"
	} else {
		result.Status = "error"
	}
	result.Message = fmt.Sprintf("Successfully processed %d/%d policy clauses from %s",
		result.ClausesProcessed, result.TotalClauses, filename)

	logger.Info("Policy processing completed", zap.String("message", result.Message))
	return result
}

func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
