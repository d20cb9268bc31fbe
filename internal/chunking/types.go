package chunking

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/docindexer/backend/pkg/logger"
	"github.com/docindexer/backend/pkg/utils"
)

// Method names a chunking strategy. The set is closed; unknown strings
// resolve to the configured default at dispatch time.
type Method string

const (
	MethodFixedSize    Method = "fixed_size"
	MethodSentence     Method = "sentence"
	MethodHeading      Method = "heading"
	MethodIntelligent  Method = "intelligent"
	MethodParagraph    Method = "paragraph"
	MethodPolicyClause Method = "policy_clause"
)

func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodFixedSize, MethodSentence, MethodHeading, MethodIntelligent,
		MethodParagraph, MethodPolicyClause:
		return Method(s), true
	}
	return "", false
}

// Chunk is one piece of a split document. Offsets are rune positions in the
// original text and are only known for structural methods; AI-driven methods
// leave them nil.
type Chunk struct {
	Index       int
	Method      Method
	Text        string
	StartOffset *int
	EndOffset   *int
}

func (c Chunk) Size() int {
	return len(c.Text)
}

// Hash returns the content hash of the chunk text, used for cache keys and
// overlap comparison.
func (c Chunk) Hash() string {
	return utils.ContentHash(c.Text)
}

// Splitter dispatches a document to the chunker for a method.
type Splitter struct {
	semantic      *SemanticChunker
	defaultMethod Method
	maxChunkSize  int
	documentType  string
}

func NewSplitter(semantic *SemanticChunker, defaultMethod Method, maxChunkSize int, documentType string) *Splitter {
	if maxChunkSize <= 0 {
		maxChunkSize = 2000
	}
	if _, ok := ParseMethod(string(defaultMethod)); !ok {
		defaultMethod = MethodIntelligent
	}
	return &Splitter{
		semantic:      semantic,
		defaultMethod: defaultMethod,
		maxChunkSize:  maxChunkSize,
		documentType:  documentType,
	}
}

func (s *Splitter) DefaultMethod() Method {
	return s.defaultMethod
}

// Resolve maps a requested method name onto the closed set, falling back to
// the default for empty or unknown names.
func (s *Splitter) Resolve(name string) Method {
	if name == "" {
		return s.defaultMethod
	}
	m, ok := ParseMethod(name)
	if !ok {
		logger.Warn("Unknown chunking method, using default",
			zap.String("requested", name),
			zap.String("default", string(s.defaultMethod)),
		)
		return s.defaultMethod
	}
	return m
}

// Split runs the chunker for method over text. maxChunkSize <= 0 uses the
// splitter default. The policy_clause method is handled by the policy
// processor, not here; it falls through to paragraph splitting.
func (s *Splitter) Split(ctx context.Context, text string, method Method, maxChunkSize int) []Chunk {
	if maxChunkSize <= 0 {
		maxChunkSize = s.maxChunkSize
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var pieces []string
	withOffsets := false

	switch method {
	case MethodFixedSize:
		return s.fixedSizeChunks(text, maxChunkSize)
	case MethodSentence:
		pieces = SentenceBoundary(text, maxChunkSize)
	case MethodHeading:
		pieces = HeadingBased(text)
		withOffsets = true
	case MethodParagraph, MethodPolicyClause:
		pieces = ParagraphBased(text)
		withOffsets = true
	case MethodIntelligent:
		if s.semantic != nil {
			pieces = s.semantic.Chunk(ctx, text, s.documentType, maxChunkSize)
		} else {
			pieces = SentenceBoundary(text, maxChunkSize)
		}
	default:
		return s.Split(ctx, text, s.defaultMethod, maxChunkSize)
	}

	chunks := make([]Chunk, 0, len(pieces))
	cursor := 0
	for i, p := range pieces {
		c := Chunk{Index: i, Method: method, Text: p}
		if withOffsets {
			if at := strings.Index(text[cursor:], p); at >= 0 {
				start := utf8.RuneCountInString(text[:cursor+at])
				end := start + utf8.RuneCountInString(p)
				c.StartOffset = &start
				c.EndOffset = &end
				cursor = cursor + at + len(p)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// fixedSizeChunks keeps the window start offsets the walk produced. Offsets
// are rune positions.
func (s *Splitter) fixedSizeChunks(text string, maxChunkSize int) []Chunk {
	pieces, starts := fixedSizeWithOffsets(text, maxChunkSize)
	chunks := make([]Chunk, 0, len(pieces))
	for i, p := range pieces {
		start := starts[i]
		end := start + utf8.RuneCountInString(p)
		chunks = append(chunks, Chunk{
			Index:       i,
			Method:      MethodFixedSize,
			Text:        p,
			StartOffset: &start,
			EndOffset:   &end,
		})
	}
	return chunks
}

// Texts extracts the raw text of each chunk, for validation and comparison.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
