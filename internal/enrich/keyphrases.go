package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docindexer/backend/internal/llm"
	"github.com/docindexer/backend/pkg/logger"
)

const maxKeyphrases = 8

var defaultKeyphrases = []string{"document", "content"}

// Keyphrases extracts 5-8 search keyphrases for a chunk. The result is never
// empty: model output degrades through quoted-string rescue and static term
// matching down to a fixed default.
func (e *Enricher) Keyphrases(ctx context.Context, text string) ([]string, FallbackReason) {
	raw, err := e.completions.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  keyphrasePrompt(text, e.documentType),
		Temperature: 0.2,
		MaxTokens:   200,
		Timeout:     30 * time.Second,
		JSONMode:    true,
	})
	if err != nil {
		logger.Warn("Keyphrase extraction failed", zap.Error(err))
		return staticKeyphrases(text), FallbackStaticKeywords
	}

	phrases, ok := parseKeyphraseJSON(raw)
	if !ok {
		if rescued := quotedStrings(raw); len(rescued) > 0 {
			return rescued, FallbackQuotedStrings
		}
		return staticKeyphrases(text), FallbackStaticKeywords
	}
	if len(phrases) == 0 {
		return staticKeyphrases(text), FallbackStaticKeywords
	}

	return phrases, FallbackNone
}

func keyphrasePrompt(text, documentType string) string {
	return fmt.Sprintf(`You are an expert at extracting key phrases from %s documents.

Analyze the provided text and extract 5-8 key phrases that are most important for search and categorization. Focus on:

For Legal Documents:
- Legal terms and concepts
- Important names, entities, companies
- Dates, deadlines, time periods
- Contract clauses and obligations
- Monetary amounts or percentages
- Jurisdictions or legal references

For General Documents:
- Main topics and themes
- Important entities or names
- Key concepts and terminology
- Action items or requirements

Return ONLY a simple JSON array of key phrases as strings. No explanations.

Example output format:
["phrase1", "phrase2", "phrase3", "phrase4", "phrase5"]

Text to analyze:
%s`, documentType, clipRunes(text, 2000))
}

var jsonPayloadPattern = regexp.MustCompile(`(?s)[\[{].*[\]}]`)

// parseKeyphraseJSON accepts the shapes models actually produce: a bare
// array, an object under a keyphrases/phrases/key_phrases key, or an object
// with a single key holding the array.
func parseKeyphraseJSON(raw string) ([]string, bool) {
	content := stripFences(raw)
	if m := jsonPayloadPattern.FindString(content); m != "" {
		content = m
	}

	var asAny any
	if err := json.Unmarshal([]byte(content), &asAny); err != nil {
		return nil, false
	}

	switch v := asAny.(type) {
	case []any:
		return cleanPhrases(v), true
	case map[string]any:
		for _, key := range []string{"keyphrases", "phrases", "key_phrases"} {
			if list, ok := v[key].([]any); ok {
				return cleanPhrases(list), true
			}
		}
		if len(v) == 1 {
			for _, value := range v {
				if list, ok := value.([]any); ok {
					return cleanPhrases(list), true
				}
			}
		}
		return nil, true
	}
	return nil, false
}

func cleanPhrases(values []any) []string {
	var out []string
	for _, v := range values {
		if len(out) == maxKeyphrases {
			break
		}
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

var quotedPattern = regexp.MustCompile(`"([^"]+)"`)

// quotedStrings pulls phrases out of a non-JSON response that still quotes
// its answers.
func quotedStrings(raw string) []string {
	matches := quotedPattern.FindAllStringSubmatch(raw, maxKeyphrases)
	var out []string
	for _, m := range matches {
		if s := strings.TrimSpace(m[1]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var legalTerms = []string{
	"contract", "agreement", "terms", "conditions", "obligations", "rights",
	"payment", "delivery", "warranty", "liability", "indemnification",
	"confidentiality", "intellectual property", "termination", "breach",
	"damages", "jurisdiction", "governing law", "dispute resolution",
}

var capitalizedWordPattern = regexp.MustCompile(`\b[A-Z][a-z]+\b`)

// staticKeyphrases matches a fixed legal vocabulary against the text and pads
// with the first capitalized words. Never empty.
func staticKeyphrases(text string) []string {
	lower := strings.ToLower(text)

	var found []string
	for _, term := range legalTerms {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}

	caps := capitalizedWordPattern.FindAllString(text, 3)
	found = append(found, caps...)

	if len(found) == 0 {
		return append([]string(nil), defaultKeyphrases...)
	}
	if len(found) > 6 {
		found = found[:6]
	}
	return found
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
