package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docindexer/backend/internal/llm"
)

func keyphraseEnricher(response string, err error) *Enricher {
	completions := &fakeCompletions{fn: func(req llm.CompletionRequest) (string, error) {
		return response, err
	}}
	return New(completions, &fakeEmbeddings{}, nil, 2, "legal", time.Hour)
}

func TestKeyphrasesBareArray(t *testing.T) {
	e := keyphraseEnricher(`["governing law", "venue"]`, nil)

	phrases, reason := e.Keyphrases(context.Background(), "text")

	assert.Equal(t, []string{"governing law", "venue"}, phrases)
	assert.Equal(t, FallbackNone, reason)
}

func TestKeyphrasesObjectWithKnownKey(t *testing.T) {
	for _, key := range []string{"keyphrases", "phrases", "key_phrases"} {
		e := keyphraseEnricher(`{"`+key+`": ["one", "two"]}`, nil)

		phrases, reason := e.Keyphrases(context.Background(), "text")

		assert.Equal(t, []string{"one", "two"}, phrases, "key %s", key)
		assert.Equal(t, FallbackNone, reason)
	}
}

func TestKeyphrasesSingleUnknownKey(t *testing.T) {
	e := keyphraseEnricher(`{"results": ["alpha", "beta"]}`, nil)

	phrases, reason := e.Keyphrases(context.Background(), "text")

	assert.Equal(t, []string{"alpha", "beta"}, phrases)
	assert.Equal(t, FallbackNone, reason)
}

func TestKeyphrasesCodeFencedArray(t *testing.T) {
	e := keyphraseEnricher("```json\n[\"fenced\"]\n```", nil)

	phrases, reason := e.Keyphrases(context.Background(), "text")

	assert.Equal(t, []string{"fenced"}, phrases)
	assert.Equal(t, FallbackNone, reason)
}

func TestKeyphrasesArrayEmbeddedInProse(t *testing.T) {
	e := keyphraseEnricher(`Here are the phrases: ["embedded", "phrases"] as requested.`, nil)

	phrases, reason := e.Keyphrases(context.Background(), "text")

	assert.Equal(t, []string{"embedded", "phrases"}, phrases)
	assert.Equal(t, FallbackNone, reason)
}

func TestKeyphrasesCappedAtEight(t *testing.T) {
	e := keyphraseEnricher(`["1","2","3","4","5","6","7","8","9","10"]`, nil)

	phrases, _ := e.Keyphrases(context.Background(), "text")

	assert.Len(t, phrases, 8)
}

func TestKeyphrasesQuotedStringRescue(t *testing.T) {
	e := keyphraseEnricher(`The key phrases are "payment terms" and "late fees".`, nil)

	phrases, reason := e.Keyphrases(context.Background(), "no legal words here")

	assert.Equal(t, []string{"payment terms", "late fees"}, phrases)
	assert.Equal(t, FallbackQuotedStrings, reason)
}

func TestKeyphrasesStaticFallbackOnError(t *testing.T) {
	e := keyphraseEnricher("", errors.New("model down"))

	phrases, reason := e.Keyphrases(context.Background(),
		"This agreement sets out the warranty and liability of Acme Corp.")

	assert.Equal(t, FallbackStaticKeywords, reason)
	assert.Contains(t, phrases, "agreement")
	assert.Contains(t, phrases, "warranty")
	assert.Contains(t, phrases, "liability")
	assert.LessOrEqual(t, len(phrases), 6)
}

func TestKeyphrasesStaticFallbackDefault(t *testing.T) {
	e := keyphraseEnricher("", errors.New("model down"))

	phrases, reason := e.Keyphrases(context.Background(), "nothing matches in here")

	assert.Equal(t, FallbackStaticKeywords, reason)
	assert.Equal(t, []string{"document", "content"}, phrases)
}

func TestKeyphrasesEmptyArrayFallsBackToStatic(t *testing.T) {
	e := keyphraseEnricher(`[]`, nil)

	phrases, reason := e.Keyphrases(context.Background(), "The contract covers delivery.")

	assert.Equal(t, FallbackStaticKeywords, reason)
	assert.Contains(t, phrases, "contract")
	assert.Contains(t, phrases, "delivery")
}

func TestStaticKeyphrasesPadsWithCapitalizedWords(t *testing.T) {
	phrases := staticKeyphrases("Acme and Widget signed the contract in Boston today.")

	require.NotEmpty(t, phrases)
	assert.Contains(t, phrases, "contract")
	assert.Contains(t, phrases, "Acme")
	assert.Contains(t, phrases, "Widget")
}
