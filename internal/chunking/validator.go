package chunking

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docindexer/backend/pkg/logger"
)

// PreservationReport records how faithfully a set of chunks covers the
// original text. It is advisory: the pipeline logs and attaches it but never
// blocks on it.
type PreservationReport struct {
	Method        string
	OriginalChars int
	ChunkedChars  int
	OriginalWords int
	ChunkedWords  int
	CharRatio     float64
	WordRatio     float64
	Issues        []string
	Passed        bool
	Acceptable    bool
}

// Methods that rewrite text (AI boundaries, trimming) get a wider band than
// methods that only cut it.
const (
	looseLower  = 0.85
	looseUpper  = 1.15
	strictLower = 0.95
	strictUpper = 1.10
	bandSlack   = 0.05
)

// ValidatePreservation compares chunk coverage against the original text.
// Character ratio uses the sum of chunk lengths; word ratio counts
// whitespace-separated words over a single-space join of the chunks.
func ValidatePreservation(original string, chunks []string, method string) PreservationReport {
	report := PreservationReport{
		Method:        method,
		OriginalChars: len(original),
		OriginalWords: len(strings.Fields(original)),
	}

	for _, c := range chunks {
		report.ChunkedChars += len(c)
	}
	report.ChunkedWords = len(strings.Fields(strings.Join(chunks, " ")))

	if report.OriginalChars > 0 {
		report.CharRatio = float64(report.ChunkedChars) / float64(report.OriginalChars)
	}
	if report.OriginalWords > 0 {
		report.WordRatio = float64(report.ChunkedWords) / float64(report.OriginalWords)
	}

	lower, upper := strictLower, strictUpper
	if strings.Contains(strings.ToLower(method), "intelligent") {
		lower, upper = looseLower, looseUpper
	}

	if report.CharRatio < lower {
		report.Issues = append(report.Issues,
			fmt.Sprintf("Content loss: %d chars missing", report.OriginalChars-report.ChunkedChars))
	} else if report.CharRatio > upper {
		report.Issues = append(report.Issues,
			fmt.Sprintf("Content expansion: %d extra chars", report.ChunkedChars-report.OriginalChars))
	}

	var empty []int
	for i, c := range chunks {
		if strings.TrimSpace(c) == "" {
			empty = append(empty, i)
		}
	}
	if len(empty) > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("Empty chunks found at positions: %v", empty))
	}

	report.Passed = len(report.Issues) == 0
	report.Acceptable = report.CharRatio >= lower-bandSlack && report.CharRatio <= upper+bandSlack

	if !report.Passed {
		logger.Warn("Content preservation issues",
			zap.String("method", method),
			zap.Float64("char_ratio", report.CharRatio),
			zap.Float64("word_ratio", report.WordRatio),
			zap.Strings("issues", report.Issues),
		)
	}

	return report
}
