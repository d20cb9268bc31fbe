package chunking

import (
	"regexp"
	"strings"
	"unicode"
)

// FixedSize walks the text in maxChunkSize windows. When a window would end
// mid-word it backs off to the last space, but only if that space sits past
// 70% of the window; the walk still advances by maxChunkSize, so the tail
// between the backed-off cut and the window end is dropped.
func FixedSize(text string, maxChunkSize int) []string {
	pieces, _ := fixedSizeWithOffsets(text, maxChunkSize)
	return pieces
}

func fixedSizeWithOffsets(text string, maxChunkSize int) ([]string, []int) {
	if maxChunkSize <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	var pieces []string
	var starts []int

	for i := 0; i < len(runes); i += maxChunkSize {
		end := i + maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		window := runes[i:end]

		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			if cut := lastSpaceIndex(window); float64(cut) > float64(maxChunkSize)*0.7 {
				window = window[:cut]
			}
		}

		piece := strings.TrimSpace(string(window))
		if piece != "" {
			pieces = append(pieces, piece)
			starts = append(starts, i)
		}
	}

	return pieces, starts
}

func lastSpaceIndex(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// SentenceBoundary splits on sentence-ending punctuation followed by
// whitespace, then greedily packs whole sentences into chunks of at most
// maxChunkSize characters. A single sentence longer than the limit becomes
// its own oversized chunk.
func SentenceBoundary(text string, maxChunkSize int) []string {
	sentences := splitSentences(text)

	var chunks []string
	var current []string
	size := 0

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if size+len(s) > maxChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{s}
			size = len(s)
			continue
		}
		current = append(current, s)
		size += len(s) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// splitSentences cuts after . ! ? when the next rune is whitespace. The
// punctuation stays with the sentence.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			out = append(out, string(runes[start:i+1]))
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}

	return out
}

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(\d+\.)+\s*[A-Z]`),
	regexp.MustCompile(`^\s*[A-Z][A-Z\s]{10,80}[A-Z]\s*$`),
	regexp.MustCompile(`^\s*[IVX]+\.\s*[A-Z]`),
	regexp.MustCompile(`^\s*\(?[A-Za-z]\)?\.\s*[A-Z]`),
	regexp.MustCompile(`(?i)^\s*(SECTION|ARTICLE|CHAPTER|PART|EXHIBIT)\s+\d+`),
	regexp.MustCompile(`(?i)^\s*(WHEREAS|NOW THEREFORE|IN WITNESS WHEREOF)`),
}

func isHeadingLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len([]rune(line)) > 100 {
		return false
	}
	for _, p := range headingPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	// Short mostly-uppercase lines read as headings too.
	runes := []rune(line)
	if len(runes) < 50 {
		upper := 0
		for _, r := range runes {
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if float64(upper) > float64(len(runes))*0.7 {
			return true
		}
	}
	return false
}

// HeadingBased groups lines into chunks that each start at a heading. A
// non-heading line only forces a new chunk once the accumulated lines exceed
// 2000 characters; chunks under 200 characters never split.
func HeadingBased(text string) []string {
	var chunks []string
	var current []string
	currentSize := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
			currentSize = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" && len(current) == 0 {
			continue
		}
		if len(current) > 0 && shouldStartNewChunk(line, currentSize) {
			flush()
		}
		if line != "" {
			current = append(current, line)
			currentSize += len(line)
		}
	}
	flush()

	return chunks
}

func shouldStartNewChunk(line string, currentSize int) bool {
	if isHeadingLine(line) {
		return true
	}
	if currentSize < 200 {
		return false
	}
	return currentSize > 2000
}

// ParagraphBased splits on blank lines.
func ParagraphBased(text string) []string {
	var chunks []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks
}
