package chunking

import (
	"errors"
	"math"
	"strings"
)

// ErrInsufficientData is returned when a comparison or recommendation has
// nothing to work with.
var ErrInsufficientData = errors.New("insufficient chunk data for comparison")

// MethodChunks is one method's output over a single document. Hashes are
// optional; when both sides carry a full set the overlap comparison uses
// exact hash matching instead of word overlap.
type MethodChunks struct {
	Method           string
	Texts            []string
	Hashes           []string
	ProcessingTimeMs int64
}

func (m MethodChunks) avgChunkSize() float64 {
	if len(m.Texts) == 0 {
		return 0
	}
	total := 0
	for _, t := range m.Texts {
		total += len(t)
	}
	return float64(total) / float64(len(m.Texts))
}

func (m MethodChunks) hasHashes() bool {
	if len(m.Hashes) == 0 || len(m.Hashes) != len(m.Texts) {
		return false
	}
	for _, h := range m.Hashes {
		if h == "" {
			return false
		}
	}
	return true
}

// ComparisonResult summarizes how two methods' outputs relate. It is
// symmetric up to field order: swapping A and B swaps the per-side fields and
// keeps the scores.
type ComparisonResult struct {
	MethodA           string
	MethodB           string
	TotalChunksA      int
	TotalChunksB      int
	AvgChunkSizeA     float64
	AvgChunkSizeB     float64
	SimilarityScore   float64
	ContentOverlapPct float64
	ProcessingTimeAMs int64
	ProcessingTimeBMs int64
}

// Compare scores two methods' chunk sets against each other.
func Compare(a, b MethodChunks) (ComparisonResult, error) {
	if len(a.Texts) == 0 || len(b.Texts) == 0 {
		return ComparisonResult{}, ErrInsufficientData
	}

	result := ComparisonResult{
		MethodA:           a.Method,
		MethodB:           b.Method,
		TotalChunksA:      len(a.Texts),
		TotalChunksB:      len(b.Texts),
		AvgChunkSizeA:     a.avgChunkSize(),
		AvgChunkSizeB:     b.avgChunkSize(),
		ProcessingTimeAMs: a.ProcessingTimeMs,
		ProcessingTimeBMs: b.ProcessingTimeMs,
	}

	if a.hasHashes() && b.hasHashes() {
		result.ContentOverlapPct = hashOverlapPct(a.Hashes, b.Hashes)
	} else {
		result.ContentOverlapPct = wordOverlapPct(a.Texts, b.Texts)
	}

	sizeSim := similarityOf(result.AvgChunkSizeA, result.AvgChunkSizeB)
	countSim := similarityOf(float64(result.TotalChunksA), float64(result.TotalChunksB))
	result.SimilarityScore = (sizeSim + countSim + result.ContentOverlapPct/100) / 3

	return result, nil
}

func similarityOf(x, y float64) float64 {
	max := math.Max(x, y)
	if max == 0 {
		return 1
	}
	return 1 - math.Abs(x-y)/max
}

func hashOverlapPct(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, h := range a {
		setA[h] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, h := range b {
		setB[h] = struct{}{}
	}

	shared := 0
	for h := range setA {
		if _, ok := setB[h]; ok {
			shared++
		}
	}

	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	if larger == 0 {
		return 0
	}
	return float64(shared) / float64(larger) * 100
}

// wordOverlapPct is a Jaccard index over the concatenated chunk texts. Words
// are lowercased and split on whitespace only, no punctuation stripping.
func wordOverlapPct(a, b []string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union) * 100
}

func wordSet(texts []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(strings.Join(texts, " "))) {
		set[w] = struct{}{}
	}
	return set
}

// Recommend picks the best method across a set of pairwise comparisons. Each
// appearance contributes a proximity-to-800-chars term and a speed term;
// intelligent chunking gets a flat bonus per comparison it appears in. Ties
// keep the first method encountered.
func Recommend(results []ComparisonResult) (string, error) {
	if len(results) == 0 {
		return "", ErrInsufficientData
	}

	scores := make(map[string]float64)
	var order []string

	add := func(method string, avgSize float64, timeMs int64) {
		if _, seen := scores[method]; !seen {
			order = append(order, method)
		}
		scores[method] += 1/(1+math.Abs(avgSize-800)) + 1/(1+float64(timeMs)/1000)
	}

	for _, r := range results {
		add(r.MethodA, r.AvgChunkSizeA, r.ProcessingTimeAMs)
		add(r.MethodB, r.AvgChunkSizeB, r.ProcessingTimeBMs)

		if r.MethodA == string(MethodIntelligent) {
			scores[r.MethodA] += 0.5
		} else if r.MethodB == string(MethodIntelligent) {
			scores[r.MethodB] += 0.5
		}
	}

	best := order[0]
	for _, m := range order[1:] {
		if scores[m] > scores[best] {
			best = m
		}
	}
	return best, nil
}
