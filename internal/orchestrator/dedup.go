package orchestrator

import (
	"strings"

	"github.com/ragcorpus/ragd/internal/domain"
)

// deduplicateNearDuplicates drops candidates whose text overlaps an
// earlier (higher-ranked) candidate above threshold Jaccard similarity
// over lowercase word sets. Adapted from the teacher's
// deduplicateResults/jaccardSimilarity, a supplemental feature from the
// original system not named by the core retrieval contract.
func deduplicateNearDuplicates(docs domain.RetrievalResult, threshold float64) domain.RetrievalResult {
	if len(docs) <= 1 {
		return docs
	}

	wordSets := make([]map[string]struct{}, len(docs))
	for i, d := range docs {
		wordSets[i] = tokenize(d.Text)
	}

	keep := make([]bool, len(docs))
	for i := range keep {
		keep[i] = true
	}
	for i := range docs {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(docs); j++ {
			if !keep[j] {
				continue
			}
			if jaccardSimilarity(wordSets[i], wordSets[j]) >= threshold {
				keep[j] = false
			}
		}
	}

	out := make(domain.RetrievalResult, 0, len(docs))
	for i, d := range docs {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

func tokenize(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()[]{}=<>")
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
