package engine

import "github.com/sanonone/kektorgraph/pkg/core"

// normalizeTextScores maps BM25 scores to the 0..1 range based on the max score in the batch.
func normalizeTextScores(hits []core.SearchHit) {
	if len(hits) == 0 {
		return
	}
	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore > 0 {
		for i := range hits {
			hits[i].Score /= maxScore
		}
	}
}
