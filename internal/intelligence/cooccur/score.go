package cooccur

import (
	"math"
	"sort"
	"strings"
)

// DefaultTopK is the number of datasets returned when topK is not positive.
const DefaultTopK = 5

// ScoredDataset is one ranked dataset.
type ScoredDataset struct {
	Dataset string  `json:"dataset"`
	Score   float64 `json:"score"`
}

type tokenWeight struct {
	word  string
	idf   float64
	denom float64
}

// Score ranks every dataset with training evidence against snippet:
//
//	score(d) = sum over tokens w of log(1 + D/U(w)) * log((n(d,w) + 1) / (COUNT(w) + D))
//
// where D is the number of datasets, U(w) the number of datasets seen with w
// and COUNT(w) the total occurrences of w. Tokens never seen in training add
// nothing. Results are ordered by score descending, then dataset id
// ascending, and truncated to topK without padding.
//
// A result where every score is zero carries no signal.
func (t *Table) Score(snippet string, topK int) []ScoredDataset {
	if topK <= 0 {
		topK = DefaultTopK
	}
	numDatasets := float64(len(t.datasets))

	var weights []tokenWeight
	for _, w := range strings.Fields(snippet) {
		ws, ok := t.words[w]
		if !ok || ws.Unique == 0 {
			continue
		}
		weights = append(weights, tokenWeight{
			word:  w,
			idf:   math.Log(1 + numDatasets/float64(ws.Unique)),
			denom: float64(ws.Count) + numDatasets,
		})
	}

	out := make([]ScoredDataset, 0, len(t.datasets))
	for d, ds := range t.datasets {
		var score float64
		for _, tw := range weights {
			score += tw.idf * math.Log(float64(ds.Cells[tw.word]+1)/tw.denom)
		}
		out = append(out, ScoredDataset{Dataset: d, Score: score})
	}
	Rank(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// Rank sorts by score descending, breaking ties by dataset id.
func Rank(scores []ScoredDataset) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Dataset < scores[j].Dataset
	})
}

// IDs returns the dataset ids of scores in order.
func IDs(scores []ScoredDataset) []string {
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.Dataset
	}
	return out
}
