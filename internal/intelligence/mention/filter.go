package mention

// CandidatePair asserts that Entry occurs in Sentence under the strict rule.
type CandidatePair struct {
	Entry    string `json:"entry"`
	Sentence string `json:"sentence"`
}

// FilterCandidates keeps the lexicon entries that occur anywhere in document
// as a delimited match. Abbreviations come first, then phrases, each in
// lexicon order.
func FilterCandidates(lex *Lexicon, document string) []string {
	var out []string
	for _, entry := range lex.Entries() {
		if IsBoundaryMatch(entry, document) {
			out = append(out, entry)
		}
	}
	return out
}

// PairEntriesToSentences returns the full incidence relation between the
// entries and sentences that take part in at least one strict match.
//
// Both universes are deduplicated before the cross product is re-validated,
// so repeated sentences or entries never produce repeated pairs. Pairs are
// ordered by the first appearance of their entry, then of their sentence.
func PairEntriesToSentences(entries, sentences []string) []CandidatePair {
	var (
		entryOrder    []string
		sentenceOrder []string
		seenEntry     = make(map[string]struct{})
		seenSentence  = make(map[string]struct{})
	)
	for _, e := range entries {
		for _, s := range sentences {
			if !IsStrictMatch(e, s) {
				continue
			}
			if _, ok := seenEntry[e]; !ok {
				seenEntry[e] = struct{}{}
				entryOrder = append(entryOrder, e)
			}
			if _, ok := seenSentence[s]; !ok {
				seenSentence[s] = struct{}{}
				sentenceOrder = append(sentenceOrder, s)
			}
		}
	}

	var pairs []CandidatePair
	for _, e := range entryOrder {
		for _, s := range sentenceOrder {
			if IsStrictMatch(e, s) {
				pairs = append(pairs, CandidatePair{Entry: e, Sentence: s})
			}
		}
	}
	return pairs
}
