package mention

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// WordTokenizer splits text into word tokens.
type WordTokenizer interface {
	Tokenize(text string) []string
}

// TreebankTokenizer is a whitespace-then-affix splitter in the Penn Treebank
// manner: leading brackets and quotes, trailing punctuation and English
// contractions become separate tokens.
type TreebankTokenizer struct {
	specialRE    *regexp.Regexp
	contractions []string
	prefixes     []string
	suffixes     []string
}

// TokenizerOption customises a TreebankTokenizer.
type TokenizerOption func(*TreebankTokenizer)

// WithSpecialRE overrides the pattern of tokens that are never split.
func WithSpecialRE(re *regexp.Regexp) TokenizerOption {
	return func(t *TreebankTokenizer) { t.specialRE = re }
}

// WithContractions overrides the contraction suffixes.
func WithContractions(c []string) TokenizerOption {
	return func(t *TreebankTokenizer) { t.contractions = c }
}

// NewTreebankTokenizer returns a tokenizer with English defaults.
func NewTreebankTokenizer(opts ...TokenizerOption) *TreebankTokenizer {
	t := &TreebankTokenizer{
		specialRE:    unsplittableRE,
		contractions: contractions,
		prefixes:     prefixes,
		suffixes:     suffixes,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize splits text on whitespace and then peels affixes off every field.
func (t *TreebankTokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(text) {
		tokens = append(tokens, t.split(field)...)
	}
	return tokens
}

func (t *TreebankTokenizer) split(token string) []string {
	var head, tail []string

	last := -1
	for token != "" && utf8.RuneCountInString(token) != last {
		if t.specialRE.MatchString(token) {
			// U.S., Dr. and friends stay whole.
			head = append(head, token)
			break
		}
		last = utf8.RuneCountInString(token)
		if isContraction(token, t.contractions) {
			// a bare 's stays whole so tokenizing twice is stable
			head = append(head, token)
			break
		}
		if p := matchPrefix(token, t.prefixes); p != "" {
			// ($100 -> [(, $, 100]
			head = append(head, p)
			token = token[len(p):]
		} else if idx := contractionIndex(token, t.contractions); idx > 0 {
			// don't -> [do, n't]
			head = append(head, token[:idx], token[idx:])
			break
		} else if s := matchSuffix(token, t.suffixes); s != "" {
			// ADNI), -> [ADNI, ), ,]
			tail = append([]string{s}, tail...)
			token = token[:len(token)-len(s)]
		} else {
			head = append(head, token)
			break
		}
	}
	return append(head, tail...)
}

func matchPrefix(token string, prefixes []string) string {
	for _, p := range prefixes {
		if len(token) > len(p) && strings.HasPrefix(token, p) {
			return p
		}
	}
	return ""
}

func matchSuffix(token string, suffixes []string) string {
	for _, s := range suffixes {
		if len(token) > len(s) && strings.HasSuffix(token, s) {
			return s
		}
	}
	return ""
}

// contractionIndex returns the byte offset of a trailing contraction, or -1.
func contractionIndex(token string, contractions []string) int {
	lower := strings.ToLower(token)
	for _, c := range contractions {
		if len(lower) > len(c) && strings.HasSuffix(lower, c) {
			return len(token) - len(c)
		}
	}
	return -1
}

func isContraction(token string, contractions []string) bool {
	lower := strings.ToLower(token)
	for _, c := range contractions {
		if lower == c {
			return true
		}
	}
	return false
}

var unsplittableRE = regexp.MustCompile(`^(?:[A-Za-z]\.){2,}$|^[A-Z][a-z]{1,2}\.$`)

var contractions = []string{
	"'ll", "'s", "'re", "'m", "'ve", "'d", "n't",
	"’ll", "’s", "’re", "’m", "’ve", "’d", "n’t",
}

var prefixes = []string{"$", "(", `"`, "[", "{", "“", "‘", "«", "'"}

var suffixes = []string{",", ")", `"`, "]", "}", "!", ";", ".", "?", ":", "'", "”", "’", "»", "…"}
