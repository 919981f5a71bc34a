package mention

import (
	"strings"
)

// Default window widths in word tokens.
const (
	DefaultLeftWindow  = 5
	DefaultRightWindow = 6
)

// WindowExtractor cuts fixed-width token windows around entry occurrences.
type WindowExtractor struct {
	tokenizer WordTokenizer
	left      int
	right     int
}

// NewWindowExtractor returns an extractor; non-positive widths fall back to
// the defaults.
func NewWindowExtractor(tokenizer WordTokenizer, left, right int) *WindowExtractor {
	if tokenizer == nil {
		tokenizer = NewTreebankTokenizer()
	}
	if left <= 0 {
		left = DefaultLeftWindow
	}
	if right <= 0 {
		right = DefaultRightWindow
	}
	return &WindowExtractor{tokenizer: tokenizer, left: left, right: right}
}

var defaultWindows = NewWindowExtractor(nil, DefaultLeftWindow, DefaultRightWindow)

// Widths returns the left and right window widths in tokens.
func (w *WindowExtractor) Widths() (left, right int) { return w.left, w.right }

// ExtractWindows uses the default tokenizer and a 5/6 window.
func ExtractWindows(sentence, entry string) []string {
	return defaultWindows.Extract(sentence, entry)
}

// Clean drops pure punctuation tokens from sentence and rejoins the rest with
// single spaces.
func (w *WindowExtractor) Clean(sentence string) string {
	toks := w.tokenizer.Tokenize(sentence)
	kept := toks[:0]
	for _, tok := range toks {
		if !isPunctuationToken(tok) {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// Extract returns one snippet per non-overlapping occurrence of entry in the
// cleaned sentence: the last left tokens before the occurrence followed by
// the first right tokens starting at it.
func (w *WindowExtractor) Extract(sentence, entry string) []string {
	if entry == "" {
		return nil
	}
	cleaned := w.Clean(sentence)

	var offsets []int
	for cursor := 0; cursor < len(cleaned); {
		rel := strings.Index(cleaned[cursor:], entry)
		if rel < 0 {
			break
		}
		offsets = append(offsets, cursor+rel)
		cursor += rel + len(entry)
	}

	// cleaned is already tokenized; splitting it again on spaces keeps the
	// tokens Clean produced.
	snippets := make([]string, 0, len(offsets))
	for _, off := range offsets {
		left := strings.Fields(cleaned[:off])
		if len(left) > w.left {
			left = left[len(left)-w.left:]
		}
		right := strings.Fields(cleaned[off:])
		if len(right) > w.right {
			right = right[:w.right]
		}
		window := make([]string, 0, len(left)+len(right))
		window = append(window, left...)
		window = append(window, right...)
		snippets = append(snippets, strings.Join(window, " "))
	}
	return snippets
}
