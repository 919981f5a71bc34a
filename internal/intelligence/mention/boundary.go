package mention

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// delimiters is the punctuation set used by the boundary rules. Besides ASCII
// and typographic punctuation it contains the capital letter I and a literal
// space, which act as pseudo-delimiters.
var delimiters = func() map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range asciiPunctuation + typographicPunctuation + "I " {
		set[r] = struct{}{}
	}
	return set
}()

const (
	asciiPunctuation       = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	typographicPunctuation = "‘’‚‛“”„‟–—―…«»‹›·•"
)

// IsDelimiter reports whether r belongs to the boundary punctuation set.
func IsDelimiter(r rune) bool {
	_, ok := delimiters[r]
	return ok
}

func acceptsAfter(r rune) bool {
	return IsDelimiter(r) || unicode.IsDigit(r)
}

// runeAfter returns the rune starting at byte offset end, or ok=false at end of text.
func runeAfter(text string, end int) (rune, bool) {
	if end >= len(text) {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return r, true
}

// runeBefore returns the rune ending at byte offset start, or ok=false at start of text.
func runeBefore(text string, start int) (rune, bool) {
	if start <= 0 {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:start])
	return r, true
}

// IsBoundaryMatch reports whether entry occurs in text as a delimited
// occurrence. Every raw occurrence is inspected left to right; an occurrence
// is accepted when the rune after it is a delimiter, a digit or the end of
// text, and it starts the text or follows a delimiter. The only whitespace
// delimiter is the literal space; tabs and line breaks are not.
func IsBoundaryMatch(entry, text string) bool {
	if entry == "" {
		return false
	}
	for cursor := 0; cursor+len(entry) <= len(text); {
		rel := strings.Index(text[cursor:], entry)
		if rel < 0 {
			return false
		}
		i := cursor + rel
		if boundaryAccepted(text, i, i+len(entry)) {
			return true
		}
		cursor = i + 1
	}
	return false
}

func boundaryAccepted(text string, start, end int) bool {
	if after, ok := runeAfter(text, end); ok && !acceptsAfter(after) {
		return false
	}
	before, ok := runeBefore(text, start)
	if !ok {
		return true
	}
	return IsDelimiter(before)
}

// IsStrictMatch is the sentence-level rule. Only the first occurrence of entry
// is considered. It is accepted when the rune after it is a delimiter or a
// digit, or the occurrence ends the sentence, and it either starts the
// sentence or follows a delimiter.
func IsStrictMatch(entry, sentence string) bool {
	if entry == "" {
		return false
	}
	start := strings.Index(sentence, entry)
	if start < 0 {
		return false
	}
	end := start + len(entry)
	if after, ok := runeAfter(sentence, end); ok && !acceptsAfter(after) {
		return false
	}
	before, ok := runeBefore(sentence, start)
	return !ok || IsDelimiter(before)
}

// isPunctuationToken reports whether tok consists only of punctuation. The
// pseudo-delimiters I and space do not count, so the pronoun survives
// cleaning.
func isPunctuationToken(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r == 'I' || r == ' ' || !IsDelimiter(r) {
			return false
		}
	}
	return true
}
