// Package mention finds delimited occurrences of known dataset names in
// publication text and turns them into fixed-width context snippets.
package mention

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// Lexicon holds the known dataset abbreviations and multi-word phrases.
// Entries are kept in file order and are not deduplicated; callers supply a
// clean list.
type Lexicon struct {
	Abbreviations []string `json:"abbreviations"`
	Phrases       []string `json:"phrases"`
}

// NewLexicon builds a Lexicon from in-memory lists.
func NewLexicon(abbreviations, phrases []string) *Lexicon {
	return &Lexicon{Abbreviations: abbreviations, Phrases: phrases}
}

// LoadLexicon reads the abbreviation and phrase files. Each file is UTF-8,
// one entry per line, without a header.
func LoadLexicon(abbrevPath, phrasePath string) (*Lexicon, error) {
	abbr, err := readEntriesFile(abbrevPath)
	if err != nil {
		return nil, err
	}
	phrases, err := readEntriesFile(phrasePath)
	if err != nil {
		return nil, err
	}
	return &Lexicon{Abbreviations: abbr, Phrases: phrases}, nil
}

// ReadLexiconFrom is LoadLexicon over readers.
func ReadLexiconFrom(abbr, phrases io.Reader) (*Lexicon, error) {
	a, err := ReadEntries(abbr)
	if err != nil {
		return nil, err
	}
	p, err := ReadEntries(phrases)
	if err != nil {
		return nil, err
	}
	return &Lexicon{Abbreviations: a, Phrases: p}, nil
}

func readEntriesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "open lexicon file").WithDetail(path)
	}
	defer f.Close()
	entries, err := ReadEntries(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "read lexicon file").WithDetail(path)
	}
	return entries, nil
}

// ReadEntries returns one entry per non-blank line with trailing CR and
// surrounding whitespace removed.
func ReadEntries(r io.Reader) ([]string, error) {
	var entries []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimRight(sc.Text(), "\r"))
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "scan lexicon")
	}
	return entries, nil
}

// Entries returns abbreviations followed by phrases.
func (l *Lexicon) Entries() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.Abbreviations)+len(l.Phrases))
	out = append(out, l.Abbreviations...)
	return append(out, l.Phrases...)
}

// Len is the total number of entries.
func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Abbreviations) + len(l.Phrases)
}
