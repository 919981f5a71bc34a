// Package cooccur learns word/dataset co-occurrence counts from labeled
// context snippets and ranks datasets for unseen snippets.
package cooccur

import (
	"sort"
	"strings"
)

// Stats is the count record kept for one dataset (keyed by word) or one word
// (keyed by dataset). Count is the total number of occurrences; Unique is the
// number of distinct partner keys ever observed.
type Stats struct {
	Count  int64            `json:"count"`
	Unique int64            `json:"unique"`
	Cells  map[string]int64 `json:"cells"`
}

// Get returns the cell for key, zero when absent.
func (s Stats) Get(key string) int64 { return s.Cells[key] }

func (s *Stats) add(key string, n int64) {
	if s.Cells == nil {
		s.Cells = make(map[string]int64)
	}
	if s.Cells[key] == 0 {
		s.Unique++
	}
	s.Cells[key] += n
	s.Count += n
}

// TrainingExample is one snippet labeled with the datasets of its publication.
type TrainingExample struct {
	Snippet  string   `json:"snippet"`
	Datasets []string `json:"datasets"`
}

// Table holds the mirrored dataset->word and word->dataset statistics. Both
// sides are only written together, so Dataset(d).Get(w) == Word(w).Get(d)
// always holds.
//
// A Table is not safe for concurrent writes. Concurrent reads are fine once
// training is done.
type Table struct {
	datasets map[string]*Stats
	words    map[string]*Stats
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		datasets: make(map[string]*Stats),
		words:    make(map[string]*Stats),
	}
}

// Learn builds a table from examples.
func Learn(examples []TrainingExample) *Table {
	t := NewTable()
	t.Learn(examples)
	return t
}

// Learn adds every (dataset, token) pair of examples to the table. Snippets
// are tokenized on whitespace.
func (t *Table) Learn(examples []TrainingExample) {
	for _, ex := range examples {
		tokens := strings.Fields(ex.Snippet)
		for _, d := range ex.Datasets {
			for _, w := range tokens {
				t.add(d, w, 1)
			}
		}
	}
}

// Observe records one co-occurrence of word with dataset.
func (t *Table) Observe(dataset, word string) {
	t.add(dataset, word, 1)
}

func (t *Table) add(dataset, word string, n int64) {
	if n <= 0 {
		return
	}
	ds, ok := t.datasets[dataset]
	if !ok {
		ds = &Stats{}
		t.datasets[dataset] = ds
	}
	ws, ok := t.words[word]
	if !ok {
		ws = &Stats{}
		t.words[word] = ws
	}
	ds.add(word, n)
	ws.add(dataset, n)
}

// Merge adds every cell of other into t. Unique counts grow only for cells
// that were empty in t, so merging tables learned from two example sets gives
// the table learned from their concatenation.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for d, ds := range other.datasets {
		for w, n := range ds.Cells {
			t.add(d, w, n)
		}
	}
}

// Dataset returns the record of dataset d, or a zero record. It never inserts.
func (t *Table) Dataset(d string) Stats {
	if s, ok := t.datasets[d]; ok {
		return *s
	}
	return Stats{}
}

// Word returns the record of word w, or a zero record. It never inserts.
func (t *Table) Word(w string) Stats {
	if s, ok := t.words[w]; ok {
		return *s
	}
	return Stats{}
}

// NumDatasets is the number of datasets with any training evidence.
func (t *Table) NumDatasets() int { return len(t.datasets) }

// NumWords is the vocabulary size.
func (t *Table) NumWords() int { return len(t.words) }

// Datasets returns the dataset ids in ascending order.
func (t *Table) Datasets() []string {
	out := make([]string, 0, len(t.datasets))
	for d := range t.datasets {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
