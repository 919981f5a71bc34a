package mention

import (
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ExtractorConfig holds the tuneable parameters of the extraction pipeline.
type ExtractorConfig struct {
	LeftWindow  int `json:"left_window" yaml:"left_window" mapstructure:"left_window"`
	RightWindow int `json:"right_window" yaml:"right_window" mapstructure:"right_window"`
}

// DefaultExtractorConfig returns the 5/6 window.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{LeftWindow: DefaultLeftWindow, RightWindow: DefaultRightWindow}
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extraction is the detailed output of one document pass.
type Extraction struct {
	Candidates []string        `json:"candidates"`
	Pairs      []CandidatePair `json:"pairs"`
	Snippets   []string        `json:"snippets"`
	Sentences  int             `json:"sentences"`
	TookMs     int64           `json:"took_ms"`
}

// Extractor turns a document into deduplicated context snippets. It is safe
// for concurrent use; the lexicon can be replaced while extractions run.
type Extractor struct {
	state     atomic.Pointer[lexiconState]
	segmenter SentenceSegmenter
	windows   *WindowExtractor
	logger    logging.Logger
}

// lexiconState pairs a lexicon with the fingerprint of everything that
// shapes the snippets extracted with it.
type lexiconState struct {
	lexicon     *Lexicon
	fingerprint string
}

// ExtractorOption customises an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// WithWindowExtractor replaces the window extractor.
func WithWindowExtractor(w *WindowExtractor) ExtractorOption {
	return func(e *Extractor) { e.windows = w }
}

// NewExtractor builds an Extractor. A nil or empty lexicon is rejected.
func NewExtractor(lex *Lexicon, segmenter SentenceSegmenter, opts ...ExtractorOption) (*Extractor, error) {
	if lex.Len() == 0 {
		return nil, errors.New(errors.ErrCodeLexiconEmpty, "lexicon has no entries")
	}
	if segmenter == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "sentence segmenter is required")
	}
	e := &Extractor{
		segmenter: segmenter,
		windows:   defaultWindows,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store(lex)
	return e, nil
}

func (e *Extractor) store(lex *Lexicon) {
	e.state.Store(&lexiconState{lexicon: lex, fingerprint: e.fingerprint(lex)})
}

// fingerprint hashes the lexicon entries and window widths. Entries are
// NUL-separated and the two lists are kept apart so that moving an entry
// between them changes the hash.
func (e *Extractor) fingerprint(lex *Lexicon) string {
	left, right := e.windows.Widths()
	d := xxhash.New()
	_, _ = d.WriteString(strconv.Itoa(left) + "/" + strconv.Itoa(right) + "\x01")
	for _, a := range lex.Abbreviations {
		_, _ = d.WriteString(a + "\x00")
	}
	_, _ = d.WriteString("\x01")
	for _, p := range lex.Phrases {
		_, _ = d.WriteString(p + "\x00")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Lexicon returns the lexicon currently in use.
func (e *Extractor) Lexicon() *Lexicon { return e.state.Load().lexicon }

// Fingerprint identifies the current lexicon and window widths.
func (e *Extractor) Fingerprint() string { return e.state.Load().fingerprint }

// CacheKey is the snippet cache key of document under the current lexicon
// and window widths.
func (e *Extractor) CacheKey(document string) string {
	return e.Fingerprint() + ":" + DocumentKey(document)
}

// ReplaceLexicon swaps the lexicon for subsequent extractions.
func (e *Extractor) ReplaceLexicon(lex *Lexicon) error {
	if lex.Len() == 0 {
		return errors.New(errors.ErrCodeLexiconEmpty, "lexicon has no entries")
	}
	e.store(lex)
	e.logger.Info("lexicon replaced",
		logging.String("fingerprint", e.Fingerprint()),
		logging.Int("abbreviations", len(lex.Abbreviations)),
		logging.Int("phrases", len(lex.Phrases)))
	return nil
}

// Extract returns the sorted, deduplicated snippets for document. A document
// without any known dataset yields an empty slice.
func (e *Extractor) Extract(document string) []string {
	return e.ExtractDetailed(document).Snippets
}

// ExtractDetailed runs the pipeline and keeps its intermediate results.
func (e *Extractor) ExtractDetailed(document string) *Extraction {
	start := time.Now()
	res := &Extraction{Snippets: []string{}}

	res.Candidates = FilterCandidates(e.Lexicon(), document)
	if len(res.Candidates) == 0 {
		res.TookMs = time.Since(start).Milliseconds()
		return res
	}

	sentences := e.segmenter.Segment(document)
	res.Sentences = len(sentences)
	res.Pairs = PairEntriesToSentences(res.Candidates, sentences)

	seen := make(map[string]struct{})
	for _, p := range res.Pairs {
		for _, snippet := range e.windows.Extract(p.Sentence, p.Entry) {
			if _, ok := seen[snippet]; ok {
				continue
			}
			seen[snippet] = struct{}{}
			res.Snippets = append(res.Snippets, snippet)
		}
	}
	sort.Strings(res.Snippets)

	res.TookMs = time.Since(start).Milliseconds()
	e.logger.Debug("document extracted",
		logging.Int("candidates", len(res.Candidates)),
		logging.Int("pairs", len(res.Pairs)),
		logging.Int("snippets", len(res.Snippets)))
	return res
}

// DocumentKey is a stable content hash of a document, used for cache keys.
func DocumentKey(document string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(document))
}
