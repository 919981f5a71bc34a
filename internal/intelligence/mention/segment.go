package mention

import (
	"strings"

	"gopkg.in/neurosnap/sentences.v1"
	"gopkg.in/neurosnap/sentences.v1/english"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// SentenceSegmenter splits a document into sentences in document order.
type SentenceSegmenter interface {
	Segment(text string) []string
}

// PunktSegmenter segments English text with the pre-trained punkt model.
type PunktSegmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSegmenter loads the bundled English punkt parameters.
func NewPunktSegmenter() (*PunktSegmenter, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSegmenterFailed, "load punkt model")
	}
	return &PunktSegmenter{tokenizer: tok}, nil
}

// Segment returns the trimmed, non-empty sentences of text.
func (p *PunktSegmenter) Segment(text string) []string {
	var out []string
	for _, s := range p.tokenizer.Tokenize(text) {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SegmenterFunc adapts a plain function to SentenceSegmenter.
type SegmenterFunc func(text string) []string

// Segment calls f.
func (f SegmenterFunc) Segment(text string) []string { return f(text) }
