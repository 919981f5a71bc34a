package cli

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/application/training"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/corpus"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// document is one publication given on the command line.
type document struct {
	ID   string
	Text string
}

// readDocuments resolves the documents of a command: the --text value, the
// files named in args (id = file stem), or stdin when neither is given.
func readDocuments(cmd *cobra.Command, args []string, text string) ([]document, error) {
	if text != "" {
		if len(args) > 0 {
			return nil, errors.NewInvalidInput("--text cannot be combined with file arguments")
		}
		return []document{{ID: "text", Text: text}}, nil
	}
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "read stdin")
		}
		return []document{{ID: "stdin", Text: strings.Join(strings.Fields(string(data)), " ")}}, nil
	}

	docs := make([]document, 0, len(args))
	for _, path := range args {
		body, err := corpus.ReadPublicationText(path)
		if err != nil {
			return nil, err
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		docs = append(docs, document{ID: stem, Text: body})
	}
	return docs, nil
}

// loadLabeled reads the corpus file and pairs each publication with its text.
func loadLabeled(corpusPath, textDir string) ([]training.LabeledDocument, []string, error) {
	if corpusPath == "" {
		return nil, nil, errors.NewInvalidInput("corpus path is required (--corpus or corpus.path)")
	}
	if textDir == "" {
		return nil, nil, errors.NewInvalidInput("text directory is required (--text-dir or corpus.text_dir)")
	}
	c, err := corpus.LoadCorpusFile(corpusPath)
	if err != nil {
		return nil, nil, err
	}
	labeled, missing, err := c.Labeled(textDir)
	if err != nil {
		return nil, nil, err
	}
	docs := make([]training.LabeledDocument, len(labeled))
	for i, l := range labeled {
		docs[i] = training.LabeledDocument{ID: l.ID, Text: l.Text, DatasetIDs: l.DatasetIDs}
	}
	return docs, missing, nil
}
