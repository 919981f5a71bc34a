package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
)

// ExtractOutput lists the snippets found per document.
type ExtractOutput struct {
	Documents []ExtractedDocument `json:"documents"`
}

// ExtractedDocument is the extraction result of one document.
type ExtractedDocument struct {
	ID         string   `json:"id"`
	Candidates []string `json:"candidates"`
	Snippets   []string `json:"snippets"`
}

func (o ExtractOutput) TableHeaders() []string {
	return []string{"DOCUMENT", "#", "SNIPPET"}
}

func (o ExtractOutput) TableRows() [][]string {
	var rows [][]string
	for _, d := range o.Documents {
		for i, s := range d.Snippets {
			rows = append(rows, []string{d.ID, strconv.Itoa(i + 1), s})
		}
	}
	return rows
}

func (o ExtractOutput) String() string {
	var sb strings.Builder
	for _, d := range o.Documents {
		for _, s := range d.Snippets {
			sb.WriteString(d.ID)
			sb.WriteString("\t")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func newExtractCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "extract [file...]",
		Short: "Extract dataset-mention snippets from publications",
		Long: "Extract runs the lexicon boundary matcher and the window extractor over\n" +
			"each publication and prints the deduplicated snippets. Input is --text,\n" +
			"the given text files, or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			docs, err := readDocuments(cmd, args, text)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operationContext(cmd)
			defer cancel()

			svc, release, err := cliCtx.Services(ctx)
			if err != nil {
				return err
			}
			defer release()

			out := ExtractOutput{Documents: make([]ExtractedDocument, 0, len(docs))}
			for _, d := range docs {
				res, err := svc.Extraction.Extract(ctx, d.Text)
				if err != nil {
					return err
				}
				out.Documents = append(out.Documents, ExtractedDocument{
					ID:         d.ID,
					Candidates: res.Candidates,
					Snippets:   res.Snippets,
				})
				cliCtx.Logger.Debug("document extracted",
					logging.String("id", d.ID),
					logging.Int("snippets", len(res.Snippets)))
			}
			return PrintResult(cmd, out)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "publication text to extract from")
	return cmd
}
