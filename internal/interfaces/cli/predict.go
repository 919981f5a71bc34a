package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/application/prediction"
)

// PredictOutput holds the ranking of each document.
type PredictOutput struct {
	Model       string                   `json:"model"`
	Predictions []*prediction.Prediction `json:"predictions"`
}

func (o PredictOutput) TableHeaders() []string {
	return []string{"DOCUMENT", "RANK", "DATASET", "SCORE"}
}

func (o PredictOutput) TableRows() [][]string {
	var rows [][]string
	for _, p := range o.Predictions {
		for i, d := range p.Datasets {
			rows = append(rows, []string{
				p.PublicationID,
				strconv.Itoa(i + 1),
				d.Dataset,
				strconv.FormatFloat(d.Score, 'f', 4, 64),
			})
		}
	}
	return rows
}

func (o PredictOutput) String() string {
	var sb strings.Builder
	for _, p := range o.Predictions {
		ids := make([]string, len(p.Datasets))
		for i, d := range p.Datasets {
			ids[i] = d.Dataset
		}
		sb.WriteString(p.PublicationID)
		sb.WriteString("\t")
		sb.WriteString(strings.Join(ids, ","))
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func newPredictCmd() *cobra.Command {
	var (
		text     string
		modelKey string
		topK     int
	)

	cmd := &cobra.Command{
		Use:   "predict [file...]",
		Short: "Rank the datasets most likely used by publications",
		Long: "Predict extracts snippets from each publication, joins them into one\n" +
			"context and ranks datasets with the trained co-occurrence model. Input\n" +
			"is --text, the given text files, or stdin.",
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

			if err := svc.Prediction.LoadModel(ctx, modelKey); err != nil {
				return err
			}
			out := PredictOutput{Model: svc.Prediction.Model().Key}
			for _, d := range docs {
				p, err := svc.Prediction.PredictDocument(ctx, d.ID, d.Text, topK)
				if err != nil {
					return err
				}
				out.Predictions = append(out.Predictions, p)
			}
			return PrintResult(cmd, out)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "publication text to rank datasets for")
	cmd.Flags().StringVar(&modelKey, "model", "", "model key or artifact path (default: latest)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of datasets to return (default: scoring.top_k)")
	return cmd
}
