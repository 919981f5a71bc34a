package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/application/training"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
)

// TrainOutput reports a finished training run.
type TrainOutput struct {
	*training.Result
	Missing []string `json:"missing,omitempty"`
}

func (o TrainOutput) TableHeaders() []string {
	return []string{"RUN", "MODEL", "DOCUMENTS", "EXAMPLES", "DATASETS", "WORDS"}
}

func (o TrainOutput) TableRows() [][]string {
	return [][]string{{
		o.RunID, o.ModelKey,
		strconv.Itoa(o.Documents), strconv.Itoa(o.Examples),
		strconv.Itoa(o.Datasets), strconv.Itoa(o.Words),
	}}
}

func (o TrainOutput) String() string {
	s := fmt.Sprintf("run %s trained on %d documents (%d examples): %d datasets, %d words in %s",
		o.RunID, o.Documents, o.Examples, o.Datasets, o.Words, o.Duration)
	if o.ModelKey != "" {
		s += "\nmodel saved as " + o.ModelKey
	}
	if len(o.Missing) > 0 {
		s += fmt.Sprintf("\n%d publications had no text and were skipped", len(o.Missing))
	}
	return s
}

func newTrainCmd() *cobra.Command {
	var corpusPath, textDir string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Learn a co-occurrence model from an annotated corpus",
		Long: "Train loads the corpus graph, pairs each publication with <text-dir>/<id>.txt,\n" +
			"extracts snippets, learns the dataset/word co-occurrence table and saves\n" +
			"it to the model store (MinIO when enabled, scoring.model_path otherwise).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if corpusPath == "" {
				corpusPath = cliCtx.Config.Corpus.Path
			}
			if textDir == "" {
				textDir = cliCtx.Config.Corpus.TextDir
			}
			docs, missing, err := loadLabeled(corpusPath, textDir)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				cliCtx.Logger.Warn("publications without text skipped",
					logging.Int("count", len(missing)),
					logging.Strings("ids", missing))
			}

			ctx, cancel := cliCtx.operationContext(cmd)
			defer cancel()
			svc, release, err := cliCtx.Services(ctx)
			if err != nil {
				return err
			}
			defer release()

			res, err := svc.Training.Train(ctx, docs)
			if err != nil {
				return err
			}
			return PrintResult(cmd, TrainOutput{Result: res, Missing: missing})
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "corpus JSON-LD file (default: corpus.path)")
	cmd.Flags().StringVar(&textDir, "text-dir", "", "directory of <publication-id>.txt files (default: corpus.text_dir)")
	return cmd
}
