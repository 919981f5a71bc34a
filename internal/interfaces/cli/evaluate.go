package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/application/prediction"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/evaluation"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// EvaluateOutput wraps an evaluation report for printing.
type EvaluateOutput struct {
	*prediction.EvaluationReport
	Missing    []string `json:"missing,omitempty"`
	ReportFile string   `json:"report_file,omitempty"`
}

func (o EvaluateOutput) TableHeaders() []string {
	return []string{"PUBLICATION", "PRECISION", "ERROR_RATE", "PREDICTED", "TRUE"}
}

func (o EvaluateOutput) TableRows() [][]string {
	rows := make([][]string, 0, len(o.Records))
	for _, r := range o.Records {
		rows = append(rows, []string{
			r.PublicationID,
			strconv.FormatFloat(r.Result.Precision, 'f', 4, 64),
			strconv.FormatFloat(r.Result.ErrorRate, 'f', 4, 64),
			strings.Join(r.YPred, ","),
			strings.Join(r.YTrue, ","),
		})
	}
	return rows
}

func (o EvaluateOutput) String() string {
	s := o.Summary
	out := fmt.Sprintf("model %s, %d documents\nprecision  mean %.4f  std %.4f\nerror rate mean %.4f  std %.4f\nperfect recall on %d documents",
		o.ModelKey, s.Documents, s.MeanPrecision, s.StdPrecision, s.MeanErrorRate, s.StdErrorRate, s.PerfectRecalls)
	if len(o.Skipped) > 0 {
		out += fmt.Sprintf("\n%d documents without ground truth skipped", len(o.Skipped))
	}
	if o.ReportKey != "" {
		out += "\nreport stored as " + o.ReportKey
	}
	if o.ReportFile != "" {
		out += "\nreport written to " + o.ReportFile
	}
	return out
}

func newEvaluateCmd() *cobra.Command {
	var (
		corpusPath string
		textDir    string
		modelKey   string
		reportFile string
		export     bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score top-5 rankings against the corpus ground truth",
		Long: "Evaluate predicts the top five datasets of every labeled publication and\n" +
			"reports precision and error rate per publication plus their mean and\n" +
			"standard deviation. --report writes an xlsx workbook locally; --export\n" +
			"stores it in the model store's report area.",
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

			if err := svc.Prediction.LoadModel(ctx, modelKey); err != nil {
				return err
			}
			rep, err := svc.Prediction.Evaluate(ctx, docs, prediction.EvaluateOptions{ExportReport: export})
			if err != nil {
				return err
			}

			out := EvaluateOutput{EvaluationReport: rep, Missing: missing}
			if reportFile != "" {
				if err := writeWorkbookFile(reportFile, rep); err != nil {
					return err
				}
				out.ReportFile = reportFile
			}
			return PrintResult(cmd, out)
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "corpus JSON-LD file (default: corpus.path)")
	cmd.Flags().StringVar(&textDir, "text-dir", "", "directory of <publication-id>.txt files (default: corpus.text_dir)")
	cmd.Flags().StringVar(&modelKey, "model", "", "model key or artifact path (default: latest)")
	cmd.Flags().StringVar(&reportFile, "report", "", "write an xlsx report to this path")
	cmd.Flags().BoolVar(&export, "export", false, "store the xlsx report in the model store")
	return cmd
}

func writeWorkbookFile(path string, rep *prediction.EvaluationReport) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "create report file").WithDetail(path)
	}
	if err := evaluation.WriteWorkbook(f, rep.Summary, rep.Records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
