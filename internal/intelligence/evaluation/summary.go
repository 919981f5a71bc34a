package evaluation

import (
	"gonum.org/v1/gonum/stat"
)

// Record is the evaluation of one publication.
type Record struct {
	PublicationID string   `json:"publication_id"`
	YTrue         []string `json:"y_true"`
	YPred         []string `json:"y_pred"`
	Result        Result   `json:"result"`
}

// Summary aggregates the records of an evaluation run.
type Summary struct {
	Documents      int     `json:"documents"`
	MeanPrecision  float64 `json:"mean_precision"`
	StdPrecision   float64 `json:"std_precision"`
	MeanErrorRate  float64 `json:"mean_error_rate"`
	StdErrorRate   float64 `json:"std_error_rate"`
	PerfectRecalls int     `json:"perfect_recalls"`
}

// Summarize computes mean and sample standard deviation of the per-document
// metrics. Standard deviations are zero below two documents.
func Summarize(records []Record) Summary {
	s := Summary{Documents: len(records)}
	if len(records) == 0 {
		return s
	}

	prec := make([]float64, len(records))
	errs := make([]float64, len(records))
	for i, r := range records {
		prec[i] = r.Result.Precision
		errs[i] = r.Result.ErrorRate
		if r.Result.Errors == 0 {
			s.PerfectRecalls++
		}
	}

	if len(records) < 2 {
		s.MeanPrecision = prec[0]
		s.MeanErrorRate = errs[0]
		return s
	}
	s.MeanPrecision, s.StdPrecision = stat.MeanStdDev(prec, nil)
	s.MeanErrorRate, s.StdErrorRate = stat.MeanStdDev(errs, nil)
	return s
}
