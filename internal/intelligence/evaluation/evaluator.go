// Package evaluation scores ranked dataset predictions against ground truth.
package evaluation

import (
	"fmt"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// PredictionSize is the exact length a ranked prediction must have.
const PredictionSize = 5

// Result is the outcome of one early-exit walk over a prediction.
type Result struct {
	Precision float64 `json:"precision"`
	ErrorRate float64 `json:"error_rate"`
	Correct   int     `json:"correct"`
	Errors    int     `json:"errors"`
	Consumed  int     `json:"consumed"`
}

// Evaluate walks yPred in order, counting hits against the yTrue set, and
// stops as soon as min(|yTrue|, 5) hits are found. Precision and ErrorRate
// share the same consumed denominator.
func Evaluate(yTrue, yPred []string) (Result, error) {
	if len(yTrue) == 0 {
		return Result{}, errors.NewInvalidInput("ground truth is empty")
	}
	if len(yPred) != PredictionSize {
		return Result{}, errors.NewInvalidInput("prediction must have exactly 5 elements").
			WithDetail(fmt.Sprintf("got %d", len(yPred)))
	}

	truth := make(map[string]struct{}, len(yTrue))
	for _, d := range yTrue {
		truth[d] = struct{}{}
	}
	target := len(truth)
	if target > PredictionSize {
		target = PredictionSize
	}

	var res Result
	for _, d := range yPred {
		if _, ok := truth[d]; ok {
			res.Correct++
		} else {
			res.Errors++
		}
		res.Consumed++
		if res.Correct == target {
			break
		}
	}
	res.Precision = float64(res.Correct) / float64(res.Consumed)
	res.ErrorRate = float64(res.Errors) / float64(res.Consumed)
	return res, nil
}

// Precision is Evaluate(yTrue, yPred).Precision.
func Precision(yTrue, yPred []string) (float64, error) {
	res, err := Evaluate(yTrue, yPred)
	return res.Precision, err
}

// ErrorRate is Evaluate(yTrue, yPred).ErrorRate.
func ErrorRate(yTrue, yPred []string) (float64, error) {
	res, err := Evaluate(yTrue, yPred)
	return res.ErrorRate, err
}

// PadPrediction extends ids to PredictionSize with empty placeholders, which
// never match a ground-truth id. Longer inputs are truncated.
func PadPrediction(ids []string) []string {
	out := make([]string, PredictionSize)
	copy(out, ids)
	return out
}
