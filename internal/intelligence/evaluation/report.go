package evaluation

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const (
	summarySheet   = "Summary"
	documentsSheet = "Documents"
)

// WriteWorkbook writes an xlsx report with a Summary sheet and one row per
// evaluated publication.
func WriteWorkbook(w io.Writer, summary Summary, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "rename summary sheet")
	}
	rows := [][]interface{}{
		{"metric", "value"},
		{"documents", summary.Documents},
		{"mean_precision", summary.MeanPrecision},
		{"std_precision", summary.StdPrecision},
		{"mean_error_rate", summary.MeanErrorRate},
		{"std_error_rate", summary.StdErrorRate},
		{"perfect_recalls", summary.PerfectRecalls},
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(documentsSheet); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "create documents sheet")
	}
	docRows := make([][]interface{}, 0, len(records)+1)
	docRows = append(docRows, []interface{}{
		"publication_id", "y_true", "y_pred", "precision", "error_rate", "correct", "errors", "consumed",
	})
	for _, r := range records {
		docRows = append(docRows, []interface{}{
			r.PublicationID,
			strings.Join(r.YTrue, "; "),
			strings.Join(r.YPred, "; "),
			r.Result.Precision,
			r.Result.ErrorRate,
			r.Result.Correct,
			r.Result.Errors,
			r.Result.Consumed,
		})
	}
	if err := writeRows(f, documentsSheet, docRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "write workbook")
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "cell name")
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return errors.Wrapf(err, errors.ErrCodeSerialization, "write %s row %d", sheet, i+1)
		}
	}
	return nil
}
