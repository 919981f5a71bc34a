package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ConvertFunc turns a file into plain text.
type ConvertFunc func(path string) (string, error)

// docconvPath converts with docconv, which shells out to pdftotext for PDFs.
func docconvPath(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// Converter turns publication PDFs into the text files ReadPublicationText
// consumes.
type Converter struct {
	convert ConvertFunc
	logger  logging.Logger
}

// NewConverter returns a docconv-backed converter.
func NewConverter(logger logging.Logger) *Converter {
	return NewConverterWithFunc(docconvPath, logger)
}

// NewConverterWithFunc substitutes the conversion backend.
func NewConverterWithFunc(fn ConvertFunc, logger logging.Logger) *Converter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Converter{convert: fn, logger: logger}
}

// ConvertPDF returns the text of the PDF at path. Output with no
// non-whitespace characters is ErrCodeDocumentEmpty.
func (c *Converter) ConvertPDF(path string) (string, error) {
	text, err := c.convert(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeConversionFailed, "convert %s", path)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.Newf(errors.ErrCodeDocumentEmpty, "no text extracted from %s", path)
	}
	return text, nil
}

// ConvertResult summarizes ConvertDir.
type ConvertResult struct {
	Converted int
	Skipped   int
	Failed    []string
}

// ConvertDir converts every *.pdf in pdfDir to <textDir>/<stem>.txt. Existing
// text files are left alone unless force is set. Files that are not valid
// PDFs and files that fail to convert are recorded and the walk continues.
func (c *Converter) ConvertDir(ctx context.Context, pdfDir, textDir string, force bool) (*ConvertResult, error) {
	paths, err := filepath.Glob(filepath.Join(pdfDir, "*.pdf"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "list pdf dir")
	}
	if err := os.MkdirAll(textDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "create text dir")
	}

	res := &ConvertResult{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		out := filepath.Join(textDir, stem+".txt")
		if !force {
			if _, err := os.Stat(out); err == nil {
				res.Skipped++
				continue
			}
		}

		if !IsValidPDFFile(p) {
			c.logger.Warn("invalid PDF skipped", logging.String("path", p))
			res.Failed = append(res.Failed, p)
			continue
		}
		text, err := c.ConvertPDF(p)
		if err != nil {
			c.logger.Warn("PDF conversion failed", logging.String("path", p), logging.Err(err))
			res.Failed = append(res.Failed, p)
			continue
		}
		if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
			return res, errors.Wrapf(err, errors.ErrCodeInvalidInput, "write %s", out)
		}
		res.Converted++
	}

	c.logger.Info("PDF conversion finished",
		logging.Int("converted", res.Converted),
		logging.Int("skipped", res.Skipped),
		logging.Int("failed", len(res.Failed)))
	return res, nil
}
