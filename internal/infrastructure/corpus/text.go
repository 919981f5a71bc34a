package corpus

import (
	"bufio"
	stderrors "errors"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const maxLineBytes = 4 * 1024 * 1024

// ReadPublicationText reads a converted publication and joins its lines with
// single spaces. Line content is kept as is, so a blank line contributes an
// extra space. A missing file yields ErrCodeNotFound.
func ReadPublicationText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", errors.Wrapf(err, errors.ErrCodeNotFound, "publication text %s", path)
		}
		return "", errors.Wrapf(err, errors.ErrCodeInvalidInput, "open publication text %s", path)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeInvalidInput, "read publication text %s", path)
	}
	return strings.Join(lines, " "), nil
}

var quoteFolder = strings.NewReplacer(
	"''", `"`,
	"\u2018\u2018", "'",
	"\u2018", "'",
	"\u2019", "'",
	"\u201a", "'",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2013", " - ",
	"\u00a0", " ",
	"\t", " ",
	"\r", " ",
	"\n", " ",
)

// Normalize composes text to NFC and folds typographic quotes and dashes to
// their ASCII forms.
func Normalize(text string) string {
	return quoteFolder.Replace(norm.NFC.String(text))
}

// CleanHTMLText normalizes text scraped from HTML and collapses runs of
// whitespace.
func CleanHTMLText(text string) string {
	return strings.Join(strings.Fields(Normalize(text)), " ")
}
