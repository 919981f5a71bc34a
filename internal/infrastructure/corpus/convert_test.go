package corpus

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/testutil"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const validPDF = "%PDF-1.4\n1 0 obj << >> endobj\ntrailer << >>\n%%EOF\n"

func fakeConvert(path string) (string, error) {
	switch filepath.Base(path) {
	case "broken.pdf":
		return "", stderrors.New("pdftotext: syntax error")
	case "scanned.pdf":
		return "  \n ", nil
	}
	return "text of " + filepath.Base(path), nil
}

func TestConvertPDF(t *testing.T) {
	c := NewConverterWithFunc(fakeConvert, nil)

	text, err := c.ConvertPDF("/data/p1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "text of p1.pdf", text)

	_, err = c.ConvertPDF("/data/broken.pdf")
	assert.True(t, errors.IsCode(err, errors.ErrCodeConversionFailed))

	_, err = c.ConvertPDF("/data/scanned.pdf")
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentEmpty))
}

func TestConvertDir(t *testing.T) {
	pdfDir := t.TempDir()
	textDir := filepath.Join(t.TempDir(), "text")
	for _, name := range []string{"p1.pdf", "p2.pdf", "broken.pdf", "notes.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(pdfDir, name), []byte(validPDF), 0o644))
	}
	require.NoError(t, os.MkdirAll(textDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(textDir, "p2.txt"), []byte("already"), 0o644))

	log := testutil.NewMockLogger()
	c := NewConverterWithFunc(fakeConvert, log)
	res, err := c.ConvertDir(context.Background(), pdfDir, textDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Failed, 1)
	assert.True(t, strings.HasSuffix(res.Failed[0], "broken.pdf"))
	assert.True(t, log.HasMessage("warn", "PDF conversion failed"))

	got, err := os.ReadFile(filepath.Join(textDir, "p1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "text of p1.pdf", string(got))

	kept, err := os.ReadFile(filepath.Join(textDir, "p2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "already", string(kept))

	res, err = c.ConvertDir(context.Background(), pdfDir, textDir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Converted)
	assert.Zero(t, res.Skipped)
}

func TestConvertDir_Cancelled(t *testing.T) {
	pdfDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "p1.pdf"), []byte(validPDF), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewConverterWithFunc(fakeConvert, nil).ConvertDir(ctx, pdfDir, t.TempDir(), false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertDir_SkipsInvalidPDF(t *testing.T) {
	pdfDir := t.TempDir()
	textDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "p1.pdf"), []byte(validPDF), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "login.pdf"), []byte("<html>sign in</html>"), 0o644))

	var converted []string
	convert := func(path string) (string, error) {
		converted = append(converted, filepath.Base(path))
		return "text", nil
	}
	log := testutil.NewMockLogger()
	res, err := NewConverterWithFunc(convert, log).ConvertDir(context.Background(), pdfDir, textDir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)
	require.Len(t, res.Failed, 1)
	assert.True(t, strings.HasSuffix(res.Failed[0], "login.pdf"))
	assert.Equal(t, []string{"p1.pdf"}, converted)
	assert.True(t, log.HasMessage("warn", "invalid PDF skipped"))
	assert.NoFileExists(t, filepath.Join(textDir, "login.txt"))
}
