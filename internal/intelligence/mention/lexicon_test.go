package mention

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/testutil"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

func TestReadLexiconFrom(t *testing.T) {
	lex, err := ReadLexiconFrom(
		strings.NewReader("ADNI\r\n\nNHANES \n"),
		strings.NewReader("UK Biobank\n"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADNI", "NHANES"}, lex.Abbreviations)
	assert.Equal(t, []string{"UK Biobank"}, lex.Phrases)
	assert.Equal(t, []string{"ADNI", "NHANES", "UK Biobank"}, lex.Entries())
	assert.Equal(t, 3, lex.Len())
}

func TestLoadLexicon(t *testing.T) {
	abbr := testutil.WriteFile(t, "abbr.txt", "ADNI\nNHANES\n")
	phr := testutil.WriteFile(t, "phrases.txt", "Health and Retirement Study\n")

	lex, err := LoadLexicon(abbr, phr)
	require.NoError(t, err)
	assert.Equal(t, 3, lex.Len())
}

func TestLoadLexicon_MissingFile(t *testing.T) {
	abbr := testutil.WriteFile(t, "abbr.txt", "ADNI\n")
	_, err := LoadLexicon(abbr, filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestLexicon_Nil(t *testing.T) {
	var lex *Lexicon
	assert.Equal(t, 0, lex.Len())
	assert.Nil(t, lex.Entries())
}
