package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const sampleCorpus = `{
  "@context": {"cito": "http://purl.org/spar/cito/"},
  "@graph": [
    {
      "@id": "https://example.org/corpus.ttl#publication-p1",
      "@type": "ResearchPublication",
      "dct:title": "Food insecurity in rural households",
      "openAccess": {"@value": "https://example.org/p1.pdf"},
      "cito:citesAsDataSource": [
        {"@id": "https://example.org/corpus.ttl#dataset-d1"},
        {"@id": "https://example.org/corpus.ttl#dataset-d2"}
      ]
    },
    {
      "@id": "https://example.org/corpus.ttl#publication-p2",
      "@type": "ResearchPublication",
      "cito:citesAsDataSource": {"@id": "https://example.org/corpus.ttl#dataset-d2"}
    },
    {
      "@id": "https://example.org/corpus.ttl#dataset-d1",
      "@type": "Dataset",
      "dct:title": {"@value": "Agricultural Resource Management Survey"},
      "foaf:page": {"@value": "https://example.org/arms"}
    },
    {
      "@id": "https://example.org/corpus.ttl#dataset-d2",
      "@type": "Dataset",
      "dct:title": "Current Population Survey"
    }
  ]
}`

func TestLoadCorpus(t *testing.T) {
	c, err := LoadCorpus(strings.NewReader(sampleCorpus))
	require.NoError(t, err)

	require.Len(t, c.Publications, 2)
	require.Len(t, c.Datasets, 2)

	p1 := c.Publications[0]
	assert.Equal(t, "p1", p1.ID)
	assert.Equal(t, "Food insecurity in rural households", p1.Title)
	assert.Equal(t, "https://example.org/p1.pdf", p1.OpenAccess)
	assert.Equal(t, []string{"d1", "d2"}, p1.DatasetIDs)
	assert.Equal(t, []string{"d2"}, c.Publications[1].DatasetIDs)

	d1, ok := c.Dataset("d1")
	require.True(t, ok)
	assert.Equal(t, "Agricultural Resource Management Survey", d1.Title)
	assert.Equal(t, "https://example.org/arms", d1.Page)

	_, ok = c.Dataset("missing")
	assert.False(t, ok)
}

func TestLoadCorpus_UnknownTypeAborts(t *testing.T) {
	in := `{"@graph": [
	  {"@id": "#dataset-d1", "@type": "Dataset"},
	  {"@id": "#person-x", "@type": "Person"}
	]}`
	c, err := LoadCorpus(strings.NewReader(in))
	assert.Nil(t, c)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAmbiguousType))
}

func TestLoadCorpus_Malformed(t *testing.T) {
	_, err := LoadCorpus(strings.NewReader(`{"@graph": [`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusParse))

	_, err = LoadCorpus(strings.NewReader(`{"items": []}`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusParse))

	_, err = LoadCorpus(strings.NewReader(`{"@graph": [{"@id": "#publication-p", "@type": "ResearchPublication", "cito:citesAsDataSource": [{}]}]}`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusParse))
}

func TestLoadCorpus_BareStringCitations(t *testing.T) {
	in := `{"@graph": [
	  {"@id": "#publication-p", "@type": "ResearchPublication", "cito:citesAsDataSource": ["ds-a", "#dataset-b"]}
	]}`
	c, err := LoadCorpus(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"ds-a", "b"}, c.Publications[0].DatasetIDs)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "1a2b", ShortID("https://example.org/corpus.ttl#publication-1a2b"))
	assert.Equal(t, "x", ShortID("#dataset-x"))
	assert.Equal(t, "plain", ShortID("plain"))
	assert.Equal(t, "ds-1", ShortID("ds-1"))
	assert.Equal(t, "frag", ShortID("https://example.org/#frag"))
	assert.Equal(t, "abc", ShortID("https://example.org/corpus.ttl#dataset-abc-def"))
}

func TestLabeled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1.txt"), []byte("We use the\nARMS data.\n"), 0o644))

	c, err := LoadCorpus(strings.NewReader(sampleCorpus))
	require.NoError(t, err)

	labeled, missing, err := c.Labeled(dir)
	require.NoError(t, err)
	require.Len(t, labeled, 1)
	assert.Equal(t, "p1", labeled[0].ID)
	assert.Equal(t, "We use the ARMS data.", labeled[0].Text)
	assert.Equal(t, []string{"d1", "d2"}, labeled[0].DatasetIDs)
	assert.Equal(t, []string{"p2"}, missing)
}

func TestLoadCorpusFile_Missing(t *testing.T) {
	_, err := LoadCorpusFile(filepath.Join(t.TempDir(), "nope.jsonld"))
	assert.True(t, errors.IsInvalidInput(err))
}
