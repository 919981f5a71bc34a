package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMeta_OpenGraphTitle(t *testing.T) {
	html := `<html><head>
	  <title>Ignored</title>
	  <meta property="og:title" content="Agricultural Resource  Management Survey">
	  <meta name="description" content="Annual survey of ‘farm’ finances.">
	  <meta property="og:description" content="ignored too">
	</head><body></body></html>`

	meta, err := ExtractMeta(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Agricultural Resource Management Survey", meta.Title)
	assert.Equal(t, "Annual survey of 'farm' finances.", meta.Description)
}

func TestExtractMeta_Fallbacks(t *testing.T) {
	html := "<html><head><title>\n  Current Population Survey\n</title>" +
		`<meta property="og:description" content="Monthly labor force survey.">` +
		"</head></html>"

	meta, err := ExtractMeta(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Current Population Survey", meta.Title)
	assert.Equal(t, "Monthly labor force survey.", meta.Description)
}

func TestExtractMeta_TypographicQuotes(t *testing.T) {
	html := "<html><head><title>The “NHANES” study</title></head></html>"
	meta, err := ExtractMeta(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, `The "NHANES" study`, meta.Title)
	assert.Empty(t, meta.Description)
}

func TestParagraphs(t *testing.T) {
	html := `<body><p>First  paragraph.</p><div><p>Second
	paragraph.</p></div><p> </p></body>`
	text, err := Paragraphs(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph. Second paragraph.", text)
}
