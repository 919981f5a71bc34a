package corpus

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// Meta is the title and description of a dataset landing page.
type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ExtractMeta reads a dataset landing page. The title comes from og:title,
// falling back to <title>. The description comes from the description meta
// tag, falling back to og:description.
func ExtractMeta(r io.Reader) (Meta, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Meta{}, errors.Wrap(err, errors.ErrCodeCorpusParse, "parse html")
	}

	title, ok := metaContent(doc, `meta[property="og:title"]`)
	if !ok {
		title = doc.Find("title").First().Text()
	}
	desc, ok := metaContent(doc, `meta[name="description"]`)
	if !ok {
		desc, _ = metaContent(doc, `meta[property="og:description"]`)
	}
	return Meta{Title: CleanHTMLText(title), Description: CleanHTMLText(desc)}, nil
}

// Paragraphs returns the cleaned text of every <p> joined with single spaces.
func Paragraphs(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCorpusParse, "parse html")
	}
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := CleanHTMLText(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " "), nil
}

func metaContent(doc *goquery.Document, selector string) (string, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Attr("content")
}
