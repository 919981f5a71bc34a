package corpus

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const consolidatedVersion = 1

// DatasetRecord is a dataset together with what was parsed from its landing
// page.
type DatasetRecord struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Page        string `json:"page,omitempty"`
	Meta        *Meta  `json:"meta,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// PublicationRecord is a publication together with its text and the 1-based
// indexes of the datasets it cites.
type PublicationRecord struct {
	ID          string   `json:"id"`
	URI         string   `json:"uri"`
	Title       string   `json:"title,omitempty"`
	OpenAccess  string   `json:"open_access,omitempty"`
	DatasetIDs  []string `json:"dataset_ids"`
	CitationIdx []int    `json:"citation_idx"`
	Text        string   `json:"text,omitempty"`
}

// Consolidated is the corpus joined with the downloaded resources, as stored
// in the corpus cache file.
type Consolidated struct {
	Version      int                 `json:"version"`
	DatasetIndex map[string]int      `json:"dataset_idx"`
	Datasets     []DatasetRecord     `json:"datasets"`
	Publications []PublicationRecord `json:"pubs"`
}

// ConsolidateOptions locates the resources joined into a Consolidated corpus.
type ConsolidateOptions struct {
	HTMLDir string
	TextDir string
	// CacheFile is resolved against the corpus directory when relative.
	CacheFile string
	// Force rebuilds even when a cache file exists.
	Force bool
}

// CachePath resolves cacheFile against the directory of corpusPath.
func CachePath(corpusPath, cacheFile string) string {
	if filepath.IsAbs(cacheFile) {
		return cacheFile
	}
	return filepath.Join(filepath.Dir(corpusPath), cacheFile)
}

// Consolidate joins c with the dataset pages in htmlDir and the publication
// texts in textDir. Missing pages and texts leave the record fields empty.
// Datasets are numbered from 1 in corpus order.
func Consolidate(c *Corpus, htmlDir, textDir string, logger logging.Logger) (*Consolidated, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	out := &Consolidated{
		Version:      consolidatedVersion,
		DatasetIndex: make(map[string]int, len(c.Datasets)),
		Datasets:     make([]DatasetRecord, 0, len(c.Datasets)),
		Publications: make([]PublicationRecord, 0, len(c.Publications)),
	}

	for i, d := range c.Datasets {
		out.DatasetIndex[d.ID] = i + 1
		rec := DatasetRecord{ID: d.ID, URI: d.URI, Title: d.Title, Description: d.Description, Page: d.Page}
		if htmlDir != "" {
			meta, summary, err := parseLandingPage(filepath.Join(htmlDir, d.ID+".html"))
			switch {
			case err == nil:
				rec.Meta = &meta
				rec.Summary = summary
			case !errors.Is(err, fs.ErrNotExist):
				return nil, err
			}
		}
		out.Datasets = append(out.Datasets, rec)
	}

	for _, p := range c.Publications {
		rec := PublicationRecord{
			ID:          p.ID,
			URI:         p.URI,
			Title:       p.Title,
			OpenAccess:  p.OpenAccess,
			DatasetIDs:  p.DatasetIDs,
			CitationIdx: make([]int, 0, len(p.DatasetIDs)),
		}
		for _, id := range p.DatasetIDs {
			if idx, ok := out.DatasetIndex[id]; ok {
				rec.CitationIdx = append(rec.CitationIdx, idx)
			} else {
				logger.Debug("citation of unknown dataset", logging.String("publication", p.ID), logging.String("dataset", id))
			}
		}
		if textDir != "" {
			text, err := ReadPublicationText(filepath.Join(textDir, p.ID+".txt"))
			if err == nil {
				rec.Text = text
			}
		}
		out.Publications = append(out.Publications, rec)
	}
	return out, nil
}

func parseLandingPage(path string) (Meta, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, "", errors.Wrap(err, errors.ErrCodeInvalidInput, "read landing page").WithDetail(path)
	}
	meta, err := ExtractMeta(bytes.NewReader(raw))
	if err != nil {
		return Meta{}, "", err
	}
	summary, err := Paragraphs(bytes.NewReader(raw))
	if err != nil {
		return Meta{}, "", err
	}
	return meta, summary, nil
}

// LoadConsolidated returns the consolidated corpus for corpusPath. A cache
// file of the current version is returned as is unless opts.Force is set;
// otherwise the corpus is rebuilt and the cache rewritten. The second result
// reports whether the cache was used.
func LoadConsolidated(corpusPath string, opts ConsolidateOptions, logger logging.Logger) (*Consolidated, bool, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cachePath := CachePath(corpusPath, opts.CacheFile)

	if !opts.Force {
		cached, err := readConsolidated(cachePath)
		switch {
		case err == nil:
			return cached, true, nil
		case !errors.Is(err, fs.ErrNotExist):
			logger.Warn("corpus cache unusable, rebuilding", logging.String("path", cachePath), logging.Err(err))
		}
	}

	c, err := LoadCorpusFile(corpusPath)
	if err != nil {
		return nil, false, err
	}
	out, err := Consolidate(c, opts.HTMLDir, opts.TextDir, logger)
	if err != nil {
		return nil, false, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeSerialization, "encode corpus cache")
	}
	if err := writeFileAtomic(cachePath, data); err != nil {
		return nil, false, err
	}
	logger.Info("corpus cache written",
		logging.String("path", cachePath),
		logging.Int("publications", len(out.Publications)),
		logging.Int("datasets", len(out.Datasets)))
	return out, false, nil
}

func readConsolidated(path string) (*Consolidated, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "read corpus cache")
	}
	var out Consolidated
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusParse, "decode corpus cache")
	}
	if out.Version != consolidatedVersion {
		return nil, errors.Newf(errors.ErrCodeCorpusParse, "corpus cache version %d, want %d", out.Version, consolidatedVersion)
	}
	return &out, nil
}
