// Package corpus reads the annotated publication/dataset corpus and turns
// publication files into the plain text the extraction pipeline consumes.
package corpus

import (
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const (
	TypePublication = "ResearchPublication"
	TypeDataset     = "Dataset"
)

// Publication is a ResearchPublication entity of the corpus graph.
type Publication struct {
	ID         string
	URI        string
	Title      string
	OpenAccess string
	DatasetIDs []string
}

// Dataset is a Dataset entity of the corpus graph.
type Dataset struct {
	ID          string
	URI         string
	Title       string
	Description string
	Page        string
}

// Corpus holds the entities of one corpus file in file order.
type Corpus struct {
	Publications []Publication
	Datasets     []Dataset

	datasetByURI map[string]string
}

// LabeledPublication is a publication paired with its text and ground truth.
type LabeledPublication struct {
	ID         string
	Text       string
	DatasetIDs []string
}

type graphFile struct {
	Graph []json.RawMessage `json:"@graph"`
}

type entity struct {
	ID        string          `json:"@id"`
	Type      string          `json:"@type"`
	Title     json.RawMessage `json:"dct:title"`
	Desc      json.RawMessage `json:"dct:description"`
	Access    json.RawMessage `json:"openAccess"`
	Page      json.RawMessage `json:"foaf:page"`
	Citations json.RawMessage `json:"cito:citesAsDataSource"`
}

// LoadCorpus parses a JSON-LD document with an @graph of publications and
// datasets. An entity of any other type aborts the load with
// ErrCodeAmbiguousType. Citations naming a dataset absent from the graph
// are kept by their short id.
func LoadCorpus(r io.Reader) (*Corpus, error) {
	var g graphFile
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusParse, "decode corpus")
	}
	if g.Graph == nil {
		return nil, errors.New(errors.ErrCodeCorpusParse, "corpus has no @graph")
	}

	c := &Corpus{datasetByURI: make(map[string]string)}
	var pending [][]string
	for i, raw := range g.Graph {
		var e entity
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeCorpusParse, "graph entry %d", i)
		}
		switch e.Type {
		case TypeDataset:
			d := Dataset{
				ID:          ShortID(e.ID),
				URI:         e.ID,
				Title:       literal(e.Title),
				Description: literal(e.Desc),
				Page:        literal(e.Page),
			}
			c.datasetByURI[e.ID] = d.ID
			c.Datasets = append(c.Datasets, d)
		case TypePublication:
			refs, err := references(e.Citations)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrCodeCorpusParse, "citations of %s", e.ID)
			}
			c.Publications = append(c.Publications, Publication{
				ID:         ShortID(e.ID),
				URI:        e.ID,
				Title:      literal(e.Title),
				OpenAccess: literal(e.Access),
			})
			pending = append(pending, refs)
		default:
			return nil, errors.Newf(errors.ErrCodeAmbiguousType, "unknown entity type %q", e.Type).WithDetail(e.ID)
		}
	}

	// Datasets may appear after the publications citing them.
	for i, refs := range pending {
		ids := make([]string, 0, len(refs))
		for _, ref := range refs {
			ids = append(ids, c.resolve(ref))
		}
		c.Publications[i].DatasetIDs = ids
	}
	return c, nil
}

// LoadCorpusFile opens path and calls LoadCorpus.
func LoadCorpusFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeInvalidInput, "open corpus %s", path)
	}
	defer f.Close()
	return LoadCorpus(f)
}

func (c *Corpus) resolve(ref string) string {
	if id, ok := c.datasetByURI[ref]; ok {
		return id
	}
	return ShortID(ref)
}

// Dataset returns the dataset with the given short id.
func (c *Corpus) Dataset(id string) (Dataset, bool) {
	for _, d := range c.Datasets {
		if d.ID == id {
			return d, true
		}
	}
	return Dataset{}, false
}

// Labeled pairs every publication with the text file <textDir>/<id>.txt.
// Publications without a text file are skipped and returned in missing.
func (c *Corpus) Labeled(textDir string) (labeled []LabeledPublication, missing []string, err error) {
	for _, p := range c.Publications {
		path := filepath.Join(textDir, p.ID+".txt")
		text, err := ReadPublicationText(path)
		if err != nil {
			if errors.IsNotFound(err) {
				missing = append(missing, p.ID)
				continue
			}
			return nil, nil, err
		}
		labeled = append(labeled, LabeledPublication{ID: p.ID, Text: text, DatasetIDs: p.DatasetIDs})
	}
	return labeled, missing, nil
}

// ShortID reduces an entity URI such as
// "https://example.org/corpus.ttl#publication-1a2b" to "1a2b". Values
// without a typed fragment are returned unchanged.
func ShortID(uri string) string {
	i := strings.LastIndexByte(uri, '#')
	if i < 0 {
		return uri
	}
	frag := uri[i+1:]
	if u, err := url.Parse(uri); err == nil && u.Fragment != "" {
		frag = u.Fragment
	}
	// The id is the second dash-separated field: #dataset-abc-def -> abc.
	if parts := strings.Split(frag, "-"); len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return frag
}

// literal reads a JSON-LD value that is either a bare string or an object
// with @value.
func literal(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v struct {
		Value string `json:"@value"`
	}
	if err := json.Unmarshal(raw, &v); err == nil {
		return v.Value
	}
	return ""
}

// references accepts a single node reference or a list of them. A node
// reference is either a bare id string or an object with @id.
func references(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		ref, err := reference(raw)
		if err != nil {
			return nil, err
		}
		return []string{ref}, nil
	}
	refs := make([]string, 0, len(list))
	for _, item := range list {
		ref, err := reference(item)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func reference(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var node struct {
		ID string `json:"@id"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return "", err
	}
	if node.ID == "" {
		return "", errors.New(errors.ErrCodeCorpusParse, "node reference without @id")
	}
	return node.ID, nil
}
