package cooccur

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/golang/snappy"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// SnapshotVersion is the persisted format version.
const SnapshotVersion = 1

// snappyStreamMagic is the first byte of a framed snappy stream.
const snappyStreamMagic = 0xff

// Snapshot is the persisted form of a Table: two nested count mappings with
// explicit count and unique fields.
type Snapshot struct {
	Version  int              `json:"version"`
	Datasets map[string]Stats `json:"datasets"`
	Words    map[string]Stats `json:"words"`
}

// Snapshot returns a deep copy of the table.
func (t *Table) Snapshot() Snapshot {
	return Snapshot{
		Version:  SnapshotVersion,
		Datasets: copySide(t.datasets),
		Words:    copySide(t.words),
	}
}

func copySide(side map[string]*Stats) map[string]Stats {
	out := make(map[string]Stats, len(side))
	for k, s := range side {
		cells := make(map[string]int64, len(s.Cells))
		for ck, n := range s.Cells {
			cells[ck] = n
		}
		out[k] = Stats{Count: s.Count, Unique: s.Unique, Cells: cells}
	}
	return out
}

// FromSnapshot rebuilds a Table and verifies that both sides mirror each other.
func FromSnapshot(s Snapshot) (*Table, error) {
	if s.Version != SnapshotVersion {
		return nil, errors.Newf(errors.ErrCodeModelCorrupt, "unsupported snapshot version %d", s.Version)
	}
	t := NewTable()
	for d, ds := range s.Datasets {
		for w, n := range ds.Cells {
			if n <= 0 {
				return nil, errors.Newf(errors.ErrCodeModelCorrupt, "non-positive cell %s/%s", d, w)
			}
			if s.Words[w].Cells[d] != n {
				return nil, errors.Newf(errors.ErrCodeModelCorrupt, "tables diverge at %s/%s", d, w)
			}
			t.add(d, w, n)
		}
	}
	for w, ws := range s.Words {
		if len(ws.Cells) != int(t.Word(w).Unique) {
			return nil, errors.Newf(errors.ErrCodeModelCorrupt, "word %q has cells missing from dataset side", w)
		}
	}
	for d, ds := range s.Datasets {
		got := t.Dataset(d)
		if got.Count != ds.Count || got.Unique != ds.Unique {
			return nil, errors.Newf(errors.ErrCodeModelCorrupt, "dataset %q totals do not match its cells", d)
		}
	}
	return t, nil
}

// Encode writes t as JSON.
func Encode(w io.Writer, t *Table) error {
	if err := json.NewEncoder(w).Encode(t.Snapshot()); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode co-occurrence table")
	}
	return nil
}

// Decode reads a JSON table written by Encode.
func Decode(r io.Reader) (*Table, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelCorrupt, "decode co-occurrence table")
	}
	return FromSnapshot(s)
}

// MarshalArtifact serialises t, optionally as a framed snappy stream.
func MarshalArtifact(t *Table, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if !compress {
		if err := Encode(&buf, t); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	sw := snappy.NewBufferedWriter(&buf)
	if err := Encode(sw, t); err != nil {
		return nil, err
	}
	if err := sw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "flush snappy stream")
	}
	return buf.Bytes(), nil
}

// UnmarshalArtifact accepts both plain JSON and snappy-framed artifacts.
func UnmarshalArtifact(data []byte) (*Table, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeModelCorrupt, "empty model artifact")
	}
	var r io.Reader = bytes.NewReader(data)
	if data[0] == snappyStreamMagic {
		r = snappy.NewReader(r)
	}
	return Decode(r)
}
