package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"

	"github.com/centrally/ingest-cli/internal/model"
)

// Snapshot names the raw artifact pair written for one ingest.
type Snapshot struct {
	JSONPath string
	CSVPath  string
}

// WriteSnapshots writes `<dataset>_<YYYYMMDD_HHMMSS>.json` and `.csv` under
// dir. withBOM prefixes the CSV with a UTF-8 byte order mark (Socrata
// snapshots are opened in Excel by analysts; the BOM keeps accents intact).
func WriteSnapshots(ds *model.Dataset, dir string, withBOM bool, at time.Time) (Snapshot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Snapshot{}, eris.Wrapf(err, "ingest: create raw dir %s", dir)
	}

	base := filepath.Join(dir, fmt.Sprintf("%s_%s", ds.Name, at.Format("20060102_150405")))
	snap := Snapshot{JSONPath: base + ".json", CSVPath: base + ".csv"}

	jsonBytes, err := jsonSnapshotBytes(ds)
	if err != nil {
		return Snapshot{}, err
	}
	if err := os.WriteFile(snap.JSONPath, jsonBytes, 0o644); err != nil {
		return Snapshot{}, eris.Wrapf(err, "ingest: write %s", snap.JSONPath)
	}

	csvBytes, err := csvSnapshotBytes(ds, withBOM)
	if err != nil {
		return Snapshot{}, err
	}
	if err := os.WriteFile(snap.CSVPath, csvBytes, 0o644); err != nil {
		return Snapshot{}, eris.Wrapf(err, "ingest: write %s", snap.CSVPath)
	}

	return snap, nil
}

// WriteCSVFile writes the dataset as plain UTF-8 CSV at path, creating
// parent directories and replacing any existing file.
func WriteCSVFile(ds *model.Dataset, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "ingest: create dir %s", dir)
		}
	}
	data, err := csvSnapshotBytes(ds, false)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "ingest: write %s", path)
	}
	return nil
}

// jsonSnapshotBytes renders records as a two-space-indented JSON array with
// dataset column order preserved and every column present (null when
// absent). Key order and per-value encoding are fixed so identical input
// produces identical bytes.
func jsonSnapshotBytes(ds *model.Dataset) ([]byte, error) {
	if len(ds.Records) == 0 {
		return []byte("[]"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, rec := range ds.Records {
		buf.WriteString("  {\n")
		for j, col := range ds.Columns {
			key, err := marshalJSON(col)
			if err != nil {
				return nil, err
			}
			var val []byte
			v := rec[col]
			if model.IsMissing(v) {
				val = []byte("null")
			} else {
				val, err = marshalJSON(v)
				if err != nil {
					return nil, err
				}
			}
			buf.WriteString("    ")
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(val)
			if j < len(ds.Columns)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString("  }")
		if i < len(ds.Records)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]")
	return buf.Bytes(), nil
}

// marshalJSON encodes without HTML escaping so accented text stays literal.
func marshalJSON(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, eris.Wrap(err, "ingest: encode snapshot value")
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

func csvSnapshotBytes(ds *model.Dataset, withBOM bool) ([]byte, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf
	var tw io.WriteCloser
	if withBOM {
		tw = unicode.UTF8BOM.NewEncoder().Writer(&buf).(io.WriteCloser)
		w = tw
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns); err != nil {
		return nil, eris.Wrap(err, "ingest: write csv header")
	}
	for _, rec := range ds.Records {
		row := make([]string, len(ds.Columns))
		for i, col := range ds.Columns {
			row[i] = model.FormatCell(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return nil, eris.Wrap(err, "ingest: write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, eris.Wrap(err, "ingest: flush csv")
	}
	if tw != nil {
		if err := tw.Close(); err != nil {
			return nil, eris.Wrap(err, "ingest: flush bom writer")
		}
	}
	return buf.Bytes(), nil
}
