package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/centrally/ingest-cli/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeError is returned when a file cannot be decoded with the requested
// encoding, including the single fallback attempt.
type DecodeError struct {
	Path  string
	Tried []string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ingest: decode %s failed (tried %s): %v",
		e.Path, strings.Join(e.Tried, ", "), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CSVOptions configures local CSV reading.
type CSVOptions struct {
	// Encoding is the primary charset. Empty means UTF-8 with a single
	// Latin-1 fallback on invalid input.
	Encoding string
	// Fallback is tried once when the primary decode fails. Ignored when
	// Encoding is empty (the default pair is fixed).
	Fallback string
	// Separator is the field delimiter; 0 sniffs the header line.
	Separator rune
}

// ReadCSVFile reads a local CSV into a typed dataset. The header row
// supplies column names verbatim; cells are type-inferred (int64, float64,
// nil for empty, string otherwise).
func ReadCSVFile(path string, opts CSVOptions) (*model.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}

	text, err := decodeWithFallback(path, data, opts.Encoding, opts.Fallback)
	if err != nil {
		return nil, err
	}

	sep := opts.Separator
	if sep == 0 {
		sep = sniffSeparator(text)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = sep
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("ingest: %s is empty", path)
	}

	name := datasetNameFromPath(path)
	ds := model.NewDataset(name)
	header := rows[0]
	ds.AddColumns(header...)

	for _, row := range rows[1:] {
		rec := make(model.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = InferValue(row[i])
			} else {
				rec[col] = nil
			}
		}
		ds.Append(rec)
	}

	return ds, nil
}

// decodeWithFallback decodes raw bytes, trying the primary encoding and then
// exactly one fallback. A second failure is fatal.
func decodeWithFallback(path string, data []byte, primary, fallback string) ([]byte, error) {
	if primary == "" {
		primary, fallback = "utf-8", "latin-1"
	}

	tried := []string{primary}
	out, primaryErr := decodeBytes(data, primary)
	if primaryErr == nil {
		return out, nil
	}

	if fallback == "" {
		return nil, &DecodeError{Path: path, Tried: tried, Err: primaryErr}
	}

	tried = append(tried, fallback)
	out, fallbackErr := decodeBytes(data, fallback)
	if fallbackErr != nil {
		return nil, &DecodeError{Path: path, Tried: tried, Err: fallbackErr}
	}
	return out, nil
}

// decodeBytes decodes data from the named charset to UTF-8, stripping any
// byte order mark. UTF-8 input is validated rather than transcoded.
func decodeBytes(data []byte, name string) ([]byte, error) {
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		if !utf8.Valid(data) {
			return nil, eris.New("invalid utf-8 byte sequence")
		}
		return bytes.TrimPrefix(data, utf8BOM), nil
	case "latin-1", "latin1", "iso-8859-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, eris.Wrap(err, "latin-1 decode")
		}
		return out, nil
	default:
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, eris.Wrapf(err, "unsupported encoding %q", name)
		}
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, eris.Wrapf(err, "%s decode", name)
		}
		return bytes.TrimPrefix(out, utf8BOM), nil
	}
}

// sniffSeparator picks the delimiter appearing most often in the header
// line. Comma wins ties.
func sniffSeparator(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, cand := range []byte{';', '\t', '|'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best, bestCount = rune(cand), n
		}
	}
	return best
}

// datasetNameFromPath derives a dataset name from a file path: base name
// without extension.
func datasetNameFromPath(path string) string {
	base := path
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}
