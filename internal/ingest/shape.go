package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/centrally/ingest-cli/internal/model"
)

// Shape identifies which of the known response layouts a payload matched.
// The precedence is fixed: a bare array wins, then a "results" envelope,
// then a "data" envelope, then the whole object is wrapped as one record.
type Shape int

const (
	ShapeList Shape = iota
	ShapeResults
	ShapeData
	ShapeObject
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeResults:
		return "results"
	case ShapeData:
		return "data"
	case ShapeObject:
		return "object"
	default:
		return "unknown"
	}
}

// DecodeRecords interprets a JSON payload as records. Returns the records,
// the union of their columns in first-appearance order, and the matched
// shape. Scalar cells are typed (string, int64, float64, bool, nil); nested
// composites re-marshal to compact JSON strings so they stay CSV-writable.
func DecodeRecords(body []byte) ([]model.Record, []string, Shape, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil, ShapeList, eris.New("ingest: empty response body")
	}

	if trimmed[0] == '[' {
		recs, cols, err := decodeRecordArray(trimmed)
		if err != nil {
			return nil, nil, ShapeList, err
		}
		return recs, cols, ShapeList, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, nil, ShapeObject, eris.Wrap(err, "ingest: decode response")
	}

	if raw, ok := top["results"]; ok {
		recs, cols, err := decodeRecordArray(raw)
		if err != nil {
			return nil, nil, ShapeResults, err
		}
		return recs, cols, ShapeResults, nil
	}
	if raw, ok := top["data"]; ok {
		recs, cols, err := decodeRecordArray(raw)
		if err != nil {
			return nil, nil, ShapeData, err
		}
		return recs, cols, ShapeData, nil
	}

	rec, keys, err := decodeOneRecord(trimmed)
	if err != nil {
		return nil, nil, ShapeObject, err
	}
	return []model.Record{rec}, keys, ShapeObject, nil
}

// decodeRecordArray decodes a JSON array of objects, preserving per-object
// key order and accumulating the column union in first-appearance order.
func decodeRecordArray(raw []byte) ([]model.Record, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: decode response")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, nil, eris.Errorf("ingest: expected array, got %v", tok)
	}

	var (
		records []model.Record
		columns []string
		seen    = map[string]bool{}
	)
	for dec.More() {
		rec, keys, err := decodeObject(dec)
		if err != nil {
			return nil, nil, err
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, eris.Wrap(err, "ingest: decode response")
	}
	return records, columns, nil
}

// decodeOneRecord decodes a single top-level JSON object as one record.
func decodeOneRecord(raw []byte) (model.Record, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return decodeObject(dec)
}

// decodeObject consumes one object from the token stream, keeping key order.
func decodeObject(dec *json.Decoder) (model.Record, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: decode record")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, eris.Errorf("ingest: expected record object, got %v", tok)
	}

	rec := model.Record{}
	var keys []string
	for dec.More() {
		kTok, err := dec.Token()
		if err != nil {
			return nil, nil, eris.Wrap(err, "ingest: decode record key")
		}
		key, ok := kTok.(string)
		if !ok {
			return nil, nil, eris.Errorf("ingest: expected string key, got %v", kTok)
		}
		val, err := decodeCell(dec)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		rec[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, eris.Wrap(err, "ingest: decode record")
	}
	return rec, keys, nil
}

// decodeCell decodes the next value as a typed cell.
func decodeCell(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: decode cell")
	}
	switch t := tok.(type) {
	case json.Delim:
		nested, err := decodeNested(dec, t)
		if err != nil {
			return nil, err
		}
		buf, err := json.Marshal(nested)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: flatten nested cell")
		}
		return string(buf), nil
	default:
		return scalarCell(tok), nil
	}
}

// decodeNested rebuilds a nested composite after its opening delimiter has
// been consumed. Key order inside nested cells is not significant; they are
// flattened to canonical JSON anyway.
func decodeNested(dec *json.Decoder, open json.Delim) (any, error) {
	switch open {
	case '{':
		m := map[string]any{}
		for dec.More() {
			kTok, err := dec.Token()
			if err != nil {
				return nil, eris.Wrap(err, "ingest: decode nested key")
			}
			key, ok := kTok.(string)
			if !ok {
				return nil, eris.Errorf("ingest: expected string key, got %v", kTok)
			}
			v, err := decodeNestedValue(dec)
			if err != nil {
				return nil, err
			}
			m[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, eris.Wrap(err, "ingest: decode nested object")
		}
		return m, nil
	case '[':
		var a []any
		for dec.More() {
			v, err := decodeNestedValue(dec)
			if err != nil {
				return nil, err
			}
			a = append(a, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, eris.Wrap(err, "ingest: decode nested array")
		}
		if a == nil {
			a = []any{}
		}
		return a, nil
	default:
		return nil, eris.Errorf("ingest: unexpected delimiter %v", open)
	}
}

func decodeNestedValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: decode nested value")
	}
	if d, ok := tok.(json.Delim); ok {
		return decodeNested(dec, d)
	}
	return scalarCell(tok), nil
}

// scalarCell maps a JSON scalar token to a cell value. Integral numbers
// become int64, the rest float64.
func scalarCell(tok json.Token) any {
	switch t := tok.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i
			}
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return s
	case string:
		return t
	case bool:
		return t
	case nil:
		return nil
	default:
		return nil
	}
}
