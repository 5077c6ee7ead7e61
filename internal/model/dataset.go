package model

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// Record is a single raw row as received from a source: an opaque mapping
// from column name to cell value. Cell values are nil, string, int64,
// float64, bool, or time.Time.
type Record map[string]any

// Dataset is an ordered sequence of records plus provenance metadata.
// Column order is the union of record keys in first-appearance order.
type Dataset struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
	Meta    Metadata `json:"metadata"`

	seen map[string]bool
}

// Metadata carries provenance for one ingested dataset.
type Metadata struct {
	Dataset       string            `json:"dataset_name"`
	Source        string            `json:"source"`
	IngestedAt    time.Time         `json:"ingestion_timestamp"`
	Rows          int               `json:"rows"`
	Cols          int               `json:"columns"`
	ColumnNames   []string          `json:"column_names"`
	ColumnKinds   map[string]string `json:"column_kinds,omitempty"`
	MissingValues map[string]int    `json:"missing_values,omitempty"`
}

// NewDataset creates an empty dataset with the given name.
func NewDataset(name string) *Dataset {
	return &Dataset{Name: name, seen: make(map[string]bool)}
}

// AddColumns registers columns in order, skipping any already present.
func (d *Dataset) AddColumns(names ...string) {
	if d.seen == nil {
		d.seen = make(map[string]bool, len(d.Columns))
		for _, c := range d.Columns {
			d.seen[c] = true
		}
	}
	for _, n := range names {
		if !d.seen[n] {
			d.seen[n] = true
			d.Columns = append(d.Columns, n)
		}
	}
}

// Append adds a record. Keys not yet registered as columns are appended in
// sorted order; callers that know the source column order should call
// AddColumns first.
func (d *Dataset) Append(r Record) {
	var extra []string
	for k := range r {
		if d.seen == nil || !d.seen[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		d.AddColumns(extra...)
	}
	d.Records = append(d.Records, r)
}

// HasColumn reports whether the dataset declares the named column.
func (d *Dataset) HasColumn(name string) bool {
	if d.seen != nil {
		return d.seen[name]
	}
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Cell values are immutable scalars, so records
// are copied one map level down.
func (d *Dataset) Clone() *Dataset {
	out := NewDataset(d.Name)
	out.Meta = d.Meta
	out.AddColumns(d.Columns...)
	out.Records = make([]Record, 0, len(d.Records))
	for _, r := range d.Records {
		nr := make(Record, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Records = append(out.Records, nr)
	}
	return out
}

// Finalize computes provenance metadata from the current records.
func (d *Dataset) Finalize(source string, at time.Time) {
	kinds := make(map[string]string, len(d.Columns))
	missing := make(map[string]int, len(d.Columns))
	for _, col := range d.Columns {
		kinds[col] = d.columnKind(col)
		n := 0
		for _, r := range d.Records {
			if IsMissing(r[col]) {
				n++
			}
		}
		missing[col] = n
	}
	d.Meta = Metadata{
		Dataset:       d.Name,
		Source:        source,
		IngestedAt:    at,
		Rows:          len(d.Records),
		Cols:          len(d.Columns),
		ColumnNames:   append([]string(nil), d.Columns...),
		ColumnKinds:   kinds,
		MissingValues: missing,
	}
}

func (d *Dataset) columnKind(col string) string {
	kind := ""
	for _, r := range d.Records {
		v := r[col]
		if IsMissing(v) {
			continue
		}
		var k string
		switch v.(type) {
		case string:
			k = "string"
		case int64:
			k = "int64"
		case float64:
			k = "float64"
		case bool:
			k = "bool"
		case time.Time:
			k = "datetime"
		default:
			k = "unknown"
		}
		if kind == "" {
			kind = k
		} else if kind != k {
			return "mixed"
		}
	}
	if kind == "" {
		return "null"
	}
	return kind
}

// IsMissing reports whether a cell value counts as missing: nil, the empty
// string, or a NaN float.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return math.IsNaN(t)
	default:
		return false
	}
}

// FormatCell renders a cell value as a CSV field. Missing values render as
// the empty string; floats use the shortest exact representation so reruns
// on identical input stay byte-identical.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}
