package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/model"
)

var nonColumnChars = regexp.MustCompile(`[^a-z0-9_]`)

// normalizeColumn lowercases a column name, turns spaces into
// underscores, and strips everything outside [a-z0-9_].
func normalizeColumn(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "_")
	return nonColumnChars.ReplaceAllString(s, "")
}

// Clean drops exact-duplicate rows (first occurrence wins), drops rows
// that are empty across every column, and normalizes column names. It
// fails if two distinct columns normalize to the same name.
func (t *Transformer) Clean(ds *model.Dataset) (*model.Dataset, error) {
	before := len(ds.Records)

	renamed := make(map[string]string, len(ds.Columns))
	fromNorm := make(map[string]string, len(ds.Columns))
	out := model.NewDataset(ds.Name)
	for _, col := range ds.Columns {
		norm := normalizeColumn(col)
		if prev, dup := fromNorm[norm]; dup {
			return nil, eris.Errorf(
				"transform: columns %q and %q both normalize to %q", prev, col, norm)
		}
		fromNorm[norm] = col
		renamed[col] = norm
		out.AddColumns(norm)
	}

	seen := make(map[string]struct{}, len(ds.Records))
	duplicates, empties := 0, 0
	for _, rec := range ds.Records {
		key := rowFingerprint(ds.Columns, rec)
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}

		if rowEmpty(ds.Columns, rec) {
			empties++
			continue
		}

		clean := make(model.Record, len(rec))
		for col, val := range rec {
			if norm, ok := renamed[col]; ok {
				clean[norm] = val
			} else {
				clean[normalizeColumn(col)] = val
			}
		}
		out.Append(clean)
	}

	t.logger.Info("cleaned dataset",
		zap.String("dataset", ds.Name),
		zap.Int("duplicates_removed", duplicates),
		zap.Int("empty_rows_removed", empties),
		zap.Int("rows_remaining", len(out.Records)))

	t.record("clean_data", before, len(out.Records))
	return out, nil
}

// rowFingerprint renders a record into a type-tagged key so rows with
// equal values of different types never collide.
func rowFingerprint(cols []string, rec model.Record) string {
	var b strings.Builder
	for _, col := range cols {
		fmt.Fprintf(&b, "%T=%v\x1f", rec[col], rec[col])
	}
	return b.String()
}

func rowEmpty(cols []string, rec model.Record) bool {
	for _, col := range cols {
		if !model.IsMissing(rec[col]) {
			return false
		}
	}
	return true
}
