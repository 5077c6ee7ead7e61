package transform

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/internal/model"
)

// Categorize maps a numeric column into ordered labeled buckets.
// Boundaries define right-inclusive intervals with the lowest bound
// included, so bins [0,20,50,100] with labels [a,b,c] put 0 and 20 in
// a, 20.5 in b, 100 in c. Values outside the outer bounds, nulls, and
// non-numeric cells map to null. An empty newColumn defaults to
// "<column>_categoria".
func (t *Transformer) Categorize(ds *model.Dataset, column string, bins []float64, labels []string, newColumn string) (*model.Dataset, error) {
	if len(bins) != len(labels)+1 {
		return nil, &ConfigurationError{
			Stage: "categorize_numeric",
			Reason: fmt.Sprintf("%d boundaries need %d labels, got %d",
				len(bins), len(bins)-1, len(labels)),
		}
	}
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			return nil, &ConfigurationError{
				Stage:  "categorize_numeric",
				Reason: "boundaries must increase strictly",
			}
		}
	}
	if !ds.HasColumn(column) {
		return nil, &ConfigurationError{
			Stage:  "categorize_numeric",
			Reason: fmt.Sprintf("column %q not found", column),
		}
	}

	target := newColumn
	if target == "" {
		target = column + "_categoria"
	}

	out := ds.Clone()
	out.AddColumns(target)
	for _, rec := range out.Records {
		rec[target] = binLabel(rec[column], bins, labels)
	}

	t.logger.Info("categorized numeric column",
		zap.String("column", column),
		zap.String("target", target),
		zap.Int("buckets", len(labels)))
	t.record("categorize_numeric", len(ds.Records), len(out.Records))
	return out, nil
}

// binLabel places one cell into its bucket, or nil when it has none.
func binLabel(v any, bins []float64, labels []string) any {
	if model.IsMissing(v) {
		return nil
	}
	f, ok := ingest.AsFloat(v)
	if !ok {
		return nil
	}
	if f < bins[0] || f > bins[len(bins)-1] {
		return nil
	}
	// Lowest bound is included in the first interval.
	if f <= bins[1] {
		return labels[0]
	}
	for i := 2; i < len(bins); i++ {
		if f <= bins[i] {
			return labels[i-1]
		}
	}
	return nil
}
