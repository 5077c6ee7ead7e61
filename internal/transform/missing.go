package transform

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/internal/model"
)

// PolicyKind names a missing-value strategy.
type PolicyKind int

const (
	// DropRow removes rows where the column is null. It is the default
	// for columns without an explicit policy.
	DropRow PolicyKind = iota
	FillMean
	FillMedian
	FillMode
	ForwardFill
	BackwardFill
	FillConstant
)

func (k PolicyKind) String() string {
	switch k {
	case DropRow:
		return "drop"
	case FillMean:
		return "mean"
	case FillMedian:
		return "median"
	case FillMode:
		return "mode"
	case ForwardFill:
		return "ffill"
	case BackwardFill:
		return "bfill"
	case FillConstant:
		return "constant"
	}
	return "unknown"
}

// Policy is the missing-value strategy for one column. Value is used by
// FillConstant only.
type Policy struct {
	Kind  PolicyKind
	Value any
}

// ParsePolicy maps a strategy string to a Policy. The keywords drop,
// mean, median, mode, ffill and bfill select the named strategies; any
// other string becomes a fill constant, typed the same way raw CSV
// cells are.
func ParsePolicy(s string) Policy {
	switch s {
	case "drop":
		return Policy{Kind: DropRow}
	case "mean":
		return Policy{Kind: FillMean}
	case "median":
		return Policy{Kind: FillMedian}
	case "mode":
		return Policy{Kind: FillMode}
	case "ffill":
		return Policy{Kind: ForwardFill}
	case "bfill":
		return Policy{Kind: BackwardFill}
	}
	return Policy{Kind: FillConstant, Value: ingest.InferValue(s)}
}

// HandleMissing resolves nulls column by column, in dataset column
// order. Columns not named in strategy default to DropRow, so earlier
// drops shrink the rows later columns see. Mean, median and mode are
// numeric-only and fail with a ConfigurationError on columns holding
// anything else.
func (t *Transformer) HandleMissing(ds *model.Dataset, strategy map[string]Policy) (*model.Dataset, error) {
	before := len(ds.Records)
	out := ds.Clone()

	for _, col := range out.Columns {
		missing := countMissing(out.Records, col)
		if missing == 0 {
			continue
		}

		pol := strategy[col]
		switch pol.Kind {
		case DropRow:
			kept := out.Records[:0]
			for _, rec := range out.Records {
				if !model.IsMissing(rec[col]) {
					kept = append(kept, rec)
				}
			}
			out.Records = kept
			t.logger.Info("dropped rows with missing values",
				zap.String("column", col), zap.Int("rows", missing))

		case FillMean, FillMedian, FillMode:
			if err := t.fillStatistic(out, col, pol.Kind, missing); err != nil {
				return nil, err
			}

		case ForwardFill:
			var last any
			for _, rec := range out.Records {
				if model.IsMissing(rec[col]) {
					if last != nil {
						rec[col] = last
					}
				} else {
					last = rec[col]
				}
			}
			t.logger.Info("forward-filled missing values",
				zap.String("column", col), zap.Int("cells", missing))

		case BackwardFill:
			var next any
			for i := len(out.Records) - 1; i >= 0; i-- {
				rec := out.Records[i]
				if model.IsMissing(rec[col]) {
					if next != nil {
						rec[col] = next
					}
				} else {
					next = rec[col]
				}
			}
			t.logger.Info("backward-filled missing values",
				zap.String("column", col), zap.Int("cells", missing))

		case FillConstant:
			for _, rec := range out.Records {
				if model.IsMissing(rec[col]) {
					rec[col] = pol.Value
				}
			}
			t.logger.Info("filled missing values with constant",
				zap.String("column", col), zap.Any("value", pol.Value), zap.Int("cells", missing))
		}
	}

	t.record("handle_missing_values", before, len(out.Records))
	return out, nil
}

// fillStatistic fills nulls in a numeric column with its mean, median
// or mode. A column with no non-null values is left unchanged.
func (t *Transformer) fillStatistic(ds *model.Dataset, col string, kind PolicyKind, missing int) error {
	values, originals, err := numericColumn(ds, col, kind)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		t.logger.Warn("no values to compute fill statistic from",
			zap.String("column", col), zap.String("policy", kind.String()))
		return nil
	}

	var fill any
	switch kind {
	case FillMean:
		fill = mean(values)
	case FillMedian:
		fill = median(values)
	case FillMode:
		// Mode keeps the original scalar type of the winning value.
		fill = originals[mode(values)]
	}

	for _, rec := range ds.Records {
		if model.IsMissing(rec[col]) {
			rec[col] = fill
		}
	}
	t.logger.Info("filled missing values",
		zap.String("column", col),
		zap.String("policy", kind.String()),
		zap.Int("cells", missing))
	return nil
}

// numericColumn collects the non-null values of a column as float64,
// keeping the first original value per distinct float for mode fills.
// A non-numeric cell fails the numeric-only policies.
func numericColumn(ds *model.Dataset, col string, kind PolicyKind) ([]float64, map[float64]any, error) {
	var values []float64
	originals := make(map[float64]any)
	for _, rec := range ds.Records {
		v := rec[col]
		if model.IsMissing(v) {
			continue
		}
		var f float64
		switch n := v.(type) {
		case int64:
			f = float64(n)
		case float64:
			f = n
		default:
			return nil, nil, &ConfigurationError{
				Stage:  "handle_missing_values",
				Reason: fmt.Sprintf("policy %q requires a numeric column, %q holds %T values", kind, col, v),
			}
		}
		values = append(values, f)
		if _, ok := originals[f]; !ok {
			originals[f] = v
		}
	}
	return values, originals, nil
}

func countMissing(recs []model.Record, col string) int {
	n := 0
	for _, rec := range recs {
		if model.IsMissing(rec[col]) {
			n++
		}
	}
	return n
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// mode returns the most frequent value; ties break toward the smallest,
// matching how a sorted frequency table reads.
func mode(values []float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := math.Inf(1), 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}
