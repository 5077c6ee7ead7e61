package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/internal/model"
)

// Mode selects how violations are reported.
type Mode int

const (
	// CollectAll accumulates every violation and fails once with the
	// complete list.
	CollectAll Mode = iota
	// FailFast stops at the first violation encountered.
	FailFast
)

func (m Mode) String() string {
	if m == FailFast {
		return "fail-fast"
	}
	return "collect-all"
}

// ViolationKind classifies a constraint violation.
type ViolationKind string

const (
	ViolationMissingColumn ViolationKind = "missing_column"
	ViolationRequired      ViolationKind = "required"
	ViolationType          ViolationKind = "type"
	ViolationRange         ViolationKind = "range"
	ViolationAllowed       ViolationKind = "allowed"
	ViolationUnique        ViolationKind = "unique"
)

// Violation is one failed constraint. Row is the zero-based record
// index, or -1 for dataset-level violations such as a missing column.
type Violation struct {
	Column string
	Row    int
	Kind   ViolationKind
	Value  any
	Detail string
}

func (v Violation) String() string {
	if v.Row < 0 {
		return fmt.Sprintf("column %q: %s: %s", v.Column, v.Kind, v.Detail)
	}
	return fmt.Sprintf("row %d column %q: %s: %s", v.Row, v.Column, v.Kind, v.Detail)
}

// ValidationError reports every violation found.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: dataset failed validation against %q: %d violation(s)",
		e.Schema, len(e.Violations))
}

// Validator checks datasets against registered schemas.
type Validator struct {
	registry *Registry
	logger   *zap.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = l }
}

// NewValidator builds a validator over the given registry.
func NewValidator(reg *Registry, opts ...ValidatorOption) *Validator {
	v := &Validator{registry: reg, logger: zap.L()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks ds against the named schema and returns a coerced
// copy on success. The input dataset is never modified.
func (v *Validator) Validate(ds *model.Dataset, name string, mode Mode) (*model.Dataset, error) {
	s, err := v.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	v.logger.Info("validating dataset",
		zap.String("dataset", ds.Name),
		zap.String("schema", s.Name),
		zap.Int("rows", len(ds.Records)),
		zap.String("mode", mode.String()))

	coerced, err := Check(ds, s, mode)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			v.logger.Error("validation failed",
				zap.String("dataset", ds.Name),
				zap.String("schema", s.Name),
				zap.Int("violations", len(ve.Violations)))
		}
		return nil, err
	}

	v.logger.Info("validation succeeded",
		zap.String("dataset", ds.Name),
		zap.String("schema", s.Name),
		zap.Int("rows", len(coerced.Records)))
	return coerced, nil
}

// Check validates ds against s, returning a copy with every declared
// column coerced to its declared type. Undeclared columns pass through
// unchanged. Violations are checked column by column in declaration
// order; within a column, row by row.
func Check(ds *model.Dataset, s *Schema, mode Mode) (*model.Dataset, error) {
	out := ds.Clone()
	var violations []Violation

	add := func(v Violation) bool {
		violations = append(violations, v)
		return mode == FailFast
	}

	for _, col := range s.Columns {
		if !out.HasColumn(col.Name) {
			if add(Violation{
				Column: col.Name,
				Row:    -1,
				Kind:   ViolationMissingColumn,
				Detail: "declared column absent from dataset",
			}) {
				return nil, &ValidationError{Schema: s.Name, Violations: violations}
			}
			continue
		}

		seen := make(map[any]struct{})
		for i, rec := range out.Records {
			val := rec[col.Name]
			if model.IsMissing(val) {
				if !col.Nullable {
					if add(Violation{
						Column: col.Name,
						Row:    i,
						Kind:   ViolationRequired,
						Value:  val,
						Detail: "null in non-nullable column",
					}) {
						return nil, &ValidationError{Schema: s.Name, Violations: violations}
					}
				}
				rec[col.Name] = nil
				continue
			}

			cv, ok := coerceValue(val, col.Type)
			if !ok {
				if add(Violation{
					Column: col.Name,
					Row:    i,
					Kind:   ViolationType,
					Value:  val,
					Detail: fmt.Sprintf("cannot coerce %v to %s", val, col.Type),
				}) {
					return nil, &ValidationError{Schema: s.Name, Violations: violations}
				}
				continue
			}
			rec[col.Name] = cv

			if viol := checkConstraints(col, i, cv, seen); viol != nil {
				if add(*viol) {
					return nil, &ValidationError{Schema: s.Name, Violations: violations}
				}
			}
		}
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Schema: s.Name, Violations: violations}
	}
	return out, nil
}

// checkConstraints runs the post-coercion checks for one cell,
// returning the violation found or nil.
func checkConstraints(col Column, row int, cv any, seen map[any]struct{}) *Violation {
	switch col.Type {
	case KindInt, KindFloat:
		f := numericValue(cv)
		if (col.Min != nil && f < *col.Min) || (col.Max != nil && f > *col.Max) {
			return &Violation{
				Column: col.Name, Row: row, Kind: ViolationRange, Value: cv,
				Detail: fmt.Sprintf("value %g outside %s", f, rangeString(col)),
			}
		}
	case KindString:
		if len(col.Allowed) > 0 {
			sv := cv.(string)
			if !contains(col.Allowed, sv) {
				return &Violation{
					Column: col.Name, Row: row, Kind: ViolationAllowed, Value: cv,
					Detail: fmt.Sprintf("%q not in {%s}", sv, strings.Join(col.Allowed, ", ")),
				}
			}
		}
	}

	if col.Unique {
		if _, dup := seen[cv]; dup {
			return &Violation{
				Column: col.Name, Row: row, Kind: ViolationUnique, Value: cv,
				Detail: fmt.Sprintf("duplicate value %v", cv),
			}
		}
		seen[cv] = struct{}{}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func numericValue(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}

// coerceValue converts val to the declared kind. The bool result is
// false when the value cannot represent that kind.
func coerceValue(val any, kind Kind) (any, bool) {
	switch kind {
	case KindInt:
		return coerceInt(val)
	case KindFloat:
		return coerceFloat(val)
	case KindString:
		return coerceString(val)
	case KindDatetime:
		return coerceDatetime(val)
	case KindBool:
		return coerceBool(val)
	}
	return nil, false
}

func coerceInt(val any) (any, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case float64:
		if math.Trunc(v) == v && !math.IsInf(v, 0) {
			return int64(v), true
		}
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && math.Trunc(f) == f && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return nil, false
}

func coerceFloat(val any) (any, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return nil, false
}

func coerceString(val any) (any, bool) {
	if s, ok := val.(string); ok {
		return s, true
	}
	switch val.(type) {
	case int64, float64, bool, time.Time:
		return model.FormatCell(val), true
	}
	return nil, false
}

func coerceDatetime(val any) (any, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case string:
		if t, ok := ingest.ParseTimestamp(strings.TrimSpace(v)); ok {
			return t, true
		}
	}
	return nil, false
}

func coerceBool(val any) (any, bool) {
	switch v := val.(type) {
	case bool:
		return v, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b, true
		}
	case int64:
		if v == 0 {
			return false, true
		}
		if v == 1 {
			return true, true
		}
	}
	return nil, false
}
