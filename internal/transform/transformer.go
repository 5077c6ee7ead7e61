// Package transform provides the cleaning and feature-derivation stages
// that turn raw ingested datasets into analysis-ready ones. Stages are
// independently invokable, never modify their input dataset, and append
// one entry per invocation to the transformation log owned by the
// Transformer.
package transform

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StepLog is one transformation-log entry.
type StepLog struct {
	Step       string    `json:"step"`
	Timestamp  time.Time `json:"timestamp"`
	RowsBefore int       `json:"rows_before"`
	RowsAfter  int       `json:"rows_after"`
}

// ConfigurationError reports malformed caller-supplied stage
// configuration. It is fatal immediately and never retried.
type ConfigurationError struct {
	Stage  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("transform: %s: %s", e.Stage, e.Reason)
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transformer) { t.logger = l }
}

// WithNow substitutes the clock used for log timestamps.
func WithNow(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

// Transformer runs dataset transformation stages and accumulates the
// transformation log across them.
type Transformer struct {
	steps  []StepLog
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Transformer with an empty log.
func New(opts ...Option) *Transformer {
	t := &Transformer{logger: zap.L(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Log returns a copy of the transformation log in execution order.
func (t *Transformer) Log() []StepLog {
	out := make([]StepLog, len(t.steps))
	copy(out, t.steps)
	return out
}

func (t *Transformer) record(step string, before, after int) {
	t.steps = append(t.steps, StepLog{
		Step:       step,
		Timestamp:  t.now(),
		RowsBefore: before,
		RowsAfter:  after,
	})
}
