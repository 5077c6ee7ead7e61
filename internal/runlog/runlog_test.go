package runlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	ld, err := Open(path, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { ld.Close() }) //nolint:errcheck
	return ld
}

func TestStartAndGet(t *testing.T) {
	ld := newTestLedger(t)
	ctx := context.Background()

	run, err := ld.Start(ctx, "incidentes", "socrata:abcd-1234")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StatusRunning, run.Status)

	got, err := ld.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "incidentes", got.Dataset)
	assert.Equal(t, "socrata:abcd-1234", got.Source)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
}

func TestCompleteRecordsRowCount(t *testing.T) {
	ld := newTestLedger(t)
	ctx := context.Background()

	run, err := ld.Start(ctx, "trafico", "api:https://example.test")
	require.NoError(t, err)
	require.NoError(t, ld.Complete(ctx, run.ID, 1234))

	got, err := ld.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1234, got.RowCount)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

func TestFailKeepsCause(t *testing.T) {
	ld := newTestLedger(t)
	ctx := context.Background()

	run, err := ld.Start(ctx, "victimas", "csv:Mede_Victimas_inci.csv")
	require.NoError(t, err)
	require.NoError(t, ld.Fail(ctx, run.ID, errors.New("decode failed")))

	got, err := ld.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "decode failed", got.Error)
	assert.NotNil(t, got.FinishedAt)
}

func TestCompleteUnknownRun(t *testing.T) {
	ld := newTestLedger(t)

	err := ld.Complete(context.Background(), "no-such-id", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListNewestFirstWithFilters(t *testing.T) {
	ld := newTestLedger(t)
	ctx := context.Background()

	a, err := ld.Start(ctx, "trafico", "api:x")
	require.NoError(t, err)
	require.NoError(t, ld.Complete(ctx, a.ID, 10))

	b, err := ld.Start(ctx, "incidentes", "socrata:y")
	require.NoError(t, err)
	require.NoError(t, ld.Fail(ctx, b.ID, errors.New("boom")))

	_, err = ld.Start(ctx, "incidentes", "socrata:y")
	require.NoError(t, err)

	all, err := ld.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	incidentes, err := ld.List(ctx, Filter{Dataset: "incidentes"})
	require.NoError(t, err)
	assert.Len(t, incidentes, 2)

	failed, err := ld.List(ctx, Filter{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)

	limited, err := ld.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLedgerPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	ld, err := Open(path, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	run, err := ld.Start(context.Background(), "geo", "csv:zonas.csv")
	require.NoError(t, err)
	require.NoError(t, ld.Complete(context.Background(), run.ID, 42))
	require.NoError(t, ld.Close())

	reopened, err := Open(path, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 42, got.RowCount)
}
