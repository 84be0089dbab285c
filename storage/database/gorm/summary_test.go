package gormrepos

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nujoom/school/core/points"
	sqlxrepos "github.com/nujoom/school/storage/database/sqlx"
	"github.com/nujoom/school/testutil"
)

func TestSummaryRepository(t *testing.T) {
	_, gdb := testutil.OpenSQLite(t)
	repo := NewSummaryRepository(gdb)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	_, err := repo.GetSummary(ctx, "s-1")
	assert.True(t, errors.Is(err, points.ErrSummaryNotFound))

	exists, err := repo.SummaryExists(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.UpsertSummary(ctx, points.Summary{OwnerID: "s-2", Points: 3, UpdatedAt: at}))
	require.NoError(t, repo.UpsertSummary(ctx, points.Summary{OwnerID: "s-1", Points: 10, UpdatedAt: at}))
	require.NoError(t, repo.UpsertSummary(ctx, points.Summary{OwnerID: "s-1", Points: 12, UpdatedAt: at.Add(time.Hour)}))

	s, err := repo.GetSummary(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), s.Points)
	assert.True(t, s.UpdatedAt.Equal(at.Add(time.Hour)))

	exists, err = repo.SummaryExists(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, exists)

	summaries, err := repo.QuerySummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "s-1", summaries[0].OwnerID)
	assert.Equal(t, "s-2", summaries[1].OwnerID)
}

func TestService_withSQLStores(t *testing.T) {
	db, gdb := testutil.OpenSQLite(t)
	ledger := sqlxrepos.NewLedgerRepository(db)
	summaries := NewSummaryRepository(gdb)

	deps := testutil.NewDeps(t, ledger, summaries)
	deps.Writer = sqlxrepos.NewSummaryWriter(db)
	svc := points.NewService(deps)
	ctx := context.Background()

	testutil.CreateTransaction(t, ledger, "s-1", 20, true, "homework")
	testutil.CreateTransaction(t, ledger, "s-1", 8, false, "recharge")

	res, err := svc.Reconcile(ctx, "s-1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Points)
	assert.Equal(t, points.MethodDirectSQL, res.Method)
	assert.True(t, res.UpdateSuccess)
	assert.False(t, res.PreviouslyExisted)

	res, err = svc.Reconcile(ctx, "s-1", false)
	require.NoError(t, err)
	assert.Equal(t, points.MethodSummaryCache, res.Method)

	// without the aggregate query, the delegated function is missing and the manual fold answers
	calcs, err := points.CalculatorsByMethod(ledger, []string{"rpc", "manual"})
	require.NoError(t, err)
	deps.Calculators = calcs
	svc = points.NewService(deps)

	res, err = svc.Reconcile(ctx, "s-1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Points)
	assert.Equal(t, points.MethodManual, res.Method)
	assert.True(t, res.PreviouslyExisted)

	again, err := svc.Reconcile(ctx, "s-1", true)
	require.NoError(t, err)
	assert.Equal(t, res.Points, again.Points)
	assert.True(t, again.UpdateSuccess)

	summary, err := summaries.GetSummary(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), summary.Points)

	all, err := summaries.QuerySummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_withSQLStores_manual(t *testing.T) {
	db, gdb := testutil.OpenSQLite(t)
	ledger := sqlxrepos.NewLedgerRepository(db)
	summaries := NewSummaryRepository(gdb)

	deps := testutil.NewDeps(t, ledger, summaries)
	calcs, err := points.CalculatorsByMethod(ledger, []string{"rpc", "manual"})
	require.NoError(t, err)
	deps.Calculators = calcs
	svc := points.NewService(deps)
	ctx := context.Background()

	testutil.CreateTransaction(t, ledger, "s-1", 10, true, "homework")
	testutil.CreateTransaction(t, ledger, "s-1", 5, true, "attendance")
	testutil.CreateTransaction(t, ledger, "s-1", 3, false, "recharge")

	res, err := svc.Reconcile(ctx, "s-1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Points)
	assert.Equal(t, points.MethodManual, res.Method)
	require.NotNil(t, res.TransactionCount)
	assert.Equal(t, 3, *res.TransactionCount)
	assert.True(t, res.UpdateSuccess)
	assert.False(t, res.PreviouslyExisted)

	summary, err := summaries.GetSummary(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", summary.OwnerID)
	assert.Equal(t, int64(12), summary.Points)
}
