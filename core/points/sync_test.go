package points_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nujoom/school/core/points"
	dummydb "github.com/nujoom/school/storage/database/dummy"
	"github.com/nujoom/school/testutil"
)

type panicCalculator struct{}

func (panicCalculator) Method() points.Method { return "panic" }

func (panicCalculator) Attempt(context.Context, string) (*points.Balance, error) {
	panic("nil map")
}

func TestService_Sync(t *testing.T) {
	tests := []struct {
		name        string
		ownerID     string
		locale      string
		faults      []dummydb.Fault
		wantSuccess bool
		wantData    *points.SyncData
		wantMessage string
		wantError   string
		wantFailure points.FailureKind
	}{
		{
			name:        "default locale",
			ownerID:     "s-1",
			wantSuccess: true,
			wantData:    &points.SyncData{Points: 12, Method: points.MethodDirectSQL, UpdateSuccess: true},
			wantMessage: "تم تحديث رصيد النقاط بنجاح (12 نقطة)",
		},
		{
			name:        "english",
			ownerID:     "s-1",
			locale:      "en",
			wantSuccess: true,
			wantData:    &points.SyncData{Points: 12, Method: points.MethodDirectSQL, UpdateSuccess: true},
			wantMessage: "Points balance updated successfully (12 points)",
		},
		{
			name:        "unsupported locale",
			ownerID:     "s-1",
			locale:      "fr",
			wantSuccess: true,
			wantData:    &points.SyncData{Points: 12, Method: points.MethodDirectSQL, UpdateSuccess: true},
			wantMessage: "تم تحديث رصيد النقاط بنجاح (12 نقطة)",
		},
		{
			name:        "missing owner",
			wantMessage: "معرف المستخدم مطلوب",
			wantError:   "User ID is required",
			wantFailure: points.FailureValidation,
		},
		{
			name:        "ledger failure",
			ownerID:     "s-1",
			locale:      "en",
			faults:      []dummydb.Fault{dummydb.FaultAggregate, dummydb.FaultDelegated, dummydb.FaultFetch},
			wantMessage: "Could not fetch the transaction history",
			wantError:   "fetch failed",
			wantFailure: points.FailureLedger,
		},
		{
			name:        "summary write failure is not a sync failure",
			ownerID:     "s-1",
			faults:      []dummydb.Fault{dummydb.FaultSummaryWrite, dummydb.FaultRawWrite},
			wantSuccess: true,
			wantData:    &points.SyncData{Points: 12, Method: points.MethodDirectSQL},
			wantMessage: "تم تحديث رصيد النقاط بنجاح (12 نقطة)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seed(t, "s-1")
			for _, f := range tc.faults {
				env.db.Inject(f, errors.New(string(f)+" failed"))
			}

			res := env.svc.Sync(context.Background(), tc.ownerID, true, tc.locale)
			assert.Equal(t, tc.wantSuccess, res.Success)
			assert.Equal(t, tc.wantData, res.Data)
			assert.Equal(t, tc.wantMessage, res.Message)
			assert.Equal(t, tc.wantError, res.Error)
			assert.Equal(t, tc.wantFailure, res.Failure)
		})
	}
}

func TestService_Sync_cached(t *testing.T) {
	env := newTestEnv(t)
	env.db.SetSummary("s-1", 40)

	res := env.svc.Sync(context.Background(), "s-1", false, "en")
	require.True(t, res.Success)
	assert.Equal(t, &points.SyncData{
		Points:            40,
		Method:            points.MethodSummaryCache,
		UpdateSuccess:     true,
		PreviouslyExisted: true,
	}, res.Data)
}

func TestService_Sync_panic(t *testing.T) {
	env := newTestEnv(t).withCalculators(t, panicCalculator{})

	res := env.svc.Sync(context.Background(), "s-1", true, "en")
	assert.False(t, res.Success)
	assert.Nil(t, res.Data)
	assert.Equal(t, "An unexpected error occurred while updating the points balance", res.Message)
	assert.Equal(t, "panic: nil map", res.Error)
	assert.Equal(t, points.FailureUnexpected, res.Failure)
}

func TestService_Sync_unexpected(t *testing.T) {
	db := dummydb.Open()
	db.NullDelegated(true)
	ledger := dummydb.NewLedgerRepository(db)

	// the only calculator has no answer
	deps := testutil.NewDeps(t, ledger, dummydb.NewSummaryRepository(db))
	deps.Calculators = []points.Calculator{points.NewDelegatedCalculator(ledger)}
	svc := points.NewService(deps)

	res := svc.Sync(context.Background(), "s-1", true, "en")
	assert.False(t, res.Success)
	assert.Equal(t, points.FailureUnexpected, res.Failure)
	assert.Equal(t, points.ErrNoCalculator.Error(), res.Error)
}
