package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/nujoom/school/apps/api/echo"
	"github.com/nujoom/school/core/points"
	dummydb "github.com/nujoom/school/storage/database/dummy"
	"github.com/nujoom/school/testutil"
)

func int64Ptr(i int64) *int64 { return &i }
func intPtr(i int) *int       { return &i }

func TestHome(t *testing.T) {
	server := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Nujoom API!", rec.Body.String())
}

func TestFixPoints(t *testing.T) {
	server := setup(t)
	testutil.CreateTransaction(t, server.ledger, "s-1", 10, true, "homework")
	testutil.CreateTransaction(t, server.ledger, "s-1", 5, true, "attendance")
	testutil.CreateTransaction(t, server.ledger, "s-1", 3, false, "recharge")
	server.db.SetSummary("s-2", 40)

	tests := []httpTest{
		{
			name:     "missing user",
			method:   http.MethodGet,
			path:     "/api/fix-points",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "User ID is required"}),
		},
		{
			name:     "recalculated",
			method:   http.MethodGet,
			path:     "/api/fix-points?userId=s-1",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.FixPointsResponse{
				UserID:           "s-1",
				Method:           points.MethodDirectSQL,
				TotalPoints:      12,
				PositivePoints:   int64Ptr(15),
				NegativePoints:   int64Ptr(3),
				TransactionCount: intPtr(3),
				Success:          true,
			}),
		},
		{
			name:     "cached",
			method:   http.MethodGet,
			path:     "/api/fix-points?userId=s-2",
			wantCode: http.StatusOK,
			wantData: []byte(`{"userId":"s-2","method":"summary-cache","totalPoints":40,"success":true}`),
		},
		{
			name:     "forced",
			method:   http.MethodGet,
			path:     "/api/fix-points?userId=s-2&force=true",
			wantCode: http.StatusOK,
			wantData: []byte(`{"userId":"s-2","method":"direct-sql","totalPoints":0,"positivePoints":0,"negativePoints":0,"transactionCount":0,"success":true}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestFixPoints_failures(t *testing.T) {
	t.Run("ledger", func(t *testing.T) {
		server := setup(t)
		for _, f := range []dummydb.Fault{dummydb.FaultAggregate, dummydb.FaultDelegated, dummydb.FaultFetch} {
			server.db.Inject(f, errors.New("connection refused"))
		}

		req, rec := newRequest(http.MethodGet, "/api/fix-points?userId=s-1")
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, httpErr{Error: "Failed to fetch transactions"}),
		}, rec)
	})

	t.Run("no calculator", func(t *testing.T) {
		server := setup(t, points.NewDelegatedCalculator(delegatedNull{}))

		req, rec := newRequest(http.MethodGet, "/api/fix-points?userId=s-1")
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, httpErr{Error: "Failed to recalculate points"}),
		}, rec)
	})
}

func TestSync(t *testing.T) {
	server := setup(t)
	testutil.CreateTransaction(t, server.ledger, "s-1", 12, true, "homework")

	tests := []httpTest{
		{
			name:     "missing user",
			method:   http.MethodPost,
			path:     "/api/points/sync",
			body:     []byte(`{"forceRefresh":true}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, points.SyncResult{
				Message: "معرف المستخدم مطلوب",
				Error:   "User ID is required",
			}),
		},
		{
			name:     "synced",
			method:   http.MethodPost,
			path:     "/api/points/sync",
			body:     []byte(`{"userId":"s-1","forceRefresh":true}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, points.SyncResult{
				Success: true,
				Data:    &points.SyncData{Points: 12, Method: points.MethodDirectSQL, UpdateSuccess: true},
				Message: "تم تحديث رصيد النقاط بنجاح (12 نقطة)",
			}),
		},
		{
			name:     "english",
			method:   http.MethodPost,
			path:     "/api/points/sync",
			body:     []byte(`{"userId":"s-1"}`),
			lang:     "en-US,en;q=0.9",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, points.SyncResult{
				Success: true,
				Data:    &points.SyncData{Points: 12, Method: points.MethodSummaryCache, UpdateSuccess: true, PreviouslyExisted: true},
				Message: "Points balance updated successfully (12 points)",
			}),
		},
		{
			name:     "unsupported language",
			method:   http.MethodPost,
			path:     "/api/points/sync",
			body:     []byte(`{}`),
			lang:     "fr-FR",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, points.SyncResult{
				Message: "معرف المستخدم مطلوب",
				Error:   "User ID is required",
			}),
		},
		{
			name:     "malformed body",
			method:   http.MethodPost,
			path:     "/api/points/sync",
			body:     []byte(`{"userId":`),
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newLangRequest(tt.method, tt.path, tt.lang, tt.body)
			server.ServeHTTP(rec, req)
			if tt.wantData == nil {
				assert.Equal(t, tt.wantCode, rec.Code)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestSync_ledgerFailure(t *testing.T) {
	server := setup(t)
	for _, f := range []dummydb.Fault{dummydb.FaultAggregate, dummydb.FaultDelegated, dummydb.FaultFetch} {
		server.db.Inject(f, errors.New("connection refused"))
	}

	req, rec := newLangRequest(http.MethodPost, "/api/points/sync", "en", []byte(`{"userId":"s-1","forceRefresh":true}`))
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusInternalServerError,
		wantData: marchallObj(t, points.SyncResult{
			Message: "Could not fetch the transaction history",
			Error:   "connection refused",
		}),
	}, rec)
}

func TestRecordTransaction(t *testing.T) {
	server := setup(t)
	server.db.SetSummary("s-1", 50)

	req, rec := newLangRequest(http.MethodPost, "/api/points/transactions", "en",
		[]byte(`{"userId":"s-1","points":20,"isPositive":false,"category":"recharge"}`))
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var res echoapi.RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Transaction.ID)
	assert.Equal(t, "s-1", res.Transaction.OwnerID)
	assert.Equal(t, int64(20), res.Transaction.Points)
	assert.False(t, res.Transaction.IsPositive)
	assert.True(t, res.Sync.Success)
	assert.Equal(t, int64(-20), res.Sync.Data.Points)
	assert.Equal(t, "Points balance updated successfully (-20 points)", res.Sync.Message)

	s, _ := server.db.Summary("s-1")
	assert.Equal(t, int64(-20), s.Points)
}

func TestRecordTransaction_invalid(t *testing.T) {
	server := setup(t)

	tests := []httpTest{
		{
			name:     "bad category",
			body:     []byte(`{"userId":"s-1","points":20,"isPositive":true,"category":"Home Work!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"category": "only lowercase letters, digits, dashes and underscores are allowed",
			}),
		},
		{
			name:     "missing fields",
			body:     []byte(`{"points":20}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"userId":   "this field is required",
				"category": "this field is required",
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/points/transactions", tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
	assert.Zero(t, server.db.Calls(dummydb.FaultCreate))
}

func TestHistory(t *testing.T) {
	server := setup(t)
	start := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	first := testutil.CreateTransaction(t, server.ledger, "s-1", 20, true, "homework", start)
	second := testutil.CreateTransaction(t, server.ledger, "s-1", 5, false, "recharge", start.Add(time.Hour))
	testutil.CreateTransaction(t, server.ledger, "s-2", 7, true, "homework", start)

	tests := []httpTest{
		{
			name:     "newest first",
			method:   http.MethodGet,
			path:     "/api/points/transactions?userId=s-1",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []points.Transaction{second, first}),
		},
		{
			name:     "ordering",
			method:   http.MethodGet,
			path:     "/api/points/transactions?userId=s-1&ordering=-points",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []points.Transaction{first, second}),
		},
		{
			name:     "unknown ordering",
			method:   http.MethodGet,
			path:     "/api/points/transactions?userId=s-1&ordering=user_id",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"ordering": `cannot order by "user_id"`}),
		},
		{
			name:     "missing user",
			method:   http.MethodGet,
			path:     "/api/points/transactions",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"userId": "User ID is required"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
