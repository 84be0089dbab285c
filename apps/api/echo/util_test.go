package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	echoapi "github.com/nujoom/school/apps/api/echo"
	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
	cachesvc "github.com/nujoom/school/services/cache"
	dummydb "github.com/nujoom/school/storage/database/dummy"
	"github.com/nujoom/school/testutil"
)

type testServer struct {
	*echoapi.Server
	db     *dummydb.DB
	ledger points.Ledger
}

func setup(t *testing.T, calcs ...points.Calculator) testServer {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	translator := core.NewTranslator()

	// set up DB & repos
	db := dummydb.Open()
	ledger := dummydb.NewLedgerRepository(db)

	// set up services
	deps := testutil.NewDeps(t, ledger, dummydb.NewSummaryRepository(db))
	deps.Writer = dummydb.NewSummaryWriter(db)
	deps.Invalidator = cachesvc.NewLogInvalidator(logger)
	deps.Validate = testutil.NewValidator(translator)
	deps.Calculators = calcs

	// set up server
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		PointsSvc:  points.NewService(deps),
		Translator: translator,
	})
	return testServer{Server: server, db: db, ledger: ledger}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	lang     string
	wantCode int
	wantData []byte
}

func newLangRequest(method, path, lang string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newLangRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// delegatedNull is a balance function that never has an answer.
type delegatedNull struct{}

func (delegatedNull) DelegatedBalance(context.Context, string) (null.Int64, error) {
	return null.Int64{}, nil
}
