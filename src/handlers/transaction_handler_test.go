package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finlog/backend/src/config"
	"github.com/username/finlog/backend/src/database"
	"github.com/username/finlog/backend/src/ingest"
	"github.com/username/finlog/backend/src/logger"
	"github.com/username/finlog/backend/src/model"
	"github.com/username/finlog/backend/src/services"
	"github.com/username/finlog/backend/src/storage"
)

func setupHandlerTest(t *testing.T) (*TransactionHandler, *model.User) {
	t.Helper()
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		AllowedEmail:       "me@example.com",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		MaxUploadSizeBytes: 10 << 20,
	}
	database.InitDB(":memory:")

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	normalizer := ingest.New("CAD", ingest.Rates{
		ForeignCurrency: "USD",
		Rate:            decimal.RequireFromString("1.39"),
	})
	svc := services.NewUploadService(normalizer, store,
		cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval))

	user := &model.User{Username: "me", Email: "me@example.com", AuthProvider: "local"}
	require.NoError(t, user.CreateUser(database.DB))

	_, err = svc.ProcessUpload(context.Background(), strings.NewReader(
		"date,description,amount\n2024-01-05,Paycheque,2500.00\n2024-01-10,Groceries,-130.25\n"),
		"cash.csv", model.AccountCash, user)
	require.NoError(t, err)

	return NewTransactionHandler(svc), user
}

func authedRequest(method, target string, userID int64) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(r.Context(), userIDContextKey, userID)
	return r.WithContext(ctx)
}

func TestHandleGetTransactionsPagination(t *testing.T) {
	h, user := setupHandlerTest(t)

	w := httptest.NewRecorder()
	h.HandleGetTransactions(w, authedRequest(http.MethodGet, "/api/transactions?page=1&limit=1", user.ID))

	require.Equal(t, http.StatusOK, w.Code)

	var page services.TransactionPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.Limit)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, int64(2), page.TotalPages)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "Groceries", page.Transactions[0].Description)
	assert.Equal(t, "-130.25", page.Transactions[0].Amount)
}

func TestHandleGetTransactionsRequiresAuthContext(t *testing.T) {
	h, _ := setupHandlerTest(t)

	w := httptest.NewRecorder()
	h.HandleGetTransactions(w, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleGetSummaryETag(t *testing.T) {
	h, user := setupHandlerTest(t)

	w := httptest.NewRecorder()
	h.HandleGetSummary(w, authedRequest(http.MethodGet, "/api/transactions/summary", user.ID))
	require.Equal(t, http.StatusOK, w.Code)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var summary services.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "2500.00", summary.TotalInflow)
	assert.Equal(t, "130.25", summary.TotalOutflow)

	r := authedRequest(http.MethodGet, "/api/transactions/summary", user.ID)
	r.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	h.HandleGetSummary(w2, r)
	assert.Equal(t, http.StatusNotModified, w2.Code)
	assert.Empty(t, w2.Body.Bytes())
}

func TestHandleGetTimeseriesValidation(t *testing.T) {
	h, user := setupHandlerTest(t)

	w := httptest.NewRecorder()
	h.HandleGetTimeseries(w, authedRequest(http.MethodGet, "/api/transactions/timeseries?period=decade", user.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.HandleGetTimeseries(w, authedRequest(http.MethodGet, "/api/transactions/timeseries?accounts=BOGUS,NOPE", user.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.HandleGetTimeseries(w, authedRequest(http.MethodGet, "/api/transactions/timeseries?accounts=ALL", user.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var points []services.TimeseriesPoint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &points))
	require.Len(t, points, 1)
	assert.Equal(t, "2024-01", points[0].Period)
}

func TestParseAccountsParam(t *testing.T) {
	all, err := parseAccountsParam("all")
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypes, all)

	some, err := parseAccountsParam("cash, save")
	require.NoError(t, err)
	assert.Equal(t, []model.AccountType{model.AccountCash, model.AccountSave}, some)

	mixed, err := parseAccountsParam("CASH,BOGUS")
	require.NoError(t, err)
	assert.Equal(t, []model.AccountType{model.AccountCash}, mixed)

	_, err = parseAccountsParam("BOGUS")
	assert.Error(t, err)
}
