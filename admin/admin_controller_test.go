package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock_api_backend/config"
	"stock_api_backend/models"
	"stock_api_backend/scheduler"
	"stock_api_backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Inert collaborators so a triggered pass completes without touching the
// network or any store.
type stubTickers struct{ block chan struct{} }

func (s stubTickers) FetchUniverse(ctx context.Context) (models.TickerUniverse, error) {
	if s.block != nil {
		<-s.block
	}
	return models.TickerUniverse{}, nil
}

type stubFundamentals struct{}

func (stubFundamentals) FetchAll(ctx context.Context, index string) (models.FundamentalsSet, error) {
	return models.FundamentalsSet{}, nil
}

type stubHeatmaps struct{}

func (stubHeatmaps) Generate(ctx context.Context, tickers []string) (models.Heatmap, error) {
	return models.Heatmap{}, nil
}

type stubPrices struct{}

func (stubPrices) FetchDailyCloses(ctx context.Context, ticker string) ([]models.DailyClose, error) {
	return nil, nil
}

type stubCache struct{}

func (stubCache) Write(ctx context.Context, key string, v interface{}) error { return nil }
func (stubCache) WaitForWrites()                                             {}

type stubQueue struct{}

func (stubQueue) Push(records ...models.TickerPrice) {}
func (stubQueue) Drain(ctx context.Context) error    { return nil }

type stubNotifier struct{}

func (stubNotifier) Notify(subject, body string)           {}
func (stubNotifier) NotifyError(subject string, err error) {}

func newStubUpdateService(block chan struct{}) *scheduler.DataUpdateService {
	return scheduler.NewDataUpdateService(
		stubTickers{block: block},
		stubFundamentals{},
		stubHeatmaps{},
		stubPrices{},
		stubCache{},
		stubQueue{},
		stubNotifier{},
	)
}

func setupAdminTest(updates *scheduler.DataUpdateService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	controller := NewAdminController(updates)

	router := gin.New()
	router.GET("/status", controller.Status)
	router.POST("/refresh", controller.Refresh)
	router.POST("/reconnect", controller.Reconnect)
	return router
}

func TestStatusReportsPipelineState(t *testing.T) {
	services.GlobalMongoClient = nil
	router := setupAdminTest(newStubUpdateService(nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"idle"`)
}

func TestStatusReportsDurableCacheState(t *testing.T) {
	config.AppConfig = &config.Config{} // no MONGODB_URI
	require.NoError(t, services.InitMongoDBClient())
	defer func() { services.GlobalMongoClient = nil }()

	router := setupAdminTest(newStubUpdateService(nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"durable_cache"`)
	assert.Contains(t, w.Body.String(), `"uri_set":false`)
	// The document count is only reported once a store is reachable.
	assert.NotContains(t, w.Body.String(), `"documents"`)
}

func TestReconnectUnavailableWithoutDurableCache(t *testing.T) {
	services.GlobalMongoClient = nil
	router := setupAdminTest(newStubUpdateService(nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reconnect", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Same answer when the client exists but was never given a URI.
	config.AppConfig = &config.Config{}
	require.NoError(t, services.InitMongoDBClient())
	defer func() { services.GlobalMongoClient = nil }()

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/reconnect", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRefreshStartsPass(t *testing.T) {
	updates := newStubUpdateService(nil)
	router := setupAdminTest(updates)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refresh?full=true", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"pass":"full"`)

	require.Eventually(t, func() bool {
		return !updates.IsRunning()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefreshConflictsWhileRunning(t *testing.T) {
	block := make(chan struct{})
	updates := newStubUpdateService(block)
	router := setupAdminTest(updates)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"pass":"light"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/refresh", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(block)
	require.Eventually(t, func() bool {
		return !updates.IsRunning()
	}, 2*time.Second, 10*time.Millisecond)
}
