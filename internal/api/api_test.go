package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/crossasset/internal/api/handlers"
	"github.com/wonny/crossasset/internal/builder"
	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/pkg/config"
	"github.com/wonny/crossasset/pkg/logger"
)

const apiTestConfig = `
bootstrap_tolerance: 1.0e-8
ir:
  - currency: EUR
    calibration: none
    param_type: constant
    initial_alpha: 0.01
    reversion: 0.02
`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg, err := builder.ParseModelConfig([]byte(apiTestConfig))
	require.NoError(t, err)

	mkt := market.New()
	mkt.SetDiscountCurve("EUR", "", market.NewFlatForwardRate(0.02))

	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	b, err := builder.NewBuilder(cfg, mkt, log)
	require.NoError(t, err)

	return NewRouter(handlers.NewModelHandler(b, log), log)
}

func doRequest(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetModelEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/model")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Currencies []string `json:"currencies"`
		StateDim   int      `json:"state_dim"`
		Rebuilds   uint64   `json:"rebuilds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"EUR"}, body.Currencies)
	assert.Equal(t, 1, body.StateDim)
	assert.Equal(t, uint64(1), body.Rebuilds)
}

func TestCalibrationReportEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/calibration/report")
	assert.Equal(t, http.StatusNotFound, rec.Code, "no build has run yet")

	require.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/api/model").Code)

	rec = doRequest(t, router, http.MethodGet, "/api/calibration/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		RunID  string `json:"run_id"`
		Stages []struct {
			Stage  string `json:"stage"`
			Factor string `json:"factor"`
		} `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Stages, 1)
	assert.Equal(t, "IR:EUR", report.Stages[0].Factor)
}

func TestCalibrationErrorsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/api/model").Code)

	rec := doRequest(t, router, http.MethodGet, "/api/calibration/errors/ir/EUR")
	assert.Equal(t, http.StatusNotFound, rec.Code, "no calibration was requested")

	rec = doRequest(t, router, http.MethodGet, "/api/calibration/errors/rates/EUR")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecalibrateEndpoint(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, doRequest(t, router, http.MethodGet, "/api/model").Code)

	rec := doRequest(t, router, http.MethodPost, "/api/model/recalibrate")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rebuilds uint64 `json:"rebuilds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(2), body.Rebuilds)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
