package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsi-mfg/reflow/internal/config"
	"github.com/dsi-mfg/reflow/internal/logging"
	"github.com/dsi-mfg/reflow/internal/metrics"
	"github.com/dsi-mfg/reflow/internal/model"
)

func testServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "test-secret"
	cfg.APIKey = "test-api-key"
	logger := logging.New(cfg)
	rec := metrics.New()
	return New(cfg, logger, rec), cfg
}

func signJWT(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

const centersJSON = `[{
  "docId": "wc1",
  "docType": "workCenter",
  "data": {"name": "Mill 1", "shifts": [{"dayOfWeek": 1, "startHour": 8, "endHour": 16}]}
}]`

const ordersJSON = `[{
  "docId": "wo1",
  "docType": "workOrder",
  "data": {
    "workOrderNumber": "WO-1",
    "workCenterId": "wc1",
    "startDate": "2026-08-10T09:00:00Z",
    "endDate": "2026-08-10T10:00:00Z",
    "durationMinutes": 60
  }
}]`

func reflowBody() []byte {
	body, _ := json.Marshal(map[string]json.RawMessage{
		"workCenters": json.RawMessage(centersJSON),
		"workOrders":  json.RawMessage(ordersJSON),
	})
	return body
}

func TestHandleReflow_RejectsUnauthenticated(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reflow", bytes.NewReader(reflowBody()))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleReflow_AcceptsValidJWT(t *testing.T) {
	srv, cfg := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reflow", bytes.NewReader(reflowBody()))
	req.Header.Set("Authorization", "Bearer "+signJWT(t, cfg.JWTSecret, "operator-1"))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var result model.ReflowResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
}

func TestHandleReflow_AcceptsAPIKey(t *testing.T) {
	srv, cfg := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reflow", bytes.NewReader(reflowBody()))
	req.Header.Set("X-Api-Key", cfg.APIKey)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReflow_RejectsWrongAPIKey(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reflow", bytes.NewReader(reflowBody()))
	req.Header.Set("X-Api-Key", "not-the-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleReflow_RejectsMalformedBody(t *testing.T) {
	srv, cfg := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reflow", bytes.NewReader([]byte("not json")))
	req.Header.Set("X-Api-Key", cfg.APIKey)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealthz_NoAuthRequired(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleStatusPage_RendersBeforeAnyRun(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No reflow has run yet")
}

func TestHandleStatusPage_RendersAfterRun(t *testing.T) {
	srv, cfg := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reflow", bytes.NewReader(reflowBody()))
	req.Header.Set("X-Api-Key", cfg.APIKey)
	srv.ServeHTTP(httptest.NewRecorder(), req)

	statusReq := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, statusReq)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mill 1")
}

func TestHandleReflow_GetLatest_NotFoundBeforeAnyRun(t *testing.T) {
	srv, cfg := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reflow", nil)
	req.Header.Set("X-Api-Key", cfg.APIKey)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleReflow_GetLatest_ReturnsLastResult(t *testing.T) {
	srv, cfg := testServer(t)
	postReq := httptest.NewRequest(http.MethodPost, "/api/v1/reflow", bytes.NewReader(reflowBody()))
	postReq.Header.Set("X-Api-Key", cfg.APIKey)
	srv.ServeHTTP(httptest.NewRecorder(), postReq)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/reflow", nil)
	getReq.Header.Set("X-Api-Key", cfg.APIKey)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, getReq)
	require.Equal(t, http.StatusOK, w.Code)

	var result model.ReflowResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
}

func TestHandleReflow_FormatModel_AcceptsRawModelShapes(t *testing.T) {
	srv, cfg := testServer(t)
	body, _ := json.Marshal(map[string]any{
		"workCenters": []model.WorkCenter{{
			ID:     "wc1",
			Name:   "Mill 1",
			Shifts: []model.Shift{{DayOfWeek: 1, StartHour: 8, EndHour: 16}},
		}},
		"workOrders": []model.WorkOrder{{
			ID:              "wo1",
			Number:          "WO-1",
			WorkCenterID:    "wc1",
			Start:           mustInstant(t, "2026-08-10T09:00:00Z"),
			End:             mustInstant(t, "2026-08-10T10:00:00Z"),
			DurationMinutes: 60,
		}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reflow?format=model", bytes.NewReader(body))
	req.Header.Set("X-Api-Key", cfg.APIKey)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var result model.ReflowResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
}

func mustInstant(t *testing.T, s string) model.Instant {
	t.Helper()
	inst, err := model.ParseInstant(s)
	require.NoError(t, err)
	return inst
}

func TestMetricsEndpoint_ExposesReflowCounters(t *testing.T) {
	srv, cfg := testServer(t)
	runReq := httptest.NewRequest(http.MethodPost, "/api/v1/reflow", bytes.NewReader(reflowBody()))
	runReq.Header.Set("X-Api-Key", cfg.APIKey)
	srv.ServeHTTP(httptest.NewRecorder(), runReq)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reflow_runs_total")
}
