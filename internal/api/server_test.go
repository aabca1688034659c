// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonlab/abel/internal/basis"
	"github.com/photonlab/abel/internal/config"
	"github.com/photonlab/abel/internal/health"
	"github.com/photonlab/abel/internal/jobs"
	"github.com/photonlab/abel/internal/transform"
)

type testEnv struct {
	handler http.Handler
	store   basis.Store
	manager *jobs.Manager
}

func newTestEnv(t *testing.T, mutate func(*config.AppConfig)) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.BasisDir = filepath.Join(cfg.DataDir, "basis")
	cfg.MaxFrameSize = 51
	cfg.RateLimitRPM = 0
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := basis.NewDiskStore(cfg.BasisDir)
	require.NoError(t, err)
	reg := transform.DefaultRegistry(store)
	manager := jobs.NewManager(reg, jobs.Options{Workers: 2})
	t.Cleanup(manager.Close)

	healthM := health.NewManager("test")
	healthM.RegisterChecker(health.BasisDirChecker{Dir: cfg.BasisDir})

	srv := New(cfg, reg, store, manager, nil, healthM)
	return &testEnv{handler: srv.Handler(), store: store, manager: manager}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func gaussianRows(n int, sigma float64) [][]float64 {
	center := n / 2
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			z := float64(i - center)
			x := float64(j - center)
			rows[i][j] = math.Exp(-(x*x + z*z) / (2 * sigma * sigma))
		}
	}
	return rows
}

func TestTransformEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/transform", TransformRequest{
		Method:    "direct",
		Direction: "forward",
		Rows:      gaussianRows(9, 2),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[TransformResponse](t, rec)
	assert.Equal(t, "direct", resp.Method)
	assert.Equal(t, "forward", resp.Direction)
	assert.Equal(t, [2]int{9, 9}, resp.Shape)
	require.Len(t, resp.Rows, 9)
	require.Len(t, resp.Rows[0], 9)
}

func TestFrameBoundAppliesToTransformAndJobs(t *testing.T) {
	env := newTestEnv(t, nil)

	oversized := TransformRequest{
		Method:    "direct",
		Direction: "forward",
		Rows:      gaussianRows(53, 8),
	}
	for _, path := range []string{"/api/v1/transform", "/api/v1/jobs"} {
		rec := env.do(t, http.MethodPost, path, oversized)
		require.Equalf(t, http.StatusBadRequest, rec.Code, "%s: %s", path, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "maximum frame size")
	}

	// A small image recentered into an oversized frame is bounded too.
	rec := env.do(t, http.MethodPost, "/api/v1/transform", TransformRequest{
		Method:    "direct",
		Direction: "forward",
		FrameSize: 999,
		Rows:      gaussianRows(9, 2),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "maximum frame size")
}

func TestTransformGeometryErrorIs422(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/transform", TransformRequest{
		Method:    "direct",
		Direction: "forward",
		Rows:      gaussianRows(8, 2),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "unsupported_geometry", resp["error"])
	assert.Contains(t, resp["detail"], "unsupported image geometry 8x8")
}

func TestTransformBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{name: "unknown method", body: TransformRequest{Method: "hansenlaw", Rows: gaussianRows(9, 2)}},
		{name: "bad direction", body: TransformRequest{Method: "direct", Direction: "sideways", Rows: gaussianRows(9, 2)}},
		{name: "empty rows", body: TransformRequest{Method: "direct"}},
		{name: "ragged rows", body: TransformRequest{Method: "direct", Rows: [][]float64{{1, 2}, {3}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/transform", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transform", strings.NewReader("{nope"))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBearerAuth(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.AppConfig) { cfg.APIToken = "secret" })

	// API routes require the token.
	rec := env.do(t, http.MethodGet, "/api/v1/basis", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/basis", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/basis", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.AppConfig) { cfg.RateLimitRPM = 2 })

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/v1/basis", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
	rec := env.do(t, http.MethodGet, "/api/v1/basis", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestJobLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/jobs", TransformRequest{
		Method:    "direct",
		Direction: "forward",
		Rows:      gaussianRows(9, 2),
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	submitted := decodeBody[JobResponse](t, rec)
	require.NotEmpty(t, submitted.ID)

	var finished JobResponse
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/v1/jobs/"+submitted.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		finished = decodeBody[JobResponse](t, rec)
		return finished.State == string(jobs.StateDone)
	}, 5*time.Second, 10*time.Millisecond)

	assert.Len(t, finished.Rows, 9, "finished job carries the result")
	assert.Equal(t, [2]int{9, 9}, finished.Shape)

	rec = env.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[map[string][]JobResponse](t, rec)
	require.Len(t, list["jobs"], 1)
	assert.Empty(t, list["jobs"][0].Rows, "listing strips results")
}

func TestGetUnknownJobIs404(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/v1/jobs/ffffffff-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string][]jobs.HistoryEntry](t, rec)
	assert.Empty(t, resp["history"])
}

func TestBasisEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/basis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody[map[string][]string](t, rec)
	assert.Empty(t, listing["basis"])

	rec = env.do(t, http.MethodPost, "/api/v1/basis", BasisRequest{N: 11, Nbf: 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "basex_basis_11_5", created["key"])

	rec = env.do(t, http.MethodGet, "/api/v1/basis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing = decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{"basex_basis_11_5"}, listing["basis"])

	rec = env.do(t, http.MethodDelete, "/api/v1/basis/basex_basis_11_5", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/basis", nil)
	listing = decodeBody[map[string][]string](t, rec)
	assert.Empty(t, listing["basis"])
}

func TestBasisValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, n := range []int{0, 2, 10} {
		rec := env.do(t, http.MethodPost, "/api/v1/basis", BasisRequest{N: n})
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "n=%d", n)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/basis", BasisRequest{N: 101})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "beyond max frame size")
}

func TestSpeedsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/speeds", SpeedsRequest{Rows: gaussianRows(21, 4)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[map[string][]float64](t, rec)
	assert.Len(t, resp["speeds"], 11)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	healthResp := decodeBody[health.HealthResponse](t, rec)
	assert.Equal(t, health.StatusHealthy, healthResp.Status)

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessFailsWithBrokenBasisDir(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.BasisDir = filepath.Join(cfg.DataDir, "missing", "deep")
	store, err := basis.NewDiskStore(filepath.Join(cfg.DataDir, "basis"))
	require.NoError(t, err)
	reg := transform.DefaultRegistry(store)
	manager := jobs.NewManager(reg, jobs.Options{Workers: 1})
	t.Cleanup(manager.Close)
	healthM := health.NewManager("test")
	healthM.RegisterChecker(health.BasisDirChecker{Dir: cfg.BasisDir})
	handler := New(cfg, reg, store, manager, nil, healthM).Handler()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecovererConvertsPanics(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal")
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
