package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/gplay-aso/internal/aso"
	"github.com/JakeFAU/gplay-aso/internal/cache"
	"github.com/JakeFAU/gplay-aso/internal/config"
	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

// MockScraper is a mock implementation of the Scraper interface.
type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Analyze(ctx context.Context, appID string) (scraper.Result, error) {
	args := m.Called(ctx, appID)
	result, _ := args.Get(0).(scraper.Result)
	return result, args.Error(1)
}

func (m *MockScraper) GetField(ctx context.Context, appID, name string) (any, error) {
	args := m.Called(ctx, appID, name)
	return args.Get(0), args.Error(1)
}

func (m *MockScraper) GetFields(ctx context.Context, appID string, names []string) (scraper.Fields, error) {
	args := m.Called(ctx, appID, names)
	fields, _ := args.Get(0).(scraper.Fields)
	return fields, args.Error(1)
}

func (m *MockScraper) CacheStats() (cache.Stats, bool) {
	args := m.Called()
	return args.Get(0).(cache.Stats), args.Bool(1)
}

type fakeIDGen struct{}

func (fakeIDGen) MustNewID() string { return "req-1" }

func newTestServer(s Scraper) *Server {
	return NewServer(s, fakeIDGen{}, config.Config{}, zap.NewNop())
}

func serve(t *testing.T, srv *Server, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestServer_Analyze(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	s.On("Analyze", mock.Anything, "com.example.app").Return(scraper.Result{
		"title":           "Farm Builder",
		scraper.ReportKey: aso.Report{CompetitiveCategories: []string{"social"}},
	}, nil)

	rec := serve(t, newTestServer(s), "/v1/apps/com.example.app", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	require.Equal(t, "Farm Builder", body["title"])
	report, ok := body["aso"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []any{"social"}, report["competitive_categories"])
	s.AssertExpectations(t)
}

func TestServer_GetField(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	s.On("GetField", mock.Anything, "com.example.app", "score").Return(4.5, nil)

	rec := serve(t, newTestServer(s), "/v1/apps/com.example.app/fields/score", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "score", body["field"])
	require.InDelta(t, 4.5, body["value"], 0)
}

func TestServer_GetFieldsKeepsOrder(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	s.On("GetFields", mock.Anything, "com.example.app", []string{"title", "score"}).Return(scraper.Fields{
		{Name: "title", Value: "Farm Builder"},
		{Name: "score", Value: 4.5},
	}, nil)

	rec := serve(t, newTestServer(s), "/v1/apps/com.example.app/fields?name=title&name=score", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	fields, ok := body["fields"].([]any)
	require.True(t, ok)
	require.Len(t, fields, 2)
	require.Equal(t, "title", fields[0].(map[string]any)["name"])
	require.Equal(t, "score", fields[1].(map[string]any)["name"])
}

func TestServer_GetFieldsRequiresNames(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	rec := serve(t, newTestServer(s), "/v1/apps/com.example.app/fields", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	s.AssertNotCalled(t, "GetFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestServer_ErrorStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"invalid", scraper.NewInvalidAppID("bad", "malformed"), http.StatusBadRequest, "invalid_app_id"},
		{"not found", scraper.NewAppNotFound("com.missing.app"), http.StatusNotFound, "app_not_found"},
		{"rate limited", scraper.NewRateLimit("com.example.app", 4), http.StatusTooManyRequests, "rate_limit"},
		{"network", scraper.NewNetwork("com.example.app", errors.New("reset")), http.StatusBadGateway, "network"},
		{"parsing", scraper.NewDataParsing("com.example.app", "no title", nil), http.StatusBadGateway, "data_parsing"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := &MockScraper{}
			s.On("Analyze", mock.Anything, mock.Anything).Return(nil, tc.err)
			rec := serve(t, newTestServer(s), "/v1/apps/com.example.app", nil)

			require.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			require.NotEmpty(t, body["error"])
			if tc.kind != "" {
				require.Equal(t, tc.kind, body["kind"])
			}
		})
	}
}

func TestServer_UnknownFieldIsNotFound(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	s.On("GetField", mock.Anything, "com.example.app", "installs").
		Return(nil, &scraper.FieldError{AppID: "com.example.app", Field: "installs"})

	rec := serve(t, newTestServer(s), "/v1/apps/com.example.app/fields/installs", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CacheStats(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	s.On("CacheStats").Return(cache.Stats{Hits: 3, Misses: 1, Size: 1, Capacity: 100}, true)

	rec := serve(t, newTestServer(s), "/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, true, body["enabled"])
	stats := body["stats"].(map[string]any)
	require.InDelta(t, 3, stats["hits"], 0)

	disabled := &MockScraper{}
	disabled.On("CacheStats").Return(cache.Stats{}, false)
	rec = serve(t, newTestServer(disabled), "/v1/cache/stats", nil)
	require.Equal(t, false, decode(t, rec)["enabled"])
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&MockScraper{})
	require.Equal(t, http.StatusOK, serve(t, srv, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, serve(t, srv, "/readyz", nil).Code)

	rec := serve(t, srv, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "gplay_http_requests_total")
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	s.On("GetField", mock.Anything, "com.example.app", "title").Return("Farm Builder", nil)
	cfg := config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}}
	srv := NewServer(s, fakeIDGen{}, cfg, zap.NewNop())

	rec := serve(t, srv, "/v1/apps/com.example.app/fields/title", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, srv, "/v1/apps/com.example.app/fields/title", http.Header{"X-Api-Key": {"secret"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, srv, "/v1/apps/com.example.app/fields/title?api_key=secret", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open.
	require.Equal(t, http.StatusOK, serve(t, srv, "/healthz", nil).Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&MockScraper{})
	rec := serve(t, srv, "/healthz", nil)
	require.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	rec = serve(t, srv, "/healthz", http.Header{"X-Request-Id": {"upstream-id"}})
	require.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	s.On("Analyze", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(nil, nil)

	rec := serve(t, newTestServer(s), "/v1/apps/com.example.app", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_UnencodableValueIsServerError(t *testing.T) {
	t.Parallel()

	s := &MockScraper{}
	s.On("GetField", mock.Anything, "com.example.app", "score").Return(math.NaN(), nil)

	rec := serve(t, newTestServer(s), "/v1/apps/com.example.app/fields/score", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotEmpty(t, decode(t, rec)["error"])
}

func TestRequestBudgetCoversRetryWaits(t *testing.T) {
	t.Parallel()

	h := config.HTTPConfig{Timeout: 30 * time.Second, Retries: 3, RateLimitDelay: time.Second}
	require.Equal(t, 240*time.Second, requestBudget(h))

	h.RateLimitDelay = time.Minute
	require.Equal(t, 360*time.Second, requestBudget(h))

	require.Equal(t, 30*time.Second, requestBudget(config.HTTPConfig{}))
}
