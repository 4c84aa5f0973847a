package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/store/storetest"
)

func (h *harness) get(t *testing.T, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestHandleQueryJSON(t *testing.T) {
	h := newHarness(t, storetest.NewMemory(fixtures()...))

	rec := h.get(t, "/api/query?start=2022-11-03T12:57:18.123Z&end=2022-11-03T12:57:20.123Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Records, 2)
	assert.True(t, base.Equal(resp.Records[0].Timestamp))
	assert.Equal(t, 351.0, resp.Records[1].FlightLevel)
}

func TestHandleQueryCBOR(t *testing.T) {
	h := newHarness(t, storetest.NewMemory(fixtures()...))

	rec := h.get(t, "/api/query?start=2022-11-03T12:57:18.123Z&end=2022-11-03T12:57:20.123Z",
		"Accept", "application/cbor, application/json;q=0.5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeCBOR, rec.Header().Get("Content-Type"))
	assert.Equal(t, "Accept", rec.Header().Get("Vary"))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	var resp QueryResponse
	require.NoError(t, cbor.Unmarshal(body, &resp))
	require.Len(t, resp.Records, 2)
	assert.True(t, base.Equal(resp.Records[0].Timestamp), "millisecond precision survives CBOR")
}

func TestHandleQueryEmptyResultIsEmptyArray(t *testing.T) {
	h := newHarness(t, storetest.NewMemory(fixtures()...))

	rec := h.get(t, "/api/query?start=2030-01-01T00:00:00Z&end=2030-01-02T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)
}

func TestHandleQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*storetest.Memory)
		target string
		want   int
	}{
		{
			name:   "malformed start",
			target: "/api/query?start=yesterday&end=2022-11-03T12:57:20.123Z",
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing end",
			target: "/api/query?start=2022-11-03T12:57:18.123Z",
			want:   http.StatusBadRequest,
		},
		{
			name:   "store failure",
			mutate: func(m *storetest.Memory) { m.FindErr = errors.New("cursor killed") },
			target: "/api/query?start=2022-11-03T12:57:18Z&end=2022-11-03T12:57:20Z",
			want:   http.StatusBadGateway,
		},
		{
			name:   "cursor failure",
			mutate: func(m *storetest.Memory) { m.CursorErr = errors.New("connection reset") },
			target: "/api/query?start=2022-11-03T12:57:18Z&end=2022-11-03T12:57:20Z",
			want:   http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := storetest.NewMemory(fixtures()...)
			if tt.mutate != nil {
				tt.mutate(m)
			}
			h := newHarness(t, m)

			rec := h.get(t, tt.target)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestHandleQueryHintInError(t *testing.T) {
	h := newHarness(t, storetest.NewMemory())

	rec := h.get(t, "/api/query?start=yesterday&end=2022-11-03T12:57:20.123Z")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "2022-11-03T12:57:18.123Z", "hint carries an example timestamp")
}

func TestHandleQueryActorStopped(t *testing.T) {
	h := newHarness(t, storetest.NewMemory(fixtures()...))
	h.actor.Stop()

	rec := h.get(t, "/api/query?start=2022-11-03T12:57:18Z&end=2022-11-03T12:57:20Z")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleQueryMethodNotAllowed(t *testing.T) {
	h := newHarness(t, storetest.NewMemory())

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleTestServesFixedWindow(t *testing.T) {
	h := newHarness(t, storetest.NewMemory(fixtures()...))

	rec := h.get(t, "/test")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, TestRangeStart, resp.Start)
	assert.Equal(t, TestRangeEnd, resp.End)
	assert.Len(t, resp.Records, 2, "end of the window is exclusive")
}

func TestHandleHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := newHarness(t, storetest.NewMemory())

		rec := h.get(t, "/health")
		require.Equal(t, http.StatusOK, rec.Code)

		var health HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, "running", health.State)
		assert.Equal(t, "memory", health.Backend)
		assert.Empty(t, health.StoreError)
	})

	t.Run("store unavailable", func(t *testing.T) {
		m := storetest.NewMemory()
		m.PingErr = errors.WrapStoreUnavailable(errors.New("connection refused"), "ping")
		h := newHarness(t, m)

		rec := h.get(t, "/health")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var health HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
		assert.Equal(t, "degraded", health.Status)
		assert.Equal(t, "unavailable", health.Store)
		assert.Contains(t, health.StoreError, "connection refused")
	})
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, storetest.NewMemory(fixtures()...), func(c *config.Config) {
		c.Query.RatePerSecond = 0.001
		c.Query.Burst = 1
	})

	first := h.get(t, "/test")
	assert.Equal(t, http.StatusOK, first.Code)

	second := h.get(t, "/test")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	// Health is not rate limited
	assert.Equal(t, http.StatusOK, h.get(t, "/health").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := newHarness(t, storetest.NewMemory(), func(c *config.Config) {
		c.Query.RatePerSecond = 0
	})
	assert.Nil(t, h.srv.limiter)

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, h.get(t, "/test").Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, storetest.NewMemory())

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	h := newHarness(t, storetest.NewMemory())

	rec := h.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, storetest.NewMemory(fixtures()...))
	require.Equal(t, http.StatusOK, h.get(t, "/test").Code)

	rec := h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "skytrace_http_requests_total")
	assert.Contains(t, body, "skytrace_query_messages_total")
}
