package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akquise-tool/internal/cache"
	"github.com/akquise-tool/internal/engine"
	"github.com/akquise-tool/internal/lock"
	"github.com/akquise-tool/internal/metrics"
	"github.com/akquise-tool/internal/record"
)

type memorySink struct {
	mu       sync.Mutex
	inserted []record.Dataset
}

func (s *memorySink) InsertDataset(ctx context.Context, d record.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, d)
	return nil
}

func newTestServer(t *testing.T, config Config) (*Server, *memorySink) {
	t.Helper()

	customers := []record.Customer{
		{ID: "C1", Name: "Bäckerei Schulz", Street: "Hauptstraße", HouseNumber: "10-15", PostalCode: "50667", City: "Köln"},
	}
	datasets := []record.Dataset{
		{
			ID:                "D1",
			NormalizedAddress: "gartenweg|50667",
			HouseNumber:       "3",
			Street:            "Gartenweg",
			PostalCode:        "50667",
			CreatedAt:         time.Now().Add(-5 * 24 * time.Hour),
			CreatedBy:         "thomas",
		},
	}

	store := cache.NewStore()
	store.Replace(cache.NewSnapshot(customers, datasets))

	sink := &memorySink{}
	eng := engine.New(engine.Config{Store: store, Sink: sink})

	registry := prometheus.NewRegistry()
	metrics.NewMetrics(registry)

	srv := NewServer(config, Deps{
		Engine:   eng,
		Store:    store,
		Gatherer: registry,
	})
	return srv, sink
}

func TestSearchCustomersEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())

	req := httptest.NewRequest("GET", "/api/customers/search?street=Hauptstrasse&house_number=12&postal_code=50667", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var results []record.Customer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "C1", results[0].ID)
}

func TestSearchCustomersRequiresStreet(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())

	req := httptest.NewRequest("GET", "/api/customers/search?postal_code=50667", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckLockEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())

	t.Run("blocked for another agent", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/datasets/check?street=Gartenweg&house_number=3&postal_code=50667", nil)
		req.Header.Set("X-Agent-ID", "sabrina")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var decision lock.Decision
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
		assert.False(t, decision.Allowed)
		require.NotNil(t, decision.Blocking)
		assert.Equal(t, "thomas", decision.Blocking.CreatedBy)
	})

	t.Run("allowed for the creator", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/datasets/check?street=Gartenweg&house_number=3&postal_code=50667", nil)
		req.Header.Set("X-Agent-ID", "thomas")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var decision lock.Decision
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
		assert.True(t, decision.Allowed)
	})

	t.Run("missing agent header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/datasets/check?street=Gartenweg&postal_code=50667", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("digit-only street", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/datasets/check?street=12&postal_code=50667", nil)
		req.Header.Set("X-Agent-ID", "sabrina")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateDatasetEndpoint(t *testing.T) {
	srv, sink := newTestServer(t, DefaultConfig())

	body, _ := json.Marshal(map[string]interface{}{
		"street":       "Neue Straße",
		"house_number": "7",
		"postal_code":  "50667",
		"city":         "Köln",
		"residents":    []map[string]string{{"name": "Familie Weber", "status": "interessiert"}},
		"notes":        "Wiedervorlage im Herbst",
	})

	req := httptest.NewRequest("POST", "/api/datasets", bytes.NewReader(body))
	req.Header.Set("X-Agent-ID", "sabrina")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created record.Dataset
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "sabrina", created.CreatedBy)
	assert.Equal(t, "neue str|50667", created.NormalizedAddress)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.inserted, 1)
}

func TestCreateDatasetConflict(t *testing.T) {
	srv, sink := newTestServer(t, DefaultConfig())

	body, _ := json.Marshal(map[string]string{
		"street":       "Gartenweg",
		"house_number": "3",
		"postal_code":  "50667",
	})

	req := httptest.NewRequest("POST", "/api/datasets", bytes.NewReader(body))
	req.Header.Set("X-Agent-ID", "sabrina")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var conflict struct {
		Error    string        `json:"error"`
		Decision lock.Decision `json:"decision"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conflict))
	assert.Contains(t, conflict.Error, "thomas")
	require.NotNil(t, conflict.Decision.Blocking)
	assert.Equal(t, "D1", conflict.Decision.Blocking.ID)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.inserted)
}

func TestCreateDatasetRequiresUsableStreet(t *testing.T) {
	srv, sink := newTestServer(t, DefaultConfig())

	body, _ := json.Marshal(map[string]string{
		"street":       "12",
		"house_number": "4",
		"postal_code":  "50667",
	})

	req := httptest.NewRequest("POST", "/api/datasets", bytes.NewReader(body))
	req.Header.Set("X-Agent-ID", "sabrina")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.inserted)
}

func TestDatasetExportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())

	req := httptest.NewRequest("GET", "/api/datasets/export?street=Gartenweg&postal_code=50667", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "thomas")
}

func TestAuthenticationRequiresKey(t *testing.T) {
	config := DefaultConfig()
	config.APIKey = "secret"
	srv, _ := newTestServer(t, config)

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/stats", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/stats", nil)
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health is exempt", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())

	req := httptest.NewRequest("GET", "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Customers int `json:"customers"`
		Datasets  int `json:"datasets"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Customers)
	assert.Equal(t, 1, stats.Datasets)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "akquise_")
}

func TestPreflightRequest(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())

	req := httptest.NewRequest("OPTIONS", "/api/datasets", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "X-Agent-ID") {
		t.Errorf("preflight response misses X-Agent-ID in allowed headers: %q", rec.Header().Get("Access-Control-Allow-Headers"))
	}
}
