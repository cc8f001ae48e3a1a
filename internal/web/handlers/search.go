package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/akquise-tool/internal/engine"
	"github.com/akquise-tool/internal/record"
	"github.com/akquise-tool/internal/resultcache"
)

// SearchHandler handles address search endpoints backed by the matching
// engine. Cache is optional; when set, responses are served read-through.
type SearchHandler struct {
	Engine *engine.Engine
	Cache  *resultcache.Cache
}

// SearchCustomers returns existing customers matching the queried address
// and house numbers.
func (h *SearchHandler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	q, limit, ok := queryFromRequest(w, r)
	if !ok {
		return
	}

	key := resultcache.QueryKey("customers", q.Street, q.HouseNumber, q.PostalCode, q.City, strconv.Itoa(limit))
	var cached []record.Customer
	if h.Cache.Get(r.Context(), key, &cached) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cached)
		return
	}

	results := h.Engine.SearchCustomers(q, limit)
	h.Cache.Set(r.Context(), key, results)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// SearchDatasets returns field visit datasets matching the queried address
// and house numbers, most recent first.
func (h *SearchHandler) SearchDatasets(w http.ResponseWriter, r *http.Request) {
	q, limit, ok := queryFromRequest(w, r)
	if !ok {
		return
	}

	key := resultcache.QueryKey("datasets", q.Street, q.HouseNumber, q.PostalCode, q.City, strconv.Itoa(limit))
	var cached []record.Dataset
	if h.Cache.Get(r.Context(), key, &cached) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cached)
		return
	}

	results := h.Engine.SearchDatasets(q, limit)
	h.Cache.Set(r.Context(), key, results)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// queryFromRequest reads the address parameters shared by the search and
// lock endpoints. Writes a 400 and returns ok=false when street is missing.
func queryFromRequest(w http.ResponseWriter, r *http.Request) (record.AddressQuery, int, bool) {
	query := r.URL.Query()

	q := record.AddressQuery{
		Street:      query.Get("street"),
		HouseNumber: query.Get("house_number"),
		PostalCode:  query.Get("postal_code"),
		City:        query.Get("city"),
	}
	if q.Street == "" {
		http.Error(w, "Street required", http.StatusBadRequest)
		return record.AddressQuery{}, 0, false
	}

	limit := parseIntParam(query.Get("limit"), 0)
	if limit < 0 {
		limit = 0
	}
	if limit > 200 {
		limit = 200 // Maximum limit
	}
	return q, limit, true
}

// parseIntParam parses a string as int with a default value.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return defaultVal
}
