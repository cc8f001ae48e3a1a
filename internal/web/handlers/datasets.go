package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/engine"
	"github.com/akquise-tool/internal/lock"
	"github.com/akquise-tool/internal/record"
)

// DatasetsHandler handles lock checks and field visit dataset creation.
type DatasetsHandler struct {
	Engine *engine.Engine
}

// CreateDatasetRequest is the POST body for a new field visit dataset.
type CreateDatasetRequest struct {
	Street      string            `json:"street"`
	HouseNumber string            `json:"house_number"`
	PostalCode  string            `json:"postal_code"`
	City        string            `json:"city"`
	Residents   []record.Resident `json:"residents"`
	Notes       string            `json:"notes"`
}

// LockConflictResponse is the 409 body when the recency lock blocks a
// creation, naming who visited the address and when.
type LockConflictResponse struct {
	Error    string        `json:"error"`
	Decision lock.Decision `json:"decision"`
}

// CheckLock previews whether the agent may create a dataset at the queried
// address. The binding check happens again inside Create.
func (h *DatasetsHandler) CheckLock(w http.ResponseWriter, r *http.Request) {
	identity := r.Header.Get("X-Agent-ID")
	if identity == "" {
		http.Error(w, "X-Agent-ID header required", http.StatusBadRequest)
		return
	}

	q, _, ok := queryFromRequest(w, r)
	if !ok {
		return
	}

	decision, err := h.Engine.CheckCreationLock(r.Context(), q, identity)
	if err != nil {
		if errors.Is(err, engine.ErrNoStreet) {
			http.Error(w, "Street required", http.StatusBadRequest)
			return
		}
		log.WithError(err).Error("Failed to check creation lock")
		http.Error(w, "Failed to check creation lock", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

// Create stores a new field visit dataset. Returns 409 with the blocking
// visit when the address was recently worked by another agent.
func (h *DatasetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := r.Header.Get("X-Agent-ID")
	if identity == "" {
		http.Error(w, "X-Agent-ID header required", http.StatusBadRequest)
		return
	}

	var req CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Street) == "" {
		http.Error(w, "Street required", http.StatusBadRequest)
		return
	}

	q := record.AddressQuery{
		Street:      req.Street,
		HouseNumber: req.HouseNumber,
		PostalCode:  req.PostalCode,
		City:        req.City,
	}
	input := record.Dataset{
		Residents: req.Residents,
		Notes:     req.Notes,
	}

	created, err := h.Engine.CreateDataset(r.Context(), q, identity, input)
	if err != nil {
		var locked *engine.LockedError
		if errors.As(err, &locked) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(LockConflictResponse{
				Error:    locked.Error(),
				Decision: locked.Decision,
			})
			return
		}
		if errors.Is(err, engine.ErrNoStreet) {
			http.Error(w, "Street required", http.StatusBadRequest)
			return
		}

		log.WithError(err).Error("Failed to create dataset")
		http.Error(w, "Failed to create dataset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// Export streams the datasets matching the queried address as CSV for the
// office sheet.
func (h *DatasetsHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, _, ok := queryFromRequest(w, r)
	if !ok {
		return
	}

	results := h.Engine.SearchDatasets(q, -1)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=datasets-%s.csv", time.Now().Format("2006-01-02")))

	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "street", "house_number", "postal_code", "city", "residents", "notes", "created_at", "created_by"})
	for _, d := range results {
		cw.Write([]string{
			d.ID,
			d.Street,
			d.HouseNumber,
			d.PostalCode,
			d.City,
			formatResidents(d.Residents),
			d.Notes,
			d.CreatedAt.Format(time.RFC3339),
			d.CreatedBy,
		})
	}
	cw.Flush()

	if err := cw.Error(); err != nil {
		log.WithError(err).Warn("Failed to stream dataset export")
	}
}

func formatResidents(residents []record.Resident) string {
	parts := make([]string, 0, len(residents))
	for _, res := range residents {
		if res.Status != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", res.Name, res.Status))
		} else {
			parts = append(parts, res.Name)
		}
	}
	return strings.Join(parts, "; ")
}
