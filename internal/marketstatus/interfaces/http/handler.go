package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"firewatch-cloud/internal/marketstatus"
)

// Handler provides market status HTTP endpoints for the dashboard and
// map views. Reads are snapshot-cheap and safe to poll.
type Handler struct {
	aggregator *marketstatus.Aggregator
}

// NewHandler constructs a handler.
func NewHandler(aggregator *marketstatus.Aggregator) (*Handler, error) {
	if aggregator == nil {
		return nil, errors.New("marketstatus handler: nil aggregator")
	}
	return &Handler{aggregator: aggregator}, nil
}

// ServeHTTP handles /api/v1/markets/status and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/markets/status":
		h.handleAll(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/markets/"):
		h.handleOne(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		status := h.aggregator.StatusByName(name)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusResponse{MarketName: name, Status: string(status)})
		return
	}

	snapshots := h.aggregator.AllStatuses()
	if snapshots == nil {
		snapshots = []marketstatus.Snapshot{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshots)
}

func (h *Handler) handleOne(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/markets/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "status" || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	status := h.aggregator.StatusOf(parts[0])
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{MarketID: parts[0], Status: string(status)})
}

type statusResponse struct {
	MarketID   string `json:"market_id,omitempty"`
	MarketName string `json:"market_name,omitempty"`
	Status     string `json:"status"`
}
