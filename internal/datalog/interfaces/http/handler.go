package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"firewatch-cloud/internal/audit"
	"firewatch-cloud/internal/auth"
	datalogapp "firewatch-cloud/internal/datalog/application"
	datalog "firewatch-cloud/internal/datalog/domain"
)

const timeLayout = time.RFC3339

// Handler provides reception log HTTP endpoints.
type Handler struct {
	service *datalogapp.Service
	auditor audit.Logger
}

// NewHandler constructs a handler. The auditor is optional.
func NewHandler(service *datalogapp.Service, auditor audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("datalog handler: nil service")
	}
	return &Handler{service: service, auditor: auditor}, nil
}

func (h *Handler) logAction(r *http.Request, action, resourceID string, metadata []byte) {
	if h.auditor == nil {
		return
	}
	_ = h.auditor.Log(r.Context(), audit.Entry{
		Actor:        auth.RegistrarFromContext(r.Context()),
		Action:       action,
		ResourceType: "data_reception",
		ResourceID:   resourceID,
		Metadata:     metadata,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// ServeHTTP handles /api/v1/data-reception and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/data-reception":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleQuery(w, r)
	case "/api/v1/data-reception/delete":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleBulkDelete(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	// from/to are optional: the service defaults to the trailing week.
	var filter datalog.Filter
	var err error
	if filter.Start, err = parseOptionalTime(r, "from"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.End, err = parseOptionalTime(r, "to"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.MarketName = r.URL.Query().Get("market")

	items, err := h.service.Query(r.Context(), filter)
	if err != nil {
		if errors.Is(err, datalog.ErrRangeTooWide) {
			http.Error(w, "query range exceeds 31 days", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if items == nil {
		items = []datalog.Item{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, "ids is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := bulkDeleteResponse{
		Deleted:  result.Deleted,
		NotFound: result.NotFound,
	}
	for id := range result.Failed {
		resp.Failed = append(resp.Failed, id)
	}

	metadata, _ := json.Marshal(req)
	h.logAction(r, audit.ActionLogDelete, fmt.Sprintf("%d ids", len(req.IDs)), metadata)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type bulkDeleteResponse struct {
	Deleted  []int64 `json:"deleted"`
	NotFound []int64 `json:"not_found"`
	Failed   []int64 `json:"failed,omitempty"`
}

func parseOptionalTime(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
