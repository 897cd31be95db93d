package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"firewatch-cloud/internal/audit"
	"firewatch-cloud/internal/auth"
	firehistoryapp "firewatch-cloud/internal/firehistory/application"
	firehistory "firewatch-cloud/internal/firehistory/domain"
	"firewatch-cloud/internal/firehistory/interfaces/export"
)

const timeLayout = time.RFC3339

// Handler provides fire history HTTP endpoints.
type Handler struct {
	service *firehistoryapp.Service
	auditor audit.Logger
}

// NewHandler constructs a handler. The auditor is optional; when set,
// reconciliations and deletions are recorded with the acting operator.
func NewHandler(service *firehistoryapp.Service, auditor audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("firehistory handler: nil service")
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
		ResourceType: "fire_history",
		ResourceID:   resourceID,
		Metadata:     metadata,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// ServeHTTP handles /api/v1/fire-history and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/fire-history":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleQuery(w, r)
	case r.URL.Path == "/api/v1/fire-history/export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleExport(w, r)
	case r.URL.Path == "/api/v1/fire-history/delete":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleBulkDelete(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/fire-history/"):
		h.handleReconcile(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	filter := firehistory.Filter{
		Start:      from,
		End:        to,
		MarketName: r.URL.Query().Get("market"),
		FireOnly:   r.URL.Query().Get("fire_only") == "true",
		FaultOnly:  r.URL.Query().Get("fault_only") == "true",
	}

	items, err := h.service.Query(r.Context(), filter)
	if err != nil {
		if errors.Is(err, firehistory.ErrRangeTooWide) {
			http.Error(w, "query range exceeds 31 days", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if items == nil {
		items = []firehistory.Item{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := h.service.Query(r.Context(), firehistory.Filter{
		Start:      from,
		End:        to,
		MarketName: r.URL.Query().Get("market"),
		FireOnly:   r.URL.Query().Get("fire_only") == "true",
		FaultOnly:  r.URL.Query().Get("fault_only") == "true",
	})
	if err != nil {
		if errors.Is(err, firehistory.ErrRangeTooWide) {
			http.Error(w, "query range exceeds 31 days", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "xlsx":
		payload, err := export.BuildHistoryXLSX(items)
		if err != nil {
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="fire-history.xlsx"`)
		_, _ = w.Write(payload)
	case "pdf":
		payload, err := export.BuildHistoryPDF(items)
		if err != nil {
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="fire-history.pdf"`)
		_, _ = w.Write(payload)
	default:
		http.Error(w, "format must be xlsx or pdf", http.StatusBadRequest)
	}
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/fire-history/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "reconcile" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	item, err := h.service.Reconcile(r.Context(), id, req.Decision, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, firehistory.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, firehistory.ErrInvalidDecision):
			http.Error(w, "decision must be 화재 or 오탐", http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	metadata, _ := json.Marshal(req)
	h.logAction(r, audit.ActionReconcile, fmt.Sprintf("%d", id), metadata)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
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
	h.logAction(r, audit.ActionBulkDelete, fmt.Sprintf("%d ids", len(req.IDs)), metadata)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type reconcileRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type bulkDeleteResponse struct {
	Deleted  []int64 `json:"deleted"`
	NotFound []int64 `json:"not_found"`
	Failed   []int64 `json:"failed,omitempty"`
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
