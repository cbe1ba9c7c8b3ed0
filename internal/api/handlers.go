package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"filekv/internal/health"
	"filekv/internal/logs"
	"filekv/internal/metrics"
	"filekv/internal/store"
)

// maxBodyBytes bounds request bodies: a full batch of maximum-size values fits.
const maxBodyBytes = 4 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	metrics  *metrics.Registry
	logger   *logs.Logger
	analyzer *health.Analyzer
}

// NewHandler creates a new API handler.
func NewHandler(
	store *store.Store,
	metrics *metrics.Registry,
	logger *logs.Logger,
) *Handler {
	return &Handler{
		store:    store,
		metrics:  metrics,
		logger:   logger,
		analyzer: health.NewAnalyzer(metrics, logger),
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Committed *int   `json:"committed,omitempty"`
}

const kindBadRequest = "BadRequest"

// statusFor maps a store error kind onto an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case store.KindInvalidKey, store.KindInvalidTTL, kindBadRequest:
		return http.StatusBadRequest
	case store.KindSizeLimitExceeded, store.KindBatchTooLarge:
		return http.StatusRequestEntityTooLarge
	case store.KindKeyAlreadyExists:
		return http.StatusConflict
	case store.KindKeyNotFound:
		return http.StatusNotFound
	case store.KindStorageLimitExceeded:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorCommitted(w, err, nil)
}

func writeErrorCommitted(w http.ResponseWriter, err error, committed *int) {
	kind := store.Kind(err)
	if kind == "" {
		kind = store.KindPersistenceFailure
	}
	writeJSON(w, statusFor(kind), errorResponse{Error: err.Error(), Kind: kind, Committed: committed})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: kindBadRequest})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

/* ---------------- PUT /kv/{key} ---------------- */

type createRequest struct {
	Value      *string `json:"value"`
	TTLSeconds int64   `json:"ttl_seconds,omitempty"`
}

func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		badRequest(w, "missing key in URL")
		return
	}

	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if req.Value == nil {
		badRequest(w, "missing value")
		return
	}
	ttl, err := store.TTLFromSeconds(req.TTLSeconds)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.Create(key, *req.Value, ttl); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

/* ---------------- GET /kv/{key} ---------------- */

func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		badRequest(w, "missing key in URL")
		return
	}

	value, err := h.store.Read(key)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"value": value,
	})
}

/* ---------------- DELETE /kv/{key} ---------------- */

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		badRequest(w, "missing key in URL")
		return
	}

	if err := h.store.Delete(key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/* ---------------- POST /kv ---------------- */

type batchRequest struct {
	Entries    []store.KV `json:"entries"`
	TTLSeconds int64      `json:"ttl_seconds,omitempty"`
}

type batchResponse struct {
	Committed int `json:"committed"`
}

// BatchCreate creates entries in request order. It is not atomic: on
// failure the error body reports how many entries were committed.
func (h *Handler) BatchCreate(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	ttl, err := store.TTLFromSeconds(req.TTLSeconds)
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := h.store.BatchCreate(req.Entries, ttl)
	if err != nil {
		writeErrorCommitted(w, err, &n)
		return
	}
	writeJSON(w, http.StatusCreated, batchResponse{Committed: n})
}

/* ---------------- GET /admin/keys ---------------- */

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	entries := h.store.List()

	resp := make(map[string]string, len(entries))
	for k, v := range entries {
		resp[k] = v.Value
	}

	writeJSON(w, http.StatusOK, resp)
}

/* ---------------- GET /metrics ---------------- */

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

/* ---------------- GET /health ---------------- */

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.Analyze())
}
