package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ajkula/dirmon/config"
	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/inbound"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

// Handler serves the watch control API
type Handler struct {
	monitor inbound.DirectoryMonitor
	sink    model.Callback
	stats   inbound.StatsService
	config  *config.Config
	logger  outbound.Logger
}

// WatchRequest is the body of POST /api/watches
type WatchRequest struct {
	Path    string   `json:"path"`
	Actions []string `json:"actions,omitempty"`
}

type watchesResponse struct {
	Watches   []model.WatchInfo `json:"watches"`
	Running   bool              `json:"running"`
	LastError string            `json:"lastError,omitempty"`
}

type actionResponse struct {
	Mask  model.Action `json:"mask"`
	Name  string       `json:"name"`
	Names []string     `json:"names"`
}

// NewHandler creates the REST handler. Every watch registered through the
// API delivers its events to sink. stats may be nil.
func NewHandler(
	monitor inbound.DirectoryMonitor,
	sink model.Callback,
	stats inbound.StatsService,
	cfg *config.Config,
	logger outbound.Logger,
) *Handler {
	return &Handler{
		monitor: monitor,
		sink:    sink,
		stats:   stats,
		config:  cfg,
		logger:  logger,
	}
}

// SetupRoutes registers the REST routes
func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/health", h.healthCheck).Methods("GET")

	router.HandleFunc("/api/watches", h.listWatches).Methods("GET")
	router.HandleFunc("/api/watches", h.addWatch).Methods("POST")
	router.HandleFunc("/api/watches", h.removeWatch).Methods("DELETE")

	router.HandleFunc("/api/actions/{mask}", h.actionName).Methods("GET")

	router.HandleFunc("/api/config", h.getConfig).Methods("GET")

	if h.stats != nil {
		router.HandleFunc("/api/stats", h.getStats).Methods("GET")
	}
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.monitor.LastError() != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) listWatches(w http.ResponseWriter, r *http.Request) {
	response := watchesResponse{
		Watches: h.monitor.Watches(),
		Running: h.monitor.IsRunning(),
	}
	if err := h.monitor.LastError(); err != nil {
		response.LastError = err.Error()
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) addWatch(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Path == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return
	}

	mask, err := config.WatchConfig{Path: req.Path, Actions: req.Actions}.Mask()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.monitor.Watch(req.Path, h.sink, mask)
	if err != nil {
		h.logger.Warn("Watch request failed", "path", req.Path, "error", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	h.logger.Info("Watch added", "path", info.Path, "actions", h.monitor.ActionName(info.Actions))
	if h.stats != nil {
		h.stats.RecordWatchAdded(info.Path, info.Actions)
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) removeWatch(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "Path query parameter is required", http.StatusBadRequest)
		return
	}

	removed, err := h.monitor.Unwatch(path)
	if err != nil {
		h.logger.Warn("Unwatch request failed", "path", path, "error", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if !removed {
		http.Error(w, "Path is not watched", http.StatusNotFound)
		return
	}

	h.logger.Info("Watch removed", "path", path)
	if h.stats != nil {
		h.stats.RecordWatchRemoved(path)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) actionName(w http.ResponseWriter, r *http.Request) {
	mask, err := model.ParseMask(mux.Vars(r)["mask"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{
		Mask:  mask,
		Name:  h.monitor.ActionName(mask),
		Names: mask.Names(),
	})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.Public())
}

// statusFor maps monitor errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrDuplicateWatch):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidPath), errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrMonitorClosed), errors.Is(err, model.ErrBackendIO):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
