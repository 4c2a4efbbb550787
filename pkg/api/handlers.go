package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/modelforge-ai/platform/pkg/common/logger"
	"github.com/modelforge-ai/platform/pkg/common/models"
	"github.com/modelforge-ai/platform/pkg/finetune"
	"github.com/modelforge-ai/platform/pkg/observability/metrics"
	"github.com/modelforge-ai/platform/pkg/registry"
)

type Handler struct {
	service *finetune.Service
}

func NewHandler(service *finetune.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/finetune", h.handleFineTune).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/models", h.handleListModels).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/models/{id}", h.handleGetModel).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/models/{id}", h.handleDeleteModel).Methods(http.MethodDelete)
	r.HandleFunc("/api/v1/mode", h.handleSetMode).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/mode", h.handleGetMode).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/cache", h.handleClearCache).Methods(http.MethodDelete)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.handleMetrics).Methods(http.MethodGet)
}

func (h *Handler) handleFineTune(w http.ResponseWriter, r *http.Request) {
	var req models.FineTuningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.ModelCategory == "" || req.Purpose == "" {
		http.Error(w, "model_category and purpose are required", http.StatusBadRequest)
		return
	}

	result := h.service.FineTuneModel(r.Context(), req)
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	filters := models.ModelFilters{
		Category:     models.ModelCategory(r.URL.Query().Get("category")),
		Purpose:      r.URL.Query().Get("purpose"),
		TargetDomain: r.URL.Query().Get("target_domain"),
		Mode:         models.TrainingMode(r.URL.Query().Get("mode")),
		Limit:        parseLimit(r, 50),
	}
	if raw := r.URL.Query().Get("optimized"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filters.Optimized = &v
		}
	}

	items, err := h.service.ListModels(r.Context(), filters)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list models")
		http.Error(w, "failed to list models", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": items, "count": len(items)})
}

func (h *Handler) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "model id is required", http.StatusBadRequest)
		return
	}

	info, err := h.service.GetModelInfo(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrModelNotFound) {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to get model")
		http.Error(w, "failed to get model", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"model": info})
}

func (h *Handler) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "model id is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.service.DeleteModel(r.Context(), id)
	if err != nil {
		logger.Log.WithError(err).Error("failed to delete model")
		http.Error(w, "failed to delete model", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode models.TrainingMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if payload.Mode == "" {
		http.Error(w, "mode is required", http.StatusBadRequest)
		return
	}

	if err := h.service.SetOperationMode(payload.Mode); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mode": h.service.OperationMode()})
}

func (h *Handler) handleGetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"mode": h.service.OperationMode()})
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCache(r.Context()); err != nil {
		logger.Log.WithError(err).Error("failed to clear cache")
		http.Error(w, "failed to clear cache", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "finetune-service",
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
