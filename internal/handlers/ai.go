package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/services/ai"
)

// AIHandler handles AI enrichment requests
type AIHandler struct {
	enhancer ai.Enhancer
	logger   *zap.Logger
}

// NewAIHandler creates a new AI handler
func NewAIHandler(enhancer ai.Enhancer, logger *zap.Logger) *AIHandler {
	return &AIHandler{enhancer: enhancer, logger: logger}
}

// RegisterRoutes registers AI routes on the given router.
// The router should already have the /ai prefix.
func (h *AIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/enhance", h.Enhance).Methods("POST")
}

// EnhanceRequest represents a request to enrich raw capture text
type EnhanceRequest struct {
	Text    string `json:"text" validate:"required,min=1,max=10000"`
	Context string `json:"context" validate:"omitempty,max=2000"`
}

// Enhance turns raw capture text into a structured node suggestion
func (h *AIHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	if h.enhancer == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "AI enrichment is not configured")
		return
	}

	var req EnhanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateStruct(w, &req) {
		return
	}

	suggestion, err := h.enhancer.Enhance(r.Context(), req.Text, req.Context)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyInput) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Text is required")
			return
		}
		h.logger.Error("ai_enhancement_failed", zap.Error(err))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "AI enrichment failed")
		return
	}

	respondJSON(w, http.StatusOK, suggestion)
}
