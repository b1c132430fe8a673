package analyses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/scenarios"
	"feedback-backend/internal/shared/server/middleware"
	"feedback-backend/internal/shared/server/respond"
	"feedback-backend/internal/shared/storage/db"
)

const maxBatchSize = 100

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scenarios/:id/analyze", h.analyzeBatch)
	rg.GET("/scenarios/:id/results", h.getResults)
}

type analyzeRequest struct {
	Texts []string `json:"texts"`
}

func (h *Handler) analyzeBatch(c *gin.Context) {
	principal := middleware.UserIDFromContext(c)
	scenarioID := c.Param("id")
	if scenarioID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "scenario id is required", nil)
		return
	}
	c.Set("scenarioId", scenarioID)

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if len(req.Texts) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "texts must not be empty", nil)
		return
	}
	if len(req.Texts) > maxBatchSize {
		respond.Error(c, http.StatusBadRequest, "validation_error", "too many texts in one batch", []map[string]string{
			{"field": "texts", "issue": "max_batch_size_exceeded"},
		})
		return
	}

	result, err := h.Svc.Analyze(c.Request.Context(), scenarioID, principal, req.Texts)
	if err != nil {
		h.respondServiceError(c, err, "failed to analyze batch")
		return
	}
	respond.OK(c, result)
}

func (h *Handler) getResults(c *gin.Context) {
	principal := middleware.UserIDFromContext(c)
	scenarioID := c.Param("id")
	if scenarioID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "scenario id is required", nil)
		return
	}
	c.Set("scenarioId", scenarioID)

	result, err := h.Svc.Results(c.Request.Context(), scenarioID, principal)
	if err != nil {
		h.respondServiceError(c, err, "failed to fetch results")
		return
	}
	respond.OK(c, result)
}

func (h *Handler) respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, scenarios.ErrAccessDenied):
		respond.Error(c, http.StatusForbidden, "access_denied", "scenario access denied", nil)
	case errors.Is(err, scenarios.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "scenario not found", nil)
	case errors.Is(err, db.ErrQueryExhausted):
		respond.Error(c, http.StatusServiceUnavailable, "store_unavailable", "storage is temporarily unavailable", nil)
	case errors.Is(err, ErrAnalysisFailed):
		respond.Error(c, http.StatusBadGateway, "analysis_failed", "sentiment analysis failed", nil)
	case errors.Is(err, ErrPersistenceFailed):
		respond.Error(c, http.StatusBadGateway, "persistence_failed", "results could not be stored", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
