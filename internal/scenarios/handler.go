package scenarios

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/shared/server/middleware"
	"feedback-backend/internal/shared/server/respond"
	"feedback-backend/internal/shared/storage/db"
)

const maxTitleLength = 200

// Cache clears a scenario's analysis data when the scenario is removed.
type Cache interface {
	Clear(ctx context.Context, scenarioID, principal string) error
}

// Handler wires HTTP handlers to the scenarios service.
type Handler struct {
	Svc   *Service
	Cache Cache
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, cache Cache) *Handler {
	return &Handler{Svc: svc, Cache: cache}
}

// RegisterRoutes attaches scenario routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scenarios", h.createScenario)
	rg.GET("/scenarios", h.listScenarios)
	rg.GET("/scenarios/:id", h.getScenario)
	rg.DELETE("/scenarios/:id", h.deleteScenario)
}

type createScenarioRequest struct {
	Title string `json:"title"`
}

func (h *Handler) createScenario(c *gin.Context) {
	principal := middleware.UserIDFromContext(c)

	var req createScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "title is required", nil)
		return
	}
	if len(title) > maxTitleLength {
		respond.Error(c, http.StatusBadRequest, "validation_error", "title is too long", nil)
		return
	}

	scenario, err := h.Svc.Create(c.Request.Context(), principal, title)
	if err != nil {
		h.respondServiceError(c, err, "failed to create scenario")
		return
	}
	respond.JSON(c, http.StatusCreated, scenario)
}

func (h *Handler) listScenarios(c *gin.Context) {
	principal := middleware.UserIDFromContext(c)

	list, err := h.Svc.List(c.Request.Context(), principal)
	if err != nil {
		h.respondServiceError(c, err, "failed to list scenarios")
		return
	}
	if list == nil {
		list = []Scenario{}
	}
	respond.OK(c, gin.H{"scenarios": list})
}

func (h *Handler) getScenario(c *gin.Context) {
	principal := middleware.UserIDFromContext(c)
	scenarioID := c.Param("id")
	c.Set("scenarioId", scenarioID)

	scenario, err := h.Svc.Get(c.Request.Context(), scenarioID, principal)
	if err != nil {
		h.respondServiceError(c, err, "failed to fetch scenario")
		return
	}
	respond.OK(c, scenario)
}

func (h *Handler) deleteScenario(c *gin.Context) {
	principal := middleware.UserIDFromContext(c)
	scenarioID := c.Param("id")
	c.Set("scenarioId", scenarioID)

	// Cached items and results go first so a scenario row never outlives
	// its namespace in one direction only.
	if h.Cache != nil {
		if err := h.Cache.Clear(c.Request.Context(), scenarioID, principal); err != nil {
			h.respondServiceError(c, err, "failed to delete scenario")
			return
		}
	}
	if err := h.Svc.Delete(c.Request.Context(), scenarioID, principal); err != nil {
		h.respondServiceError(c, err, "failed to delete scenario")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrAccessDenied):
		respond.Error(c, http.StatusForbidden, "access_denied", "scenario access denied", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "scenario not found", nil)
	case errors.Is(err, db.ErrQueryExhausted):
		respond.Error(c, http.StatusServiceUnavailable, "store_unavailable", "storage is temporarily unavailable", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
