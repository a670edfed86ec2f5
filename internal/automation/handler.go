package automation

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stealthtrack/internal/logger"
	apperrors "stealthtrack/pkg/errors"
)

type Handler struct {
	service *Service
	log     logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/automations", h.ListRules)
	api.POST("/automations", h.CreateRule)
	api.PUT("/automations/:id", h.UpdateRule)
	api.DELETE("/automations/:id", h.DeleteRule)
	api.POST("/automations/:id/test", h.TestFire)
	api.GET("/automations/:id/runs", h.ListRuns)
}

func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.service.ListRules(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.ErrValidation.WithCause(err))
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.ErrValidation.WithCause(err))
		return
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) TestFire(c *gin.Context) {
	result, err := h.service.TestFire(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListRuns(c *gin.Context) {
	var limit int64
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			h.respondError(c, apperrors.ErrValidation.WithDetail("message", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	runs, err := h.service.ListRuns(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorwCtx(c.Request.Context(), "Request failed",
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	c.JSON(status, apperrors.ToErrorResponse(err))
}
