package contact

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stealthtrack/internal/logger"
	apperrors "stealthtrack/pkg/errors"
)

type Handler struct {
	service *Service
	log     logger.Logger
	tracker []byte
}

func NewHandler(service *Service, log logger.Logger, trackerScript []byte) *Handler {
	return &Handler{service: service, log: log, tracker: trackerScript}
}

// RegisterRoutes mounts the tracking and dashboard endpoints. The track
// group is what the browser tracker talks to; the rest serves the
// dashboard. The tracker script itself is delivered from here too, so
// customer sites embed one script tag pointing at this backend.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, track *gin.RouterGroup) {
	api.GET("/shumard.js", h.TrackerScript)

	track.POST("/pageview", h.TrackPageView)
	track.POST("/lead", h.TrackLead)
	track.POST("/registration", h.TrackRegistration)
	track.POST("/stitch", h.Stitch)
	track.POST("/stitch/by-session", h.StitchBySession)

	api.GET("/contacts", h.ListContacts)
	api.GET("/contacts/:contact_id", h.GetContact)
	api.DELETE("/contacts/:contact_id", h.DeleteContact)
	api.GET("/stats", h.Stats)
}

// TrackerScript serves the embeddable browser tracker. Never cached so
// tracker updates roll out on the next page load.
func (h *Handler) TrackerScript(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Data(http.StatusOK, "application/javascript", h.tracker)
}

func (h *Handler) TrackPageView(c *gin.Context) {
	var req PageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.ErrValidation.WithCause(err))
		return
	}

	visitID, err := h.service.TrackPageView(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "visit_id": visitID, "contact_id": req.ContactID})
}

func (h *Handler) TrackLead(c *gin.Context) {
	var req LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.ErrValidation.WithCause(err))
		return
	}

	if err := h.service.TrackLead(c.Request.Context(), &req, c.ClientIP()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "contact_id": req.ContactID})
}

func (h *Handler) TrackRegistration(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.ErrValidation.WithCause(err))
		return
	}

	if err := h.service.TrackRegistration(c.Request.Context(), &req, c.ClientIP()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "contact_id": req.ContactID})
}

func (h *Handler) Stitch(c *gin.Context) {
	var req StitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.ErrValidation.WithCause(err))
		return
	}

	result, err := h.service.Stitch(c.Request.Context(), req.ParentContactID, req.ChildContactID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) StitchBySession(c *gin.Context) {
	sessionID := c.Query("session_id")

	parentID, results, err := h.service.StitchBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if parentID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "nothing_to_stitch"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"parent_contact_id": parentID,
		"stitched":          results,
	})
}

func (h *Handler) ListContacts(c *gin.Context) {
	search := c.Query("search")
	includeMerged := c.Query("include_merged") == "true"

	contacts, err := h.service.ListContacts(c.Request.Context(), search, includeMerged)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *Handler) GetContact(c *gin.Context) {
	detail, err := h.service.GetContactDetail(c.Request.Context(), c.Param("contact_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) DeleteContact(c *gin.Context) {
	if err := h.service.DeleteContact(c.Request.Context(), c.Param("contact_id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
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
