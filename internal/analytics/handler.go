package analytics

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
	"microsite/pkg/middleware"
)

type Handler struct {
	ingestor *Ingestor
	tracker  *Tracker
	logger   logger.Logger
}

func NewHandler(ingestor *Ingestor, tracker *Tracker, log logger.Logger) *Handler {
	return &Handler{
		ingestor: ingestor,
		tracker:  tracker,
		logger:   log,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/events", h.TrackEvent)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", h.StartSession)
			sessions.POST("/:id/scroll", h.RecordScroll)
			sessions.POST("/:id/end", h.EndSession)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	if errors.Is(err, ErrSessionNotFound) {
		err = apperrors.ErrNotFound.WithDetail("message", "page session not found").WithCause(err)
	}

	status := apperrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.DebugwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, apperrors.ToErrorResponse(err))
}

// TrackEvent godoc
// @Summary      Track a browser event
// @Description  Validate an event reported by the site and forward it to the analytics collector
// @Tags         analytics
// @Accept       json
// @Produce      json
// @Param        event  body  BrowserEvent  true  "Event"
// @Success      202
// @Failure      400  {object}  errors.ErrorResponse
// @Router       /events [post]
func (h *Handler) TrackEvent(c *gin.Context) {
	var req BrowserEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, apperrors.ErrValidation.WithCause(err))
		return
	}

	if err := h.ingestor.Ingest(c.Request.Context(), req); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type StartSessionRequest struct {
	Page string `json:"page"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// StartSession godoc
// @Summary      Start a page session
// @Description  Open a page session and report the page view
// @Tags         analytics
// @Accept       json
// @Produce      json
// @Param        session  body  StartSessionRequest  false  "Page"
// @Success      201  {object}  StartSessionResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /sessions [post]
func (h *Handler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.handleError(c, apperrors.ErrValidation.WithCause(err))
			return
		}
	}

	session, err := h.tracker.Start(c.Request.Context(), req.Page)
	if err != nil {
		h.handleError(c, apperrors.ErrInternal.WithCause(err))
		return
	}

	c.Header(middleware.HeaderSessionID, session.ID)
	c.JSON(http.StatusCreated, StartSessionResponse{SessionID: session.ID})
}

// RecordScroll godoc
// @Summary      Record scroll position
// @Description  Update the scroll depth of a page session and report newly reached milestones
// @Tags         analytics
// @Accept       json
// @Produce      json
// @Param        id      path  string        true  "Session ID"
// @Param        scroll  body  ScrollUpdate  true  "Scroll position"
// @Success      200  {object}  ScrollResult
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /sessions/{id}/scroll [post]
func (h *Handler) RecordScroll(c *gin.Context) {
	var req ScrollUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, apperrors.ErrValidation.WithCause(err))
		return
	}

	result, err := h.tracker.Scroll(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EndSession godoc
// @Summary      End a page session
// @Description  Close a page session and report time on page
// @Tags         analytics
// @Produce      json
// @Param        id  path  string  true  "Session ID"
// @Success      200  {object}  SessionSummary
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /sessions/{id}/end [post]
func (h *Handler) EndSession(c *gin.Context) {
	summary, err := h.tracker.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
