package announcement

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"microsite/internal/constants"
	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
)

type Handler struct {
	store  *DocumentStore
	feed   *Feed
	loader *Loader
	logger logger.Logger
}

// NewHandler builds the feed handler. store may be nil when the document is
// hosted elsewhere.
func NewHandler(store *DocumentStore, feed *Feed, loader *Loader, log logger.Logger) *Handler {
	return &Handler{store: store, feed: feed, loader: loader, logger: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	if h.store != nil {
		router.GET(constants.FeedPath, h.Document)
	}
	router.GET("/announcements", h.Fragment)

	v1 := router.Group("/api/v1/announcements")
	{
		v1.GET("", h.List)
		v1.POST("/:id/click", h.Click)
	}
}

// Document godoc
// @Summary      Announcements document
// @Description  Raw feed document as published by content authors
// @Tags         announcements
// @Produce      json
// @Success      200  {array}   Announcement
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /data/announcements.json [get]
func (h *Handler) Document(c *gin.Context) {
	data, err := h.store.Fetch(c.Request.Context())
	if err != nil {
		c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Fragment godoc
// @Summary      Rendered announcements
// @Description  Markup for the announcements-list region
// @Tags         announcements
// @Produce      html
// @Success      200  {string}  string
// @Router       /announcements [get]
func (h *Handler) Fragment(c *gin.Context) {
	container := NewMemoryContainer(constants.FeedContainerID)
	result := h.feed.Render(c.Request.Context(), container)
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(result.HTML))
}

// List godoc
// @Summary      List announcements
// @Description  Active announcements in display order
// @Tags         announcements
// @Produce      json
// @Success      200  {array}  Announcement
// @Router       /api/v1/announcements [get]
func (h *Handler) List(c *gin.Context) {
	list := h.loader.Load(c.Request.Context())
	Sort(list)
	c.JSON(http.StatusOK, list)
}

// Click godoc
// @Summary      Track an announcement click
// @Description  Report a click on a rendered announcement card
// @Tags         announcements
// @Produce      json
// @Param        id  path  string  true  "Announcement ID"
// @Success      202
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /api/v1/announcements/{id}/click [post]
func (h *Handler) Click(c *gin.Context) {
	if err := h.feed.TrackClick(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.DebugwCtx(c.Request.Context(), "Click on unknown announcement", "announcement_id", c.Param("id"))
		c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
		return
	}
	c.Status(http.StatusAccepted)
}
