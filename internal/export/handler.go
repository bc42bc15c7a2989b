package export

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"photo-listing-portal/internal/middleware"
)

// Handler handles HTTP requests for exports
type Handler struct {
	service Service
}

// NewHandler creates a new export handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Download streams the listing's photos as a ZIP archive. ?submissionId pins
// the photo order to a specific proposal.
func (h *Handler) Download(c *gin.Context) {
	archive, err := h.service.Prepare(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
		c.Query("submissionId"),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Filename))
	c.Status(http.StatusOK)

	// headers are out, a mid-stream failure can only be logged
	if err := archive.WriteTo(c.Request.Context(), c.Writer); err != nil {
		log.Error().Err(err).Str("listing_id", c.Param("listingId")).Msg("archive streaming failed")
	}
}
