package submission

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/middleware"
)

// Handler handles HTTP requests for submissions
type Handler struct {
	service Service
}

// NewHandler creates a new submission handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ProposeRequest carries a proposed photo order and an optional note.
type ProposeRequest struct {
	PhotoIDs []string `json:"photo_ids" binding:"required"`
	Note     *string  `json:"note"`
}

// Propose opens a review round for the listing.
func (h *Handler) Propose(c *gin.Context) {
	var req ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	view, err := h.service.Propose(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
		req.PhotoIDs,
		req.Note,
	)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Approve resolves the review round in favor of the proposal.
func (h *Handler) Approve(c *gin.Context) {
	view, err := h.service.Approve(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
		c.Param("submissionId"),
	)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RequestChangesRequest carries the reviewer's note back to the initiator.
type RequestChangesRequest struct {
	Note string `json:"note"`
}

// RequestChanges resolves the review round against the proposal.
func (h *Handler) RequestChanges(c *gin.Context) {
	var req RequestChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	view, err := h.service.RequestChanges(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
		c.Param("submissionId"),
		req.Note,
	)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Latest returns the most recent submission for the listing.
func (h *Handler) Latest(c *gin.Context) {
	view, err := h.service.Latest(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
	)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}
