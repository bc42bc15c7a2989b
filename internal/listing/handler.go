package listing

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/middleware"
)

const maxUploadBytes = 25 << 20 // 25 MB per photo

// Handler handles HTTP requests for listings
type Handler struct {
	service Service
}

// NewHandler creates a new listing handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateListingRequest is the create payload.
type CreateListingRequest struct {
	Address string `json:"address" binding:"required"`
	Title   string `json:"title"`
}

// Create handles listing creation
func (h *Handler) Create(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	view, err := h.service.Create(c.Request.Context(), middleware.CurrentUser(c), req.Address, req.Title)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// List returns the listing index. ?all=true asks for every user's listings and
// requires the read_all permission.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	opts := ListOptions{
		All:    c.Query("all") == "true",
		Status: domain.ListingStatus(c.Query("status")),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}

	page, err := h.service.List(c.Request.Context(), middleware.CurrentUser(c), opts)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get returns one listing with its ordered photos.
func (h *Handler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("listingId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateListingRequest is the patch payload. Exactly one kind of update is
// dispatched per request: a photo order, a status transition, or new details.
type UpdateListingRequest struct {
	Address  *string  `json:"address"`
	Title    *string  `json:"title"`
	Status   *string  `json:"status"`
	PhotoIDs []string `json:"photo_ids"`
}

// Update dispatches on the payload shape: photo_ids reorders, status submits
// or approves, address/title updates the details.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	u := middleware.CurrentUser(c)
	id := c.Param("listingId")
	ctx := c.Request.Context()

	var (
		view *ListingView
		err  error
	)
	switch {
	case req.PhotoIDs != nil:
		view, err = h.service.Reorder(ctx, u, id, req.PhotoIDs)
	case req.Status != nil:
		switch domain.ListingStatus(*req.Status) {
		case domain.ListingSubmitted:
			view, err = h.service.Submit(ctx, u, id)
		case domain.ListingApproved:
			view, err = h.service.Approve(ctx, u, id)
		default:
			err = errors.BadRequest("Unsupported status transition", nil)
		}
	default:
		view, err = h.service.UpdateDetails(ctx, u, id, req.Address, req.Title)
	}

	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Submit moves the listing into review.
func (h *Handler) Submit(c *gin.Context) {
	view, err := h.service.Submit(c.Request.Context(), middleware.CurrentUser(c), c.Param("listingId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Approve marks the listing as approved.
func (h *Handler) Approve(c *gin.Context) {
	view, err := h.service.Approve(c.Request.Context(), middleware.CurrentUser(c), c.Param("listingId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete removes the listing, its photos and their stored files.
func (h *Handler) Delete(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("listingId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UploadPhoto accepts one multipart image under the "file" field.
func (h *Handler) UploadPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(errors.BadRequest("A file is required", err))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.Error(errors.BadRequest("File exceeds the 25 MB limit", nil))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(errors.BadRequest("Could not read file", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.Error(errors.BadRequest("Could not read file", err))
		return
	}

	view, err := h.service.AddPhoto(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
		data,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// ServePhoto streams the photo bytes. ?thumb=1 serves the JPEG thumbnail,
// falling back to the original when none was generated.
func (h *Handler) ServePhoto(c *gin.Context) {
	data, contentType, err := h.service.GetPhotoFile(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
		c.Param("photoId"),
		c.Query("thumb") == "1",
	)
	if err != nil {
		c.Error(err)
		return
	}
	// photo bytes never change under a given id, so clients may cache forever
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}

// TogglePhotoExcluded flips the photo's do-not-use flag.
func (h *Handler) TogglePhotoExcluded(c *gin.Context) {
	view, err := h.service.TogglePhotoExcluded(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
		c.Param("photoId"),
	)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeletePhoto removes the photo record and its stored files.
func (h *Handler) DeletePhoto(c *gin.Context) {
	err := h.service.DeletePhoto(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("listingId"),
		c.Param("photoId"),
	)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Cleanup runs the retention sweep. The route is guarded by the cron secret,
// not user auth.
func (h *Handler) Cleanup(c *gin.Context) {
	result, err := h.service.CleanupOld(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
