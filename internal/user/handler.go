package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"photo-listing-portal/internal/auth"
	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/middleware"
)

// Handler handles HTTP requests for users
type Handler struct {
	service Service
}

// NewHandler creates a new user handler
func NewHandler(service Service) *Handler {
	registerRoleValidation()
	return &Handler{service: service}
}

func registerRoleValidation() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// idempotent, re-registering the same tag just overwrites it
		v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return domain.Role(fl.Field().String()).Valid()
		})
	}
}

// FormLogin represents login form data
type FormLogin struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// FormRegister represents registration form data
type FormRegister struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register handles user registration
func (h *Handler) Register(c *gin.Context) {
	var form FormRegister
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	u := &domain.User{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}

	if err := h.service.Register(u); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u.ToSafeUser()})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var form FormLogin
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	u, err := h.service.Login(form.Email, form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	accessToken, err := auth.GenerateJWT(u.ID)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"user":         u.ToSafeUser(),
	})
}

// GetProfile returns the authenticated user's own profile.
func (h *Handler) GetProfile(c *gin.Context) {
	u := middleware.CurrentUser(c)
	if u == nil {
		c.Error(errors.Unauthorized("Unauthorized", nil))
		return
	}
	c.JSON(http.StatusOK, u.ToSafeUser())
}

// ListUsers returns all users with their listing counts (admin only).
func (h *Handler) ListUsers(c *gin.Context) {
	result, err := h.service.ListUsers(middleware.ActorFrom(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,role"`
}

// ChangeRole updates the target user's role (admin only).
func (h *Handler) ChangeRole(c *gin.Context) {
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	updated, err := h.service.ChangeRole(
		middleware.ActorFrom(c),
		c.Param("userId"),
		domain.Role(req.Role),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteUser removes the target user (admin only).
func (h *Handler) DeleteUser(c *gin.Context) {
	err := h.service.DeleteUser(middleware.ActorFrom(c), c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
