package middleware

import (
	"strings"

	"photo-listing-portal/internal/auth"
	"photo-listing-portal/internal/domain"
	"photo-listing-portal/internal/errors"
	"photo-listing-portal/internal/permission"

	"github.com/gin-gonic/gin"
)

type UserProvider interface {
	GetUserByID(id string) (*domain.User, error)
}

type Auth struct {
	UserService UserProvider
	CronSecret  string
}

// AuthMiddleWare verifies the bearer token, loads the user and stores the
// acting identity on the context.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		parsedToken, err := auth.VerifyJWT(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		userID, err := auth.UserIDFromToken(parsedToken)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		user, err := m.UserService.GetUserByID(userID)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid user!", err))
			ctx.Abort()
			return
		}

		if !user.IsActive {
			ctx.Error(errors.Unauthorized("User is not active!", nil))
			ctx.Abort()
			return
		}

		ctx.Set("actor", permission.Actor{ID: user.ID, Role: user.Role})
		ctx.Set("current_user", user)
		ctx.Next()
	}
}

// CronAuthMiddleware protects the externally scheduled endpoints with a shared
// bearer secret. When no secret is configured the check is skipped, which is
// only acceptable in development.
func (m *Auth) CronAuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if m.CronSecret == "" {
			ctx.Next()
			return
		}

		token := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		if token != m.CronSecret {
			ctx.Error(errors.Unauthorized("Unauthorized cron request!", nil))
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

// ActorFrom returns the acting identity placed on the context by the auth
// middleware.
func ActorFrom(c *gin.Context) permission.Actor {
	actor, _ := c.Get("actor")
	a, _ := actor.(permission.Actor)
	return a
}

// CurrentUser returns the full user record for the acting identity.
func CurrentUser(c *gin.Context) *domain.User {
	u, _ := c.Get("current_user")
	user, _ := u.(*domain.User)
	return user
}
