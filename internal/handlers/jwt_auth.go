package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/examstack/exam-platform/internal/auth"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
)

// JWTAuthMiddleware authenticates requests with bearer access tokens. The
// user row is loaded on every request so suspensions take effect without
// waiting for token expiry.
type JWTAuthMiddleware struct {
	tokens   *auth.TokenManager
	userRepo repositories.UserRepository
}

func NewJWTAuthMiddleware(tokens *auth.TokenManager, userRepo repositories.UserRepository) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{
		tokens:   tokens,
		userRepo: userRepo,
	}
}

// AuthMiddleware validates the bearer token and attaches the principal to
// the context.
func (am *JWTAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "authorization header missing or malformed")
			return
		}

		claims, err := am.tokens.VerifyAccessToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		user, err := am.userRepo.GetByID(c.Request.Context(), nil, claims.Subject)
		if err != nil {
			abortUnauthorized(c, "user no longer exists")
			return
		}
		if user.Suspended {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Message: "Account suspended",
			})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user_role", user.Role)
		c.Set("principal", &models.Principal{
			ID:       user.ID,
			Email:    user.Email,
			Role:     user.Role,
			Plan:     user.Plan,
			Verified: user.EmailVerified,
		})
		c.Next()
	}
}

// RequireCapability gates a route on the role capability table. Roles are
// never compared as strings here.
func (am *JWTAuthMiddleware) RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleValue, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Message: "Role not found in context",
			})
			c.Abort()
			return
		}

		role, ok := roleValue.(models.UserRole)
		if !ok || !role.Can(capability) {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Message: "Insufficient permissions",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Message: msg})
	c.Abort()
}
