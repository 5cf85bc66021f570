package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/bar-booking/utils"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

// AuthMiddleware requires a valid bearer token and stores the caller's id and
// role on the context.
func AuthMiddleware(tm *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization header missing"))
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid authorization format"))
			c.Abort()
			return
		}

		if !authorize(c, tm, strings.TrimPrefix(authHeader, "Bearer ")) {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func authorize(c *gin.Context, tm *utils.TokenManager, token string) bool {
	claims, err := tm.ParseToken(token)
	if err != nil || claims == nil || claims.UserID == 0 {
		return false
	}
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxRole, claims.Role)
	return true
}

// CurrentUser returns what AuthMiddleware stored.
func CurrentUser(c *gin.Context) (uint, string) {
	return c.GetUint(ctxUserID), c.GetString(ctxRole)
}
