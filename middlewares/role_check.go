package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/bar-booking/models"
	"github.com/yeremiapane/bar-booking/utils"
)

// RequireRoles lets the request through only for the listed roles. Admins
// always pass.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed[models.RoleAdmin] = true

	return func(c *gin.Context) {
		_, role := CurrentUser(c)
		if role == "" {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}
		if !allowed[role] {
			utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access is not allowed here", role))
			c.Abort()
			return
		}
		c.Next()
	}
}
