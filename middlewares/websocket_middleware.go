package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/bar-booking/utils"
)

// WebSocketAuthMiddleware authenticates from the token query parameter,
// since browsers cannot set headers on a websocket handshake.
func WebSocketAuthMiddleware(tm *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" || !authorize(c, tm, token) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
