package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/bar-booking/middlewares"
	"github.com/yeremiapane/bar-booking/notify"
)

type WebSocketController struct {
	Hub      *notify.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketController(hub *notify.Hub, allowedOrigin string) *WebSocketController {
	return &WebSocketController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// Stream upgrades a staff connection and keeps it registered on the hub
// until the client goes away. Incoming messages are ignored.
func (wc *WebSocketController) Stream(c *gin.Context) {
	_, role := middlewares.CurrentUser(c)

	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	wc.Hub.Register(ws, role)
	defer wc.Hub.Unregister(ws)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}
