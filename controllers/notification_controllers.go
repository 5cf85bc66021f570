package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/bar-booking/models"
	"github.com/yeremiapane/bar-booking/utils"
)

// NotificationStore is the persisted staff feed.
type NotificationStore interface {
	List(ctx context.Context, limit int, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uint) error
}

type NotificationController struct {
	Store NotificationStore
}

func NewNotificationController(store NotificationStore) *NotificationController {
	return &NotificationController{Store: store}
}

func (nc *NotificationController) ListNotifications(c *gin.Context) {
	var q struct {
		Limit  int  `form:"limit"`
		Unread bool `form:"unread"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	notifs, err := nc.Store.List(c.Request.Context(), q.Limit, q.Unread)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications retrieved", notifs)
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := nc.Store.MarkRead(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", nil)
}
