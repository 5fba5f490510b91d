package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
)

const defaultNotificationLimit = 50

type listNotificationsQuery struct {
	Unread bool `form:"unread"`
	Limit  int  `form:"limit"`
}

func (s *Server) ListNotifications(c *gin.Context) {
	var query listNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if query.Limit <= 0 || query.Limit > 200 {
		query.Limit = defaultNotificationLimit
	}

	items, err := s.notificationSvc.List(c.Request.Context(), notificationdomain.ListRequest{
		UnreadOnly: query.Unread,
		Limit:      query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		AbortWithError(c, ErrInvalidID)
		return
	}

	if err := s.notificationSvc.MarkRead(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
}
