package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	"github.com/smallbiznis/encore/internal/identity"
	obscontext "github.com/smallbiznis/encore/internal/observability/context"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// ActingUser resolves the user supplied by the upstream identity layer. The headers are trusted as given.
func ActingUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if rawID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		id, err := snowflake.ParseString(rawID)
		if err != nil || id == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user := identity.User{
			ID:       id,
			FullName: strings.TrimSpace(c.GetHeader(HeaderUserName)),
			Email:    strings.TrimSpace(c.GetHeader(HeaderUserEmail)),
			Role:     identity.NormalizeRole(c.GetHeader(HeaderUserRole)),
		}

		ctx := identity.WithUser(c.Request.Context(), user)
		ctx = obscontext.WithActor(ctx, user.Role, user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authzSvc.Authorize(c.Request.Context(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// authorizeRecord authorizes action on the object named by the :recordType path segment.
func (s *Server) authorizeRecord(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		recordType, err := recordTypeParam(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), string(recordType), action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// recordTypeParam accepts both the singular and plural form, "payment" or "payments".
func recordTypeParam(c *gin.Context) (financedomain.RecordType, error) {
	raw := strings.ToLower(strings.TrimSpace(c.Param("recordType")))
	return financedomain.ParseRecordType(strings.TrimSuffix(raw, "s"))
}

func idParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
