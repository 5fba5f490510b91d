package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListRecordAuditLogs returns the audit trail of one financial record, newest first.
func (s *Server) ListRecordAuditLogs(c *gin.Context) {
	recordType, err := recordTypeParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logs, err := s.auditSvc.ListByTarget(c.Request.Context(), string(recordType), id.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auditLogs": logs})
}
