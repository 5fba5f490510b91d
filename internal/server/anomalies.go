package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DetectAnomalies runs every heuristic over the full ledger.
func (s *Server) DetectAnomalies(c *gin.Context) {
	report, err := s.anomalySvc.Detect(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
