package api

import (
	"github.com/gin-gonic/gin"
)

// getFile serves a stored file back to its owner. Authorization compares the
// requester's id against the raw URL segment before the segment is ever
// parsed, so a segment like "007" never matches user 7.
func (s *Server) getFile(c *gin.Context) {
	requesterID := userIDFromContext(c)
	ownerSegment := c.Param("user_id")
	filename := c.Param("filename")

	if err := s.ns.Authorize(requesterID, ownerSegment); err != nil {
		s.writeAppError(c, err)
		return
	}
	// Authorize guarantees the segment is exactly the requester's id.
	path, err := s.ns.Locate(requesterID, filename)
	if err != nil {
		s.writeAppError(c, err)
		return
	}
	c.File(path)
}
