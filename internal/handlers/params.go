package handlers

import (
	"strconv"

	contextutils "evolveedu/internal/utils"

	"github.com/gin-gonic/gin"

	"evolveedu/internal/middleware"
)

// pathID parses an integer path parameter, responding 400 and returning false
// when the value is not a valid integer.
func pathID(c *gin.Context, name string) (int, bool) {
	raw := c.Param(name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		middleware.HandleAppError(c, contextutils.NewAppError(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid path parameter",
			name+" must be a positive integer",
		))
		return 0, false
	}
	return id, true
}
