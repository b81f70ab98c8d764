// util/http_util.go
package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/prosapient/datacop/logging"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// ActorFromContext returns the requesting user placed in the gin context by
// the authentication middleware.
func ActorFromContext(c *gin.Context) (string, string, bool) {
	userID, exists := c.Get("requestingUserID")
	if !exists {
		return "", "", false
	}
	orgID, _ := c.Get("requestingOrgID")
	org, _ := orgID.(string)
	return userID.(string), org, true
}
