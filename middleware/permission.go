// middleware/permission.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prosapient/datacop"
	datacop_errors "github.com/prosapient/datacop/errors"
	"github.com/prosapient/datacop/util"
)

// RequirePermission gates a route behind one authorization check. The actor
// builder turns the authenticated request into the policy's actor value;
// subject-less actions (role gates, admin gates) fit here, per-item checks
// belong in the handler where the subject is known.
func RequirePermission(policy datacop.Policy, action datacop.Action, actor func(*gin.Context) interface{}, auditor datacop.Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := []datacop.Option{}
		if auditor != nil {
			opts = append(opts, datacop.WithAudit(auditor))
		}

		err := datacop.Permit(c.Request.Context(), policy, action, actor(c), opts...)
		if err == nil {
			c.Next()
			return
		}

		var denied *datacop_errors.UnauthorizedError
		if errors.As(err, &denied) {
			c.JSON(http.StatusForbidden, gin.H{"error": denied.Message})
			c.Abort()
			return
		}
		// Anything else is a misconfigured policy, not a denial.
		util.RespondWithError(c, http.StatusInternalServerError, "Authorization check failed", err)
		c.Abort()
	}
}
