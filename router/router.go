// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prosapient/datacop/controller"
	"github.com/prosapient/datacop/middleware"
)

func SetupRouter(
	access *controller.AccessController,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))
	router.Use(middleware.AuthMiddleware())

	api := router.Group("/api/v1")

	access.RegisterRoutes(api)

	return router
}
