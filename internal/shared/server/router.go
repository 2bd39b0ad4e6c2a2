package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"filesafe-backend/internal/bootstrap"
	"filesafe-backend/internal/shared/metrics"
	"filesafe-backend/internal/shared/server/middleware"
)

// NewRouter builds the gin engine with the shared middleware chain and all
// route groups mounted.
func NewRouter(app *bootstrap.App) *gin.Engine {
	if app.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(app.Config.CORSAllowOrigin))

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	app.FilesHandler.RegisterRoutes(api)

	return r
}

// Addr formats the listen address for the configured port.
func Addr(port string) string {
	return fmt.Sprintf(":%s", port)
}
