// server/internal/api/routes/routes.go
package routes

import (
	"net/http"

	"requisition-api-server/internal/api/handlers"
	"requisition-api-server/internal/api/middleware"
	"requisition-api-server/internal/backend"
	"requisition-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter wires the handlers onto the gin engine.
func SetupRouter(be *backend.Backend, wsHub *socket.Hub) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	invokeHandler := &handlers.InvokeHandler{Backend: be}
	userHandler := &handlers.UserHandler{Backend: be}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", userHandler.Login)
		}

		// The action RPC endpoint; authentication is per-action inside the
		// handler so login can travel the same path.
		apiV1.POST("/invoke", invokeHandler.Invoke)

		protected := apiV1.Group("/")
		protected.Use(middleware.Authenticate())
		{
			protected.GET("/me", userHandler.Me)

			admin := protected.Group("/admin")
			admin.Use(middleware.Authorize("manager", "admin"))
			{
				admin.POST("/invoke", invokeHandler.Invoke)
			}
		}
	}

	return router
}
