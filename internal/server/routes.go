package server

import (
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/USA-RedDragon/rpc-tester/internal/server/controllers"
	websocketControllers "github.com/USA-RedDragon/rpc-tester/internal/server/websocket"
	"github.com/USA-RedDragon/rpc-tester/internal/websocket"
	"github.com/gin-gonic/gin"
)

func applyRoutes(r *gin.Engine, config *config.Config, eventsWebsocket *websocketControllers.EventsWebsocket) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	apiV1 := r.Group("/api/v1")
	v1(apiV1)

	// Session event stream
	wsV1 := r.Group("/ws/v1")
	wsV1.GET("/sessions/:id", websocket.CreateHandler(eventsWebsocket, config))

	r.NoRoute(func(c *gin.Context) {
		slog.Warn("Not Found", "path", c.Request.URL.Path)
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})
}

func v1(group *gin.RouterGroup) {
	group.GET("/methods", controllers.GETMethods)

	group.POST("/sessions", controllers.POSTSession)
	group.GET("/sessions/:id", controllers.GETSession)
	group.DELETE("/sessions/:id", controllers.DELETESession)
	group.PUT("/sessions/:id/endpoint", controllers.PUTEndpoint)
	group.POST("/sessions/:id/endpoint/reset", controllers.POSTEndpointReset)
	group.POST("/sessions/:id/send", controllers.POSTSend)
	group.GET("/sessions/:id/last", controllers.GETLast)
	group.POST("/sessions/:id/copy", controllers.POSTCopy)

	group.GET("/sessions/:id/sandbox", controllers.GETSandbox)
	group.DELETE("/sessions/:id/sandbox", controllers.DELETESandbox)
	group.POST("/sessions/:id/sandbox/examples/:key", controllers.POSTSandboxExample)
	group.POST("/sessions/:id/sandbox/run", controllers.POSTSandboxRun)
	group.POST("/sessions/:id/sandbox/scripts/:name", controllers.POSTSandboxScript)

	group.GET("/scripts", controllers.GETScripts)
	group.GET("/scripts/:name", controllers.GETScript)
	group.PUT("/scripts/:name", controllers.PUTScript)
	group.DELETE("/scripts/:name", controllers.DELETEScript)

	group.GET("/history", controllers.GETHistory)
	group.GET("/history/:entry", controllers.GETHistoryEntry)
}
