package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/server/handlers"
)

// New wires the Gin engine with the console API, worker control routes and the
// page asset fallback served through pages.
func New(consoleHandler *handlers.ConsoleHandler, journalHandler *handlers.JournalHandler, workerHandler *handlers.WorkerHandler, pages http.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/credentials", consoleHandler.GetCredentials)
	api.PUT("/credentials", consoleHandler.PutCredentials)
	api.POST("/validate", consoleHandler.ValidateField)
	api.POST("/phone/format", consoleHandler.FormatPhone)
	api.POST("/calls/:method", consoleHandler.Call)
	api.GET("/debug/fixture", consoleHandler.Fixture)
	api.GET("/journal", journalHandler.Recent)
	api.GET("/journal/report", journalHandler.Report)

	r.POST("/sw/messages", workerHandler.PostMessage)

	if pages != nil {
		r.NoRoute(gin.WrapH(pages))
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
