package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the local intake router. The notify route is only
// registered when a push receiver exists, i.e. remote mode is on.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.POST("/print", h.HandlePrint)
	r.GET("/health", h.HandleHealth)
	r.GET("/status", h.HandleStatus)

	if h.pusher != nil {
		r.POST("/notify", h.HandleNotify)
	}

	return r
}

// The kiosk frontend runs on a different origin during development, so
// the intake API answers preflight requests permissively.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
