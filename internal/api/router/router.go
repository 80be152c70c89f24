package router

import (
	"github.com/gin-gonic/gin"

	"github.com/aliskhannn/image-compressor/internal/api/handlers/status"
)

func Setup(h *status.Handler) *gin.Engine {
	r := gin.New()

	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.GET("/health", h.Health)         // liveness
	api.GET("/roots", h.Roots)           // counters of every watch root
	api.GET("/roots/stats", h.RootStats) // counters of one root, ?root=<path>

	return r
}
