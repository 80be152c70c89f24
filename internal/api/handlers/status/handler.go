package status

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aliskhannn/image-compressor/internal/api/respond"
	"github.com/aliskhannn/image-compressor/internal/model"
)

// ErrUnknownRoot is returned when the requested root is not watched.
var ErrUnknownRoot = errors.New("root is not watched")

// StatsSource defines the interface for reading the counters of one watch root.
type StatsSource interface {
	Stats() model.RootStats
}

// Handler provides HTTP handlers for the status endpoints.
type Handler struct {
	sources []StatsSource
	started time.Time
}

// NewHandler creates a new Handler reporting on sources.
func NewHandler(sources ...StatsSource) *Handler {
	return &Handler{sources: sources, started: time.Now()}
}

// Health reports that the process is up along with its uptime.
func (h *Handler) Health(c *gin.Context) {
	respond.OK(c, map[string]interface{}{
		"status": "ok",
		"roots":  len(h.sources),
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// Roots returns the counters of every watch root.
func (h *Handler) Roots(c *gin.Context) {
	stats := make([]model.RootStats, 0, len(h.sources))
	for _, s := range h.sources {
		stats = append(stats, s.Stats())
	}

	respond.OK(c, stats)
}

// RootStats returns the counters of the root named by the "root" query parameter.
func (h *Handler) RootStats(c *gin.Context) {
	root := c.Query("root")
	if root == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("root query parameter is required"))
		return
	}
	root = filepath.Clean(root)

	for _, s := range h.sources {
		stats := s.Stats()
		if stats.Root == root {
			respond.OK(c, stats)
			return
		}
	}

	respond.Fail(c, http.StatusNotFound, fmt.Errorf("%w: %s", ErrUnknownRoot, root))
}
