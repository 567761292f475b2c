package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
	"github.com/noah-isme/student-idcard/pkg/response"
)

type metricsExporter interface {
	Handler() http.Handler
}

type readinessProbe interface {
	LoadAll(ctx context.Context) ([]models.Student, error)
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics metricsExporter
	probe   readinessProbe
}

// NewMetricsHandler constructs a metrics handler. probe is checked by Ready.
func NewMetricsHandler(metrics metricsExporter, probe readinessProbe) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, probe: probe}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness checks.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the student store can be read.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.probe != nil {
		if _, err := h.probe.LoadAll(c.Request.Context()); err != nil {
			response.Error(c, appErrors.Wrap(err, "NOT_READY", http.StatusServiceUnavailable, "student store unavailable"))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
