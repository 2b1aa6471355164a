package diag

import (
	"net/http"
	"time"

	"github.com/KOMKZ/go-yogan-assets/health"
	"github.com/KOMKZ/go-yogan-assets/manager"
	"github.com/KOMKZ/go-yogan-assets/monitor"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QualityView current controller state
type QualityView struct {
	Level      quality.Level `json:"level"`
	Mode       string        `json:"mode"`
	TargetFPS  float64       `json:"target_fps"`
	LastChange time.Time     `json:"last_change"`
}

type setQualityRequest struct {
	Level string `json:"level" binding:"required"`
}

// SampleSource latest performance figures
type SampleSource interface {
	Latest() monitor.Sample
}

type handlers struct {
	mgr     *manager.Manager
	samples SampleSource
	health  *health.Aggregator
	srv     *Server
}

func (h *handlers) register(r gin.IRouter) {
	r.GET("/cache/status", h.cacheStatus)
	r.GET("/cache/metrics", h.cacheMetrics)
	r.GET("/cache/keys", h.cacheKeys)
	r.POST("/cache/clear", h.cacheClear)
	r.POST("/cache/invalidate", h.cacheInvalidate)
	r.POST("/cache/preload", h.preload)

	r.GET("/quality", h.getQuality)
	r.PUT("/quality", h.setQuality)
	r.POST("/quality/resume", h.resumeQuality)

	r.GET("/perf", h.perf)
	r.GET("/healthz", h.healthz)
}

func (h *handlers) cacheStatus(c *gin.Context) {
	okJSON(c, h.mgr.Status())
}

func (h *handlers) cacheMetrics(c *gin.Context) {
	okJSON(c, h.mgr.Cache().Metrics())
}

func (h *handlers) cacheKeys(c *gin.Context) {
	okJSON(c, h.mgr.Cache().Keys())
}

func (h *handlers) cacheClear(c *gin.Context) {
	n := h.mgr.Cache().Clear()
	h.srv.logger.InfoCtx(c.Request.Context(), "cache cleared over diagnostics", zap.Int("entries", n))
	okJSON(c, gin.H{"removed": n})
}

// cacheInvalidate ?prefix=texture:nucleus drops every key with that prefix
func (h *handlers) cacheInvalidate(c *gin.Context) {
	prefix := c.Query("prefix")
	if prefix == "" {
		badRequest(c, "prefix is required")
		return
	}
	okJSON(c, gin.H{"removed": h.mgr.Cache().InvalidatePrefix(prefix)})
}

func (h *handlers) preload(c *gin.Context) {
	okJSON(c, h.mgr.Preload(c.Request.Context()))
}

func (h *handlers) qualityView() QualityView {
	ctrl := h.mgr.Controller()
	return QualityView{
		Level:      ctrl.Current(),
		Mode:       ctrl.Mode().String(),
		TargetFPS:  ctrl.Config().TargetFPS,
		LastChange: ctrl.LastChange(),
	}
}

func (h *handlers) getQuality(c *gin.Context) {
	okJSON(c, h.qualityView())
}

func (h *handlers) setQuality(c *gin.Context) {
	var req setQualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	level, err := quality.ParseLevel(req.Level)
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.mgr.Controller().SetQuality(c.Request.Context(), level); err != nil {
		handleError(c, err)
		return
	}
	okJSON(c, h.qualityView())
}

func (h *handlers) resumeQuality(c *gin.Context) {
	h.mgr.Controller().ResumeAutomatic(c.Request.Context())
	okJSON(c, h.qualityView())
}

func (h *handlers) perf(c *gin.Context) {
	if h.samples == nil {
		c.JSON(http.StatusServiceUnavailable, Response{Code: http.StatusServiceUnavailable, Msg: "no performance monitor"})
		return
	}
	okJSON(c, h.samples.Latest())
}

// healthz degraded still answers 200, unhealthy 503
func (h *handlers) healthz(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	resp := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if resp.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
