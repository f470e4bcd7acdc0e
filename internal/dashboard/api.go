// Package dashboard exposes the session's read-only snapshots over a local
// Gin-based REST API. This is the surface the presentation layer polls on
// every render tick; nothing is pushed.
package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voltlab/battwatch/internal/series"
	"github.com/voltlab/battwatch/internal/session"
)

// IntervalController is the slice of the poller the API needs for runtime
// interval adjustment.
type IntervalController interface {
	SetInterval(d time.Duration)
	Interval() time.Duration
}

// RegisterRoutes wires up the dashboard API.
//
//	GET  /api/health
//	GET  /api/status            liveness + notice + poll interval
//	GET  /api/latest            current sample (or placeholder flag)
//	GET  /api/series/:metric    chart view for one metric
//	GET  /api/history           displayed page + navigation bounds
//	GET  /api/history/export    CSV dump of the displayed page
//	POST /api/history/page      {"page": n}
//	POST /api/history/next
//	POST /api/history/prev
//	POST /api/interval          {"interval_ms": n}
func RegisterRoutes(r *gin.Engine, sess *session.Session, ctl IntervalController) {
	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"liveness":         sess.Liveness(),
			"notice":           sess.Notice(),
			"poll_interval_ms": ctl.Interval().Milliseconds(),
		})
	})

	api.GET("/latest", func(c *gin.Context) {
		sample, ok := sess.Latest()
		if !ok {
			// Placeholder response: the device has nothing current to show.
			c.JSON(http.StatusOK, gin.H{"present": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"present": true,
			"sample":  sample,
			"power":   sample.Power(),
		})
	})

	api.GET("/series/:metric", func(c *gin.Context) {
		view, err := sess.Series(series.Metric(c.Param("metric")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": view})
	})

	api.GET("/history", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": sess.HistoryPage()})
	})

	api.GET("/history/export", func(c *gin.Context) {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="battery_history.csv"`)
		if err := sess.ExportHistoryCSV(c.Writer); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		}
	})

	api.POST("/history/page", func(c *gin.Context) {
		var body struct {
			Page int `json:"page" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page required"})
			return
		}
		if err := sess.LoadHistoryPage(c.Request.Context(), body.Page); err != nil {
			// The stale page is still being displayed; tell the caller why.
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "data": sess.HistoryPage()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sess.HistoryPage()})
	})

	api.POST("/history/next", func(c *gin.Context) {
		if err := sess.NextHistoryPage(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "data": sess.HistoryPage()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sess.HistoryPage()})
	})

	api.POST("/history/prev", func(c *gin.Context) {
		if err := sess.PreviousHistoryPage(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "data": sess.HistoryPage()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sess.HistoryPage()})
	})

	api.POST("/interval", func(c *gin.Context) {
		var body struct {
			IntervalMs int `json:"interval_ms" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.IntervalMs < 250 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interval_ms must be >= 250"})
			return
		}
		ctl.SetInterval(time.Duration(body.IntervalMs) * time.Millisecond)
		c.JSON(http.StatusOK, gin.H{"poll_interval_ms": ctl.Interval().Milliseconds()})
	})
}
