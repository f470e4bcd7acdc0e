// HTTP surface of the data source. A single endpoint multiplexed on the
// `action` query parameter, mirroring the device firmware's bridge API:
//
//	GET /api?action=test
//	GET /api?action=getLatest
//	GET /api?action=getHistory&page=P&limit=L
//
// Numeric data fields are deliberately emitted as strings, matching the
// firmware's quirk, so clients must run their coercion paths against this
// server exactly as against the real one.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/voltlab/battwatch/internal/config"
)

// RegisterRoutes wires up the data-source API on the given engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config) {
	r.GET("/api", func(c *gin.Context) {
		switch c.Query("action") {
		case "test":
			c.JSON(http.StatusOK, gin.H{"status": "success", "time": time.Now().UTC()})
		case "getLatest":
			handleGetLatest(c, cfg)
		case "getHistory":
			handleGetHistory(c, cfg)
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": fmt.Sprintf("unknown action %q", c.Query("action")),
			})
		}
	})

	// Health probe (no action multiplexing — used by load-balancers / k8s probes)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// handleGetLatest returns the newest reading, or data:null when the log is
// empty or the device has gone quiet past the freshness threshold.
func handleGetLatest(c *gin.Context, cfg *config.Config) {
	r, err := LatestReading()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{
				"status":          "success",
				"data":            nil,
				"esp_connected":   false,
				"time_since_last": 0,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}

	sinceLast := int(time.Since(r.CapturedAt) / time.Second)
	connected := time.Since(r.CapturedAt) <= cfg.OfflineAfter()

	if !connected {
		// Stale log: report the device as gone rather than serving old data
		// as if it were current.
		c.JSON(http.StatusOK, gin.H{
			"status":          "success",
			"data":            nil,
			"esp_connected":   false,
			"time_since_last": sinceLast,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"voltage":        fmt.Sprintf("%.2f", r.Voltage),
			"current":        fmt.Sprintf("%.2f", r.Current),
			"temperature":    fmt.Sprintf("%.1f", r.Temperature),
			"battery":        fmt.Sprintf("%.0f", r.Battery),
			"remaining_time": strconv.Itoa(r.RemainingTime),
			"temp_limit":     fmt.Sprintf("%.1f", r.TempLimit),
			"fan_status":     fanLabel(r.FanOn),
			"timestamp":      r.CapturedAt.Unix(),
		},
		"esp_connected":   true,
		"time_since_last": sinceLast,
	})
}

// handleGetHistory returns one page of the reading log, newest first.
func handleGetHistory(c *gin.Context, cfg *config.Config) {
	page := intQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := intQuery(c, "limit", cfg.HistoryPageSize)
	if limit < 1 {
		limit = cfg.HistoryPageSize
	}
	if limit > 100 {
		limit = 100
	}

	rows, total, err := PageReadings(page, limit)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}

	records := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		records = append(records, gin.H{
			"date":        r.CapturedAt.Format("2006-01-02"),
			"time":        r.CapturedAt.Format("15:04:05"),
			"voltage":     fmt.Sprintf("%.2f", r.Voltage),
			"current":     fmt.Sprintf("%.2f", r.Current),
			"temperature": fmt.Sprintf("%.1f", r.Temperature),
			"battery":     fmt.Sprintf("%.0f", r.Battery),
			"fan_status":  fanLabel(r.FanOn),
			"temp_limit":  fmt.Sprintf("%.1f", r.TempLimit),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   records,
		"pagination": gin.H{
			"page":         page,
			"totalPages":   TotalPages(total, limit),
			"totalRecords": total,
		},
	})
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func fanLabel(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
