// Package server implements the battwatch development/replay data source:
// the HTTP endpoint the dashboard polls, backed by a SQLite reading log and
// a built-in telemetry simulator.
//
// This file manages the database layer: GORM with SQLite, reading storage,
// and pagination queries.
package server

import (
	"fmt"
	"math"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voltlab/battwatch/internal/config"
)

var DB *gorm.DB

// Reading is one stored telemetry record.
type Reading struct {
	gorm.Model

	Voltage       float64 `json:"voltage"`
	Current       float64 `json:"current"`
	Temperature   float64 `json:"temperature"`
	Battery       float64 `json:"battery"`        // percent 0-100
	RemainingTime int     `json:"remaining_time"` // seconds
	TempLimit     float64 `json:"temp_limit"`
	FanOn         bool    `json:"fan_on"`

	CapturedAt time.Time `gorm:"index" json:"captured_at"`
}

// InitDB opens the database and runs AutoMigrate.
func InitDB(cfg *config.Config) error {
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&Reading{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	DB = db
	return nil
}

// SaveReading persists one reading.
func SaveReading(r *Reading) error {
	if r.CapturedAt.IsZero() {
		r.CapturedAt = time.Now()
	}
	return DB.Create(r).Error
}

// LatestReading returns the most recent reading, or gorm.ErrRecordNotFound
// when the log is empty.
func LatestReading() (*Reading, error) {
	var r Reading
	err := DB.Order("captured_at desc").First(&r).Error
	return &r, err
}

// PageReadings returns one page of readings, newest first, plus the total
// record count. page is 1-based.
func PageReadings(page, limit int) ([]Reading, int64, error) {
	var total int64
	if err := DB.Model(&Reading{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []Reading
	err := DB.Order("captured_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}

// TotalPages computes the page count for a record total; always at least 1.
func TotalPages(total int64, limit int) int {
	pages := int(math.Ceil(float64(total) / float64(limit)))
	if pages < 1 {
		pages = 1
	}
	return pages
}
