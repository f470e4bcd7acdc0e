package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matryer/is"

	"github.com/voltlab/battwatch/internal/config"
)

func newTestEngine(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		DBPath:          ":memory:",
		HistoryPageSize: 10,
		OfflineAfterMs:  15000,
	}
	if err := InitDB(cfg); err != nil {
		t.Fatalf("init db: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, cfg)
	return r, cfg
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func seedReadings(t *testing.T, n int, newest time.Time) {
	t.Helper()
	for i := n - 1; i >= 0; i-- {
		err := SaveReading(&Reading{
			Voltage:     12.0 + float64(i)*0.01,
			Current:     0.9,
			Temperature: 31.5,
			Battery:     90,
			TempLimit:   45,
			CapturedAt:  newest.Add(-time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestActionTest(t *testing.T) {
	is := is.New(t)

	r, _ := newTestEngine(t)
	w := doGet(r, "/api?action=test")
	is.Equal(w.Code, http.StatusOK)

	var body map[string]any
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(body["status"], "success")
}

func TestUnknownAction(t *testing.T) {
	is := is.New(t)

	r, _ := newTestEngine(t)
	w := doGet(r, "/api?action=reboot")
	is.Equal(w.Code, http.StatusBadRequest)

	var body map[string]any
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(body["status"], "error")
}

func TestGetLatestEmptyLog(t *testing.T) {
	is := is.New(t)

	r, _ := newTestEngine(t)
	w := doGet(r, "/api?action=getLatest")
	is.Equal(w.Code, http.StatusOK)

	var body struct {
		Status       string          `json:"status"`
		Data         json.RawMessage `json:"data"`
		ESPConnected bool            `json:"esp_connected"`
	}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(body.Status, "success")
	is.Equal(string(body.Data), "null")
	is.True(!body.ESPConnected)
}

func TestGetLatestFreshReading(t *testing.T) {
	is := is.New(t)

	r, _ := newTestEngine(t)
	seedReadings(t, 1, time.Now())

	w := doGet(r, "/api?action=getLatest")
	var body struct {
		Status       string         `json:"status"`
		Data         map[string]any `json:"data"`
		ESPConnected bool           `json:"esp_connected"`
	}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(body.Status, "success")
	is.True(body.ESPConnected)

	// The firmware quirk: numerics arrive as strings.
	is.Equal(body.Data["voltage"], "12.00")
	is.Equal(body.Data["fan_status"], "OFF")
}

func TestGetLatestStaleLogReportsDeviceGone(t *testing.T) {
	is := is.New(t)

	r, _ := newTestEngine(t)
	seedReadings(t, 1, time.Now().Add(-time.Hour))

	w := doGet(r, "/api?action=getLatest")
	var body struct {
		Data          json.RawMessage `json:"data"`
		ESPConnected  bool            `json:"esp_connected"`
		TimeSinceLast int             `json:"time_since_last"`
	}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(string(body.Data), "null")
	is.True(!body.ESPConnected)
	is.True(body.TimeSinceLast >= 3600)
}

func TestGetHistoryPagination(t *testing.T) {
	is := is.New(t)

	r, _ := newTestEngine(t)
	seedReadings(t, 25, time.Now())

	w := doGet(r, "/api?action=getHistory&page=2&limit=10")
	var body struct {
		Status     string           `json:"status"`
		Data       []map[string]any `json:"data"`
		Pagination struct {
			Page         int   `json:"page"`
			TotalPages   int   `json:"totalPages"`
			TotalRecords int64 `json:"totalRecords"`
		} `json:"pagination"`
	}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(body.Status, "success")
	is.Equal(len(body.Data), 10)
	is.Equal(body.Pagination.Page, 2)
	is.Equal(body.Pagination.TotalPages, 3)
	is.Equal(body.Pagination.TotalRecords, int64(25))

	// Last page is the remainder.
	w = doGet(r, "/api?action=getHistory&page=3&limit=10")
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(len(body.Data), 5)
}

func TestGetHistoryDefaultsAndClamps(t *testing.T) {
	is := is.New(t)

	r, _ := newTestEngine(t)
	seedReadings(t, 3, time.Now())

	// Garbage page falls back to 1; empty log math still yields one page.
	w := doGet(r, "/api?action=getHistory&page=zero")
	var body struct {
		Pagination struct {
			Page       int `json:"page"`
			TotalPages int `json:"totalPages"`
		} `json:"pagination"`
	}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(body.Pagination.Page, 1)
	is.Equal(body.Pagination.TotalPages, 1)
}

func TestTotalPages(t *testing.T) {
	is := is.New(t)

	is.Equal(TotalPages(0, 10), 1)
	is.Equal(TotalPages(10, 10), 1)
	is.Equal(TotalPages(11, 10), 2)
	is.Equal(TotalPages(25, 10), 3)
}
