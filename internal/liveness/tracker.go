// Package liveness derives the dashboard's connection-health signal from the
// timestamps of successful polls. Two flags are tracked separately: whether
// the server answered at all, and whether the device behind it is still
// producing fresh data.
package liveness

import "time"

// State is a read-only snapshot of connection health.
type State struct {
	ServerReachable     bool      `json:"server_reachable"`
	DeviceReachable     bool      `json:"device_reachable"`
	LastSuccessAt       time.Time `json:"last_success_at"` // zero when no poll has succeeded yet
	SecondsSinceSuccess int       `json:"seconds_since_success"`
	// SecondsSinceReport is the server's own measure of how long ago the
	// device last reported, taken from poll payloads. It differs from
	// SecondsSinceSuccess, which clocks our polls of the server.
	SecondsSinceReport int `json:"seconds_since_report"`
}

// Tracker holds the liveness state machine. It is not safe for concurrent
// use; the owning session serializes all access.
type Tracker struct {
	serverReachable bool
	deviceReachable bool
	lastSuccessAt   time.Time
	sinceSuccess    int
	sinceReport     int
}

// NewTracker returns a tracker in the all-unreachable state.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordSuccess marks the server reachable and stamps the last success time.
// Device reachability is settled by the next Tick, or sooner by
// SetDeviceConnected when the payload reports it explicitly.
func (t *Tracker) RecordSuccess(now time.Time) {
	t.serverReachable = true
	t.lastSuccessAt = now
}

// RecordFailure marks the server unreachable. The device flag drops with it:
// nothing behind an unreachable server can be considered live.
func (t *Tracker) RecordFailure() {
	t.serverReachable = false
	t.deviceReachable = false
}

// RecordEmpty handles the data-absence case: the server answered with a
// success status but carried no reading. The server stays reachable, the
// device is forced unreachable, and lastSuccessAt is left untouched so the
// elapsed clock keeps running from the last real reading.
func (t *Tracker) RecordEmpty() {
	t.serverReachable = true
	t.deviceReachable = false
}

// RecordReportAge stores the server-reported age of the device's last
// reading. Negative values are clamped to zero.
func (t *Tracker) RecordReportAge(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	t.sinceReport = seconds
}

// SetDeviceConnected applies the explicit device_connected flag from a poll
// payload. It overrides the time-based inference unconditionally until the
// next Tick recomputes it.
func (t *Tracker) SetDeviceConnected(connected bool) {
	t.deviceReachable = connected && t.serverReachable
}

// Tick recomputes elapsed time and device reachability. The device is
// reachable only while the server is reachable, a success has been recorded,
// and no more than threshold has elapsed since it.
func (t *Tracker) Tick(now time.Time, threshold time.Duration) {
	if t.lastSuccessAt.IsZero() {
		t.sinceSuccess = 0
		t.deviceReachable = false
		return
	}
	t.sinceSuccess = int(now.Sub(t.lastSuccessAt) / time.Second)
	t.deviceReachable = t.serverReachable && now.Sub(t.lastSuccessAt) <= threshold
}

// State returns the current snapshot.
func (t *Tracker) State() State {
	return State{
		ServerReachable:     t.serverReachable,
		DeviceReachable:     t.deviceReachable,
		LastSuccessAt:       t.lastSuccessAt,
		SecondsSinceSuccess: t.sinceSuccess,
		SecondsSinceReport:  t.sinceReport,
	}
}
