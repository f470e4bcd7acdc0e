// Package telemetry defines the normalized battery telemetry model and the
// tolerant decoding types for the upstream wire format.
package telemetry

import (
	"strconv"
	"strings"
	"time"
)

// DefaultTemperatureLimit is used when the payload omits temp_limit or the
// value does not parse. Matches the device firmware default.
const DefaultTemperatureLimit = 45.0

// Sample is one normalized reading. All fields are already coerced; a Sample
// never carries NaN or undefined values.
type Sample struct {
	Voltage          float64   `json:"voltage"`           // volts
	Current          float64   `json:"current"`           // amps
	Temperature      float64   `json:"temperature"`       // °C
	BatteryPercent   float64   `json:"battery_percent"`   // 0-100
	RemainingTime    int       `json:"remaining_seconds"` // estimated runtime left
	TemperatureLimit float64   `json:"temperature_limit"` // °C, fan trip point
	FanOn            bool      `json:"fan_on"`
	CapturedAt       time.Time `json:"captured_at"`
}

// Power returns the instantaneous power draw in watts.
func (s Sample) Power() float64 {
	return s.Voltage * s.Current
}

// TempHeadroom returns temperature minus the configured limit. Negative means
// the pack is below its trip point.
func (s Sample) TempHeadroom() float64 {
	return s.Temperature - s.TemperatureLimit
}

// Number decodes a JSON value that may arrive as a number, a quoted numeric
// string, or null, depending on the firmware revision behind the server.
// Missing, null, and unparseable values all report !Valid rather than erroring,
// so a single bad field never rejects a whole payload.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*n = Number{}
		return nil
	}
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = Number{}
		return nil
	}
	*n = Number{Value: f, Valid: true}
	return nil
}

// Or returns the parsed value, or def when the field was missing or invalid.
func (n Number) Or(def float64) float64 {
	if n.Valid {
		return n.Value
	}
	return def
}

// OrZero is Or(0), the documented fallback for measurement fields.
func (n Number) OrZero() float64 {
	return n.Or(0)
}

// FanState decodes the fan_status field, which has been observed as "ON"/"OFF",
// a bare boolean, and 0/1. Anything unrecognized coerces to off.
type FanState struct {
	On bool
}

func (f *FanState) UnmarshalJSON(data []byte) error {
	s := strings.ToUpper(strings.Trim(strings.TrimSpace(string(data)), `"`))
	switch s {
	case "ON", "TRUE", "1":
		f.On = true
	default:
		f.On = false
	}
	return nil
}

func (f FanState) String() string {
	if f.On {
		return "ON"
	}
	return "OFF"
}

// LatestData is the data body of an action=getLatest response.
type LatestData struct {
	Voltage       Number   `json:"voltage"`
	Current       Number   `json:"current"`
	Temperature   Number   `json:"temperature"`
	Battery       Number   `json:"battery"`
	RemainingTime Number   `json:"remaining_time"`
	TempLimit     Number   `json:"temp_limit"`
	FanStatus     FanState `json:"fan_status"`
	Timestamp     Number   `json:"timestamp"` // unix seconds when present
}

// Normalize coerces a wire payload into a Sample. now stamps CapturedAt when
// the payload carries no usable timestamp.
func (d *LatestData) Normalize(now time.Time) Sample {
	capturedAt := now
	if d.Timestamp.Valid && d.Timestamp.Value > 0 {
		capturedAt = time.Unix(int64(d.Timestamp.Value), 0)
	}
	return Sample{
		Voltage:          d.Voltage.OrZero(),
		Current:          d.Current.OrZero(),
		Temperature:      d.Temperature.OrZero(),
		BatteryPercent:   d.Battery.OrZero(),
		RemainingTime:    int(d.RemainingTime.OrZero()),
		TemperatureLimit: d.TempLimit.Or(DefaultTemperatureLimit),
		FanOn:            d.FanStatus.On,
		CapturedAt:       capturedAt,
	}
}

// HistoryRow is one record of an action=getHistory response.
type HistoryRow struct {
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Voltage     Number   `json:"voltage"`
	Current     Number   `json:"current"`
	Temperature Number   `json:"temperature"`
	Battery     Number   `json:"battery"`
	FanStatus   FanState `json:"fan_status"`
	TempLimit   Number   `json:"temp_limit"`
}
