package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestNormalizeMissingVoltageFallsBackToZero(t *testing.T) {
	is := is.New(t)

	var d LatestData
	err := json.Unmarshal([]byte(`{"current": 1.2, "temperature": 31.5}`), &d)
	is.NoErr(err)

	s := d.Normalize(time.Now())
	is.Equal(s.Voltage, 0.0)
	is.Equal(s.Current, 1.2)
	is.Equal(s.Temperature, 31.5)
}

func TestNormalizeStringNumerics(t *testing.T) {
	is := is.New(t)

	var d LatestData
	err := json.Unmarshal([]byte(`{
		"voltage": "12.6",
		"current": "0.85",
		"battery": "97",
		"remaining_time": "5400",
		"fan_status": "ON"
	}`), &d)
	is.NoErr(err)

	s := d.Normalize(time.Now())
	is.Equal(s.Voltage, 12.6)
	is.Equal(s.Current, 0.85)
	is.Equal(s.BatteryPercent, 97.0)
	is.Equal(s.RemainingTime, 5400)
	is.True(s.FanOn)
}

func TestNormalizeTempLimitDefault(t *testing.T) {
	is := is.New(t)

	var d LatestData
	err := json.Unmarshal([]byte(`{"temp_limit": "not-a-number"}`), &d)
	is.NoErr(err)

	s := d.Normalize(time.Now())
	is.Equal(s.TemperatureLimit, DefaultTemperatureLimit)
}

func TestNormalizeNullFieldsNeverError(t *testing.T) {
	is := is.New(t)

	var d LatestData
	err := json.Unmarshal([]byte(`{"voltage": null, "fan_status": null, "battery": null}`), &d)
	is.NoErr(err)

	s := d.Normalize(time.Now())
	is.Equal(s.Voltage, 0.0)
	is.Equal(s.BatteryPercent, 0.0)
	is.True(!s.FanOn)
}

func TestNormalizeTimestamp(t *testing.T) {
	is := is.New(t)

	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	var withTS LatestData
	is.NoErr(json.Unmarshal([]byte(`{"timestamp": 1700000000}`), &withTS))
	is.Equal(withTS.Normalize(now).CapturedAt.Unix(), int64(1700000000))

	var withoutTS LatestData
	is.NoErr(json.Unmarshal([]byte(`{}`), &withoutTS))
	is.Equal(withoutTS.Normalize(now).CapturedAt, now)
}

func TestPowerAndHeadroom(t *testing.T) {
	is := is.New(t)

	s := Sample{Voltage: 12.0, Current: 2.0, Temperature: 47.0, TemperatureLimit: 45.0}
	is.Equal(s.Power(), 24.0)
	is.Equal(s.TempHeadroom(), 2.0)
}

func TestFanStateVariants(t *testing.T) {
	is := is.New(t)

	cases := map[string]bool{
		`"ON"`:    true,
		`"on"`:    true,
		`"1"`:     true,
		`true`:    true,
		`"OFF"`:   false,
		`false`:   false,
		`"0"`:     false,
		`"weird"`: false,
	}
	for raw, want := range cases {
		var f FanState
		is.NoErr(json.Unmarshal([]byte(raw), &f))
		is.Equal(f.On, want) // raw
	}
}
