// Telemetry simulator. Generates a plausible battery discharge/charge cycle
// and appends it to the reading log at a fixed cadence, so the dashboard can
// be exercised without real hardware. With sim_source=host the temperature
// channel is taken from the machine's own sensors via gopsutil where the
// platform exposes them.
package server

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/voltlab/battwatch/internal/config"
	"github.com/voltlab/battwatch/internal/telemetry"
)

// Simulator writes synthetic readings into the store.
type Simulator struct {
	interval time.Duration
	source   string
	log      zerolog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time
}

// StartSimulator begins producing readings immediately and then on every
// interval tick until Stop is called.
func StartSimulator(ctx context.Context, cfg *config.Config, log zerolog.Logger) *Simulator {
	s := &Simulator{
		interval: cfg.SimInterval(),
		source:   cfg.SimSource,
		log:      log,
		started:  time.Now(),
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
	return s
}

// Stop halts the simulator and waits for the loop to drain.
func (s *Simulator) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Simulator) run(ctx context.Context) {
	defer s.wg.Done()

	s.emit(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit(ctx)
		}
	}
}

func (s *Simulator) emit(ctx context.Context) {
	r := s.generate(ctx, time.Since(s.started))
	if err := SaveReading(r); err != nil {
		s.log.Warn().Err(err).Msg("saving simulated reading")
		return
	}
	s.log.Debug().
		Float64("voltage", r.Voltage).
		Float64("battery", r.Battery).
		Float64("temperature", r.Temperature).
		Msg("simulated reading")
}

// generate produces one reading along a 40-minute discharge/charge cycle
// with a little jitter on every channel.
func (s *Simulator) generate(ctx context.Context, elapsed time.Duration) *Reading {
	const cycle = 40 * time.Minute

	phase := math.Mod(elapsed.Seconds(), cycle.Seconds()) / cycle.Seconds()
	battery := 100 - 85*phase // 100% → 15%, then jumps back up

	voltage := 11.2 + 1.6*(battery/100) + jitter(0.05)
	current := 0.8 + 0.4*math.Sin(2*math.Pi*phase*6) + jitter(0.05)
	if current < 0.1 {
		current = 0.1
	}

	temperature, ok := s.hostTemperature(ctx)
	if !ok {
		temperature = 30 + 8*math.Sin(2*math.Pi*phase*2) + jitter(0.5)
	}

	limit := telemetry.DefaultTemperatureLimit
	remaining := int(battery / 100 * cycle.Seconds())

	return &Reading{
		Voltage:       round(voltage, 2),
		Current:       round(current, 2),
		Temperature:   round(temperature, 1),
		Battery:       round(battery, 0),
		RemainingTime: remaining,
		TempLimit:     limit,
		FanOn:         temperature >= limit,
		CapturedAt:    time.Now(),
	}
}

// hostTemperature samples the local machine's sensors, preferring CPU-ish
// keys. Best-effort: unsupported platforms simply report no reading.
func (s *Simulator) hostTemperature(ctx context.Context) (float64, bool) {
	if s.source != "host" {
		return 0, false
	}

	stats, err := sensors.TemperaturesWithContext(ctx)
	if err != nil || len(stats) == 0 {
		return 0, false
	}

	best := -1
	for i, st := range stats {
		if st.Temperature <= 0 {
			continue
		}
		key := strings.ToLower(st.SensorKey)
		if strings.Contains(key, "cpu") || strings.Contains(key, "core") || strings.Contains(key, "package") {
			return st.Temperature, true
		}
		if best < 0 {
			best = i
		}
	}
	if best >= 0 {
		return stats[best].Temperature, true
	}
	return 0, false
}

func jitter(scale float64) float64 {
	return (rand.Float64() - 0.5) * 2 * scale
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
