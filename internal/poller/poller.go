// Package poller drives the fetch-and-apply cycle. It runs two loops: the
// poll loop fetching the latest reading at the configured interval, and a
// one-second liveness tick. A cycle failure never stops the loop; the design
// keeps retrying at the fixed interval so a monitoring display recovers on
// its own (no backoff, no circuit breaker).
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltlab/battwatch/internal/client"
	"github.com/voltlab/battwatch/internal/session"
)

// Fetcher is the slice of the upstream client the poller needs.
type Fetcher interface {
	Latest(ctx context.Context) (*client.LatestResult, error)
	Probe(ctx context.Context) error
}

// DefaultInterval is the reference poll cadence.
const DefaultInterval = 3 * time.Second

// Poller schedules fetch cycles against one session.
type Poller struct {
	session *session.Session
	fetch   Fetcher
	log     zerolog.Logger

	intervalNs atomic.Int64
	seq        atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a stopped poller. A non-positive interval falls back to
// DefaultInterval.
func New(s *session.Session, fetch Fetcher, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{session: s, fetch: fetch, log: log}
	p.intervalNs.Store(int64(interval))
	return p
}

// Start launches the loops: one immediate cycle, then one per interval, plus
// the 1s liveness tick. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)

	// One-shot connectivity probe; outcome is informational only, the first
	// real cycle settles liveness either way.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.fetch.Probe(ctx); err != nil {
			p.log.Warn().Err(err).Msg("connectivity probe failed")
		} else {
			p.log.Info().Msg("connectivity probe ok")
		}
	}()

	p.wg.Add(2)
	go p.pollLoop(ctx)
	go p.tickLoop(ctx)
}

// Stop cancels all loops and any in-flight fetches, then waits for them to
// drain. A cancelled fetch never mutates the session.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// SetInterval changes the poll cadence. The new value takes effect when the
// next cycle is scheduled, not retroactively.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.intervalNs.Store(int64(d))
	p.log.Info().Dur("interval", d).Msg("poll interval updated")
}

// Interval returns the current poll cadence.
func (p *Poller) Interval() time.Duration {
	return time.Duration(p.intervalNs.Load())
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	p.launchCycle(ctx)

	timer := time.NewTimer(p.Interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.launchCycle(ctx)
			timer.Reset(p.Interval())
		}
	}
}

// launchCycle runs one fetch in its own goroutine so a slow response never
// delays the next scheduled cycle. The sequence token lets the session
// discard results that finish out of order.
func (p *Poller) launchCycle(ctx context.Context) {
	seq := p.seq.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		res, err := p.fetch.Latest(ctx)
		if ctx.Err() != nil {
			return // stopped; do not touch session state
		}
		if err != nil {
			p.log.Warn().Err(err).Uint64("seq", seq).Msg("poll cycle failed")
		}
		p.session.ApplyLatest(seq, res, err)
	}()
}

func (p *Poller) tickLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.session.Tick(now)
		}
	}
}
