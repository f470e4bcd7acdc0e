// Package session owns all mutable dashboard state: the liveness tracker,
// the series buffer, the history pager, the latest sample, and the last
// user-visible notice. Components never share state directly; everything
// goes through the session under one lock, and the presentation layer reads
// detached snapshots.
package session

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltlab/battwatch/internal/client"
	"github.com/voltlab/battwatch/internal/history"
	"github.com/voltlab/battwatch/internal/liveness"
	"github.com/voltlab/battwatch/internal/series"
	"github.com/voltlab/battwatch/internal/telemetry"
)

// Notice is a transient user-visible message, typically a fetch failure.
type Notice struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Options tune a session. Zero values fall back to the reference defaults.
type Options struct {
	Window       int           // series buffer capacity
	PageSize     int           // history page size
	OfflineAfter time.Duration // device timeout threshold
	Clock        func() time.Time
}

// DefaultOfflineAfter is the reference device-timeout threshold.
const DefaultOfflineAfter = 15 * time.Second

// Session is the process-wide state owner. All methods are safe for
// concurrent use.
type Session struct {
	mu      sync.RWMutex
	tracker *liveness.Tracker
	buffer  *series.Buffer
	pager   *history.Pager

	latest    telemetry.Sample
	hasLatest bool
	notice    Notice

	lastAppliedSeq uint64
	offlineAfter   time.Duration
	clock          func() time.Time
	log            zerolog.Logger
}

// New builds a session around the given history source (normally the same
// client the poller uses).
func New(src history.Source, opts Options, log zerolog.Logger) *Session {
	if opts.OfflineAfter <= 0 {
		opts.OfflineAfter = DefaultOfflineAfter
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Session{
		tracker:      liveness.NewTracker(),
		buffer:       series.NewBuffer(opts.Window),
		pager:        history.NewPager(src, opts.PageSize),
		offlineAfter: opts.OfflineAfter,
		clock:        opts.Clock,
		log:          log,
	}
}

// ApplyLatest folds one poll cycle's outcome into the session. seq is the
// cycle's sequence token: results are applied only when seq exceeds the
// highest token applied so far, so a late completion from a superseded cycle
// can never clobber fresher state.
func (s *Session) ApplyLatest(seq uint64, res *client.LatestResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq <= s.lastAppliedSeq {
		s.log.Debug().Uint64("seq", seq).Uint64("applied", s.lastAppliedSeq).
			Msg("discarding stale poll result")
		return
	}
	s.lastAppliedSeq = seq

	now := s.clock()

	if err != nil {
		s.tracker.RecordFailure()
		s.notice = Notice{Message: fmt.Sprintf("telemetry fetch failed: %v", err), At: now}
		return
	}

	if res.TimeSinceLast.Valid {
		s.tracker.RecordReportAge(int(res.TimeSinceLast.Value))
	}

	if res.Data == nil {
		// Data-absence: the server is fine but the device has nothing to
		// report. Placeholders beat stale values here, so the latest sample
		// is cleared and the buffer is left alone.
		s.tracker.RecordEmpty()
		s.hasLatest = false
		s.notice = Notice{Message: "device is not reporting data", At: now}
		return
	}

	sample := res.Data.Normalize(now)
	s.tracker.RecordSuccess(now)
	if res.ESPConnected != nil {
		s.tracker.SetDeviceConnected(*res.ESPConnected)
	}
	s.latest = sample
	s.hasLatest = true
	s.buffer.Append(sample.CapturedAt.Format("15:04:05"), sample)
	s.notice = Notice{}
}

// Tick advances the liveness clock. Called once per second by the poller.
func (s *Session) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Tick(now, s.offlineAfter)
}

// Liveness returns the current connection-health snapshot.
func (s *Session) Liveness() liveness.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker.State()
}

// Latest returns the most recent sample and whether one is present. When the
// second return is false the display should show placeholders.
func (s *Session) Latest() (telemetry.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}

// Series returns a detached view of one metric over the buffered window.
func (s *Session) Series(m series.Metric) (series.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer.Select(m)
}

// Notice returns the last user-visible notice; a zero Message means all
// clear.
func (s *Session) Notice() Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notice
}

// PageState bundles the displayed history page with its navigation bounds.
type PageState struct {
	history.Page
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// HistoryPage returns the displayed page and navigation state.
func (s *Session) HistoryPage() PageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PageState{
		Page:        s.pager.Current(),
		HasNext:     s.pager.HasNext(),
		HasPrevious: s.pager.HasPrevious(),
	}
}

// LoadHistoryPage fetches page n. On failure the displayed page is kept and
// a notice is recorded.
func (s *Session) LoadHistoryPage(ctx context.Context, n int) error {
	return s.fetchHistory(ctx, n)
}

// NextHistoryPage advances one page; a no-op at the upper bound.
func (s *Session) NextHistoryPage(ctx context.Context) error {
	s.mu.RLock()
	n := s.pager.Current().PageNumber + 1
	ok := s.pager.HasNext()
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.fetchHistory(ctx, n)
}

// PreviousHistoryPage steps back one page; a no-op at page 1.
func (s *Session) PreviousHistoryPage(ctx context.Context) error {
	s.mu.RLock()
	n := s.pager.Current().PageNumber - 1
	ok := s.pager.HasPrevious()
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.fetchHistory(ctx, n)
}

// fetchHistory runs the upstream fetch with the lock released, so a slow
// history request never stalls the liveness tick, the read snapshots, or
// ApplyLatest. The lock is taken only to install the page or the failure
// notice.
func (s *Session) fetchHistory(ctx context.Context, n int) error {
	page, err := s.pager.FetchPage(ctx, n)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.notice = Notice{Message: fmt.Sprintf("history fetch failed: %v", err), At: s.clock()}
		return err
	}
	s.pager.Install(page)
	return nil
}

// ErrNoHistory is returned by ExportHistoryCSV when there is nothing to dump.
var ErrNoHistory = errors.New("no history records loaded")

// ExportHistoryCSV writes the displayed page's rows as CSV.
func (s *Session) ExportHistoryCSV(w io.Writer) error {
	s.mu.RLock()
	page := s.pager.Current()
	s.mu.RUnlock()

	if len(page.Records) == 0 {
		return ErrNoHistory
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "time", "voltage", "current", "temperature", "battery", "fan", "temp_limit"}); err != nil {
		return err
	}
	for _, r := range page.Records {
		row := []string{
			r.Date,
			r.Time,
			formatNumber(r.Voltage, 0),
			formatNumber(r.Current, 0),
			formatNumber(r.Temperature, 0),
			formatNumber(r.Battery, 0),
			r.FanStatus.String(),
			formatNumber(r.TempLimit, telemetry.DefaultTemperatureLimit),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatNumber(n telemetry.Number, def float64) string {
	return strconv.FormatFloat(n.Or(def), 'f', -1, 64)
}
