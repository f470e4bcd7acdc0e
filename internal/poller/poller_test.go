package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/voltlab/battwatch/internal/client"
	"github.com/voltlab/battwatch/internal/series"
	"github.com/voltlab/battwatch/internal/session"
)

func newPollerAgainst(handler http.HandlerFunc, interval time.Duration) (*Poller, *session.Session, *httptest.Server) {
	s := httptest.NewServer(handler)
	c := client.New(s.URL, 2*time.Second, time.Second)
	sess := session.New(c, session.Options{Window: 10}, zerolog.Nop())
	p := New(sess, c, interval, zerolog.Nop())
	return p, sess, s
}

func TestPollerAppliesCycles(t *testing.T) {
	is := is.New(t)

	p, sess, srv := newPollerAgainst(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "test":
			w.Write([]byte(`{"status": "success"}`))
		default:
			w.Write([]byte(`{"status": "success", "data": {"voltage": 12.3}, "esp_connected": true}`))
		}
	}, 20*time.Millisecond)
	defer srv.Close()

	p.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	p.Stop()

	sample, ok := sess.Latest()
	is.True(ok)
	is.Equal(sample.Voltage, 12.3)

	st := sess.Liveness()
	is.True(st.ServerReachable)
	is.True(st.DeviceReachable)

	v, err := sess.Series(series.MetricVoltage)
	is.NoErr(err)
	is.True(len(v.Values) >= 2) // immediate cycle plus at least one scheduled one
}

func TestPollerKeepsGoingAfterFailures(t *testing.T) {
	is := is.New(t)

	var calls atomic.Int64
	p, sess, srv := newPollerAgainst(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "test" {
			w.Write([]byte(`{"status": "success"}`))
			return
		}
		// First two data fetches fail hard, then the endpoint recovers.
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status": "success", "data": {"voltage": 11.9}}`))
	}, 20*time.Millisecond)
	defer srv.Close()

	p.Start(context.Background())
	time.Sleep(300 * time.Millisecond)
	p.Stop()

	// The loop retried past the failures and recovered.
	is.True(calls.Load() > 2)
	sample, ok := sess.Latest()
	is.True(ok)
	is.Equal(sample.Voltage, 11.9)
	is.True(sess.Liveness().ServerReachable)
}

func TestStopHaltsCycles(t *testing.T) {
	is := is.New(t)

	var calls atomic.Int64
	p, _, srv := newPollerAgainst(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "test" {
			calls.Add(1)
		}
		w.Write([]byte(`{"status": "success", "data": {"voltage": 12.0}}`))
	}, 20*time.Millisecond)
	defer srv.Close()

	p.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	settled := calls.Load()
	time.Sleep(100 * time.Millisecond)
	is.Equal(calls.Load(), settled)

	// Stopping twice must not panic or hang.
	p.Stop()
}

func TestSetIntervalTakesEffect(t *testing.T) {
	is := is.New(t)

	p, _, srv := newPollerAgainst(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "data": {"voltage": 12.0}}`))
	}, time.Hour)
	defer srv.Close()

	is.Equal(p.Interval(), time.Hour)
	p.SetInterval(10 * time.Millisecond)
	is.Equal(p.Interval(), 10*time.Millisecond)

	// Non-positive values are ignored.
	p.SetInterval(0)
	is.Equal(p.Interval(), 10*time.Millisecond)
}

func TestDoubleStartIsNoOp(t *testing.T) {
	is := is.New(t)

	p, sess, srv := newPollerAgainst(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "data": {"voltage": 12.0}}`))
	}, 20*time.Millisecond)
	defer srv.Close()

	p.Start(context.Background())
	p.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	p.Stop()

	_, ok := sess.Latest()
	is.True(ok)
}
