package liveness

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

var t0 = time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

func TestFreshTrackerIsUnreachable(t *testing.T) {
	is := is.New(t)

	tr := NewTracker()
	tr.Tick(t0, 15*time.Second)

	st := tr.State()
	is.True(!st.ServerReachable)
	is.True(!st.DeviceReachable)
	is.Equal(st.SecondsSinceSuccess, 0)
	is.True(st.LastSuccessAt.IsZero())
}

func TestTimeoutScenario(t *testing.T) {
	is := is.New(t)

	tr := NewTracker()
	tr.RecordSuccess(t0)

	tr.Tick(t0.Add(14*time.Second), 15*time.Second)
	st := tr.State()
	is.True(st.DeviceReachable)
	is.Equal(st.SecondsSinceSuccess, 14)

	tr.Tick(t0.Add(16*time.Second), 15*time.Second)
	st = tr.State()
	is.True(!st.DeviceReachable)
	is.True(st.ServerReachable) // only the device timed out
	is.Equal(st.SecondsSinceSuccess, 16)
}

func TestFailureDropsBothFlags(t *testing.T) {
	is := is.New(t)

	tr := NewTracker()
	tr.RecordSuccess(t0)
	tr.Tick(t0.Add(time.Second), 15*time.Second)
	is.True(tr.State().DeviceReachable)

	tr.RecordFailure()
	st := tr.State()
	is.True(!st.ServerReachable)
	is.True(!st.DeviceReachable)
	// lastSuccessAt survives failure; a later in-window tick alone must not
	// resurrect the device while the server is down.
	tr.Tick(t0.Add(2*time.Second), 15*time.Second)
	is.True(!tr.State().DeviceReachable)
}

func TestRecordEmptyKeepsServerReachable(t *testing.T) {
	is := is.New(t)

	tr := NewTracker()
	tr.RecordSuccess(t0)
	tr.RecordEmpty()

	st := tr.State()
	is.True(st.ServerReachable)
	is.True(!st.DeviceReachable)
	is.Equal(st.LastSuccessAt, t0)
}

func TestRecordReportAge(t *testing.T) {
	is := is.New(t)

	tr := NewTracker()
	tr.RecordReportAge(42)
	is.Equal(tr.State().SecondsSinceReport, 42)

	tr.RecordReportAge(-3)
	is.Equal(tr.State().SecondsSinceReport, 0)
}

func TestDeviceConnectedOverride(t *testing.T) {
	is := is.New(t)

	tr := NewTracker()
	tr.RecordSuccess(t0)

	// Payload says the device is gone even though the poll just succeeded.
	tr.SetDeviceConnected(false)
	is.True(!tr.State().DeviceReachable)

	// And the reverse: payload flags it connected; tick then recomputes.
	tr.SetDeviceConnected(true)
	is.True(tr.State().DeviceReachable)
	tr.Tick(t0.Add(30*time.Second), 15*time.Second)
	is.True(!tr.State().DeviceReachable)
}

func TestOverrideCannotMarkDeviceUpWhileServerDown(t *testing.T) {
	is := is.New(t)

	tr := NewTracker()
	tr.RecordFailure()
	tr.SetDeviceConnected(true)
	is.True(!tr.State().DeviceReachable)
}

func TestInvariantAcrossSequences(t *testing.T) {
	is := is.New(t)

	// Exercise arbitrary op sequences and re-check the invariant after
	// every tick: device up iff server up AND success recorded AND fresh.
	tr := NewTracker()
	threshold := 15 * time.Second

	ops := []struct {
		at   time.Duration
		call func(now time.Time)
	}{
		{0, func(now time.Time) { tr.RecordSuccess(now) }},
		{5 * time.Second, func(time.Time) { tr.RecordFailure() }},
		{7 * time.Second, func(now time.Time) { tr.RecordSuccess(now) }},
		{10 * time.Second, func(time.Time) {}},
		{40 * time.Second, func(time.Time) {}},
		{41 * time.Second, func(now time.Time) { tr.RecordSuccess(now) }},
	}

	for _, op := range ops {
		now := t0.Add(op.at)
		op.call(now)
		tr.Tick(now, threshold)

		st := tr.State()
		if st.ServerReachable && !st.LastSuccessAt.IsZero() {
			want := now.Sub(st.LastSuccessAt) <= threshold
			is.Equal(st.DeviceReachable, want)
		} else {
			is.True(!st.DeviceReachable)
		}
	}
}
