package viewer

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/ordframe/pkg/ordinals"
)

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// Advance moves time forward, firing due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

func items(n int) []ordinals.Ordinal {
	list := make([]ordinals.Ordinal, n)
	for i := range list {
		list[i] = ordinals.Ordinal{ID: string(rune('a'+i)) + "i0", Number: int64(i + 1), ContentType: "image/png"}
	}
	return list
}

type recorder struct {
	states []State
}

func (r *recorder) record(s State) { r.states = append(r.states, s) }

func (r *recorder) last() State { return r.states[len(r.states)-1] }

func newTestViewer(t *testing.T, n int) (*Viewer, *fakeClock, *recorder) {
	t.Helper()
	clock := newFakeClock()
	rec := &recorder{}
	v := New(items(n), Options{
		Interval: 10 * time.Second,
		Clock:    clock,
		OnChange: rec.record,
	})
	v.Start()
	t.Cleanup(v.Stop)
	return v, clock, rec
}

func TestNextWrapsAtEnd(t *testing.T) {
	v, _, _ := newTestViewer(t, 3)

	for _, want := range []int{1, 2, 0, 1} {
		v.Next()
		if got := v.State().Index; got != want {
			t.Fatalf("index = %d, want %d", got, want)
		}
	}
}

func TestPreviousWrapsAtStart(t *testing.T) {
	v, _, _ := newTestViewer(t, 3)

	for _, want := range []int{2, 1, 0, 2} {
		v.Previous()
		if got := v.State().Index; got != want {
			t.Fatalf("index = %d, want %d", got, want)
		}
	}
}

func TestSingleItemNavigationStaysPut(t *testing.T) {
	v, clock, rec := newTestViewer(t, 1)

	v.Next()
	v.Previous()
	if got := v.State().Index; got != 0 {
		t.Fatalf("index = %d, want 0", got)
	}

	before := len(rec.states)
	clock.Advance(time.Minute)
	if len(rec.states) != before {
		t.Fatalf("single item should not auto-advance")
	}
}

func TestAutoAdvance(t *testing.T) {
	v, clock, _ := newTestViewer(t, 3)

	clock.Advance(9 * time.Second)
	if got := v.State().Index; got != 0 {
		t.Fatalf("advanced too early: index %d", got)
	}
	clock.Advance(time.Second)
	if got := v.State().Index; got != 1 {
		t.Fatalf("index = %d after one interval, want 1", got)
	}
	clock.Advance(20 * time.Second)
	if got := v.State().Index; got != 0 {
		t.Fatalf("index = %d after three intervals, want 0", got)
	}
}

func TestManualNavigationResetsInterval(t *testing.T) {
	v, clock, _ := newTestViewer(t, 3)

	clock.Advance(8 * time.Second)
	v.Next() // index 1, timer restarts
	clock.Advance(8 * time.Second)
	if got := v.State().Index; got != 1 {
		t.Fatalf("index = %d, want 1 (interval should have restarted)", got)
	}
	clock.Advance(2 * time.Second)
	if got := v.State().Index; got != 2 {
		t.Fatalf("index = %d, want 2", got)
	}
}

func TestPauseSuppressesAutoAdvance(t *testing.T) {
	v, clock, rec := newTestViewer(t, 3)

	v.TogglePlay()
	st := rec.last()
	if st.Playing || st.Indicator != "Paused" {
		t.Fatalf("expected paused state, got %+v", st)
	}

	clock.Advance(35 * time.Second)
	if got := v.State().Index; got != 0 {
		t.Fatalf("paused viewer advanced to %d", got)
	}

	v.TogglePlay()
	if got := v.State().Indicator; got != "Auto: 10s" {
		t.Fatalf("indicator = %q", got)
	}
	clock.Advance(10 * time.Second)
	if got := v.State().Index; got != 1 {
		t.Fatalf("index = %d after resume, want 1", got)
	}
}

func TestMetadataAutoHides(t *testing.T) {
	v, clock, _ := newTestViewer(t, 3)

	v.ShowMetadata()
	if !v.State().ShowingMetadata {
		t.Fatal("overlay should be shown")
	}
	clock.Advance(4 * time.Second)
	if !v.State().ShowingMetadata {
		t.Fatal("overlay hid too early")
	}
	clock.Advance(time.Second)
	if v.State().ShowingMetadata {
		t.Fatal("overlay should auto-hide after 5s")
	}
}

func TestShowMetadataAgainRestartsHideTimer(t *testing.T) {
	v, clock, _ := newTestViewer(t, 3)

	v.ShowMetadata()
	clock.Advance(4 * time.Second)
	v.ShowMetadata()
	clock.Advance(4 * time.Second)
	if !v.State().ShowingMetadata {
		t.Fatal("overlay should still be shown after restart")
	}
	clock.Advance(time.Second)
	if v.State().ShowingMetadata {
		t.Fatal("overlay should hide 5s after last show")
	}
}

func TestMetadataSuppressesAutoAdvance(t *testing.T) {
	clock := newFakeClock()
	v := New(items(3), Options{
		Interval:        2 * time.Second,
		MetadataTimeout: 5 * time.Second,
		Clock:           clock,
	})
	v.Start()
	defer v.Stop()

	v.ShowMetadata()
	clock.Advance(4 * time.Second)
	if got := v.State().Index; got != 0 {
		t.Fatalf("advanced while overlay shown: index %d", got)
	}
	// Overlay hides at 5s, the next tick at 6s advances.
	clock.Advance(2 * time.Second)
	if got := v.State().Index; got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
}

func TestNavigationHidesMetadata(t *testing.T) {
	v, _, _ := newTestViewer(t, 3)

	v.ShowMetadata()
	v.Next()
	if v.State().ShowingMetadata {
		t.Fatal("Next should hide the overlay")
	}

	v.ShowMetadata()
	v.Previous()
	if v.State().ShowingMetadata {
		t.Fatal("Previous should hide the overlay")
	}

	v.ShowMetadata()
	v.GoTo(2)
	if !v.State().ShowingMetadata {
		t.Fatal("GoTo should leave the overlay alone")
	}
}

func TestGoTo(t *testing.T) {
	v, clock, _ := newTestViewer(t, 4)

	v.GoTo(3)
	if got := v.State().Index; got != 3 {
		t.Fatalf("index = %d, want 3", got)
	}
	v.GoTo(-1)
	v.GoTo(4)
	if got := v.State().Index; got != 3 {
		t.Fatalf("out of range GoTo moved to %d", got)
	}

	clock.Advance(9 * time.Second)
	v.GoTo(1)
	clock.Advance(9 * time.Second)
	if got := v.State().Index; got != 1 {
		t.Fatalf("GoTo should restart the interval, index %d", got)
	}
}

func TestLongPressTogglesMetadata(t *testing.T) {
	v, clock, _ := newTestViewer(t, 3)

	v.PressStart()
	clock.Advance(500 * time.Millisecond)
	if !v.State().ShowingMetadata {
		t.Fatal("long press should show the overlay")
	}
	clock.Advance(200 * time.Millisecond)
	v.PressEnd()
	st := v.State()
	if !st.ShowingMetadata || st.Index != 0 {
		t.Fatalf("releasing a long press should not advance: %+v", st)
	}

	v.PressStart()
	clock.Advance(600 * time.Millisecond)
	v.PressEnd()
	if v.State().ShowingMetadata {
		t.Fatal("second long press should hide the overlay")
	}
}

func TestShortPressAdvances(t *testing.T) {
	v, clock, _ := newTestViewer(t, 3)

	v.PressStart()
	clock.Advance(100 * time.Millisecond)
	v.PressEnd()
	if got := v.State().Index; got != 1 {
		t.Fatalf("index = %d after tap, want 1", got)
	}

	// Hold timer from the tap must not fire later.
	clock.Advance(time.Second)
	if v.State().ShowingMetadata {
		t.Fatal("cancelled hold timer toggled the overlay")
	}
}

func TestMediumPressDoesNothing(t *testing.T) {
	v, clock, _ := newTestViewer(t, 3)

	v.PressStart()
	clock.Advance(400 * time.Millisecond)
	v.PressEnd()
	st := v.State()
	if st.Index != 0 || st.ShowingMetadata {
		t.Fatalf("medium press changed state: %+v", st)
	}
}

func TestPressCancel(t *testing.T) {
	v, clock, _ := newTestViewer(t, 3)

	v.PressStart()
	v.PressCancel()
	clock.Advance(time.Second)
	v.PressEnd()
	st := v.State()
	if st.Index != 0 || st.ShowingMetadata {
		t.Fatalf("cancelled press changed state: %+v", st)
	}
}

func TestKeys(t *testing.T) {
	v, _, _ := newTestViewer(t, 3)

	v.Key("ArrowRight")
	v.Key(" ")
	if got := v.State().Index; got != 2 {
		t.Fatalf("index = %d, want 2", got)
	}
	v.Key("ArrowLeft")
	if got := v.State().Index; got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
	v.Key("i")
	if !v.State().ShowingMetadata {
		t.Fatal("i should show the overlay")
	}
	v.Key("I")
	if v.State().ShowingMetadata {
		t.Fatal("I should hide the overlay")
	}
	v.Key("P")
	if v.State().Playing {
		t.Fatal("P should pause")
	}
	v.Key("p")
	if !v.State().Playing {
		t.Fatal("p should resume")
	}
	v.Key("x")
	if got := v.State().Index; got != 1 {
		t.Fatalf("unknown key moved to %d", got)
	}
}

func TestEmptyListIsErrorState(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	v := New(nil, Options{Clock: clock, OnChange: rec.record})
	v.Start()
	defer v.Stop()

	if len(rec.states) != 1 || !rec.states[0].Error {
		t.Fatalf("expected a single error state, got %+v", rec.states)
	}

	v.Next()
	v.Previous()
	v.GoTo(0)
	v.ToggleMetadata()
	v.PressStart()
	clock.Advance(time.Minute)
	v.PressEnd()
	if len(rec.states) != 1 {
		t.Fatalf("error state should ignore input, got %d states", len(rec.states))
	}
	if st := v.State(); st.Item != nil || st.Count != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestStateCarriesOverlay(t *testing.T) {
	list := []ordinals.Ordinal{
		{ID: "htmli0", Number: 9, ContentType: "text/html", SatRarity: "uncommon"},
		{ID: "pngi0", Number: 10, ContentType: "image/png"},
	}
	v := New(list, Options{Clock: newFakeClock()})
	v.Start()
	defer v.Stop()

	st := v.State()
	if st.Kind != ordinals.KindHTML || st.ContentPath != "/content/htmli0" {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Overlay == nil || st.Overlay.Title != "Inscription #9" || st.Overlay.RarityClass != "rarity-badge rarity-uncommon" {
		t.Fatalf("unexpected overlay %+v", st.Overlay)
	}
	if st.Indicator != "Auto: 30s" {
		t.Fatalf("indicator = %q, want default interval", st.Indicator)
	}
}

func TestStopCancelsTimers(t *testing.T) {
	v, clock, rec := newTestViewer(t, 3)

	v.ShowMetadata()
	v.Stop()
	before := len(rec.states)
	clock.Advance(time.Minute)
	v.Next()
	if len(rec.states) != before {
		t.Fatalf("stopped viewer emitted %d more states", len(rec.states)-before)
	}
}

func TestOnChangeOrder(t *testing.T) {
	v, clock, rec := newTestViewer(t, 3)

	v.Next()
	clock.Advance(10 * time.Second)
	v.Previous()

	var got []int
	for _, s := range rec.states {
		got = append(got, s.Index)
	}
	want := []int{0, 1, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("indexes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indexes = %v, want %v", got, want)
		}
	}
}
