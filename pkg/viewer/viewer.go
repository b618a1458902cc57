// Package viewer implements the slideshow controller behind the frame page.
//
// A Viewer cycles through a fixed list of inscriptions. It auto-advances on
// an interval, shows a metadata overlay that hides itself after a timeout and
// interprets presses: a long press toggles the overlay, a short tap advances.
// The page only renders the State snapshots handed to OnChange and forwards
// user input back as method calls.
//
// All timers are owned by the Viewer. Each timer carries a generation number
// and a callback whose generation is stale does nothing, so a timer that
// fired while being reset can never act twice.
package viewer

import (
	"fmt"
	"sync"
	"time"

	"github.com/rubiojr/ordframe/pkg/ordinals"
)

const (
	DefaultInterval        = 30 * time.Second
	DefaultHoldDuration    = 500 * time.Millisecond
	DefaultTapMax          = 300 * time.Millisecond
	DefaultMetadataTimeout = 5 * time.Second
)

// Options configures a Viewer. Zero durations take the defaults.
type Options struct {
	Interval        time.Duration
	HoldDuration    time.Duration
	TapMax          time.Duration
	MetadataTimeout time.Duration
	Clock           Clock

	// OnChange receives every state change in order. It runs with the
	// Viewer locked and must not call back into it.
	OnChange func(State)
}

// State is a snapshot of the controller, shaped for the page.
type State struct {
	Index           int               `json:"index"`
	Count           int               `json:"count"`
	Item            *ordinals.Ordinal `json:"item,omitempty"`
	Kind            ordinals.Kind     `json:"kind,omitempty"`
	ContentPath     string            `json:"content_path,omitempty"`
	Overlay         *ordinals.Overlay `json:"overlay,omitempty"`
	Playing         bool              `json:"playing"`
	ShowingMetadata bool              `json:"showing_metadata"`
	Indicator       string            `json:"indicator"`
	Error           bool              `json:"error"`
}

type timerSlot struct {
	timer Timer
	gen   uint64
}

// arm cancels any pending callback and schedules f after d.
func (s *timerSlot) arm(c Clock, d time.Duration, f func(gen uint64)) {
	s.cancel()
	gen := s.gen
	s.timer = c.AfterFunc(d, func() { f(gen) })
}

func (s *timerSlot) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *timerSlot) armed() bool { return s.timer != nil }

type Viewer struct {
	mu    sync.Mutex
	opts  Options
	items []ordinals.Ordinal

	index       int
	playing     bool
	showingMeta bool
	started     bool
	stopped     bool

	advance timerSlot
	meta    timerSlot
	press   timerSlot

	pressing   bool
	pressStart time.Time
}

// New returns a Viewer over items. An empty list puts the Viewer in the
// error state where every operation is a no-op.
func New(items []ordinals.Ordinal, opts Options) *Viewer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.HoldDuration <= 0 {
		opts.HoldDuration = DefaultHoldDuration
	}
	if opts.TapMax <= 0 {
		opts.TapMax = DefaultTapMax
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = DefaultMetadataTimeout
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	list := make([]ordinals.Ordinal, len(items))
	copy(list, items)
	return &Viewer{opts: opts, items: list, playing: true}
}

// Start shows the first item and begins auto-advance when there is more
// than one item. Starting twice has no effect.
func (v *Viewer) Start() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.started || v.stopped {
		return
	}
	v.started = true
	if v.empty() {
		v.notify()
		return
	}
	v.index = 0
	v.startSlideshow()
	v.notify()
}

// Stop cancels every timer. The Viewer ignores all calls afterwards.
func (v *Viewer) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
	v.advance.cancel()
	v.meta.cancel()
	v.press.cancel()
}

// Next hides the overlay and moves to the following item, wrapping to the
// first after the last.
func (v *Viewer) Next() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() {
		return
	}
	v.next()
	v.notify()
}

// Previous hides the overlay and moves to the preceding item, wrapping to
// the last before the first.
func (v *Viewer) Previous() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() {
		return
	}
	v.hideMetadata()
	n := len(v.items)
	v.index = (v.index - 1 + n) % n
	v.resetSlideshow()
	v.notify()
}

// GoTo jumps to index (a dot indicator click). Out of range indexes are
// ignored. The overlay is left as is.
func (v *Viewer) GoTo(index int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() || index < 0 || index >= len(v.items) {
		return
	}
	v.index = index
	v.resetSlideshow()
	v.notify()
}

// TogglePlay pauses or resumes auto-advance.
func (v *Viewer) TogglePlay() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() {
		return
	}
	v.playing = !v.playing
	v.notify()
}

// ToggleMetadata shows the overlay when hidden and hides it when shown.
func (v *Viewer) ToggleMetadata() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() {
		return
	}
	v.toggleMetadata()
	v.notify()
}

// ShowMetadata shows the overlay and (re)starts its hide timer.
func (v *Viewer) ShowMetadata() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() {
		return
	}
	v.showMetadata()
	v.notify()
}

// HideMetadata hides the overlay.
func (v *Viewer) HideMetadata() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() {
		return
	}
	v.hideMetadata()
	v.notify()
}

// PressStart marks the beginning of a press on the display area. Holding
// for the hold duration toggles the overlay.
func (v *Viewer) PressStart() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() {
		return
	}
	v.pressing = true
	v.pressStart = v.opts.Clock.Now()
	v.press.arm(v.opts.Clock, v.opts.HoldDuration, v.onHold)
}

// PressEnd ends a press. A release before the tap threshold advances; a
// longer release does nothing beyond what the hold already did.
func (v *Viewer) PressEnd() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.active() || !v.pressing {
		return
	}
	v.pressing = false
	v.press.cancel()
	if v.opts.Clock.Now().Sub(v.pressStart) < v.opts.TapMax {
		v.next()
		v.notify()
	}
}

// PressCancel abandons a press (pointer left the display area).
func (v *Viewer) PressCancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pressing = false
	v.press.cancel()
}

// Key handles a keyboard key as reported by KeyboardEvent.key.
func (v *Viewer) Key(key string) {
	switch key {
	case "ArrowRight", " ":
		v.Next()
	case "ArrowLeft":
		v.Previous()
	case "i", "I":
		v.ToggleMetadata()
	case "p", "P":
		v.TogglePlay()
	}
}

// State returns the current snapshot.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot()
}

func (v *Viewer) empty() bool { return len(v.items) == 0 }

func (v *Viewer) active() bool {
	return v.started && !v.stopped && !v.empty()
}

func (v *Viewer) next() {
	v.hideMetadata()
	v.index = (v.index + 1) % len(v.items)
	v.resetSlideshow()
}

func (v *Viewer) startSlideshow() {
	if len(v.items) <= 1 {
		return
	}
	v.advance.arm(v.opts.Clock, v.opts.Interval, v.onAdvance)
}

// resetSlideshow restarts the interval after manual navigation, but only
// when auto-advance is running at all.
func (v *Viewer) resetSlideshow() {
	if v.advance.armed() {
		v.startSlideshow()
	}
}

func (v *Viewer) onAdvance(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopped || gen != v.advance.gen {
		return
	}
	if !v.showingMeta && v.playing {
		v.next()
		v.notify()
		return
	}
	v.startSlideshow()
}

func (v *Viewer) toggleMetadata() {
	if v.showingMeta {
		v.hideMetadata()
	} else {
		v.showMetadata()
	}
}

func (v *Viewer) showMetadata() {
	v.showingMeta = true
	v.meta.arm(v.opts.Clock, v.opts.MetadataTimeout, v.onMetadataTimeout)
}

func (v *Viewer) hideMetadata() {
	v.showingMeta = false
	v.meta.cancel()
}

func (v *Viewer) onMetadataTimeout(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopped || gen != v.meta.gen {
		return
	}
	v.meta.timer = nil
	v.hideMetadata()
	v.notify()
}

func (v *Viewer) onHold(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopped || gen != v.press.gen {
		return
	}
	v.press.timer = nil
	v.toggleMetadata()
	v.notify()
}

func (v *Viewer) indicator() string {
	if !v.playing {
		return "Paused"
	}
	return fmt.Sprintf("Auto: %gs", v.opts.Interval.Seconds())
}

func (v *Viewer) snapshot() State {
	st := State{
		Count:           len(v.items),
		Playing:         v.playing,
		ShowingMetadata: v.showingMeta,
		Indicator:       v.indicator(),
		Error:           v.empty(),
	}
	if v.empty() {
		return st
	}
	item := v.items[v.index]
	overlay := item.Overlay()
	st.Index = v.index
	st.Item = &item
	st.Kind = item.Kind()
	st.ContentPath = item.ContentPath()
	st.Overlay = &overlay
	return st
}

func (v *Viewer) notify() {
	if v.opts.OnChange != nil {
		v.opts.OnChange(v.snapshot())
	}
}
