// Package selection tracks which inscriptions the owner wants on the frame
// and persists the choice through a Backend.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rubiojr/ordframe/pkg/log"
	"github.com/rubiojr/ordframe/pkg/ordinals"
)

var logger = log.ForService("selection")

// ErrEmptySelection is returned by Save when nothing is selected.
var ErrEmptySelection = errors.New("empty selection")

const (
	emptyMessage   = "Please select at least one Ordinal to display."
	networkMessage = "❌ Network error. Please try again."

	// FramePath is where a successful save sends the browser.
	FramePath     = "/frame"
	RedirectAfter = 2 * time.Second
)

// Backend loads and stores the selected ids.
type Backend interface {
	LoadSelection(ctx context.Context) ([]string, error)
	SaveSelection(ctx context.Context, ids []string) error
}

// RejectedError is a refusal reported by the backend, as opposed to a
// transport failure.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Result is the inline message shown under the grid after a save.
type Result struct {
	Message       string        `json:"message"`
	Kind          Kind          `json:"kind"`
	Redirect      string        `json:"redirect,omitempty"`
	RedirectAfter time.Duration `json:"redirect_after,omitempty"`
}

// Controller owns the selected set for one page session.
type Controller struct {
	mu       sync.Mutex
	items    []ordinals.Ordinal
	known    map[string]bool
	selected map[string]bool
	backend  Backend
	saving   bool
	result   *Result
}

// New seeds a controller from the page-embedded catalog and selection.
func New(items []ordinals.Ordinal, embeddedSelected []string, backend Backend) *Controller {
	c := &Controller{
		items:    append([]ordinals.Ordinal(nil), items...),
		known:    make(map[string]bool, len(items)),
		selected: make(map[string]bool, len(embeddedSelected)),
		backend:  backend,
	}
	for _, o := range items {
		c.known[o.ID] = true
	}
	for _, id := range embeddedSelected {
		c.selected[id] = true
	}
	return c
}

// LoadExisting replaces the seeded set with the stored selection. On error
// the seeded set is kept.
func (c *Controller) LoadExisting(ctx context.Context) error {
	ids, err := c.backend.LoadSelection(ctx)
	if err != nil {
		logger.Warnf("Loading existing selection: %v", err)
		return fmt.Errorf("loading selection: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = make(map[string]bool, len(ids))
	for _, id := range ids {
		c.selected[id] = true
	}
	return nil
}

// Toggle adds id when absent and removes it when present.
func (c *Controller) Toggle(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected[id] {
		delete(c.selected, id)
	} else {
		c.selected[id] = true
	}
}

func (c *Controller) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.items {
		c.selected[o.ID] = true
	}
}

func (c *Controller) SelectNone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = make(map[string]bool)
}

// SelectRare replaces the selection with every non-common item.
func (c *Controller) SelectRare() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = make(map[string]bool)
	for _, o := range c.items {
		if o.IsRare() {
			c.selected[o.ID] = true
		}
	}
}

func (c *Controller) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected[id]
}

// Selected returns the selected ids in catalog order followed by ids the
// catalog does not know, sorted.
func (c *Controller) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedLocked()
}

func (c *Controller) selectedLocked() []string {
	ids := make([]string, 0, len(c.selected))
	for _, o := range c.items {
		if c.selected[o.ID] {
			ids = append(ids, o.ID)
		}
	}
	var unknown []string
	for id := range c.selected {
		if !c.known[id] {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	return append(ids, unknown...)
}

func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selected)
}

// SaveEnabled reports whether the save button should be clickable.
func (c *Controller) SaveEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selected) > 0 && !c.saving
}

// Save persists the selection. An empty selection fails with
// ErrEmptySelection without calling the backend. A save already in flight
// makes Save a no-op returning the last result.
func (c *Controller) Save(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if len(c.selected) == 0 {
		res := Result{Message: emptyMessage, Kind: KindError}
		c.result = &res
		c.mu.Unlock()
		return res, ErrEmptySelection
	}
	if c.saving {
		var res Result
		if c.result != nil {
			res = *c.result
		}
		c.mu.Unlock()
		return res, nil
	}
	c.saving = true
	ids := c.selectedLocked()
	c.mu.Unlock()

	err := c.backend.SaveSelection(ctx, ids)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false

	var res Result
	var rejected *RejectedError
	switch {
	case err == nil:
		res = Result{
			Message:       fmt.Sprintf("✅ Selection saved! %d Ordinals selected for display.", len(ids)),
			Kind:          KindSuccess,
			Redirect:      FramePath,
			RedirectAfter: RedirectAfter,
		}
		logger.Infof("Saved selection of %d ordinals", len(ids))
	case errors.As(err, &rejected):
		res = Result{Message: "❌ Error: " + rejected.Message, Kind: KindError}
		logger.Warnf("Selection rejected: %s", rejected.Message)
	default:
		res = Result{Message: networkMessage, Kind: KindError}
		logger.Errorf("Saving selection: %v", err)
	}
	c.result = &res
	if err != nil {
		return res, fmt.Errorf("saving selection: %w", err)
	}
	return res, nil
}

// Result returns the message of the last save attempt, if any.
func (c *Controller) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}
