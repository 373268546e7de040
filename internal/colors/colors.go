// Package colors assigns each domain a stable display color.
package colors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/debounce"
)

// DefaultSaveDelay coalesces bursts of new domains into one store write.
const DefaultSaveDelay = time.Second

// Unassigned is reported for domains that never received a color.
const Unassigned = "#CCCCCC"

// Palette is the fixed, ordered set of display colors.
var Palette = []string{
	"#007AFF", "#34C759", "#FF9500", "#FF3B30", "#5856D6",
	"#FF2D92", "#64D2FF", "#30D158", "#FFCC00", "#BF5AF2",
	"#FF6782", "#40C8E0", "#5AC8FA", "#A2845E", "#8E8E93",
}

// groupColors maps palette entries to the host's tab group color names.
var groupColors = map[string]string{
	"#007AFF": "blue",
	"#34C759": "green",
	"#FF9500": "orange",
	"#FF3B30": "red",
	"#5856D6": "purple",
	"#FF2D92": "pink",
	"#64D2FF": "cyan",
	"#30D158": "green",
	"#FFCC00": "yellow",
}

// GroupColor returns the host group color name for a palette hex, or "grey".
func GroupColor(hex string) string {
	if name, ok := groupColors[hex]; ok {
		return name
	}
	return "grey"
}

// State is the persisted assignment: the domain map plus the palette cursor.
type State struct {
	Domains   map[string]string
	NextIndex int
}

// Store persists State. Both fields must be written together.
type Store interface {
	LoadColors(ctx context.Context) (State, error)
	SaveColors(ctx context.Context, s State) error
}

// Assigner hands out palette colors in first-seen order. Once a domain has a
// color it keeps it for as long as the store does.
type Assigner struct {
	store Store
	saver *debounce.Debouncer

	mu      sync.Mutex
	domains map[string]string
	next    int
}

// NewAssigner returns an empty Assigner. Call Load before use to restore
// persisted state. store may be nil for a memory-only assigner.
func NewAssigner(store Store, saveDelay time.Duration) *Assigner {
	if saveDelay <= 0 {
		saveDelay = DefaultSaveDelay
	}
	return &Assigner{
		store:   store,
		saver:   debounce.New(saveDelay),
		domains: make(map[string]string),
	}
}

// Load restores the mapping and cursor from the store.
func (a *Assigner) Load(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	s, err := a.store.LoadColors(ctx)
	if err != nil {
		return fmt.Errorf("load colors: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.domains = make(map[string]string, len(s.Domains))
	for d, c := range s.Domains {
		a.domains[d] = c
	}
	a.next = s.NextIndex
	applog.Info("colors.loaded", "domains", len(a.domains), "next", a.next)
	return nil
}

// Assign returns the color of domain, allocating the next palette entry the
// first time the domain is seen.
func (a *Assigner) Assign(domain string) string {
	a.mu.Lock()
	if c, ok := a.domains[domain]; ok {
		a.mu.Unlock()
		return c
	}
	c := Palette[a.next%len(Palette)]
	a.domains[domain] = c
	a.next++
	a.mu.Unlock()

	applog.Debug("colors.assigned", "domain", domain, "color", c)
	a.scheduleSave()
	return c
}

// Lookup returns the assigned color without allocating one.
func (a *Assigner) Lookup(domain string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.domains[domain]
	return c, ok
}

// Snapshot returns a copy of the current state.
func (a *Assigner) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := make(map[string]string, len(a.domains))
	for d, c := range a.domains {
		m[d] = c
	}
	return State{Domains: m, NextIndex: a.next}
}

// Flush writes any pending change immediately.
func (a *Assigner) Flush() {
	a.saver.Flush()
}

// Close flushes pending changes and stops scheduling new writes.
func (a *Assigner) Close() {
	a.saver.Flush()
	a.saver.Stop()
}

func (a *Assigner) scheduleSave() {
	if a.store == nil {
		return
	}
	a.saver.Trigger("colors", a.save)
}

func (a *Assigner) save() {
	s := a.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.SaveColors(ctx, s); err != nil {
		applog.Error("colors.save", err, "domains", len(s.Domains))
		return
	}
	applog.Debug("colors.saved", "domains", len(s.Domains), "next", s.NextIndex)
}
