// Package engine keeps the host's tab groups in line with the registrable
// domain of each tab.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/colors"
	"github.com/lotas/tabflow/internal/debounce"
	"github.com/lotas/tabflow/internal/domain"
	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// Defaults for Options fields left zero.
const (
	DefaultDebounceDelay = 500 * time.Millisecond
	DefaultSnapshotTTL   = 5 * time.Second
	DefaultSyncInterval  = 5 * time.Second
	DefaultAttachDelay   = 100 * time.Millisecond
)

// Options configures an Engine.
type Options struct {
	Host   host.Host
	Colors colors.Store // nil keeps colors in memory only

	DomainMode        domain.Mode
	CacheSize         int
	DebounceDelay     time.Duration
	SnapshotTTL       time.Duration
	SyncInterval      time.Duration
	SaveDelay         time.Duration
	AttachDelay       time.Duration
	CurrentWindowOnly bool

	Now func() time.Time
}

// Engine is the single context object holding all mutable classification
// state. One mutex serializes every handler; host calls are made while it is
// held, so two handlers never interleave.
type Engine struct {
	host     host.Host
	resolver *domain.Resolver
	colors   *colors.Assigner
	debounce *debounce.Debouncer
	opts     Options

	mu       sync.Mutex
	snapshot *groupSnapshot
	pending  map[int]bool        // tab id -> queued or in flight
	batches  map[string]*batch   // mainDomain -> tabs admitted this window
	owners   map[int]string      // group id -> mainDomain
	attach   map[int]*time.Timer // tab id -> delayed attach follow-up
	closed   bool
}

type batch struct {
	info   types.DomainInfo
	tabIDs []int
}

// New builds an Engine. Call Load before Run so persisted colors are in
// place before the first event.
func New(opts Options) *Engine {
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = DefaultSnapshotTTL
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	if opts.AttachDelay <= 0 {
		opts.AttachDelay = DefaultAttachDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DomainMode == "" {
		opts.DomainMode = domain.ModeHeuristic
	}
	return &Engine{
		host:     opts.Host,
		resolver: domain.NewResolver(opts.DomainMode, opts.CacheSize),
		colors:   colors.NewAssigner(opts.Colors, opts.SaveDelay),
		debounce: debounce.New(opts.DebounceDelay),
		opts:     opts,
		snapshot: newGroupSnapshot(opts.Host, opts.SnapshotTTL, opts.Now),
		pending:  make(map[int]bool),
		batches:  make(map[string]*batch),
		owners:   make(map[int]string),
		attach:   make(map[int]*time.Timer),
	}
}

// Load restores the persisted color assignment.
func (e *Engine) Load(ctx context.Context) error {
	return e.colors.Load(ctx)
}

// Colors exposes the color assigner.
func (e *Engine) Colors() *colors.Assigner {
	return e.colors
}

// Run dispatches events in arrival order and runs the periodic title sync
// until ctx is done or events is closed.
func (e *Engine) Run(ctx context.Context, events <-chan types.Event) error {
	ticker := time.NewTicker(e.opts.SyncInterval)
	defer ticker.Stop()

	applog.Info("engine.start", "sync_interval", e.opts.SyncInterval, "debounce", e.opts.DebounceDelay)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.HandleEvent(ctx, ev)
		case <-ticker.C:
			if err := e.SyncTitles(ctx); err != nil {
				applog.Error("sync.titles", err)
			}
		}
	}
}

// Flush runs every debounced action now. Used on shutdown and in tests.
func (e *Engine) Flush() {
	e.debounce.Flush()
}

// Pending reports whether tabID is queued or being processed.
func (e *Engine) Pending(tabID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending[tabID]
}

// Close cancels waiting actions, releases their tabs and persists colors.
func (e *Engine) Close() {
	if cancelled := e.debounce.Stop(); len(cancelled) > 0 {
		applog.Info("engine.cancelled", "domains", cancelled)
	}

	e.mu.Lock()
	e.closed = true
	for id, t := range e.attach {
		t.Stop()
		delete(e.attach, id)
	}
	for d, b := range e.batches {
		e.release(b.tabIDs)
		delete(e.batches, d)
	}
	e.mu.Unlock()

	e.colors.Close()
	applog.Info("engine.closed")
}

func (e *Engine) release(tabIDs []int) {
	for _, id := range tabIDs {
		delete(e.pending, id)
	}
}
