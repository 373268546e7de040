package engine

import (
	"context"
	"time"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// actionTimeout bounds one debounced action or follow-up, which run outside
// any request context.
const actionTimeout = 30 * time.Second

// HandleEvent processes one host lifecycle notification. It never fails:
// host errors are logged and the host state is left for the periodic sync to
// heal.
func (e *Engine) HandleEvent(ctx context.Context, ev types.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	applog.Debug("event.recv", "kind", ev.Kind, "tab", ev.TabID)

	switch ev.Kind {
	case types.EventCreated:
		if ev.Tab != nil && ev.Tab.Status == types.StatusComplete {
			e.admit(*ev.Tab)
		}
	case types.EventUpdated:
		if ev.Status == types.StatusComplete && ev.Tab != nil {
			e.admit(*ev.Tab)
		}
	case types.EventActivated:
		if e.pending[ev.TabID] {
			return
		}
		tab, err := e.host.GetTab(ctx, ev.TabID)
		if err != nil {
			applog.Error("event.activated", err, "tab", ev.TabID)
			return
		}
		if tab.Status == types.StatusComplete {
			e.admit(tab)
		}
	case types.EventRemoved:
		delete(e.pending, ev.TabID)
		if t, ok := e.attach[ev.TabID]; ok {
			t.Stop()
			delete(e.attach, ev.TabID)
		}
		e.snapshot.invalidate()
		if err := e.syncTitles(ctx); err != nil {
			applog.Error("event.removed.sync", err, "tab", ev.TabID)
		}
	case types.EventAttached:
		e.scheduleAttach(ev.TabID)
	default:
		applog.Debug("event.ignored", "kind", ev.Kind)
	}
}

// admit is the concurrency guard: a tab already queued or in flight is
// dropped, otherwise it joins its domain's batch and the domain's debounce
// timer restarts. Requires e.mu.
func (e *Engine) admit(tab types.Tab) {
	if tab.URL == "" || e.pending[tab.ID] {
		return
	}
	info, err := e.resolver.Resolve(tab.URL)
	if err != nil {
		return
	}

	e.pending[tab.ID] = true
	b, ok := e.batches[info.MainDomain]
	if !ok {
		b = &batch{}
		e.batches[info.MainDomain] = b
	}
	b.info = info
	b.tabIDs = append(b.tabIDs, tab.ID)

	key := info.MainDomain
	e.debounce.Trigger(key, func() { e.runBatch(key) })
}

// runBatch is the debounced action for one domain. Every tab admitted for
// the domain in this window is released when it returns, even on panic.
func (e *Engine) runBatch(mainDomain string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.batches[mainDomain]
	if !ok {
		return
	}
	delete(e.batches, mainDomain)
	defer e.release(b.tabIDs)

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if err := e.groupDomain(ctx, b.info); err != nil {
		applog.Error("reconcile", err, "domain", mainDomain, "tabs", len(b.tabIDs))
	}
}

// groupDomain reconciles one domain against the tabs currently open.
// Requires e.mu.
func (e *Engine) groupDomain(ctx context.Context, info types.DomainInfo) error {
	color := e.colors.Assign(info.MainDomain)

	tabs, err := e.host.QueryTabs(ctx, host.TabQuery{CurrentWindow: e.opts.CurrentWindowOnly})
	if err != nil {
		return err
	}
	var same []types.Tab
	for _, t := range tabs {
		ti, err := e.resolver.Resolve(t.URL)
		if err != nil {
			continue
		}
		if ti.MainDomain == info.MainDomain {
			same = append(same, t)
		}
	}
	if len(same) <= 1 {
		return nil
	}
	return e.reconcile(ctx, info, same, color)
}

// scheduleAttach retitles the group of a re-parented tab once the host has
// settled. Requires e.mu.
func (e *Engine) scheduleAttach(tabID int) {
	if t, ok := e.attach[tabID]; ok {
		t.Stop()
	}
	e.attach[tabID] = time.AfterFunc(e.opts.AttachDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		delete(e.attach, tabID)

		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := e.retitleGroupOf(ctx, tabID); err != nil {
			applog.Error("event.attached", err, "tab", tabID)
		}
	})
}

// retitleGroupOf refreshes the count in the title of the tab's group.
// Requires e.mu.
func (e *Engine) retitleGroupOf(ctx context.Context, tabID int) error {
	tab, err := e.host.GetTab(ctx, tabID)
	if err != nil {
		return err
	}
	if !tab.Grouped() {
		return nil
	}
	g, err := e.host.GetGroup(ctx, tab.GroupID)
	if err != nil {
		return err
	}
	_, err = e.retitle(ctx, g)
	return err
}
