package engine

import (
	"context"
	"fmt"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// SyncTitles rewrites every group title whose count no longer matches the
// group's live tab count. It is the backstop for closures and moves the
// event path misses, and writes nothing when all titles are current.
func (e *Engine) SyncTitles(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	return e.syncTitles(ctx)
}

// syncTitles requires e.mu.
func (e *Engine) syncTitles(ctx context.Context) error {
	groups, err := e.host.QueryGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	written := 0
	for _, g := range groups {
		changed, err := e.retitle(ctx, g)
		if err != nil {
			// One vanished group must not stop the sweep.
			applog.Error("sync.group", err, "group", g.ID)
			continue
		}
		if changed {
			written++
		}
	}
	if written > 0 {
		e.snapshot.invalidate()
		applog.Info("sync.titles", "groups", len(groups), "updated", written)
	}
	return nil
}

// retitle sets g's title to "<label> (<live count>)" if that differs from
// the current one. Empty groups and titles without a label are left alone.
func (e *Engine) retitle(ctx context.Context, g types.TabGroup) (bool, error) {
	label, ok := ParseTitleLabel(g.Title)
	if !ok {
		return false, nil
	}
	members, err := e.host.QueryTabs(ctx, host.InGroup(g.ID))
	if err != nil {
		return false, fmt.Errorf("count group %d: %w", g.ID, err)
	}
	if len(members) == 0 {
		return false, nil
	}
	title := FormatTitle(label, len(members))
	if title == g.Title {
		return false, nil
	}
	if err := e.host.UpdateGroup(ctx, g.ID, host.GroupUpdate{Title: &title}); err != nil {
		return false, fmt.Errorf("retitle group %d: %w", g.ID, err)
	}
	return true, nil
}
