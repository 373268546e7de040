package engine

import (
	"context"
	"fmt"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/colors"
	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// Reconcile brings the host's groups in line for one domain: it extends the
// domain's existing group with its ungrouped tabs, or creates a group when
// the domain has more than one tab. Single tabs are never grouped.
func (e *Engine) Reconcile(ctx context.Context, info types.DomainInfo, tabs []types.Tab, color string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconcile(ctx, info, tabs, color)
}

// reconcile requires e.mu.
func (e *Engine) reconcile(ctx context.Context, info types.DomainInfo, tabs []types.Tab, color string) error {
	// Whatever happens, the next reconciliation must see fresh host state.
	defer e.snapshot.invalidate()

	groups, err := e.snapshot.list(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	if target, ok := e.findGroup(groups, info); ok {
		return e.extendGroup(ctx, target, info, tabs, color)
	}
	if len(tabs) <= 1 {
		return nil
	}
	return e.createGroup(ctx, info, tabs, color)
}

// findGroup returns the group owned by info.MainDomain. Groups the engine
// has no owner for are adopted when their title label equals the display
// name, which covers groups created before a restart.
func (e *Engine) findGroup(groups []types.TabGroup, info types.DomainInfo) (types.TabGroup, bool) {
	live := make(map[int]bool, len(groups))
	for _, g := range groups {
		live[g.ID] = true
	}
	for id := range e.owners {
		if !live[id] {
			delete(e.owners, id)
		}
	}

	for _, g := range groups {
		if e.owners[g.ID] == info.MainDomain {
			return g, true
		}
	}
	for _, g := range groups {
		if _, owned := e.owners[g.ID]; owned {
			continue
		}
		if label, ok := ParseTitleLabel(g.Title); ok && label == info.DisplayName {
			e.owners[g.ID] = info.MainDomain
			applog.Info("group.adopted", "group", g.ID, "domain", info.MainDomain)
			return g, true
		}
	}
	return types.TabGroup{}, false
}

// extendGroup moves the domain's ungrouped tabs into g, then relabels g
// whenever its title or color differ from what the domain expects. The
// relabel also runs when nothing moved, so a group whose first label
// failed is repaired by the next reconciliation.
func (e *Engine) extendGroup(ctx context.Context, g types.TabGroup, info types.DomainInfo, tabs []types.Tab, color string) error {
	var ids []int
	for _, t := range tabs {
		if !t.Grouped() {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) > 0 {
		if _, err := e.host.GroupTabs(ctx, ids, g.ID); err != nil {
			return fmt.Errorf("add tabs to group %d: %w", g.ID, err)
		}
	}

	// Count what the host actually holds; concurrent events may have moved
	// tabs since our list was taken.
	members, err := e.host.QueryTabs(ctx, host.InGroup(g.ID))
	if err != nil {
		return fmt.Errorf("count group %d: %w", g.ID, err)
	}
	if len(members) == 0 {
		return nil
	}

	var u host.GroupUpdate
	title := FormatTitle(info.DisplayName, len(members))
	if title != g.Title {
		u.Title = &title
	}
	name := colors.GroupColor(color)
	if name != g.Color {
		u.Color = &name
	}
	if u.Title == nil && u.Color == nil {
		return nil
	}
	if err := e.host.UpdateGroup(ctx, g.ID, u); err != nil {
		return fmt.Errorf("retitle group %d: %w", g.ID, err)
	}
	applog.Info("group.extended", "group", g.ID, "domain", info.MainDomain, "added", len(ids), "tabs", len(members))
	return nil
}

func (e *Engine) createGroup(ctx context.Context, info types.DomainInfo, tabs []types.Tab, color string) error {
	ids := make([]int, len(tabs))
	for i, t := range tabs {
		ids[i] = t.ID
	}
	id, err := e.host.GroupTabs(ctx, ids, types.GroupNone)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	e.owners[id] = info.MainDomain

	title := FormatTitle(info.DisplayName, len(tabs))
	name := colors.GroupColor(color)
	collapsed := false
	if err := e.host.UpdateGroup(ctx, id, host.GroupUpdate{
		Title:     &title,
		Color:     &name,
		Collapsed: &collapsed,
	}); err != nil {
		return fmt.Errorf("label group %d: %w", id, err)
	}
	applog.Info("group.created", "group", id, "domain", info.MainDomain, "tabs", len(tabs), "color", name)
	return nil
}
