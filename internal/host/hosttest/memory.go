// Package hosttest provides an in-memory host.Host for tests.
package hosttest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// Memory is a host.Host backed by maps. Empty groups disappear, as they do
// in the browser.
type Memory struct {
	mu        sync.Mutex
	tabs      map[int]types.Tab
	groups    map[int]types.TabGroup
	nextGroup int
	window    int // current window id
	calls     map[string]int
	fail      map[string]error
}

// NewMemory returns an empty host whose current window is 1.
func NewMemory() *Memory {
	return &Memory{
		tabs:      make(map[int]types.Tab),
		groups:    make(map[int]types.TabGroup),
		nextGroup: 100,
		window:    1,
		calls:     make(map[string]int),
		fail:      make(map[string]error),
	}
}

// AddTab inserts or replaces a tab. WindowID 0 means the current window and
// GroupID 0 means ungrouped.
func (m *Memory) AddTab(t types.Tab) types.Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.WindowID == 0 {
		t.WindowID = m.window
	}
	if t.GroupID == 0 {
		t.GroupID = types.GroupNone
	}
	if t.Status == "" {
		t.Status = types.StatusComplete
	}
	m.tabs[t.ID] = t
	return t
}

// AddGroup creates a group holding tabIDs and returns its id.
func (m *Memory) AddGroup(title, color string, tabIDs ...int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextGroup
	m.nextGroup++
	m.groups[id] = types.TabGroup{ID: id, Title: title, Color: color, WindowID: m.window}
	for _, tid := range tabIDs {
		t := m.tabs[tid]
		t.GroupID = id
		m.tabs[tid] = t
	}
	return id
}

// RemoveTab closes a tab.
func (m *Memory) RemoveTab(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tabs, id)
	m.pruneGroups()
}

// Tab returns the current state of a tab.
func (m *Memory) Tab(id int) (types.Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[id]
	return t, ok
}

// Groups returns all groups ordered by id.
func (m *Memory) Groups() []types.TabGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedGroups()
}

// SetTitle rewrites a group title without counting it as an engine call.
func (m *Memory) SetTitle(id int, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.groups[id]
	g.Title = title
	m.groups[id] = g
}

// Calls returns how many times action was invoked, e.g. "update-group".
func (m *Memory) Calls(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[action]
}

// FailOn makes every later call of action fail with err; nil clears it.
func (m *Memory) FailOn(action string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, action)
		return
	}
	m.fail[action] = err
}

func (m *Memory) enter(action string) error {
	m.calls[action]++
	return m.fail[action]
}

func (m *Memory) QueryTabs(_ context.Context, q host.TabQuery) ([]types.Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("query-tabs"); err != nil {
		return nil, err
	}
	var out []types.Tab
	for _, t := range m.tabs {
		if q.CurrentWindow && t.WindowID != m.window {
			continue
		}
		if q.GroupID != nil && t.GroupID != *q.GroupID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetTab(_ context.Context, id int) (types.Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("get-tab"); err != nil {
		return types.Tab{}, err
	}
	t, ok := m.tabs[id]
	if !ok {
		return types.Tab{}, &host.Error{Action: "get-tab", Message: fmt.Sprintf("no tab with id %d", id)}
	}
	return t, nil
}

func (m *Memory) QueryGroups(context.Context) ([]types.TabGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("query-groups"); err != nil {
		return nil, err
	}
	return m.sortedGroups(), nil
}

func (m *Memory) GetGroup(_ context.Context, id int) (types.TabGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("get-group"); err != nil {
		return types.TabGroup{}, err
	}
	g, ok := m.groups[id]
	if !ok {
		return types.TabGroup{}, &host.Error{Action: "get-group", Message: fmt.Sprintf("no group with id %d", id)}
	}
	return g, nil
}

func (m *Memory) GroupTabs(_ context.Context, tabIDs []int, groupID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("group-tabs"); err != nil {
		return 0, err
	}
	for _, id := range tabIDs {
		if _, ok := m.tabs[id]; !ok {
			return 0, &host.Error{Action: "group-tabs", Message: fmt.Sprintf("no tab with id %d", id)}
		}
	}
	if groupID == types.GroupNone {
		groupID = m.nextGroup
		m.nextGroup++
		m.groups[groupID] = types.TabGroup{ID: groupID, Color: "grey", WindowID: m.window}
	} else if _, ok := m.groups[groupID]; !ok {
		return 0, &host.Error{Action: "group-tabs", Message: fmt.Sprintf("no group with id %d", groupID)}
	}
	for _, id := range tabIDs {
		t := m.tabs[id]
		t.GroupID = groupID
		m.tabs[id] = t
	}
	m.pruneGroups()
	return groupID, nil
}

func (m *Memory) UpdateGroup(_ context.Context, id int, u host.GroupUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("update-group"); err != nil {
		return err
	}
	g, ok := m.groups[id]
	if !ok {
		return &host.Error{Action: "update-group", Message: fmt.Sprintf("no group with id %d", id)}
	}
	if u.Title != nil {
		g.Title = *u.Title
	}
	if u.Color != nil {
		g.Color = *u.Color
	}
	if u.Collapsed != nil {
		g.Collapsed = *u.Collapsed
	}
	m.groups[id] = g
	return nil
}

func (m *Memory) sortedGroups() []types.TabGroup {
	out := make([]types.TabGroup, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) pruneGroups() {
	used := make(map[int]bool)
	for _, t := range m.tabs {
		used[t.GroupID] = true
	}
	for id := range m.groups {
		if !used[id] {
			delete(m.groups, id)
		}
	}
}

var _ host.Host = (*Memory)(nil)
