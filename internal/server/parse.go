package server

import (
	"encoding/json"
	"fmt"

	"github.com/lotas/tabflow/internal/types"
)

type wireTab struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	GroupID  *int   `json:"groupId"`
	WindowID int    `json:"windowId"`
	Index    int    `json:"index"`
	Active   bool   `json:"active"`
}

type wireGroup struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
	WindowID  int    `json:"windowId"`
}

func (wt wireTab) toTab() types.Tab {
	groupID := types.GroupNone
	if wt.GroupID != nil {
		groupID = *wt.GroupID
	}
	return types.Tab{
		ID:       wt.ID,
		URL:      wt.URL,
		Title:    wt.Title,
		Status:   wt.Status,
		GroupID:  groupID,
		WindowID: wt.WindowID,
		Index:    wt.Index,
		Active:   wt.Active,
	}
}

func (wg wireGroup) toGroup() types.TabGroup {
	return types.TabGroup{
		ID:        wg.ID,
		Title:     wg.Title,
		Color:     wg.Color,
		Collapsed: wg.Collapsed,
		WindowID:  wg.WindowID,
	}
}

// ParseTab converts a raw JSON tab into a Tab. A missing groupId means the
// tab is ungrouped.
func ParseTab(raw json.RawMessage) (types.Tab, error) {
	var wt wireTab
	if err := json.Unmarshal(raw, &wt); err != nil {
		return types.Tab{}, err
	}
	return wt.toTab(), nil
}

// ParseTabs converts a raw JSON tab array.
func ParseTabs(raw json.RawMessage) ([]types.Tab, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wts []wireTab
	if err := json.Unmarshal(raw, &wts); err != nil {
		return nil, fmt.Errorf("parse tabs: %w", err)
	}
	tabs := make([]types.Tab, len(wts))
	for i, wt := range wts {
		tabs[i] = wt.toTab()
	}
	return tabs, nil
}

// ParseGroup converts a raw JSON tab group.
func ParseGroup(raw json.RawMessage) (types.TabGroup, error) {
	var wg wireGroup
	if err := json.Unmarshal(raw, &wg); err != nil {
		return types.TabGroup{}, err
	}
	return wg.toGroup(), nil
}

// ParseGroups converts a raw JSON tab group array.
func ParseGroups(raw json.RawMessage) ([]types.TabGroup, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wgs []wireGroup
	if err := json.Unmarshal(raw, &wgs); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	groups := make([]types.TabGroup, len(wgs))
	for i, wg := range wgs {
		groups[i] = wg.toGroup()
	}
	return groups, nil
}

// ParseEvent converts a lifecycle message from the extension into an Event.
// ok is false for message types that are not tab lifecycle events.
func ParseEvent(msg IncomingMsg) (types.Event, bool, error) {
	kind := types.EventKind(msg.Type)
	switch kind {
	case types.EventCreated, types.EventUpdated, types.EventActivated,
		types.EventRemoved, types.EventAttached:
	default:
		return types.Event{}, false, nil
	}

	ev := types.Event{Kind: kind, TabID: msg.TabID, Status: msg.Status}
	if len(msg.Tab) > 0 {
		tab, err := ParseTab(msg.Tab)
		if err != nil {
			return types.Event{}, true, fmt.Errorf("parse %s tab: %w", msg.Type, err)
		}
		if ev.TabID == 0 {
			ev.TabID = tab.ID
		}
		ev.Tab = &tab
	}
	return ev, true, nil
}
