package server

import (
	"context"
	"fmt"

	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// Command actions understood by the extension.
const (
	ActionQueryTabs   = "query-tabs"
	ActionGetTab      = "get-tab"
	ActionQueryGroups = "query-groups"
	ActionGetGroup    = "get-group"
	ActionGroupTabs   = "group-tabs"
	ActionUpdateGroup = "update-group"
)

var _ host.Host = (*Server)(nil)

// QueryTabs lists tabs matching q, sending query-tabs.
func (s *Server) QueryTabs(ctx context.Context, q host.TabQuery) ([]types.Tab, error) {
	resp, err := s.Call(ctx, OutgoingMsg{
		Action:        ActionQueryTabs,
		CurrentWindow: q.CurrentWindow,
		GroupID:       q.GroupID,
	})
	if err != nil {
		return nil, err
	}
	return ParseTabs(resp.Tabs)
}

// GetTab fetches one tab by id.
func (s *Server) GetTab(ctx context.Context, id int) (types.Tab, error) {
	resp, err := s.Call(ctx, OutgoingMsg{Action: ActionGetTab, TabID: id})
	if err != nil {
		return types.Tab{}, err
	}
	if len(resp.Tab) == 0 {
		return types.Tab{}, &host.Error{Action: ActionGetTab, Message: fmt.Sprintf("no tab in response for %d", id)}
	}
	return ParseTab(resp.Tab)
}

// QueryGroups lists every tab group.
func (s *Server) QueryGroups(ctx context.Context) ([]types.TabGroup, error) {
	resp, err := s.Call(ctx, OutgoingMsg{Action: ActionQueryGroups})
	if err != nil {
		return nil, err
	}
	return ParseGroups(resp.Groups)
}

// GetGroup fetches one tab group by id.
func (s *Server) GetGroup(ctx context.Context, id int) (types.TabGroup, error) {
	resp, err := s.Call(ctx, OutgoingMsg{Action: ActionGetGroup, GroupID: &id})
	if err != nil {
		return types.TabGroup{}, err
	}
	if len(resp.Group) == 0 {
		return types.TabGroup{}, &host.Error{Action: ActionGetGroup, Message: fmt.Sprintf("no group in response for %d", id)}
	}
	return ParseGroup(resp.Group)
}

// GroupTabs moves tabIDs into groupID, or into a new group when groupID is
// types.GroupNone, and returns the id of the group that holds them.
func (s *Server) GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	msg := OutgoingMsg{Action: ActionGroupTabs, TabIDs: tabIDs}
	if groupID != types.GroupNone {
		msg.GroupID = &groupID
	}
	resp, err := s.Call(ctx, msg)
	if err != nil {
		return 0, err
	}
	if resp.GroupID == nil {
		return 0, &host.Error{Action: ActionGroupTabs, Message: "response has no groupId"}
	}
	return *resp.GroupID, nil
}

// UpdateGroup changes the non-nil fields of u on group id.
func (s *Server) UpdateGroup(ctx context.Context, id int, u host.GroupUpdate) error {
	_, err := s.Call(ctx, OutgoingMsg{
		Action:    ActionUpdateGroup,
		GroupID:   &id,
		Title:     u.Title,
		Color:     u.Color,
		Collapsed: u.Collapsed,
	})
	return err
}
