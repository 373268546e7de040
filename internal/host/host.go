// Package host defines the tab and tab-group capabilities the engine consumes
// from the browser.
package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/lotas/tabflow/internal/types"
)

// ErrNotConnected is returned when no browser extension is attached.
var ErrNotConnected = errors.New("host not connected")

// Error is a call the host rejected, e.g. a closed tab or a missing group.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("host %s: %s", e.Action, e.Message)
}

// TabQuery filters QueryTabs. The zero value matches every tab.
type TabQuery struct {
	CurrentWindow bool
	GroupID       *int
}

// InGroup returns a query for the tabs of one group.
func InGroup(id int) TabQuery {
	return TabQuery{GroupID: &id}
}

// GroupUpdate carries the properties to change; nil fields are left alone.
type GroupUpdate struct {
	Title     *string
	Color     *string
	Collapsed *bool
}

// Host is the browser's tab API. Every method may suspend; implementations
// must be safe for use from multiple goroutines.
type Host interface {
	QueryTabs(ctx context.Context, q TabQuery) ([]types.Tab, error)
	GetTab(ctx context.Context, id int) (types.Tab, error)
	QueryGroups(ctx context.Context) ([]types.TabGroup, error)
	GetGroup(ctx context.Context, id int) (types.TabGroup, error)
	// GroupTabs adds tabIDs to groupID, or to a new group when groupID is
	// types.GroupNone. It returns the id of the group the tabs ended up in.
	GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error)
	UpdateGroup(ctx context.Context, id int, u GroupUpdate) error
}
