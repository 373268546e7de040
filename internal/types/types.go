package types

// GroupNone is the group id the host reports for tabs outside any group.
const GroupNone = -1

// StatusComplete is the load status of a tab whose navigation has finished.
const StatusComplete = "complete"

// Tab represents a single browser tab as reported by the host.
type Tab struct {
	ID       int
	URL      string
	Title    string
	Status   string
	GroupID  int // GroupNone if ungrouped
	WindowID int
	Index    int
	Active   bool
}

// Grouped reports whether the tab belongs to a tab group.
func (t Tab) Grouped() bool {
	return t.GroupID != GroupNone
}

// TabGroup represents a host tab group. The host owns it; the engine only
// references it by ID.
type TabGroup struct {
	ID        int
	Title     string
	Color     string // host color name, e.g. "blue"
	Collapsed bool
	WindowID  int
}

// DomainInfo is the classification of a URL.
type DomainInfo struct {
	MainDomain  string // registrable domain, e.g. "example.com"
	DisplayName string // upper-cased leading label, e.g. "EXAMPLE"
}

// EventKind identifies a host tab lifecycle notification.
type EventKind string

const (
	EventCreated   EventKind = "tab-created"
	EventUpdated   EventKind = "tab-updated"
	EventActivated EventKind = "tab-activated"
	EventRemoved   EventKind = "tab-removed"
	EventAttached  EventKind = "tab-attached"
)

// Event is a tab lifecycle notification forwarded by the host.
type Event struct {
	Kind   EventKind
	TabID  int
	Status string // changeInfo status for EventUpdated
	Tab    *Tab   // nil when the host did not include the tab
}

// TabSummary is the per-tab entry of a domain stat.
type TabSummary struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	GroupID int    `json:"groupId"`
}

// DomainStat aggregates the open tabs of one registrable domain.
type DomainStat struct {
	Count       int          `json:"count"`
	DisplayName string       `json:"displayName"`
	Color       string       `json:"color"`
	Tabs        []TabSummary `json:"tabs"`
}

// StatsResponse answers a getDomainStats request.
type StatsResponse struct {
	Stats        map[string]*DomainStat `json:"stats"`
	TotalDomains int                    `json:"totalDomains"`
}

// GroupResponse answers a groupTabsByDomain request.
type GroupResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
