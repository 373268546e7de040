package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lotas/tabflow/internal/types"
)

// Sorted returns the domains of stats by tab count, largest first, ties
// broken by name. Nil entries are skipped.
func Sorted(stats map[string]*types.DomainStat) []string {
	domains := make([]string, 0, len(stats))
	for d, s := range stats {
		if s != nil {
			domains = append(domains, d)
		}
	}
	sort.Slice(domains, func(i, j int) bool {
		a, b := stats[domains[i]], stats[domains[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return domains[i] < domains[j]
	})
	return domains
}

// Markdown formats domain statistics as a markdown document.
func Markdown(stats types.StatsResponse, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Open Tabs by Domain (%d domains)\n", stats.TotalDomains)
	fmt.Fprintf(&b, "> Exported %s\n", now.Format("2006-01-02 15:04"))

	for _, d := range Sorted(stats.Stats) {
		s := stats.Stats[d]
		noun := "tabs"
		if s.Count == 1 {
			noun = "tab"
		}
		fmt.Fprintf(&b, "\n## %s: %s (%d %s)\n\n", s.DisplayName, d, s.Count, noun)

		for _, tab := range s.Tabs {
			title := tab.Title
			if title == "" {
				title = tab.URL
			}
			fmt.Fprintf(&b, "- [%s](%s)", title, tab.URL)
			if tab.GroupID != types.GroupNone {
				b.WriteString(" (grouped)")
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
