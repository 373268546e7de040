// Package render formats daemon state for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabflow/internal/colors"
	"github.com/lotas/tabflow/internal/export"
	"github.com/lotas/tabflow/internal/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	nameStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	countStyle  = lipgloss.NewStyle().Width(5).Align(lipgloss.Right)
)

func swatch(hex string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("██")
}

// Stats renders the per-domain tab statistics. With verbose, each domain
// lists its tab titles.
func Stats(resp types.StatsResponse, verbose bool) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%d domains", resp.TotalDomains)))
	b.WriteString("\n")

	domains := export.Sorted(resp.Stats)
	if len(domains) == 0 {
		b.WriteString(dimStyle.Render("no open tabs"))
		b.WriteString("\n")
		return b.String()
	}

	width := 0
	for _, d := range domains {
		width = max(width, lipgloss.Width(resp.Stats[d].DisplayName))
	}
	nameCol := nameStyle.Width(width + 2)

	for _, d := range domains {
		s := resp.Stats[d]
		fmt.Fprintf(&b, "%s %s%s %s\n",
			swatch(s.Color),
			nameCol.Render(s.DisplayName),
			countStyle.Render(fmt.Sprint(s.Count)),
			dimStyle.Render(d),
		)
		if !verbose {
			continue
		}
		for _, t := range s.Tabs {
			title := t.Title
			if title == "" {
				title = t.URL
			}
			fmt.Fprintf(&b, "     %s\n", dimStyle.Render(title))
		}
	}
	return b.String()
}

// Colors renders the persisted domain color assignments.
func Colors(state colors.State) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%d domains, next color %d", len(state.Domains), state.NextIndex)))
	b.WriteString("\n")

	domains := make([]string, 0, len(state.Domains))
	for d := range state.Domains {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		hex := state.Domains[d]
		fmt.Fprintf(&b, "%s %s %s %s\n", swatch(hex), hex, dimStyle.Render(colors.GroupColor(hex)), d)
	}
	return b.String()
}
