package export

import (
	"encoding/json"
	"time"

	"github.com/lotas/tabflow/internal/types"
)

type jsonExport struct {
	ExportedAt   time.Time    `json:"exported_at"`
	TotalDomains int          `json:"total_domains"`
	Domains      []jsonDomain `json:"domains"`
}

type jsonDomain struct {
	Domain      string    `json:"domain"`
	DisplayName string    `json:"display_name"`
	Color       string    `json:"color"`
	Count       int       `json:"count"`
	Tabs        []jsonTab `json:"tabs"`
}

type jsonTab struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Grouped bool   `json:"grouped"`
	GroupID int    `json:"group_id,omitempty"`
}

// JSON formats domain statistics as a JSON document, domains ordered by
// tab count.
func JSON(stats types.StatsResponse, now time.Time) (string, error) {
	out := jsonExport{
		ExportedAt:   now,
		TotalDomains: stats.TotalDomains,
		Domains:      make([]jsonDomain, 0, len(stats.Stats)),
	}

	for _, d := range Sorted(stats.Stats) {
		s := stats.Stats[d]
		domain := jsonDomain{
			Domain:      d,
			DisplayName: s.DisplayName,
			Color:       s.Color,
			Count:       s.Count,
			Tabs:        make([]jsonTab, 0, len(s.Tabs)),
		}
		for _, tab := range s.Tabs {
			jt := jsonTab{ID: tab.ID, Title: tab.Title, URL: tab.URL}
			if tab.GroupID != types.GroupNone {
				jt.Grouped = true
				jt.GroupID = tab.GroupID
			}
			domain.Tabs = append(domain.Tabs, jt)
		}
		out.Domains = append(out.Domains, domain)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
