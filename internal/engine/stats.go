package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/colors"
	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// DomainStats aggregates every open tab by registrable domain. The tab list
// is always queried fresh.
func (e *Engine) DomainStats(ctx context.Context) (types.StatsResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tabs, err := e.host.QueryTabs(ctx, host.TabQuery{})
	if err != nil {
		return types.StatsResponse{}, fmt.Errorf("query tabs: %w", err)
	}

	stats := make(map[string]*types.DomainStat)
	for _, t := range tabs {
		if t.URL == "" {
			continue
		}
		info, err := e.resolver.Resolve(t.URL)
		if err != nil {
			continue
		}
		s, ok := stats[info.MainDomain]
		if !ok {
			color, assigned := e.colors.Lookup(info.MainDomain)
			if !assigned {
				color = colors.Unassigned
			}
			s = &types.DomainStat{DisplayName: info.DisplayName, Color: color}
			stats[info.MainDomain] = s
		}
		s.Count++
		s.Tabs = append(s.Tabs, types.TabSummary{
			ID:      t.ID,
			Title:   t.Title,
			URL:     t.URL,
			GroupID: t.GroupID,
		})
	}
	return types.StatsResponse{Stats: stats, TotalDomains: len(stats)}, nil
}

// GroupByDomain reconciles every domain with more than one open tab across
// all windows. Per-domain failures do not stop the others; they are joined
// into the returned error.
func (e *Engine) GroupByDomain(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tabs, err := e.host.QueryTabs(ctx, host.TabQuery{})
	if err != nil {
		return fmt.Errorf("query tabs: %w", err)
	}

	byDomain := make(map[string][]types.Tab)
	infos := make(map[string]types.DomainInfo)
	for _, t := range tabs {
		if t.URL == "" {
			continue
		}
		info, err := e.resolver.Resolve(t.URL)
		if err != nil {
			continue
		}
		byDomain[info.MainDomain] = append(byDomain[info.MainDomain], t)
		infos[info.MainDomain] = info
	}

	domains := make([]string, 0, len(byDomain))
	for d, ts := range byDomain {
		if len(ts) > 1 {
			domains = append(domains, d)
		}
	}
	sort.Strings(domains)

	var errs []error
	for _, d := range domains {
		color := e.colors.Assign(d)
		if err := e.reconcile(ctx, infos[d], byDomain[d], color); err != nil {
			applog.Error("group.all", err, "domain", d)
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
		}
	}
	applog.Info("group.all", "domains", len(domains), "failed", len(errs))
	return errors.Join(errs...)
}
