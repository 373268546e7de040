// Package domain classifies URLs by their registrable domain.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/lotas/tabflow/internal/types"
)

// ErrInvalidURL is returned when a URL has no parsable host.
var ErrInvalidURL = errors.New("invalid url")

// Mode selects how the registrable domain is derived from a host.
type Mode string

const (
	// ModeHeuristic uses the small common-TLD table.
	ModeHeuristic Mode = "heuristic"
	// ModePublicSuffix uses the public suffix list (eTLD+1).
	ModePublicSuffix Mode = "publicsuffix"
)

// ParseMode maps a config value to a Mode. Unknown values fall back to
// ModeHeuristic.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(s)) == ModePublicSuffix {
		return ModePublicSuffix
	}
	return ModeHeuristic
}

// commonTLDs are top-level labels under which registrants buy second-level
// names directly. Anything else is assumed to be a compound suffix such as
// co.kr, so three labels are kept.
var commonTLDs = map[string]bool{
	"com": true,
	"org": true,
	"net": true,
	"edu": true,
	"gov": true,
	"cn":  true,
	"jp":  true,
	"uk":  true,
}

// Parse extracts the registrable domain and display label of rawURL.
func Parse(rawURL string, mode Mode) (types.DomainInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.DomainInfo{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return types.DomainInfo{}, fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}
	host = strings.TrimPrefix(host, "www.")

	var main string
	if mode == ModePublicSuffix {
		main = publicSuffixDomain(host)
	} else {
		main = heuristicDomain(host)
	}

	label, _, _ := strings.Cut(main, ".")
	return types.DomainInfo{
		MainDomain:  main,
		DisplayName: strings.ToUpper(label),
	}, nil
}

func heuristicDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	keep := 3
	if commonTLDs[parts[len(parts)-1]] {
		keep = 2
	}
	if keep > len(parts) {
		keep = len(parts)
	}
	return strings.Join(parts[len(parts)-keep:], ".")
}

func publicSuffixDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Bare suffixes, IPs and single-label hosts have no eTLD+1.
		return host
	}
	return d
}
