package crawl

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope is the crawl-boundary policy relative to a seed URL.
type Scope string

const (
	ScopeSubpages Scope = "subpages"
	ScopeHostname Scope = "hostname"
	ScopeDomain   Scope = "domain"
)

// scopeChecker decides whether a candidate URL stays inside the crawl
// boundary established by the seed URL.
type scopeChecker struct {
	scope    Scope
	seedHost string
	seedDir  string // seed's path directory, trailing slash included
	seedETLD string // effective TLD+1 of the seed host, for ScopeDomain
}

func newScopeChecker(scope Scope, seed *url.URL) *scopeChecker {
	dir := seed.Path
	if idx := strings.LastIndex(dir, "/"); idx >= 0 {
		dir = dir[:idx+1]
	} else {
		dir = "/"
	}
	etld, err := publicsuffix.EffectiveTLDPlusOne(seed.Hostname())
	if err != nil {
		etld = seed.Hostname()
	}
	return &scopeChecker{
		scope:    scope,
		seedHost: seed.Hostname(),
		seedDir:  dir,
		seedETLD: etld,
	}
}

func (c *scopeChecker) allows(candidate *url.URL) bool {
	switch c.scope {
	case ScopeHostname:
		return candidate.Hostname() == c.seedHost
	case ScopeDomain:
		etld, err := publicsuffix.EffectiveTLDPlusOne(candidate.Hostname())
		if err != nil {
			etld = candidate.Hostname()
		}
		return etld == c.seedETLD
	default: // ScopeSubpages
		return candidate.Hostname() == c.seedHost && strings.HasPrefix(candidate.Path, c.seedDir)
	}
}
