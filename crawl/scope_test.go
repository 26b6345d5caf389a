package crawl

import (
	"net/url"
	"testing"
)

func TestScopeChecker_Subpages(t *testing.T) {
	seed, _ := url.Parse("https://docs.example.com/guide/")
	c := newScopeChecker(ScopeSubpages, seed)

	cases := []struct {
		url  string
		want bool
	}{
		{"https://docs.example.com/guide/a", true},
		{"https://docs.example.com/guide/sub/b", true},
		{"https://docs.example.com/api/x", false},
		{"https://other.com/guide/a", false},
	}
	for _, tc := range cases {
		u, _ := url.Parse(tc.url)
		if got := c.allows(u); got != tc.want {
			t.Errorf("allows(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestScopeChecker_Hostname(t *testing.T) {
	seed, _ := url.Parse("https://docs.example.com/guide/")
	c := newScopeChecker(ScopeHostname, seed)

	if !c.allows(mustParse("https://docs.example.com/api/x")) {
		t.Error("hostname scope should allow any path on same host")
	}
	if c.allows(mustParse("https://other.example.com/guide/")) {
		t.Error("hostname scope should reject a different host")
	}
}

func TestScopeChecker_Domain(t *testing.T) {
	seed, _ := url.Parse("https://docs.example.com/guide/")
	c := newScopeChecker(ScopeDomain, seed)

	if !c.allows(mustParse("https://api.example.com/x")) {
		t.Error("domain scope should allow a sibling subdomain")
	}
	if c.allows(mustParse("https://example.org/x")) {
		t.Error("domain scope should reject a different registrable domain")
	}
}

func mustParse(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
