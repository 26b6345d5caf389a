// Package version implements the semver-aware Version Resolver: selecting
// the best indexed version for a library against an optional target
// (absent, "latest", an exact version, or an X-range such as "5.x").
package version

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	xsemver "golang.org/x/mod/semver"

	"github.com/docreef/docreef/errs"
)

// Normalize lower-cases and trims a version string. The unversioned bucket
// is the literal empty string after normalization.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeLibrary lower-cases and trims a library name.
func NormalizeLibrary(lib string) string {
	return strings.ToLower(strings.TrimSpace(lib))
}

// Result is the outcome of FindBestVersion.
type Result struct {
	BestMatch      string // empty if there is no versioned match
	HasUnversioned bool
}

// Indexed describes the versions currently indexed for a library, as
// reported by the document store.
type Indexed struct {
	// Versions are version strings lower-cased and trimmed by the store,
	// excluding the unversioned bucket.
	Versions []string
	// HasUnversioned reports whether the empty-string bucket is non-empty.
	HasUnversioned bool
}

// FindBestVersion resolves the best indexed version for a target request.
func FindBestVersion(library string, target string, idx Indexed) (Result, error) {
	if len(idx.Versions) == 0 && !idx.HasUnversioned {
		return Result{}, errs.New(errs.VersionNotFound, "no versions indexed for "+library).
			WithSuggestions()
	}

	sorted := sortedSemver(idx.Versions)

	target = strings.TrimSpace(target)
	if target == "" || strings.EqualFold(target, "latest") {
		if len(sorted) == 0 {
			return Result{HasUnversioned: idx.HasUnversioned}, nil
		}
		return Result{BestMatch: sorted[len(sorted)-1], HasUnversioned: idx.HasUnversioned}, nil
	}

	if rng, isRange, ok := parseXRange(target); ok && isRange {
		if best, found := bestInConstraint(sorted, rng); found {
			return Result{BestMatch: best, HasUnversioned: idx.HasUnversioned}, nil
		}
		return olderFallback(sorted, idx.HasUnversioned)
	}

	if xsemver.IsValid(canonicalize(target)) {
		// Concrete version: accept anything <= target, including the exact
		// match itself (older docs are acceptable fallback semantics).
		best, found := bestAtMost(sorted, target)
		if found {
			return Result{BestMatch: best, HasUnversioned: idx.HasUnversioned}, nil
		}
		return olderFallback(sorted, idx.HasUnversioned)
	}

	// Invalid format.
	if idx.HasUnversioned {
		return Result{HasUnversioned: true}, nil
	}
	return Result{}, errs.New(errs.VersionNotFound, "invalid version target "+target).
		WithSuggestions(sorted...)
}

// canonicalize ensures a "v" prefix, which golang.org/x/mod/semver requires.
func canonicalize(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// sortedSemver returns valid semver strings (original form, not
// canonicalized) in ascending order; invalid entries are dropped.
func sortedSemver(versions []string) []string {
	valid := make([]string, 0, len(versions))
	for _, v := range versions {
		if xsemver.IsValid(canonicalize(v)) {
			valid = append(valid, v)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		return xsemver.Compare(canonicalize(valid[i]), canonicalize(valid[j])) < 0
	})
	return valid
}

// parseXRange recognizes target as an X-range (N, N.x, N.M.x) and returns
// a Masterminds constraint for it. isRange reports whether target looks like
// a range (contains an "x", or is a bare N or N.M); ok is false only when
// such a target fails to parse as a constraint. Other targets return
// isRange=false and ok=true without further validation.
func parseXRange(target string) (*semver.Constraints, bool, bool) {
	lower := strings.ToLower(target)
	isRange := strings.Contains(lower, "x") || isBareMajorOrMinor(target)
	if !isRange {
		return nil, false, true
	}
	c, err := semver.NewConstraint(lower)
	if err != nil {
		return nil, true, false
	}
	return c, true, true
}

// isBareMajorOrMinor reports whether target is a bare "5" or "5.2" form,
// treated as an implicit X-range.
func isBareMajorOrMinor(target string) bool {
	parts := strings.Split(target, ".")
	if len(parts) == 0 || len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func bestInConstraint(sorted []string, c *semver.Constraints) (string, bool) {
	best := ""
	found := false
	for _, v := range sorted {
		sv, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if c.Check(sv) {
			best = v
			found = true
		}
	}
	return best, found
}

func bestAtMost(sorted []string, target string) (string, bool) {
	ct := canonicalize(target)
	best := ""
	found := false
	for _, v := range sorted {
		if xsemver.Compare(canonicalize(v), ct) <= 0 {
			best = v
			found = true
		}
	}
	return best, found
}

func olderFallback(sorted []string, hasUnversioned bool) (Result, error) {
	if len(sorted) == 0 {
		return Result{HasUnversioned: hasUnversioned}, nil
	}
	return Result{BestMatch: sorted[len(sorted)-1], HasUnversioned: hasUnversioned}, nil
}
