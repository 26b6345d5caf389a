package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/docreef/docreef/errs"
)

// githubRepoPattern recognizes a bare repository URL, e.g.
// https://github.com/owner/repo or https://github.com/owner/repo/tree/branch.
var githubRepoPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+?)(?:\.git)?(?:/tree/([^/]+))?/?$`)

// GitHostFetcher recognizes a well-known source-hosting URL, lists the
// repository's markdown files through the host's tree API, and assembles
// them into one combined document. It is the optional source-host
// fetcher; only GitHub's tree API is implemented.
type GitHostFetcher struct {
	// inner does the actual HTTP work against the API and raw content hosts.
	inner Fetcher
}

// NewGitHostFetcher wraps an HTTP-capable fetcher for the API/raw-content
// requests it issues internally.
func NewGitHostFetcher(inner Fetcher) *GitHostFetcher {
	return &GitHostFetcher{inner: inner}
}

func (g *GitHostFetcher) CanFetch(source string) bool {
	return githubRepoPattern.MatchString(source)
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type treeResponse struct {
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

func (g *GitHostFetcher) Fetch(ctx context.Context, source string, opts Options) (*Result, error) {
	m := githubRepoPattern.FindStringSubmatch(source)
	if m == nil {
		return nil, errs.New(errs.FetchFailed, "not a recognized source-host URL")
	}
	owner, repo, branch := m[1], m[2], m[3]

	branches := []string{branch}
	if branch == "" {
		branches = []string{"main", "master"}
	}

	var lastErr error
	for _, b := range branches {
		result, err := g.fetchBranch(ctx, owner, repo, b, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, errs.Wrap(errs.FetchFailed, lastErr, "no default branch resolved")
}

func (g *GitHostFetcher) fetchBranch(ctx context.Context, owner, repo, branch string, opts Options) (*Result, error) {
	treeURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, branch)
	treeRes, err := g.inner.Fetch(ctx, treeURL, opts)
	if err != nil {
		return nil, err
	}

	var parsed treeResponse
	if err := json.Unmarshal(treeRes.Bytes, &parsed); err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, err, "malformed tree API response")
	}

	var md []string
	for _, e := range parsed.Tree {
		if e.Type == "blob" && isMarkdownPath(e.Path) {
			md = append(md, e.Path)
		}
	}
	if len(md) == 0 {
		return nil, errs.New(errs.FetchFailed, "no markdown files found in tree")
	}

	var combined strings.Builder
	for _, path := range md {
		select {
		case <-opts.Cancel:
			return nil, context.Canceled
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", owner, repo, branch, path)
		fileRes, err := g.inner.Fetch(ctx, rawURL, opts)
		if err != nil {
			continue // best-effort assembly: a missing file doesn't fail the whole document
		}
		combined.WriteString("# " + path + "\n\n")
		combined.Write(fileRes.Bytes)
		combined.WriteString("\n\n")
	}

	return &Result{
		Bytes:     []byte(combined.String()),
		MIME:      "text/markdown",
		SourceURL: fmt.Sprintf("https://github.com/%s/%s/tree/%s", owner, repo, branch),
	}, nil
}

func isMarkdownPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".mdx")
}
