package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/wiki"
)

const (
	githubAPIVersion = "2022-11-28"

	// treeFetchCap bounds how many tree entries we keep from the API;
	// treeShowCap bounds how many end up in the rendered section.
	treeFetchCap = 200
	treeShowCap  = 100
)

// GitHub is the final documentation tier. It synthesizes a page from
// the repository's metadata, README and file tree.
type GitHub struct {
	base   string
	token  string
	client *httpClient
	logger *slog.Logger
}

var _ Adapter = (*GitHub)(nil)

// NewGitHub creates an adapter for the GitHub REST API at baseURL.
// token is optional; when set it raises the API rate budget.
func NewGitHub(baseURL, token string, timeout time.Duration, logger *slog.Logger) *GitHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHub{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: newHTTPClient(timeout, hostsOf(baseURL), logger),
		logger: logger,
	}
}

// Name returns the provenance name of this upstream.
func (g *GitHub) Name() string { return NameGitHub }

func (g *GitHub) headers() map[string]string {
	h := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": githubAPIVersion,
	}
	if g.token != "" {
		h["Authorization"] = "Bearer " + g.token
	}
	return h
}

func (g *GitHub) getJSON(ctx context.Context, path string, out any) (int, error) {
	body, status, err := g.client.get(ctx, g.base+path, g.headers())
	if err != nil {
		return 0, &TransportError{Source: NameGitHub, Err: err}
	}
	if status == http.StatusNotFound {
		return status, nil
	}
	if status < 200 || status >= 300 {
		return status, &TransportError{Source: NameGitHub, Err: fmt.Errorf("unexpected status %d for %s", status, path)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return status, &TransportError{Source: NameGitHub, Err: fmt.Errorf("failed to decode %s response: %w", path, err)}
	}
	return status, nil
}

type repoMetadata struct {
	FullName        string   `json:"full_name"`
	Description     string   `json:"description"`
	Language        string   `json:"language"`
	StargazersCount int      `json:"stargazers_count"`
	DefaultBranch   string   `json:"default_branch"`
	Homepage        string   `json:"homepage"`
	Topics          []string `json:"topics"`
	HTMLURL         string   `json:"html_url"`
}

// FetchPage synthesizes a documentation page for ref from repository
// metadata, the README, and the file tree. Only the metadata call is
// mandatory; README and tree failures degrade the page rather than
// failing the fetch.
func (g *GitHub) FetchPage(ctx context.Context, ref identity.RepoRef) (*wiki.Page, error) {
	repoPath := fmt.Sprintf("/repos/%s/%s", ref.Owner, ref.Name)

	var meta repoMetadata
	status, err := g.getJSON(ctx, repoPath, &meta)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("github repository %s: %w", ref, ErrNotAvailable)
	}

	sections := []wiki.Section{overviewSection(&meta)}
	sections = append(sections, g.readmeSections(ctx, ref)...)
	if tree := g.treeSection(ctx, ref, meta.DefaultBranch); tree != nil {
		sections = append(sections, *tree)
	}

	toc := make([]wiki.TOCEntry, 0, len(sections))
	var raw strings.Builder
	for _, s := range sections {
		toc = append(toc, wiki.TOCEntry{Title: s.Title, Level: s.Level})
		raw.WriteString(s.Content)
		raw.WriteString("\n\n")
	}

	return &wiki.Page{
		Repo:     ref.String(),
		URL:      meta.HTMLURL,
		Title:    meta.FullName,
		Sections: sections,
		TOC:      toc,
		RawText:  strings.TrimSpace(raw.String()),
		Source:   NameGitHub,
	}, nil
}

func overviewSection(meta *repoMetadata) wiki.Section {
	var sb strings.Builder
	if meta.Description != "" {
		sb.WriteString(meta.Description)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "- Stars: %s\n", FormatStars(meta.StargazersCount))
	if meta.Language != "" {
		fmt.Fprintf(&sb, "- Language: %s\n", meta.Language)
	}
	if meta.DefaultBranch != "" {
		fmt.Fprintf(&sb, "- Default branch: %s\n", meta.DefaultBranch)
	}
	if meta.Homepage != "" {
		fmt.Fprintf(&sb, "- Homepage: %s\n", meta.Homepage)
	}
	if len(meta.Topics) > 0 {
		fmt.Fprintf(&sb, "- Topics: %s\n", strings.Join(meta.Topics, ", "))
	}
	return wiki.Section{Title: "Overview", Level: 1, Content: strings.TrimSpace(sb.String())}
}

// readmeSections fetches and decodes the README, splitting it into
// sections on its markdown headings.
func (g *GitHub) readmeSections(ctx context.Context, ref identity.RepoRef) []wiki.Section {
	var payload struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	status, err := g.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/readme", ref.Owner, ref.Name), &payload)
	if err != nil || status == http.StatusNotFound {
		if err != nil {
			g.logger.Debug("readme fetch failed", "repo", ref.String(), "error", err)
		}
		return nil
	}

	content := payload.Content
	if payload.Encoding == "base64" || payload.Encoding == "" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			g.logger.Debug("readme decode failed", "repo", ref.String(), "error", err)
			return nil
		}
		content = string(decoded)
	}
	return splitMarkdownSections(content)
}

// splitMarkdownSections splits markdown on its heading lines. Text
// before the first heading becomes a README section.
func splitMarkdownSections(content string) []wiki.Section {
	var sections []wiki.Section
	cur := wiki.Section{Title: "README", Level: 1}
	var buf strings.Builder

	flush := func() {
		cur.Content = strings.TrimSpace(buf.String())
		buf.Reset()
		if cur.Content != "" || cur.Title != "README" {
			sections = append(sections, cur)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if level, title, ok := markdownHeading(line); ok {
			flush()
			cur = wiki.Section{Title: title, Level: level}
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()
	return sections
}

func markdownHeading(line string) (level int, title string, ok bool) {
	trimmed := strings.TrimSpace(line)
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(trimmed) || trimmed[level] != ' ' {
		return 0, "", false
	}
	title = strings.TrimSpace(trimmed[level+1:])
	return level, title, title != ""
}

// treeSection renders the repository file tree as a section, capped so
// huge repositories stay readable.
func (g *GitHub) treeSection(ctx context.Context, ref identity.RepoRef, branch string) *wiki.Section {
	if branch == "" {
		branch = "main"
	}
	var payload struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", ref.Owner, ref.Name, branch)
	status, err := g.getJSON(ctx, path, &payload)
	if err != nil || status == http.StatusNotFound || len(payload.Tree) == 0 {
		if err != nil {
			g.logger.Debug("tree fetch failed", "repo", ref.String(), "error", err)
		}
		return nil
	}

	var paths []string
	for _, entry := range payload.Tree {
		if entry.Type != "blob" {
			continue
		}
		paths = append(paths, entry.Path)
		if len(paths) == treeFetchCap {
			break
		}
	}
	if len(paths) == 0 {
		return nil
	}

	shown := paths
	if len(shown) > treeShowCap {
		shown = shown[:treeShowCap]
	}
	var sb strings.Builder
	for _, p := range shown {
		sb.WriteString("- ")
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	if len(paths) > len(shown) || payload.Truncated {
		fmt.Fprintf(&sb, "\n(showing %d of %d+ files)\n", len(shown), len(paths))
	}
	return &wiki.Section{Title: "Repository Files", Level: 1, Content: strings.TrimSpace(sb.String())}
}

// Search runs a code search scoped to ref and formats the matches.
func (g *GitHub) Search(ctx context.Context, ref identity.RepoRef, query string) (string, error) {
	q := url.QueryEscape(query) + "+repo:" + url.QueryEscape(ref.String())
	var payload struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			Path    string `json:"path"`
			HTMLURL string `json:"html_url"`
		} `json:"items"`
	}
	status, err := g.getJSON(ctx, "/search/code?q="+q, &payload)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound || payload.TotalCount == 0 {
		return "", fmt.Errorf("github code search for %s: %w", ref, ErrNotAvailable)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d code matches for %q in %s:\n\n", payload.TotalCount, query, ref)
	for i, item := range payload.Items {
		if i == 10 {
			break
		}
		fmt.Fprintf(&sb, "- %s (%s)\n", item.Path, item.HTMLURL)
	}
	return sb.String(), nil
}

// SearchRepos queries the repository search API for keyword, ordered
// by stars descending.
func (g *GitHub) SearchRepos(ctx context.Context, keyword string) ([]Repo, error) {
	q := url.QueryEscape(keyword)
	var payload struct {
		Items []struct {
			FullName        string `json:"full_name"`
			Description     string `json:"description"`
			StargazersCount int    `json:"stargazers_count"`
		} `json:"items"`
	}
	path := "/search/repositories?q=" + q + "&sort=stars&order=desc&per_page=10"
	status, err := g.getJSON(ctx, path, &payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	repos := make([]Repo, 0, len(payload.Items))
	for _, item := range payload.Items {
		owner, name, ok := strings.Cut(item.FullName, "/")
		if !ok {
			continue
		}
		repos = append(repos, Repo{
			Ref:         identity.NewRef(owner, name),
			Description: item.Description,
			Stars:       item.StargazersCount,
		})
	}
	return repos, nil
}
