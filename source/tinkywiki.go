package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/wiki"
)

// tinkyNotIndexedMarkers appear on placeholder pages served for
// repositories the wiki has not indexed.
var tinkyNotIndexedMarkers = []string{
	"This page doesn’t exist",
	"This page doesn't exist",
	"404",
}

// TinkyWiki is the primary documentation tier.
type TinkyWiki struct {
	base   string
	client *httpClient
	logger *slog.Logger
}

var _ Adapter = (*TinkyWiki)(nil)

// NewTinkyWiki creates an adapter for the wiki at baseURL.
func NewTinkyWiki(baseURL string, timeout time.Duration, logger *slog.Logger) *TinkyWiki {
	if logger == nil {
		logger = slog.Default()
	}
	return &TinkyWiki{
		base:   strings.TrimRight(baseURL, "/"),
		client: newHTTPClient(timeout, hostsOf(baseURL), logger),
		logger: logger,
	}
}

// Name returns the provenance name of this upstream.
func (t *TinkyWiki) Name() string { return NameTinkyWiki }

func (t *TinkyWiki) pageURL(ref identity.RepoRef) string {
	host := ref.Host
	if host == "" {
		host = identity.DefaultHost
	}
	return fmt.Sprintf("%s/%s/%s/%s", t.base, host, ref.Owner, ref.Name)
}

// FetchPage retrieves the wiki page for ref.
func (t *TinkyWiki) FetchPage(ctx context.Context, ref identity.RepoRef) (*wiki.Page, error) {
	pageURL := t.pageURL(ref)

	body, status, err := t.client.get(ctx, pageURL, nil)
	if err != nil {
		return nil, &TransportError{Source: NameTinkyWiki, Err: err}
	}
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("tinkywiki page for %s: %w", ref, ErrNotAvailable)
	case status < 200 || status >= 300:
		return nil, &TransportError{Source: NameTinkyWiki, Err: fmt.Errorf("unexpected status %d", status)}
	}

	page, err := parsePage(ref, pageURL, NameTinkyWiki, body)
	if err != nil {
		return nil, &TransportError{Source: NameTinkyWiki, Err: err}
	}
	if pageNotIndexed(page, tinkyNotIndexedMarkers) || page.Empty() {
		t.logger.Debug("tinkywiki has no content", "repo", ref.String())
		return nil, fmt.Errorf("tinkywiki page for %s: %w", ref, ErrNotAvailable)
	}
	return page, nil
}

// Search asks the wiki's chat endpoint a question about ref.
func (t *TinkyWiki) Search(ctx context.Context, ref identity.RepoRef, query string) (string, error) {
	payload := map[string]string{
		"repository": ref.String(),
		"message":    query,
	}
	body, status, err := t.client.postJSON(ctx, t.base+"/api/chat", payload, nil)
	if err != nil {
		return "", &TransportError{Source: NameTinkyWiki, Err: err}
	}
	switch {
	case status == http.StatusNotFound:
		return "", fmt.Errorf("tinkywiki search for %s: %w", ref, ErrNotAvailable)
	case status < 200 || status >= 300:
		return "", &TransportError{Source: NameTinkyWiki, Err: fmt.Errorf("unexpected status %d", status)}
	}

	answer := extractAnswer(body)
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("tinkywiki search for %s: %w", ref, ErrNotAvailable)
	}
	return answer, nil
}

// RequestIndexing submits ref for indexing. It does not wait for the
// crawl to finish.
func (t *TinkyWiki) RequestIndexing(ctx context.Context, ref identity.RepoRef) error {
	payload := map[string]string{"repo_url": ref.URL()}
	_, status, err := t.client.postJSON(ctx, t.base+"/api/index", payload, nil)
	if err != nil {
		return &TransportError{Source: NameTinkyWiki, Err: err}
	}
	if status >= 200 && status < 300 {
		return nil
	}
	if status >= 500 {
		return &TransportError{Source: NameTinkyWiki, Err: fmt.Errorf("unexpected status %d", status)}
	}
	return fmt.Errorf("indexing request for %s rejected with status %d", ref, status)
}

// SearchRepos scrapes the wiki's search results page for repositories
// matching keyword. An empty result is not an error.
func (t *TinkyWiki) SearchRepos(ctx context.Context, keyword string) ([]Repo, error) {
	searchURL := t.base + "/search?q=" + url.QueryEscape(keyword)

	body, status, err := t.client.get(ctx, searchURL, nil)
	if err != nil {
		return nil, &TransportError{Source: NameTinkyWiki, Err: err}
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, &TransportError{Source: NameTinkyWiki, Err: fmt.Errorf("unexpected status %d", status)}
	}
	return parseSearchResults(body), nil
}

func pageNotIndexed(p *wiki.Page, markers []string) bool {
	head := p.RawText
	if len(head) > 500 {
		head = head[:500]
	}
	return containsAny(p.Title, markers) || containsAny(head, markers)
}

// extractAnswer pulls the answer text out of a chat response, accepting
// either a JSON envelope or a bare text body.
func extractAnswer(body []byte) string {
	var envelope struct {
		Answer   string `json:"answer"`
		Response string `json:"response"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		for _, s := range []string{envelope.Answer, envelope.Response, envelope.Message} {
			if strings.TrimSpace(s) != "" {
				return s
			}
		}
		return ""
	}
	return string(body)
}

var repoHrefPattern = regexp.MustCompile(`/github\.com/([\w.\-]+)/([\w.\-]+)`)

var starTextPattern = regexp.MustCompile(`([\d][\d.,]*[kKmM]?)\s*★|★\s*([\d][\d.,]*[kKmM]?)`)

// parseSearchResults extracts repository hits from a search results
// page. Each hit is an anchor whose href names a repository; star
// counts and descriptions, when present, ride along in the anchor text.
func parseSearchResults(body []byte) []Repo {
	links := extractLinks(body)

	seen := make(map[string]bool)
	var repos []Repo
	for _, link := range links {
		m := repoHrefPattern.FindStringSubmatch(link.href)
		if m == nil {
			continue
		}
		ref := identity.NewRef(m[1], m[2])
		if seen[ref.String()] {
			continue
		}
		seen[ref.String()] = true

		stars := 0
		desc := link.text
		if sm := starTextPattern.FindStringSubmatch(link.text); sm != nil {
			raw := sm[1]
			if raw == "" {
				raw = sm[2]
			}
			stars = ParseStars(raw)
			desc = strings.Replace(desc, sm[0], "", 1)
		}
		desc = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(desc), ref.String()))

		repos = append(repos, Repo{Ref: ref, Description: desc, Stars: stars})
	}
	return repos
}

func hostsOf(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{u.Hostname()}
}
