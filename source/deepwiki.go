package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/wiki"
)

// deepwikiNotIndexedMarkers appear on placeholder pages served for
// repositories DeepWiki has not indexed.
var deepwikiNotIndexedMarkers = []string{
	"Profile Not Found",
	"GitHub profile not found",
	"Repository not found",
	"not found",
}

// DeepWiki is the secondary documentation tier.
type DeepWiki struct {
	base   string
	client *httpClient
	logger *slog.Logger
}

var _ Adapter = (*DeepWiki)(nil)

// NewDeepWiki creates an adapter for the DeepWiki instance at baseURL.
func NewDeepWiki(baseURL string, timeout time.Duration, logger *slog.Logger) *DeepWiki {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeepWiki{
		base:   strings.TrimRight(baseURL, "/"),
		client: newHTTPClient(timeout, hostsOf(baseURL), logger),
		logger: logger,
	}
}

// Name returns the provenance name of this upstream.
func (d *DeepWiki) Name() string { return NameDeepWiki }

// FetchPage retrieves the DeepWiki page for ref.
func (d *DeepWiki) FetchPage(ctx context.Context, ref identity.RepoRef) (*wiki.Page, error) {
	pageURL := fmt.Sprintf("%s/%s/%s", d.base, ref.Owner, ref.Name)

	body, status, err := d.client.get(ctx, pageURL, nil)
	if err != nil {
		return nil, &TransportError{Source: NameDeepWiki, Err: err}
	}
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("deepwiki page for %s: %w", ref, ErrNotAvailable)
	case status < 200 || status >= 300:
		return nil, &TransportError{Source: NameDeepWiki, Err: fmt.Errorf("unexpected status %d", status)}
	}

	page, err := parsePage(ref, pageURL, NameDeepWiki, body)
	if err != nil {
		return nil, &TransportError{Source: NameDeepWiki, Err: err}
	}
	if pageNotIndexed(page, deepwikiNotIndexedMarkers) || page.Empty() {
		d.logger.Debug("deepwiki has no content", "repo", ref.String())
		return nil, fmt.Errorf("deepwiki page for %s: %w", ref, ErrNotAvailable)
	}
	return page, nil
}

// Search asks DeepWiki a question about ref.
func (d *DeepWiki) Search(ctx context.Context, ref identity.RepoRef, query string) (string, error) {
	payload := map[string]string{
		"repository": ref.String(),
		"question":   query,
	}
	body, status, err := d.client.postJSON(ctx, d.base+"/api/ask", payload, nil)
	if err != nil {
		return "", &TransportError{Source: NameDeepWiki, Err: err}
	}
	switch {
	case status == http.StatusNotFound:
		return "", fmt.Errorf("deepwiki search for %s: %w", ref, ErrNotAvailable)
	case status < 200 || status >= 300:
		return "", &TransportError{Source: NameDeepWiki, Err: fmt.Errorf("unexpected status %d", status)}
	}

	answer := extractAnswer(body)
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("deepwiki search for %s: %w", ref, ErrNotAvailable)
	}
	return answer, nil
}
