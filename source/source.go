// Documentation source adapters.
//
// Information Hiding:
// - Upstream endpoints and wire formats hidden behind the Adapter interface
// - HTTP transport details (headers, allowlist, status handling) abstracted
// - Not-indexed detection per upstream hidden from callers
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/wiki"
)

// Upstream names stamped into provenance fields.
const (
	NameTinkyWiki = "tinkywiki"
	NameDeepWiki  = "deepwiki"
	NameGitHub    = "github"
)

const userAgent = "tinkywiki-mcp/1.0"

// ErrNotAvailable reports that an upstream responded but has no content
// for the repository. It signals the caller to try the next tier; it is
// never retried.
var ErrNotAvailable = errors.New("content not available from source")

// TransportError reports a network or server failure talking to an
// upstream. Unlike ErrNotAvailable it is eligible for retry.
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Adapter fetches documentation from one upstream tier.
type Adapter interface {
	// Name returns the provenance name of this upstream.
	Name() string

	// FetchPage retrieves and parses the documentation page for ref.
	// Returns ErrNotAvailable when the upstream has not indexed ref.
	FetchPage(ctx context.Context, ref identity.RepoRef) (*wiki.Page, error)

	// Search asks the upstream a free-text question about ref.
	// Returns ErrNotAvailable when the upstream cannot answer for ref.
	Search(ctx context.Context, ref identity.RepoRef, query string) (string, error)
}

// Repo is one repository hit from a repo search.
type Repo struct {
	Ref         identity.RepoRef
	Description string
	Stars       int
}

// httpClient wraps http.Client with a host allowlist and shared headers.
type httpClient struct {
	inner        *http.Client
	allowedHosts []string
	logger       *slog.Logger
}

func newHTTPClient(timeout time.Duration, allowedHosts []string, logger *slog.Logger) *httpClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &httpClient{
		inner:        &http.Client{Timeout: timeout},
		allowedHosts: allowedHosts,
		logger:       logger,
	}
}

// hostAllowed checks the URL scheme and hostname against the allowlist.
// Uses proper URL parsing to prevent bypass attacks.
func (c *httpClient) hostAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	if len(c.allowedHosts) == 0 {
		return true
	}
	host := u.Hostname()
	for _, allowed := range c.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (c *httpClient) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) ([]byte, int, error) {
	if !c.hostAllowed(rawURL) {
		return nil, 0, fmt.Errorf("host in %q is not allowed", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *httpClient) get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, int, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, headers)
}

func (c *httpClient) postJSON(ctx context.Context, rawURL string, payload any, headers map[string]string) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode request body: %w", err)
	}
	merged := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		merged[k] = v
	}
	return c.do(ctx, http.MethodPost, rawURL, bytes.NewReader(data), merged)
}

// containsAny reports whether body contains any of the markers,
// case-insensitively.
func containsAny(body string, markers []string) bool {
	lower := strings.ToLower(body)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
