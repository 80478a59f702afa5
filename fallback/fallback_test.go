package fallback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/logging"
	"github.com/cloudmeru/tinkywiki-mcp/ratelimit"
	"github.com/cloudmeru/tinkywiki-mcp/source"
	"github.com/cloudmeru/tinkywiki-mcp/wiki"
)

type fakeAdapter struct {
	name        string
	pageErr     error
	searchErr   error
	answer      string
	fetchCalls  atomic.Int64
	searchCalls atomic.Int64
	delay       time.Duration

	// failFirst makes the first N fetches fail with a transport error;
	// searchFailFirst does the same for searches.
	failFirst       atomic.Int64
	searchFailFirst atomic.Int64
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) FetchPage(ctx context.Context, ref identity.RepoRef) (*wiki.Page, error) {
	a.fetchCalls.Add(1)
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.failFirst.Load() > 0 {
		a.failFirst.Add(-1)
		return nil, &source.TransportError{Source: a.name, Err: errors.New("connection reset")}
	}
	if a.pageErr != nil {
		return nil, a.pageErr
	}
	return &wiki.Page{
		Repo:     ref.String(),
		Title:    ref.String(),
		Sections: []wiki.Section{{Title: "Overview", Level: 1, Content: "served by " + a.name}},
		Source:   a.name,
	}, nil
}

func (a *fakeAdapter) Search(ctx context.Context, ref identity.RepoRef, query string) (string, error) {
	a.searchCalls.Add(1)
	if a.searchFailFirst.Load() > 0 {
		a.searchFailFirst.Add(-1)
		return "", &source.TransportError{Source: a.name, Err: errors.New("connection reset")}
	}
	if a.searchErr != nil {
		return "", a.searchErr
	}
	return a.answer, nil
}

func notAvailable(name string) error {
	return &wrapped{err: source.ErrNotAvailable, name: name}
}

type wrapped struct {
	err  error
	name string
}

func (w *wrapped) Error() string { return w.name + ": not available" }
func (w *wrapped) Unwrap() error { return w.err }

func testConfig() Config {
	return Config{
		HardTimeout:     5 * time.Second,
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
		PageTTL:         time.Minute,
		SearchTTL:       time.Minute,
		FallbackEnabled: true,
	}
}

func newOrchestrator(cfg Config, maxCalls int, tiers ...source.Adapter) *Orchestrator {
	limiter := ratelimit.New(maxCalls, time.Minute)
	o := New(tiers, limiter, cfg, logging.NewDiscard())
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return o
}

func TestFetchPageFallsBackToNextTier(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki, pageErr: notAvailable(source.NameTinkyWiki)}
	deep := &fakeAdapter{name: source.NameDeepWiki}
	o := newOrchestrator(testConfig(), 10, tinky, deep)

	res, err := o.FetchPage(context.Background(), identity.NewRef("pallets", "flask"), "caller")
	if err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}
	if res.Source != source.NameDeepWiki {
		t.Errorf("Source = %q, want deepwiki", res.Source)
	}
	if len(res.Missing) != 1 || res.Missing[0] != source.NameTinkyWiki {
		t.Errorf("Missing = %v", res.Missing)
	}
	if got := res.Banner(); got != "> **Source:** DeepWiki (TinkyWiki not indexed)" {
		t.Errorf("Banner() = %q", got)
	}
}

func TestFetchPagePrimaryServes(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki}
	deep := &fakeAdapter{name: source.NameDeepWiki}
	o := newOrchestrator(testConfig(), 10, tinky, deep)

	res, err := o.FetchPage(context.Background(), identity.NewRef("pallets", "flask"), "caller")
	if err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}
	if res.Source != source.NameTinkyWiki || len(res.Missing) != 0 {
		t.Errorf("Source = %q Missing = %v", res.Source, res.Missing)
	}
	if deep.fetchCalls.Load() != 0 {
		t.Error("secondary tier consulted although primary served")
	}
	if got := res.Banner(); got != "> **Source:** TinkyWiki" {
		t.Errorf("Banner() = %q", got)
	}
}

func TestFetchPageAllTiersNotIndexed(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki, pageErr: notAvailable(source.NameTinkyWiki)}
	gh := &fakeAdapter{name: source.NameGitHub, pageErr: notAvailable(source.NameGitHub)}
	o := newOrchestrator(testConfig(), 10, tinky, gh)

	_, err := o.FetchPage(context.Background(), identity.NewRef("nobody", "nothing"), "caller")
	var nie *NotIndexedError
	if !errors.As(err, &nie) {
		t.Fatalf("expected NotIndexedError, got %v", err)
	}
	if len(nie.Tried) != 2 {
		t.Errorf("Tried = %v", nie.Tried)
	}
}

func TestFetchPageFallbackDisabled(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki, pageErr: notAvailable(source.NameTinkyWiki)}
	deep := &fakeAdapter{name: source.NameDeepWiki}
	cfg := testConfig()
	cfg.FallbackEnabled = false
	o := newOrchestrator(cfg, 10, tinky, deep)

	_, err := o.FetchPage(context.Background(), identity.NewRef("pallets", "flask"), "caller")
	var nie *NotIndexedError
	if !errors.As(err, &nie) {
		t.Fatalf("expected NotIndexedError, got %v", err)
	}
	if deep.fetchCalls.Load() != 0 {
		t.Error("fallback tier consulted while disabled")
	}
}

func TestFetchPageRetriesTransportFailures(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki}
	tinky.failFirst.Store(1)
	o := newOrchestrator(testConfig(), 10, tinky)

	res, err := o.FetchPage(context.Background(), identity.NewRef("pallets", "flask"), "caller")
	if err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}
	if tinky.fetchCalls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2 (one retry)", tinky.fetchCalls.Load())
	}
	if res.Source != source.NameTinkyWiki {
		t.Errorf("Source = %q", res.Source)
	}
}

func TestFetchPageUnreachableTierCascades(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki}
	tinky.failFirst.Store(100)
	deep := &fakeAdapter{name: source.NameDeepWiki}
	o := newOrchestrator(testConfig(), 10, tinky, deep)

	res, err := o.FetchPage(context.Background(), identity.NewRef("pallets", "flask"), "caller")
	if err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}
	// MaxRetries 2 means three attempts against the unreachable tier,
	// after which it counts as having no content and the next tier serves.
	if tinky.fetchCalls.Load() != 3 {
		t.Errorf("fetch calls = %d, want 3", tinky.fetchCalls.Load())
	}
	if res.Source != source.NameDeepWiki {
		t.Errorf("Source = %q, want deepwiki", res.Source)
	}
	if len(res.Missing) != 1 || res.Missing[0] != source.NameTinkyWiki {
		t.Errorf("Missing = %v", res.Missing)
	}
}

func TestFetchPageAllTiersUnreachable(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki}
	tinky.failFirst.Store(100)
	deep := &fakeAdapter{name: source.NameDeepWiki}
	deep.failFirst.Store(100)
	o := newOrchestrator(testConfig(), 10, tinky, deep)

	_, err := o.FetchPage(context.Background(), identity.NewRef("pallets", "flask"), "caller")
	var te *source.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestFetchPageTransportThenNotIndexed(t *testing.T) {
	// One tier unreachable, one genuinely without content: the caller
	// sees not-indexed, not a transport failure.
	tinky := &fakeAdapter{name: source.NameTinkyWiki}
	tinky.failFirst.Store(100)
	deep := &fakeAdapter{name: source.NameDeepWiki, pageErr: notAvailable(source.NameDeepWiki)}
	o := newOrchestrator(testConfig(), 10, tinky, deep)

	_, err := o.FetchPage(context.Background(), identity.NewRef("pallets", "flask"), "caller")
	var nie *NotIndexedError
	if !errors.As(err, &nie) {
		t.Fatalf("expected NotIndexedError, got %v", err)
	}
	if len(nie.Tried) != 2 {
		t.Errorf("Tried = %v", nie.Tried)
	}
}

func TestFetchPageNotAvailableNotRetried(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki, pageErr: notAvailable(source.NameTinkyWiki)}
	deep := &fakeAdapter{name: source.NameDeepWiki}
	o := newOrchestrator(testConfig(), 10, tinky, deep)

	if _, err := o.FetchPage(context.Background(), identity.NewRef("pallets", "flask"), "caller"); err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}
	if tinky.fetchCalls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1 (not-available is final)", tinky.fetchCalls.Load())
	}
}

func TestFetchPageCacheHitCostsNothing(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki}
	o := newOrchestrator(testConfig(), 10, tinky)
	ref := identity.NewRef("pallets", "flask")

	if _, err := o.FetchPage(context.Background(), ref, "caller"); err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}
	remaining := o.Remaining("caller")

	for i := 0; i < 5; i++ {
		if _, err := o.FetchPage(context.Background(), ref, "caller"); err != nil {
			t.Fatalf("cached FetchPage() error: %v", err)
		}
	}
	if tinky.fetchCalls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", tinky.fetchCalls.Load())
	}
	if o.Remaining("caller") != remaining {
		t.Errorf("cache hits consumed budget: %d -> %d", remaining, o.Remaining("caller"))
	}
}

func TestFetchPageRateLimited(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki}
	o := newOrchestrator(testConfig(), 1, tinky)

	if _, err := o.FetchPage(context.Background(), identity.NewRef("a", "b"), "caller"); err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}

	_, err := o.FetchPage(context.Background(), identity.NewRef("c", "d"), "caller")
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfter <= 0 || rle.MaxCalls != 1 {
		t.Errorf("RateLimitError = %+v", rle)
	}
	if tinky.fetchCalls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", tinky.fetchCalls.Load())
	}
}

func TestFetchPageAbandonedCallStillWarmsCache(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki, delay: 50 * time.Millisecond}
	o := newOrchestrator(testConfig(), 10, tinky)
	ref := identity.NewRef("pallets", "flask")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := o.FetchPage(ctx, ref, "caller"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	// The detached fetch finishes on its own and populates the cache.
	time.Sleep(200 * time.Millisecond)
	if _, err := o.FetchPage(context.Background(), ref, "caller"); err != nil {
		t.Fatalf("FetchPage() after abandon error: %v", err)
	}
	if tinky.fetchCalls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", tinky.fetchCalls.Load())
	}
}

func TestSearchFallsBack(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki, searchErr: notAvailable(source.NameTinkyWiki)}
	deep := &fakeAdapter{name: source.NameDeepWiki, answer: "the answer"}
	o := newOrchestrator(testConfig(), 10, tinky, deep)

	res, err := o.Search(context.Background(), identity.NewRef("pallets", "flask"), "how do routes work", "caller")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if res.Answer != "the answer" || res.Source != source.NameDeepWiki {
		t.Errorf("res = %+v", res)
	}
}

func TestSearchCachedPerQuery(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki, answer: "yes"}
	o := newOrchestrator(testConfig(), 10, tinky)
	ref := identity.NewRef("pallets", "flask")

	for i := 0; i < 2; i++ {
		if _, err := o.Search(context.Background(), ref, "query one", "caller"); err != nil {
			t.Fatalf("Search() error: %v", err)
		}
	}
	if _, err := o.Search(context.Background(), ref, "query two", "caller"); err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if tinky.searchCalls.Load() != 2 {
		t.Errorf("search calls = %d, want 2 (one per distinct query)", tinky.searchCalls.Load())
	}
}

func TestSearchUnreachableTierCascades(t *testing.T) {
	tinky := &fakeAdapter{name: source.NameTinkyWiki}
	tinky.searchFailFirst.Store(100)
	deep := &fakeAdapter{name: source.NameDeepWiki, answer: "served downstream"}
	o := newOrchestrator(testConfig(), 10, tinky, deep)

	res, err := o.Search(context.Background(), identity.NewRef("pallets", "flask"), "how do routes work", "caller")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if res.Source != source.NameDeepWiki || res.Answer != "served downstream" {
		t.Errorf("res = %+v", res)
	}
}

func TestBannerMultipleMissing(t *testing.T) {
	got := Banner(source.NameGitHub, []string{source.NameTinkyWiki, source.NameDeepWiki})
	want := "> **Source:** GitHub (TinkyWiki, DeepWiki not indexed)"
	if got != want {
		t.Errorf("Banner() = %q, want %q", got, want)
	}
}
