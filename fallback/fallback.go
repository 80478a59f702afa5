// Tiered documentation fetching.
//
// Information Hiding:
// - Tier order, retry policy and fallback cascade hidden behind FetchPage/Search
// - Result caching and in-flight deduplication invisible to callers
// - Rate accounting applies only to live upstream fetches
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudmeru/tinkywiki-mcp/cache"
	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/internal/flight"
	"github.com/cloudmeru/tinkywiki-mcp/ratelimit"
	"github.com/cloudmeru/tinkywiki-mcp/source"
	"github.com/cloudmeru/tinkywiki-mcp/wiki"
)

// PageResult is a fetched page plus its provenance.
type PageResult struct {
	Page    *wiki.Page
	Source  string
	Missing []string // earlier tiers that had no content
}

// SearchResult is an upstream answer plus its provenance.
type SearchResult struct {
	Answer  string
	Source  string
	Missing []string
}

// NotIndexedError reports that no tier has content for the repository.
type NotIndexedError struct {
	Ref   identity.RepoRef
	Tried []string
}

func (e *NotIndexedError) Error() string {
	return fmt.Sprintf("%s is not indexed by any source (tried %s)", e.Ref, strings.Join(e.Tried, ", "))
}

// RateLimitError reports an exhausted fetch budget.
type RateLimitError struct {
	RetryAfter time.Duration
	MaxCalls   int
	Window     time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %d calls per %s exceeded; retry in %s",
		e.MaxCalls, e.Window, e.RetryAfter.Round(time.Second))
}

// Config tunes the orchestrator.
type Config struct {
	HardTimeout     time.Duration // outer bound on one live fetch
	MaxRetries      int           // extra attempts per tier on transport failure
	RetryDelay      time.Duration
	PageTTL         time.Duration
	SearchTTL       time.Duration
	FallbackEnabled bool // when false, only the first tier is consulted
}

// Orchestrator fetches documentation through the tier cascade with
// caching, deduplication and rate accounting.
type Orchestrator struct {
	tiers   []source.Adapter
	limiter *ratelimit.Limiter
	cfg     Config
	logger  *slog.Logger

	pages        *cache.Store[PageResult]
	searches     *cache.Store[SearchResult]
	pageFlight   flight.Group[PageResult]
	searchFlight flight.Group[SearchResult]

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator over the given tiers in priority order.
func New(tiers []source.Adapter, limiter *ratelimit.Limiter, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		tiers:    tiers,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
		pages:    cache.New[PageResult](cfg.PageTTL),
		searches: cache.New[SearchResult](cfg.SearchTTL),
		sleep:    sleepCtx,
	}
}

// Remaining reports how many live fetches the caller has left.
func (o *Orchestrator) Remaining(callerKey string) int {
	return o.limiter.Remaining(callerKey)
}

func pageKey(ref identity.RepoRef) string {
	return strings.ToLower(ref.String())
}

// FetchPage returns the documentation page for ref. Cache hits cost
// nothing; a live fetch consumes one unit of callerKey's budget and is
// shared with concurrent callers asking for the same page. The fetch
// itself outlives ctx so an abandoned call still warms the cache.
func (o *Orchestrator) FetchPage(ctx context.Context, ref identity.RepoRef, callerKey string) (PageResult, error) {
	key := pageKey(ref)
	if cached, ok := o.pages.Get(key); ok {
		return cached, nil
	}

	if !o.limiter.Allow(callerKey) {
		return PageResult{}, &RateLimitError{
			RetryAfter: o.limiter.RetryAfter(callerKey),
			MaxCalls:   o.limiter.MaxCalls(),
			Window:     o.limiter.Window(),
		}
	}

	return await(ctx, func(fetchCtx context.Context) (PageResult, error) {
		res, _, err := o.pageFlight.Do(key, func() (PageResult, error) {
			res, err := o.fetchPageThroughTiers(fetchCtx, ref)
			if err == nil {
				o.pages.Put(key, res)
			}
			return res, err
		})
		return res, err
	}, o.cfg.HardTimeout)
}

// Search returns an upstream answer about ref. Caching and rate
// accounting mirror FetchPage.
func (o *Orchestrator) Search(ctx context.Context, ref identity.RepoRef, query string, callerKey string) (SearchResult, error) {
	key := pageKey(ref) + "::search::" + identity.ContentHash(query)
	if cached, ok := o.searches.Get(key); ok {
		return cached, nil
	}

	if !o.limiter.Allow(callerKey) {
		return SearchResult{}, &RateLimitError{
			RetryAfter: o.limiter.RetryAfter(callerKey),
			MaxCalls:   o.limiter.MaxCalls(),
			Window:     o.limiter.Window(),
		}
	}

	return await(ctx, func(fetchCtx context.Context) (SearchResult, error) {
		res, _, err := o.searchFlight.Do(key, func() (SearchResult, error) {
			res, err := o.searchThroughTiers(fetchCtx, ref, query)
			if err == nil {
				o.searches.Put(key, res)
			}
			return res, err
		})
		return res, err
	}, o.cfg.HardTimeout)
}

// tierFailed classifies one tier's final failure so the cascade can
// decide between NotIndexed and an all-tiers-unreachable result. A
// non-nil return is fatal and aborts the cascade.
func (o *Orchestrator) tierFailed(tierName string, err error, lastTransport *error, anyNotAvailable *bool) error {
	var te *source.TransportError
	switch {
	case errors.As(err, &te):
		// Retries are spent; the tier is unreachable, which counts
		// the same as having no content and the cascade moves on.
		o.logger.Warn("tier unreachable, continuing cascade", "tier", tierName, "error", err)
		*lastTransport = err
	case errors.Is(err, source.ErrNotAvailable):
		*anyNotAvailable = true
	default:
		return err
	}
	return nil
}

func (o *Orchestrator) fetchPageThroughTiers(ctx context.Context, ref identity.RepoRef) (PageResult, error) {
	var missing []string
	var lastTransport error
	var anyNotAvailable bool
	for _, tier := range o.tiers {
		page, err := withRetry(ctx, o, tier.Name(), func() (*wiki.Page, error) {
			return tier.FetchPage(ctx, ref)
		})
		if err == nil {
			return PageResult{Page: page, Source: tier.Name(), Missing: missing}, nil
		}
		if fatal := o.tierFailed(tier.Name(), err, &lastTransport, &anyNotAvailable); fatal != nil {
			return PageResult{}, fatal
		}
		missing = append(missing, tier.Name())
		if !o.cfg.FallbackEnabled {
			break
		}
	}
	if lastTransport != nil && !anyNotAvailable {
		return PageResult{}, lastTransport
	}
	return PageResult{}, &NotIndexedError{Ref: ref, Tried: missing}
}

func (o *Orchestrator) searchThroughTiers(ctx context.Context, ref identity.RepoRef, query string) (SearchResult, error) {
	var missing []string
	var lastTransport error
	var anyNotAvailable bool
	for _, tier := range o.tiers {
		answer, err := withRetry(ctx, o, tier.Name(), func() (string, error) {
			return tier.Search(ctx, ref, query)
		})
		if err == nil {
			return SearchResult{Answer: answer, Source: tier.Name(), Missing: missing}, nil
		}
		if fatal := o.tierFailed(tier.Name(), err, &lastTransport, &anyNotAvailable); fatal != nil {
			return SearchResult{}, fatal
		}
		missing = append(missing, tier.Name())
		if !o.cfg.FallbackEnabled {
			break
		}
	}
	if lastTransport != nil && !anyNotAvailable {
		return SearchResult{}, lastTransport
	}
	return SearchResult{}, &NotIndexedError{Ref: ref, Tried: missing}
}

// withRetry runs fn, retrying transport failures only. A not-available
// answer is final for the tier and cascades immediately.
func withRetry[V any](ctx context.Context, o *Orchestrator, tierName string, fn func() (V, error)) (V, error) {
	var zero V
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			o.logger.Debug("retrying tier", "tier", tierName, "attempt", attempt)
			if err := o.sleep(ctx, o.cfg.RetryDelay); err != nil {
				return zero, err
			}
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		var te *source.TransportError
		if !errors.As(err, &te) {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}

// await runs fn on a context detached from ctx's cancellation but
// bounded by hardTimeout, and returns early if ctx ends first. The
// detached work keeps running to completion either way.
func await[V any](ctx context.Context, fn func(context.Context) (V, error), hardTimeout time.Duration) (V, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hardTimeout)

	type outcome struct {
		v   V
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer cancel()
		v, err := fn(fetchCtx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		return out.v, out.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
