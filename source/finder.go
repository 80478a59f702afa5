package source

import (
	"context"
	"log/slog"
)

// RepoSearcher finds repositories matching a keyword.
type RepoSearcher interface {
	SearchRepos(ctx context.Context, keyword string) ([]Repo, error)
}

// RepoFinder chains repo searchers in priority order, returning the
// first tier's non-empty results. The GitHub tier tolerates fuzzy
// keywords the wiki scrape misses, so it belongs last.
type RepoFinder struct {
	tiers  []RepoSearcher
	logger *slog.Logger
}

var _ RepoSearcher = (*RepoFinder)(nil)

// NewRepoFinder creates a finder over the given tiers. Nil tiers are
// skipped.
func NewRepoFinder(logger *slog.Logger, tiers ...RepoSearcher) *RepoFinder {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]RepoSearcher, 0, len(tiers))
	for _, t := range tiers {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &RepoFinder{tiers: kept, logger: logger}
}

// SearchRepos tries each tier in order and returns the first non-empty
// result set. A tier failure falls through to the next tier; the last
// error surfaces only when every tier came up empty.
func (f *RepoFinder) SearchRepos(ctx context.Context, keyword string) ([]Repo, error) {
	var lastErr error
	for _, tier := range f.tiers {
		repos, err := tier.SearchRepos(ctx, keyword)
		if err != nil {
			f.logger.Debug("repo search tier failed", "keyword", keyword, "error", err)
			lastErr = err
			continue
		}
		if len(repos) > 0 {
			return repos, nil
		}
	}
	return nil, lastErr
}
