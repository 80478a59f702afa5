// Repository reference resolution.
//
// Information Hiding:
// - Selection policy (canonical, single-result, interactive, heuristic) hidden
// - Candidate-list caching hidden from callers
// - Interactive channel discovery abstracted via the elicit package
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cloudmeru/tinkywiki-mcp/cache"
	"github.com/cloudmeru/tinkywiki-mcp/elicit"
	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/source"
)

// Resolution methods, stamped into results for provenance.
const (
	MethodDirect        = "direct"
	MethodCanonicalAuto = "canonical-auto"
	MethodSingleAuto    = "single-result-auto"
	MethodHeuristic     = "heuristic"
	MethodUserSelected  = "user-selected"
)

// Result is a resolved repository reference plus how it was chosen.
type Result struct {
	Ref        identity.RepoRef
	Method     string
	Keyword    string        // set when resolved from a bare keyword
	Candidates []source.Repo // candidates considered, best first
}

// InvalidRefError reports input that is neither a repository reference
// nor a usable keyword.
type InvalidRefError struct {
	Input string
}

func (e *InvalidRefError) Error() string {
	return fmt.Sprintf("invalid repository reference %q: expected a URL, owner/name, or keyword", e.Input)
}

// NotFoundError reports a keyword with no matching repositories.
type NotFoundError struct {
	Keyword string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no repositories found for keyword %q", e.Keyword)
}

// AmbiguousError reports a keyword that could not be resolved to a
// single repository without user input.
type AmbiguousError struct {
	Keyword    string
	Candidates []source.Repo
	Declined   bool // the user saw the choices and declined
}

func (e *AmbiguousError) Error() string {
	if e.Declined {
		return fmt.Sprintf("resolution of %q declined; call again with an explicit owner/name", e.Keyword)
	}
	return fmt.Sprintf("keyword %q is ambiguous between %d repositories; call again with an explicit owner/name", e.Keyword, len(e.Candidates))
}

// Resolver turns raw tool input into a concrete repository reference.
type Resolver struct {
	finder        source.RepoSearcher
	candidates    *cache.Store[[]source.Repo]
	elicitTimeout time.Duration
	maxChoices    int
	logger        *slog.Logger
}

// New creates a resolver. Candidate lists from keyword search are
// cached for ttl; the selection policy itself runs on every call, so a
// cached list never pins one caller's interactive choice on another.
func New(finder source.RepoSearcher, ttl, elicitTimeout time.Duration, maxChoices int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		finder:        finder,
		candidates:    cache.New[[]source.Repo](ttl),
		elicitTimeout: elicitTimeout,
		maxChoices:    maxChoices,
		logger:        logger,
	}
}

// Resolve classifies raw input and resolves it to a repository.
// URLs and owner/name forms resolve directly; bare keywords go through
// search and the selection policy.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	switch identity.Classify(raw) {
	case identity.KindURL, identity.KindOwnerName:
		ref, ok := identity.Parse(raw)
		if !ok {
			return Result{}, &InvalidRefError{Input: raw}
		}
		return Result{Ref: ref, Method: MethodDirect}, nil
	case identity.KindKeyword:
		return r.resolveKeyword(ctx, raw)
	default:
		return Result{}, &InvalidRefError{Input: raw}
	}
}

func (r *Resolver) resolveKeyword(ctx context.Context, keyword string) (Result, error) {
	repos, err := r.searchCandidates(ctx, keyword)
	if err != nil {
		return Result{}, err
	}

	// Canonical repositories (owner, name and keyword all agree)
	// resolve without asking.
	for _, repo := range repos {
		if strings.EqualFold(repo.Ref.Owner, keyword) && strings.EqualFold(repo.Ref.Name, keyword) {
			return Result{Ref: repo.Ref, Method: MethodCanonicalAuto, Keyword: keyword, Candidates: repos}, nil
		}
	}

	if len(repos) == 1 {
		return Result{Ref: repos[0].Ref, Method: MethodSingleAuto, Keyword: keyword, Candidates: repos}, nil
	}

	if el := elicit.FromContext(ctx); el != nil {
		res, decided, err := r.askUser(ctx, el, keyword, repos)
		if decided {
			return res, err
		}
		// Channel unavailable or timed out; fall through to the
		// heuristic rather than failing the call.
	}

	if pick, ok := heuristicPick(keyword, repos); ok {
		return Result{Ref: pick.Ref, Method: MethodHeuristic, Keyword: keyword, Candidates: repos}, nil
	}
	return Result{}, &AmbiguousError{Keyword: keyword, Candidates: repos}
}

// searchCandidates returns the star-sorted candidate list for keyword,
// served from the cache within its TTL. A hit skips the search tiers
// entirely; only the raw list is cached, never a selection.
func (r *Resolver) searchCandidates(ctx context.Context, keyword string) ([]source.Repo, error) {
	cacheKey := strings.ToLower(keyword)
	if cached, ok := r.candidates.Get(cacheKey); ok {
		return cached, nil
	}

	repos, err := r.finder.SearchRepos(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("repository search for %q failed: %w", keyword, err)
	}
	if len(repos) == 0 {
		return nil, &NotFoundError{Keyword: keyword}
	}

	sort.SliceStable(repos, func(i, j int) bool { return repos[i].Stars > repos[j].Stars })
	r.candidates.Put(cacheKey, repos)
	return repos, nil
}

// askUser presents the top candidates over the interactive channel.
// decided is false when the channel could not produce an answer and the
// caller should fall back.
func (r *Resolver) askUser(ctx context.Context, el elicit.Elicitor, keyword string, repos []source.Repo) (res Result, decided bool, err error) {
	shown := repos
	if len(shown) > r.maxChoices {
		shown = shown[:r.maxChoices]
	}
	options := make([]elicit.Option, 0, len(shown))
	for _, repo := range shown {
		label := fmt.Sprintf("%s★", source.FormatStars(repo.Stars))
		if repo.Description != "" {
			label += " - " + repo.Description
		}
		options = append(options, elicit.Option{Value: repo.Ref.String(), Label: label})
	}

	askCtx, cancel := context.WithTimeout(ctx, r.elicitTimeout)
	defer cancel()

	prompt := fmt.Sprintf("Multiple repositories match %q. Which one did you mean?", keyword)
	value, outcome := el.Select(askCtx, prompt, options)
	switch outcome {
	case elicit.Accepted:
		for _, repo := range repos {
			if repo.Ref.String() == value {
				return Result{Ref: repo.Ref, Method: MethodUserSelected, Keyword: keyword, Candidates: repos}, true, nil
			}
		}
		r.logger.Warn("elicited value matches no candidate", "keyword", keyword, "value", value)
		return Result{}, true, &AmbiguousError{Keyword: keyword, Candidates: repos}
	case elicit.Declined:
		return Result{}, true, &AmbiguousError{Keyword: keyword, Candidates: repos, Declined: true}
	default:
		return Result{}, false, nil
	}
}

// heuristicPick chooses without asking when the answer is unambiguous:
// a strictly most popular candidate, or a unique exact name match.
func heuristicPick(keyword string, repos []source.Repo) (source.Repo, bool) {
	if len(repos) == 0 {
		return source.Repo{}, false
	}
	if len(repos) == 1 || repos[0].Stars > repos[1].Stars {
		return repos[0], true
	}

	var exact []source.Repo
	for _, repo := range repos {
		if strings.EqualFold(repo.Ref.Name, keyword) {
			exact = append(exact, repo)
		}
	}
	if len(exact) == 1 {
		return exact[0], true
	}
	return source.Repo{}, false
}
