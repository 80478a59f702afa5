// Documentation tool operations.
//
// Information Hiding:
// - Operation flow (resolve, fetch, render, shape) hidden behind Service
// - Error-to-status mapping centralized in one place
// - Topic list caching invisible to callers
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudmeru/tinkywiki-mcp/cache"
	"github.com/cloudmeru/tinkywiki-mcp/config"
	"github.com/cloudmeru/tinkywiki-mcp/fallback"
	"github.com/cloudmeru/tinkywiki-mcp/identity"
	"github.com/cloudmeru/tinkywiki-mcp/indexing"
	"github.com/cloudmeru/tinkywiki-mcp/resolver"
	"github.com/cloudmeru/tinkywiki-mcp/source"
	"github.com/cloudmeru/tinkywiki-mcp/wiki"
)

// Operation names, used for idempotency keys and logging.
const (
	OpListTopics      = "list_topics"
	OpReadStructure   = "read_structure"
	OpReadContents    = "read_contents"
	OpSearchWiki      = "search_wiki"
	OpRequestIndexing = "request_indexing"
)

// topicEntry is a cached topic list rendering. Kept longer than the
// page cache because topic lists change rarely and are the cheapest way
// in for a new caller.
type topicEntry struct {
	Body    string
	Source  string
	Missing []string
}

// Service implements the five documentation operations on top of
// resolution, the tier cascade, and the indexing workflow.
type Service struct {
	resolver *resolver.Resolver
	orch     *fallback.Orchestrator
	indexer  *indexing.Workflow
	response config.ResponseConfig
	topics   *cache.Store[topicEntry]
	logger   *slog.Logger
}

// NewService wires the operations together.
func NewService(res *resolver.Resolver, orch *fallback.Orchestrator, idx *indexing.Workflow, cfg config.Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: res,
		orch:     orch,
		indexer:  idx,
		response: cfg.Response,
		topics:   cache.New[topicEntry](cfg.Cache.TopicTTL),
		logger:   logger,
	}
}

// ListTopics returns the page's section titles with short previews.
func (s *Service) ListTopics(ctx context.Context, caller, repo string) Response {
	start := time.Now()
	res, err := s.resolver.Resolve(ctx, repo)
	if err != nil {
		return s.failure(err, start, caller)
	}
	note := resolver.Note(res)

	cacheKey := strings.ToLower(res.Ref.String())
	if entry, ok := s.topics.Get(cacheKey); ok {
		return s.success(OpListTopics, res.Ref, "", entry.Body, entry.Source, entry.Missing, note, start, caller)
	}

	page, err := s.orch.FetchPage(ctx, res.Ref, caller)
	if err != nil {
		return s.failure(err, start, caller)
	}
	body := wiki.TopicList(page.Page, s.response.PreviewChars)
	s.topics.Put(cacheKey, topicEntry{Body: body, Source: page.Source, Missing: page.Missing})
	return s.success(OpListTopics, res.Ref, "", body, page.Source, page.Missing, note, start, caller)
}

// ReadStructure returns the page's table of contents as JSON.
func (s *Service) ReadStructure(ctx context.Context, caller, repo string) Response {
	start := time.Now()
	res, err := s.resolver.Resolve(ctx, repo)
	if err != nil {
		return s.failure(err, start, caller)
	}

	page, err := s.orch.FetchPage(ctx, res.Ref, caller)
	if err != nil {
		return s.failure(err, start, caller)
	}
	body := wiki.Structure(page.Page)
	return s.success(OpReadStructure, res.Ref, "", body, page.Source, page.Missing, resolver.Note(res), start, caller)
}

// ReadContents returns either one section by title or a paginated
// window of sections.
func (s *Service) ReadContents(ctx context.Context, caller, repo, sectionTitle string, offset, limit int) Response {
	start := time.Now()
	res, err := s.resolver.Resolve(ctx, repo)
	if err != nil {
		return s.failure(err, start, caller)
	}

	page, err := s.orch.FetchPage(ctx, res.Ref, caller)
	if err != nil {
		return s.failure(err, start, caller)
	}

	var body string
	if sectionTitle != "" {
		section, ok := page.Page.SectionByTitle(sectionTitle)
		if !ok {
			return Response{
				Status: StatusError,
				Source: page.Source,
				Message: fmt.Sprintf("no section matches %q; available sections: %s",
					sectionTitle, strings.Join(page.Page.SectionTitles(20), ", ")),
				Meta: s.meta(start, caller, 0, false, page.Source),
			}
		}
		body = wiki.SectionContent(section)
	} else {
		if limit <= 0 {
			limit = s.response.DefaultLimit
		}
		if limit > s.response.MaxLimit {
			limit = s.response.MaxLimit
		}
		if offset < 0 {
			offset = 0
		}
		body = wiki.Paginated(page.Page, offset, limit)
	}

	param := fmt.Sprintf("%s|%d|%d", sectionTitle, offset, limit)
	return s.success(OpReadContents, res.Ref, param, body, page.Source, page.Missing, resolver.Note(res), start, caller)
}

// SearchWiki asks the upstreams a free-text question about the repository.
func (s *Service) SearchWiki(ctx context.Context, caller, repo, query string) Response {
	start := time.Now()
	if strings.TrimSpace(query) == "" {
		return Response{
			Status:  StatusInvalidReference,
			Message: "query must not be empty",
			Meta:    s.meta(start, caller, 0, false, ""),
		}
	}
	res, err := s.resolver.Resolve(ctx, repo)
	if err != nil {
		return s.failure(err, start, caller)
	}

	answer, err := s.orch.Search(ctx, res.Ref, query, caller)
	if err != nil {
		return s.failure(err, start, caller)
	}
	return s.success(OpSearchWiki, res.Ref, query, answer.Answer, answer.Source, answer.Missing, resolver.Note(res), start, caller)
}

// RequestIndexing asks to have the repository indexed. Nothing is
// submitted without consent: either the confirm flag or an interactive
// approval.
func (s *Service) RequestIndexing(ctx context.Context, caller, repo string, confirm bool) Response {
	start := time.Now()
	res, err := s.resolver.Resolve(ctx, repo)
	if err != nil {
		return s.failure(err, start, caller)
	}

	req, err := s.indexer.Request(ctx, res.Ref, confirm)
	if err != nil {
		return s.failure(err, start, caller)
	}

	var status Status
	var message string
	switch req.State {
	case indexing.StateSubmitted:
		status = StatusOK
		message = fmt.Sprintf("%s submitted for indexing (request %s). Indexing may take several minutes; try your query again later.", res.Ref, req.ID)
	case indexing.StateDeclined:
		status = StatusOK
		message = fmt.Sprintf("indexing request %s for %s was declined; nothing was submitted", req.ID, res.Ref)
	case indexing.StateFailed:
		status = StatusError
		message = fmt.Sprintf("indexing submission for %s failed: %s", res.Ref, req.Error)
	default:
		status = StatusOK
		message = fmt.Sprintf("indexing of %s needs confirmation; call %s again with confirm=true to submit (request %s)", res.Ref, OpRequestIndexing, req.ID)
	}

	return Response{
		Status:         status,
		Message:        message,
		ResolutionNote: resolver.Note(res),
		IdempotencyKey: identity.IdempotencyKey(res.Ref, OpRequestIndexing, string(req.State), req.ID),
		Meta:           s.meta(start, caller, 0, false, ""),
	}
}

// success assembles the standard envelope: provenance banner, optional
// resolution note, rendered body, truncation, hashing.
func (s *Service) success(op string, ref identity.RepoRef, param, body, src string, missing []string, note string, start time.Time, caller string) Response {
	blocks := make([]string, 0, 3)
	blocks = append(blocks, fallback.Banner(src, missing))
	if note != "" {
		blocks = append(blocks, note)
	}
	blocks = append(blocks, body)

	content, truncated := wiki.Truncate(strings.Join(blocks, "\n\n"), s.response.MaxChars)
	hash := identity.ContentHash(content)

	return Response{
		Status:         StatusOK,
		Source:         src,
		Content:        content,
		ContentHash:    hash,
		IdempotencyKey: identity.IdempotencyKey(ref, op, param, hash),
		ResolutionNote: note,
		Meta:           s.meta(start, caller, len(content), truncated, src),
	}
}

func (s *Service) meta(start time.Time, caller string, charCount int, truncated bool, src string) Meta {
	return Meta{
		ElapsedMS:      time.Since(start).Milliseconds(),
		CharCount:      charCount,
		Truncated:      truncated,
		CallsRemaining: s.orch.Remaining(caller),
		Source:         src,
	}
}

// failure maps the typed errors of the lower layers onto statuses.
func (s *Service) failure(err error, start time.Time, caller string) Response {
	resp := Response{Status: StatusError, Message: err.Error(), Meta: s.meta(start, caller, 0, false, "")}

	var invalid *resolver.InvalidRefError
	var notFound *resolver.NotFoundError
	var ambiguous *resolver.AmbiguousError
	var notIndexed *fallback.NotIndexedError
	var rateLimited *fallback.RateLimitError
	var transport *source.TransportError

	switch {
	case errors.As(err, &invalid):
		resp.Status = StatusInvalidReference
	case errors.As(err, &notFound):
		// The keyword was well formed; the search simply found
		// nothing, which is a resolution failure, not bad input.
		resp.Status = StatusAmbiguous
		resp.Message = fmt.Sprintf("%s; try an explicit owner/name or a different keyword", err.Error())
	case errors.As(err, &ambiguous):
		resp.Status = StatusAmbiguous
		resp.Message = ambiguousMessage(ambiguous)
	case errors.As(err, &notIndexed):
		resp.Status = StatusNotIndexed
		resp.Message = fmt.Sprintf("%s; use %s to submit it for indexing", err.Error(), OpRequestIndexing)
	case errors.As(err, &rateLimited):
		resp.Status = StatusRateLimited
		resp.Meta.RetryAfterSeconds = int(rateLimited.RetryAfter.Round(time.Second).Seconds())
	case errors.As(err, &transport):
		resp.Status = StatusTransportError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		resp.Message = "the call was cancelled or timed out before a live fetch completed; cached content may be available on retry"
	}

	if resp.Status != StatusOK {
		s.logger.Debug("tool call failed", "status", string(resp.Status), "error", err)
	}
	return resp
}

func ambiguousMessage(e *resolver.AmbiguousError) string {
	parts := make([]string, 0, len(e.Candidates))
	for i, c := range e.Candidates {
		if i == 6 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%s★)", c.Ref, source.FormatStars(c.Stars)))
	}
	return fmt.Sprintf("%s. Candidates: %s", e.Error(), strings.Join(parts, ", "))
}
