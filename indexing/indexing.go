// Indexing request workflow.
//
// Information Hiding:
// - Consent gating (interactive confirm vs explicit flag) hidden
// - Request state tracking and identifiers hidden behind Workflow
package indexing

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudmeru/tinkywiki-mcp/elicit"
	"github.com/cloudmeru/tinkywiki-mcp/identity"
)

// State of an indexing request.
type State string

const (
	// StatePendingConfirmation awaits explicit consent. Submission
	// never happens without it.
	StatePendingConfirmation State = "pending_confirmation"
	StateDeclined            State = "declined"
	StateSubmitted           State = "submitted"
	StateFailed              State = "failed"
)

// Request is one tracked indexing request.
type Request struct {
	ID        string
	Ref       identity.RepoRef
	State     State
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Submitter submits a repository for indexing upstream.
type Submitter interface {
	RequestIndexing(ctx context.Context, ref identity.RepoRef) error
}

// Workflow tracks indexing requests per repository and gates
// submission on user consent.
type Workflow struct {
	submitter      Submitter
	confirmTimeout time.Duration
	logger         *slog.Logger

	mu       sync.RWMutex
	requests map[string]Request // keyed by lowercased owner/name

	now func() time.Time
}

// NewWorkflow creates a workflow that submits through submitter.
// Interactive confirmation waits at most confirmTimeout; an unanswered
// prompt parks the request in pending_confirmation.
func NewWorkflow(submitter Submitter, confirmTimeout time.Duration, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		submitter:      submitter,
		confirmTimeout: confirmTimeout,
		logger:         logger,
		requests:       make(map[string]Request),
		now:            time.Now,
	}
}

func requestKey(ref identity.RepoRef) string {
	return strings.ToLower(ref.String())
}

// Get returns the tracked request for ref, if any.
func (w *Workflow) Get(ref identity.RepoRef) (Request, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	req, ok := w.requests[requestKey(ref)]
	return req, ok
}

// Request asks to have ref indexed. Submission needs consent: either
// confirmed is true, or the caller's interactive channel approves.
// Without either, the request parks in pending_confirmation and the
// caller is expected to come back with confirmed set.
//
// A repository already submitted stays submitted; a declined or failed
// request may be reopened by asking again.
func (w *Workflow) Request(ctx context.Context, ref identity.RepoRef, confirmed bool) (Request, error) {
	key := requestKey(ref)

	w.mu.Lock()
	if existing, ok := w.requests[key]; ok && existing.State == StateSubmitted {
		w.mu.Unlock()
		return existing, nil
	}
	req, ok := w.requests[key]
	if !ok {
		now := w.now()
		req = Request{
			ID:        uuid.NewString(),
			Ref:       ref,
			State:     StatePendingConfirmation,
			CreatedAt: now,
			UpdatedAt: now,
		}
		w.requests[key] = req
	}
	w.mu.Unlock()

	if !confirmed {
		el := elicit.FromContext(ctx)
		if el == nil {
			return w.transition(key, StatePendingConfirmation, ""), nil
		}
		prompt := "Submit " + ref.String() + " for indexing? The crawl may take several minutes."
		askCtx, cancel := context.WithTimeout(ctx, w.confirmTimeout)
		outcome := el.Confirm(askCtx, prompt)
		cancel()
		switch outcome {
		case elicit.Accepted:
			// fall through to submission
		case elicit.Declined:
			return w.transition(key, StateDeclined, ""), nil
		default:
			return w.transition(key, StatePendingConfirmation, ""), nil
		}
	}

	if err := w.submitter.RequestIndexing(ctx, ref); err != nil {
		w.logger.Warn("indexing submission failed", "repo", ref.String(), "error", err)
		return w.transition(key, StateFailed, err.Error()), nil
	}
	w.logger.Info("indexing requested", "repo", ref.String())
	return w.transition(key, StateSubmitted, ""), nil
}

func (w *Workflow) transition(key string, state State, errMsg string) Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	req := w.requests[key]
	req.State = state
	req.Error = errMsg
	req.UpdatedAt = w.now()
	w.requests[key] = req
	return req
}
