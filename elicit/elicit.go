// Package elicit models the interactive confirmation channel as a
// capability interface, so the resolver and indexing workflow stay
// agnostic to how the surrounding environment prompts the user.
//
// The server layer installs a session-backed Elicitor into the request
// context; when none is installed, callers treat the channel as
// unavailable and fall back (heuristic selection, or ask-again guidance).
package elicit

import "context"

// Outcome is the result of an interactive prompt.
type Outcome int

const (
	// Accepted means the user made a choice or confirmed.
	Accepted Outcome = iota
	// Declined means the user explicitly declined.
	Declined
	// Unavailable means no interactive channel exists or the client
	// rejected the prompt.
	Unavailable
	// TimedOut means the bounded wait elapsed without a decision.
	TimedOut
)

// Option is one selectable choice presented to the user.
type Option struct {
	Value string // machine value returned on selection
	Label string // human-readable annotation (e.g. star count)
}

// Elicitor is the interactive channel capability. Implementations must
// honor ctx cancellation; callers bound the wait via context deadlines.
type Elicitor interface {
	// Select presents options and blocks for a choice. On Accepted the
	// returned value is one of the option values.
	Select(ctx context.Context, prompt string, options []Option) (string, Outcome)

	// Confirm presents a yes/no decision and blocks for an answer.
	Confirm(ctx context.Context, prompt string) Outcome
}

type ctxKey struct{}

// NewContext returns a context carrying the elicitor.
func NewContext(ctx context.Context, e Elicitor) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

// FromContext returns the elicitor installed in ctx, or nil when the
// interactive channel is unavailable.
func FromContext(ctx context.Context) Elicitor {
	e, _ := ctx.Value(ctxKey{}).(Elicitor)
	return e
}
