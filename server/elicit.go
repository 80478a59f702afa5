package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cloudmeru/tinkywiki-mcp/elicit"
)

// sessionElicitor asks the connected client questions over the MCP
// elicitation protocol. Clients without elicitation support surface as
// an unavailable channel, never as an error.
type sessionElicitor struct {
	session *mcp.ServerSession
	logger  *slog.Logger
}

var _ elicit.Elicitor = (*sessionElicitor)(nil)

func (e *sessionElicitor) Select(ctx context.Context, prompt string, options []elicit.Option) (string, elicit.Outcome) {
	values := make([]any, 0, len(options))
	var lines []string
	for _, opt := range options {
		values = append(values, opt.Value)
		if opt.Label != "" {
			lines = append(lines, fmt.Sprintf("- %s (%s)", opt.Value, opt.Label))
		} else {
			lines = append(lines, "- "+opt.Value)
		}
	}

	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"choice": {
				Type:        "string",
				Enum:        values,
				Description: "the repository to use",
			},
		},
		Required: []string{"choice"},
	}

	res, err := e.session.Elicit(ctx, &mcp.ElicitParams{
		Message:         prompt + "\n" + strings.Join(lines, "\n"),
		RequestedSchema: schema,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", elicit.TimedOut
		}
		e.logger.Debug("elicitation unavailable", "error", err)
		return "", elicit.Unavailable
	}

	switch res.Action {
	case "accept":
		if choice, ok := res.Content["choice"].(string); ok && choice != "" {
			return choice, elicit.Accepted
		}
		return "", elicit.Unavailable
	case "decline":
		return "", elicit.Declined
	default:
		return "", elicit.Unavailable
	}
}

func (e *sessionElicitor) Confirm(ctx context.Context, prompt string) elicit.Outcome {
	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"confirm": {
				Type:        "boolean",
				Description: "true to proceed",
			},
		},
		Required: []string{"confirm"},
	}

	res, err := e.session.Elicit(ctx, &mcp.ElicitParams{
		Message:         prompt,
		RequestedSchema: schema,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return elicit.TimedOut
		}
		e.logger.Debug("elicitation unavailable", "error", err)
		return elicit.Unavailable
	}

	switch res.Action {
	case "accept":
		if ok, _ := res.Content["confirm"].(bool); ok {
			return elicit.Accepted
		}
		return elicit.Declined
	case "decline":
		return elicit.Declined
	default:
		return elicit.Unavailable
	}
}
