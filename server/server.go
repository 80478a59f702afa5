// MCP server surface.
//
// Information Hiding:
// - Tool registration and argument schemas defined here only
// - Session identity derivation hidden behind callerKey
// - Transport choice (stdio, streamable HTTP) left to the caller
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cloudmeru/tinkywiki-mcp/elicit"
	"github.com/cloudmeru/tinkywiki-mcp/tools"
)

// Server exposes the documentation operations over MCP.
type Server struct {
	mcpServer *mcp.Server
	svc       *tools.Service
	logger    *slog.Logger

	// sessionKeys maps live sessions to stable rate-limit identities.
	sessionKeys sync.Map // *mcp.ServerSession -> string
}

// New creates the MCP server and registers the five tools.
func New(svc *tools.Service, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: "tinkywiki-mcp", Version: version}, nil),
		svc:       svc,
		logger:    logger,
	}
	s.register()
	return s
}

type repoArgs struct {
	Repo string `json:"repo" jsonschema:"repository URL, owner/name, or a bare product keyword"`
}

type readContentsArgs struct {
	Repo         string `json:"repo" jsonschema:"repository URL, owner/name, or a bare product keyword"`
	SectionTitle string `json:"section_title,omitempty" jsonschema:"read a single section by (partial) title"`
	Offset       int    `json:"offset,omitempty" jsonschema:"first section index when paginating"`
	Limit        int    `json:"limit,omitempty" jsonschema:"number of sections per page"`
}

type searchArgs struct {
	Repo  string `json:"repo" jsonschema:"repository URL, owner/name, or a bare product keyword"`
	Query string `json:"query" jsonschema:"free-text question about the repository"`
}

type indexArgs struct {
	Repo    string `json:"repo" jsonschema:"repository URL, owner/name, or a bare product keyword"`
	Confirm bool   `json:"confirm,omitempty" jsonschema:"set true to consent to submitting the repository for indexing"`
}

func (s *Server) register() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        tools.OpListTopics,
		Description: "List the documentation topics of a repository with short previews. The cheapest way to see what documentation exists.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args repoArgs) (*mcp.CallToolResult, any, error) {
		resp := s.svc.ListTopics(s.withSession(ctx, req), s.callerKey(req), args.Repo)
		return textResult(resp), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        tools.OpReadStructure,
		Description: "Read the table of contents of a repository's documentation as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args repoArgs) (*mcp.CallToolResult, any, error) {
		resp := s.svc.ReadStructure(s.withSession(ctx, req), s.callerKey(req), args.Repo)
		return textResult(resp), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        tools.OpReadContents,
		Description: "Read documentation content: a single section by title, or a paginated window of sections.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args readContentsArgs) (*mcp.CallToolResult, any, error) {
		resp := s.svc.ReadContents(s.withSession(ctx, req), s.callerKey(req), args.Repo, args.SectionTitle, args.Offset, args.Limit)
		return textResult(resp), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        tools.OpSearchWiki,
		Description: "Ask a free-text question about a repository's documentation.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchArgs) (*mcp.CallToolResult, any, error) {
		resp := s.svc.SearchWiki(s.withSession(ctx, req), s.callerKey(req), args.Repo, args.Query)
		return textResult(resp), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        tools.OpRequestIndexing,
		Description: "Request that a not-yet-indexed repository be indexed. Requires consent via confirm=true or an interactive approval.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args indexArgs) (*mcp.CallToolResult, any, error) {
		resp := s.svc.RequestIndexing(s.withSession(ctx, req), s.callerKey(req), args.Repo, args.Confirm)
		return textResult(resp), nil, nil
	})
}

func textResult(resp tools.Response) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: resp.JSON()}},
	}
}

// withSession installs the session-backed interactive channel so the
// resolver and indexing workflow can ask the user questions.
func (s *Server) withSession(ctx context.Context, req *mcp.CallToolRequest) context.Context {
	if req == nil || req.Session == nil {
		return ctx
	}
	return elicit.NewContext(ctx, &sessionElicitor{session: req.Session, logger: s.logger})
}

// callerKey returns a stable identity for rate accounting, one per
// connected session.
func (s *Server) callerKey(req *mcp.CallToolRequest) string {
	if req == nil || req.Session == nil {
		return "anonymous"
	}
	if key, ok := s.sessionKeys.Load(req.Session); ok {
		return key.(string)
	}
	key, _ := s.sessionKeys.LoadOrStore(req.Session, uuid.NewString())
	return key.(string)
}

// Run serves MCP over stdio until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns a streamable HTTP handler for serving MCP over HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// Connect attaches the server to a transport directly. Used by tests
// and embedders.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}
