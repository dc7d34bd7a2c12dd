// Package server exposes the graph manager as MCP tools.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/manager"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/skeleton"
	"github.com/skelly-dev/codegraph/internal/supplementary"
	"github.com/skelly-dev/codegraph/internal/traverse"
)

const serverName = "codegraph"

// Backend is the part of *manager.Manager the tools call.
type Backend interface {
	IndexFile(ctx context.Context, path string) (graph.Delta, []parser.Issue, error)
	BuildSupplementary(ctx context.Context, cfg supplementary.ProjectConfig) (supplementary.BuildStats, []parser.Issue, error)
	FindDefinitions(name string) manager.Definitions
	FindReferences(ctx context.Context, name string) manager.References
	RelatedFiles(ctx context.Context, seeds []string, maxDepth int) (traverse.Result, error)
	Skeletons(ctx context.Context, files []string, budget int) ([]skeleton.FileSkeleton, error)
	RelatedFilesSkeleton(ctx context.Context, seeds []string, maxTokens, maxDepth int) (manager.RelatedSkeletons, error)
	Stats() manager.Stats
	Diagnostics() []parser.Issue
}

// Options configures a Server. Zero values fall back to the manager
// defaults.
type Options struct {
	Version   string
	MaxTokens int
	MaxDepth  int
	Logger    *slog.Logger
}

type Server struct {
	backend   Backend
	mcpServer *mcp.Server
	logger    *slog.Logger
	maxTokens int
	maxDepth  int
}

func New(backend Backend, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = manager.DefaultMaxTokens
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = manager.DefaultMaxDepth
	}
	s := &Server{
		backend:   backend,
		logger:    logger,
		maxTokens: manager.ClampTokens(opts.MaxTokens),
		maxDepth:  manager.ClampDepth(opts.MaxDepth),
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: opts.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server, for custom transports.
func (s *Server) MCP() *mcp.Server { return s.mcpServer }

// Run serves over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("failed to serve MCP: %w", err)
	}
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err))
	}
	return textResult(string(data))
}
