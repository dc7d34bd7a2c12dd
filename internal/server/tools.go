package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/manager"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/supplementary"
)

type IndexFileArgs struct {
	Path string `json:"path" jsonschema:"file to re-index, relative to the primary root or absolute"`
}

type BuildSupplementaryArgs struct {
	Name      string   `json:"name" jsonschema:"unique project name"`
	Root      string   `json:"root" jsonschema:"absolute root directory of the project"`
	Enabled   *bool    `json:"enabled,omitempty" jsonschema:"set false to register the project without loading it"`
	Priority  int      `json:"priority,omitempty" jsonschema:"higher priority wins fully qualified name collisions"`
	Languages []string `json:"languages,omitempty" jsonschema:"allowed languages; empty allows all"`
}

type NameArgs struct {
	Name string `json:"name" jsonschema:"symbol name or fully qualified name"`
}

type RelatedFilesArgs struct {
	Files    []string `json:"files" jsonschema:"seed files; use project:path for auxiliary files"`
	MaxDepth *int     `json:"max_depth,omitempty" jsonschema:"hops to follow, 0 to 10"`
}

type SkeletonsArgs struct {
	Files       []string `json:"files" jsonschema:"files to condense; use project:path for auxiliary files"`
	TokenBudget int      `json:"token_budget,omitempty" jsonschema:"total token budget; 0 or less is unlimited"`
}

type RelatedFilesSkeletonArgs struct {
	Files     []string `json:"files" jsonschema:"seed files; use project:path for auxiliary files"`
	MaxTokens int      `json:"max_tokens,omitempty" jsonschema:"total token budget, 100 to 20000"`
	MaxDepth  *int     `json:"max_depth,omitempty" jsonschema:"hops to follow, 0 to 10"`
}

type GraphStatusArgs struct {
	Diagnostics bool `json:"diagnostics,omitempty" jsonschema:"include outstanding diagnostics"`
}

type indexFileResult struct {
	Delta  graph.Delta    `json:"delta"`
	Issues []parser.Issue `json:"issues"`
}

type buildResult struct {
	Stats  supplementary.BuildStats `json:"stats"`
	Issues []parser.Issue           `json:"issues"`
}

type statusResult struct {
	manager.Stats
	Diagnostics []parser.Issue `json:"diagnostics,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "index_file",
		Description: "Re-extracts one primary file and replaces its symbols and references",
	}, s.indexFile)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "build_supplementary",
		Description: "Builds or rebuilds a read-only auxiliary project catalog",
	}, s.buildSupplementary)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_definitions",
		Description: "Finds definitions of a name in the primary project and every auxiliary project",
	}, s.findDefinitions)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_references",
		Description: "Lists internal references and cross-project relationships for a name",
	}, s.findReferences)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "related_files",
		Description: "Walks the graph from seed files and returns related primary and auxiliary files",
	}, s.relatedFiles)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "skeletons",
		Description: "Renders condensed signature-only views of files within a token budget",
	}, s.skeletons)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "related_files_skeleton",
		Description: "Finds related files and renders their skeletons in one call",
	}, s.relatedFilesSkeleton)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "graph_status",
		Description: "Reports indexing status and graph statistics",
	}, s.graphStatus)
}

func (s *Server) indexFile(ctx context.Context, _ *mcp.CallToolRequest, args IndexFileArgs) (*mcp.CallToolResult, any, error) {
	if args.Path == "" {
		return errorResult("path is required"), nil, nil
	}
	delta, issues, err := s.backend.IndexFile(ctx, args.Path)
	if err != nil {
		return s.failed("index_file", err), nil, nil
	}
	return jsonResult(indexFileResult{Delta: delta, Issues: nonNil(issues)}), nil, nil
}

func (s *Server) buildSupplementary(ctx context.Context, _ *mcp.CallToolRequest, args BuildSupplementaryArgs) (*mcp.CallToolResult, any, error) {
	if args.Name == "" || args.Root == "" {
		return errorResult("name and root are required"), nil, nil
	}
	cfg := supplementary.ProjectConfig{
		Name:      args.Name,
		Root:      args.Root,
		Enabled:   args.Enabled == nil || *args.Enabled,
		Priority:  args.Priority,
		Languages: args.Languages,
	}
	stats, issues, err := s.backend.BuildSupplementary(ctx, cfg)
	if err != nil {
		return s.failed("build_supplementary", err), nil, nil
	}
	return jsonResult(buildResult{Stats: stats, Issues: nonNil(issues)}), nil, nil
}

func (s *Server) findDefinitions(_ context.Context, _ *mcp.CallToolRequest, args NameArgs) (*mcp.CallToolResult, any, error) {
	if args.Name == "" {
		return errorResult("name is required"), nil, nil
	}
	return jsonResult(s.backend.FindDefinitions(args.Name)), nil, nil
}

func (s *Server) findReferences(ctx context.Context, _ *mcp.CallToolRequest, args NameArgs) (*mcp.CallToolResult, any, error) {
	if args.Name == "" {
		return errorResult("name is required"), nil, nil
	}
	return jsonResult(s.backend.FindReferences(ctx, args.Name)), nil, nil
}

func (s *Server) relatedFiles(ctx context.Context, _ *mcp.CallToolRequest, args RelatedFilesArgs) (*mcp.CallToolResult, any, error) {
	if len(args.Files) == 0 {
		return errorResult("files is required"), nil, nil
	}
	result, err := s.backend.RelatedFiles(ctx, args.Files, s.depth(args.MaxDepth))
	if err != nil {
		return s.failed("related_files", err), nil, nil
	}
	return jsonResult(result), nil, nil
}

func (s *Server) skeletons(ctx context.Context, _ *mcp.CallToolRequest, args SkeletonsArgs) (*mcp.CallToolResult, any, error) {
	if len(args.Files) == 0 {
		return errorResult("files is required"), nil, nil
	}
	out, err := s.backend.Skeletons(ctx, args.Files, args.TokenBudget)
	if err != nil {
		return s.failed("skeletons", err), nil, nil
	}
	return jsonResult(out), nil, nil
}

func (s *Server) relatedFilesSkeleton(ctx context.Context, _ *mcp.CallToolRequest, args RelatedFilesSkeletonArgs) (*mcp.CallToolResult, any, error) {
	if len(args.Files) == 0 {
		return errorResult("files is required"), nil, nil
	}
	tokens := args.MaxTokens
	if tokens == 0 {
		tokens = s.maxTokens
	}
	out, err := s.backend.RelatedFilesSkeleton(ctx, args.Files, tokens, s.depth(args.MaxDepth))
	if err != nil {
		return s.failed("related_files_skeleton", err), nil, nil
	}
	return jsonResult(out), nil, nil
}

func (s *Server) graphStatus(_ context.Context, _ *mcp.CallToolRequest, args GraphStatusArgs) (*mcp.CallToolResult, any, error) {
	result := statusResult{Stats: s.backend.Stats()}
	if args.Diagnostics {
		result.Diagnostics = nonNil(s.backend.Diagnostics())
	}
	return jsonResult(result), nil, nil
}

func (s *Server) depth(requested *int) int {
	if requested == nil {
		return s.maxDepth
	}
	return manager.ClampDepth(*requested)
}

func (s *Server) failed(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool call failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return errorResult(fmt.Sprintf("%s failed: %v", tool, err))
}

func nonNil(issues []parser.Issue) []parser.Issue {
	if issues == nil {
		return []parser.Issue{}
	}
	return issues
}
