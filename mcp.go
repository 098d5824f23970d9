// CLAUDE:SUMMARY MCP tool surface: process/search/tag/stats tools registered on a go-sdk server.
package recolte

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/recolte/internal/registry"
	"github.com/hazyhaar/recolte/internal/tags"
)

// NewMCPServer builds an MCP server exposing the catalog as tools.
func (svc *Service) NewMCPServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "recolte",
		Version: version,
	}, nil)
	svc.RegisterMCP(srv)
	return srv
}

// RegisterMCP registers all recolte tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "process_url",
		Description: "Fetch a URL, extract its content, and index it in the catalog",
	}, svc.mcpProcessURL)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "process_urls",
		Description: "Process a batch of URLs concurrently in fixed windows",
	}, svc.mcpProcessURLs)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_urls",
		Description: "List registered URLs, optionally filtered by status or content type",
	}, svc.mcpListURLs)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search over indexed content",
	}, svc.mcpSearch)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_tag",
		Description: "Create a tag, optionally under a parent tag",
	}, svc.mcpCreateTag)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_tags",
		Description: "List tags, optionally only roots or children of one parent",
	}, svc.mcpListTags)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "tag_url",
		Description: "Attach tags to a registered URL, creating missing tags",
	}, svc.mcpTagURL)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ingest_history",
		Description: "List past pipeline attempts for a URL, newest first",
	}, svc.mcpIngestHistory)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "stats",
		Description: "Aggregate catalog and pipeline counters",
	}, svc.mcpStats)
}

// --- Inputs ---

type mcpProcessURLInput struct {
	URL   string   `json:"url" jsonschema:"URL to ingest"`
	Tags  []string `json:"tags,omitempty" jsonschema:"Tag names to attach after processing"`
	Force bool     `json:"force,omitempty" jsonschema:"Reprocess even if content is unchanged"`
}

type mcpProcessURLsInput struct {
	URLs   []string `json:"urls" jsonschema:"URLs to ingest"`
	Window int      `json:"window,omitempty" jsonschema:"Concurrent URLs per window (default 5)"`
}

type mcpListURLsInput struct {
	Status      string `json:"status,omitempty" jsonschema:"Filter: pending, processing, completed, failed, skipped"`
	ContentType string `json:"content_type,omitempty" jsonschema:"Filter by detected content type"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Max rows (default 100)"`
}

type mcpSearchInput struct {
	Query string `json:"query" jsonschema:"Search terms"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max hits (default 20)"`
}

type mcpCreateTagInput struct {
	Name        string `json:"name" jsonschema:"Tag name, unique across the catalog"`
	ParentID    string `json:"parent_id,omitempty" jsonschema:"Parent tag id for hierarchy placement"`
	Description string `json:"description,omitempty" jsonschema:"Free-form description"`
	Color       string `json:"color,omitempty" jsonschema:"Display color"`
}

type mcpListTagsInput struct {
	ParentID  string `json:"parent_id,omitempty" jsonschema:"Only children of this tag"`
	RootsOnly bool   `json:"roots_only,omitempty" jsonschema:"Only tags without a parent"`
}

type mcpTagURLInput struct {
	URLID string   `json:"url_id" jsonschema:"Registered URL id"`
	Tags  []string `json:"tags" jsonschema:"Tag names to attach"`
}

type mcpIngestHistoryInput struct {
	URLID string `json:"url_id" jsonschema:"Registered URL id"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max rows (default 50)"`
}

type mcpStatsInput struct{}

// --- Handlers ---

func (svc *Service) mcpProcessURL(ctx context.Context, _ *mcp.CallToolRequest, input mcpProcessURLInput) (*mcp.CallToolResult, any, error) {
	if input.URL == "" {
		return toolError("url is required"), nil, nil
	}
	opts := Options{ForceReprocess: input.Force}
	var res *Result
	if len(input.Tags) > 0 {
		res = svc.ProcessURLWithTags(ctx, input.URL, input.Tags, opts)
	} else {
		res = svc.ProcessURL(ctx, input.URL, opts)
	}
	return toolJSON(res)
}

func (svc *Service) mcpProcessURLs(ctx context.Context, _ *mcp.CallToolRequest, input mcpProcessURLsInput) (*mcp.CallToolResult, any, error) {
	if len(input.URLs) == 0 {
		return toolError("urls is required"), nil, nil
	}
	results := svc.ProcessURLs(ctx, input.URLs, Options{WindowSize: input.Window})
	return toolJSON(results)
}

func (svc *Service) mcpListURLs(ctx context.Context, _ *mcp.CallToolRequest, input mcpListURLsInput) (*mcp.CallToolResult, any, error) {
	urls, err := svc.ListURLs(ctx, registry.Filter{
		Status:      input.Status,
		ContentType: input.ContentType,
		Limit:       input.Limit,
	})
	if err != nil {
		return toolError("list urls: %v", err), nil, nil
	}
	return toolJSON(urls)
}

func (svc *Service) mcpSearch(ctx context.Context, _ *mcp.CallToolRequest, input mcpSearchInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return toolError("query is required"), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	hits, err := svc.Search(ctx, input.Query, limit)
	if err != nil {
		return toolError("search: %v", err), nil, nil
	}
	return toolJSON(hits)
}

func (svc *Service) mcpCreateTag(ctx context.Context, _ *mcp.CallToolRequest, input mcpCreateTagInput) (*mcp.CallToolResult, any, error) {
	tag, err := svc.CreateTag(ctx, tags.CreateSpec{
		Name:        input.Name,
		ParentID:    input.ParentID,
		Description: input.Description,
		Color:       input.Color,
	})
	if err != nil {
		return toolError("create tag: %v", err), nil, nil
	}
	return toolJSON(tag)
}

func (svc *Service) mcpListTags(ctx context.Context, _ *mcp.CallToolRequest, input mcpListTagsInput) (*mcp.CallToolResult, any, error) {
	list, err := svc.ListTags(ctx, tags.ListFilter{
		ParentID:  input.ParentID,
		RootsOnly: input.RootsOnly,
	})
	if err != nil {
		return toolError("list tags: %v", err), nil, nil
	}
	return toolJSON(list)
}

func (svc *Service) mcpTagURL(ctx context.Context, _ *mcp.CallToolRequest, input mcpTagURLInput) (*mcp.CallToolResult, any, error) {
	if input.URLID == "" || len(input.Tags) == 0 {
		return toolError("url_id and tags are required"), nil, nil
	}
	ids, err := svc.EnsureTags(ctx, input.Tags)
	if err != nil {
		return toolError("ensure tags: %v", err), nil, nil
	}
	if err := svc.TagURL(ctx, input.URLID, ids); err != nil {
		return toolError("tag url: %v", err), nil, nil
	}
	return toolJSON(map[string]any{"url_id": input.URLID, "tag_ids": ids})
}

func (svc *Service) mcpIngestHistory(ctx context.Context, _ *mcp.CallToolRequest, input mcpIngestHistoryInput) (*mcp.CallToolResult, any, error) {
	if input.URLID == "" {
		return toolError("url_id is required"), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	history, err := svc.IngestHistory(ctx, input.URLID, limit)
	if err != nil {
		return toolError("ingest history: %v", err), nil, nil
	}
	return toolJSON(history)
}

func (svc *Service) mcpStats(ctx context.Context, _ *mcp.CallToolRequest, _ mcpStatsInput) (*mcp.CallToolResult, any, error) {
	stats, err := svc.Stats(ctx)
	if err != nil {
		return toolError("stats: %v", err), nil, nil
	}
	return toolJSON(stats)
}

// --- Result helpers ---

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
